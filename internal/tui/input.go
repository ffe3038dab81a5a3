package tui

import (
	"errors"
	"fmt"
	"strings"
)

// commandKind is what a line typed into the input box asks for.
type commandKind int

const (
	cmdSend commandKind = iota
	cmdChat
	cmdGroup
	cmdAdd
	cmdRemove
	cmdClear
	cmdRefresh
	cmdHelp
	cmdQuit
)

// command is a parsed input line.
type command struct {
	kind    commandKind
	target  string
	name    string
	members []string
	text    string
}

const helpText = "/chat <id>  /group <name> <member>...  /add <id> [name]  /remove <id>  /clear  /refresh  /quit"

// parseInput turns one line of input into a command. Lines that don't
// start with a slash are messages for the selected conversation.
func parseInput(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errors.New("empty input")
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSend, text: line}, nil
	}

	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case "/chat", "/c":
		if len(args) != 1 {
			return command{}, errors.New("usage: /chat <id>")
		}
		return command{kind: cmdChat, target: args[0]}, nil
	case "/group", "/g":
		if len(args) < 1 {
			return command{}, errors.New("usage: /group <name> <member>...")
		}
		return command{kind: cmdGroup, name: args[0], members: args[1:]}, nil
	case "/add":
		if len(args) < 1 {
			return command{}, errors.New("usage: /add <id> [name]")
		}
		name := args[0]
		if len(args) > 1 {
			name = strings.Join(args[1:], " ")
		}
		return command{kind: cmdAdd, target: args[0], name: name}, nil
	case "/remove", "/rm":
		if len(args) != 1 {
			return command{}, errors.New("usage: /remove <id>")
		}
		return command{kind: cmdRemove, target: args[0]}, nil
	case "/clear":
		return command{kind: cmdClear}, nil
	case "/refresh":
		return command{kind: cmdRefresh}, nil
	case "/help", "/?":
		return command{kind: cmdHelp}, nil
	case "/quit", "/q":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s (%s)", fields[0], helpText)
	}
}
