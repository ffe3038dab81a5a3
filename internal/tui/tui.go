// Package tui is the interactive terminal client. It renders the view
// models published by the coordinator and turns keystrokes into local
// actions; it never touches state directly.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/chatsync/internal/engine"
	"github.com/roach88/chatsync/internal/model"
)

// Actions is the part of the coordinator the UI drives.
type Actions interface {
	SendDirect(ctx context.Context, to, content string) (engine.Result, error)
	SendGroup(ctx context.Context, groupID, content string) (engine.Result, error)
	CreateGroup(ctx context.Context, name string, members []string) (engine.Result, error)
	AddContact(ctx context.Context, id, name string) (engine.Result, error)
	RemoveContact(ctx context.Context, id string) (engine.Result, error)
	SelectDirect(ctx context.Context, key string) (engine.Result, error)
	SelectGroup(ctx context.Context, id string) (engine.Result, error)
	ClearSelection(ctx context.Context) (engine.Result, error)
	Refresh(ctx context.Context) (engine.Result, error)
}

// actionTimeout bounds how long the UI waits for the loop to apply one
// action.
const actionTimeout = 5 * time.Second

// entry is one line of the sidebar.
type entry struct {
	group bool
	id    string
	label string
}

// viewMsg carries a published view model.
type viewMsg model.ViewModel

// viewClosedMsg reports that the coordinator stopped publishing.
type viewClosedMsg struct{}

// actionDoneMsg reports the outcome of a dispatched action.
type actionDoneMsg struct {
	desc string
	err  error
}

// Model is the bubbletea model of the client.
type Model struct {
	ctx     context.Context
	actions Actions
	updates <-chan model.ViewModel
	self    string

	view    model.ViewModel
	entries []entry
	cursor  int

	input    textinput.Model
	viewport viewport.Model

	width        int
	height       int
	sidebarWidth int

	status string
	err    error
}

// New creates the model. updates is a subscription to the coordinator's
// view models.
func New(ctx context.Context, actions Actions, updates <-chan model.ViewModel, self string) Model {
	input := textinput.New()
	input.Placeholder = "Type a message or /help..."
	input.CharLimit = 1000
	input.Width = 50
	input.Focus()

	return Model{
		ctx:          ctx,
		actions:      actions,
		updates:      updates,
		self:         self,
		view:         model.Empty(),
		input:        input,
		viewport:     viewport.New(80, 20),
		sidebarWidth: 30,
	}
}

// Init starts the cursor blink and the subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForView(m.updates))
}

func waitForView(updates <-chan model.ViewModel) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-updates
		if !ok {
			return viewClosedMsg{}
		}
		return viewMsg(v)
	}
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		m.setView(model.ViewModel(msg))
		return m, waitForView(m.updates)

	case viewClosedMsg:
		return m, tea.Quit

	case actionDoneMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.desc
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "ctrl+p":
			return m.moveCursor(-1)
		case "down", "ctrl+n":
			return m.moveCursor(1)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "enter":
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setView(v model.ViewModel) {
	m.view = v
	m.entries = sidebarEntries(v)
	for i, e := range m.entries {
		if (e.group && e.id == v.SelectedGroupID) || (!e.group && e.id == v.SelectedChatID) {
			m.cursor = i
			break
		}
	}
	if m.cursor >= len(m.entries) {
		m.cursor = max(len(m.entries)-1, 0)
	}
	m.refreshViewport()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.sidebarWidth = max(width/4, 25)

	chatWidth := width - m.sidebarWidth - 4
	chatHeight := height - 2
	m.viewport = viewport.New(max(chatWidth-4, 10), max(chatHeight-7, 3))
	m.input.Width = max(chatWidth-6, 10)
	m.refreshViewport()
}

// moveCursor selects the neighbouring sidebar entry.
func (m Model) moveCursor(delta int) (tea.Model, tea.Cmd) {
	if len(m.entries) == 0 {
		return m, nil
	}
	next := m.cursor + delta
	if next < 0 || next >= len(m.entries) {
		return m, nil
	}
	m.cursor = next
	e := m.entries[next]
	if e.group {
		return m, m.dispatch("selected "+e.label, func(ctx context.Context) error {
			_, err := m.actions.SelectGroup(ctx, e.id)
			return err
		})
	}
	return m, m.dispatch("selected "+e.label, func(ctx context.Context) error {
		_, err := m.actions.SelectDirect(ctx, e.id)
		return err
	})
}

// submit runs the input line.
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	c, err := parseInput(line)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.input.Reset()
	m.err = nil

	a := m.actions
	switch c.kind {
	case cmdQuit:
		return m, tea.Quit
	case cmdHelp:
		m.status = helpText
		return m, nil
	case cmdSend:
		return m.send(c.text)
	case cmdChat:
		return m, m.dispatch("opened "+c.target, func(ctx context.Context) error {
			_, err := a.SelectDirect(ctx, c.target)
			return err
		})
	case cmdGroup:
		return m, m.dispatch("creating group "+c.name, func(ctx context.Context) error {
			_, err := a.CreateGroup(ctx, c.name, c.members)
			return err
		})
	case cmdAdd:
		return m, m.dispatch("added "+c.target, func(ctx context.Context) error {
			_, err := a.AddContact(ctx, c.target, c.name)
			return err
		})
	case cmdRemove:
		return m, m.dispatch("removed "+c.target, func(ctx context.Context) error {
			_, err := a.RemoveContact(ctx, c.target)
			return err
		})
	case cmdClear:
		return m, m.dispatch("selection cleared", func(ctx context.Context) error {
			_, err := a.ClearSelection(ctx)
			return err
		})
	case cmdRefresh:
		return m, m.dispatch("refreshing", func(ctx context.Context) error {
			_, err := a.Refresh(ctx)
			return err
		})
	}
	return m, nil
}

// send posts text to the selected conversation.
func (m Model) send(text string) (tea.Model, tea.Cmd) {
	a := m.actions
	switch {
	case m.view.SelectedGroupID != "":
		id := m.view.SelectedGroupID
		return m, m.dispatch("", func(ctx context.Context) error {
			_, err := a.SendGroup(ctx, id, text)
			return err
		})
	case m.view.SelectedChatID != "":
		to := m.view.SelectedChatID
		return m, m.dispatch("", func(ctx context.Context) error {
			_, err := a.SendDirect(ctx, to, text)
			return err
		})
	default:
		m.err = fmt.Errorf("select a conversation first (%s)", helpText)
		return m, nil
	}
}

// dispatch runs an action off the UI goroutine.
func (m Model) dispatch(desc string, run func(ctx context.Context) error) tea.Cmd {
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		return actionDoneMsg{desc: desc, err: run(ctx)}
	}
}

// sidebarEntries lists direct conversations, then contacts without one,
// then groups.
func sidebarEntries(v model.ViewModel) []entry {
	var entries []entry
	seen := make(map[string]bool)
	names := make(map[string]string, len(v.Contacts))
	for _, c := range v.Contacts {
		names[c.ID] = c.Name
	}
	label := func(id string) string {
		if n := names[id]; n != "" && n != id {
			return fmt.Sprintf("%s (%s)", n, id)
		}
		return id
	}

	for _, key := range v.DirectOrder {
		seen[key] = true
		entries = append(entries, entry{id: key, label: label(key)})
	}
	for _, c := range v.Contacts {
		if !seen[c.ID] {
			entries = append(entries, entry{id: c.ID, label: label(c.ID)})
		}
	}
	for _, g := range v.Groups {
		entries = append(entries, entry{group: true, id: g.ID, label: "#" + g.Name})
	}
	return entries
}

// refreshViewport renders the selected conversation into the viewport.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) renderConversation() string {
	var (
		msgs   []model.Message
		target string
		group  bool
	)
	switch {
	case m.view.SelectedGroupID != "":
		target, group = m.view.SelectedGroupID, true
		msgs = m.view.GroupMessages[target]
	case m.view.SelectedChatID != "":
		target = m.view.SelectedChatID
		msgs = m.view.Chats[target]
	default:
		return mutedStyle.Render("Select a conversation to start chatting")
	}

	pending := make(map[model.Message]bool)
	for _, p := range m.view.Provisional {
		if p.Message != nil && p.Target == target && p.Group == group {
			pending[*p.Message] = true
		}
	}

	var b strings.Builder
	for _, msg := range msgs {
		style := otherMessageStyle
		if msg.Author == m.self {
			style = ownMessageStyle
		}
		ts := time.Unix(msg.Timestamp, 0).Format("15:04")
		line := fmt.Sprintf("%s %s: %s", mutedStyle.Render(ts), style.Render(msg.Author), msg.Content)
		if pending[msg] {
			line += " " + pendingStyle.Render("(sending)")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// View renders the whole screen.
func (m Model) View() string {
	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.chatView())
}

func (m Model) sidebarView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.self))
	b.WriteString("\n")
	if m.view.Connected {
		b.WriteString(mutedStyle.Render("● connected"))
	} else {
		b.WriteString(errorStyle.Render("○ offline"))
	}
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString(mutedStyle.Render("No conversations.\n/add <id> to start."))
	}
	for i, e := range m.entries {
		label := e.label
		if e.group && model.IsTempID(e.id) {
			label += " " + pendingStyle.Render("…")
		}
		if i == m.cursor {
			b.WriteString(selectedItemStyle.Render(label) + "\n")
		} else {
			b.WriteString(unselectedItemStyle.Render(label) + "\n")
		}
	}

	style := sidebarStyle
	if m.height > 0 {
		style = style.Width(m.sidebarWidth - 2).Height(m.height - 2)
	}
	return style.Render(b.String())
}

func (m Model) chatView() string {
	title := "chatsync"
	switch {
	case m.view.SelectedGroupID != "":
		if g, ok := m.view.Group(m.view.SelectedGroupID); ok {
			title = fmt.Sprintf("#%s  %s", g.Name, mutedStyle.Render(strings.Join(g.Members, ", ")))
		}
	case m.view.SelectedChatID != "":
		title = m.view.SelectedChatID
	}

	var footer strings.Builder
	switch {
	case m.err != nil:
		footer.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	case m.view.LastError != "":
		footer.WriteString(errorStyle.Render(m.view.LastError) + "\n")
	case m.status != "":
		footer.WriteString(mutedStyle.Render(m.status) + "\n")
	}
	footer.WriteString(m.input.View())

	header, foot, window := headerStyle, footerStyle, chatWindowStyle
	if m.width > 0 {
		chatWidth := m.width - m.sidebarWidth - 4
		header = header.Width(chatWidth - 2)
		foot = foot.Width(chatWidth - 2)
		window = window.Width(chatWidth).Height(m.height - 2)
	}

	return window.Render(lipgloss.JoinVertical(lipgloss.Left,
		header.Render(title),
		m.viewport.View(),
		foot.Render(footer.String()),
	))
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(ctx context.Context, actions Actions, updates <-chan model.ViewModel, self string) error {
	p := tea.NewProgram(New(ctx, actions, updates, self), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
