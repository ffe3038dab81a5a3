package harness

import (
	"fmt"

	"github.com/roach88/chatsync/internal/model"
)

// tables maps each view table to its row builder. Rows come out in view
// order so "first match" is well defined.
var tables = map[string]func(model.ViewModel) []map[string]any{
	"chats":          chatRows,
	"messages":       messageRows,
	"groups":         groupRows,
	"group_chats":    groupChatRows,
	"group_messages": groupMessageRows,
	"contacts":       contactRows,
	"provisional":    provisionalRows,
	"selection":      selectionRows,
	"status":         statusRows,
}

// Rows flattens one family of v into rows for final_state assertions.
//
//	chats:          key, length
//	messages:       chat, index, author, content, timestamp
//	groups:         id, name, members, created_by, created_at, temp
//	group_chats:    group_id, length
//	group_messages: group_id, index, author, content, timestamp
//	contacts:       id, name
//	provisional:    temp_id, kind, target, group, content, created_at
//	selection:      chat_id, group_id (always one row)
//	status:         connected, last_error (always one row)
func Rows(v model.ViewModel, table string) ([]map[string]any, error) {
	build, ok := tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return build(v), nil
}

func chatRows(v model.ViewModel) []map[string]any {
	rows := make([]map[string]any, 0, len(v.DirectOrder))
	for _, key := range v.DirectOrder {
		rows = append(rows, map[string]any{"key": key, "length": len(v.Chats[key])})
	}
	return rows
}

func messageRows(v model.ViewModel) []map[string]any {
	var rows []map[string]any
	for _, key := range v.DirectOrder {
		for i, m := range v.Chats[key] {
			rows = append(rows, messageRow("chat", key, i, m))
		}
	}
	return rows
}

func groupRows(v model.ViewModel) []map[string]any {
	rows := make([]map[string]any, 0, len(v.Groups))
	for _, g := range v.Groups {
		members := make([]any, len(g.Members))
		for i, m := range g.Members {
			members[i] = m
		}
		rows = append(rows, map[string]any{
			"id":         g.ID,
			"name":       g.Name,
			"members":    members,
			"created_by": g.CreatedBy,
			"created_at": g.CreatedAt,
			"temp":       model.IsTempID(g.ID),
		})
	}
	return rows
}

func groupChatRows(v model.ViewModel) []map[string]any {
	rows := make([]map[string]any, 0, len(v.GroupOrder))
	for _, id := range v.GroupOrder {
		rows = append(rows, map[string]any{"group_id": id, "length": len(v.GroupMessages[id])})
	}
	return rows
}

func groupMessageRows(v model.ViewModel) []map[string]any {
	var rows []map[string]any
	for _, id := range v.GroupOrder {
		for i, m := range v.GroupMessages[id] {
			rows = append(rows, messageRow("group_id", id, i, m))
		}
	}
	return rows
}

func messageRow(keyField, key string, index int, m model.Message) map[string]any {
	return map[string]any{
		keyField:    key,
		"index":     index,
		"author":    m.Author,
		"content":   m.Content,
		"timestamp": m.Timestamp,
	}
}

func contactRows(v model.ViewModel) []map[string]any {
	rows := make([]map[string]any, 0, len(v.Contacts))
	for _, c := range v.Contacts {
		rows = append(rows, map[string]any{"id": c.ID, "name": c.Name})
	}
	return rows
}

func provisionalRows(v model.ViewModel) []map[string]any {
	rows := make([]map[string]any, 0, len(v.Provisional))
	for _, p := range v.Provisional {
		row := map[string]any{
			"temp_id":    p.TempID,
			"kind":       p.Kind,
			"target":     p.Target,
			"group":      p.Group,
			"created_at": p.CreatedAt,
		}
		if p.Message != nil {
			row["content"] = p.Message.Content
		}
		rows = append(rows, row)
	}
	return rows
}

func selectionRows(v model.ViewModel) []map[string]any {
	return []map[string]any{{"chat_id": v.SelectedChatID, "group_id": v.SelectedGroupID}}
}

func statusRows(v model.ViewModel) []map[string]any {
	return []map[string]any{{"connected": v.Connected, "last_error": v.LastError}}
}
