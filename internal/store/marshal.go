package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/chatsync/internal/model"
)

// marshalDocument converts the view model to JSON TEXT for storage.
// HTML escaping is disabled so stored content matches what was received.
func marshalDocument(doc model.ViewModel) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	// Encoder appends a newline
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unmarshalDocument parses a stored document. Families absent from older
// documents come back empty, never nil.
func unmarshalDocument(data string) (model.ViewModel, error) {
	doc := model.Empty()
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return model.ViewModel{}, fmt.Errorf("unmarshal document: %w", err)
	}
	fillEmpty(&doc)
	return doc, nil
}

func fillEmpty(doc *model.ViewModel) {
	if doc.Chats == nil {
		doc.Chats = map[string][]model.Message{}
	}
	if doc.DirectOrder == nil {
		doc.DirectOrder = []string{}
	}
	if doc.Groups == nil {
		doc.Groups = []model.Group{}
	}
	if doc.GroupMessages == nil {
		doc.GroupMessages = map[string][]model.Message{}
	}
	if doc.GroupOrder == nil {
		doc.GroupOrder = []string{}
	}
	if doc.Contacts == nil {
		doc.Contacts = []model.Contact{}
	}
	if doc.Provisional == nil {
		doc.Provisional = []model.Provisional{}
	}
}
