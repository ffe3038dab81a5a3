package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content fingerprints. The version suffix allows a
// future algorithm change without colliding with stored fingerprints.
const (
	DomainMessage = "chatsync/message/v1"
	DomainGroup   = "chatsync/group/v1"
)

// Fingerprint returns a stable content hash of the message.
// Two messages with the same author, content (after NFC normalization) and
// timestamp share a fingerprint.
func (m Message) Fingerprint() string {
	data, err := marshalCanonical(map[string]any{
		"author":    m.Author,
		"content":   m.Content,
		"timestamp": m.Timestamp,
	})
	if err != nil {
		// Only strings and ints are involved; unreachable.
		panic(fmt.Sprintf("message fingerprint: %v", err))
	}
	return hashWithDomain(DomainMessage, data)
}

// Equal reports whether two messages are the same (author, content,
// timestamp) tuple, byte for byte. Unlike Fingerprint it does not normalize.
func (m Message) Equal(o Message) bool {
	return m == o
}

// Fingerprint returns a stable content hash of the group header.
func (g Group) Fingerprint() string {
	members := make([]any, len(g.Members))
	for i, m := range g.Members {
		members[i] = m
	}
	data, err := marshalCanonical(map[string]any{
		"id":         g.ID,
		"name":       g.Name,
		"members":    members,
		"created_by": g.CreatedBy,
		"created_at": g.CreatedAt,
	})
	if err != nil {
		panic(fmt.Sprintf("group fingerprint: %v", err))
	}
	return hashWithDomain(DomainGroup, data)
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// marshalCanonical produces RFC 8785 canonical JSON for the small value set
// fingerprints need: strings, int64 and nested arrays/objects of them.
func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return marshalCanonicalString(val)
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareUTF16)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("value for key %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString encodes s NFC-normalized without HTML escaping.
// U+2028/U+2029 stay literal as RFC 8785 requires.
func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	if bytes.Contains(out, []byte(`\u202`)) {
		out = unescapeLineSeparators(out)
	}
	return out, nil
}

// unescapeLineSeparators turns \u2028 and \u2029 escapes back into literal
// characters, leaving \\u2028 (escaped backslash) alone.
func unescapeLineSeparators(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) && data[i+1] == '\\' {
			out = append(out, '\\', '\\')
			i++
			continue
		}
		if data[i] == '\\' && i+5 < len(data) && string(data[i+1:i+5]) == "u202" && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}

// compareUTF16 orders keys by UTF-16 code units (RFC 8785), which differs
// from Go's UTF-8 byte order for astral characters.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
