// Package wire encodes and decodes the chat protocol frames.
//
// Every frame is a JSON object with exactly one key, the tag, whose value is
// the payload:
//
//	{"NewMessage":{"counterparty":"bob","author":"bob","content":"hi","timestamp":100}}
//
// Inbound frames decode to the closed set of Event types below; any other
// tag is a parse error. Outbound commands encode the same way.
package wire
