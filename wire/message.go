// Package wire defines the request/response Message exchanged between
// clients and the server and its on-the-wire encodings.
//
// A Message is immutable: it is built either by one of the New* builders or
// by Decode, and both only ever yield a Message whose fields fit its Type.
package wire

import (
	"fmt"

	"github.com/IvanBrykalov/kvcache/kverr"
)

// Type is the message kind. The zero value is invalid.
type Type uint8

const (
	TypeInvalid Type = iota
	GetRequest
	PutRequest
	DelRequest
	Response
)

var typeNames = [...]string{
	TypeInvalid: "",
	GetRequest:  "getreq",
	PutRequest:  "putreq",
	DelRequest:  "delreq",
	Response:    "resp",
}

// String returns the wire name ("getreq", "putreq", "delreq", "resp").
func (t Type) String() string {
	if int(t) < len(typeNames) && t != TypeInvalid {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType maps a wire name back to a Type.
func ParseType(s string) (Type, bool) {
	for t := GetRequest; t <= Response; t++ {
		if typeNames[t] == s {
			return t, true
		}
	}
	return TypeInvalid, false
}

// Message is one request or response.
type Message struct {
	typ      Type
	key      string
	value    string
	text     string
	hasKey   bool
	hasValue bool
	hasText  bool
}

// NewGetRequest builds a getreq for key.
func NewGetRequest(key string) Message {
	return Message{typ: GetRequest, key: key, hasKey: true}
}

// NewPutRequest builds a putreq for key → value.
func NewPutRequest(key, value string) Message {
	return Message{typ: PutRequest, key: key, value: value, hasKey: true, hasValue: true}
}

// NewDelRequest builds a delreq for key.
func NewDelRequest(key string) Message {
	return Message{typ: DelRequest, key: key, hasKey: true}
}

// NewValueResponse builds the response to a successful Get.
func NewValueResponse(key, value string) Message {
	return Message{typ: Response, key: key, value: value, hasKey: true, hasValue: true}
}

// NewTextResponse builds a response carrying a status or error text.
func NewTextResponse(text string) Message {
	return Message{typ: Response, text: text, hasText: true}
}

// NewSuccessResponse acknowledges a Put or Del.
func NewSuccessResponse() Message { return NewTextResponse(kverr.SuccessText) }

// NewErrorResponse maps err to its canonical response text.
func NewErrorResponse(err error) Message { return NewTextResponse(kverr.ResponseText(err)) }

// Fields is the loose field set a decoder produces; Build checks it.
type Fields struct {
	Type  Type
	Key   *string
	Value *string
	Text  *string
}

// Build turns decoded fields into a Message, failing with FormatError when
// the combination does not fit the type.
func Build(f Fields) (Message, error) {
	m := Message{typ: f.Type}
	if f.Key != nil {
		m.key, m.hasKey = *f.Key, true
	}
	if f.Value != nil {
		m.value, m.hasValue = *f.Value, true
	}
	if f.Text != nil {
		m.text, m.hasText = *f.Text, true
	}
	if err := m.check(); err != nil {
		return Message{}, kverr.Wrap(kverr.FormatError, "wire.build", err)
	}
	return m, nil
}

// Type returns the message type.
func (m Message) Type() Type { return m.typ }

// Key returns the key and whether it is present.
func (m Message) Key() (string, bool) { return m.key, m.hasKey }

// Value returns the value and whether it is present.
func (m Message) Value() (string, bool) { return m.value, m.hasValue }

// Text returns the response text and whether it is present.
func (m Message) Text() (string, bool) { return m.text, m.hasText }

// Valid reports whether the fields fit the type.
func (m Message) Valid() bool { return m.check() == nil }

// Err returns the error a response carries, or nil for a value response
// and the success acknowledgement.
func (m Message) Err() error {
	if m.typ != Response || !m.hasText {
		return nil
	}
	return kverr.FromText(m.text)
}

func (m Message) String() string {
	switch {
	case m.hasText:
		return fmt.Sprintf("%s text=%q", m.typ, m.text)
	case m.hasValue:
		return fmt.Sprintf("%s key=%q value=%dB", m.typ, m.key, len(m.value))
	case m.hasKey:
		return fmt.Sprintf("%s key=%q", m.typ, m.key)
	}
	return m.typ.String()
}

func (m Message) check() error {
	switch m.typ {
	case GetRequest, DelRequest:
		if !m.hasKey || m.hasValue || m.hasText {
			return fmt.Errorf("%s needs a key and nothing else", m.typ)
		}
	case PutRequest:
		if !m.hasKey || !m.hasValue || m.hasText {
			return fmt.Errorf("%s needs a key and a value", m.typ)
		}
	case Response:
		pair := m.hasKey && m.hasValue
		if pair == m.hasText || m.hasKey != m.hasValue {
			return fmt.Errorf("%s needs either key and value or a message", m.typ)
		}
	default:
		return fmt.Errorf("unknown message type %d", uint8(m.typ))
	}
	return nil
}
