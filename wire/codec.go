package wire

import (
	"fmt"

	"github.com/IvanBrykalov/kvcache/kverr"
)

// Format identifies the payload serialization. It travels in every frame,
// so the receiver never has to guess.
type Format uint8

const (
	FormatXML Format = iota + 1
	FormatMsgpack
	FormatCBOR
	FormatProto
)

// codec serializes the Message shape in one grammar. decode reports
// MalformedPayload for bytes outside the grammar and FormatError for
// well-formed input that does not match the schema.
type codec interface {
	encode(m Message) ([]byte, error)
	decode(b []byte) (Message, error)
}

var codecs = map[Format]codec{
	FormatXML:     xmlCodec{},
	FormatMsgpack: msgpackCodec{},
	FormatCBOR:    cborCodec{},
	FormatProto:   protoCodec{},
}

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatMsgpack:
		return "msgpack"
	case FormatCBOR:
		return "cbor"
	case FormatProto:
		return "proto"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// ParseFormat maps a format name ("xml", "msgpack", "cbor", "proto").
func ParseFormat(s string) (Format, error) {
	for f := FormatXML; f <= FormatProto; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("wire: unknown format %q", s)
}

// Valid reports whether f names a known format.
func (f Format) Valid() bool {
	_, ok := codecs[f]
	return ok
}

// Encode serializes m. It fails with EncodingError when m's fields do not
// fit its type (including the zero Message).
func Encode(m Message, f Format) ([]byte, error) {
	c, ok := codecs[f]
	if !ok {
		return nil, kverr.Wrap(kverr.EncodingError, "wire.encode", fmt.Errorf("unknown format %d", uint8(f)))
	}
	if err := m.check(); err != nil {
		return nil, kverr.Wrap(kverr.EncodingError, "wire.encode", err)
	}
	b, err := c.encode(m)
	if err != nil {
		return nil, kverr.Wrap(kverr.EncodingError, "wire.encode", err)
	}
	return b, nil
}

// Decode parses one payload. It never returns a partially filled Message.
func Decode(b []byte, f Format) (Message, error) {
	c, ok := codecs[f]
	if !ok {
		return Message{}, kverr.Wrap(kverr.MalformedPayload, "wire.decode", fmt.Errorf("unknown format %d", uint8(f)))
	}
	return c.decode(b)
}

func malformed(err error) error { return kverr.Wrap(kverr.MalformedPayload, "wire.decode", err) }
func schema(err error) error    { return kverr.Wrap(kverr.FormatError, "wire.decode", err) }

// build finishes decoding: the type name must be known and the fields must
// fit it.
func build(typ *string, key, value, text *string) (Message, error) {
	if typ == nil {
		return Message{}, schema(fmt.Errorf("missing message type"))
	}
	t, ok := ParseType(*typ)
	if !ok {
		return Message{}, schema(fmt.Errorf("unknown message type %q", *typ))
	}
	return Build(Fields{Type: t, Key: key, Value: value, Text: text})
}

// ptrs returns the optional fields of m as nil-able pointers.
func ptrs(m Message) (key, value, text *string) {
	if m.hasKey {
		key = &m.key
	}
	if m.hasValue {
		value = &m.value
	}
	if m.hasText {
		text = &m.text
	}
	return key, value, text
}
