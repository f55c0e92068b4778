package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Field names shared by the map-shaped formats (msgpack, CBOR).
const (
	fieldType  = "type"
	fieldKey   = "key"
	fieldValue = "value"
	fieldText  = "message"
)

type msgpackCodec struct{}

func (msgpackCodec) encode(m Message) ([]byte, error) {
	key, value, text := ptrs(m)
	fields := []struct {
		name string
		v    *string
	}{{fieldKey, key}, {fieldValue, value}, {fieldText, text}}

	n := 1
	for _, f := range fields {
		if f.v != nil {
			n++
		}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(n); err != nil {
		return nil, err
	}
	if err := encodePair(enc, fieldType, m.typ.String()); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.v == nil {
			continue
		}
		if err := encodePair(enc, f.name, *f.v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodePair(enc *msgpack.Encoder, k, v string) error {
	if err := enc.EncodeString(k); err != nil {
		return err
	}
	return enc.EncodeString(v)
}

func (msgpackCodec) decode(b []byte) (Message, error) {
	// Grammar first: exactly one well-formed object and nothing after it.
	r := bytes.NewReader(b)
	if err := msgpack.NewDecoder(r).Skip(); err != nil {
		return Message{}, malformed(err)
	}
	if r.Len() != 0 {
		return Message{}, malformed(fmt.Errorf("%d trailing bytes", r.Len()))
	}

	// Schema second: a map of known string fields, each at most once.
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	n, err := dec.DecodeMapLen()
	if err != nil {
		return Message{}, schema(err)
	}
	if n < 0 {
		return Message{}, schema(errors.New("nil message"))
	}

	slots := map[string]**string{}
	var typ, key, value, text *string
	slots[fieldType], slots[fieldKey], slots[fieldValue], slots[fieldText] = &typ, &key, &value, &text
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		name, err := dec.DecodeString()
		if err != nil {
			return Message{}, schema(fmt.Errorf("field name: %w", err))
		}
		if seen[name] {
			return Message{}, schema(fmt.Errorf("duplicate field %q", name))
		}
		seen[name] = true
		slot, ok := slots[name]
		if !ok {
			return Message{}, schema(fmt.Errorf("unknown field %q", name))
		}
		raw, err := dec.DecodeInterface()
		if err != nil {
			return Message{}, schema(err)
		}
		switch v := raw.(type) {
		case nil:
		case string:
			*slot = &v
		case []byte:
			s := string(v)
			*slot = &s
		default:
			return Message{}, schema(fmt.Errorf("field %q: want string, got %T", name, raw))
		}
	}
	return build(typ, key, value, text)
}
