package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf layout of a message:
//
//	message KVMessage {
//	  Type   type    = 1; // GET_REQUEST=1 PUT_REQUEST=2 DEL_REQUEST=3 RESPONSE=4
//	  string key     = 2;
//	  string value   = 3;
//	  string message = 4;
//	}
//
// Field presence matters (an empty key is still a key), so optional fields
// are only written when present.
const (
	protoType  protowire.Number = 1
	protoKey   protowire.Number = 2
	protoValue protowire.Number = 3
	protoText  protowire.Number = 4
)

type protoCodec struct{}

func (protoCodec) encode(m Message) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, protoType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.typ))
	key, value, text := ptrs(m)
	for _, f := range []struct {
		num protowire.Number
		v   *string
	}{{protoKey, key}, {protoValue, value}, {protoText, text}} {
		if f.v == nil {
			continue
		}
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendString(b, *f.v)
	}
	return b, nil
}

func (protoCodec) decode(b []byte) (Message, error) {
	var (
		typ       Type
		hasType   bool
		strs      [protoText + 1]*string
		schemaErr error
	)
	for len(b) > 0 {
		num, wt, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == protoType && wt == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Message{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
			if hasType {
				schemaErr = errors.Join(schemaErr, errors.New("type repeated"))
			}
			hasType = true
			if v == 0 || v > uint64(Response) {
				schemaErr = errors.Join(schemaErr, fmt.Errorf("unknown message type %d", v))
				continue
			}
			typ = Type(v)

		case num >= protoKey && num <= protoText && wt == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Message{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
			if strs[num] != nil {
				schemaErr = errors.Join(schemaErr, fmt.Errorf("field %d repeated", num))
			}
			s := string(v)
			strs[num] = &s

		default:
			// Unknown fields are skipped; a known field with the wrong wire
			// type is a schema violation.
			n := protowire.ConsumeFieldValue(num, wt, b)
			if n < 0 {
				return Message{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
			if num >= protoType && num <= protoText {
				schemaErr = errors.Join(schemaErr, fmt.Errorf("field %d has wire type %d", num, wt))
			}
		}
	}
	if schemaErr != nil {
		return Message{}, schema(schemaErr)
	}
	if !hasType {
		return Message{}, schema(errors.New("missing message type"))
	}
	return Build(Fields{Type: typ, Key: strs[protoKey], Value: strs[protoValue], Text: strs[protoText]})
}
