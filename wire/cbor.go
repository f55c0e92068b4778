package wire

import (
	"errors"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
)

type cborMessage struct {
	Type  *string `cbor:"type"`
	Key   *string `cbor:"key,omitempty"`
	Value *string `cbor:"value,omitempty"`
	Text  *string `cbor:"message,omitempty"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	if cborEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if cborDec, err = (cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}).DecMode(); err != nil {
		panic(err)
	}
}

type cborCodec struct{}

func (cborCodec) encode(m Message) ([]byte, error) {
	key, value, text := ptrs(m)
	for _, p := range []*string{key, value, text} {
		// CBOR text strings must be UTF-8.
		if p != nil && !utf8.ValidString(*p) {
			return nil, errors.New("field is not valid UTF-8")
		}
	}
	typ := m.typ.String()
	return cborEnc.Marshal(cborMessage{Type: &typ, Key: key, Value: value, Text: text})
}

func (cborCodec) decode(b []byte) (Message, error) {
	if err := cborDec.Wellformed(b); err != nil {
		return Message{}, malformed(err)
	}
	var doc cborMessage
	if err := cborDec.Unmarshal(b, &doc); err != nil {
		return Message{}, schema(err)
	}
	return build(doc.Type, doc.Key, doc.Value, doc.Text)
}
