package wire

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/IvanBrykalov/kvcache/internal/xmltext"
)

// <KVMessage type="putreq"><Key>k</Key><Value>v</Value></KVMessage>
// <KVMessage type="resp"><Message>Success</Message></KVMessage>
type xmlMessage struct {
	XMLName xml.Name `xml:"KVMessage"`
	Type    *string  `xml:"type,attr"`
	Keys    []string `xml:"Key"`
	Values  []string `xml:"Value"`
	Texts   []string `xml:"Message"`
}

type xmlCodec struct{}

func (xmlCodec) encode(m Message) ([]byte, error) {
	key, value, text := ptrs(m)
	typ := m.typ.String()
	doc := xmlMessage{Type: &typ}
	for _, f := range []struct {
		dst *[]string
		src *string
	}{{&doc.Keys, key}, {&doc.Values, value}, {&doc.Texts, text}} {
		if f.src == nil {
			continue
		}
		if !xmltext.Safe(*f.src) {
			return nil, errors.New("field is not representable as XML text")
		}
		*f.dst = []string{*f.src}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode walks the token stream itself so it can tell grammar failures
// (MalformedPayload) from well-formed documents of the wrong shape
// (FormatError). The whole document is tokenized before a schema error is
// reported, so a document that is both is reported as malformed.
func (xmlCodec) decode(b []byte) (Message, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	dec.CharsetReader = func(label string, _ io.Reader) (io.Reader, error) {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}

	// field names the Key, Value or Message element being read, if any;
	// bad keeps the first schema violation.
	var (
		rootSeen bool
		typ      *string
		field    string
		text     strings.Builder
		depth    int
		bad      error
	)
	fields := map[string][]string{}
	fail := func(err error) {
		if bad == nil {
			bad = err
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Message{}, malformed(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case depth == 0 && rootSeen:
				fail(fmt.Errorf("unexpected second root <%s>", t.Name.Local))
			case depth == 0:
				rootSeen = true
				if err := uniqueAttrs(t.Attr); err != nil {
					return Message{}, malformed(err)
				}
				if t.Name.Local != "KVMessage" {
					fail(fmt.Errorf("root is <%s>, want <KVMessage>", t.Name.Local))
				}
				for _, a := range t.Attr {
					if a.Name.Space == "" && a.Name.Local == "type" {
						v := a.Value
						typ = &v
					}
				}
			case depth == 1:
				switch t.Name.Local {
				case "Key", "Value", "Message":
					field = t.Name.Local
					text.Reset()
				}
			case field != "":
				fail(fmt.Errorf("element <%s> inside <%s>", t.Name.Local, field))
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 1 && field != "" {
				fields[field] = append(fields[field], text.String())
				field = ""
			}
		case xml.CharData:
			switch {
			case depth == 0:
				if len(bytes.TrimSpace(t)) > 0 {
					return Message{}, malformed(errors.New("text outside the root element"))
				}
			case depth == 2 && field != "":
				text.Write(t)
			}
		}
	}
	if !rootSeen {
		return Message{}, malformed(io.ErrUnexpectedEOF)
	}
	if bad != nil {
		return Message{}, schema(bad)
	}

	key, err := single("Key", fields["Key"])
	if err != nil {
		return Message{}, err
	}
	value, err := single("Value", fields["Value"])
	if err != nil {
		return Message{}, err
	}
	msg, err := single("Message", fields["Message"])
	if err != nil {
		return Message{}, err
	}
	return build(typ, key, value, msg)
}

// uniqueAttrs rejects a repeated attribute, which XML forbids.
func uniqueAttrs(attrs []xml.Attr) error {
	for i := range attrs {
		for j := i + 1; j < len(attrs); j++ {
			if attrs[i].Name == attrs[j].Name {
				return fmt.Errorf("attribute %q repeated", attrs[i].Name.Local)
			}
		}
	}
	return nil
}

func single(name string, vs []string) (*string, error) {
	switch len(vs) {
	case 0:
		return nil, nil
	case 1:
		return &vs[0], nil
	}
	return nil, schema(fmt.Errorf("%d <%s> elements", len(vs), name))
}
