package wire

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/IvanBrykalov/kvcache/kverr"
)

var allFormats = []Format{FormatXML, FormatMsgpack, FormatCBOR, FormatProto}

func sampleMessages() []Message {
	return []Message{
		NewGetRequest("a"),
		NewPutRequest("a", "apple"),
		NewDelRequest("o"),
		NewPutRequest("", ""), // empty fields are present, size checks live in the service
		NewPutRequest("k <&> \"q\"", " spaced\nmulti\r\nline\t"),
		NewPutRequest("ключ", "значение 🙂"),
		NewPutRequest(strings.Repeat("k", 256), strings.Repeat("v", 262144)),
		NewValueResponse("a", "aardvark"),
		NewSuccessResponse(),
		NewErrorResponse(kverr.E(kverr.NotFound, "store.get")),
		NewTextResponse(""),
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, f := range allFormats {
		for _, m := range sampleMessages() {
			b, err := Encode(m, f)
			if err != nil {
				t.Fatalf("%s: Encode(%v): %v", f, m, err)
			}
			got, err := Decode(b, f)
			if err != nil {
				t.Fatalf("%s: Decode(%v): %v", f, m, err)
			}
			if got != m {
				t.Fatalf("%s: round trip mismatch:\n got  %v\n want %v", f, got, m)
			}
		}
	}
}

func TestRoundTrip_BinaryFormats(t *testing.T) {
	t.Parallel()

	m := NewPutRequest("bin\x00key", "\x00\x01\xfe\xff")
	for _, f := range []Format{FormatMsgpack, FormatProto} {
		b, err := Encode(m, f)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		got, err := Decode(b, f)
		if err != nil || got != m {
			t.Fatalf("%s: got %v err=%v", f, got, err)
		}
	}
	// Text formats refuse instead of corrupting.
	for _, f := range []Format{FormatXML, FormatCBOR} {
		if _, err := Encode(m, f); kverr.KindOf(err) != kverr.EncodingError {
			t.Fatalf("%s: want EncodingError, got %v", f, err)
		}
	}
}

func TestEncode_InvalidMessage(t *testing.T) {
	t.Parallel()

	for _, f := range allFormats {
		_, err := Encode(Message{}, f)
		if !errors.Is(err, kverr.EncodingError) {
			t.Fatalf("%s: zero Message must fail with EncodingError, got %v", f, err)
		}
	}
	if _, err := Encode(NewGetRequest("a"), Format(99)); !errors.Is(err, kverr.EncodingError) {
		t.Fatalf("unknown format must fail with EncodingError, got %v", err)
	}
}

func TestBuild_FieldCombinations(t *testing.T) {
	t.Parallel()

	s := func(v string) *string { return &v }
	cases := []struct {
		name string
		f    Fields
		ok   bool
	}{
		{"get", Fields{Type: GetRequest, Key: s("k")}, true},
		{"get without key", Fields{Type: GetRequest}, false},
		{"get with value", Fields{Type: GetRequest, Key: s("k"), Value: s("v")}, false},
		{"del with text", Fields{Type: DelRequest, Key: s("k"), Text: s("x")}, false},
		{"put", Fields{Type: PutRequest, Key: s("k"), Value: s("v")}, true},
		{"put without value", Fields{Type: PutRequest, Key: s("k")}, false},
		{"resp pair", Fields{Type: Response, Key: s("k"), Value: s("v")}, true},
		{"resp text", Fields{Type: Response, Text: s("Success")}, true},
		{"resp neither", Fields{Type: Response}, false},
		{"resp both", Fields{Type: Response, Key: s("k"), Value: s("v"), Text: s("x")}, false},
		{"resp key only", Fields{Type: Response, Key: s("k")}, false},
		{"resp key and text", Fields{Type: Response, Key: s("k"), Text: s("x")}, false},
		{"invalid type", Fields{Key: s("k")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Build(tc.f)
			if tc.ok {
				if err != nil || !m.Valid() {
					t.Fatalf("want valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, kverr.FormatError) {
				t.Fatalf("want FormatError, got %v", err)
			}
			if m != (Message{}) {
				t.Fatalf("failed Build must not return a partial message")
			}
		})
	}
}

func msgpackMap(t *testing.T, kv ...any) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(len(kv) / 2); err != nil {
		t.Fatal(err)
	}
	for _, v := range kv {
		if err := enc.Encode(v); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func protoMsg(typ uint64, fields ...any) []byte {
	b := protowire.AppendTag(nil, protoType, protowire.VarintType)
	b = protowire.AppendVarint(b, typ)
	for i := 0; i+1 < len(fields); i += 2 {
		b = protowire.AppendTag(b, fields[i].(protowire.Number), protowire.BytesType)
		b = protowire.AppendString(b, fields[i+1].(string))
	}
	return b
}

func TestDecode_ErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		f    Format
		in   []byte
		want kverr.Kind
	}{
		// XML
		{"xml garbage", FormatXML, []byte("not xml at all"), kverr.MalformedPayload},
		{"xml empty", FormatXML, nil, kverr.MalformedPayload},
		{"xml unclosed", FormatXML, []byte(`<KVMessage type="getreq"><Key>a</Key>`), kverr.MalformedPayload},
		{"xml wrong root", FormatXML, []byte(`<Other type="getreq"><Key>a</Key></Other>`), kverr.FormatError},
		{"xml unknown type", FormatXML, []byte(`<KVMessage type="nope"><Key>a</Key></KVMessage>`), kverr.FormatError},
		{"xml missing type", FormatXML, []byte(`<KVMessage><Key>a</Key></KVMessage>`), kverr.FormatError},
		{"xml missing key", FormatXML, []byte(`<KVMessage type="getreq"></KVMessage>`), kverr.FormatError},
		{"xml two keys", FormatXML, []byte(`<KVMessage type="getreq"><Key>a</Key><Key>b</Key></KVMessage>`), kverr.FormatError},
		{"xml put no value", FormatXML, []byte(`<KVMessage type="putreq"><Key>a</Key></KVMessage>`), kverr.FormatError},
		{"xml two roots", FormatXML, []byte(`<KVMessage type="getreq"><Key>a</Key></KVMessage><KVMessage/>`), kverr.FormatError},
		{"xml text before root", FormatXML, []byte(`garbage text<KVMessage type="getreq"><Key>a</Key></KVMessage>`), kverr.MalformedPayload},
		{"xml text after root", FormatXML, []byte(`<KVMessage type="getreq"><Key>a</Key></KVMessage>tail`), kverr.MalformedPayload},
		{"xml repeated attribute", FormatXML, []byte(`<KVMessage type="getreq" type="putreq"><Key>a</Key><Value>v</Value></KVMessage>`), kverr.MalformedPayload},
		{"xml nested markup in key", FormatXML, []byte(`<KVMessage type="getreq"><Key>a<b>x</b>c</Key></KVMessage>`), kverr.FormatError},
		{"xml nested markup in value", FormatXML, []byte(`<KVMessage type="putreq"><Key>a</Key><Value><i/></Value></KVMessage>`), kverr.FormatError},
		{"xml foreign encoding", FormatXML, []byte(`<?xml version="1.0" encoding="ISO-8859-1"?><KVMessage type="getreq"><Key>a</Key></KVMessage>`), kverr.MalformedPayload},
		{"xml schema then broken", FormatXML, []byte(`<Other><Key>a</Key></Other><`), kverr.MalformedPayload},
		// msgpack
		{"msgpack truncated", FormatMsgpack, msgpackMap(t, "type", "getreq", "key", "a")[:6], kverr.MalformedPayload},
		{"msgpack trailing", FormatMsgpack, append(msgpackMap(t, "type", "getreq", "key", "a"), 0x01), kverr.MalformedPayload},
		{"msgpack not a map", FormatMsgpack, []byte{0xa1, 'x'}, kverr.FormatError},
		{"msgpack duplicate", FormatMsgpack, msgpackMap(t, "type", "getreq", "key", "a", "key", "b"), kverr.FormatError},
		{"msgpack unknown field", FormatMsgpack, msgpackMap(t, "type", "getreq", "key", "a", "extra", "x"), kverr.FormatError},
		{"msgpack int key", FormatMsgpack, msgpackMap(t, "type", "getreq", "key", 7), kverr.FormatError},
		{"msgpack del with value", FormatMsgpack, msgpackMap(t, "type", "delreq", "key", "a", "value", "v"), kverr.FormatError},
		// CBOR
		{"cbor truncated", FormatCBOR, []byte{0xa2, 0x64, 't', 'y'}, kverr.MalformedPayload},
		{"cbor trailing", FormatCBOR, []byte{0xa0, 0x00}, kverr.MalformedPayload},
		{"cbor not a map", FormatCBOR, []byte{0x01}, kverr.FormatError},
		{"cbor empty map", FormatCBOR, []byte{0xa0}, kverr.FormatError},
		{"cbor duplicate", FormatCBOR, []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}, kverr.FormatError},
		// protobuf
		{"proto truncated", FormatProto, protoMsg(1, protoKey, "abc")[:4], kverr.MalformedPayload},
		{"proto empty", FormatProto, nil, kverr.FormatError},
		{"proto bad type", FormatProto, protoMsg(9, protoKey, "a"), kverr.FormatError},
		{"proto repeated key", FormatProto, protoMsg(1, protoKey, "a", protoKey, "b"), kverr.FormatError},
		{"proto get with value", FormatProto, protoMsg(1, protoKey, "a", protoValue, "v"), kverr.FormatError},
		// unknown format
		{"unknown format", Format(42), []byte("x"), kverr.MalformedPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Decode(tc.in, tc.f)
			if got := kverr.KindOf(err); got != tc.want {
				t.Fatalf("kind = %v (%v), want %v", got, err, tc.want)
			}
			if m != (Message{}) {
				t.Fatalf("failed Decode must not return a partial message: %v", m)
			}
		})
	}
}

// Comments, CDATA and whitespace around the fields do not change them.
func TestDecode_XMLTextContent(t *testing.T) {
	t.Parallel()

	in := `<?xml version="1.0"?>
<!-- request -->
<KVMessage type="putreq">
  <Key>a<!-- c -->b</Key>
  <Value><![CDATA[<raw> & text]]></Value>
  <Extra>ignored</Extra>
</KVMessage>
`
	m, err := Decode([]byte(in), FormatXML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := NewPutRequest("ab", "<raw> & text"); m != want {
		t.Fatalf("got %v, want %v", m, want)
	}
}

// Unknown protobuf fields are skipped like any protobuf reader would.
func TestDecode_ProtoSkipsUnknownFields(t *testing.T) {
	t.Parallel()

	b := protoMsg(1, protoKey, "a")
	b = protowire.AppendTag(b, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	m, err := Decode(b, FormatProto)
	if err != nil || m != NewGetRequest("a") {
		t.Fatalf("got %v err=%v", m, err)
	}
}

func TestDecode_XMLStandaloneProlog(t *testing.T) {
	t.Parallel()

	in := `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<KVMessage type="resp"><Message>Key Does Not Exist</Message></KVMessage>
`
	m, err := Decode([]byte(in), FormatXML)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(m.Err(), kverr.NotFound) {
		t.Fatalf("response error = %v, want NotFound", m.Err())
	}
}

func TestMessage_Err(t *testing.T) {
	t.Parallel()

	if NewSuccessResponse().Err() != nil || NewValueResponse("k", "v").Err() != nil {
		t.Fatal("success and value responses carry no error")
	}
	if err := NewErrorResponse(kverr.E(kverr.KeyOversized, "x")).Err(); !errors.Is(err, kverr.KeyOversized) {
		t.Fatalf("got %v", err)
	}
	if NewGetRequest("k").Err() != nil {
		t.Fatal("requests carry no error")
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	msgs := sampleMessages()
	for i, m := range msgs {
		if err := WriteMessage(&buf, m, allFormats[i%len(allFormats)]); err != nil {
			t.Fatal(err)
		}
	}
	for i, want := range msgs {
		got, f, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f != allFormats[i%len(allFormats)] || got != want {
			t.Fatalf("frame %d: got %v (%s)", i, got, f)
		}
	}
	if _, _, err := ReadMessage(&buf); err != io.EOF {
		t.Fatalf("clean end of stream must be io.EOF, got %v", err)
	}
}

func TestFrame_Errors(t *testing.T) {
	t.Parallel()

	var full bytes.Buffer
	if err := WriteMessage(&full, NewPutRequest("a", "apple"), FormatXML); err != nil {
		t.Fatal(err)
	}
	b := full.Bytes()

	cases := []struct {
		name string
		in   []byte
		want kverr.Kind
	}{
		{"short header", b[:2], kverr.TransportError},
		{"short payload", b[:len(b)-3], kverr.TransportError},
		{"header only", b[:4], kverr.TransportError},
		{"empty frame", []byte{0, 0, 0, 0}, kverr.MalformedPayload},
		{"too large", []byte{0xff, 0xff, 0xff, 0xff}, kverr.MalformedPayload},
		{"unknown format", []byte{0, 0, 0, 2, 77, 'x'}, kverr.MalformedPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ReadMessage(bytes.NewReader(tc.in))
			if got := kverr.KindOf(err); got != tc.want {
				t.Fatalf("kind = %v (%v), want %v", got, err, tc.want)
			}
		})
	}

	// A well-framed but unparseable payload keeps its format for the reply.
	var bad bytes.Buffer
	if err := WriteFrame(&bad, FormatCBOR, []byte{0xff}); err != nil {
		t.Fatal(err)
	}
	_, f, err := ReadMessage(&bad)
	if f != FormatCBOR || kverr.KindOf(err) != kverr.MalformedPayload {
		t.Fatalf("got format %s err %v", f, err)
	}
}

func TestParseTypeAndFormat(t *testing.T) {
	t.Parallel()

	for ty := GetRequest; ty <= Response; ty++ {
		if got, ok := ParseType(ty.String()); !ok || got != ty {
			t.Fatalf("ParseType(%q) = %v, %v", ty.String(), got, ok)
		}
	}
	if _, ok := ParseType(""); ok {
		t.Fatal("empty type name must not parse")
	}
	for _, f := range allFormats {
		if got, err := ParseFormat(f.String()); err != nil || got != f {
			t.Fatalf("ParseFormat(%q) = %v, %v", f.String(), got, err)
		}
	}
	if _, err := ParseFormat("json"); err == nil {
		t.Fatal("json is not a wire format")
	}
}
