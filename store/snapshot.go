package store

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/IvanBrykalov/kvcache/internal/xmltext"
	"github.com/IvanBrykalov/kvcache/kverr"
)

// Format selects the snapshot encoding.
type Format uint8

const (
	// FormatXML is <KVStore><KVPair><Key/><Value/></KVPair>...</KVStore>.
	// A Key or Value that XML text cannot carry is written as base64 with
	// enc="base64" on the element.
	FormatXML Format = iota
	// FormatCBOR is a CBOR map {"v": version, "pairs": [[key, value], ...]}
	// with keys and values as byte strings.
	FormatCBOR
)

func (f Format) String() string {
	if f == FormatCBOR {
		return "cbor"
	}
	return "xml"
}

// FormatForPath picks CBOR for a ".cbor" extension and XML otherwise.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		return FormatCBOR
	}
	return FormatXML
}

const snapshotVersion = 1

type xmlStore struct {
	XMLName xml.Name  `xml:"KVStore"`
	Pairs   []xmlPair `xml:"KVPair"`
}

type xmlPair struct {
	Key   *xmlField `xml:"Key"`
	Value *xmlField `xml:"Value"`
}

type xmlField struct {
	Enc  string `xml:"enc,attr,omitempty"`
	Text string `xml:",chardata"`
}

const encBase64 = "base64"

func newXMLField(s string) *xmlField {
	if xmltext.Safe(s) {
		return &xmlField{Text: s}
	}
	return &xmlField{Enc: encBase64, Text: base64.StdEncoding.EncodeToString([]byte(s))}
}

func (f *xmlField) value() (string, error) {
	switch f.Enc {
	case "":
		return f.Text, nil
	case encBase64:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(f.Text))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", fmt.Errorf("unknown enc %q", f.Enc)
}

type cborStore struct {
	Version uint        `cbor:"v"`
	Pairs   [][2][]byte `cbor:"pairs"`
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

// Dump writes every pair in key order. The caller holds at least the read lock.
func (s *Store) Dump(ctx context.Context, w io.Writer, f Format) error {
	recs, err := s.t.Records(ctx)
	if err != nil {
		return err
	}
	switch f {
	case FormatCBOR:
		doc := cborStore{Version: snapshotVersion, Pairs: make([][2][]byte, len(recs))}
		for i, r := range recs {
			doc.Pairs[i] = [2][]byte{[]byte(r.Key), []byte(r.Value)}
		}
		return cborEnc.NewEncoder(w).Encode(doc)
	default:
		doc := xmlStore{Pairs: make([]xmlPair, len(recs))}
		for i, r := range recs {
			doc.Pairs[i] = xmlPair{Key: newXMLField(r.Key), Value: newXMLField(r.Value)}
		}
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}
}

// Restore replaces the entire contents with the pairs read from r. The
// snapshot is parsed and every pair checked against the key and value
// limits before the table is touched, so a bad snapshot leaves the old
// contents in place. The caller holds the write lock.
func (s *Store) Restore(ctx context.Context, r io.Reader, f Format) error {
	recs, err := readSnapshot(r, f)
	if err != nil {
		return kverr.Wrap(kverr.MalformedPayload, "store.restore", err)
	}
	return s.t.Replace(ctx, recs)
}

// DumpFile writes a snapshot to path through a temporary file and a rename.
// The format follows the extension (see FormatForPath).
func (s *Store) DumpFile(ctx context.Context, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = s.Dump(ctx, bw, FormatForPath(path)); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RestoreFile restores from path. The format follows the extension.
func (s *Store) RestoreFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Restore(ctx, bufio.NewReader(f), FormatForPath(path))
}

func readSnapshot(r io.Reader, f Format) ([]Record, error) {
	var recs []Record
	switch f {
	case FormatCBOR:
		var doc cborStore
		if err := cborDec.NewDecoder(r).Decode(&doc); err != nil {
			return nil, err
		}
		if doc.Version != snapshotVersion {
			return nil, fmt.Errorf("snapshot version %d not supported", doc.Version)
		}
		recs = make([]Record, len(doc.Pairs))
		for i, p := range doc.Pairs {
			recs[i] = Record{Key: string(p[0]), Value: string(p[1])}
		}
	default:
		var doc xmlStore
		if err := xml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, err
		}
		recs = make([]Record, len(doc.Pairs))
		for i, p := range doc.Pairs {
			if p.Key == nil || p.Value == nil {
				return nil, errors.New("KVPair needs one Key and one Value")
			}
			k, err := p.Key.value()
			if err != nil {
				return nil, fmt.Errorf("pair %d key: %w", i, err)
			}
			v, err := p.Value.value()
			if err != nil {
				return nil, fmt.Errorf("pair %d value: %w", i, err)
			}
			recs[i] = Record{Key: k, Value: v}
		}
	}
	for i, rec := range recs {
		if err := checkRecord(rec); err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
	}
	return recs, nil
}

func checkRecord(rec Record) error {
	switch {
	case len(rec.Key) == 0:
		return errors.New("empty key")
	case len(rec.Key) > MaxKeySize:
		return fmt.Errorf("key of %d bytes exceeds %d", len(rec.Key), MaxKeySize)
	case len(rec.Value) == 0:
		return errors.New("empty value")
	case len(rec.Value) > MaxValueSize:
		return fmt.Errorf("value of %d bytes exceeds %d", len(rec.Value), MaxValueSize)
	}
	return nil
}
