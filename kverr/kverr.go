// Package kverr defines the error taxonomy shared by the cache, store, wire
// codec and service layers.
//
// Every recoverable per-request failure is an *Error carrying a Kind. A Kind
// maps to exactly one canonical text, which is what travels back to clients
// inside a Response message. Match kinds with errors.Is:
//
//	if errors.Is(err, kverr.NotFound) { ... }
package kverr

import (
	"errors"
	"strings"
)

// Kind classifies a failure.
type Kind uint8

const (
	// Unknown is an opaque failure (environment or backend fault) that does not
	// belong to the request taxonomy.
	Unknown Kind = iota
	// FormatError is a malformed request structure: wrong field combination,
	// missing key, unknown message type.
	FormatError
	KeyUndersized
	KeyOversized
	ValueUndersized
	ValueOversized
	// NotFound means the key is absent from the store.
	NotFound
	// TransportError means the byte stream ended or failed before a full frame arrived.
	TransportError
	// MalformedPayload means the payload does not parse under its serialization grammar.
	MalformedPayload
	// EncodingError means an outgoing message violates its own field-combination invariant.
	EncodingError
)

// SuccessText is the Response text acknowledging a successful Put or Del.
const SuccessText = "Success"

const unknownPrefix = "Unknown Error: "

var texts = [...]string{
	Unknown:          "Unknown Error",
	FormatError:      "Message Format Incorrect",
	KeyUndersized:    "Key Error: Undersized Key",
	KeyOversized:     "Key Error: Oversized Key",
	ValueUndersized:  "Value Error: Undersized Value",
	ValueOversized:   "Value Error: Oversized Value",
	NotFound:         "Key Does Not Exist",
	TransportError:   "Network Error: Could not receive data",
	MalformedPayload: "Payload Error: Received unparseable message",
	EncodingError:    "Encoding Error: Not enough data",
}

var names = [...]string{
	Unknown:          "unknown",
	FormatError:      "format",
	KeyUndersized:    "key_undersized",
	KeyOversized:     "key_oversized",
	ValueUndersized:  "value_undersized",
	ValueOversized:   "value_oversized",
	NotFound:         "not_found",
	TransportError:   "transport",
	MalformedPayload: "malformed_payload",
	EncodingError:    "encoding",
}

// Text returns the canonical response text of the kind.
func (k Kind) Text() string {
	if int(k) < len(texts) {
		return texts[k]
	}
	return texts[Unknown]
}

// String returns a short stable label, suitable for metrics.
func (k Kind) String() string {
	if int(k) < len(names) {
		return names[k]
	}
	return names[Unknown]
}

// Error lets a bare Kind act as a sentinel for errors.Is.
func (k Kind) Error() string { return k.Text() }

// Error is a classified failure. Op names the operation that failed
// (e.g. "store.get", "wire.decode") and Err is the optional cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error of the given kind.
func E(kind Kind, op string) *Error { return &Error{Kind: kind, Op: op} }

// Wrap builds an *Error of the given kind around cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Text())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same Kind (either a bare Kind or an
// *Error of that kind).
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// KindOf extracts the kind of err. Errors outside the taxonomy are Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Unknown
}

// ResponseText is the deterministic error → response text mapping used at the
// service boundary.
func ResponseText(err error) string {
	if k := KindOf(err); k != Unknown {
		return k.Text()
	}
	return unknownPrefix + err.Error()
}

// FromText maps a response text received from a server back to an error.
// SuccessText yields nil.
func FromText(text string) error {
	if text == SuccessText {
		return nil
	}
	for k := FormatError; int(k) < len(texts); k++ {
		if texts[k] == text {
			return E(k, "remote")
		}
	}
	return Wrap(Unknown, "remote", errors.New(strings.TrimPrefix(text, unknownPrefix)))
}
