package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/IvanBrykalov/kvcache/kverr"
)

// Frame layout:
//
//	uint32 BE length | format byte | payload
//
// length counts the format byte plus the payload. One frame carries exactly
// one Message.
const (
	headerSize = 4
	// MaxFrameSize bounds length. The largest valid request (256-byte key,
	// 256 KiB value) fits even with worst-case XML escaping.
	MaxFrameSize = 4 << 20
)

// ErrFrameTooLarge is the cause reported for an oversized frame.
var ErrFrameTooLarge = errors.New("frame too large")

// WriteFrame writes one frame.
func WriteFrame(w io.Writer, f Format, payload []byte) error {
	n := len(payload) + 1
	if n > MaxFrameSize {
		return kverr.Wrap(kverr.EncodingError, "wire.write", ErrFrameTooLarge)
	}
	buf := make([]byte, headerSize+n)
	binary.BigEndian.PutUint32(buf, uint32(n))
	buf[headerSize] = byte(f)
	copy(buf[headerSize+1:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame. A clean end of stream before the first header
// byte returns io.EOF unchanged; a stream that ends or fails mid-frame is a
// TransportError; a bad length or unknown format is MalformedPayload (the
// stream is out of sync afterwards).
func ReadFrame(r io.Reader) (Format, []byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, kverr.Wrap(kverr.TransportError, "wire.read", err)
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return 0, nil, kverr.Wrap(kverr.MalformedPayload, "wire.read", errors.New("empty frame"))
	}
	if n > MaxFrameSize {
		return 0, nil, kverr.Wrap(kverr.MalformedPayload, "wire.read", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n))
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, kverr.Wrap(kverr.TransportError, "wire.read", err)
	}

	f := Format(data[0])
	if !f.Valid() {
		return 0, nil, kverr.Wrap(kverr.MalformedPayload, "wire.read", fmt.Errorf("unknown format %d", data[0]))
	}
	return f, data[1:], nil
}

// WriteMessage encodes m in format f and writes it as one frame.
func WriteMessage(w io.Writer, m Message, f Format) error {
	b, err := Encode(m, f)
	if err != nil {
		return err
	}
	return WriteFrame(w, f, b)
}

// ReadMessage reads one frame and decodes it. The frame's format is
// returned even when decoding fails, so the caller can answer in kind.
func ReadMessage(r io.Reader) (Message, Format, error) {
	f, payload, err := ReadFrame(r)
	if err != nil {
		return Message{}, 0, err
	}
	m, err := Decode(payload, f)
	return m, f, err
}
