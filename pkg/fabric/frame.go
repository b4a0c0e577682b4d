package fabric

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single spawn message payload.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge reports a frame whose declared length exceeds
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("fabric: frame exceeds maximum size")

// WriteFrame writes one length-prefixed frame. The payload is opaque:
// framing is the only interpretation the fabric applies.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("fabric: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("fabric: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one complete frame. io.EOF is returned only on a
// clean boundary; a partial frame reads as io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("fabric: read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("fabric: read frame payload: %w", err)
	}
	return payload, nil
}
