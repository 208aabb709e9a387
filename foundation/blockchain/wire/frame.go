package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxMessageSize is the largest frame accepted when no limit is set.
const DefaultMaxMessageSize = 8 << 20

// ErrFrameTooLarge is returned when a frame exceeds the size limit.
var ErrFrameTooLarge = errors.New("frame exceeds maximum message size")

// WriteFrame writes the data prefixed by its length as a 4 byte big
// endian integer.
func WriteFrame(w io.Writer, data []byte, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}

	if len(data) > maxSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), maxSize)
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length prefixed frame. The length is checked before
// any payload is read.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if uint64(n) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	return data, nil
}
