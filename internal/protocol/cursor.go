package protocol

import (
	"encoding/binary"
	"fmt"
)

// Cursor reads primitives from an immutable byte buffer.
//
// Every method fails with an error wrapping ErrTruncatedMessage when fewer
// bytes remain than requested. Scalar, string and blob reads leave the
// position unchanged on failure; composite reads may stop part way.
// Byte slices returned by TakeData reference the underlying buffer and are
// only valid as long as the buffer is.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor creates a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Position returns the current read offset.
func (c *Cursor) Position() int {
	return c.pos
}

// Discard skips everything that is left and returns how many bytes it dropped.
func (c *Cursor) Discard() int {
	n := c.Remaining()
	c.pos = len(c.buf)
	return n
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncatedMessage, n, c.pos, c.Remaining())
	}
	b := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// TakeUint reads an n-byte little-endian unsigned integer (1 <= n <= 8).
func (c *Cursor) TakeUint(n int) (uint64, error) {
	if n < 1 || n > 8 {
		return 0, fmt.Errorf("%w: integer width %d", ErrInvalidMessage, n)
	}
	b, err := c.take(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// TakeSint reads an n-byte little-endian two's-complement integer.
func (c *Cursor) TakeSint(n int) (int64, error) {
	v, err := c.TakeUint(n)
	if err != nil {
		return 0, err
	}
	shift := uint(64 - 8*n)
	return int64(v<<shift) >> shift, nil
}

// TakeUint8 reads one byte.
func (c *Cursor) TakeUint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// TakeUint16 reads a little-endian uint16.
func (c *Cursor) TakeUint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// TakeUint32 reads a little-endian uint32.
func (c *Cursor) TakeUint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// TakeInt16 reads a little-endian int16.
func (c *Cursor) TakeInt16() (int16, error) {
	v, err := c.TakeUint16()
	return int16(v), err
}

// TakeInt32 reads a little-endian int32.
func (c *Cursor) TakeInt32() (int32, error) {
	v, err := c.TakeUint32()
	return int32(v), err
}

// TakeStr reads a uint16 length prefix followed by that many UTF-8 bytes.
func (c *Cursor) TakeStr() (string, error) {
	start := c.pos
	n, err := c.TakeUint16()
	if err != nil {
		return "", err
	}
	b, err := c.take(int(n))
	if err != nil {
		c.pos = start
		return "", err
	}
	return string(b), nil
}

// TakeData reads a uint32 length prefix followed by that many raw bytes.
func (c *Cursor) TakeData() ([]byte, error) {
	start := c.pos
	n, err := c.TakeUint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(c.Remaining()) {
		c.pos = start
		return nil, fmt.Errorf("%w: blob of %d bytes at offset %d, have %d",
			ErrTruncatedMessage, n, c.pos+4, c.Remaining()-4)
	}
	return c.take(int(n))
}

// TakeSyncFlags reads a uint8 count followed by that many strings.
func (c *Cursor) TakeSyncFlags() (SyncFlags, error) {
	n, err := c.TakeUint8()
	if err != nil {
		return nil, err
	}
	flags := make(SyncFlags, n)
	for i := 0; i < int(n); i++ {
		name, err := c.TakeStr()
		if err != nil {
			return nil, err
		}
		flags[name] = struct{}{}
	}
	return flags, nil
}

// TakeFrame reads one (uint16 value, uint32 duration) timeline entry.
func (c *Cursor) TakeFrame() (FrameDuration, error) {
	v, err := c.TakeUint16()
	if err != nil {
		return FrameDuration{}, err
	}
	d, err := c.TakeUint32()
	if err != nil {
		return FrameDuration{}, err
	}
	return FrameDuration{Value: v, DurationMs: d}, nil
}

// TakeTag reads one animation tag.
func (c *Cursor) TakeTag() (AnimTag, error) {
	var t AnimTag
	var err error
	if t.Name, err = c.TakeStr(); err != nil {
		return t, err
	}
	if t.Start, err = c.TakeUint16(); err != nil {
		return t, err
	}
	if t.End, err = c.TakeUint16(); err != nil {
		return t, err
	}
	dir, err := c.TakeUint8()
	if err != nil {
		return t, err
	}
	t.Direction = Direction(dir)
	return t, nil
}

// checkCount rejects element counts that cannot possibly fit in the rest of
// the buffer, so a forged count never drives a huge allocation.
func (c *Cursor) checkCount(count uint64, minItemSize int) (int, error) {
	if count*uint64(minItemSize) > uint64(c.Remaining()) {
		return 0, fmt.Errorf("%w: %d items of at least %d bytes at offset %d, have %d",
			ErrTruncatedMessage, count, minItemSize, c.pos, c.Remaining())
	}
	return int(count), nil
}
