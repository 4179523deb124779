package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer appends primitives to a growable buffer. It mirrors Cursor: every
// Take* has a matching Put* that writes the same length prefix first.
//
// Writes never fail immediately. The first field that does not fit its wire
// length prefix is recorded and reported by Err; later writes are ignored.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates a writer with a small initial capacity.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// NewWriterSize creates a writer with the given initial capacity.
func NewWriterSize(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Err returns the first encoding error, if any.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf("%w: "+format, append([]any{ErrFieldTooLong}, args...)...)
	}
}

// PutUint8 appends one byte.
func (w *Writer) PutUint8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v)
}

// PutUint16 appends a little-endian uint16.
func (w *Writer) PutUint16(v uint16) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// PutUint32 appends a little-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// PutInt16 appends a little-endian int16.
func (w *Writer) PutInt16(v int16) {
	w.PutUint16(uint16(v))
}

// PutInt32 appends a little-endian int32.
func (w *Writer) PutInt32(v int32) {
	w.PutUint32(uint32(v))
}

// PutStr appends a uint16 length prefix and the string bytes.
func (w *Writer) PutStr(s string) {
	if len(s) > math.MaxUint16 {
		w.fail("string of %d bytes", len(s))
		return
	}
	w.PutUint16(uint16(len(s)))
	if w.err == nil {
		w.buf = append(w.buf, s...)
	}
}

// PutData appends a uint32 length prefix and the raw bytes.
func (w *Writer) PutData(b []byte) {
	if uint64(len(b)) > math.MaxUint32 {
		w.fail("blob of %d bytes", len(b))
		return
	}
	w.PutUint32(uint32(len(b)))
	if w.err == nil {
		w.buf = append(w.buf, b...)
	}
}

// PutSyncFlags appends a uint8 count and the flag names in sorted order.
func (w *Writer) PutSyncFlags(f SyncFlags) {
	if len(f) > math.MaxUint8 {
		w.fail("%d sync flags", len(f))
		return
	}
	w.PutUint8(uint8(len(f)))
	for _, name := range f.Sorted() {
		w.PutStr(name)
	}
}

// PutFrame appends one timeline entry.
func (w *Writer) PutFrame(f FrameDuration) {
	w.PutUint16(f.Value)
	w.PutUint32(f.DurationMs)
}

// PutTag appends one animation tag.
func (w *Writer) PutTag(t AnimTag) {
	w.PutStr(t.Name)
	w.PutUint16(t.Start)
	w.PutUint16(t.End)
	w.PutUint8(uint8(t.Direction))
}

// putCount appends a collection length using the given integer width.
func (w *Writer) putCount(n int, width int) {
	switch width {
	case 2:
		if n > math.MaxUint16 {
			w.fail("collection of %d items", n)
			return
		}
		w.PutUint16(uint16(n))
	case 4:
		if uint64(n) > math.MaxUint32 {
			w.fail("collection of %d items", n)
			return
		}
		w.PutUint32(uint32(n))
	}
}
