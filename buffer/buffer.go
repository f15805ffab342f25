// Package buffer provides a resizable byte container addressed by independent
// reader and writer cursors.
//
// Layout, with 0 <= readerIndex <= writerIndex <= Capacity():
//
//	+-------------------+------------------+------------------+
//	| discardable bytes |  readable bytes  |  writable bytes  |
//	+-------------------+------------------+------------------+
//	0            readerIndex        writerIndex          capacity
//
// A Buffer is not safe for concurrent use. It is owned by a single decode stage.
package buffer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/mohitkumar/mnet/errs"
)

var byteOrder = binary.BigEndian

const minGrowth = 64

type Buffer struct {
	buf               []byte
	readerIndex       int
	writerIndex       int
	markedReaderIndex int
	maxCapacity       int
}

// New returns an empty buffer with the given initial capacity and no capacity ceiling.
func New(initialCapacity int) *Buffer {
	return NewWithMax(initialCapacity, math.MaxInt)
}

func NewWithMax(initialCapacity, maxCapacity int) *Buffer {
	if initialCapacity < 0 {
		initialCapacity = 0
	}
	if maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	return &Buffer{buf: make([]byte, initialCapacity), maxCapacity: maxCapacity}
}

// Wrap returns a buffer whose readable bytes are a copy of p.
func Wrap(p []byte) *Buffer {
	b := New(len(p))
	b.writerIndex = copy(b.buf, p)
	return b
}

func (b *Buffer) Capacity() int      { return len(b.buf) }
func (b *Buffer) MaxCapacity() int   { return b.maxCapacity }
func (b *Buffer) ReaderIndex() int   { return b.readerIndex }
func (b *Buffer) WriterIndex() int   { return b.writerIndex }
func (b *Buffer) ReadableBytes() int { return b.writerIndex - b.readerIndex }
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writerIndex }
func (b *Buffer) IsReadable() bool   { return b.writerIndex > b.readerIndex }

func (b *Buffer) SetReaderIndex(i int) error {
	if i < 0 || i > b.writerIndex {
		return errs.ErrIndexOutOfRangef(i, 0, b.writerIndex)
	}
	b.readerIndex = i
	return nil
}

// MarkReaderIndex saves the current reader cursor so a speculative parse can roll back.
func (b *Buffer) MarkReaderIndex() { b.markedReaderIndex = b.readerIndex }

// ResetReaderIndex restores the reader cursor saved by MarkReaderIndex.
func (b *Buffer) ResetReaderIndex() { b.readerIndex = b.markedReaderIndex }

// EnsureWritable grows the backing storage so that at least n more bytes fit.
func (b *Buffer) EnsureWritable(n int) error {
	if n <= b.WritableBytes() {
		return nil
	}
	need := b.writerIndex + n
	if need > b.maxCapacity || need < 0 {
		return errs.ErrCapacityExceeded(need, b.maxCapacity)
	}
	newCap := len(b.buf)
	if newCap < minGrowth {
		newCap = minGrowth
	}
	for newCap < need {
		if newCap > b.maxCapacity/2 {
			newCap = b.maxCapacity
			break
		}
		newCap <<= 1
	}
	grown := make([]byte, newCap)
	copy(grown, b.buf[:b.writerIndex])
	b.buf = grown
	return nil
}

// Write appends p at the writer cursor, growing the buffer as needed.
func (b *Buffer) Write(p []byte) (int, error) {
	if err := b.EnsureWritable(len(p)); err != nil {
		return 0, err
	}
	n := copy(b.buf[b.writerIndex:], p)
	b.writerIndex += n
	return n, nil
}

func (b *Buffer) WriteString(s string) (int, error) {
	if err := b.EnsureWritable(len(s)); err != nil {
		return 0, err
	}
	n := copy(b.buf[b.writerIndex:], s)
	b.writerIndex += n
	return n, nil
}

func (b *Buffer) WriteByte(c byte) error {
	if err := b.EnsureWritable(1); err != nil {
		return err
	}
	b.buf[b.writerIndex] = c
	b.writerIndex++
	return nil
}

func (b *Buffer) WriteUint32(v uint32) error {
	if err := b.EnsureWritable(4); err != nil {
		return err
	}
	byteOrder.PutUint32(b.buf[b.writerIndex:], v)
	b.writerIndex += 4
	return nil
}

// WriteBuffer appends the readable bytes of src and drains src.
func (b *Buffer) WriteBuffer(src *Buffer) error {
	if _, err := b.Write(src.Bytes()); err != nil {
		return err
	}
	src.readerIndex = src.writerIndex
	return nil
}

// Read implements io.Reader.
func (b *Buffer) Read(p []byte) (int, error) {
	if !b.IsReadable() {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.readerIndex:b.writerIndex])
	b.readerIndex += n
	return n, nil
}

// ReadBytes returns a copy of the next n readable bytes and advances the reader cursor.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > b.ReadableBytes() {
		return nil, errs.ErrReadOutOfRange(n, b.ReadableBytes())
	}
	out := make([]byte, n)
	copy(out, b.buf[b.readerIndex:])
	b.readerIndex += n
	return out, nil
}

func (b *Buffer) ReadByte() (byte, error) {
	if !b.IsReadable() {
		return 0, errs.ErrReadOutOfRange(1, 0)
	}
	c := b.buf[b.readerIndex]
	b.readerIndex++
	return c, nil
}

func (b *Buffer) ReadUint32() (uint32, error) {
	v, err := b.PeekUint32()
	if err != nil {
		return 0, err
	}
	b.readerIndex += 4
	return v, nil
}

func (b *Buffer) Skip(n int) error {
	if n < 0 || n > b.ReadableBytes() {
		return errs.ErrReadOutOfRange(n, b.ReadableBytes())
	}
	b.readerIndex += n
	return nil
}

// PeekByte returns the byte at the reader cursor without consuming it.
func (b *Buffer) PeekByte() (byte, error) {
	if !b.IsReadable() {
		return 0, errs.ErrReadOutOfRange(1, 0)
	}
	return b.buf[b.readerIndex], nil
}

// PeekUint32 returns the big-endian uint32 at the reader cursor without consuming it.
func (b *Buffer) PeekUint32() (uint32, error) {
	if b.ReadableBytes() < 4 {
		return 0, errs.ErrReadOutOfRange(4, b.ReadableBytes())
	}
	return byteOrder.Uint32(b.buf[b.readerIndex:]), nil
}

// GetByte returns the byte at absolute index i, which must lie in [readerIndex, writerIndex).
func (b *Buffer) GetByte(i int) (byte, error) {
	if i < b.readerIndex || i >= b.writerIndex {
		return 0, errs.ErrIndexOutOfRangef(i, b.readerIndex, b.writerIndex-1)
	}
	return b.buf[i], nil
}

// Bytes returns the readable region. The slice aliases the buffer and is only
// valid until the next mutation.
func (b *Buffer) Bytes() []byte { return b.buf[b.readerIndex:b.writerIndex] }

// IndexOf returns the offset of needle relative to the reader cursor, or -1.
func (b *Buffer) IndexOf(needle []byte) int {
	return bytes.Index(b.Bytes(), needle)
}

// DiscardReadBytes drops the bytes before the reader cursor. Both cursors and
// the saved mark shift left by the discarded amount. It is a no-op when
// nothing has been read, so it can be called on every decode attempt.
func (b *Buffer) DiscardReadBytes() {
	if b.readerIndex == 0 {
		return
	}
	n := b.readerIndex
	copy(b.buf, b.buf[n:b.writerIndex])
	b.writerIndex -= n
	b.readerIndex = 0
	b.markedReaderIndex -= n
	if b.markedReaderIndex < 0 {
		b.markedReaderIndex = 0
	}
}

// Clear resets both cursors without releasing storage.
func (b *Buffer) Clear() {
	b.readerIndex = 0
	b.writerIndex = 0
	b.markedReaderIndex = 0
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(ridx: %d, widx: %d, cap: %d)", b.readerIndex, b.writerIndex, len(b.buf))
}
