package buffer

import (
	"io"
	"testing"

	"github.com/mohitkumar/mnet/errs"
	"github.com/stretchr/testify/require"
)

func TestBufferWriteRead(t *testing.T) {
	b := New(0)
	n, err := b.Write([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, 11, b.ReadableBytes())
	require.GreaterOrEqual(t, b.Capacity(), 11)

	got, err := b.ReadBytes(5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	require.Equal(t, 5, b.ReaderIndex())
	require.Equal(t, " world", string(b.Bytes()))
}

func TestBufferReadBytesOutOfRange(t *testing.T) {
	b := Wrap([]byte{1, 2, 3})
	_, err := b.ReadBytes(4)
	require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
	require.Equal(t, 0, b.ReaderIndex(), "failed read must not move the cursor")
}

func TestBufferPeekDoesNotAdvance(t *testing.T) {
	b := New(8)
	require.NoError(t, b.WriteByte('F'))
	require.NoError(t, b.WriteUint32(0x01020304))

	c, err := b.PeekByte()
	require.NoError(t, err)
	require.Equal(t, byte('F'), c)
	require.Equal(t, 0, b.ReaderIndex())

	require.NoError(t, b.Skip(1))
	v, err := b.PeekUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x01020304), v)
	require.Equal(t, 1, b.ReaderIndex())

	v, err = b.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x01020304), v)
	require.False(t, b.IsReadable())

	_, err = b.PeekUint32()
	require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
}

func TestBufferMarkReset(t *testing.T) {
	b := Wrap([]byte("abcdef"))
	require.NoError(t, b.Skip(1))
	b.MarkReaderIndex()
	_, err := b.ReadBytes(3)
	require.NoError(t, err)
	b.ResetReaderIndex()
	require.Equal(t, 1, b.ReaderIndex())
	require.Equal(t, "bcdef", string(b.Bytes()))
}

func TestBufferDiscardReadBytes(t *testing.T) {
	b := Wrap([]byte("0123456789"))
	require.NoError(t, b.Skip(4))
	b.MarkReaderIndex()
	require.NoError(t, b.Skip(2))

	b.DiscardReadBytes()
	require.Equal(t, 0, b.ReaderIndex())
	require.Equal(t, 4, b.WriterIndex())
	require.Equal(t, "6789", string(b.Bytes()))

	// mark was at 4, shifted by 6 and clamped
	b.ResetReaderIndex()
	require.Equal(t, 0, b.ReaderIndex())
}

func TestBufferDiscardReadBytesIdempotent(t *testing.T) {
	b := Wrap([]byte("abcdef"))
	require.NoError(t, b.Skip(2))
	b.DiscardReadBytes()
	before := string(b.Bytes())
	for i := 0; i < 5; i++ {
		b.DiscardReadBytes()
		require.Equal(t, before, string(b.Bytes()))
		require.Equal(t, 4, b.ReadableBytes())
	}
}

func TestBufferMarkSurvivesDiscard(t *testing.T) {
	b := Wrap([]byte("abcdef"))
	require.NoError(t, b.Skip(1))
	require.NoError(t, b.Skip(1))
	b.MarkReaderIndex()
	require.NoError(t, b.Skip(2))
	b.DiscardReadBytes()
	b.ResetReaderIndex()
	require.Equal(t, 0, b.ReaderIndex())
	require.Equal(t, "ef", string(b.Bytes()))
}

func TestBufferMaxCapacity(t *testing.T) {
	b := NewWithMax(2, 4)
	_, err := b.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	_, err = b.Write([]byte{5})
	require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
	require.Equal(t, 4, b.ReadableBytes())
}

func TestBufferIOReader(t *testing.T) {
	b := Wrap([]byte("xyz"))
	out, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, "xyz", string(out))

	n, err := b.Read(make([]byte, 1))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

func TestBufferIndexOfAndGetByte(t *testing.T) {
	b := Wrap([]byte("..x\r\ny"))
	require.NoError(t, b.Skip(2))
	require.Equal(t, 1, b.IndexOf([]byte("\r\n")))
	require.Equal(t, -1, b.IndexOf([]byte("zz")))

	c, err := b.GetByte(2)
	require.NoError(t, err)
	require.Equal(t, byte('x'), c)
	_, err = b.GetByte(1)
	require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
}

func TestBufferWriteBufferDrainsSource(t *testing.T) {
	dst := New(0)
	src := Wrap([]byte("abc"))
	require.NoError(t, dst.WriteBuffer(src))
	require.False(t, src.IsReadable())
	require.Equal(t, "abc", string(dst.Bytes()))
}
