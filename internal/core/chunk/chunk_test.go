package chunk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_ScalarRoundTrip(t *testing.T) {
	c := New(0)
	c.WriteInt8(-3)
	c.WriteUint16(0xBEEF)
	c.WriteInt32(-7)
	c.WriteInt64(1 << 40)
	c.WriteFloat32(1.5)
	c.WriteFloat64(-2.25)
	c.WriteBool(true)
	c.WriteString("hello")
	c.WriteBytes([]byte{1, 2, 3})

	c.Start()
	assert.Equal(t, int8(-3), c.ReadInt8())
	assert.Equal(t, uint16(0xBEEF), c.ReadUint16())
	assert.Equal(t, int32(-7), c.ReadInt32())
	assert.Equal(t, int64(1<<40), c.ReadInt64())
	assert.Equal(t, float32(1.5), c.ReadFloat32())
	assert.Equal(t, -2.25, c.ReadFloat64())
	assert.True(t, c.ReadBool())
	assert.Equal(t, "hello", c.ReadString())
	assert.Equal(t, []byte{1, 2, 3}, c.ReadBytes())
	assert.Zero(t, c.Remaining())
}

func TestChunk_Bits(t *testing.T) {
	bits := []bool{true, false, false, true, true, false, true, false, true, true}
	c := New(4)
	c.WriteBits(bits)
	assert.Equal(t, 2, c.Len())

	c.Start()
	assert.Equal(t, bits, c.ReadBits(len(bits)))
}

func TestChunk_Arrays(t *testing.T) {
	c := New(0)
	c.WriteFloat64s([]float64{1, 2, 3})
	WriteArray(c, []int32{4, 5}, func(c *Chunk, v int32) { c.WriteInt32(v) })

	c.Start()
	assert.Equal(t, []float64{1, 2, 3}, c.ReadFloat64s())
	assert.Equal(t, []int32{4, 5}, ReadArray(c, 4, func(c *Chunk) int32 { return c.ReadInt32() }))
}

func TestChunk_GrowsGeometricallyAndNeverShrinks(t *testing.T) {
	c := New(0)
	for i := 0; i < 1000; i++ {
		c.WriteInt32(int32(i))
	}
	grown := c.Cap()
	require.GreaterOrEqual(t, grown, 4000)

	c.Reset()
	c.WriteInt32(1)
	assert.Equal(t, grown, c.Cap())
	assert.Equal(t, 4, c.Len())
}

func TestChunk_WriteTruncatesValidRegion(t *testing.T) {
	c := New(0)
	c.WriteInt64(1)
	c.WriteInt64(2)
	c.Start()
	c.WriteInt32(9)
	assert.Equal(t, 4, c.Len())
}

func TestChunk_ReadPastEndPanics(t *testing.T) {
	c := New(0)
	c.WriteInt32(1)
	c.Start()
	c.ReadInt32()

	assert.PanicsWithError(t, "chunk: read out of bounds: pos=4 want=4 len=4", func() {
		c.ReadInt32()
	})
}

func TestChunk_HugeLengthPrefixIsBoundsError(t *testing.T) {
	c := New(0)
	c.WriteInt32(1 << 30)
	c.Start()

	var err error
	func() {
		defer Recover(&err)
		c.ReadString()
	}()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestChunk_NegativeLengthPrefix(t *testing.T) {
	c := New(0)
	c.WriteInt32(-1)
	c.Start()

	var err error
	func() {
		defer Recover(&err)
		c.ReadBytes()
	}()
	assert.ErrorIs(t, err, ErrNegativeLength)
}

func TestChunk_RecoverRethrowsForeignPanics(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		var err error
		defer Recover(&err)
		panic("boom")
	})
}

func TestChunk_CloneIsIndependent(t *testing.T) {
	c := New(0)
	c.WriteInt32(5)
	cp := c.Clone()
	c.Reset()
	c.WriteInt32(6)

	assert.Equal(t, int32(5), Wrap(cp).ReadInt32())
}
