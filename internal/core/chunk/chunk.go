// Package chunk implements the growable byte buffer savestates are written
// into. The buffer has no notion of entities; it only offers typed,
// cursor-based read and write primitives.
//
// There are no field tags in the format. Readers must consume exactly what
// writers produced, in the same order. Reading past the valid region panics
// with a *BoundsError; callers that want an error value recover it with
// Recover.
package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const minGrow = 64

var (
	// ErrOutOfBounds is wrapped by every BoundsError.
	ErrOutOfBounds = errors.New("chunk: read out of bounds")
	// ErrNegativeLength reports a negative length prefix.
	ErrNegativeLength = errors.New("chunk: negative length prefix")
)

// BoundsError describes a read that would have left the valid region.
type BoundsError struct {
	Pos  int
	Want int
	Len  int
	Err  error
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%v: pos=%d want=%d len=%d", e.Err, e.Pos, e.Want, e.Len)
}

func (e *BoundsError) Unwrap() error { return e.Err }

// Chunk is an append/cursor byte buffer. It is not safe for concurrent use;
// hand a Clone to any goroutine that must outlive the next write.
type Chunk struct {
	buf []byte
	pos int
	n   int
}

// New returns an empty chunk with the given initial capacity.
func New(capacity int) *Chunk {
	if capacity < 0 {
		capacity = 0
	}
	return &Chunk{buf: make([]byte, 0, capacity)}
}

// Wrap returns a chunk positioned at the start of b whose valid region is
// all of b. The chunk aliases b.
func Wrap(b []byte) *Chunk {
	return &Chunk{buf: b, n: len(b)}
}

// Start moves the cursor back to zero. Storage and the valid region are kept,
// so a freshly written chunk can be read back after Start.
func (c *Chunk) Start() {
	c.pos = 0
}

// Reset empties the chunk for a new capture without releasing storage.
func (c *Chunk) Reset() {
	c.pos = 0
	c.n = 0
}

// Bytes returns the valid region. The slice aliases the chunk's storage and
// is invalidated by the next write.
func (c *Chunk) Bytes() []byte { return c.buf[:c.n] }

// Clone returns an independent copy of the valid region.
func (c *Chunk) Clone() []byte {
	out := make([]byte, c.n)
	copy(out, c.buf[:c.n])
	return out
}

// CopyTo copies the valid region into dst, growing it as needed, and returns
// the result.
func (c *Chunk) CopyTo(dst []byte) []byte {
	return append(dst[:0], c.buf[:c.n]...)
}

func (c *Chunk) Len() int       { return c.n }
func (c *Chunk) Cap() int       { return cap(c.buf) }
func (c *Chunk) Pos() int       { return c.pos }
func (c *Chunk) Remaining() int { return c.n - c.pos }

// reserve makes room for k bytes at the cursor and returns the slice to fill.
// The valid region is truncated to the end of the new write.
func (c *Chunk) reserve(k int) []byte {
	need := c.pos + k
	if need > cap(c.buf) {
		newCap := 2 * cap(c.buf)
		if newCap < minGrow {
			newCap = minGrow
		}
		if newCap < need {
			newCap = need
		}
		grown := make([]byte, need, newCap)
		copy(grown, c.buf[:c.pos])
		c.buf = grown
	} else if need > len(c.buf) {
		c.buf = c.buf[:need]
	}
	out := c.buf[c.pos:need]
	c.pos = need
	c.n = need
	return out
}

// take returns the next k bytes of the valid region and advances the cursor.
func (c *Chunk) take(k int) []byte {
	if k < 0 {
		panic(&BoundsError{Pos: c.pos, Want: k, Len: c.n, Err: ErrNegativeLength})
	}
	if c.pos+k > c.n {
		panic(&BoundsError{Pos: c.pos, Want: k, Len: c.n, Err: ErrOutOfBounds})
	}
	out := c.buf[c.pos : c.pos+k]
	c.pos += k
	return out
}

// WriteFixed copies a raw record of known size.
func (c *Chunk) WriteFixed(b []byte) {
	copy(c.reserve(len(b)), b)
}

// ReadFixed returns the next n bytes. The slice aliases the chunk.
func (c *Chunk) ReadFixed(n int) []byte {
	return c.take(n)
}

func (c *Chunk) WriteUint8(v uint8) { c.reserve(1)[0] = v }
func (c *Chunk) ReadUint8() uint8   { return c.take(1)[0] }

func (c *Chunk) WriteInt8(v int8) { c.WriteUint8(uint8(v)) }
func (c *Chunk) ReadInt8() int8   { return int8(c.ReadUint8()) }

func (c *Chunk) WriteBool(v bool) {
	if v {
		c.WriteUint8(1)
		return
	}
	c.WriteUint8(0)
}

func (c *Chunk) ReadBool() bool { return c.ReadUint8() != 0 }

func (c *Chunk) WriteUint16(v uint16) { binary.LittleEndian.PutUint16(c.reserve(2), v) }
func (c *Chunk) ReadUint16() uint16   { return binary.LittleEndian.Uint16(c.take(2)) }

func (c *Chunk) WriteInt16(v int16) { c.WriteUint16(uint16(v)) }
func (c *Chunk) ReadInt16() int16   { return int16(c.ReadUint16()) }

func (c *Chunk) WriteUint32(v uint32) { binary.LittleEndian.PutUint32(c.reserve(4), v) }
func (c *Chunk) ReadUint32() uint32   { return binary.LittleEndian.Uint32(c.take(4)) }

func (c *Chunk) WriteInt32(v int32) { c.WriteUint32(uint32(v)) }
func (c *Chunk) ReadInt32() int32   { return int32(c.ReadUint32()) }

func (c *Chunk) WriteUint64(v uint64) { binary.LittleEndian.PutUint64(c.reserve(8), v) }
func (c *Chunk) ReadUint64() uint64   { return binary.LittleEndian.Uint64(c.take(8)) }

func (c *Chunk) WriteInt64(v int64) { c.WriteUint64(uint64(v)) }
func (c *Chunk) ReadInt64() int64   { return int64(c.ReadUint64()) }

func (c *Chunk) WriteFloat32(v float32) { c.WriteUint32(math.Float32bits(v)) }
func (c *Chunk) ReadFloat32() float32   { return math.Float32frombits(c.ReadUint32()) }

func (c *Chunk) WriteFloat64(v float64) { c.WriteUint64(math.Float64bits(v)) }
func (c *Chunk) ReadFloat64() float64   { return math.Float64frombits(c.ReadUint64()) }

// WriteLen writes a length prefix.
func (c *Chunk) WriteLen(n int) { c.WriteInt32(int32(n)) }

// ReadLen reads a length prefix, panicking on a negative value or one that
// could not possibly fit in the remaining bytes at minSize bytes per element.
func (c *Chunk) ReadLen(minSize int) int {
	start := c.pos
	n := int(c.ReadInt32())
	if n < 0 {
		panic(&BoundsError{Pos: start, Want: n, Len: c.n, Err: ErrNegativeLength})
	}
	if minSize > 0 && n > c.Remaining()/minSize {
		panic(&BoundsError{Pos: c.pos, Want: n * minSize, Len: c.n, Err: ErrOutOfBounds})
	}
	return n
}

// WriteBytes writes a length-prefixed byte array.
func (c *Chunk) WriteBytes(b []byte) {
	c.WriteLen(len(b))
	c.WriteFixed(b)
}

// ReadBytes reads a length-prefixed byte array into a fresh slice.
func (c *Chunk) ReadBytes() []byte {
	n := c.ReadLen(1)
	out := make([]byte, n)
	copy(out, c.take(n))
	return out
}

func (c *Chunk) WriteString(s string) {
	c.WriteLen(len(s))
	copy(c.reserve(len(s)), s)
}

func (c *Chunk) ReadString() string {
	n := c.ReadLen(1)
	return string(c.take(n))
}

// WriteBits packs bits eight to a byte, least significant bit first. No
// length is written; the reader must know it.
func (c *Chunk) WriteBits(bits []bool) {
	out := c.reserve((len(bits) + 7) / 8)
	clear(out)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << (i % 8)
		}
	}
}

// ReadBits unpacks n bits written by WriteBits.
func (c *Chunk) ReadBits(n int) []bool {
	in := c.take((n + 7) / 8)
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = in[i/8]&(1<<(i%8)) != 0
	}
	return bits
}

// WriteFloat64s writes a length-prefixed float64 vector.
func (c *Chunk) WriteFloat64s(v []float64) {
	c.WriteLen(len(v))
	for _, f := range v {
		c.WriteFloat64(f)
	}
}

func (c *Chunk) ReadFloat64s() []float64 {
	n := c.ReadLen(8)
	out := make([]float64, n)
	for i := range out {
		out[i] = c.ReadFloat64()
	}
	return out
}

// WriteArray writes a length-prefixed homogeneous sequence using put for
// each element.
func WriteArray[T any](c *Chunk, items []T, put func(*Chunk, T)) {
	c.WriteLen(len(items))
	for _, item := range items {
		put(c, item)
	}
}

// ReadArray reads a sequence written by WriteArray. minSize is the smallest
// encoded element size and guards against absurd prefixes; pass 0 to skip it.
func ReadArray[T any](c *Chunk, minSize int, get func(*Chunk) T) []T {
	n := c.ReadLen(minSize)
	out := make([]T, n)
	for i := range out {
		out[i] = get(c)
	}
	return out
}

// Recover converts a chunk bounds panic into an error stored in *err. Other
// panics are re-raised. Use it as `defer chunk.Recover(&err)`.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	var be *BoundsError
	if e, ok := r.(error); ok && errors.As(e, &be) {
		*err = be
		return
	}
	panic(r)
}
