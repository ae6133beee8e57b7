// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bitreader offers R, a slice-backed cursor that reads individual
// bits as well as byte-sized values.
//
// Bits are consumed least-significant first within each byte, which is the
// order Unreal Engine's bit streams use. Multi-bit values are assembled in
// the same order, so a 32-bit read that happens to fall on a byte boundary
// yields the same value as a little-endian uint32 read of those four bytes.
//
// R tracks its position in bits. Byte-oriented helpers (io.Reader, Seek) are
// offered for the byte-aligned regions of a file; they work at any bit
// position, but are only cheap when the cursor is aligned.
//
// Like the byte reader it grew out of, R exposes zero-copy reads (Next) that
// return slices of its underlying Buffer when aligned, and honors AlwaysCopy
// when callers need to own the returned data.
package bitreader

import (
	"io"
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// R is a bit cursor over an immutable byte Buffer.
//
// R can be copied, creating a snapshot of its current state.
type R struct {
	// Buffer is the backing buffer for this reader.
	Buffer []byte

	// AlwaysCopy, if true, causes zero-copy methods to return copies of their
	// backing data instead of direct references.
	AlwaysCopy bool

	// pos is the R's position within Buffer, in bits.
	pos uint64
}

var _ interface {
	io.Reader
	io.ByteReader
	io.Seeker
} = (*R)(nil)

// New returns an R over buf, positioned at its first bit.
func New(buf []byte) *R { return &R{Buffer: buf} }

// Len returns the total number of bits in the reader.
func (r *R) Len() uint64 { return uint64(len(r.Buffer)) * 8 }

// Pos returns the current bit offset.
func (r *R) Pos() uint64 { return r.pos }

// BytePos returns the current offset in whole bytes, rounded down.
func (r *R) BytePos() int64 { return int64(r.pos / 8) }

// Aligned returns true if the cursor sits on a byte boundary.
func (r *R) Aligned() bool { return r.pos%8 == 0 }

// Remaining returns the number of bits remaining in the reader.
func (r *R) Remaining() uint64 {
	if l := r.Len(); r.pos < l {
		return l - r.pos
	}
	return 0
}

// SeekBit moves the cursor to a bit offset, interpreted according to whence
// like io.Seeker.
//
// Unlike Seek, SeekBit allows positioning the cursor exactly at the end of the
// buffer, since that is where a fully-consumed bit stream legitimately rests.
func (r *R) SeekBit(offset int64, whence int) (uint64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(r.pos)
	case io.SeekEnd:
		base = int64(r.Len())
	default:
		return r.pos, errors.Errorf("invalid whence %d", whence)
	}

	newPos := base + offset
	if newPos < 0 || uint64(newPos) > r.Len() {
		return r.pos, errors.Errorf("bit seek to %d outside of bounds (%d)", newPos, r.Len())
	}
	r.pos = uint64(newPos)
	return r.pos, nil
}

// Seek implements io.Seeker, in bytes.
//
// Seeking relative to the current position preserves any sub-byte offset.
func (r *R) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart, io.SeekCurrent, io.SeekEnd:
	default:
		return r.BytePos(), errors.Errorf("invalid whence %d", whence)
	}
	if _, err := r.SeekBit(offset*8, whence); err != nil {
		return r.BytePos(), errors.New("seek outside of bounds")
	}
	return r.BytePos(), nil
}

func (r *R) require(n uint64) error {
	switch rem := r.Remaining(); {
	case rem >= n:
		return nil
	case rem == 0:
		return io.EOF
	default:
		return io.ErrUnexpectedEOF
	}
}

// ReadBit reads a single bit.
func (r *R) ReadBit() (bool, error) {
	if err := r.require(1); err != nil {
		return false, err
	}
	v := r.Buffer[r.pos/8]&(1<<(r.pos%8)) != 0
	r.pos++
	return v, nil
}

// ReadBits reads n bits (n <= 64) into an unsigned integer. The first bit read
// becomes the least significant bit of the result.
func (r *R) ReadBits(n uint) (uint64, error) {
	v, err := r.PeekBits(n)
	if err != nil {
		return 0, err
	}
	r.pos += uint64(n)
	return v, nil
}

// PeekBits is like ReadBits, but does not advance the cursor.
func (r *R) PeekBits(n uint) (uint64, error) {
	if n > 64 {
		return 0, errors.Errorf("cannot read %d bits into a 64-bit value", n)
	}
	if err := r.require(uint64(n)); err != nil {
		return 0, err
	}

	var v uint64
	pos := r.pos
	for i := uint(0); i < n; {
		// Consume as many bits as possible from the current byte.
		shift := uint(pos % 8)
		take := 8 - shift
		if take > n-i {
			take = n - i
		}
		chunk := uint64(r.Buffer[pos/8]>>shift) & ((1 << take) - 1)
		v |= chunk << i

		i += take
		pos += uint64(take)
	}
	return v, nil
}

// ReadUint8 reads an 8-bit unsigned integer.
func (r *R) ReadUint8() (uint8, error) {
	v, err := r.ReadBits(8)
	return uint8(v), err
}

// ReadUint32 reads a 32-bit little-endian unsigned integer.
func (r *R) ReadUint32() (uint32, error) {
	v, err := r.ReadBits(32)
	return uint32(v), err
}

// ReadInt32 reads a 32-bit little-endian signed integer.
func (r *R) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a 64-bit little-endian unsigned integer.
func (r *R) ReadUint64() (uint64, error) { return r.ReadBits(64) }

// ReadInt64 reads a 64-bit little-endian signed integer.
func (r *R) ReadInt64() (int64, error) {
	v, err := r.ReadBits(64)
	return int64(v), err
}

// ReadFloat32 reads a little-endian IEEE-754 binary32 value.
func (r *R) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadBoundedInt reads an integer whose bit width is derived from max: the
// value occupies exactly bits.Len(max) bits.
func (r *R) ReadBoundedInt(max uint32) (uint32, error) {
	v, err := r.ReadBits(uint(bits.Len32(max)))
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadSerializedInt reads an Unreal-style serialized integer whose value is
// strictly less than max.
//
// Bits are read one at a time, least significant first, for as long as the
// next bit could still produce a value below max. The resulting width
// therefore depends on the bits already read.
func (r *R) ReadSerializedInt(max uint32) (uint32, error) {
	var value uint32
	for mask := uint32(1); mask != 0 && value+mask < max; mask <<= 1 {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit {
			value |= mask
		}
	}
	return value, nil
}

// Read implements io.Reader.
//
// Note that using Read cause data to be copied.
func (r *R) Read(b []byte) (amt int, err error) {
	for amt < len(b) {
		if r.Remaining() < 8 {
			break
		}
		if b[amt], err = r.ReadByte(); err != nil {
			return
		}
		amt++
	}
	if r.Remaining() < 8 {
		err = io.EOF
	}
	return
}

// ReadByte implements io.ByteReader.
func (r *R) ReadByte() (byte, error) {
	if r.Remaining() < 8 {
		return 0, io.EOF
	}
	return r.ReadUint8()
}

// Next returns the next n bytes in r, advancing r.
//
// When r is byte-aligned, Next is zero-copy and returns a slice of the
// underlying Buffer unless AlwaysCopy is true. Unaligned reads are assembled
// into a new slice.
//
// If there are fewer than n bytes in r, Next returns io.ErrUnexpectedEOF and
// does not advance.
func (r *R) Next(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Errorf("invalid byte count %d", n)
	}
	if r.Remaining() < uint64(n)*8 {
		return nil, io.ErrUnexpectedEOF
	}

	if r.Aligned() {
		start := r.pos / 8
		v := r.Buffer[start : start+uint64(n)]
		if r.AlwaysCopy {
			v = append([]byte(nil), v...)
		}
		r.pos += uint64(n) * 8
		return v, nil
	}

	v := make([]byte, n)
	for i := range v {
		b, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		v[i] = b
	}
	return v, nil
}
