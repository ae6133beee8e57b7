// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bittest builds bit streams for tests.
//
// W writes values in exactly the layout bitreader.R reads them: bits least
// significant first, multi-byte values little-endian, strings with a signed
// 32-bit length prefix and trailing NUL.
package bittest

import (
	"math"
	"math/bits"
	"unicode/utf16"
)

// W accumulates bits into a byte slice.
type W struct {
	buf  []byte
	nbit uint64
}

// Bytes returns the written data. A partially written final byte is padded
// with zero bits.
func (w *W) Bytes() []byte { return w.buf }

// Len returns the number of bits written.
func (w *W) Len() uint64 { return w.nbit }

// Bit writes a single bit.
func (w *W) Bit(v bool) *W {
	if w.nbit%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if v {
		w.buf[len(w.buf)-1] |= 1 << (w.nbit % 8)
	}
	w.nbit++
	return w
}

// Bits writes the low n bits of v, least significant first.
func (w *W) Bits(v uint64, n uint) *W {
	for i := uint(0); i < n; i++ {
		w.Bit(v&(1<<i) != 0)
	}
	return w
}

// Uint8 writes a byte.
func (w *W) Uint8(v uint8) *W { return w.Bits(uint64(v), 8) }

// Uint32 writes a 32-bit value.
func (w *W) Uint32(v uint32) *W { return w.Bits(uint64(v), 32) }

// Int32 writes a signed 32-bit value.
func (w *W) Int32(v int32) *W { return w.Uint32(uint32(v)) }

// Uint64 writes a 64-bit value.
func (w *W) Uint64(v uint64) *W { return w.Bits(v, 64) }

// Int64 writes a signed 64-bit value.
func (w *W) Int64(v int64) *W { return w.Uint64(uint64(v)) }

// Float32 writes an IEEE-754 binary32 value.
func (w *W) Float32(v float32) *W { return w.Uint32(math.Float32bits(v)) }

// Raw writes whole bytes.
func (w *W) Raw(b ...byte) *W {
	for _, v := range b {
		w.Uint8(v)
	}
	return w
}

// String writes a length-prefixed Latin-1 string with its trailing NUL.
//
// Runes outside of Latin-1 are written as their low byte.
func (w *W) String(s string) *W {
	runes := []rune(s)
	w.Int32(int32(len(runes) + 1))
	for _, c := range runes {
		w.Uint8(uint8(c))
	}
	return w.Uint8(0)
}

// WideString writes a length-prefixed UTF-16 string with its trailing NUL.
func (w *W) WideString(s string) *W {
	units := utf16.Encode([]rune(s))
	w.Int32(-int32(len(units) + 1))
	for _, u := range units {
		w.Bits(uint64(u), 16)
	}
	return w.Bits(0, 16)
}

// BoundedInt writes v using exactly bits.Len(max) bits.
func (w *W) BoundedInt(v, max uint32) *W {
	return w.Bits(uint64(v), uint(bits.Len32(max)))
}

// SerializedInt writes v in the adaptive-width layout read by
// bitreader.R.ReadSerializedInt.
func (w *W) SerializedInt(v, max uint32) *W {
	var value uint32
	for mask := uint32(1); mask != 0 && value+mask < max; mask <<= 1 {
		set := v&mask != 0
		w.Bit(set)
		if set {
			value |= mask
		}
	}
	return w
}

// Align pads with zero bits up to the next byte boundary.
func (w *W) Align() *W {
	for w.nbit%8 != 0 {
		w.Bit(false)
	}
	return w
}
