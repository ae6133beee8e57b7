// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package fmtutil contains formatting helpers for diagnostics.
package fmtutil

import (
	"bytes"
	"fmt"
)

// HexSlice is a byte slice that renders as a sequence of hex bytes, instead
// of the default decimal bytes.
//
// Output as: "[4]byte{0x10, 0x20, 0x30, 0x40}"
//
// It can be used for easy lazy hex dumping.
type HexSlice []byte

func (hs HexSlice) String() string {
	var sb bytes.Buffer
	sb.Grow((6 * len(hs)) + 16) // 16 is more than we need for static content.
	fmt.Fprintf(&sb, "[%d]byte{", len(hs))
	for i, b := range hs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "0x%02X", b)
	}
	sb.WriteString("}")
	return sb.String()
}

// Bits is a run of bits taken from a bit stream. Value holds the first bit
// read in its least significant position.
//
// Bits renders in stream order, grouped in bytes:
//
//	"10110000 1"
type Bits struct {
	Value uint64
	Len   uint
}

func (b Bits) String() string {
	var sb bytes.Buffer
	sb.Grow(int(b.Len) + int(b.Len)/8)
	for i := uint(0); i < b.Len; i++ {
		if i > 0 && i%8 == 0 {
			sb.WriteByte(' ')
		}
		if b.Value&(1<<i) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Bytes returns the bits packed into bytes, first bit in the least
// significant position of the first byte. A partial final byte is included.
func (b Bits) Bytes() HexSlice {
	n := (b.Len + 7) / 8
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(b.Value >> (8 * uint(i)))
	}
	if rem := b.Len % 8; rem != 0 {
		out[n-1] &= byte(1<<rem) - 1
	}
	return out
}
