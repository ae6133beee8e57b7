// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bitreader

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// MaxStringLength is the largest string length, in characters, that
// ReadString will accept.
const MaxStringLength = 1 << 20

// ReadString reads a length-prefixed string.
//
// The prefix is a signed 32-bit integer. A positive length n is followed by n
// single-byte Latin-1 characters; a negative length -n is followed by n UTF-16
// little-endian code units. Either form normally carries a trailing NUL, which
// is stripped.
func (r *R) ReadString() (string, error) {
	length, err := r.ReadInt32()
	if err != nil {
		return "", err
	}

	switch {
	case length == 0:
		return "", nil

	case length > 0:
		if length > MaxStringLength {
			return "", errors.Errorf("string length %d exceeds maximum (%d)", length, MaxStringLength)
		}
		raw, err := r.Next(int(length))
		if err != nil {
			return "", err
		}
		v, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", errors.Wrap(err, "decoding Latin-1 string")
		}
		return strings.TrimRight(string(v), "\x00"), nil

	default:
		units := -int64(length)
		if units > MaxStringLength {
			return "", errors.Errorf("wide string length %d exceeds maximum (%d)", units, MaxStringLength)
		}
		if uint64(units)*16 > r.Remaining() {
			return "", io.ErrUnexpectedEOF
		}
		raw, err := r.Next(int(units) * 2)
		if err != nil {
			return "", err
		}
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		v, err := dec.Bytes(raw)
		if err != nil {
			return "", errors.Wrap(err, "decoding UTF-16 string")
		}
		return strings.TrimRight(string(v), "\x00"), nil
	}
}
