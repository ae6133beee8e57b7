// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package property

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ErrMalformedHeader is returned (wrapped) when a property tree runs out of
// data before its terminator is read.
var ErrMalformedHeader = errors.New("malformed property tree")

// UnknownTypeError is returned when a property carries a type tag outside of
// the known set.
type UnknownTypeError struct {
	// Key is the property's name.
	Key string
	// Type is the unrecognized type tag.
	Type string
	// BitOffset is the cursor position after the property's declared size.
	BitOffset uint64
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown property type %q for %q at bit %d (byte %d)",
		e.Type, e.Key, e.BitOffset, e.BitOffset/8)
}

// DepthError is returned when ArrayProperty nesting exceeds the Decoder's
// MaxDepth.
type DepthError struct {
	Key       string
	MaxDepth  int
	BitOffset uint64
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("array property %q at bit %d exceeds maximum nesting depth %d",
		e.Key, e.BitOffset, e.MaxDepth)
}

// SizeMismatchError is returned in strict mode when a property's declared
// payload size disagrees with the number of bytes its value consumed.
type SizeMismatchError struct {
	Key       string
	Kind      Kind
	Declared  uint64
	Consumed  uint64
	BitOffset uint64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s %q at bit %d declares %d bytes but consumed %d",
		e.Kind, e.Key, e.BitOffset, e.Declared, e.Consumed)
}

// truncated converts read errors caused by running out of data into
// ErrMalformedHeader; other errors are annotated and passed through.
func truncated(err error, what string, bit uint64) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrMalformedHeader, "reading %s at bit %d", what, bit)
	}
	return errors.Wrapf(err, "reading %s at bit %d", what, bit)
}
