// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package dataio adapts plain readers and writers to byte-oriented
// interfaces.
package dataio

import (
	"io"
)

// Reader can read both individual bytes and sequences of bytes.
type Reader interface {
	io.Reader
	io.ByteReader
}

// MakeReader returns r as a Reader, wrapping it if it cannot read individual
// bytes itself.
func MakeReader(r io.Reader) Reader {
	if dr, ok := r.(Reader); ok {
		return dr
	}
	return &byteReader{Reader: r}
}

type byteReader struct {
	io.Reader
	b [1]byte
}

func (r *byteReader) ReadByte() (byte, error) {
	for {
		switch amt, err := r.Read(r.b[:]); {
		case amt == 1:
			return r.b[0], nil
		case err != nil:
			return 0, err
		}
		// Zero bytes and no error: io.Reader permits this, so try again.
	}
}

// Writer can write both individual bytes and sequences of bytes.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// MakeWriter returns w as a Writer, wrapping it if it cannot write individual
// bytes itself.
func MakeWriter(w io.Writer) Writer {
	if dw, ok := w.(Writer); ok {
		return dw
	}
	return &byteWriter{Writer: w}
}

type byteWriter struct {
	io.Writer
	b [1]byte
}

func (w *byteWriter) WriteByte(c byte) error {
	w.b[0] = c
	switch amt, err := w.Write(w.b[:]); {
	case err != nil:
		return err
	case amt != 1:
		return io.ErrShortWrite
	default:
		return nil
	}
}
