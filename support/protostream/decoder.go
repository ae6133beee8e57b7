// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package protostream reads and writes streams of length-prefixed protobuf
// messages.
package protostream

import (
	"bytes"
	"fmt"
	"io"

	"github.com/danjacques/gorope/support/dataio"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// The maximum varint size, in bytes. This is the total number of bytes needed
// to encode the largest uint64 using proto.EncodeVarint.
const maxVarintSizeU64 = 10

// MessageTooLargeError is returned when a message's size prefix exceeds the
// Decoder's MaxMessageSize.
type MessageTooLargeError struct {
	Size uint64
	Max  int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("message size %d exceeds maximum %d", e.Size, e.Max)
}

// Decoder is a reusable object which decodes a series of messages from a proto
// stream.
type Decoder struct {
	// MaxMessageSize, if > 0, is the largest message that will be read. Larger
	// size prefixes return a MessageTooLargeError without reading the message.
	MaxMessageSize int

	buf     *proto.Buffer
	dataBuf bytes.Buffer

	sizeBuf [maxVarintSizeU64]byte
}

func (d *Decoder) bufferNextVarint(r dataio.Reader) ([]byte, error) {
	sizeBuf := d.sizeBuf[:0]
	for len(sizeBuf) < maxVarintSizeU64 {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(sizeBuf) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return sizeBuf, err
		}

		sizeBuf = append(sizeBuf, b)
		if (b & 0x80) == 0 {
			// Varint does not have continuation bit set.
			return sizeBuf, nil
		}
	}
	return sizeBuf, errors.New("size prefix is not a valid varint")
}

// Read reads the next message into pb, returning the number of bytes
// consumed.
//
// The size prefix is read byte-by-byte, so r should be buffered. At a clean
// end of stream, Read returns io.EOF; a stream that ends inside a message
// returns io.ErrUnexpectedEOF.
func (d *Decoder) Read(r dataio.Reader, pb proto.Message) (int64, error) {
	if d.buf == nil {
		d.buf = proto.NewBuffer(nil)
	}

	// The "proto" package can't find the end of a varint in a stream, so we
	// read until a byte without its continuation bit.
	sizeBuf, err := d.bufferNextVarint(r)
	count := int64(len(sizeBuf))
	if err != nil {
		return count, err
	}

	size, amt := proto.DecodeVarint(sizeBuf)
	if amt != len(sizeBuf) {
		panic("incompatible proto varint encoding")
	}
	if d.MaxMessageSize > 0 && size > uint64(d.MaxMessageSize) {
		return count, &MessageTooLargeError{Size: size, Max: d.MaxMessageSize}
	}

	d.dataBuf.Reset()
	d.dataBuf.Grow(int(size))
	lr := io.LimitedReader{
		R: r,
		N: int64(size),
	}
	readCount, err := d.dataBuf.ReadFrom(&lr)
	count += readCount
	if err != nil {
		return count, err
	}
	if uint64(readCount) != size {
		return count, io.ErrUnexpectedEOF
	}

	d.buf.SetBuf(d.dataBuf.Bytes())
	return count, d.buf.Unmarshal(pb)
}
