// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/danjacques/gorope/support/protostream"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/ptypes/struct"
	"github.com/golang/protobuf/ptypes/wrappers"
	"github.com/pkg/errors"
)

// maxFrameRecordSize bounds the size of a single frame record.
const maxFrameRecordSize = 64 * 1024 * 1024

// Reader reads frames from an archive.
type Reader struct {
	path string
	md   *Metadata

	fd  *os.File
	fsr frameStreamReader
	dec protostream.Decoder
}

// Open opens the archive at path.
func Open(path string) (*Reader, error) {
	md, err := LoadMetadata(path)
	if err != nil {
		return nil, errors.Wrap(err, "loading metadata")
	}

	fd, err := os.Open(filepath.Join(path, md.FramesFile))
	if err != nil {
		return nil, errors.Wrap(err, "opening frames file")
	}

	r := Reader{
		path: path,
		md:   md,
		fd:   fd,
		dec:  protostream.Decoder{MaxMessageSize: maxFrameRecordSize},
	}
	if err := r.fsr.reset(fd, md.Compression); err != nil {
		_ = fd.Close()
		return nil, err
	}
	return &r, nil
}

// Path returns the path of the archive.
func (r *Reader) Path() string { return r.path }

// Metadata returns the archive's metadata.
func (r *Reader) Metadata() *Metadata { return r.md }

// ReadFrameJSON returns the next frame's JSON document, exactly as it was
// written.
//
// At the end of the stream, ReadFrameJSON returns io.EOF.
func (r *Reader) ReadFrameJSON() ([]byte, error) {
	var rec wrappers.BytesValue
	if _, err := r.dec.Read(r.fsr, &rec); err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// ReadFrame returns the next frame as a protobuf Struct.
//
// Struct fields are unordered and Struct numbers are float64, so integers
// beyond 2^53 lose precision. ReadFrameJSON returns the exact document.
//
// At the end of the stream, ReadFrame returns io.EOF.
func (r *Reader) ReadFrame() (*structpb.Struct, error) {
	data, err := r.ReadFrameJSON()
	if err != nil {
		return nil, err
	}

	var st structpb.Struct
	if err := jsonpb.Unmarshal(bytes.NewReader(data), &st); err != nil {
		return nil, errors.Wrap(err, "decoding frame record")
	}
	return &st, nil
}

// Close closes the archive's frame file.
func (r *Reader) Close() error { return r.fd.Close() }
