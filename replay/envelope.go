// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package replay

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/danjacques/gorope/support/bitreader"

	"github.com/lunixbochs/struc"
)

// EngineTag is the engine class named at the start of every supported
// replay.
const EngineTag = "TAGame.Replay_Soccar_TA"

const (
	// preludeSize is the size of Prelude on the wire.
	preludeSize = 16

	// sizedRegionStart is the offset at which Prelude.HeaderSize begins
	// counting.
	sizedRegionStart = 8
)

// Prelude is the fixed-size start of a replay file.
type Prelude struct {
	// HeaderSize is the size of the header, counted from the end of CRC.
	HeaderSize   uint32 `struc:",little"`
	CRC          [4]byte
	VersionMajor uint32 `struc:",little"`
	VersionMinor uint32 `struc:",little"`
}

// CRCString returns the CRC as lowercase hex, in file order.
func (p *Prelude) CRCString() string { return hex.EncodeToString(p.CRC[:]) }

// Version returns the version as "major.minor".
func (p *Prelude) Version() string { return fmt.Sprintf("%d.%d", p.VersionMajor, p.VersionMinor) }

// Envelope locates the regions of a replay file.
type Envelope struct {
	Prelude

	// Legacy is true if the file predates the 4-byte marker that follows the
	// prelude.
	Legacy bool

	// HeaderStart and HeaderEnd bound the header's property tree, in bits.
	HeaderStart uint64
	HeaderEnd   uint64

	// BodyStart is the byte offset of the body.
	BodyStart int64
}

// EnvelopeError is returned when a file is not a supported replay.
type EnvelopeError struct {
	// Offset is the byte offset at which the problem was found.
	Offset int64
	Reason string

	cause error
}

func (e *EnvelopeError) Error() string {
	msg := fmt.Sprintf("invalid replay envelope at byte %d: %s", e.Offset, e.Reason)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Cause returns the underlying error, if any.
func (e *EnvelopeError) Cause() error { return e.cause }

// Unwrap returns the underlying error, if any.
func (e *EnvelopeError) Unwrap() error { return e.cause }

// ReadEnvelope parses the envelope of the replay held in data.
func ReadEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := struc.Unpack(bytes.NewReader(data), &env.Prelude); err != nil {
		return nil, &EnvelopeError{Offset: 0, Reason: "truncated prelude", cause: err}
	}
	if env.HeaderSize < sizedRegionStart {
		return nil, &EnvelopeError{Offset: 0, Reason: fmt.Sprintf("header size %d is too small", env.HeaderSize)}
	}
	if end := int64(sizedRegionStart) + int64(env.HeaderSize); end > int64(len(data)) {
		return nil, &EnvelopeError{
			Offset: 0,
			Reason: fmt.Sprintf("header size %d extends past the end of the %d-byte file", env.HeaderSize, len(data)),
			cause:  io.ErrUnexpectedEOF,
		}
	}

	pos := int64(preludeSize)
	if len(data) < preludeSize+4 {
		return nil, &EnvelopeError{Offset: pos, Reason: "truncated before engine tag", cause: io.ErrUnexpectedEOF}
	}
	if binary.LittleEndian.Uint32(data[pos:]) == 0 {
		pos += 4
	} else {
		// Older files go straight into the engine tag.
		env.Legacy = true
	}

	r := bitreader.New(data)
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return nil, &EnvelopeError{Offset: pos, Reason: "seeking to engine tag", cause: err}
	}
	tag, err := r.ReadString()
	if err != nil {
		return nil, &EnvelopeError{Offset: pos, Reason: "reading engine tag", cause: err}
	}
	if tag != EngineTag {
		return nil, &EnvelopeError{Offset: pos, Reason: fmt.Sprintf("unsupported engine tag %q", tag)}
	}

	// The region is measured from the end of the tag, so it may run past the
	// header into the body. It never runs past the file.
	env.HeaderStart = r.Pos()
	env.HeaderEnd = env.HeaderStart + uint64(env.HeaderSize-sizedRegionStart)*8
	if max := r.Len(); env.HeaderEnd > max {
		env.HeaderEnd = max
	}
	env.BodyStart = sizedRegionStart + int64(env.HeaderSize)
	return &env, nil
}

// header returns a cursor over the header region of data.
//
// The cursor spans the file from its start, so its offsets are file offsets.
func (env *Envelope) header(data []byte) (*bitreader.R, error) {
	r := bitreader.New(data[:env.HeaderEnd/8])
	if _, err := r.SeekBit(int64(env.HeaderStart), io.SeekStart); err != nil {
		return nil, err
	}
	return r, nil
}
