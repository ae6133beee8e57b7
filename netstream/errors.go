// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

import (
	"fmt"

	"github.com/danjacques/gorope/support/fmtutil"
)

// FrameError is returned when a frame's timestamps fail validation, which
// means the stream is no longer aligned on a frame boundary.
type FrameError struct {
	// Frame is the index of the rejected frame within its session.
	Frame int
	// BitOffset is the netstream offset at which the frame began.
	BitOffset uint64

	CurrentTime float32
	DeltaTime   float32

	// NextBits holds up to 64 bits following the timestamps. They are not
	// consumed.
	NextBits fmtutil.Bits
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d at bit %d has invalid times (current=%g, delta=%g); next bits: %s",
		e.Frame, e.BitOffset, e.CurrentTime, e.DeltaTime, e.NextBits.Bytes())
}

// UnknownActorError is returned when an update references an actor that is
// not registered.
type UnknownActorError struct {
	ActorID   ActorID
	BitOffset uint64
}

func (e *UnknownActorError) Error() string {
	return fmt.Sprintf("update for unregistered actor %d at bit %d", e.ActorID, e.BitOffset)
}

// PropertyError is returned when a replicated property value cannot be
// decoded.
type PropertyError struct {
	ActorID   ActorID
	Archetype string
	Property  string
	BitOffset uint64

	// Partial holds the fields decoded for the actor before the failure.
	Partial *Fields

	cause error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("decoding property %q of actor %d (%s) at bit %d after %d field(s): %v",
		e.Property, e.ActorID, e.Archetype, e.BitOffset, e.Partial.Len(), e.cause)
}

// Cause returns the codec error. It satisfies github.com/pkg/errors.Cause.
func (e *PropertyError) Cause() error { return e.cause }

// Unwrap returns the codec error.
func (e *PropertyError) Unwrap() error { return e.cause }

// IndexError is returned when an index falls outside the table it addresses.
type IndexError struct {
	What  string
	Index uint32
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.What, e.Index, e.Len)
}
