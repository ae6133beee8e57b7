// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package netstream decodes the bit-packed frame stream of a replay.
//
// The netstream is a sequence of frames. Each frame holds two timestamps and
// a list of actor records that spawn, update or delete actors. An actor's
// archetype is only transmitted when it spawns, so decoding is stateful: a
// Session tracks live actors in a Registry across every frame it decodes.
//
// There are no frame boundary markers. A misread anywhere shifts every
// subsequent read, which is detected (eventually) by timestamp validation.
package netstream

import (
	"strings"

	"github.com/danjacques/gorope/support/bitreader"
	"github.com/danjacques/gorope/support/logging"

	"github.com/pkg/errors"
)

const (
	// MinTime is the smallest valid frame timestamp. Frames with a current or
	// delta time below it are rejected.
	MinTime = 0.001

	// MinFrameBits is the size of a frame's timestamp pair. Streams with fewer
	// bits remaining hold no further frames.
	MinFrameBits = 64

	// gameNamespace is prepended to short-form class names.
	gameNamespace = "TAGame"
)

// noLocationClasses spawn without an initial position.
var noLocationClasses = map[string]struct{}{
	"TAGame.CrowdActor_TA":          {},
	"TAGame.CrowdManager_TA":        {},
	"TAGame.VehiclePickup_Boost_TA": {},
	"Core.Object":                   {},
}

// rotationClasses spawn with an orientation following their position.
var rotationClasses = map[string]struct{}{
	"TAGame.Ball_TA":       {},
	"TAGame.Car_TA":        {},
	"TAGame.Car_Season_TA": {},
}

// Decoder holds the replay-wide tables used to decode a netstream.
//
// A Decoder is not modified by decoding, and may back any number of
// Sessions.
type Decoder struct {
	// Objects is the replay's object table.
	Objects ObjectTable
	// Mapper resolves archetype schemas. It must not be nil.
	Mapper PropertyMapper
	// Attributes decodes replicated property values. If nil,
	// DefaultAttributes is used.
	Attributes Attributes

	// Logger, if not nil, receives debug output.
	Logger logging.L
}

// NewSession begins a new decode with an empty Registry.
func (d *Decoder) NewSession() *Session {
	attrs := d.Attributes
	if attrs == nil {
		attrs = DefaultAttributes()
	}
	return &Session{
		d:     d,
		attrs: attrs,
		reg:   NewRegistry(),
		log:   logging.Must(d.Logger),
	}
}

// Session decodes consecutive frames of one netstream.
//
// A Session exclusively owns its Registry and is not safe for concurrent use.
// Independent Sessions share nothing and may run concurrently.
type Session struct {
	d     *Decoder
	attrs Attributes
	reg   *Registry
	log   logging.L

	frames int
}

// Registry returns the Session's actor registry.
func (s *Session) Registry() *Registry { return s.reg }

// Frames returns the number of frames decoded so far.
func (s *Session) Frames() int { return s.frames }

// DecodeFrames decodes n frames from r. If n <= 0, frames are decoded until
// fewer than MinFrameBits remain.
//
// If decoding fails, the frames decoded before the failure are returned along
// with the error.
func (s *Session) DecodeFrames(r *bitreader.R, n int) ([]*Frame, error) {
	var frames []*Frame
	if n > 0 {
		frames = make([]*Frame, 0, n)
	}

	for n <= 0 || len(frames) < n {
		if n <= 0 && r.Remaining() < MinFrameBits {
			break
		}

		f, err := s.DecodeFrame(r)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// DecodeFrame decodes the next frame from r.
func (s *Session) DecodeFrame(r *bitreader.R) (*Frame, error) {
	start := r.Pos()

	current, err := r.ReadFloat32()
	if err != nil {
		return nil, errors.Wrapf(err, "reading current time of frame %d at bit %d", s.frames, start)
	}
	delta, err := r.ReadFloat32()
	if err != nil {
		return nil, errors.Wrapf(err, "reading delta time of frame %d at bit %d", s.frames, start)
	}

	// Written so that NaN fails validation.
	if !(current >= MinTime && delta >= MinTime) {
		fe := FrameError{
			Frame:       s.frames,
			BitOffset:   start,
			CurrentTime: current,
			DeltaTime:   delta,
		}
		fe.NextBits.Len = MinFrameBits
		if rem := r.Remaining(); rem < MinFrameBits {
			fe.NextBits.Len = uint(rem)
		}
		fe.NextBits.Value, _ = r.PeekBits(fe.NextBits.Len)

		frameErrors.Inc()
		return nil, &fe
	}

	f := Frame{
		CurrentTime: current,
		DeltaTime:   delta,
		Actors:      NewActors(),
	}
	for {
		e, more, err := s.decodeActor(r)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if e != nil {
			f.Actors.Add(e)
			eventsDecoded.WithLabelValues(e.Kind.String()).Inc()
		}
	}

	s.frames++
	framesDecoded.Inc()
	return &f, nil
}

// decodeActor decodes one actor record. more is false when the frame's actor
// list has ended. e is nil for records that produce no event.
func (s *Session) decodeActor(r *bitreader.R) (e *Event, more bool, err error) {
	start := r.Pos()
	wrap := func(err error, what string) error {
		return errors.Wrapf(err, "reading %s of actor record at bit %d (frame %d)", what, start, s.frames)
	}

	present, err := r.ReadBit()
	if err != nil {
		return nil, false, wrap(err, "presence")
	}
	if !present {
		return nil, false, nil
	}

	raw, err := r.ReadBoundedInt(MaxActorID)
	if err != nil {
		return nil, false, wrap(err, "actor ID")
	}
	id := ActorID(raw)

	open, err := r.ReadBit()
	if err != nil {
		return nil, false, wrap(err, "channel state")
	}

	e = &Event{
		StartBit:    start,
		ActorID:     id,
		ChannelOpen: open,
	}

	if !open {
		archetype, ok := s.reg.Remove(id)
		if !ok {
			s.log.Debugf("Dropping delete for unregistered actor %d at bit %d.", id, start)
			orphanDeletes.Inc()
			return nil, true, nil
		}
		e.Kind = EventDelete
		e.Archetype, e.HasArchetype = archetype, true
		return e, true, nil
	}

	isNew, err := r.ReadBit()
	if err != nil {
		return nil, false, wrap(err, "spawn state")
	}

	if isNew {
		e.Kind = EventSpawn
		if e.Spawn, err = s.decodeSpawn(r); err != nil {
			return nil, false, wrap(err, "spawn")
		}
		s.reg.Spawn(id, e.Spawn.TypeName)
	} else {
		archetype, ok := s.reg.Lookup(id)
		if !ok {
			unknownActors.Inc()
			return nil, false, &UnknownActorError{ActorID: id, BitOffset: start}
		}

		e.Kind = EventUpdate
		if e.Fields, err = s.decodeUpdate(r, id, archetype); err != nil {
			if _, ok := err.(*PropertyError); ok {
				return nil, false, err
			}
			return nil, false, wrap(err, "update")
		}
	}

	e.Archetype, e.HasArchetype = s.reg.Lookup(id)
	return e, true, nil
}

func (s *Session) decodeSpawn(r *bitreader.R) (*SpawnData, error) {
	var (
		sd  SpawnData
		err error
	)
	if sd.Flag, err = r.ReadBit(); err != nil {
		return nil, err
	}
	if sd.TypeID, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if sd.TypeName, err = s.d.Objects.Lookup("archetype", sd.TypeID); err != nil {
		return nil, err
	}

	sd.ClassName = s.d.Mapper.ClassForArchetype(sd.TypeName)
	if strings.HasPrefix(sd.ClassName, ".") {
		sd.ClassName = gameNamespace + sd.ClassName
	}

	if _, ok := noLocationClasses[sd.ClassName]; ok {
		return &sd, nil
	}

	pos, err := ReadVector(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading position")
	}
	sd.Position = &pos

	if _, ok := rotationClasses[sd.ClassName]; ok {
		rot, err := ReadRotation(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading rotation")
		}
		sd.Rotation = &rot
	}
	return &sd, nil
}

func (s *Session) decodeUpdate(r *bitreader.R, id ActorID, archetype string) (*Fields, error) {
	fields := NewFields()

	var (
		maxID   uint32
		haveMax bool
	)
	for {
		next, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if !next {
			return fields, nil
		}

		if !haveMax {
			if maxID, err = s.d.Mapper.MaxPropertyID(archetype); err != nil {
				return nil, errors.Wrapf(err, "resolving properties of %q", archetype)
			}
			haveMax = true
		}

		pid, err := r.ReadSerializedInt(maxID)
		if err != nil {
			return nil, err
		}
		oid, err := s.d.Mapper.PropertyObjectID(archetype, pid)
		if err != nil {
			return nil, err
		}
		name, err := s.d.Objects.Lookup("property", oid)
		if err != nil {
			return nil, err
		}

		at := r.Pos()
		v, err := s.attrs.Decode(name, r)
		if err != nil {
			propertyErrors.Inc()
			return nil, &PropertyError{
				ActorID:   id,
				Archetype: archetype,
				Property:  name,
				BitOffset: at,
				Partial:   fields.Clone(),
				cause:     err,
			}
		}
		fields.Set(name, v)
	}
}
