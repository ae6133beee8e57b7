// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/danjacques/gorope/support/fmtutil"

	"github.com/elliotchance/orderedmap/v2"
)

// ActorID identifies a live actor within a netstream. IDs are reused once an
// actor is deleted.
type ActorID uint32

// MaxActorID is the declared maximum of the actor ID codec.
const MaxActorID = 1023

// EventKind is the lifecycle transition an Event records.
type EventKind uint8

const (
	// EventSpawn is a new actor.
	EventSpawn EventKind = iota + 1
	// EventUpdate is a property update for a live actor.
	EventUpdate
	// EventDelete is the closing of a live actor's channel.
	EventDelete
)

// Tag returns the single-character tag used in event keys.
func (k EventKind) Tag() string {
	switch k {
	case EventSpawn:
		return "n"
	case EventUpdate:
		return "e"
	case EventDelete:
		return "d"
	default:
		return "?"
	}
}

func (k EventKind) String() string {
	switch k {
	case EventSpawn:
		return "spawn"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return "EventKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// SpawnData is the payload of a spawn record.
type SpawnData struct {
	// Flag is an unnamed bit that precedes the type ID. It is kept as read.
	Flag bool
	// TypeID is the object table index of the actor's archetype.
	TypeID uint32
	// TypeName is the actor's archetype.
	TypeName string
	// ClassName is the archetype's class, namespace-qualified.
	ClassName string

	// Position is the initial location, if the class carries one.
	Position *Vector
	// Rotation is the initial orientation, if the class carries one.
	Rotation *Rotation
}

// Event is a single actor record within a Frame.
type Event struct {
	// StartBit is the netstream offset at which the record began.
	StartBit uint64
	// ActorID is the actor the record applies to.
	ActorID ActorID
	// Archetype is the registry's archetype for ActorID when the event was
	// recorded. HasArchetype is false if the actor was never registered.
	Archetype    string
	HasArchetype bool
	// ChannelOpen is true for spawns and updates, false for deletes.
	ChannelOpen bool
	// Kind is the lifecycle transition.
	Kind EventKind

	// Spawn is set for EventSpawn.
	Spawn *SpawnData
	// Fields holds the decoded properties of an EventUpdate.
	Fields *Fields
}

// Key returns the event's address within its frame:
//
//	"{actor id}{tag}_{leaf}"
//
// where leaf is the last '.' or ':' separated segment of the archetype.
func (e *Event) Key() string {
	return strconv.FormatUint(uint64(e.ActorID), 10) + e.Kind.Tag() + "_" + leafName(e.Archetype)
}

func leafName(name string) string {
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Frame is one decoded netstream frame.
type Frame struct {
	CurrentTime float32
	DeltaTime   float32
	Actors      *Actors
}

// Fields is an insertion-ordered mapping of replicated property names to
// their decoded values. A repeated property replaces its earlier value.
type Fields struct {
	om *orderedmap.OrderedMap[string, interface{}]
}

// NewFields returns an empty Fields.
func NewFields() *Fields {
	return &Fields{om: orderedmap.NewOrderedMap[string, interface{}]()}
}

// Set assigns value to name.
func (f *Fields) Set(name string, value interface{}) { f.om.Set(name, value) }

// Get returns the value stored for name.
func (f *Fields) Get(name string) (interface{}, bool) {
	if f == nil {
		return nil, false
	}
	return f.om.Get(name)
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return f.om.Len()
}

// Names returns the field names in insertion order.
func (f *Fields) Names() []string {
	names := make([]string, 0, f.Len())
	f.Each(func(name string, _ interface{}) bool {
		names = append(names, name)
		return true
	})
	return names
}

// Each calls fn for each field in order until fn returns false.
func (f *Fields) Each(fn func(name string, value interface{}) bool) {
	if f == nil {
		return
	}
	for el := f.om.Front(); el != nil; el = el.Next() {
		if !fn(el.Key, el.Value) {
			return
		}
	}
}

// Clone returns a shallow copy of f.
func (f *Fields) Clone() *Fields {
	c := NewFields()
	f.Each(func(name string, value interface{}) bool {
		c.Set(name, value)
		return true
	})
	return c
}

// MarshalJSON implements json.Marshaler, preserving field order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	return marshalOrdered(f.Len(), func(emit func(string, interface{}) bool) {
		f.Each(emit)
	})
}

// Actors is the insertion-ordered set of events in a Frame, keyed by
// Event.Key.
type Actors struct {
	om *orderedmap.OrderedMap[string, *Event]
}

// NewActors returns an empty Actors.
func NewActors() *Actors {
	return &Actors{om: orderedmap.NewOrderedMap[string, *Event]()}
}

// Add inserts e under its key.
func (a *Actors) Add(e *Event) { a.om.Set(e.Key(), e) }

// Get returns the event stored under key.
func (a *Actors) Get(key string) (*Event, bool) {
	if a == nil {
		return nil, false
	}
	return a.om.Get(key)
}

// Len returns the number of events.
func (a *Actors) Len() int {
	if a == nil {
		return 0
	}
	return a.om.Len()
}

// Keys returns the event keys in order of first appearance.
func (a *Actors) Keys() []string {
	keys := make([]string, 0, a.Len())
	a.Each(func(e *Event) bool {
		keys = append(keys, e.Key())
		return true
	})
	return keys
}

// Each calls fn for each event in order until fn returns false.
func (a *Actors) Each(fn func(e *Event) bool) {
	if a == nil {
		return
	}
	for el := a.om.Front(); el != nil; el = el.Next() {
		if !fn(el.Value) {
			return
		}
	}
}

// MarshalJSON implements json.Marshaler, preserving event order.
func (a *Actors) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return marshalOrdered(a.Len(), func(emit func(string, interface{}) bool) {
		for el := a.om.Front(); el != nil; el = el.Next() {
			if !emit(el.Key, el.Value) {
				return
			}
		}
	})
}

func marshalOrdered(n int, each func(emit func(string, interface{}) bool)) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(16 * (n + 1))
	buf.WriteByte('{')

	var err error
	first := true
	each(func(k string, v interface{}) bool {
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if f, ok := v.(float32); ok {
			v = fmtutil.JSONFloat32(f)
		}
		if vb, err = json.Marshal(v); err != nil {
			return false
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
