// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

import (
	"encoding/json"

	"github.com/danjacques/gorope/support/fmtutil"
)

// MarshalJSON implements json.Marshaler.
//
// Spawn and update events render as:
//
//	{"startpos": ..., "actor_id": ..., "actor_type": ..., "new": ..., "open": true, "data": {...}}
//
// Delete events omit "new" and "data".
func (e *Event) MarshalJSON() ([]byte, error) {
	var actorType interface{}
	if e.HasArchetype {
		actorType = e.Archetype
	}

	type kv struct {
		k string
		v interface{}
	}
	entries := []kv{
		{"startpos", e.StartBit},
		{"actor_id", e.ActorID},
		{"actor_type", actorType},
	}
	if e.Kind != EventDelete {
		entries = append(entries,
			kv{"new", e.Kind == EventSpawn},
			kv{"open", e.ChannelOpen},
			kv{"data", eventData{e}})
	} else {
		entries = append(entries, kv{"open", e.ChannelOpen})
	}

	return marshalOrdered(len(entries), func(emit func(string, interface{}) bool) {
		for _, ent := range entries {
			if !emit(ent.k, ent.v) {
				return
			}
		}
	})
}

// eventData renders the "data" member of a spawn or update event.
type eventData struct{ e *Event }

func (d eventData) MarshalJSON() ([]byte, error) {
	e := d.e
	return marshalOrdered(8, func(emit func(string, interface{}) bool) {
		if !emit("id", e.ActorID) {
			return
		}

		switch e.Kind {
		case EventSpawn:
			if !emit("state", "new") {
				return
			}
			s := e.Spawn
			if s == nil {
				return
			}
			if !emit("flag", s.Flag) ||
				!emit("type_id", s.TypeID) ||
				!emit("type_name", s.TypeName) ||
				!emit("class_name", s.ClassName) {
				return
			}
			if s.Position != nil && !emit("position", s.Position) {
				return
			}
			if s.Rotation != nil {
				emit("rotation", s.Rotation)
			}

		case EventUpdate:
			if !emit("state", "existing") {
				return
			}
			e.Fields.Each(emit)
		}
	})
}

// MarshalJSON implements json.Marshaler.
func (f *Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CurrentTime fmtutil.JSONFloat32 `json:"current"`
		DeltaTime   fmtutil.JSONFloat32 `json:"delta"`
		Actors      *Actors             `json:"actors"`
	}{fmtutil.JSONFloat32(f.CurrentTime), fmtutil.JSONFloat32(f.DeltaTime), f.Actors})
}
