// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

import (
	"sort"
)

// Registry tracks the archetype of every live actor in one netstream.
//
// A Registry belongs to exactly one Session and is not safe for concurrent
// use.
type Registry struct {
	alive map[ActorID]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{alive: make(map[ActorID]string)}
}

// Spawn records id as a live actor of the given archetype, replacing any
// previous registration.
func (reg *Registry) Spawn(id ActorID, archetype string) { reg.alive[id] = archetype }

// Lookup returns the archetype registered for id.
func (reg *Registry) Lookup(id ActorID) (string, bool) {
	archetype, ok := reg.alive[id]
	return archetype, ok
}

// Remove unregisters id, returning the archetype it held.
func (reg *Registry) Remove(id ActorID) (string, bool) {
	archetype, ok := reg.alive[id]
	if ok {
		delete(reg.alive, id)
	}
	return archetype, ok
}

// Len returns the number of live actors.
func (reg *Registry) Len() int { return len(reg.alive) }

// IDs returns the live actor IDs in ascending order.
func (reg *Registry) IDs() []ActorID {
	ids := make([]ActorID, 0, len(reg.alive))
	for id := range reg.alive {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
