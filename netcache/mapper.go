// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package netcache resolves the replication schema of actor archetypes from a
// replay's class net cache.
//
// A replay lists, for every replicated class, the properties it declares and
// the stream ID each is sent under. Classes inherit the properties of their
// parent, which is identified by cache ID and always precedes its children.
package netcache

import (
	"strings"

	"github.com/danjacques/gorope/netstream"
	"github.com/danjacques/gorope/support/logging"

	"github.com/pkg/errors"
)

// gameNamespace is prepended to short-form class names.
const gameNamespace = "TAGame"

// ClassIndex associates a class name with its object table index.
type ClassIndex struct {
	Class string
	Index uint32
}

// CacheProperty is a replicated property of a class.
type CacheProperty struct {
	// ObjectIndex is the object table index of the property's name.
	ObjectIndex uint32
	// StreamID is the ID the property is sent under in the netstream.
	StreamID uint32
}

// CacheEntry is the replication schema of one class.
type CacheEntry struct {
	// ObjectIndex is the object table index of the class.
	ObjectIndex uint32
	// ParentID is the CacheID of the parent class.
	ParentID uint32
	// CacheID identifies this entry to its children.
	CacheID uint32

	Properties []CacheProperty
}

// schema is a class's complete property set, including inherited properties.
type schema struct {
	props map[uint32]uint32 // stream ID => object index
	max   uint32            // largest stream ID + 1
}

// Mapper is a netstream.PropertyMapper built from a replay's class tables.
//
// Mapper is immutable once built and safe for concurrent use.
type Mapper struct {
	classes *ClassTable

	// classIndex maps a class name to its object table index.
	classIndex map[string]uint32
	// schemas maps a class object index to its schema.
	schemas map[uint32]*schema
}

var _ netstream.PropertyMapper = (*Mapper)(nil)

// Config configures a Mapper.
type Config struct {
	// Classes resolves archetypes to classes. If nil, DefaultClassTable is
	// used.
	Classes *ClassTable

	// Logger, if not nil, receives debug output.
	Logger logging.L
}

// New builds a Mapper from a replay's class index map and class net cache.
//
// A class listed more than once in the cache takes its last entry.
func (cfg *Config) New(index []ClassIndex, cache []CacheEntry) *Mapper {
	log := logging.Must(cfg.Logger)

	m := Mapper{
		classes:    cfg.Classes,
		classIndex: make(map[string]uint32, len(index)),
		schemas:    make(map[uint32]*schema, len(cache)),
	}
	if m.classes == nil {
		m.classes = DefaultClassTable()
	}

	for _, ci := range index {
		m.classIndex[ci.Class] = ci.Index
	}

	// Each entry's schema is indexed by position so that parents can be found
	// by searching backwards from their child.
	built := make([]*schema, len(cache))
	for i, ce := range cache {
		s := schema{props: make(map[uint32]uint32, len(ce.Properties))}

		if parent := findParent(cache, i); parent >= 0 {
			for id, obj := range built[parent].props {
				s.props[id] = obj
			}
			s.max = built[parent].max
		} else if ce.ParentID != 0 {
			log.Debugf("Class net cache entry %d (object %d) has no parent with cache ID %d.",
				i, ce.ObjectIndex, ce.ParentID)
		}

		for _, p := range ce.Properties {
			s.props[p.StreamID] = p.ObjectIndex
			if p.StreamID >= s.max {
				s.max = p.StreamID + 1
			}
		}

		built[i] = &s
		if _, ok := m.schemas[ce.ObjectIndex]; ok {
			log.Debugf("Class object %d appears more than once in the net cache; using entry %d.",
				ce.ObjectIndex, i)
		}
		m.schemas[ce.ObjectIndex] = &s
	}

	return &m
}

// findParent returns the position of the closest entry before i whose
// CacheID is i's ParentID, or -1.
func findParent(cache []CacheEntry, i int) int {
	want := cache[i].ParentID
	for j := i - 1; j >= 0; j-- {
		if cache[j].CacheID == want {
			return j
		}
	}
	return -1
}

// ClassForArchetype implements netstream.PropertyMapper.
func (m *Mapper) ClassForArchetype(archetype string) string { return m.classes.Class(archetype) }

// MaxPropertyID implements netstream.PropertyMapper.
func (m *Mapper) MaxPropertyID(archetype string) (uint32, error) {
	s, err := m.schemaFor(archetype)
	if err != nil {
		return 0, err
	}
	return s.max, nil
}

// PropertyObjectID implements netstream.PropertyMapper.
func (m *Mapper) PropertyObjectID(archetype string, id uint32) (uint32, error) {
	s, err := m.schemaFor(archetype)
	if err != nil {
		return 0, err
	}
	obj, ok := s.props[id]
	if !ok {
		return 0, &netstream.IndexError{What: "property " + archetype, Index: id, Len: int(s.max)}
	}
	return obj, nil
}

func (m *Mapper) schemaFor(archetype string) (*schema, error) {
	class := m.classes.Class(archetype)
	if strings.HasPrefix(class, ".") {
		class = gameNamespace + class
	}

	idx, ok := m.classIndex[class]
	if !ok {
		return nil, errors.Errorf("class %q of archetype %q is not in the class index", class, archetype)
	}
	s, ok := m.schemas[idx]
	if !ok {
		return nil, errors.Errorf("class %q (object %d) has no net cache entry", class, idx)
	}
	return s, nil
}
