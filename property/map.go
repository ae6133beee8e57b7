// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package property

import (
	"bytes"
	"encoding/json"

	"github.com/elliotchance/orderedmap/v2"
)

// Map is an insertion-ordered mapping of property names to Values.
//
// Setting a key that is already present replaces its value in place: the key
// keeps the position of its first insertion (last write wins).
//
// A nil *Map is a valid, empty, read-only Map.
type Map struct {
	om *orderedmap.OrderedMap[string, Value]
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{om: orderedmap.NewOrderedMap[string, Value]()}
}

// Set assigns value to key.
func (m *Map) Set(key string, value Value) {
	if m.om == nil {
		m.om = orderedmap.NewOrderedMap[string, Value]()
	}
	m.om.Set(key, value)
}

// Get returns the value stored for key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil || m.om == nil {
		return Value{}, false
	}
	return m.om.Get(key)
}

// Len returns the number of entries in the Map.
func (m *Map) Len() int {
	if m == nil || m.om == nil {
		return 0
	}
	return m.om.Len()
}

// Keys returns the Map's keys in insertion order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, m.Len())
	m.Each(func(k string, _ Value) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Each calls fn for each entry, in insertion order, until fn returns false.
func (m *Map) Each(fn func(key string, value Value) bool) {
	if m == nil || m.om == nil {
		return
	}
	for e := m.om.Front(); e != nil; e = e.Next() {
		if !fn(e.Key, e.Value) {
			return
		}
	}
}

// Equal returns true if m and o hold equal values for the same keys in the
// same order.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	ok := true
	keys := o.Keys()
	i := 0
	m.Each(func(k string, v Value) bool {
		if keys[i] != k {
			ok = false
			return false
		}
		ov, _ := o.Get(k)
		if !v.Equal(ov) {
			ok = false
			return false
		}
		i++
		return true
	})
	return ok
}

// Int is a convenience accessor for an IntProperty entry.
func (m *Map) Int(key string) (uint32, bool) {
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	return v.Int()
}

// Str is a convenience accessor for a StrProperty or NameProperty entry.
func (m *Map) Str(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	return v.Str()
}

// MarshalJSON implements json.Marshaler, emitting entries in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	first := true
	m.Each(func(k string, v Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = v.MarshalJSON(); err != nil {
			return false
		}
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
