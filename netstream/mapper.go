// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

// PropertyMapper resolves the replication schema of actor archetypes.
type PropertyMapper interface {
	// ClassForArchetype returns the class that declares archetype. A class
	// name beginning with '.' is a short form within the game namespace.
	ClassForArchetype(archetype string) string

	// MaxPropertyID returns the exclusive upper bound of the property IDs
	// replicated for archetype.
	MaxPropertyID(archetype string) (uint32, error)

	// PropertyObjectID returns the object table index naming property id of
	// archetype.
	PropertyObjectID(archetype string, id uint32) (uint32, error)
}

// ObjectTable is the replay's global object name table.
type ObjectTable []string

// Lookup returns the name at index. what describes the index for error
// reporting.
func (t ObjectTable) Lookup(what string, index uint32) (string, error) {
	if uint64(index) >= uint64(len(t)) {
		return "", &IndexError{What: what, Index: index, Len: len(t)}
	}
	return t[index], nil
}
