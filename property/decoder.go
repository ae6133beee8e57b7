// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package property decodes the self-describing property trees found in a
// replay's header.
//
// A property tree is a sequence of entries, each a name, a type tag, a
// declared payload size and a payload, ended by an entry named "None". An
// ArrayProperty payload is itself a count followed by that many property
// trees, so trees nest arbitrarily.
package property

import (
	"io"

	"github.com/danjacques/gorope/support/bitreader"
	"github.com/danjacques/gorope/support/logging"
)

const (
	// Terminator is the key that ends a property tree. It is never stored in a
	// Map.
	Terminator = "None"

	// DefaultMaxDepth is the array nesting limit used when Decoder.MaxDepth is
	// zero.
	DefaultMaxDepth = 64

	// minTreeBits is the size of the smallest possible tree: a bare
	// terminator key (4-byte length, "None\x00").
	minTreeBits uint64 = (4 + uint64(len(Terminator)) + 1) * 8
)

// Decoder decodes property trees.
//
// The zero value is ready to use. A Decoder holds no per-tree state and may
// be shared.
type Decoder struct {
	// MaxDepth bounds ArrayProperty nesting. The top-level tree has depth 1.
	// If zero, DefaultMaxDepth is used.
	MaxDepth int

	// Strict, if true, checks each fixed-size and string property's declared
	// payload size against the bytes actually consumed.
	//
	// ArrayProperty, ByteProperty and BoolProperty sizes are not checked: the
	// engine does not count their payloads consistently.
	Strict bool

	// Logger, if not nil, receives debug output.
	Logger logging.L
}

// treeState is one in-progress Map on the work stack.
type treeState struct {
	m *Map
	// owner is the array this Map is an element of, or nil for the root.
	owner *arrayState
}

// arrayState accumulates the elements of an ArrayProperty.
type arrayState struct {
	key       string
	parent    *Map
	elems     []*Map
	remaining uint32
}

// DecodeMap decodes one property tree from r, leaving r positioned
// immediately after the tree's terminator key.
//
// Nested arrays are decoded with an explicit work stack rather than
// recursion, so deeply nested input is bounded by MaxDepth instead of the
// goroutine stack.
func (d *Decoder) DecodeMap(r *bitreader.R) (*Map, error) {
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	log := logging.Must(d.Logger)

	root := NewMap()
	stack := []*treeState{{m: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]

		e, done, err := d.readEntry(r)
		if err != nil {
			return nil, err
		}

		if done {
			// The top Map is complete.
			stack = stack[:len(stack)-1]
			a := top.owner
			if a == nil {
				continue
			}

			a.elems = append(a.elems, top.m)
			a.remaining--
			if a.remaining > 0 {
				stack = append(stack, &treeState{m: NewMap(), owner: a})
			} else {
				a.parent.Set(a.key, ArrayValue(a.elems))
			}
			continue
		}

		if e.value.Kind() != KindArray || e.count == 0 {
			top.m.Set(e.key, e.value)
			continue
		}

		// Non-empty array: descend into its first element.
		if len(stack) >= maxDepth {
			return nil, &DepthError{Key: e.key, MaxDepth: maxDepth, BitOffset: r.Pos()}
		}
		if uint64(e.count)*minTreeBits > r.Remaining() {
			return nil, truncated(io.ErrUnexpectedEOF, "array "+e.key, r.Pos())
		}
		log.Debugf("Descending into %d-element array %q at bit %d.", e.count, e.key, r.Pos())

		a := &arrayState{
			key:       e.key,
			parent:    top.m,
			elems:     make([]*Map, 0, e.count),
			remaining: e.count,
		}
		stack = append(stack, &treeState{m: NewMap(), owner: a})
	}
	return root, nil
}

// entry is one decoded property.
type entry struct {
	key   string
	value Value
	// count is the element count of an ArrayProperty.
	count uint32
}

// readEntry reads a single property. If the terminator is read, readEntry
// returns done == true and consumes nothing beyond the terminator key.
func (d *Decoder) readEntry(r *bitreader.R) (e entry, done bool, err error) {
	start := r.Pos()
	if e.key, err = r.ReadString(); err != nil {
		return e, false, truncated(err, "property key", start)
	}
	if e.key == Terminator {
		return e, true, nil
	}

	tag, err := r.ReadString()
	if err != nil {
		return e, false, truncated(err, "type of "+e.key, r.Pos())
	}
	declared, err := r.ReadUint64()
	if err != nil {
		return e, false, truncated(err, "size of "+e.key, r.Pos())
	}

	kind, ok := ParseKind(tag)
	if !ok {
		return e, false, &UnknownTypeError{Key: e.key, Type: tag, BitOffset: r.Pos()}
	}

	payloadStart := r.Pos()
	if e.value, e.count, err = readPayload(r, kind); err != nil {
		return e, false, truncated(err, kind.String()+" "+e.key, payloadStart)
	}

	if d.Strict {
		if err := checkDeclaredSize(e.key, kind, declared, payloadStart, r.Pos()); err != nil {
			return e, false, err
		}
	}
	return e, false, nil
}

// readPayload reads the value for kind. For KindArray, only the element count
// is read; the elements are decoded by the caller's work stack.
func readPayload(r *bitreader.R, kind Kind) (Value, uint32, error) {
	switch kind {
	case KindInt:
		v, err := r.ReadUint32()
		return IntValue(v), 0, err

	case KindStr:
		v, err := r.ReadString()
		return StrValue(v), 0, err

	case KindName:
		v, err := r.ReadString()
		return NameValue(v), 0, err

	case KindFloat:
		v, err := r.ReadFloat32()
		return FloatValue(v), 0, err

	case KindArray:
		n, err := r.ReadUint32()
		return ArrayValue(nil), n, err

	case KindByte:
		k, err := r.ReadString()
		if err != nil {
			return Value{}, 0, err
		}
		v, err := r.ReadString()
		return ByteValue(k, v), 0, err

	case KindQWord:
		v, err := r.ReadInt64()
		return QWordValue(v), 0, err

	case KindBool:
		v, err := r.ReadUint8()
		return BoolValue(v == 1), 0, err

	default:
		panic("unhandled property kind " + kind.String())
	}
}

func checkDeclaredSize(key string, kind Kind, declared, start, end uint64) error {
	switch kind {
	case KindInt, KindFloat, KindQWord, KindStr, KindName:
	default:
		return nil
	}

	if consumed := (end - start) / 8; consumed != declared {
		return &SizeMismatchError{
			Key:       key,
			Kind:      kind,
			Declared:  declared,
			Consumed:  consumed,
			BitOffset: start,
		}
	}
	return nil
}
