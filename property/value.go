// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package property

import (
	"encoding/json"
	"fmt"

	"github.com/danjacques/gorope/support/fmtutil"
)

// Kind is the closed set of property types that may appear in a property
// tree.
type Kind uint8

const (
	// KindInvalid is the zero Kind. It never appears in a decoded Map.
	KindInvalid Kind = iota
	// KindInt is "IntProperty", a 32-bit unsigned integer.
	KindInt
	// KindStr is "StrProperty", a string.
	KindStr
	// KindFloat is "FloatProperty", a 32-bit float.
	KindFloat
	// KindName is "NameProperty", a string naming an engine object.
	KindName
	// KindArray is "ArrayProperty", an ordered list of nested Maps.
	KindArray
	// KindByte is "ByteProperty", an enumeration value expressed as a single
	// (enum type, enum value) pair.
	KindByte
	// KindQWord is "QWordProperty", a 64-bit signed integer.
	KindQWord
	// KindBool is "BoolProperty".
	KindBool
)

var kindTags = [...]string{
	KindInvalid: "",
	KindInt:     "IntProperty",
	KindStr:     "StrProperty",
	KindFloat:   "FloatProperty",
	KindName:    "NameProperty",
	KindArray:   "ArrayProperty",
	KindByte:    "ByteProperty",
	KindQWord:   "QWordProperty",
	KindBool:    "BoolProperty",
}

// ParseKind returns the Kind for a type tag read from the wire.
//
// If tag is not a known property type, ParseKind returns KindInvalid and
// false.
func ParseKind(tag string) (Kind, bool) {
	for k, t := range kindTags {
		if k != int(KindInvalid) && t == tag {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// String returns the wire tag for k.
func (k Kind) String() string {
	if int(k) < len(kindTags) && k != KindInvalid {
		return kindTags[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a decoded property value.
//
// Exactly one of its payload fields is meaningful, selected by Kind. Values
// are immutable once decoded; use the accessors rather than the fields.
type Value struct {
	kind Kind

	u32   uint32
	i64   int64
	f32   float32
	b     bool
	str   string
	enum  [2]string
	array []*Map
}

// IntValue returns an IntProperty value.
func IntValue(v uint32) Value { return Value{kind: KindInt, u32: v} }

// StrValue returns a StrProperty value.
func StrValue(v string) Value { return Value{kind: KindStr, str: v} }

// NameValue returns a NameProperty value.
func NameValue(v string) Value { return Value{kind: KindName, str: v} }

// FloatValue returns a FloatProperty value.
func FloatValue(v float32) Value { return Value{kind: KindFloat, f32: v} }

// ArrayValue returns an ArrayProperty value holding elems.
func ArrayValue(elems []*Map) Value { return Value{kind: KindArray, array: elems} }

// ByteValue returns a ByteProperty value mapping key to value.
func ByteValue(key, value string) Value { return Value{kind: KindByte, enum: [2]string{key, value}} }

// QWordValue returns a QWordProperty value.
func QWordValue(v int64) Value { return Value{kind: KindQWord, i64: v} }

// BoolValue returns a BoolProperty value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind returns the type of the value.
func (v Value) Kind() Kind { return v.kind }

// Int returns the value of an IntProperty.
func (v Value) Int() (uint32, bool) { return v.u32, v.kind == KindInt }

// Str returns the value of a StrProperty or NameProperty.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindStr || v.kind == KindName
}

// Float returns the value of a FloatProperty.
func (v Value) Float() (float32, bool) { return v.f32, v.kind == KindFloat }

// Array returns the elements of an ArrayProperty.
func (v Value) Array() ([]*Map, bool) { return v.array, v.kind == KindArray }

// Byte returns the (key, value) pair of a ByteProperty.
func (v Value) Byte() (string, string, bool) { return v.enum[0], v.enum[1], v.kind == KindByte }

// QWord returns the value of a QWordProperty.
func (v Value) QWord() (int64, bool) { return v.i64, v.kind == KindQWord }

// Bool returns the value of a BoolProperty.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the natural Go representation of the value: uint32,
// string, float32, []*Map, map[string]string, int64 or bool.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.u32
	case KindStr, KindName:
		return v.str
	case KindFloat:
		return v.f32
	case KindArray:
		return v.array
	case KindByte:
		return map[string]string{v.enum[0]: v.enum[1]}
	case KindQWord:
		return v.i64
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Equal returns true if v and o hold the same kind and payload. Arrays are
// compared element by element.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindArray:
		if len(v.array) != len(o.array) {
			return false
		}
		for i := range v.array {
			if !v.array[i].Equal(o.array[i]) {
				return false
			}
		}
		return true
	default:
		return v.u32 == o.u32 && v.i64 == o.i64 && v.f32 == o.f32 && v.b == o.b &&
			v.str == o.str && v.enum == o.enum
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindArray:
		return fmt.Sprintf("%s[%d]", v.kind, len(v.array))
	case KindByte:
		return fmt.Sprintf("%s{%s: %s}", v.kind, v.enum[0], v.enum[1])
	default:
		return fmt.Sprintf("%s(%v)", v.kind, v.Interface())
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindArray:
		if v.array == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.array)
	case KindInvalid:
		return []byte("null"), nil
	case KindFloat:
		return fmtutil.JSONFloat32(v.f32).MarshalJSON()
	default:
		return json.Marshal(v.Interface())
	}
}
