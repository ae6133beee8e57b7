// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

import (
	"encoding/json"

	"github.com/danjacques/gorope/support/bitreader"
	"github.com/danjacques/gorope/support/fmtutil"
)

// maxVectorBits bounds the per-component width prefix of a packed vector.
const maxVectorBits = 20

// Vector is a quantized position or velocity.
type Vector struct {
	X, Y, Z int32
}

// ReadVector reads a packed integer vector.
//
// The vector begins with a serialized width n < 20. Each component then
// occupies n+2 bits and is biased by 2^(n+1).
func ReadVector(r *bitreader.R) (Vector, error) {
	n, err := r.ReadSerializedInt(maxVectorBits)
	if err != nil {
		return Vector{}, err
	}
	bias := int64(1) << (n + 1)
	width := uint(n + 2)

	var c [3]int32
	for i := range c {
		v, err := r.ReadBits(width)
		if err != nil {
			return Vector{}, err
		}
		c[i] = int32(int64(v) - bias)
	}
	return Vector{X: c[0], Y: c[1], Z: c[2]}, nil
}

// MarshalJSON renders v as "[x, y, z]".
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int32{v.X, v.Y, v.Z})
}

// Rotation is a byte-quantized orientation. Components that were not
// transmitted are nil.
type Rotation struct {
	Pitch, Yaw, Roll *uint8
}

// ReadRotation reads a byte vector: for each component, a presence bit
// followed, if set, by one byte.
func ReadRotation(r *bitreader.R) (Rotation, error) {
	var c [3]*uint8
	for i := range c {
		present, err := r.ReadBit()
		if err != nil {
			return Rotation{}, err
		}
		if !present {
			continue
		}
		b, err := r.ReadUint8()
		if err != nil {
			return Rotation{}, err
		}
		c[i] = &b
	}
	return Rotation{Pitch: c[0], Yaw: c[1], Roll: c[2]}, nil
}

// MarshalJSON renders rot as "[pitch, yaw, roll]", with null for missing
// components.
func (rot Rotation) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]*uint8{rot.Pitch, rot.Yaw, rot.Roll})
}

// FloatVector is a vector of three single-precision components.
type FloatVector struct {
	X, Y, Z float32
}

// ReadFloatVector reads three consecutive 32-bit floats.
func ReadFloatVector(r *bitreader.R) (FloatVector, error) {
	var c [3]float32
	for i := range c {
		v, err := r.ReadFloat32()
		if err != nil {
			return FloatVector{}, err
		}
		c[i] = v
	}
	return FloatVector{X: c[0], Y: c[1], Z: c[2]}, nil
}

// MarshalJSON renders v as "[x, y, z]".
func (v FloatVector) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]fmtutil.JSONFloat32{
		fmtutil.JSONFloat32(v.X), fmtutil.JSONFloat32(v.Y), fmtutil.JSONFloat32(v.Z)})
}

// fixedCompressedFloatBits is the width of a quaternion-style rotation
// component in rigid body state.
const fixedCompressedFloatBits = 16

// readFixedCompressedFloat reads a 16-bit value mapped onto [-1, 1].
func readFixedCompressedFloat(r *bitreader.R) (float32, error) {
	v, err := r.ReadBits(fixedCompressedFloatBits)
	if err != nil {
		return 0, err
	}
	const (
		bias  = 1 << (fixedCompressedFloatBits - 1)
		scale = bias - 1
	)
	return float32(int64(v)-bias) / scale, nil
}
