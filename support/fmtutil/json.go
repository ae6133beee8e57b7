// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package fmtutil

import (
	"encoding/json"
	"math"
)

// JSONFloat32 is a float32 that always encodes as JSON.
//
// Finite values encode as JSON numbers, exactly as a float32 would. NaN and
// the infinities, which JSON numbers cannot express, encode as the strings
// "NaN", "Infinity" and "-Infinity".
type JSONFloat32 float32

// MarshalJSON implements json.Marshaler.
func (f JSONFloat32) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	default:
		return json.Marshal(float32(f))
	}
}
