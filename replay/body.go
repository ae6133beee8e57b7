// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package replay

import (
	"bytes"
	"io"

	"github.com/danjacques/gorope/netcache"
	"github.com/danjacques/gorope/support/bitreader"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// Keyframe marks a frame from which playback can begin.
type Keyframe struct {
	Time  float32 `struc:"float32,little" json:"time"`
	Frame uint32  `struc:",little" json:"frame"`
	// Position is the netstream bit offset of the frame.
	Position uint32 `struc:",little" json:"position"`
}

// keyframeSize is the size of Keyframe on the wire.
const keyframeSize = 12

// DebugMessage is a debug log line recorded during the match.
type DebugMessage struct {
	Frame uint32 `json:"frame"`
	User  string `json:"user"`
	Text  string `json:"text"`
}

// TickMark is a timeline marker, such as a goal.
type TickMark struct {
	Type  string `json:"type"`
	Frame uint32 `json:"frame"`
}

// bodyPrefix is the fixed-size start of the body.
type bodyPrefix struct {
	Size uint32 `struc:",little"`
	CRC  uint32 `struc:",little"`
}

// Body is the data following a replay's header.
type Body struct {
	Size uint32
	CRC  uint32

	Levels    []string
	Keyframes []Keyframe

	// Netstream is the raw frame stream.
	Netstream []byte

	DebugLog  []DebugMessage
	TickMarks []TickMark
	Packages  []string

	// Objects is the global object table, referenced by the netstream.
	Objects []string
	Names   []string

	ClassIndex    []netcache.ClassIndex
	ClassNetCache []netcache.CacheEntry
}

// Minimum wire sizes, used to bound counts before allocating.
const (
	minStringSize       = 4
	minDebugMessageSize = 4 + 2*minStringSize
	minTickMarkSize     = minStringSize + 4
	minClassIndexSize   = minStringSize + 4
	minCacheEntrySize   = 4 * 4
	cachePropertySize   = 2 * 4
)

// ReadBody parses the body at the start of data.
func ReadBody(data []byte) (*Body, error) {
	var b Body
	br := bodyReader{R: bitreader.New(data)}

	var prefix bodyPrefix
	if err := br.unpack(8, &prefix); err != nil {
		return nil, errors.Wrap(err, "reading body prefix")
	}
	b.Size, b.CRC = prefix.Size, prefix.CRC

	steps := []struct {
		what string
		fn   func() error
	}{
		{"levels", func() (err error) { b.Levels, err = br.strings(); return }},
		{"keyframes", func() error {
			n, err := br.count(keyframeSize)
			if err != nil {
				return err
			}
			b.Keyframes = make([]Keyframe, n)
			for i := range b.Keyframes {
				if err := br.unpack(keyframeSize, &b.Keyframes[i]); err != nil {
					return err
				}
			}
			return nil
		}},
		{"netstream", func() error {
			n, err := br.count(1)
			if err != nil {
				return err
			}
			b.Netstream, err = br.Next(n)
			return err
		}},
		{"debug log", func() error {
			n, err := br.count(minDebugMessageSize)
			if err != nil {
				return err
			}
			b.DebugLog = make([]DebugMessage, n)
			for i := range b.DebugLog {
				dm := &b.DebugLog[i]
				if dm.Frame, err = br.ReadUint32(); err != nil {
					return err
				}
				if dm.User, err = br.ReadString(); err != nil {
					return err
				}
				if dm.Text, err = br.ReadString(); err != nil {
					return err
				}
			}
			return nil
		}},
		{"tick marks", func() error {
			n, err := br.count(minTickMarkSize)
			if err != nil {
				return err
			}
			b.TickMarks = make([]TickMark, n)
			for i := range b.TickMarks {
				tm := &b.TickMarks[i]
				if tm.Type, err = br.ReadString(); err != nil {
					return err
				}
				if tm.Frame, err = br.ReadUint32(); err != nil {
					return err
				}
			}
			return nil
		}},
		{"packages", func() (err error) { b.Packages, err = br.strings(); return }},
		{"objects", func() (err error) { b.Objects, err = br.strings(); return }},
		{"names", func() (err error) { b.Names, err = br.strings(); return }},
		{"class index", func() error {
			n, err := br.count(minClassIndexSize)
			if err != nil {
				return err
			}
			b.ClassIndex = make([]netcache.ClassIndex, n)
			for i := range b.ClassIndex {
				ci := &b.ClassIndex[i]
				if ci.Class, err = br.ReadString(); err != nil {
					return err
				}
				if ci.Index, err = br.ReadUint32(); err != nil {
					return err
				}
			}
			return nil
		}},
		{"class net cache", func() error {
			n, err := br.count(minCacheEntrySize)
			if err != nil {
				return err
			}
			b.ClassNetCache = make([]netcache.CacheEntry, n)
			for i := range b.ClassNetCache {
				if err := br.cacheEntry(&b.ClassNetCache[i]); err != nil {
					return err
				}
			}
			return nil
		}},
	}
	for _, step := range steps {
		start := br.BytePos()
		if err := step.fn(); err != nil {
			return nil, errors.Wrapf(err, "reading %s at body byte %d", step.what, start)
		}
	}
	return &b, nil
}

// bodyReader adds the body's composite encodings to a bitreader.R.
type bodyReader struct {
	*bitreader.R
}

// count reads an element count, rejecting counts that cannot fit in the
// remaining data given each element's minimum size in bytes.
func (br bodyReader) count(minSize int) (int, error) {
	n, err := br.ReadUint32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize)*8 > br.Remaining() {
		return 0, errors.Wrapf(io.ErrUnexpectedEOF, "%d elements cannot fit in %d remaining bytes",
			n, br.Remaining()/8)
	}
	return int(n), nil
}

func (br bodyReader) strings() ([]string, error) {
	n, err := br.count(minStringSize)
	if err != nil {
		return nil, err
	}
	v := make([]string, n)
	for i := range v {
		if v[i], err = br.ReadString(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// unpack reads size bytes and unpacks them into v.
func (br bodyReader) unpack(size int, v interface{}) error {
	raw, err := br.Next(size)
	if err != nil {
		return err
	}
	return struc.Unpack(bytes.NewReader(raw), v)
}

func (br bodyReader) cacheEntry(ce *netcache.CacheEntry) (err error) {
	for _, dst := range []*uint32{&ce.ObjectIndex, &ce.ParentID, &ce.CacheID} {
		if *dst, err = br.ReadUint32(); err != nil {
			return
		}
	}

	n, err := br.count(cachePropertySize)
	if err != nil {
		return
	}
	ce.Properties = make([]netcache.CacheProperty, n)
	for i := range ce.Properties {
		p := &ce.Properties[i]
		if p.ObjectIndex, err = br.ReadUint32(); err != nil {
			return
		}
		if p.StreamID, err = br.ReadUint32(); err != nil {
			return
		}
	}
	return
}
