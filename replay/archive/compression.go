// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Compression is the compression applied to an archive's frame stream.
type Compression int32

const (
	// CompressionNone stores frames uncompressed.
	CompressionNone Compression = iota
	// CompressionSnappy compresses frames with snappy's framed format.
	CompressionSnappy
	// CompressionGzip compresses frames with gzip.
	CompressionGzip
)

var compressionNames = [...]string{
	CompressionNone:   "NONE",
	CompressionSnappy: "SNAPPY",
	CompressionGzip:   "GZIP",
}

func (c Compression) String() string {
	if c >= 0 && int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return "UNKNOWN"
}

// ParseCompression returns the Compression named v. Names are matched
// case-insensitively.
func ParseCompression(v string) (Compression, error) {
	for i, name := range compressionNames {
		if strings.EqualFold(name, v) {
			return Compression(i), nil
		}
	}
	return 0, errors.Errorf("unknown compression type: %q", v)
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(v []byte) (err error) {
	*c, err = ParseCompression(string(v))
	return
}

// CompressionFlag is a pflag.Value implementation that stores a compression
// value.
type CompressionFlag Compression

var _ pflag.Value = (*CompressionFlag)(nil)

func (cf *CompressionFlag) String() string { return Compression(*cf).String() }

// Set implements pflag.Value.
func (cf *CompressionFlag) Set(v string) error {
	c, err := ParseCompression(v)
	if err != nil {
		return err
	}
	*cf = CompressionFlag(c)
	return nil
}

// Type implements pflag.Value.
func (cf *CompressionFlag) Type() string { return "archive.Compression" }

// Value returns the compression value held by this flag.
func (cf CompressionFlag) Value() Compression { return Compression(cf) }

// CompressionFlagValues returns the list of possible values for a
// CompressionFlag.
func CompressionFlagValues() string { return strings.Join(compressionNames[:], ", ") }
