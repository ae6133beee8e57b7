// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const (
	// metadataFileName is the name of the metadata file in an archive.
	metadataFileName = "metadata.json"

	// framesFileName is the name of the frame stream file in an archive.
	framesFileName = "frames.protostream"

	// currentVersion is the archive layout version written by this package.
	currentVersion = 1
)

// Metadata describes an archive.
type Metadata struct {
	// Version is the archive layout version.
	Version int `json:"version"`
	// Created is the time at which the archive was written.
	Created time.Time `json:"created"`

	// Name is a display name for the archived replay.
	Name string `json:"name,omitempty"`
	// CRC and EngineVersion are copied from the replay.
	CRC           string `json:"crc"`
	EngineVersion string `json:"engine_version"`
	// Header is the replay's header property tree, as JSON.
	Header json.RawMessage `json:"header"`

	FramesFile  string      `json:"frames_file"`
	Compression Compression `json:"compression"`
	NumFrames   int64       `json:"num_frames"`
	NumBytes    int64       `json:"num_bytes"`
}

// LoadMetadata loads the metadata of the archive at path.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := ioutil.ReadFile(filepath.Join(path, metadataFileName))
	if err != nil {
		return nil, err
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, errors.Wrap(err, "decoding metadata")
	}
	if md.Version != currentVersion {
		return nil, errors.Errorf("unsupported archive version %d", md.Version)
	}
	if md.FramesFile == "" || filepath.Base(md.FramesFile) != md.FramesFile {
		return nil, errors.Errorf("invalid frames file name %q", md.FramesFile)
	}
	return &md, nil
}

func (md *Metadata) write(path string) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}

// Validate validates that path is an archive.
func Validate(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return errors.New("is not a directory")
	}

	if _, err := LoadMetadata(path); err != nil {
		return errors.Wrap(err, "could not load metadata")
	}
	return nil
}
