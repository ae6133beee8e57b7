// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/danjacques/gorope/netstream"
	"github.com/danjacques/gorope/replay"
	"github.com/danjacques/gorope/support/logging"
	"github.com/danjacques/gorope/support/protostream"
	"github.com/danjacques/gorope/support/stagingdir"

	"github.com/golang/protobuf/ptypes/wrappers"
	"github.com/pkg/errors"
)

// Config configures archive writing.
type Config struct {
	// Compression is the compression to apply to the frame stream.
	Compression Compression
	// CompressionLevel is the gzip compression level. If zero, gzip's default
	// is used.
	CompressionLevel int

	// TempDir is the directory in which archives are staged. If empty, the
	// system temporary directory is used.
	TempDir string

	// NowFunc, if not nil, is the function to use to get the current time. If
	// nil, time.Now will be used.
	NowFunc func() time.Time

	// Logger, if not nil, receives debug output.
	Logger logging.L
}

func (cfg *Config) now() time.Time {
	if cfg.NowFunc != nil {
		return cfg.NowFunc()
	}
	return time.Now()
}

// Writer writes an archive.
//
// The archive is assembled in a staging directory and moved to its
// destination by Close.
type Writer struct {
	cfg *Config

	destPath   string
	stagingDir *stagingdir.D
	frameW     *frameStreamWriter

	enc protostream.Encoder
	md  Metadata
}

// NewWriter begins an archive of rp at path. rp's frames are not written;
// use WriteFrame, or WriteReplay to write everything at once.
func (cfg *Config) NewWriter(path string, rp *replay.Replay) (*Writer, error) {
	header, err := json.Marshal(rp.Header)
	if err != nil {
		return nil, errors.Wrap(err, "encoding header")
	}

	stagingDir, err := stagingdir.New(cfg.TempDir, filepath.Base(path))
	if err != nil {
		return nil, errors.Wrap(err, "creating staging directory")
	}
	defer func() {
		// Cleanup if we failed to complete our creation.
		if stagingDir != nil {
			_ = stagingDir.Destroy()
		}
	}()

	fd, err := os.Create(stagingDir.Path(framesFileName))
	if err != nil {
		return nil, errors.Wrap(err, "creating frames file")
	}
	frameW, err := newFrameStreamWriter(fd, cfg.Compression, cfg.CompressionLevel)
	if err != nil {
		_ = fd.Close()
		return nil, err
	}

	w := Writer{
		cfg:        cfg,
		destPath:   path,
		stagingDir: stagingDir,
		frameW:     frameW,
		md: Metadata{
			Version:       currentVersion,
			Created:       cfg.now().UTC(),
			Name:          filepath.Base(path),
			CRC:           rp.CRC,
			EngineVersion: rp.Version,
			Header:        header,
			FramesFile:    framesFileName,
			Compression:   cfg.Compression,
		},
	}
	stagingDir = nil // Owned by w.
	return &w, nil
}

// Path returns the destination path of the archive.
func (w *Writer) Path() string { return w.destPath }

// NumFrames returns the number of frames written so far.
func (w *Writer) NumFrames() int64 { return w.md.NumFrames }

// WriteFrame appends f to the archive's frame stream.
func (w *Writer) WriteFrame(f *netstream.Frame) error {
	rec, err := FrameRecord(f)
	if err != nil {
		return errors.Wrapf(err, "converting frame %d", w.md.NumFrames)
	}

	amt, err := w.enc.Write(w.frameW, rec)
	if err != nil {
		archiveErrors.Inc()
		return errors.Wrapf(err, "writing frame %d", w.md.NumFrames)
	}

	w.md.NumFrames++
	w.md.NumBytes += int64(amt)
	framesWritten.Inc()
	bytesWritten.Add(float64(amt))
	return nil
}

// Close finalizes the archive and moves it into place.
func (w *Writer) Close() error {
	// If committed, this is a no-op.
	defer func() {
		_ = w.stagingDir.Destroy()
	}()

	if err := w.frameW.Close(); err != nil {
		archiveErrors.Inc()
		return errors.Wrap(err, "closing frames file")
	}
	if err := w.md.write(w.stagingDir.Path(metadataFileName)); err != nil {
		archiveErrors.Inc()
		return errors.Wrap(err, "writing metadata file")
	}
	if err := w.stagingDir.Commit(w.destPath); err != nil {
		archiveErrors.Inc()
		return errors.Wrap(err, "committing staging dir")
	}

	logging.Must(w.cfg.Logger).Debugf("Wrote %d frames (%d bytes) to archive %q.",
		w.md.NumFrames, w.md.NumBytes, w.destPath)
	return nil
}

// Discard abandons the archive, deleting its staged contents.
func (w *Writer) Discard() error {
	_ = w.frameW.Close()
	return w.stagingDir.Destroy()
}

// WriteReplay writes rp, including its decoded frames, to an archive at
// path.
func (cfg *Config) WriteReplay(path string, rp *replay.Replay) error {
	w, err := cfg.NewWriter(path, rp)
	if err != nil {
		return err
	}

	for _, f := range rp.Frames {
		if err := w.WriteFrame(f); err != nil {
			_ = w.Discard()
			return err
		}
	}
	return w.Close()
}

// FrameRecord converts f into the record stored in an archive: a BytesValue
// holding the frame's JSON document, byte for byte.
func FrameRecord(f *netstream.Frame) (*wrappers.BytesValue, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return &wrappers.BytesValue{Value: data}, nil
}
