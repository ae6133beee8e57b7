// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package replay assembles a decoded replay document from a replay file.
//
// Parse decodes a file's envelope, header property tree and body. The
// netstream is decoded separately, on demand, by ParseNetstream, so that
// header-only consumers never pay for it.
package replay

import (
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/danjacques/gorope/netcache"
	"github.com/danjacques/gorope/netstream"
	"github.com/danjacques/gorope/property"
	"github.com/danjacques/gorope/support/bitreader"
	"github.com/danjacques/gorope/support/logging"

	"github.com/pkg/errors"
)

// NumFramesKey is the header property holding the netstream's frame count.
const NumFramesKey = "NumFrames"

// Options configures replay decoding.
type Options struct {
	// Strict enables declared-size checks in the header property tree.
	Strict bool
	// MaxDepth bounds header array nesting. If zero, the property package
	// default is used.
	MaxDepth int

	// Classes resolves archetypes to classes. If nil, the default table is
	// used.
	Classes *netcache.ClassTable
	// Attributes decodes replicated property values. If nil, the netstream
	// defaults are used.
	Attributes netstream.Attributes

	// Logger, if not nil, receives debug output.
	Logger logging.L
}

// Replay is a decoded replay document.
type Replay struct {
	// CRC is the header CRC, as lowercase hex.
	CRC string
	// Version is the engine version, "major.minor".
	Version string

	Envelope *Envelope

	// Header is the header property tree.
	Header *property.Map

	// Body is the data following the header. It is nil if the body could not
	// be read; see BodyError.
	Body *Body

	// Frames holds the netstream's frames. It is nil until ParseNetstream is
	// called. If ParseNetstream fails, it holds the frames decoded before the
	// failure.
	Frames []*netstream.Frame

	opts    Options
	bodyErr error
}

// Load reads and parses the replay file at path.
func Load(path string, opts Options) (*Replay, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return Parse(data, opts)
}

// Parse parses the replay held in data.
//
// An error is returned if the envelope or header cannot be decoded. A body
// that cannot be decoded does not fail Parse: the header remains available,
// and the error is reported by BodyError and ParseNetstream.
func Parse(data []byte, opts Options) (*Replay, error) {
	log := logging.Must(opts.Logger)

	env, err := ReadEnvelope(data)
	if err != nil {
		replayErrors.WithLabelValues("envelope").Inc()
		return nil, err
	}

	rp := Replay{
		CRC:      env.CRCString(),
		Version:  env.Version(),
		Envelope: env,
		opts:     opts,
	}

	hr, err := env.header(data)
	if err != nil {
		replayErrors.WithLabelValues("header").Inc()
		return nil, errors.Wrap(err, "locating header")
	}
	pd := property.Decoder{
		MaxDepth: opts.MaxDepth,
		Strict:   opts.Strict,
		Logger:   opts.Logger,
	}
	if rp.Header, err = pd.DecodeMap(hr); err != nil {
		replayErrors.WithLabelValues("header").Inc()
		return nil, errors.Wrap(err, "decoding header")
	}
	log.Debugf("Decoded %d header properties (version %s).", rp.Header.Len(), rp.Version)

	if env.BodyStart > int64(len(data)) {
		rp.bodyErr = errors.Errorf("body offset %d is beyond the end of the %d-byte file",
			env.BodyStart, len(data))
	} else if rp.Body, rp.bodyErr = ReadBody(data[env.BodyStart:]); rp.bodyErr != nil {
		rp.bodyErr = errors.Wrapf(rp.bodyErr, "reading body at byte %d", env.BodyStart)
	}
	if rp.bodyErr != nil {
		replayErrors.WithLabelValues("body").Inc()
		log.Warnf("Replay body is unreadable: %s", rp.bodyErr)
	}

	replaysParsed.Inc()
	return &rp, nil
}

// BodyError returns the error encountered reading the body, if any.
func (rp *Replay) BodyError() error { return rp.bodyErr }

// NumFrames returns the frame count declared by the header. If the header
// does not declare one, NumFrames returns zero.
func (rp *Replay) NumFrames() int {
	n, _ := rp.Header.Int(NumFramesKey)
	return int(n)
}

// ParseNetstream decodes the netstream into rp.Frames.
//
// If the header declares a frame count, exactly that many frames are
// decoded. Otherwise frames are decoded until the stream is exhausted.
//
// Each call decodes from the start of the stream with a fresh actor
// registry, so repeated calls produce identical frames. On failure, the
// frames decoded before the failure are kept and the decoder's error is
// returned.
func (rp *Replay) ParseNetstream() error {
	if rp.bodyErr != nil {
		return rp.bodyErr
	}

	start := time.Now()
	cfg := netcache.Config{
		Classes: rp.opts.Classes,
		Logger:  rp.opts.Logger,
	}
	dec := netstream.Decoder{
		Objects:    netstream.ObjectTable(rp.Body.Objects),
		Mapper:     cfg.New(rp.Body.ClassIndex, rp.Body.ClassNetCache),
		Attributes: rp.opts.Attributes,
		Logger:     rp.opts.Logger,
	}

	frames, err := dec.NewSession().DecodeFrames(bitreader.New(rp.Body.Netstream), rp.NumFrames())
	rp.Frames = frames
	netstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		replayErrors.WithLabelValues("netstream").Inc()
		return err
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (rp *Replay) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CRC     string             `json:"crc"`
		Version string             `json:"version"`
		Header  *property.Map      `json:"header"`
		Frames  []*netstream.Frame `json:"frames"`
	}{rp.CRC, rp.Version, rp.Header, rp.Frames})
}
