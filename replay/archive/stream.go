// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"bufio"
	"compress/gzip"
	"io"

	"github.com/danjacques/gorope/support/dataio"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// streamBufferSize is the buffer size used for frame files.
const streamBufferSize = 1024 * 256

type frameStreamReader struct {
	// Currently connected to the source reader.
	dataio.Reader

	br      *bufio.Reader
	snappyR *snappy.Reader
	gzipR   *gzip.Reader
}

func (r *frameStreamReader) reset(base io.Reader, comp Compression) error {
	if r.br == nil {
		r.br = bufio.NewReaderSize(base, streamBufferSize)
	} else {
		r.br.Reset(base)
	}

	switch comp {
	case CompressionSnappy:
		if r.snappyR == nil {
			r.snappyR = snappy.NewReader(r.br)
		} else {
			r.snappyR.Reset(r.br)
		}
		r.Reader = dataio.MakeReader(r.snappyR)

	case CompressionGzip:
		if r.gzipR == nil {
			gz, err := gzip.NewReader(r.br)
			if err != nil {
				return errors.Wrap(err, "creating gzip reader")
			}
			r.gzipR = gz
		} else if err := r.gzipR.Reset(r.br); err != nil {
			return errors.Wrap(err, "resetting gzip reader")
		}
		r.Reader = dataio.MakeReader(r.gzipR)

	case CompressionNone:
		r.Reader = r.br

	default:
		return errors.Errorf("unknown compression: %s", comp)
	}
	return nil
}

type frameStreamWriter struct {
	dataio.Writer

	closer  io.Closer
	bw      *bufio.Writer
	snappyW *snappy.Writer
	gzipW   *gzip.Writer
}

func newFrameStreamWriter(base io.WriteCloser, comp Compression, level int) (*frameStreamWriter, error) {
	w := frameStreamWriter{
		bw:     bufio.NewWriterSize(base, streamBufferSize),
		closer: base,
	}

	switch comp {
	case CompressionSnappy:
		w.snappyW = snappy.NewBufferedWriter(w.bw)
		w.Writer = dataio.MakeWriter(w.snappyW)

	case CompressionGzip:
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(w.bw, level)
		if err != nil {
			return nil, errors.Wrap(err, "creating gzip writer")
		}
		w.gzipW = gw
		w.Writer = dataio.MakeWriter(w.gzipW)

	case CompressionNone:
		w.Writer = w.bw

	default:
		return nil, errors.Errorf("unknown compression: %s", comp)
	}
	return &w, nil
}

// Close flushes any compression state and closes the underlying file.
func (w *frameStreamWriter) Close() (err error) {
	defer func() {
		if closeErr := w.closer.Close(); err == nil {
			err = closeErr
		}
	}()

	if w.snappyW != nil {
		if err = w.snappyW.Close(); err != nil {
			return
		}
	}
	if w.gzipW != nil {
		if err = w.gzipW.Close(); err != nil {
			return
		}
	}
	return w.bw.Flush()
}
