// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_archive_frames_written",
		Help: "Count of frame records written to archives.",
	})

	bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_archive_bytes_written",
		Help: "Count of uncompressed frame record bytes written to archives.",
	})

	archiveErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_archive_errors",
		Help: "Count of archive write errors.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		framesWritten,
		bytesWritten,
		archiveErrors,
	)
}
