// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package replay

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	replaysParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_replay_parsed",
		Help: "Count of replays whose header was decoded.",
	})

	replayErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gorope_replay_errors",
		Help: "Count of replay decode errors, by stage.",
	}, []string{"stage"})

	netstreamDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gorope_replay_netstream_seconds",
		Help:    "Time spent decoding a replay's netstream.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		replaysParsed,
		replayErrors,
		netstreamDuration,
	)
}
