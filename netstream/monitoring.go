// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_netstream_frames",
		Help: "Count of netstream frames decoded.",
	})

	eventsDecoded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gorope_netstream_events",
		Help: "Count of actor events decoded, by kind.",
	},
		[]string{"kind"})

	orphanDeletes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_netstream_orphan_deletes",
		Help: "Count of deletes for actors that were never spawned.",
	})

	frameErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_netstream_frame_errors",
		Help: "Count of frames rejected for invalid timestamps.",
	})

	unknownActors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_netstream_unknown_actor_errors",
		Help: "Count of updates referencing unregistered actors.",
	})

	propertyErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorope_netstream_property_errors",
		Help: "Count of replicated property values that failed to decode.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		framesDecoded,
		eventsDecoded,
		orphanDeletes,

		// Errors
		frameErrors,
		unknownActors,
		propertyErrors,
	)
}
