package api

import (
	"github.com/ethereum/go-ethereum/metrics"
)

// Registry holds the pipeline counters, accumulated over every run in the process.
var Registry = metrics.NewRegistry()

const (
	MetricWaypoints = "pipeline.waypoints"
	MetricDiscarded = "pipeline.discarded"
	MetricSegments  = "pipeline.segments"
	MetricTrips     = "pipeline.trips"
	MetricRuns      = "pipeline.runs"
	MetricErrors    = "pipeline.errors"
)

var (
	waypointsCounter metrics.Counter
	discardedCounter metrics.Counter
	segmentsCounter  metrics.Counter
	tripsCounter     metrics.Counter
	runsCounter      metrics.Counter
	errorsCounter    metrics.Counter
)

func init() {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	waypointsCounter = metrics.GetOrRegisterCounter(MetricWaypoints, Registry)
	discardedCounter = metrics.GetOrRegisterCounter(MetricDiscarded, Registry)
	segmentsCounter = metrics.GetOrRegisterCounter(MetricSegments, Registry)
	tripsCounter = metrics.GetOrRegisterCounter(MetricTrips, Registry)
	runsCounter = metrics.GetOrRegisterCounter(MetricRuns, Registry)
	errorsCounter = metrics.GetOrRegisterCounter(MetricErrors, Registry)
}

// Counts returns the current value of every pipeline counter by name.
func Counts() map[string]int64 {
	out := make(map[string]int64)
	Registry.Each(func(name string, i interface{}) {
		if c, ok := i.(metrics.Counter); ok {
			out[name] = c.Snapshot().Count()
		}
	})
	return out
}
