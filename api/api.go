// Package api runs the trip extraction pipeline: waypoints in, trips out.
package api

import (
	"context"
	"fmt"
	"github.com/rotblauer/tripd/geo/cleaner"
	"github.com/rotblauer/tripd/geo/geodesy"
	"github.com/rotblauer/tripd/geo/tripdetector"
	"github.com/rotblauer/tripd/params"
	"github.com/rotblauer/tripd/types/waypoint"
	"log/slog"
	"time"
)

// Pipeline is a configured cleaner and trip detector.
// A Pipeline holds no per-run state and may serve concurrent runs.
type Pipeline struct {
	Config    *params.Config
	Distancer geodesy.Distancer

	logger *slog.Logger
}

// Result is the outcome of one run.
type Result struct {
	Trips     []tripdetector.Trip `json:"trips"`
	Segments  int                 `json:"segments"`
	Discarded int                 `json:"discarded"`
	Summary   *Summary            `json:"summary"`
}

// NewPipeline resolves the configured distance method. A nil config uses the defaults.
func NewPipeline(config *params.Config) (*Pipeline, error) {
	if config == nil {
		config = params.DefaultConfig()
	}
	distancer, err := geodesy.ForMethod(config.GeodesyConfig.Method)
	if err != nil {
		return nil, err
	}
	if config.GeodesyConfig.CacheSize > 0 {
		cached, err := geodesy.NewCached(distancer, config.GeodesyConfig.CacheSize)
		if err != nil {
			return nil, err
		}
		distancer = cached
	}
	return &Pipeline{
		Config:    config,
		Distancer: distancer,
		logger:    slog.With("api", "pipeline"),
	}, nil
}

// Extract cleans points and detects trips in them.
// A malformed timestamp anywhere in points fails the run with a *waypoint.FormatError.
func (p *Pipeline) Extract(ctx context.Context, points []waypoint.Waypoint) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()
	runsCounter.Inc(1)
	waypointsCounter.Inc(int64(len(points)))

	c := cleaner.NewCleaner(&p.Config.CleanConfig, p.Distancer)
	segments, err := c.Clean(points)
	if err != nil {
		errorsCounter.Inc(1)
		return nil, fmt.Errorf("clean: %w", err)
	}
	discardedCounter.Inc(int64(c.Discarded))
	segmentsCounter.Inc(int64(len(segments)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trips := tripdetector.Detect(&p.Config.TripDetectorConfig, segments)
	tripsCounter.Inc(int64(len(trips)))

	p.logger.Debug("Extracted trips",
		"waypoints", len(points), "segments", len(segments),
		"discarded", c.Discarded, "trips", len(trips),
		"elapsed", time.Since(started).Round(time.Microsecond))

	return &Result{
		Trips:     trips,
		Segments:  len(segments),
		Discarded: c.Discarded,
		Summary:   Summarize(len(points), c.Discarded, segments, trips),
	}, nil
}

// ExtractStream runs the pipeline incrementally over in, sending each trip as soon as
// the segment that closes it arrives, and the trip left at the end of in (if any) last.
// inErrs, if not nil, is the producer's error channel; it is read once in is closed.
// A producer error means the input was cut short: the end of input is not flushed
// and the producer's error is reported instead.
// The first error is sent on the buffered error channel, which is closed after the trip channel.
// On error the rest of in is not read; cancel ctx to release its producer.
func (p *Pipeline) ExtractStream(ctx context.Context, in <-chan waypoint.Waypoint, inErrs <-chan error) (<-chan tripdetector.Trip, <-chan error) {
	out := make(chan tripdetector.Trip)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		runsCounter.Inc(1)

		c := cleaner.NewCleaner(&p.Config.CleanConfig, p.Distancer)
		d := tripdetector.NewTripDetector(&p.Config.TripDetectorConfig)
		send := func(trip *tripdetector.Trip) bool {
			if trip == nil {
				return true
			}
			tripsCounter.Inc(1)
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return false
			case out <- *trip:
				return true
			}
		}

		for point := range in {
			waypointsCounter.Inc(1)
			seg, err := c.Add(point)
			if err != nil {
				errorsCounter.Inc(1)
				errs <- fmt.Errorf("clean: %w", err)
				return
			}
			if seg == nil {
				continue
			}
			segmentsCounter.Inc(1)
			if !send(d.Add(*seg)) {
				return
			}
		}
		discardedCounter.Inc(int64(c.Discarded))
		if inErrs != nil {
			if err := <-inErrs; err != nil {
				errorsCounter.Inc(1)
				errs <- fmt.Errorf("source: %w", err)
				return
			}
		}
		send(d.Finish())
	}()
	return out, errs
}

// Extract runs a one-off pipeline. A nil config uses the defaults.
func Extract(ctx context.Context, config *params.Config, points []waypoint.Waypoint) (*Result, error) {
	p, err := NewPipeline(config)
	if err != nil {
		return nil, err
	}
	return p.Extract(ctx, points)
}

// ExtractTrips returns the trips in points under the default configuration.
func ExtractTrips(points []waypoint.Waypoint) ([]tripdetector.Trip, error) {
	res, err := Extract(context.Background(), nil, points)
	if err != nil {
		return nil, err
	}
	return res.Trips, nil
}
