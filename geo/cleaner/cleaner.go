// Package cleaner turns an ordered waypoint sequence into annotated segments,
// dropping the transitions no ground vehicle could have made.
package cleaner

import (
	"fmt"
	"github.com/rotblauer/tripd/geo/geodesy"
	"github.com/rotblauer/tripd/geo/measure"
	"github.com/rotblauer/tripd/params"
	"github.com/rotblauer/tripd/types/waypoint"
	"log/slog"
)

// Segment is an adjacent waypoint pair that survived cleaning.
type Segment struct {
	// TotalDistance is the cumulative distance in meters from the first waypoint
	// of the batch through EndPoint, including the distances of dropped pairs.
	TotalDistance float64 `json:"total_distance"`

	// Speed is the raw (unrounded) implied speed of this pair in m/s.
	Speed float64 `json:"speed"`

	// TimeDifference is the whole seconds between StartPoint and EndPoint.
	// It is always positive.
	TimeDifference int `json:"time_difference"`

	StartPoint waypoint.Waypoint `json:"start_point"`
	EndPoint   waypoint.Waypoint `json:"end_point"`
}

// Cleaner annotates waypoint pairs and filters out teleportations.
// It can be used on a whole batch with Clean, or fed one waypoint at a time with Add.
type Cleaner struct {
	Config    *params.CleanConfig
	Distancer geodesy.Distancer

	// Discarded is the number of pairs dropped since the last Reset.
	Discarded int

	last          *waypoint.Waypoint
	pairs         int
	distanceTotal float64
}

func NewCleaner(config *params.CleanConfig, distancer geodesy.Distancer) *Cleaner {
	if config == nil {
		config = params.DefaultCleanConfig
	}
	if distancer == nil {
		distancer = geodesy.Geodesic{}
	}
	return &Cleaner{
		Config:    config,
		Distancer: distancer,
	}
}

// Reset forgets the previous waypoint, the running total, and the discard count.
func (c *Cleaner) Reset() {
	c.Discarded = 0
	c.last = nil
	c.pairs = 0
	c.distanceTotal = 0
}

// Add pairs p with the previously added waypoint.
// It returns the annotated segment, or nil if p is the first waypoint
// or the pair was dropped.
// The running total distance counts every pair, kept or dropped.
// A pair with a zero or negative time difference has no defined speed;
// it is treated as infinitely fast and dropped.
func (c *Cleaner) Add(p waypoint.Waypoint) (*Segment, error) {
	if c.last == nil {
		c.last = &p
		return nil, nil
	}
	a, b := *c.last, p
	i := c.pairs

	timeDifference, err := measure.TimeDelta(a, b)
	if err != nil {
		return nil, fmt.Errorf("waypoint pair %d: %w", i, err)
	}
	c.last = &p
	c.pairs++

	distance := measure.DistanceMeters(c.Distancer, a, b)
	c.distanceTotal += float64(distance)

	if timeDifference <= 0 {
		c.Discarded++
		slog.Debug("Dropped non-chronological waypoint pair",
			"i", i, "seconds", timeDifference, "meters", distance)
		return nil, nil
	}

	speed := float64(distance) / float64(timeDifference)
	if speed >= c.Config.ImplausibleSpeed {
		c.Discarded++
		slog.Debug("Dropped implausible waypoint pair",
			"i", i, "speed", speed, "meters", distance, "seconds", timeDifference)
		return nil, nil
	}

	return &Segment{
		TotalDistance:  c.distanceTotal,
		Speed:          speed,
		TimeDifference: timeDifference,
		StartPoint:     a,
		EndPoint:       b,
	}, nil
}

// Clean resets the cleaner and returns one Segment for each adjacent pair of points
// whose implied speed is below the implausible speed.
// Fewer than two points yield no segments.
// Any malformed timestamp fails the whole batch.
func (c *Cleaner) Clean(points []waypoint.Waypoint) ([]Segment, error) {
	c.Reset()
	if len(points) < 2 {
		return []Segment{}, nil
	}

	segments := make([]Segment, 0, len(points)-1)
	for _, p := range points {
		seg, err := c.Add(p)
		if err != nil {
			return nil, err
		}
		if seg != nil {
			segments = append(segments, *seg)
		}
	}
	return segments, nil
}

// Clean is a convenience for a one-off Cleaner.Clean.
func Clean(config *params.CleanConfig, distancer geodesy.Distancer, points []waypoint.Waypoint) ([]Segment, error) {
	return NewCleaner(config, distancer).Clean(points)
}
