package tripdetector

import (
	"github.com/rotblauer/tripd/geo/cleaner"
	"github.com/rotblauer/tripd/params"
	"github.com/rotblauer/tripd/types/waypoint"
	"log/slog"
	"time"
)

// Trip is a detected interval of movement, bounded by an acceleration
// and a sustained stop.
type Trip struct {
	Start    waypoint.Waypoint `json:"start"`
	End      waypoint.Waypoint `json:"end"`
	Distance float64           `json:"distance"`
}

// Mode is whether the detector is currently inside a trip.
type Mode int

const (
	ModeIdle Mode = iota
	ModeTripping
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeTripping:
		return "tripping"
	}
	return "unknown"
}

// State is everything the detector carries from one segment pair to the next.
// The zero value is an idle detector.
type State struct {
	Mode Mode

	// Start is the segment the current trip started at. Set only while tripping.
	Start *cleaner.Segment

	// Stopped is the first segment of the current stationary streak.
	Stopped *cleaner.Segment

	// StoppedTime is the accumulated seconds of the current stationary streak.
	StoppedTime int
}

func (s State) stoppedLongerThan(d time.Duration) bool {
	return time.Duration(s.StoppedTime)*time.Second > d
}

// Step advances state over one consecutive segment pair and returns the new state,
// a trip if one was closed, and a short reason describing what happened.
// Step does not modify its input.
func Step(config *params.TripDetectorConfig, state State, cur, next cleaner.Segment) (State, *Trip, string) {
	if state.Mode == ModeIdle {
		state.Stopped = nil
		state.StoppedTime = 0
		if next.TotalDistance-cur.TotalDistance >= config.StartDistance &&
			next.Speed-cur.Speed > config.StartAcceleration {
			start := next
			state.Start = &start
			state.Mode = ModeTripping
			return state, nil, "accelerating"
		}
		return state, nil, "idle"
	}

	if !isStationary(config, cur) || !isStationary(config, next) {
		state.Stopped = nil
		state.StoppedTime = 0
		return state, nil, "moving"
	}

	if !config.StopDistanceParity && next.TotalDistance-cur.TotalDistance > config.StopDistance {
		// Slow, but covering ground. Neither a stop nor a break in one.
		return state, nil, "creeping"
	}

	state.StoppedTime += cur.TimeDifference
	if state.Stopped == nil {
		stopped := cur
		state.Stopped = &stopped
		return state, nil, "stopping"
	}
	if !state.stoppedLongerThan(config.StopDuration) {
		return state, nil, "stopping"
	}

	trip := newTrip(*state.Start, *state.Stopped)
	return State{}, &trip, "stopped"
}

func newTrip(start, stopped cleaner.Segment) Trip {
	return Trip{
		Start:    start.StartPoint,
		End:      stopped.StartPoint,
		Distance: stopped.TotalDistance - start.TotalDistance,
	}
}

func isStationary(config *params.TripDetectorConfig, s cleaner.Segment) bool {
	return s.Speed < config.StationarySpeed
}

// TripDetector folds a sequence of cleaned segments into trips.
// Segments are given one at a time with Add; Finish flushes the end of the sequence.
type TripDetector struct {
	Config *params.TripDetectorConfig
	State  State

	// MotionStateReason describes the reason for the current state of the TripDetector.
	MotionStateReason string

	// last is the most recent segment, waiting for its successor.
	last *cleaner.Segment
}

func NewTripDetector(config *params.TripDetectorConfig) *TripDetector {
	if config == nil {
		config = params.DefaultTripDetectorConfig
	}
	return &TripDetector{
		Config:            config,
		MotionStateReason: "init",
	}
}

func (d *TripDetector) ResetState() {
	d.State = State{}
	d.MotionStateReason = "reset"
	d.last = nil
}

// Tripping is true while a trip is open.
func (d *TripDetector) Tripping() bool {
	return d.State.Mode == ModeTripping
}

// Add feeds the next segment to the detector.
// It returns a trip if this segment confirmed the end of one.
func (d *TripDetector) Add(seg cleaner.Segment) *Trip {
	defer func() {
		d.last = &seg
	}()
	if d.last == nil {
		return nil
	}

	var trip *Trip
	d.State, trip, d.MotionStateReason = Step(d.Config, d.State, *d.last, seg)
	if trip != nil {
		slog.Debug("Trip detected", "start", trip.Start, "end", trip.End, "distance", trip.Distance)
	}
	return trip
}

// Finish flushes the end of the sequence and resets the detector.
// If the last segment is stationary its duration counts toward the current stop,
// and a stop that is then long enough closes the open trip.
// A trip still moving at the end is dropped unless Config.FlushOpenTrip is set.
func (d *TripDetector) Finish() *Trip {
	defer d.ResetState()
	if d.last == nil {
		return nil
	}
	last := *d.last
	state := d.State

	if isStationary(d.Config, last) {
		state.StoppedTime += last.TimeDifference
		if state.stoppedLongerThan(d.Config.StopDuration) {
			if state.Mode != ModeTripping {
				slog.Debug("Stop at end of sequence without an open trip", "seconds", state.StoppedTime)
				return nil
			}
			stopped := last
			if state.Stopped != nil {
				stopped = *state.Stopped
			}
			trip := newTrip(*state.Start, stopped)
			return &trip
		}
	}

	if state.Mode == ModeTripping && d.Config.FlushOpenTrip {
		trip := Trip{
			Start:    state.Start.StartPoint,
			End:      last.EndPoint,
			Distance: last.TotalDistance - state.Start.TotalDistance,
		}
		return &trip
	}
	if state.Mode == ModeTripping {
		slog.Debug("Dropped open trip at end of sequence", "start", state.Start.StartPoint)
	}
	return nil
}

// Detect runs a fresh detector over segments and returns the trips in detection order.
func Detect(config *params.TripDetectorConfig, segments []cleaner.Segment) []Trip {
	d := NewTripDetector(config)
	trips := []Trip{}
	for _, seg := range segments {
		if trip := d.Add(seg); trip != nil {
			trips = append(trips, *trip)
		}
	}
	if trip := d.Finish(); trip != nil {
		trips = append(trips, *trip)
	}
	return trips
}
