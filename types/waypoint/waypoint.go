// Package waypoint defines the GPS fix consumed by the trip pipeline.
package waypoint

import (
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"time"
)

// TimeLayout is the only timestamp layout waypoints are allowed to carry.
// It is ISO-8601 in UTC, with second granularity and a literal Z zone.
const TimeLayout = "2006-01-02T15:04:05Z"

// Waypoint is a single GPS fix.
// The timestamp is kept as the caller gave it so that any waypoint
// echoed back in output is byte-identical to its input.
type Waypoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp string  `json:"timestamp"`
}

// ErrNotCanonical is wrapped by a FormatError for a timestamp that parses
// but is not written exactly in TimeLayout, e.g. with fractional seconds.
var ErrNotCanonical = errors.New("not in canonical form")

// FormatError is returned when a waypoint timestamp does not match its expected layout.
type FormatError struct {
	Value string
	// Layout is the layout the value was parsed with. Empty means TimeLayout.
	Layout string
	Err    error
}

func (e *FormatError) Error() string {
	layout := e.Layout
	if layout == "" {
		layout = TimeLayout
	}
	return fmt.Sprintf("waypoint: timestamp %q does not match %s: %v", e.Value, layout, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Time parses the waypoint timestamp as UTC.
// The timestamp must be exactly TimeLayout; the lenient forms time.Parse
// also accepts (fractional seconds, single-digit hours) are a FormatError.
func (w Waypoint) Time() (time.Time, error) {
	t, err := time.Parse(TimeLayout, w.Timestamp)
	if err != nil {
		return time.Time{}, &FormatError{Value: w.Timestamp, Err: err}
	}
	if t.Format(TimeLayout) != w.Timestamp {
		return time.Time{}, &FormatError{Value: w.Timestamp, Err: ErrNotCanonical}
	}
	return t, nil
}

// MustTime gets the time or panics.
func (w Waypoint) MustTime() time.Time {
	t, err := w.Time()
	if err != nil {
		panic(err)
	}
	return t
}

// Point returns the waypoint as an orb.Point (x,y::lng,lat).
func (w Waypoint) Point() orb.Point {
	return orb.Point{w.Lng, w.Lat}
}

// FromPoint builds a waypoint from an orb.Point and a time.
func FromPoint(pt orb.Point, t time.Time) Waypoint {
	return Waypoint{
		Lat:       pt.Lat(),
		Lng:       pt.Lon(),
		Timestamp: t.UTC().Format(TimeLayout),
	}
}

func (w Waypoint) String() string {
	return fmt.Sprintf("(%.5f,%.5f @ %s)", w.Lat, w.Lng, w.Timestamp)
}
