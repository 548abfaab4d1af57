// Package measure holds the pure point-to-point measurements of the trip pipeline:
// elapsed seconds, surface meters, and speed between two waypoints.
package measure

import (
	"errors"
	"github.com/rotblauer/tripd/common"
	"github.com/rotblauer/tripd/geo/geodesy"
	"github.com/rotblauer/tripd/types/waypoint"
	"time"
)

// ErrZeroDuration is returned when a speed is asked of a zero-length interval.
var ErrZeroDuration = errors.New("measure: zero time difference")

// SpeedPrecision is the number of decimal places SpeedMPS rounds to.
const SpeedPrecision = 2

// TimeDelta returns b's time minus a's time, truncated toward zero to whole seconds.
// It is negative when b is before a.
// A timestamp that does not match waypoint.TimeLayout yields a *waypoint.FormatError.
func TimeDelta(a, b waypoint.Waypoint) (int, error) {
	ta, err := a.Time()
	if err != nil {
		return 0, err
	}
	tb, err := b.Time()
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta) / time.Second), nil
}

// DistanceMeters returns the surface distance between a and b, truncated to whole meters.
func DistanceMeters(d geodesy.Distancer, a, b waypoint.Waypoint) int {
	return int(d.Distance(a.Lat, a.Lng, b.Lat, b.Lng))
}

// SpeedMPS returns distance/timeDifference in m/s rounded to SpeedPrecision places.
func SpeedMPS(distance float64, timeDifference int) (float64, error) {
	if timeDifference == 0 {
		return 0, ErrZeroDuration
	}
	return common.DecimalToFixed(distance/float64(timeDifference), SpeedPrecision), nil
}
