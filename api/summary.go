package api

import (
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/tripd/common"
	"github.com/rotblauer/tripd/geo/cleaner"
	"github.com/rotblauer/tripd/geo/tripdetector"
	"time"
)

// Summary describes one pipeline run. Distances are meters, speeds m/s, durations seconds.
type Summary struct {
	Waypoints int `json:"waypoints"`
	Segments  int `json:"segments"`
	Discarded int `json:"discarded"`
	Trips     int `json:"trips"`

	TripDistanceTotal  float64 `json:"trip_distance_total"`
	TripDistanceMean   float64 `json:"trip_distance_mean"`
	TripDistanceMedian float64 `json:"trip_distance_median"`
	TripDistanceMax    float64 `json:"trip_distance_max"`
	TripDurationTotal  float64 `json:"trip_duration_total"`

	SpeedMean   float64 `json:"speed_mean"`
	SpeedMedian float64 `json:"speed_median"`
	SpeedMax    float64 `json:"speed_max"`
}

// Summarize computes the run statistics. Empty inputs leave their statistics zero.
func Summarize(waypoints int, discarded int, segments []cleaner.Segment, trips []tripdetector.Trip) *Summary {
	s := &Summary{
		Waypoints: waypoints,
		Segments:  len(segments),
		Discarded: discarded,
		Trips:     len(trips),
	}

	if len(trips) > 0 {
		distances := make(stats.Float64Data, 0, len(trips))
		durations := 0.0
		for _, trip := range trips {
			distances = append(distances, trip.Distance)
			durations += tripDuration(trip).Seconds()
		}
		s.TripDistanceTotal = round(distances.Sum)
		s.TripDistanceMean = round(distances.Mean)
		s.TripDistanceMedian = round(distances.Median)
		s.TripDistanceMax = round(distances.Max)
		s.TripDurationTotal = durations
	}

	if len(segments) > 0 {
		speeds := make(stats.Float64Data, 0, len(segments))
		for _, seg := range segments {
			speeds = append(speeds, seg.Speed)
		}
		s.SpeedMean = round(speeds.Mean)
		s.SpeedMedian = round(speeds.Median)
		s.SpeedMax = round(speeds.Max)
	}
	return s
}

func round(stat func() (float64, error)) float64 {
	v, err := stat()
	if err != nil {
		return 0
	}
	return common.DecimalToFixed(v, 2)
}

func tripDuration(trip tripdetector.Trip) time.Duration {
	start, err := trip.Start.Time()
	if err != nil {
		return 0
	}
	end, err := trip.End.Time()
	if err != nil {
		return 0
	}
	return end.Sub(start)
}
