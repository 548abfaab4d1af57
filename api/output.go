package api

import (
	"encoding/json"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/tripd/geo/tripdetector"
	"io"
	"strings"
)

type OutputFormat string

const (
	OutputJSON    OutputFormat = "json"
	OutputGeoJSON OutputFormat = "geojson"
)

func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputJSON:
		return OutputJSON, nil
	case OutputGeoJSON:
		return OutputGeoJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// WriteTrips writes trips to w in the given format, followed by a newline.
// Equal trips always produce identical bytes.
func WriteTrips(w io.Writer, format OutputFormat, trips []tripdetector.Trip) error {
	if trips == nil {
		trips = []tripdetector.Trip{}
	}
	var v any = trips
	if format == OutputGeoJSON {
		v = TripsFeatureCollection(trips)
	}
	return json.NewEncoder(w).Encode(v)
}

// TripFeature is a two-point LineString from the trip start to its end.
func TripFeature(trip tripdetector.Trip) *geojson.Feature {
	f := geojson.NewFeature(orb.LineString{trip.Start.Point(), trip.End.Point()})
	f.Properties["Start"] = trip.Start.Timestamp
	f.Properties["End"] = trip.End.Timestamp
	f.Properties["Distance"] = trip.Distance
	f.Properties["Duration"] = tripDuration(trip).Seconds()
	return f
}

func TripsFeatureCollection(trips []tripdetector.Trip) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, trip := range trips {
		fc.Append(TripFeature(trip))
	}
	return fc
}
