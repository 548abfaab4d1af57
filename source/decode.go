package source

import (
	"bytes"
	"context"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/tripd/stream"
	"github.com/rotblauer/tripd/types/waypoint"
	"github.com/tidwall/gjson"
	"io"
	"time"
)

type Format int

const (
	FormatUnknown Format = iota

	// FormatJSON is a JSON array of {"lat","lng","timestamp"} objects.
	FormatJSON

	// FormatGeoJSON is either a FeatureCollection or newline-delimited Features,
	// each a Point with a timestamp property.
	FormatGeoJSON
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatGeoJSON:
		return "geojson"
	}
	return "unknown"
}

// Sniff guesses the format of data from its first JSON value.
func Sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	switch trimmed[0] {
	case '[':
		return FormatJSON
	case '{':
		switch gjson.GetBytes(trimmed, "type").String() {
		case "Feature", "FeatureCollection":
			return FormatGeoJSON
		}
	}
	return FormatUnknown
}

// Decode sniffs and decodes data into waypoints, in input order.
func Decode(ctx context.Context, data []byte) ([]waypoint.Waypoint, error) {
	switch Sniff(data) {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatGeoJSON:
		return DecodeGeoJSON(ctx, data)
	}
	return nil, ErrUnsupportedFormat
}

// DecodeJSON decodes a JSON array of waypoints.
// Timestamps are kept verbatim; they are validated later, by the cleaner.
func DecodeJSON(data []byte) ([]waypoint.Waypoint, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrUnsupportedFormat)
	}
	result := gjson.ParseBytes(data)
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: not an array", ErrUnsupportedFormat)
	}

	meter := stream.NewTickMeter("json", 0)
	defer meter.Stop()

	points := make([]waypoint.Waypoint, 0)
	var err error
	result.ForEach(func(_, value gjson.Result) bool {
		i := len(points)
		if !value.IsObject() {
			err = fmt.Errorf("waypoint %d: not an object", i)
			return false
		}
		lat, lng, ts := value.Get("lat"), value.Get("lng"), value.Get("timestamp")
		if lat.Type != gjson.Number || lng.Type != gjson.Number {
			err = fmt.Errorf("waypoint %d: lat and lng must be numbers", i)
			return false
		}
		if ts.Type != gjson.String {
			err = fmt.Errorf("waypoint %d: timestamp must be a string", i)
			return false
		}
		points = append(points, waypoint.Waypoint{
			Lat:       lat.Float(),
			Lng:       lng.Float(),
			Timestamp: ts.String(),
		})
		meter.Mark(1, int64(len(value.Raw)))
		return true
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// DecodeGeoJSON decodes a FeatureCollection or a stream of Features.
// Only Point features are read. The timestamp is taken from the "timestamp"
// property, else the "Time" property; RFC 3339 times are normalized to UTC seconds.
func DecodeGeoJSON(ctx context.Context, data []byte) ([]waypoint.Waypoint, error) {
	if gjson.GetBytes(data, "type").String() == "FeatureCollection" {
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		points := make([]waypoint.Waypoint, 0, len(fc.Features))
		for i, f := range fc.Features {
			p, err := featureWaypoint(f)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			points = append(points, p)
		}
		return points, nil
	}

	ch, errs := StreamGeoJSON(ctx, bytes.NewReader(data))
	points := stream.Collect(ctx, ch)
	if err := <-errs; err != nil {
		return nil, err
	}
	return points, nil
}

// StreamGeoJSON decodes newline-delimited Point features from r as they arrive.
// It stops at the first bad feature, sending its error on the buffered error channel,
// which is closed after the waypoint channel.
func StreamGeoJSON(ctx context.Context, r io.Reader) (<-chan waypoint.Waypoint, <-chan error) {
	out := make(chan waypoint.Waypoint)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)

		meter := stream.NewTickMeter("geojson", 5*time.Second)
		defer meter.Stop()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		features, featureErrs := stream.NDJSON[geojson.Feature](ctx, r)
		n := 0
		for f := range features {
			p, err := featureWaypoint(&f)
			if err != nil {
				errs <- fmt.Errorf("feature %d: %w", n, err)
				return
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case out <- p:
			}
			n++
			meter.Mark(1, 0)
		}
		if err := <-featureErrs; err != nil {
			errs <- err
		}
	}()
	return out, errs
}

func featureWaypoint(f *geojson.Feature) (waypoint.Waypoint, error) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return waypoint.Waypoint{}, fmt.Errorf("geometry is not a point")
	}
	var ts string
	for _, key := range []string{"timestamp", "Time"} {
		if v, ok := f.Properties[key].(string); ok {
			ts = v
			break
		}
	}
	if ts == "" {
		return waypoint.Waypoint{}, fmt.Errorf("missing timestamp or Time property")
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return waypoint.Waypoint{}, &waypoint.FormatError{Value: ts, Layout: time.RFC3339Nano, Err: err}
	}
	return waypoint.FromPoint(pt, t), nil
}
