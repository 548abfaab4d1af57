package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"github.com/rotblauer/tripd/params"
	"github.com/rotblauer/tripd/testing/testdata"
	"github.com/rotblauer/tripd/types/waypoint"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const arrayInput = `[
  {"lat": 51.54987, "timestamp": "2018-08-10T20:04:22Z", "lng": 12.41039},
  {"lat": 51.54987, "timestamp": "2018-08-10T20:04:46Z", "lng": 12.41031}
]`

const ndjsonInput = `{"type":"Feature","geometry":{"type":"Point","coordinates":[12.41039,51.54987]},"properties":{"Time":"2018-08-10T20:04:22.731Z"}}
{"type":"Feature","geometry":{"type":"Point","coordinates":[12.41031,51.54987]},"properties":{"timestamp":"2018-08-10T20:04:46Z"}}
`

const collectionInput = `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":{"type":"Point","coordinates":[12.41039,51.54987]},"properties":{"Time":"2018-08-10T22:04:22+02:00"}}
]}`

func TestSniff(t *testing.T) {
	cases := map[string]Format{
		arrayInput:        FormatJSON,
		"  \n[]":          FormatJSON,
		ndjsonInput:       FormatGeoJSON,
		collectionInput:   FormatGeoJSON,
		`{"type":"Point"}`: FormatUnknown,
		"lat,lng":         FormatUnknown,
		"":                FormatUnknown,
	}
	for in, want := range cases {
		if got := Sniff([]byte(in)); got != want {
			t.Errorf("Sniff(%.20q): want %s, got %s", in, want, got)
		}
	}
}

func TestDecode_JSON(t *testing.T) {
	points, err := Decode(context.Background(), []byte(arrayInput))
	if err != nil {
		t.Fatal(err)
	}
	want := []waypoint.Waypoint{
		{Lat: 51.54987, Lng: 12.41039, Timestamp: "2018-08-10T20:04:22Z"},
		{Lat: 51.54987, Lng: 12.41031, Timestamp: "2018-08-10T20:04:46Z"},
	}
	if len(points) != len(want) {
		t.Fatalf("want %d points, got %d", len(want), len(points))
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d: want %v, got %v", i, want[i], points[i])
		}
	}
}

func TestDecode_JSONKeepsTimestampVerbatim(t *testing.T) {
	points, err := Decode(context.Background(), []byte(`[{"lat":1,"lng":2,"timestamp":"yesterday"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if points[0].Timestamp != "yesterday" {
		t.Errorf("timestamp rewritten: %q", points[0].Timestamp)
	}
}

func TestDecode_JSONMalformed(t *testing.T) {
	for _, in := range []string{
		`[{"lat":"1","lng":2,"timestamp":"2018-08-10T20:04:22Z"}]`,
		`[{"lat":1,"timestamp":"2018-08-10T20:04:22Z"}]`,
		`[{"lat":1,"lng":2,"timestamp":12}]`,
		`[1, 2]`,
	} {
		if _, err := Decode(context.Background(), []byte(in)); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
	_, err := Decode(context.Background(), []byte(`[{"lat":1,`))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("want ErrUnsupportedFormat for truncated json, got %v", err)
	}
}

func TestDecode_Unsupported(t *testing.T) {
	_, err := Decode(context.Background(), []byte("lat,lng,timestamp\n"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("want ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecode_GeoJSONLines(t *testing.T) {
	points, err := Decode(context.Background(), []byte(ndjsonInput))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("want 2 points, got %d", len(points))
	}
	// Fractional seconds are truncated.
	if points[0].Timestamp != "2018-08-10T20:04:22Z" {
		t.Errorf("unexpected timestamp %q", points[0].Timestamp)
	}
	if points[1].Lat != 51.54987 || points[1].Lng != 12.41031 {
		t.Errorf("unexpected point %v", points[1])
	}
}

func TestDecode_GeoJSONCollection(t *testing.T) {
	points, err := Decode(context.Background(), []byte(collectionInput))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 || points[0].Timestamp != "2018-08-10T20:04:22Z" {
		t.Fatalf("unexpected points %v", points)
	}
}

func TestDecode_GeoJSONErrors(t *testing.T) {
	for _, in := range []string{
		`{"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]},"properties":{"Time":"2018-08-10T20:04:22Z"}}`,
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`,
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"Time":"noon"}}`,
	} {
		if _, err := Decode(context.Background(), []byte(in)); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
}

func TestDecode_GeoJSONTimeLayout(t *testing.T) {
	in := `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"Time":"noon"}}`
	_, err := Decode(context.Background(), []byte(in))
	var fe *waypoint.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("want *waypoint.FormatError, got %v", err)
	}
	if fe.Layout != time.RFC3339Nano || !strings.Contains(err.Error(), time.RFC3339Nano) {
		t.Errorf("error should name the RFC3339 layout: %v", err)
	}
}

func TestReadFrom_Dedupe(t *testing.T) {
	in := `[
  {"lat": 1, "lng": 2, "timestamp": "2018-08-10T20:04:22Z"},
  {"lat": 1, "lng": 2, "timestamp": "2018-08-10T20:04:22Z"},
  {"lat": 1, "lng": 3, "timestamp": "2018-08-10T20:05:22Z"}
]`
	points, err := ReadFrom(context.Background(), nil, strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Errorf("dedupe is off by default: want 3 points, got %d", len(points))
	}

	config := *params.DefaultSourceConfig
	config.Dedupe = true
	points, err = ReadFrom(context.Background(), &config, strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Errorf("want 2 points, got %d", len(points))
	}
}

func TestRead_Files(t *testing.T) {
	ctx := context.Background()
	plain := testdata.Path(testdata.Source_Waypoints)
	want, err := Read(ctx, nil, plain)
	if err != nil {
		t.Fatal(err)
	}
	if len(want) != 40 {
		t.Fatalf("want 40 fixture points, got %d", len(want))
	}

	raw, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	gzPath := filepath.Join(t.TempDir(), "waypoints.json.gz")
	buf := new(bytes.Buffer)
	gzw := gzip.NewWriter(buf)
	if _, err := gzw.Write(raw); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(gzPath, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := Read(ctx, nil, gzPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) || got[len(got)-1] != want[len(want)-1] {
		t.Errorf("gzipped read differs from plain read")
	}

	if _, err := Read(ctx, nil, filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("want not-exist error, got %v", err)
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://cattracks/2018/08/waypoints.json.gz")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "cattracks" || key != "2018/08/waypoints.json.gz" {
		t.Errorf("unexpected bucket %q key %q", bucket, key)
	}
	for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/", "http://bucket/key"} {
		if _, _, err := ParseS3URI(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
