package webd

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"github.com/gorilla/websocket"
	"github.com/rotblauer/tripd/api"
	"github.com/rotblauer/tripd/common"
	"github.com/rotblauer/tripd/geo/tripdetector"
	"github.com/rotblauer/tripd/params"
	"github.com/rotblauer/tripd/testing/testdata"
	"github.com/tidwall/gjson"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func fixtureBody(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile(testdata.Path(testdata.Source_Waypoints))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func serve(d *WebDaemon, req *http.Request) *http.Response {
	w := httptest.NewRecorder()
	d.NewRouter().ServeHTTP(w, req)
	return w.Result()
}

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://tripd.local/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func TestWebDaemon_statusReport(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn)()
	d := newTestWebDaemon(t)
	resp := serve(d, httptest.NewRequest("GET", "http://tripd.local/status", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	status := webDaemonStatus{}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if status.Uptime == "" {
		t.Fatal("uptime is empty")
	}
	if !status.WSOpen {
		t.Error("websocket should be open")
	}
	if _, ok := status.Counts[api.MetricRuns]; !ok {
		t.Errorf("missing %s in counts: %v", api.MetricRuns, status.Counts)
	}
}

func TestWebDaemon_trips(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn)()
	d := newTestWebDaemon(t)
	body := fixtureBody(t)

	resp := serve(d, httptest.NewRequest("POST", "http://tripd.local/trips", bytes.NewReader(body)))
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status code %d: %s", resp.StatusCode, b)
	}
	if resp.Header.Get(headerCache) != cacheMiss {
		t.Errorf("first request should miss the cache")
	}
	first, _ := io.ReadAll(resp.Body)
	var trips []tripdetector.Trip
	if err := json.Unmarshal(first, &trips); err != nil {
		t.Fatal(err)
	}
	if len(trips) != 2 {
		t.Fatalf("want 2 trips, got %d", len(trips))
	}
	if trips[0].Start.Timestamp != "2018-08-10T20:03:00Z" || trips[0].Distance != 2682 {
		t.Errorf("unexpected first trip %+v", trips[0])
	}

	resp = serve(d, httptest.NewRequest("POST", "http://tripd.local/trips", bytes.NewReader(body)))
	if resp.Header.Get(headerCache) != cacheHit {
		t.Errorf("second request should hit the cache")
	}
	second, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(first, second) {
		t.Errorf("cached response differs:\n%s\n%s", first, second)
	}
}

func TestWebDaemon_tripsFormats(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn)()
	d := newTestWebDaemon(t, func(c *params.WebDaemonConfig) {
		c.CacheTTL = 0
	})
	body := fixtureBody(t)

	resp := serve(d, httptest.NewRequest("POST", "http://tripd.local/trips?format=geojson", bytes.NewReader(body)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("content type %q", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	if gjson.GetBytes(b, "type").String() != "FeatureCollection" || gjson.GetBytes(b, "features.#").Int() != 2 {
		t.Errorf("unexpected geojson %s", b)
	}
	if gjson.GetBytes(b, "features.1.properties.Distance").Float() != 1490 {
		t.Errorf("unexpected second trip distance in %s", b)
	}

	resp = serve(d, httptest.NewRequest("POST", "http://tripd.local/trips?summary=true", bytes.NewReader(body)))
	b, _ = io.ReadAll(resp.Body)
	if gjson.GetBytes(b, "segments").Int() != 37 || gjson.GetBytes(b, "summary.trip_distance_total").Float() != 4172 {
		t.Errorf("unexpected summary %s", b)
	}

	// Gzipped bodies are accepted as well.
	gz := new(bytes.Buffer)
	gzw := gzip.NewWriter(gz)
	_, _ = gzw.Write(body)
	_ = gzw.Close()
	resp = serve(d, httptest.NewRequest("POST", "http://tripd.local/trips", gz))
	b, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || gjson.ParseBytes(b).Get("#").Int() != 2 {
		t.Errorf("gzip body: status %d, %s", resp.StatusCode, b)
	}

	resp = serve(d, httptest.NewRequest("POST", "http://tripd.local/trips?format=csv", bytes.NewReader(body)))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown format: want 400, got %d", resp.StatusCode)
	}
}

func TestWebDaemon_tripsErrors(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError + 1)()
	d := newTestWebDaemon(t, func(c *params.WebDaemonConfig) {
		c.MaxBodyBytes = 1 << 10
	})
	cases := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"empty array", "POST", "[]", http.StatusOK},
		{"bad timestamp", "POST", `[{"lat":1,"lng":1,"timestamp":"2018-08-10T20:00:00Z"},{"lat":1,"lng":1,"timestamp":"later"}]`, http.StatusUnprocessableEntity},
		{"unsupported", "POST", "lat,lng,timestamp", http.StatusUnsupportedMediaType},
		{"malformed waypoint", "POST", `[{"lat":"north"}]`, http.StatusBadRequest},
		{"too large", "POST", "[" + strings.Repeat(" ", 2<<10) + "]", http.StatusRequestEntityTooLarge},
		{"wrong method", "GET", "", http.StatusMethodNotAllowed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := serve(d, httptest.NewRequest(c.method, "http://tripd.local/trips", strings.NewReader(c.body)))
			if resp.StatusCode != c.status {
				b, _ := io.ReadAll(resp.Body)
				t.Errorf("want %d, got %d: %s", c.status, resp.StatusCode, b)
			}
		})
	}
}

func TestWebDaemon_token(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError)()
	d := newTestWebDaemon(t, func(c *params.WebDaemonConfig) {
		c.Token = "meow"
	})

	resp := serve(d, httptest.NewRequest("POST", "http://tripd.local/trips", strings.NewReader("[]")))
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("no token: want 403, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest("POST", "http://tripd.local/trips", strings.NewReader("[]"))
	req.Header.Set(headerToken, "meow")
	if resp := serve(d, req); resp.StatusCode != http.StatusOK {
		t.Errorf("header token: want 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "http://tripd.local/trips?api_token=meow", strings.NewReader("[]"))
	if resp := serve(d, req); resp.StatusCode != http.StatusOK {
		t.Errorf("query token: want 200, got %d", resp.StatusCode)
	}

	// Health and status stay open.
	if resp := serve(d, httptest.NewRequest("GET", "http://tripd.local/ping", nil)); resp.StatusCode != http.StatusOK {
		t.Errorf("ping: want 200, got %d", resp.StatusCode)
	}
}

func TestWebDaemon_socket(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn)()
	d := newTestWebDaemon(t)
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/socket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for d.melodyInstance.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket session never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(server.URL+"/trips", "application/json", bytes.NewReader(fixtureBody(t)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(msg, "action").String() != string(websocketActionTrips) || gjson.GetBytes(msg, "trips.#").Int() != 2 {
		t.Errorf("unexpected broadcast %s", msg)
	}
}

func TestWebDaemon_Run(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn)()

	// Find a free port.
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	d := newTestWebDaemon(t, func(c *params.WebDaemonConfig) {
		c.Address = addr
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	var resp *http.Response
	for i := 0; i < 100; i++ {
		resp, err = http.Get("http://" + addr + "/ping")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ping: want 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
