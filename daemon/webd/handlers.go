package webd

import (
	"bytes"
	"encoding/json"
	"errors"
	"github.com/dustin/go-humanize"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/tripd/api"
	"github.com/rotblauer/tripd/catz"
	"github.com/rotblauer/tripd/params"
	"github.com/rotblauer/tripd/source"
	"github.com/rotblauer/tripd/types/waypoint"
	"io"
	"net/http"
	"time"
)

const (
	headerCache = "X-Tripd-Cache"
	cacheHit    = "hit"
	cacheMiss   = "miss"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt     time.Time               `json:"started_at"`
	Uptime        string                  `json:"uptime"`
	Config        *params.WebDaemonConfig `json:"config"`
	Counts        map[string]int64        `json:"counts"`
	CachedResults int                     `json:"cached_results"`
	WSOpen        bool                    `json:"ws_open"`
	WSConns       int                     `json:"ws_conns"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Config:    s.Config,
		Counts:    api.Counts(),
	}
	if s.results != nil {
		st.CachedResults = s.results.Len()
	}
	if s.melodyInstance != nil {
		st.WSOpen = !s.melodyInstance.IsClosed()
		st.WSConns = s.melodyInstance.Len()
	}
	j, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal status", "error", err)
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(j); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

// handleTrips extracts trips from the posted waypoints.
// The body is a JSON array of waypoints or GeoJSON point features, optionally gzipped.
// ?format=geojson responds with a FeatureCollection instead of a JSON array of trips.
// ?summary=true responds with the whole result, summary included.
func (s *WebDaemon) handleTrips(w http.ResponseWriter, r *http.Request) {
	format, err := api.ParseOutputFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.Config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Error("Failed to read request body", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	key, err := hashstructure.Hash(struct{ Body string }{string(body)}, hashstructure.FormatV2, nil)
	if err != nil {
		s.logger.Error("Failed to hash request body", "error", err)
		http.Error(w, "Failed to hash request body", http.StatusInternalServerError)
		return
	}

	result, hit := s.cachedResult(key)
	if !hit {
		result, err = s.extract(r, body)
		if err != nil {
			s.writeExtractError(w, err)
			return
		}
		if s.results != nil {
			s.results.Set(key, result, ttlcache.DefaultTTL)
		}
		if len(result.Trips) > 0 {
			s.feedTrips.Send(result.Trips)
		}
	}

	if hit {
		w.Header().Set(headerCache, cacheHit)
	} else {
		w.Header().Set(headerCache, cacheMiss)
	}
	if format == api.OutputGeoJSON {
		w.Header().Set("Content-Type", "application/geo+json")
	}

	if r.URL.Query().Get("summary") == "true" {
		err = json.NewEncoder(w).Encode(result)
	} else {
		err = api.WriteTrips(w, format, result.Trips)
	}
	if err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) cachedResult(key uint64) (*api.Result, bool) {
	if s.results == nil {
		return nil, false
	}
	item := s.results.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *WebDaemon) extract(r *http.Request, body []byte) (*api.Result, error) {
	ctx := r.Context()
	rc, err := catz.MaybeGZReader(io.NopCloser(bytes.NewReader(body)))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	points, err := source.ReadFrom(ctx, &s.Config.Pipeline.SourceConfig, rc)
	if err != nil {
		return nil, err
	}
	result, err := s.pipeline.Extract(ctx, points)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Extracted trips",
		"bytes", humanize.Bytes(uint64(len(body))), "waypoints", len(points),
		"segments", result.Segments, "trips", len(result.Trips))
	return result, nil
}

func (s *WebDaemon) writeExtractError(w http.ResponseWriter, err error) {
	var formatErr *waypoint.FormatError
	switch {
	case errors.As(err, &formatErr):
		s.logger.Warn("Bad waypoint timestamp", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, source.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	default:
		s.logger.Warn("Failed to extract trips", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
