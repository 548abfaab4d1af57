package webd

import (
	"context"
	"errors"
	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/olahol/melody"
	"github.com/rotblauer/tripd/api"
	"github.com/rotblauer/tripd/geo/tripdetector"
	"github.com/rotblauer/tripd/params"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig

	logger   *slog.Logger
	started  time.Time
	pipeline *api.Pipeline

	// results remembers extraction results by request body hash.
	// The pipeline is deterministic, so a hit is always the result a rerun would give.
	results *ttlcache.Cache[uint64, *api.Result]

	melodyInstance *melody.Melody
	feedTrips      event.FeedOf[[]tripdetector.Trip]
}

func NewWebDaemon(config *params.WebDaemonConfig) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	if config.Pipeline == nil {
		config.Pipeline = params.DefaultConfig()
	}
	pipeline, err := api.NewPipeline(config.Pipeline)
	if err != nil {
		return nil, err
	}
	s := &WebDaemon{
		Config:   config,
		logger:   slog.With("d", "web"),
		started:  time.Now(),
		pipeline: pipeline,
	}
	if config.CacheTTL > 0 {
		s.results = ttlcache.New[uint64, *api.Result](
			ttlcache.WithTTL[uint64, *api.Result](config.CacheTTL))
	}
	return s, nil
}

// Run listens on the configured address and serves until ctx is canceled,
// then shuts the server down gracefully.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.results != nil {
		go s.results.Start()
		defer s.results.Stop()
	}
	defer s.melodyInstance.Close()

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", ln.Addr().String())
		errs <- server.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		s.logger.Info("Stopping web daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	/*
		StrictSlash defines the trailing slash behavior for new routes. The initial value is false.
		When false, if the route path is "/path", accessing "/path/" will not match this route and vice versa.
	*/
	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))
	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(s.tokenAuthenticationMiddleware)
	authenticatedAPIRoutes.Path("/trips").HandlerFunc(s.handleTrips).Methods(http.MethodPost)

	return router
}
