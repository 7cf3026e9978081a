package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"goldboard/cache"
	"goldboard/fetch"
	"goldboard/ohlc"
)

const (
	// shutdownTimeout bounds the graceful shutdown window.
	shutdownTimeout = time.Second * 5
)

// UpdateRowsFunc applies uploaded rows to the store and persists the extra
// partition, returning the total row count and last stored date.
type UpdateRowsFunc func(ctx context.Context, rows []ohlc.Row) (int, time.Time, error)

// Config represents the configuration for the dashboard api server.
type Config struct {
	// ListenAddr is the address the server listens on.
	ListenAddr string
	// SpotCache caches the spot quote behind the single-flight producer.
	SpotCache *cache.Cache[string, fetch.SpotQuote]
	// HistoricalCache caches downsampled OHLC ranges keyed by "from|to".
	HistoricalCache *cache.Cache[string, []ohlc.Row]
	// NewsCache caches news search results keyed by query.
	NewsCache *cache.Cache[string, []fetch.NewsItem]
	// ImageCache caches image search results keyed by query.
	ImageCache *cache.Cache[string, []fetch.ImageItem]
	// UpdateRows applies uploaded rows to the store.
	UpdateRows UpdateRowsFunc
	// Logger represents the server logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.ListenAddr == "" {
		errs = errors.Join(errs, fmt.Errorf("listen address cannot be empty"))
	}
	if cfg.SpotCache == nil {
		errs = errors.Join(errs, fmt.Errorf("spot cache cannot be nil"))
	}
	if cfg.HistoricalCache == nil {
		errs = errors.Join(errs, fmt.Errorf("historical cache cannot be nil"))
	}
	if cfg.NewsCache == nil {
		errs = errors.Join(errs, fmt.Errorf("news cache cannot be nil"))
	}
	if cfg.ImageCache == nil {
		errs = errors.Join(errs, fmt.Errorf("image cache cannot be nil"))
	}
	if cfg.UpdateRows == nil {
		errs = errors.Join(errs, fmt.Errorf("update rows func cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Server serves the dashboard api endpoints.
type Server struct {
	cfg    *Config
	server *http.Server
}

// NewServer initializes the dashboard api server.
func NewServer(cfg *Config) (*Server, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	s := &Server{
		cfg: cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/price", s.handlePrice)
	mux.HandleFunc("/api/historical", s.handleHistorical)
	mux.HandleFunc("/api/news", s.handleNews)
	mux.HandleFunc("/api/images", s.handleImages)
	mux.HandleFunc("/api/csv", s.handleCSVUpdate)

	var handler http.Handler = mux
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  time.Second * 30,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	}

	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run manages the lifecycle processes of the server.
func (s *Server) Run(ctx context.Context) {
	errC := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info().Msgf("listening on %s", s.cfg.ListenAddr)
		errC <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cfg.Logger.Error().Msgf("server terminated: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := s.server.Shutdown(shutdownCtx)
		if err != nil {
			s.cfg.Logger.Error().Msgf("shutting down server: %v", err)
		}
	}
}
