// Package service wires the goldboard components into a runnable unit.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"

	"goldboard/cache"
	"goldboard/database"
	"goldboard/fetch"
	"goldboard/ohlc"
	"goldboard/server"
	"goldboard/store"
)

const (
	// upstreamMinInterval is the minimum spacing between price upstream calls.
	upstreamMinInterval = time.Millisecond * 500
	// backfillInterCallDelay is the spacing between backfill fetches.
	backfillInterCallDelay = time.Millisecond * 400
	// spotTTL is the spot quote cache freshness duration.
	spotTTL = time.Minute
	// spotProduceTimeout bounds how long a spot caller waits on a refresh.
	spotProduceTimeout = time.Second * 10
	// historicalTTL is the historical range cache freshness duration.
	historicalTTL = time.Minute * 5
	// historicalProduceTimeout bounds how long a historical caller waits on a
	// refresh; a multi-day backfill can outlast any single request.
	historicalProduceTimeout = time.Second * 30
	// proxyTTL is the news and image cache freshness duration.
	proxyTTL = time.Minute * 10
	// proxyCacheCapacity bounds query-keyed proxy caches.
	proxyCacheCapacity = 32
	// maxChartPoints is the downsampling target for historical responses.
	maxChartPoints = 500
)

// GoldboardConfig represents the configuration struct for the goldboard
// service.
type GoldboardConfig struct {
	// ListenAddr is the address the api server listens on.
	ListenAddr string
	// Pair is the tracked pair symbol, eg. XAUUSD.
	Pair string
	// CSVPath is the filepath to the bundled OHLC series.
	CSVPath string
	// DBEndpoint is the database connection endpoint, empty for memory-only.
	DBEndpoint string
	// DBUser is the database user.
	DBUser string
	// DBPass is the database user pass.
	DBPass string
	// MetalsAPIKey is the Metals-API service key.
	MetalsAPIKey string
	// GoldAPIKey is the GoldAPI fallback service key.
	GoldAPIKey string
	// NewsAPIKey is the NewsAPI service key.
	NewsAPIKey string
	// UnsplashKey is the Unsplash service access key.
	UnsplashKey string
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config has sane inputs.
func (cfg *GoldboardConfig) Validate() error {
	var errs error

	if cfg.ListenAddr == "" {
		errs = errors.Join(errs, fmt.Errorf("listen address cannot be an empty string"))
	}
	if cfg.Pair == "" {
		errs = errors.Join(errs, fmt.Errorf("pair cannot be an empty string"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// Goldboard represents the gold dashboard data service.
type Goldboard struct {
	cfg          *GoldboardConfig
	store        *store.Store
	extra        *store.Store
	scheduler    *fetch.Scheduler
	fetchManager *fetch.Manager
	server       *server.Server
	logger       *zerolog.Logger
	wg           sync.WaitGroup
}

// loadBaseRows loads the bundled CSV series. A missing or unreadable file
// degrades to an empty base partition.
func loadBaseRows(path string, pair string, logger *zerolog.Logger) []ohlc.Row {
	if path == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Warn().Msgf("opening bundled csv: %v", err)
		return nil
	}
	defer f.Close()

	rows, dropped, err := ohlc.ParseCSV(f, pair)
	if err != nil {
		logger.Warn().Msgf("parsing bundled csv: %v", err)
		return nil
	}

	if dropped > 0 {
		logger.Warn().Msgf("dropped %d malformed csv rows", dropped)
	}
	logger.Info().Msgf("loaded %d rows from bundled csv", len(rows))

	return rows
}

// NewGoldboard initializes a new goldboard service.
func NewGoldboard(ctx context.Context, cfg *GoldboardConfig) (*Goldboard, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating service config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "goldboard").Logger()

	// Assemble the merged store: bundled CSV base partition overlaid with the
	// persisted extra partition.
	baseRows := loadBaseRows(cfg.CSVPath, cfg.Pair, &logger)
	base := store.NewFromRows(baseRows)

	var kv store.KVStorer = &database.NoopKV{}
	if cfg.DBEndpoint != "" {
		dbLogger := logger.With().Str("component", "database").Logger()
		db, err := database.NewKV(ctx, &database.KVConfig{
			Endpoint: cfg.DBEndpoint,
			User:     cfg.DBUser,
			Pass:     cfg.DBPass,
			Logger:   &dbLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating database: %v", err)
		}
		kv = db
	}

	storeLogger := logger.With().Str("component", "store").Logger()
	extra := store.LoadExtra(ctx, kv, cfg.Pair, &storeLogger)
	merged := store.Merge(base, extra)

	schedulerLogger := logger.With().Str("component", "scheduler").Logger()
	scheduler, err := fetch.NewScheduler(&fetch.SchedulerConfig{
		MinInterval: upstreamMinInterval,
		Logger:      &schedulerLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %v", err)
	}

	metals := fetch.NewMetalsClient(&fetch.MetalsConfig{
		APIKey: cfg.MetalsAPIKey,
	})
	goldAPI := fetch.NewGoldAPIClient(&fetch.GoldAPIConfig{
		APIKey: cfg.GoldAPIKey,
	})
	news := fetch.NewNewsAPIClient(&fetch.NewsAPIConfig{
		APIKey: cfg.NewsAPIKey,
	})
	images := fetch.NewUnsplashClient(&fetch.UnsplashConfig{
		AccessKey: cfg.UnsplashKey,
	})

	jobScheduler := gocron.NewScheduler(time.UTC)

	fetchMgrLogger := logger.With().Str("component", "fetchmanager").Logger()
	fetchMgr, err := fetch.NewManager(&fetch.ManagerConfig{
		Store:          merged,
		Extra:          extra,
		KV:             kv,
		DayFetcher:     metals,
		Scheduler:      scheduler,
		JobScheduler:   jobScheduler,
		InterCallDelay: backfillInterCallDelay,
		Logger:         &fetchMgrLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating fetch manager: %v", err)
	}

	cacheLogger := logger.With().Str("component", "cache").Logger()

	// The spot producer shares the upstream rate budget with backfills and
	// falls back to the secondary source when the primary fails.
	spotProducer := func(ctx context.Context, key string) (fetch.SpotQuote, error) {
		var quote fetch.SpotQuote
		err := scheduler.Schedule(ctx, func(ctx context.Context) error {
			fetched, err := metals.FetchSpot(ctx)
			if err != nil {
				logger.Warn().Msgf("primary spot source failed, trying fallback: %v", err)
				fetched, err = goldAPI.FetchSpot(ctx)
			}
			if err != nil {
				return err
			}

			quote = fetched
			return nil
		})

		return quote, err
	}

	spotCache, err := cache.New(&cache.Config{
		TTL:            spotTTL,
		ProduceTimeout: spotProduceTimeout,
		Logger:         &cacheLogger,
	}, spotProducer)
	if err != nil {
		return nil, fmt.Errorf("creating spot cache: %v", err)
	}

	historicalProducer := func(ctx context.Context, key string) ([]ohlc.Row, error) {
		fromStr, toStr, ok := strings.Cut(key, "|")
		if !ok {
			return nil, fmt.Errorf("malformed range key %q", key)
		}

		from, okFrom := ohlc.ParseDay(fromStr)
		to, okTo := ohlc.ParseDay(toStr)
		if !okFrom || !okTo {
			return nil, fmt.Errorf("malformed range key %q", key)
		}

		rows, err := fetchMgr.HistoricalRange(ctx, from, to)
		if err != nil {
			return nil, err
		}

		return ohlc.Aggregate(rows, maxChartPoints), nil
	}

	historicalCache, err := cache.New(&cache.Config{
		TTL:            historicalTTL,
		Capacity:       proxyCacheCapacity,
		ProduceTimeout: historicalProduceTimeout,
		Logger:         &cacheLogger,
	}, historicalProducer)
	if err != nil {
		return nil, fmt.Errorf("creating historical cache: %v", err)
	}

	newsCache, err := cache.New(&cache.Config{
		TTL:      proxyTTL,
		Capacity: proxyCacheCapacity,
		Logger:   &cacheLogger,
	}, func(ctx context.Context, query string) ([]fetch.NewsItem, error) {
		return news.FetchNews(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("creating news cache: %v", err)
	}

	imageCache, err := cache.New(&cache.Config{
		TTL:      proxyTTL,
		Capacity: proxyCacheCapacity,
		Logger:   &cacheLogger,
	}, func(ctx context.Context, query string) ([]fetch.ImageItem, error) {
		return images.FetchImages(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %v", err)
	}

	updateRowsFunc := func(ctx context.Context, rows []ohlc.Row) (int, time.Time, error) {
		fetchMgr.MergeRows(rows)
		err := fetchMgr.Persist(ctx)
		if err != nil {
			return 0, time.Time{}, err
		}

		last, _ := merged.LastDate()
		return merged.Len(), last, nil
	}

	serverLogger := logger.With().Str("component", "server").Logger()
	srv, err := server.NewServer(&server.Config{
		ListenAddr:      cfg.ListenAddr,
		SpotCache:       spotCache,
		HistoricalCache: historicalCache,
		NewsCache:       newsCache,
		ImageCache:      imageCache,
		UpdateRows:      updateRowsFunc,
		Logger:          &serverLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %v", err)
	}

	service := &Goldboard{
		cfg:          cfg,
		store:        merged,
		extra:        extra,
		scheduler:    scheduler,
		fetchManager: fetchMgr,
		server:       srv,
		logger:       &logger,
	}

	return service, nil
}

// Run handles the lifecycle processes of the goldboard service.
func (g *Goldboard) Run(ctx context.Context) {
	g.wg.Add(4)

	go func() {
		g.scheduler.Run(ctx)
		g.wg.Done()
	}()

	go func() {
		g.fetchManager.Run(ctx)
		g.wg.Done()
	}()

	go func() {
		g.server.Run(ctx)
		g.wg.Done()
	}()

	go func() {
		err := g.fetchManager.CatchUp(ctx)
		if err != nil {
			g.logger.Error().Msgf("initial catch up: %v", err)
		}
		g.wg.Done()
	}()

	g.wg.Wait()
}
