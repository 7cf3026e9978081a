package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"goldboard/ohlc"
	"goldboard/store"
)

const (
	// defaultInterCallDelay is the default spacing between backfill calls.
	defaultInterCallDelay = time.Millisecond * 400
	// refreshJobTime is the daily time the refresh job runs at.
	refreshJobTime = "00:30"
)

// ManagerConfig represents the configuration for the fetch manager.
type ManagerConfig struct {
	// Store is the merged row store served to readers.
	Store *store.Store
	// Extra is the live-fetched row partition, persisted across runs.
	Extra *store.Store
	// KV is the durable slot the extra partition persists to.
	KV store.KVStorer
	// DayFetcher fetches one day of OHLC data from the upstream.
	DayFetcher DayFetcher
	// Scheduler serializes upstream calls against the shared rate budget.
	Scheduler *Scheduler
	// JobScheduler runs the daily refresh job.
	JobScheduler *gocron.Scheduler
	// InterCallDelay is the spacing between successive backfill calls.
	InterCallDelay time.Duration
	// Logger represents the fetch manager logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.Store == nil {
		errs = errors.Join(errs, fmt.Errorf("store cannot be nil"))
	}
	if cfg.Extra == nil {
		errs = errors.Join(errs, fmt.Errorf("extra store cannot be nil"))
	}
	if cfg.KV == nil {
		errs = errors.Join(errs, fmt.Errorf("key/value storer cannot be nil"))
	}
	if cfg.DayFetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("day fetcher cannot be nil"))
	}
	if cfg.Scheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("scheduler cannot be nil"))
	}
	if cfg.JobScheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("job scheduler cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager reconciles the row store with the upstream price service. It
// detects date gaps, backfills them through the shared rate-limited
// scheduler and persists fetched rows to the extra partition.
type Manager struct {
	cfg *ManagerConfig
}

// NewManager initializes the fetch manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating fetch manager config: %w", err)
	}

	if cfg.InterCallDelay <= 0 {
		cfg.InterCallDelay = defaultInterCallDelay
	}

	return &Manager{
		cfg: cfg,
	}, nil
}

// fetchOneDay routes a single-day fetch through the shared scheduler so
// backfills and the spot endpoint draw from one upstream rate budget.
func (m *Manager) fetchOneDay(ctx context.Context, date time.Time) (ohlc.Row, error) {
	var row ohlc.Row
	err := m.cfg.Scheduler.Schedule(ctx, func(ctx context.Context) error {
		fetched, err := m.cfg.DayFetcher.FetchDayOHLC(ctx, date)
		if err != nil {
			return err
		}

		row = fetched
		return nil
	})

	return row, err
}

// backfillRange fills the store's gaps within [from, to] and returns the
// number of rows fetched. Fetched rows are merged into both partitions and
// the extra partition is re-persisted.
func (m *Manager) backfillRange(ctx context.Context, from time.Time, to time.Time) (int, error) {
	gaps := FindGaps(from, to, m.cfg.Store.Has)
	if len(gaps) == 0 {
		return 0, nil
	}

	m.cfg.Logger.Info().Msgf("backfilling %d missing days between %s and %s",
		len(gaps), from.Format(ohlc.DateLayout), to.Format(ohlc.DateLayout))

	rows := Backfill(ctx, gaps, m.fetchOneDay, m.cfg.InterCallDelay, m.cfg.Logger)
	if len(rows) == 0 {
		return 0, nil
	}

	m.MergeRows(rows)

	err := store.SaveExtra(ctx, m.cfg.KV, m.cfg.Extra)
	if err != nil {
		return len(rows), fmt.Errorf("persisting extra partition: %w", err)
	}

	return len(rows), nil
}

// MergeRows upserts rows into the merged store and the extra partition.
func (m *Manager) MergeRows(rows []ohlc.Row) {
	m.cfg.Store.Upsert(rows)
	m.cfg.Extra.Upsert(rows)
}

// Persist re-persists the extra partition to its durable slot.
func (m *Manager) Persist(ctx context.Context) error {
	return store.SaveExtra(ctx, m.cfg.KV, m.cfg.Extra)
}

// CatchUp backfills from the day after the last stored date up to today.
func (m *Manager) CatchUp(ctx context.Context) error {
	last, ok := m.cfg.Store.LastDate()
	if !ok {
		// An empty store has no anchor to catch up from.
		m.cfg.Logger.Warn().Msg("catch up skipped, store is empty")
		return nil
	}

	today := ohlc.Day(time.Now())
	from := last.AddDate(0, 0, 1)
	if from.After(today) {
		return nil
	}

	fetched, err := m.backfillRange(ctx, from, today)
	if err != nil {
		return fmt.Errorf("catching up: %w", err)
	}

	m.cfg.Logger.Info().Msgf("caught up with %d fetched rows, store now holds %d",
		fetched, m.cfg.Store.Len())

	return nil
}

// HistoricalRange returns the stored rows in [from, to], first backfilling
// any gaps in the range. A failed backfill degrades to whatever the store
// already holds.
func (m *Manager) HistoricalRange(ctx context.Context, from time.Time, to time.Time) ([]ohlc.Row, error) {
	_, err := m.backfillRange(ctx, from, to)
	if err != nil {
		m.cfg.Logger.Error().Msgf("backfilling historical range: %v", err)
	}

	rows := m.cfg.Store.RowsInRange(from, to)
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows available between %s and %s",
			from.Format(ohlc.DateLayout), to.Format(ohlc.DateLayout))
	}

	return rows, nil
}

// Run manages the lifecycle processes of the fetch manager.
func (m *Manager) Run(ctx context.Context) {
	_, err := m.cfg.JobScheduler.Every(1).Day().At(refreshJobTime).Do(func() {
		err := m.CatchUp(ctx)
		if err != nil {
			m.cfg.Logger.Error().Msgf("daily refresh: %v", err)
		}
	})
	if err != nil {
		m.cfg.Logger.Error().Msgf("scheduling daily refresh job: %v", err)
	}

	m.cfg.JobScheduler.StartAsync()

	<-ctx.Done()
	m.cfg.JobScheduler.Stop()
}
