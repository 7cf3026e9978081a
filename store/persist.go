package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"goldboard/ohlc"
)

// ExtraRowsKey is the key/value slot holding the persisted extra partition.
const ExtraRowsKey = "extra_rows"

// KVStorer defines the requirements for the durable key/value slot backing
// the extra partition.
type KVStorer interface {
	// Save persists the provided value under key.
	Save(ctx context.Context, key string, value []byte) error
	// Load returns the value stored under key, or nil when absent.
	Load(ctx context.Context, key string) ([]byte, error)
}

// persistedRow is the wire form of one extra-partition row.
type persistedRow struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// SaveExtra serializes the extra partition to its key/value slot as a json
// array of date-keyed rows.
func SaveExtra(ctx context.Context, kv KVStorer, extra *Store) error {
	rows := extra.Materialize()
	persisted := make([]persistedRow, 0, len(rows))
	for idx := range rows {
		persisted = append(persisted, persistedRow{
			Date:  rows[idx].Date.Format(ohlc.DateLayout),
			Open:  rows[idx].Open,
			High:  rows[idx].High,
			Low:   rows[idx].Low,
			Close: rows[idx].Close,
		})
	}

	b, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("marshaling extra rows: %w", err)
	}

	err = kv.Save(ctx, ExtraRowsKey, b)
	if err != nil {
		return fmt.Errorf("persisting extra rows: %w", err)
	}

	return nil
}

// LoadExtra deserializes the extra partition from its key/value slot. A
// corrupt blob degrades to an empty partition and individual entries with
// unparseable dates or prices are dropped silently; the load path never
// fails.
func LoadExtra(ctx context.Context, kv KVStorer, symbol string, logger *zerolog.Logger) *Store {
	extra := New()

	b, err := kv.Load(ctx, ExtraRowsKey)
	if err != nil {
		logger.Error().Msgf("loading extra rows: %v", err)
		return extra
	}
	if len(b) == 0 {
		return extra
	}

	var persisted []persistedRow
	err = json.Unmarshal(b, &persisted)
	if err != nil {
		logger.Error().Msgf("corrupt extra rows blob, starting empty: %v", err)
		return extra
	}

	var dropped int
	rows := make([]ohlc.Row, 0, len(persisted))
	for idx := range persisted {
		row, ok := ohlc.Sanitize(map[string]string{
			"date":  persisted[idx].Date,
			"open":  strconv.FormatFloat(persisted[idx].Open, 'f', -1, 64),
			"high":  strconv.FormatFloat(persisted[idx].High, 'f', -1, 64),
			"low":   strconv.FormatFloat(persisted[idx].Low, 'f', -1, 64),
			"close": strconv.FormatFloat(persisted[idx].Close, 'f', -1, 64),
		}, symbol)
		if !ok {
			dropped++
			continue
		}

		rows = append(rows, row)
	}

	if dropped > 0 {
		logger.Warn().Msgf("dropped %d unparseable persisted rows", dropped)
	}

	extra.Upsert(rows)
	return extra
}
