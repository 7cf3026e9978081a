// Package store holds the date-keyed OHLC row collection backing the
// dashboard: a base partition loaded from bundled csv data and an extra
// partition of live-fetched rows, merged with freshest-wins semantics.
package store

import (
	"slices"
	"sync"
	"time"

	"goldboard/ohlc"
)

// Store is an ordered collection of OHLC rows keyed by calendar date. At
// most one row exists per date; a later upsert for the same date replaces
// the stored row.
type Store struct {
	rowsMtx sync.RWMutex
	rows    map[string]ohlc.Row
}

// New initializes an empty store.
func New() *Store {
	return &Store{
		rows: make(map[string]ohlc.Row),
	}
}

// NewFromRows initializes a store seeded with the provided rows.
func NewFromRows(rows []ohlc.Row) *Store {
	s := New()
	s.Upsert(rows)
	return s
}

// key normalizes a date to its day-granular map key.
func key(date time.Time) string {
	return ohlc.Day(date).Format(ohlc.DateLayout)
}

// Upsert inserts or replaces rows by their date key.
func (s *Store) Upsert(rows []ohlc.Row) {
	s.rowsMtx.Lock()
	defer s.rowsMtx.Unlock()

	for idx := range rows {
		s.rows[key(rows[idx].Date)] = rows[idx]
	}
}

// Get returns the row stored for the provided date.
func (s *Store) Get(date time.Time) (ohlc.Row, bool) {
	s.rowsMtx.RLock()
	defer s.rowsMtx.RUnlock()

	row, ok := s.rows[key(date)]
	return row, ok
}

// Has reports whether a row exists for the provided date.
func (s *Store) Has(date time.Time) bool {
	_, ok := s.Get(date)
	return ok
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.rowsMtx.RLock()
	defer s.rowsMtx.RUnlock()

	return len(s.rows)
}

// Materialize returns all rows sorted ascending by date. The result is a
// copy; mutating it does not affect the store.
func (s *Store) Materialize() []ohlc.Row {
	s.rowsMtx.RLock()
	defer s.rowsMtx.RUnlock()

	rows := make([]ohlc.Row, 0, len(s.rows))
	for k := range s.rows {
		rows = append(rows, s.rows[k])
	}

	slices.SortFunc(rows, func(a, b ohlc.Row) int {
		return a.Date.Compare(b.Date)
	})

	return rows
}

// RowsInRange returns the rows with dates in [from, to] inclusive, sorted
// ascending.
func (s *Store) RowsInRange(from time.Time, to time.Time) []ohlc.Row {
	from, to = ohlc.Day(from), ohlc.Day(to)

	all := s.Materialize()
	rows := make([]ohlc.Row, 0, len(all))
	for idx := range all {
		if all[idx].Date.Before(from) || all[idx].Date.After(to) {
			continue
		}
		rows = append(rows, all[idx])
	}

	return rows
}

// LastDate returns the most recent stored date.
func (s *Store) LastDate() (time.Time, bool) {
	rows := s.Materialize()
	if len(rows) == 0 {
		return time.Time{}, false
	}

	return rows[len(rows)-1].Date, true
}

// Merge combines a base and an extra store into a new store. Extra rows win
// on date collisions, reflecting that freshly fetched data overrides stale
// bundled data.
func Merge(base *Store, extra *Store) *Store {
	merged := New()
	merged.Upsert(base.Materialize())
	merged.Upsert(extra.Materialize())
	return merged
}
