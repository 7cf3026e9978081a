package fetch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"goldboard/ohlc"
)

// FindGaps enumerates every calendar day in [start, end] inclusive that the
// provided presence check does not account for. The result is sorted
// ascending with no duplicates. Pure; safe to call from anywhere.
func FindGaps(start time.Time, end time.Time, has func(date time.Time) bool) []time.Time {
	start, end = ohlc.Day(start), ohlc.Day(end)

	var gaps []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if !has(day) {
			gaps = append(gaps, day)
		}
	}

	return gaps
}

// Backfill fetches rows for the provided dates strictly in order, one at a
// time, sleeping interCallDelay between successive calls to respect upstream
// rate limits. A failed date is logged and skipped rather than aborting the
// sequence; partial success is the expected steady state since upstreams
// have no data for weekends and holidays. The successfully fetched rows are
// returned in the same relative order; merging them into the store is the
// caller's responsibility.
func Backfill(ctx context.Context, dates []time.Time, fetchOneDay func(ctx context.Context, date time.Time) (ohlc.Row, error),
	interCallDelay time.Duration, logger *zerolog.Logger) []ohlc.Row {
	rows := make([]ohlc.Row, 0, len(dates))

	for idx := range dates {
		if ctx.Err() != nil {
			logger.Warn().Msgf("backfill interrupted after %d/%d dates", idx, len(dates))
			break
		}

		row, err := fetchOneDay(ctx, dates[idx])
		if err != nil {
			logger.Error().Msgf("fetching %s: %v", dates[idx].Format(ohlc.DateLayout), err)
		} else {
			rows = append(rows, row)
		}

		if idx < len(dates)-1 && interCallDelay > 0 {
			select {
			case <-time.After(interCallDelay):
				// do nothing.
			case <-ctx.Done():
			}
		}
	}

	return rows
}
