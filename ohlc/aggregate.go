package ohlc

import (
	"math"
	"sort"
)

// Aggregate reduces a candlestick series to at most maxBuckets rows while
// preserving its visual shape. Rows are partitioned into contiguous
// near-equal buckets; each bucket collapses to a synthetic row whose open is
// the first row's open, close the last row's close, high the bucket maximum
// and low the bucket minimum. Date and metadata come from the last row in
// the bucket. Series at or below maxBuckets are returned unchanged.
func Aggregate(rows []Row, maxBuckets int) []Row {
	if maxBuckets <= 0 || len(rows) <= maxBuckets {
		return rows
	}

	reduced := make([]Row, 0, maxBuckets)
	for idx := 0; idx < maxBuckets; idx++ {
		start := idx * len(rows) / maxBuckets
		end := (idx + 1) * len(rows) / maxBuckets
		// Bucket sizes are fractional, guard against an empty tail bucket.
		if end <= start {
			end = start + 1
		}

		bucket := rows[start:end]
		last := bucket[len(bucket)-1]

		high := bucket[0].High
		low := bucket[0].Low
		for k := range bucket {
			high = math.Max(high, bucket[k].High)
			low = math.Min(low, bucket[k].Low)
		}

		reduced = append(reduced, Row{
			Date:   last.Date,
			Open:   bucket[0].Open,
			High:   high,
			Low:    low,
			Close:  last.Close,
			Range:  high - low,
			Symbol: last.Symbol,
		})
	}

	return reduced
}

// Quantile computes the q-th order statistic of an ascending-sorted sample
// using linear interpolation between neighbours (the R-7 method). The input
// must already be sorted ascending; behaviour is undefined otherwise.
func Quantile(sortedAscending []float64, q float64) float64 {
	n := len(sortedAscending)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sortedAscending[0]
	}

	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	pos := q * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sortedAscending[lower]
	}

	frac := pos - float64(lower)
	return sortedAscending[lower] + frac*(sortedAscending[upper]-sortedAscending[lower])
}

// TrimRangeOutliers drops rows whose daily range exceeds the q-quantile of
// all ranges in the series, used to keep a handful of flash-move days from
// skewing summary statistics.
func TrimRangeOutliers(rows []Row, q float64) []Row {
	if len(rows) < 2 {
		return rows
	}

	ranges := make([]float64, len(rows))
	for idx := range rows {
		ranges[idx] = rows[idx].Range
	}
	sort.Float64s(ranges)

	cutoff := Quantile(ranges, q)

	trimmed := make([]Row, 0, len(rows))
	for idx := range rows {
		if rows[idx].Range <= cutoff {
			trimmed = append(trimmed, rows[idx])
		}
	}

	return trimmed
}
