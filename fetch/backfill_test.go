package fetch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"

	"goldboard/ohlc"
)

func day(s string) time.Time {
	d, ok := ohlc.ParseDay(s)
	if !ok {
		panic("bad test date: " + s)
	}
	return d
}

func TestFindGaps(t *testing.T) {
	present := map[string]bool{
		"2024-01-01": true,
		"2024-01-02": true,
		"2024-01-04": true,
	}
	has := func(date time.Time) bool {
		return present[date.Format(ohlc.DateLayout)]
	}

	tests := []struct {
		name  string
		start string
		end   string
		want  []time.Time
	}{
		{
			name:  "interior and trailing gaps",
			start: "2024-01-01",
			end:   "2024-01-05",
			want:  []time.Time{day("2024-01-03"), day("2024-01-05")},
		},
		{
			name:  "fully covered range",
			start: "2024-01-01",
			end:   "2024-01-02",
			want:  nil,
		},
		{
			name:  "single missing day",
			start: "2024-01-03",
			end:   "2024-01-03",
			want:  []time.Time{day("2024-01-03")},
		},
		{
			name:  "inverted range",
			start: "2024-01-05",
			end:   "2024-01-01",
			want:  nil,
		},
	}

	for _, test := range tests {
		got := FindGaps(day(test.start), day(test.end), has)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", test.name, diff)
		}
	}
}

func TestFindGapsCoversEveryDay(t *testing.T) {
	// With nothing present, every calendar day in the range is a gap and
	// consecutive gaps are exactly one day apart.
	start, end := day("2024-02-25"), day("2024-03-05")
	gaps := FindGaps(start, end, func(time.Time) bool { return false })

	assert.Equal(t, len(gaps), 10)
	assert.True(t, gaps[0].Equal(start))
	assert.True(t, gaps[len(gaps)-1].Equal(end))
	for idx := 1; idx < len(gaps); idx++ {
		assert.True(t, gaps[idx].Sub(gaps[idx-1]) == time.Hour*24)
	}
}

func TestBackfillSkipsFailedDates(t *testing.T) {
	logger := zerolog.Nop()
	dates := []time.Time{day("2024-01-04"), day("2024-01-05"), day("2024-01-06")}

	fetchOneDay := func(ctx context.Context, date time.Time) (ohlc.Row, error) {
		if date.Equal(day("2024-01-05")) {
			return ohlc.Row{}, fmt.Errorf("upstream has no data")
		}
		return ohlc.NewRow(date, 100, 110, 90, 105, ""), nil
	}

	rows := Backfill(context.Background(), dates, fetchOneDay, 0, &logger)

	assert.Equal(t, len(rows), 2)
	assert.True(t, rows[0].Date.Equal(day("2024-01-04")))
	assert.True(t, rows[1].Date.Equal(day("2024-01-06")))
}

func TestBackfillHonorsCancellation(t *testing.T) {
	logger := zerolog.Nop()
	dates := []time.Time{day("2024-01-04"), day("2024-01-05"), day("2024-01-06")}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetchOneDay := func(ctx context.Context, date time.Time) (ohlc.Row, error) {
		calls++
		cancel()
		return ohlc.NewRow(date, 100, 110, 90, 105, ""), nil
	}

	rows := Backfill(ctx, dates, fetchOneDay, time.Millisecond, &logger)

	assert.Equal(t, calls, 1)
	assert.Equal(t, len(rows), 1)
}
