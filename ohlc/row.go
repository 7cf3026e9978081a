package ohlc

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the format layout for parsing calendar dates.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the format layout for parsing dates carrying a time component.
	DateTimeLayout = "2006-01-02 15:04:05"
	// DefaultSymbol is the pair recorded on rows when the source carries no symbol.
	DefaultSymbol = "XAUUSD"
)

// Row represents one trading day's price record. The date is the primary key,
// truncated to day granularity in UTC.
type Row struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64

	// Metadata and derived fields.
	Range  float64
	Symbol string
}

// NewRow constructs a row from raw prices, correcting the high and low so
// they always bound the open and close. Malformed feeds occasionally report
// highs below the open or close, so the raw values are never trusted verbatim.
func NewRow(date time.Time, open float64, high float64, low float64, close float64, symbol string) Row {
	if symbol == "" {
		symbol = DefaultSymbol
	}

	high = math.Max(high, math.Max(open, close))
	low = math.Min(low, math.Min(open, close))

	return Row{
		Date:   Day(date),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Range:  high - low,
		Symbol: symbol,
	}
}

// Day truncates the provided time to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Field alias lists, in precedence order. Sources disagree on field naming,
// the first populated alias wins.
var (
	dateAliases  = []string{"date", "Date", "timestamp", "time"}
	openAliases  = []string{"open", "Open", "o"}
	highAliases  = []string{"high", "High", "h"}
	lowAliases   = []string{"low", "Low", "l"}
	closeAliases = []string{"close", "Close", "c", "price"}
)

// lookup returns the first populated value for the provided alias list.
func lookup(fields map[string]string, aliases []string) (string, bool) {
	for idx := range aliases {
		v, ok := fields[aliases[idx]]
		if ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}

	return "", false
}

// Sanitize builds a row from raw string fields. It returns false when the
// date cannot be parsed to a valid calendar day or any price cannot be
// coerced to a finite number. It has no side effects.
func Sanitize(fields map[string]string, symbol string) (Row, bool) {
	rawDate, ok := lookup(fields, dateAliases)
	if !ok {
		return Row{}, false
	}

	date, ok := ParseDay(rawDate)
	if !ok {
		return Row{}, false
	}

	var prices [4]float64
	for idx, aliases := range [][]string{openAliases, highAliases, lowAliases, closeAliases} {
		raw, ok := lookup(fields, aliases)
		if !ok {
			return Row{}, false
		}

		v, ok := ParseDecimal(raw)
		if !ok {
			return Row{}, false
		}

		prices[idx] = v
	}

	return NewRow(date, prices[0], prices[1], prices[2], prices[3], symbol), true
}

// ParseDay parses a calendar day from the provided string, accepting plain
// dates and dates carrying a time component.
func ParseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)

	for _, layout := range []string{DateLayout, DateTimeLayout, time.RFC3339} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Day(t), true
		}
	}

	return time.Time{}, false
}

// ParseDecimal coerces a locale-tolerant decimal string to a finite float.
// It accepts decimal commas, decimal dots and common thousands separators
// ("1,234.56", "1.234,56", "1 234,56", "1234.56").
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both separators present, the later one is the decimal point.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			// Multiple commas can only be thousands separators.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			// A lone comma followed by exactly three digits is ambiguous,
			// treat it as a thousands separator only when the fraction would
			// not fit a price ("1,234" -> 1234, "12,34" -> 12.34).
			if len(s)-lastComma-1 == 3 {
				s = strings.ReplaceAll(s, ",", "")
			} else {
				s = strings.Replace(s, ",", ".", 1)
			}
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return v, true
}
