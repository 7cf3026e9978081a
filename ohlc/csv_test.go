package ohlc

import (
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestParseCSV(t *testing.T) {
	data := strings.Join([]string{
		"date,open,high,low,close",
		"2024-01-01,2062.2,2072.5,2058.1,2070.3",
		"2024-01-02,2070.3,2081.9,2064.4,2075.0",
		"not-a-date,1,2,3,4",
		"2024-01-03,2075.0,abc,2066.0,2080.1",
		"2024-01-04,2080.1,2095.4,2077.7,2091.2",
	}, "\n")

	rows, dropped, err := ParseCSV(strings.NewReader(data), "")
	assert.NoError(t, err)
	assert.Equal(t, len(rows), 3)
	assert.Equal(t, dropped, 2)
	assert.Equal(t, rows[0].Date, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, rows[0].Symbol, DefaultSymbol)
	assert.Equal(t, rows[2].Close, 2091.2)
}

func TestParseCSVSymbolColumn(t *testing.T) {
	data := strings.Join([]string{
		"date,symbol,open,high,low,close",
		"2024-01-01,XAUEUR,1880.0,1890.0,1875.0,1885.5",
	}, "\n")

	rows, dropped, err := ParseCSV(strings.NewReader(data), "")
	assert.NoError(t, err)
	assert.Equal(t, dropped, 0)
	assert.Equal(t, len(rows), 1)
	assert.Equal(t, rows[0].Symbol, "XAUEUR")
}

func TestParseCSVBadHeader(t *testing.T) {
	data := "day,o,h,l,c\n2024-01-01,1,2,0,1\n"

	_, _, err := ParseCSV(strings.NewReader(data), "")
	assert.Error(t, err)
}
