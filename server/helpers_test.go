package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/peterldowns/testy/assert"

	"goldboard/fetch"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		fallback string
		want     string
	}{
		{
			name:     "plain query passes through",
			query:    "gold price",
			fallback: "fallback",
			want:     "gold price",
		},
		{
			name:     "whitespace and control characters stripped",
			query:    "  gold\x00\x1bprice\n ",
			fallback: "fallback",
			want:     "goldprice",
		},
		{
			name:     "empty query falls back",
			query:    "   ",
			fallback: "fallback",
			want:     "fallback",
		},
		{
			name:     "long query truncated",
			query:    strings.Repeat("a", 100),
			fallback: "fallback",
			want:     strings.Repeat("a", maxQueryLen),
		},
	}

	for _, test := range tests {
		got := sanitizeQuery(test.query, test.fallback)
		if got != test.want {
			t.Errorf("%s: expected %q, got %q", test.name, test.want, got)
		}
	}
}

func TestSanitizeQueryTruncatesOnRuneBoundary(t *testing.T) {
	// 63 ascii bytes followed by a 3-byte rune straddling the cap; the cut
	// must drop the whole rune, never split it.
	query := strings.Repeat("a", 63) + "€€€"
	got := sanitizeQuery(query, "fallback")

	assert.True(t, utf8.ValidString(got))
	assert.True(t, len(got) <= maxQueryLen)
	assert.Equal(t, got, strings.Repeat("a", 63))
}

func TestUpstreamStatus(t *testing.T) {
	assert.Equal(t, upstreamStatus(fetch.ErrMissingAPIKey), http.StatusInternalServerError)
	assert.Equal(t, upstreamStatus(fmt.Errorf("wrapped: %w", fetch.ErrMissingAPIKey)), http.StatusInternalServerError)
	assert.Equal(t, upstreamStatus(errors.New("timeout")), http.StatusBadGateway)
}
