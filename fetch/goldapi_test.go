package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestGoldAPIClientFetchSpot(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/XAU/USD")
		assert.Equal(t, r.Header.Get("x-access-token"), "token")
		w.Write([]byte(`{"price":2031.4,"bid":2031.1,"ask":2031.7,"timestamp":1704450600}`))
	}))
	defer svr.Close()

	c := NewGoldAPIClient(&GoldAPIConfig{
		APIKey:  "token",
		BaseURL: svr.URL,
	})

	quote, err := c.FetchSpot(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, quote.Price, 2031.4)
	assert.Equal(t, quote.Bid, 2031.1)
	assert.Equal(t, quote.Ask, 2031.7)
	assert.Equal(t, quote.Source, "goldapi")
	assert.Equal(t, quote.At.Unix(), int64(1704450600))
}

func TestGoldAPIClientErrors(t *testing.T) {
	c := NewGoldAPIClient(&GoldAPIConfig{})
	_, err := c.FetchSpot(context.Background())
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer svr.Close()

	c = NewGoldAPIClient(&GoldAPIConfig{
		APIKey:  "token",
		BaseURL: svr.URL,
	})
	_, err = c.FetchSpot(context.Background())
	assert.Error(t, err)

	// A non-positive price is rejected rather than served.
	svr2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":0}`))
	}))
	defer svr2.Close()

	c = NewGoldAPIClient(&GoldAPIConfig{
		APIKey:  "token",
		BaseURL: svr2.URL,
	})
	_, err = c.FetchSpot(context.Background())
	assert.Error(t, err)
}
