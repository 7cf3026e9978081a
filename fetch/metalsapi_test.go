package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"goldboard/ohlc"
)

func TestMetalsClientFormURL(t *testing.T) {
	c := NewMetalsClient(&MetalsConfig{
		APIKey:  "key",
		BaseURL: "http://base",
	})

	params := url.Values{}
	params.Add("a", "bbb")
	params.Add("b", "ccc")

	formedURL := c.formURL("/path", params.Encode())
	assert.Equal(t, formedURL, "http://base/path?a=bbb&b=ccc")
}

func TestMetalsClientMissingAPIKey(t *testing.T) {
	c := NewMetalsClient(&MetalsConfig{})

	_, err := c.FetchDayOHLC(context.Background(), time.Now())
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	_, err = c.FetchSpot(context.Background())
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestMetalsClientFetchDayOHLC(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/open-high-low-close")
		assert.Equal(t, r.URL.Query().Get("date"), "2024-01-05")
		w.Write([]byte(`{"success":true,"rates":{"open":"2010.5","high":"2025","low":"2001.25","close":"2018"}}`))
	}))
	defer svr.Close()

	c := NewMetalsClient(&MetalsConfig{
		APIKey:  "key",
		BaseURL: svr.URL,
	})

	row, err := c.FetchDayOHLC(context.Background(), day("2024-01-05"))
	assert.NoError(t, err)
	assert.Equal(t, row.Open, 2010.5)
	assert.Equal(t, row.High, float64(2025))
	assert.Equal(t, row.Low, 2001.25)
	assert.Equal(t, row.Close, float64(2018))
	assert.Equal(t, row.Date.Format(ohlc.DateLayout), "2024-01-05")
}

func TestMetalsClientServiceError(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":{"info":"rate limit reached"}}`))
	}))
	defer svr.Close()

	c := NewMetalsClient(&MetalsConfig{
		APIKey:  "key",
		BaseURL: svr.URL,
	})

	_, err := c.FetchDayOHLC(context.Background(), day("2024-01-05"))
	assert.Error(t, err)
}

func TestMetalsClientFetchSpot(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/latest")
		w.Write([]byte(`{"success":true,"timestamp":1704450600,"rates":{"XAU":0.0005}}`))
	}))
	defer svr.Close()

	c := NewMetalsClient(&MetalsConfig{
		APIKey:  "key",
		BaseURL: svr.URL,
	})

	quote, err := c.FetchSpot(context.Background())
	assert.NoError(t, err)
	// The upstream reports ounces per dollar, the quote is the inverse.
	assert.Equal(t, quote.Price, float64(2000))
	assert.Equal(t, quote.Source, "metals-api")
	assert.Equal(t, quote.At.Unix(), int64(1704450600))
}
