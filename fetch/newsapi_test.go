package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/tidwall/gjson"
)

func TestParseNewsItems(t *testing.T) {
	data := `[
		{"title":"Gold rallies","description":"Spot gold climbs","url":"https://example.com/a",
		 "publishedAt":"2024-01-05T10:00:00Z","source":{"name":"Wire"},"urlToImage":"https://example.com/a.jpg"},
		{"title":"","description":"missing title","url":"https://example.com/b"},
		{"title":"No link","description":"missing url","url":""}
	]`

	items := ParseNewsItems(gjson.Parse(data).Array())
	assert.Equal(t, len(items), 1)
	assert.Equal(t, items[0].Title, "Gold rallies")
	assert.Equal(t, items[0].URL, "https://example.com/a")
	assert.Equal(t, items[0].Source, "Wire")
	assert.Equal(t, items[0].ImageURL, "https://example.com/a.jpg")
}

func TestNewsAPIClientFetchNews(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/everything")
		assert.Equal(t, r.URL.Query().Get("q"), "gold price")
		assert.Equal(t, r.URL.Query().Get("language"), "en")
		w.Write([]byte(`{"status":"ok","articles":[{"title":"Gold steadies","url":"https://example.com/a"}]}`))
	}))
	defer svr.Close()

	c := NewNewsAPIClient(&NewsAPIConfig{
		APIKey:  "key",
		BaseURL: svr.URL,
	})

	items, err := c.FetchNews(context.Background(), "gold price")
	assert.NoError(t, err)
	assert.Equal(t, len(items), 1)
	assert.Equal(t, items[0].Title, "Gold steadies")
}

func TestNewsAPIClientConcurrentQueries(t *testing.T) {
	// News fetches run concurrently, one per cached query; every caller must
	// get the url for its own query back intact.
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		w.Write([]byte(fmt.Sprintf(`{"status":"ok","articles":[{"title":%q,"url":"https://example.com/a"}]}`, q)))
	}))
	defer svr.Close()

	c := NewNewsAPIClient(&NewsAPIConfig{
		APIKey:  "key",
		BaseURL: svr.URL,
	})

	const workers = 4
	const iterations = 25

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range iterations {
				query := fmt.Sprintf("gold topic %d-%d", w, i)
				items, err := c.FetchNews(context.Background(), query)
				assert.NoError(t, err)
				assert.Equal(t, len(items), 1)
				assert.Equal(t, items[0].Title, query)
			}
		}(w)
	}
	wg.Wait()
}

func TestNewsAPIClientServiceError(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":"error","message":"rate limited"}`))
	}))
	defer svr.Close()

	c := NewNewsAPIClient(&NewsAPIConfig{
		APIKey:  "key",
		BaseURL: svr.URL,
	})

	_, err := c.FetchNews(context.Background(), "gold")
	assert.Error(t, err)
}
