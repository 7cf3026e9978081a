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

func TestParseImageItems(t *testing.T) {
	data := `[
		{"urls":{"regular":"https://img.example.com/a","thumb":"https://img.example.com/a-t"},
		 "alt_description":"gold bars","user":{"name":"Ana"}},
		{"urls":{"regular":""},"alt_description":"no url"}
	]`

	items := ParseImageItems(gjson.Parse(data).Array())
	assert.Equal(t, len(items), 1)
	assert.Equal(t, items[0].URL, "https://img.example.com/a")
	assert.Equal(t, items[0].Thumbnail, "https://img.example.com/a-t")
	assert.Equal(t, items[0].Alt, "gold bars")
	assert.Equal(t, items[0].Credit, "Ana")
}

func TestUnsplashClientFetchImages(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/search/photos")
		assert.Equal(t, r.URL.Query().Get("query"), "gold")
		assert.Equal(t, r.URL.Query().Get("client_id"), "key")
		w.Write([]byte(`{"results":[{"urls":{"regular":"https://img.example.com/a"}}]}`))
	}))
	defer svr.Close()

	c := NewUnsplashClient(&UnsplashConfig{
		AccessKey: "key",
		BaseURL:   svr.URL,
	})

	items, err := c.FetchImages(context.Background(), "gold")
	assert.NoError(t, err)
	assert.Equal(t, len(items), 1)
	assert.Equal(t, items[0].URL, "https://img.example.com/a")
}

func TestUnsplashClientConcurrentQueries(t *testing.T) {
	// Image fetches run concurrently, one per cached query; every caller
	// must get the url for its own query back intact.
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		w.Write([]byte(fmt.Sprintf(`{"results":[{"urls":{"regular":"https://img.example.com/%s"},"alt_description":%q}]}`,
			r.URL.Query().Get("per_page"), q)))
	}))
	defer svr.Close()

	c := NewUnsplashClient(&UnsplashConfig{
		AccessKey: "key",
		BaseURL:   svr.URL,
	})

	const workers = 4
	const iterations = 25

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range iterations {
				query := fmt.Sprintf("gold motif %d-%d", w, i)
				items, err := c.FetchImages(context.Background(), query)
				assert.NoError(t, err)
				assert.Equal(t, len(items), 1)
				assert.Equal(t, items[0].Alt, query)
			}
		}(w)
	}
	wg.Wait()
}

func TestUnsplashClientErrors(t *testing.T) {
	c := NewUnsplashClient(&UnsplashConfig{})
	_, err := c.FetchImages(context.Background(), "gold")
	assert.Error(t, err)

	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer svr.Close()

	c = NewUnsplashClient(&UnsplashConfig{
		AccessKey: "key",
		BaseURL:   svr.URL,
	})
	_, err = c.FetchImages(context.Background(), "gold")
	assert.Error(t, err)
}
