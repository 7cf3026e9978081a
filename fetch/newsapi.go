package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// NewsAPIBaseURL is the NewsAPI service base url.
	NewsAPIBaseURL = "https://newsapi.org/v2"
	// maxNewsItems caps the number of articles returned per query.
	maxNewsItems = 20
)

// NewsAPIConfig represents the configuration for the NewsAPI client.
type NewsAPIConfig struct {
	// APIKey is the NewsAPI key.
	APIKey string
	// BaseURL is the service base url.
	BaseURL string
}

// NewsAPIClient represents the NewsAPI client. Its fetches run concurrently,
// one per cached query, so it carries no shared call state.
type NewsAPIClient struct {
	cfg   *NewsAPIConfig
	httpc http.Client
}

// Ensure the NewsAPI client implements the NewsFetcher interface.
var _ NewsFetcher = (*NewsAPIClient)(nil)

// NewNewsAPIClient instantiates a new NewsAPI client.
func NewNewsAPIClient(cfg *NewsAPIConfig) *NewsAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = NewsAPIBaseURL
	}

	return &NewsAPIClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
	}
}

// formURL creates full urls including parameters for the api.
func (c *NewsAPIClient) formURL(path string, params string) string {
	var buf strings.Builder
	buf.Grow(len(c.cfg.BaseURL) + len(path) + len(params) + 1)
	buf.WriteString(c.cfg.BaseURL)
	buf.WriteString(path)
	buf.WriteString("?")
	buf.WriteString(params)

	return buf.String()
}

// ParseNewsItems parses news items from the provided json article data.
func ParseNewsItems(data []gjson.Result) []NewsItem {
	items := make([]NewsItem, 0, len(data))
	for idx := range data {
		item := NewsItem{
			Title:       data[idx].Get("title").String(),
			Description: data[idx].Get("description").String(),
			URL:         data[idx].Get("url").String(),
			PublishedAt: data[idx].Get("publishedAt").String(),
			Source:      data[idx].Get("source.name").String(),
			ImageURL:    data[idx].Get("urlToImage").String(),
		}

		// Articles without a title or link are not renderable.
		if item.Title == "" || item.URL == "" {
			continue
		}

		items = append(items, item)
	}

	return items
}

// FetchNews fetches news items matching the provided query.
func (c *NewsAPIClient) FetchNews(ctx context.Context, query string) ([]NewsItem, error) {
	const everythingPath = "/everything"

	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("language", "en")
	params.Add("sortBy", "publishedAt")
	params.Add("pageSize", strconv.Itoa(maxNewsItems))
	params.Add("apiKey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(everythingPath, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching news for %q: %w", query, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	data := gjson.ParseBytes(body)
	if resp.StatusCode != http.StatusOK || data.Get("status").String() != "ok" {
		return nil, fmt.Errorf("newsapi error (%d): %s", resp.StatusCode, data.Get("message").String())
	}

	return ParseNewsItems(data.Get("articles").Array()), nil
}
