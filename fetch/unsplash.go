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
	// UnsplashBaseURL is the Unsplash API base url.
	UnsplashBaseURL = "https://api.unsplash.com"
	// maxImageItems caps the number of images returned per query.
	maxImageItems = 12
)

// UnsplashConfig represents the configuration for the Unsplash client.
type UnsplashConfig struct {
	// AccessKey is the Unsplash API access key.
	AccessKey string
	// BaseURL is the service base url.
	BaseURL string
}

// UnsplashClient represents the Unsplash image search client. Its fetches
// run concurrently, one per cached query, so it carries no shared call state.
type UnsplashClient struct {
	cfg   *UnsplashConfig
	httpc http.Client
}

// Ensure the Unsplash client implements the ImageFetcher interface.
var _ ImageFetcher = (*UnsplashClient)(nil)

// NewUnsplashClient instantiates a new Unsplash client.
func NewUnsplashClient(cfg *UnsplashConfig) *UnsplashClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = UnsplashBaseURL
	}

	return &UnsplashClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
	}
}

// formURL creates full urls including parameters for the api.
func (c *UnsplashClient) formURL(path string, params string) string {
	var buf strings.Builder
	buf.Grow(len(c.cfg.BaseURL) + len(path) + len(params) + 1)
	buf.WriteString(c.cfg.BaseURL)
	buf.WriteString(path)
	buf.WriteString("?")
	buf.WriteString(params)

	return buf.String()
}

// ParseImageItems parses image items from the provided json result data.
func ParseImageItems(data []gjson.Result) []ImageItem {
	items := make([]ImageItem, 0, len(data))
	for idx := range data {
		item := ImageItem{
			URL:       data[idx].Get("urls.regular").String(),
			Thumbnail: data[idx].Get("urls.thumb").String(),
			Alt:       data[idx].Get("alt_description").String(),
			Credit:    data[idx].Get("user.name").String(),
		}

		if item.URL == "" {
			continue
		}

		items = append(items, item)
	}

	return items
}

// FetchImages fetches images matching the provided query.
func (c *UnsplashClient) FetchImages(ctx context.Context, query string) ([]ImageItem, error) {
	const searchPath = "/search/photos"

	if c.cfg.AccessKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Add("query", query)
	params.Add("per_page", strconv.Itoa(maxImageItems))
	params.Add("client_id", c.cfg.AccessKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(searchPath, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching images for %q: %w", query, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash error: unexpected status %d", resp.StatusCode)
	}

	return ParseImageItems(gjson.GetBytes(body, "results").Array()), nil
}
