package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// GoldAPIBaseURL is the GoldAPI service base url.
	GoldAPIBaseURL = "https://www.goldapi.io/api"
)

// GoldAPIConfig represents the configuration for the GoldAPI client.
type GoldAPIConfig struct {
	// APIKey is the GoldAPI access token.
	APIKey string
	// BaseURL is the service base url.
	BaseURL string
	// Symbol is the metal symbol, eg. XAU.
	Symbol string
	// Currency is the quote currency, eg. USD.
	Currency string
}

// GoldAPIClient represents the GoldAPI client, used as the fallback spot
// price source.
type GoldAPIClient struct {
	cfg   *GoldAPIConfig
	httpc http.Client
	buf   *bytes.Buffer
}

// Ensure the GoldAPI client implements the SpotFetcher interface.
var _ SpotFetcher = (*GoldAPIClient)(nil)

// NewGoldAPIClient instantiates a new GoldAPI client.
func NewGoldAPIClient(cfg *GoldAPIConfig) *GoldAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GoldAPIBaseURL
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "XAU"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}

	return &GoldAPIClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
		buf:   bytes.NewBuffer(make([]byte, 0, 512)),
	}
}

// formURL creates the full request url for the api.
func (c *GoldAPIClient) formURL() string {
	c.buf.WriteString(c.cfg.BaseURL)
	c.buf.WriteString("/")
	c.buf.WriteString(c.cfg.Symbol)
	c.buf.WriteString("/")
	c.buf.WriteString(c.cfg.Currency)
	url := c.buf.String()
	c.buf.Reset()

	return url
}

// FetchSpot fetches the current spot quote.
func (c *GoldAPIClient) FetchSpot(ctx context.Context) (SpotQuote, error) {
	if c.cfg.APIKey == "" {
		return SpotQuote{}, ErrMissingAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(), nil)
	if err != nil {
		return SpotQuote{}, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("x-access-token", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return SpotQuote{}, fmt.Errorf("fetching spot quote: %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SpotQuote{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return SpotQuote{}, fmt.Errorf("unexpected status %d from goldapi", resp.StatusCode)
	}

	data := gjson.ParseBytes(body)
	price := data.Get("price").Float()
	if price <= 0 {
		return SpotQuote{}, fmt.Errorf("invalid spot price %f", price)
	}

	at := time.Unix(data.Get("timestamp").Int(), 0).UTC()
	if data.Get("timestamp").Int() == 0 {
		at = time.Now().UTC()
	}

	return SpotQuote{
		Price:  price,
		Bid:    data.Get("bid").Float(),
		Ask:    data.Get("ask").Float(),
		At:     at,
		Source: "goldapi",
	}, nil
}
