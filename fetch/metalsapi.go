package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"goldboard/ohlc"
)

const (
	// MetalsBaseURL is the Metals-API service base url.
	MetalsBaseURL = "https://metals-api.com/api"
)

// ErrMissingAPIKey indicates an upstream client was asked to fetch without a
// configured key. Handlers report it as a configuration error rather than a
// transient upstream failure.
var ErrMissingAPIKey = errors.New("missing api key")

// MetalsConfig represents the configuration for the Metals-API client.
type MetalsConfig struct {
	// APIKey is the Metals-API access key.
	APIKey string
	// BaseURL is the service base url.
	BaseURL string
	// Base is the quote currency, eg. USD.
	Base string
	// Symbol is the metal symbol, eg. XAU.
	Symbol string
}

// MetalsClient represents the Metals-API client.
type MetalsClient struct {
	cfg   *MetalsConfig
	httpc http.Client
	buf   *bytes.Buffer
}

// Ensure the Metals-API client implements the fetcher interfaces.
var _ DayFetcher = (*MetalsClient)(nil)
var _ SpotFetcher = (*MetalsClient)(nil)

// NewMetalsClient instantiates a new Metals-API client.
func NewMetalsClient(cfg *MetalsConfig) *MetalsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MetalsBaseURL
	}
	if cfg.Base == "" {
		cfg.Base = "USD"
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "XAU"
	}

	return &MetalsClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
		buf:   bytes.NewBuffer(make([]byte, 0, 512)),
	}
}

// formURL creates full urls including parameters for the api.
func (c *MetalsClient) formURL(path string, params string) string {
	c.buf.WriteString(c.cfg.BaseURL)
	c.buf.WriteString(path)
	c.buf.WriteString("?")
	c.buf.WriteString(params)
	url := c.buf.String()
	c.buf.Reset()

	return url
}

// call performs a GET request against the api and returns the parsed body
// after checking the service-level success flag.
func (c *MetalsClient) call(ctx context.Context, formedURL string) (*gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching metals data: %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from metals api", resp.StatusCode)
	}

	data := gjson.ParseBytes(body)
	if !data.Get("success").Bool() {
		return nil, fmt.Errorf("metals api error: %s", data.Get("error.info").String())
	}

	return &data, nil
}

// FetchDayOHLC fetches the OHLC row for the provided calendar day.
func (c *MetalsClient) FetchDayOHLC(ctx context.Context, date time.Time) (ohlc.Row, error) {
	const ohlcPath = "/open-high-low-close"

	if c.cfg.APIKey == "" {
		return ohlc.Row{}, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Add("access_key", c.cfg.APIKey)
	params.Add("base", c.cfg.Base)
	params.Add("symbols", c.cfg.Symbol)
	params.Add("date", date.Format(ohlc.DateLayout))

	data, err := c.call(ctx, c.formURL(ohlcPath, params.Encode()))
	if err != nil {
		return ohlc.Row{}, fmt.Errorf("fetching day ohlc for %s: %w", date.Format(ohlc.DateLayout), err)
	}

	rates := data.Get("rates")
	if !rates.Exists() {
		return ohlc.Row{}, fmt.Errorf("no rates for %s", date.Format(ohlc.DateLayout))
	}

	row, ok := ohlc.Sanitize(map[string]string{
		"date":  date.Format(ohlc.DateLayout),
		"open":  rates.Get("open").String(),
		"high":  rates.Get("high").String(),
		"low":   rates.Get("low").String(),
		"close": rates.Get("close").String(),
	}, "")
	if !ok {
		return ohlc.Row{}, fmt.Errorf("unparseable rates for %s", date.Format(ohlc.DateLayout))
	}

	return row, nil
}

// FetchSpot fetches the current spot quote. Metals-API reports rates as
// units of metal per unit of currency, the usd price per ounce is the
// inverse.
func (c *MetalsClient) FetchSpot(ctx context.Context) (SpotQuote, error) {
	const latestPath = "/latest"

	if c.cfg.APIKey == "" {
		return SpotQuote{}, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Add("access_key", c.cfg.APIKey)
	params.Add("base", c.cfg.Base)
	params.Add("symbols", c.cfg.Symbol)

	data, err := c.call(ctx, c.formURL(latestPath, params.Encode()))
	if err != nil {
		return SpotQuote{}, fmt.Errorf("fetching spot quote: %w", err)
	}

	rate := data.Get("rates." + c.cfg.Symbol).Float()
	if rate <= 0 {
		return SpotQuote{}, fmt.Errorf("invalid spot rate %f", rate)
	}

	price := 1 / rate

	at := time.Unix(data.Get("timestamp").Int(), 0).UTC()
	if data.Get("timestamp").Int() == 0 {
		at = time.Now().UTC()
	}

	return SpotQuote{
		Price:  price,
		Bid:    price,
		Ask:    price,
		At:     at,
		Source: "metals-api",
	}, nil
}
