package fetch

import (
	"context"
	"time"

	"goldboard/ohlc"
)

// DayFetcher defines the requirements for fetching one trading day's OHLC
// row from an upstream price service.
type DayFetcher interface {
	// FetchDayOHLC fetches the OHLC row for the provided calendar day.
	FetchDayOHLC(ctx context.Context, date time.Time) (ohlc.Row, error)
}

// SpotFetcher defines the requirements for fetching the current spot quote.
type SpotFetcher interface {
	// FetchSpot fetches the current spot quote.
	FetchSpot(ctx context.Context) (SpotQuote, error)
}

// NewsFetcher defines the requirements for fetching news items.
type NewsFetcher interface {
	// FetchNews fetches news items matching the provided query.
	FetchNews(ctx context.Context, query string) ([]NewsItem, error)
}

// ImageFetcher defines the requirements for fetching image search results.
type ImageFetcher interface {
	// FetchImages fetches images matching the provided query.
	FetchImages(ctx context.Context, query string) ([]ImageItem, error)
}

// SpotQuote represents the current spot price of the tracked pair.
type SpotQuote struct {
	Price  float64   `json:"price"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	At     time.Time `json:"ts"`
	Source string    `json:"-"`
}

// NewsItem represents one news article returned by the news proxy.
type NewsItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      string `json:"source"`
	ImageURL    string `json:"imageUrl"`
}

// ImageItem represents one image search result returned by the image proxy.
type ImageItem struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Alt       string `json:"alt"`
	Credit    string `json:"credit"`
}
