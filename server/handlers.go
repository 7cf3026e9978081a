package server

import (
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"goldboard/fetch"
	"goldboard/ohlc"
)

const (
	// spotKey is the single cache key used by the spot price endpoint.
	spotKey = "spot"
	// defaultNewsQuery is used when the news query is empty.
	defaultNewsQuery = "gold price"
	// defaultImageQuery is used when the image query is empty.
	defaultImageQuery = "gold"
	// maxUpdateBody caps the CSV update request body size.
	maxUpdateBody = 1 << 20
)

// rowPayload is the wire shape of an OHLC row.
type rowPayload struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// rowPayloads maps rows to their wire shape.
func rowPayloads(rows []ohlc.Row) []rowPayload {
	payloads := make([]rowPayload, len(rows))
	for idx := range rows {
		payloads[idx] = rowPayload{
			Date:  rows[idx].Date.Format(ohlc.DateLayout),
			Open:  rows[idx].Open,
			High:  rows[idx].High,
			Low:   rows[idx].Low,
			Close: rows[idx].Close,
		}
	}

	return payloads
}

// handleHealth responds to liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

// handlePrice serves the cached spot quote, falling back to a stale quote
// when the refresh fails.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	type priceResponse struct {
		OK     bool `json:"ok"`
		Cached bool `json:"cached"`
		Stale  bool `json:"stale,omitempty"`
		fetch.SpotQuote
	}

	quote, cached, err := s.cfg.SpotCache.Get(r.Context(), spotKey)
	if err != nil {
		stale, ok := s.cfg.SpotCache.Stale(spotKey)
		if !ok {
			writeError(w, upstreamStatus(err), "spot price unavailable: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, priceResponse{OK: true, Cached: true, Stale: true, SpotQuote: stale})
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{OK: true, Cached: cached, SpotQuote: quote})
}

// handleHistorical serves a downsampled OHLC range.
func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	from, okFrom := ohlc.ParseDay(r.URL.Query().Get("from"))
	to, okTo := ohlc.ParseDay(r.URL.Query().Get("to"))
	if !okFrom || !okTo {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD dates")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	type historicalResponse struct {
		OK     bool         `json:"ok"`
		Rows   []rowPayload `json:"rows"`
		Cached bool         `json:"cached"`
		Stale  bool         `json:"stale,omitempty"`
	}

	key := from.Format(ohlc.DateLayout) + "|" + to.Format(ohlc.DateLayout)
	rows, cached, err := s.cfg.HistoricalCache.Get(r.Context(), key)
	if err != nil {
		stale, ok := s.cfg.HistoricalCache.Stale(key)
		if !ok {
			writeError(w, upstreamStatus(err), "historical data unavailable: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, historicalResponse{OK: true, Rows: rowPayloads(stale), Cached: true, Stale: true})
		return
	}

	writeJSON(w, http.StatusOK, historicalResponse{OK: true, Rows: rowPayloads(rows), Cached: cached})
}

// handleNews proxies the news search upstream.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	type newsResponse struct {
		OK    bool             `json:"ok"`
		Items []fetch.NewsItem `json:"items"`
		Stale bool             `json:"stale,omitempty"`
	}

	query := sanitizeQuery(r.URL.Query().Get("q"), defaultNewsQuery)
	items, _, err := s.cfg.NewsCache.Get(r.Context(), query)
	if err != nil {
		stale, ok := s.cfg.NewsCache.Stale(query)
		if !ok {
			writeError(w, upstreamStatus(err), "news unavailable: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, newsResponse{OK: true, Items: stale, Stale: true})
		return
	}

	writeJSON(w, http.StatusOK, newsResponse{OK: true, Items: items})
}

// handleImages proxies the image search upstream.
func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	type imagesResponse struct {
		OK    bool              `json:"ok"`
		Items []fetch.ImageItem `json:"items"`
		Stale bool              `json:"stale,omitempty"`
	}

	query := sanitizeQuery(r.URL.Query().Get("q"), defaultImageQuery)
	items, _, err := s.cfg.ImageCache.Get(r.Context(), query)
	if err != nil {
		stale, ok := s.cfg.ImageCache.Stale(query)
		if !ok {
			writeError(w, upstreamStatus(err), "images unavailable: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, imagesResponse{OK: true, Items: stale, Stale: true})
		return
	}

	writeJSON(w, http.StatusOK, imagesResponse{OK: true, Items: items})
}

// handleCSVUpdate ingests a JSON array of OHLC rows, sanitizing each entry
// and dropping the unparseable ones.
func (s *Server) handleCSVUpdate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		writeError(w, http.StatusBadRequest, "request body must be a json array of rows")
		return
	}

	var rows []ohlc.Row
	for _, item := range parsed.Array() {
		row, ok := ohlc.Sanitize(map[string]string{
			"date":  item.Get("date").String(),
			"open":  item.Get("open").String(),
			"high":  item.Get("high").String(),
			"low":   item.Get("low").String(),
			"close": item.Get("close").String(),
		}, "")
		if !ok {
			continue
		}

		rows = append(rows, row)
	}

	total, lastDate, err := s.cfg.UpdateRows(r.Context(), rows)
	if err != nil {
		s.cfg.Logger.Error().Msgf("persisting uploaded rows: %v", err)
		writeError(w, http.StatusInternalServerError, "persisting rows: "+err.Error())
		return
	}

	var last string
	if !lastDate.IsZero() {
		last = lastDate.Format(ohlc.DateLayout)
	}

	writeJSON(w, http.StatusOK, struct {
		OK        bool   `json:"ok"`
		Updated   int    `json:"updated"`
		TotalRows int    `json:"totalRows"`
		LastDate  string `json:"lastDate"`
	}{OK: true, Updated: len(rows), TotalRows: total, LastDate: last})
}
