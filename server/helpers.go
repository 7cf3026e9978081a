package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"goldboard/fetch"
)

const (
	// maxQueryLen caps the length of free-text search queries forwarded
	// upstream.
	maxQueryLen = 64
)

// errorResponse is the envelope for all failed requests.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{OK: false, Error: message})
}

// upstreamStatus maps a fetch error to a response status. A missing api key
// is a deployment problem, not a flaky upstream.
func upstreamStatus(err error) int {
	if errors.Is(err, fetch.ErrMissingAPIKey) {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

// requireMethod validates the request method, writing a 405 response when it
// does not match.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}

	w.Header().Set("Allow", method+", "+http.MethodOptions)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// sanitizeQuery trims, strips control characters and truncates a free-text
// query, falling back to the provided default when nothing usable remains.
func sanitizeQuery(q string, fallback string) string {
	q = strings.TrimSpace(q)
	q = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, q)

	if len(q) > maxQueryLen {
		// Cut on a rune boundary so a split multibyte character never
		// reaches the upstream.
		cut := maxQueryLen
		for cut > 0 && !utf8.RuneStart(q[cut]) {
			cut--
		}
		q = q[:cut]
	}
	if q == "" {
		return fallback
	}

	return q
}
