package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error body for every failure the API surfaces.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// WriteJSON writes a JSON response with the given status code.
// It sets Content-Type and no-store cache headers; token responses must
// never be cached by intermediaries.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON ErrorResponse with the given status code.
func WriteError(w http.ResponseWriter, code int, detail string) {
	WriteJSON(w, code, ErrorResponse{Detail: detail})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
