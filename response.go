package main

import (
	"encoding/json"
	"net/http"
)

// APIResponse sets the daemon's standard headers and writes JSON bodies.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	lyricsState string
}

// Respond creates a response helper from request context
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetLyricsState sets the X-Lyrics-State header value
func (a *APIResponse) SetLyricsState(state string) *APIResponse {
	a.lyricsState = state
	return a
}

func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")
	a.w.Header().Set("Cache-Control", "no-store")

	if a.lyricsState != "" {
		a.w.Header().Set("X-Lyrics-State", a.lyricsState)
	}
	if rateLimitType, ok := a.r.Context().Value(rateLimitTypeKey).(string); ok && rateLimitType != "" {
		a.w.Header().Set("X-RateLimit-Type", rateLimitType)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	return a.Status(http.StatusOK, data)
}

// Status writes headers with statusCode and encodes data as JSON.
func (a *APIResponse) Status(statusCode int, data interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes an ErrorResponse with statusCode.
func (a *APIResponse) Error(statusCode int, message string) error {
	return a.Status(statusCode, ErrorResponse{Error: message})
}

// NoContent writes headers and a 204.
func (a *APIResponse) NoContent() {
	a.writeHeaders()
	a.w.WriteHeader(http.StatusNoContent)
}
