package middleware

import (
	"net/http"
	"strings"
	"time"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/stats"

	log "github.com/sirupsen/logrus"
)

// ResponseRecorder captures the status code and body size written by a handler.
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BodySize   int
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (r *ResponseRecorder) WriteHeader(statusCode int) {
	r.StatusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.BodySize += n
	return n, err
}

func getStatusColor(statusCode int) string {
	switch {
	case statusCode >= 500:
		return logcolors.Red
	case statusCode >= 400:
		return logcolors.Yellow
	case statusCode >= 300:
		return logcolors.Cyan
	case statusCode >= 200:
		return logcolors.Green
	default:
		return logcolors.Reset
	}
}

// LoggingMiddleware logs every request with its status and latency and counts
// it in the global stats.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		s := stats.Get()
		s.TotalRequests.Add(1)
		s.RecordStatusCode(rec.StatusCode)

		entry := log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.StatusCode,
			"bytes":    rec.BodySize,
			"duration": time.Since(start).String(),
		})
		msg := logcolors.LogServer + " " + getStatusColor(rec.StatusCode) + http.StatusText(rec.StatusCode) + logcolors.Reset
		// Player updates arrive several times a second.
		if rec.StatusCode < 400 && strings.HasPrefix(r.URL.Path, "/player/") {
			entry.Debug(msg)
			return
		}
		entry.Info(msg)
	})
}

// Flush lets streaming handlers push partial responses through the recorder.
func (r *ResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
