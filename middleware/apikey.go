package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// APIKeyHeader carries the daemon's shared secret.
const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware rejects requests that do not carry apiKey in the X-API-Key
// header. When required is false every request passes. A required but empty
// key is treated as a misconfiguration and lets everything through with a
// warning. Paths in publicPaths are always allowed; an entry ending in "*"
// matches by prefix.
func APIKeyMiddleware(apiKey string, required bool, publicPaths []string) func(http.Handler) http.Handler {
	exact := make(map[string]bool)
	var prefixes []string
	for _, p := range publicPaths {
		if strings.HasSuffix(p, "*") {
			prefixes = append(prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		exact[p] = true
	}

	isPublic := func(path string) bool {
		if exact[path] {
			return true
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}

	if required && apiKey == "" {
		log.Warnf("%s API key required but not configured, allowing all requests", logcolors.LogAPIKey)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required || apiKey == "" || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(APIKeyHeader)
			switch {
			case provided == "":
				log.Warnf("%s Missing API key from %s for %s", logcolors.LogAPIKey, r.RemoteAddr, r.URL.Path)
				writeUnauthorized(w, "API key required")
			case subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1:
				log.Warnf("%s Invalid API key from %s for %s", logcolors.LogAPIKey, r.RemoteAddr, r.URL.Path)
				writeUnauthorized(w, "Invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
