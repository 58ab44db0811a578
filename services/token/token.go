// Package token supplies the bearer tokens sent to the lyrics and metadata
// services. Tokens are consumed here, never minted.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// refreshMargin renews a token slightly before the server stops accepting it.
const refreshMargin = 30 * time.Second

var ErrNoToken = errors.New("no access token configured")

// Source returns a currently valid access token.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// tokenData is the response of the token endpoint
type tokenData struct {
	AccessToken                      string `json:"accessToken"`
	AccessTokenExpirationTimestampMs int64  `json:"accessTokenExpirationTimestampMs"`
}

type cachedToken struct {
	Token      string
	Expiration time.Time
}

// Endpoint fetches tokens from a URL and caches each one until shortly before
// it expires.
type Endpoint struct {
	url        string
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	cached *cachedToken
}

func NewEndpoint(url string, httpClient *http.Client) *Endpoint {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Endpoint{url: url, httpClient: httpClient, now: time.Now}
}

func (e *Endpoint) Token(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cached != nil && e.now().Before(e.cached.Expiration) {
		log.Debugf("%s Using cached access token", logcolors.LogBearerToken)
		return e.cached.Token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating token request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading token response: %w", err)
	}

	var data tokenData
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("error parsing token response: %w", err)
	}
	if data.AccessToken == "" {
		return "", ErrNoToken
	}

	e.cached = &cachedToken{
		Token:      data.AccessToken,
		Expiration: time.UnixMilli(data.AccessTokenExpirationTimestampMs).Add(-refreshMargin),
	}
	log.Debugf("%s Cached new access token (expires %s)", logcolors.LogBearerToken, e.cached.Expiration.Format(time.RFC3339))
	return data.AccessToken, nil
}

// FromConfig prefers a token endpoint and falls back to a fixed token.
func FromConfig(tokenURL, accessToken string, httpClient *http.Client) Source {
	if tokenURL != "" {
		return NewEndpoint(tokenURL, httpClient)
	}
	return Static(accessToken)
}
