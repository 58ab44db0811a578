package primary

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lyrics-sync-go/circuitbreaker"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/services/token"
)

// Client fetches structured lyrics from the primary lyrics service.
type Client struct {
	baseURL    string
	tokens     token.Source
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL string, tokens token.Source, httpClient *http.Client, breaker *circuitbreaker.CircuitBreaker) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{Name: ProviderName})
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
		breaker:    breaker,
	}
}

// FetchLyrics requests lyrics for a track id. An empty 200 body means the
// service has no lyrics for the track and yields (nil, nil). Any non-2xx
// status, transport failure or undecodable body is an error.
func (c *Client) FetchLyrics(ctx context.Context, trackID string) (lyrics.Lyrics, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("%w (retry in %v)", circuitbreaker.ErrCircuitOpen, c.breaker.TimeUntilRetry().Round(time.Second))
	}

	body, err := c.get(ctx, trackID)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	c.breaker.RecordSuccess()

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return lyrics.Decode(body)
}

func (c *Client) get(ctx context.Context, trackID string) ([]byte, error) {
	accessToken, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting access token: %w", err)
	}

	requestURL := c.baseURL + "/lyrics/" + url.PathEscape(trackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("lyrics request for %s failed with status %d", trackID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	return body, nil
}
