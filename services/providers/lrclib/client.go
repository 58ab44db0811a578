package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	searchPath       = "/api/search"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "lyrics-sync-go (https://github.com/surfbryce/beautiful-lyrics)"
)

// Client talks to the LRCLIB search API. Requests share one rate limiter so a
// burst of strategies stays polite.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) { cl.userAgent = ua }
}

// WithRateLimit caps outgoing requests; rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = nil
			return
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a single /api/search request.
func (c *Client) Search(ctx context.Context, params url.Values) ([]Record, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	requestURL := c.baseURL + searchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return records, nil
}

// SearchAll runs every strategy for q concurrently and merges the results by
// LRCLIB id. A failing strategy only loses its own results. The merged slice
// is ordered by strategy, then by position within that strategy's response.
func (c *Client) SearchAll(ctx context.Context, q Query) []Record {
	strategies := q.Strategies()
	results := make([][]Record, len(strategies))

	var g errgroup.Group
	for i, params := range strategies {
		g.Go(func() error {
			records, err := c.Search(ctx, params)
			if err != nil {
				log.Warnf("%s Search strategy %d failed: %v", logcolors.LogLrclib, i+1, err)
				return nil
			}
			results[i] = records
			return nil
		})
	}
	g.Wait()

	return mergeByID(results)
}

func mergeByID(batches [][]Record) []Record {
	seen := make(map[int64]bool)
	var merged []Record
	for _, batch := range batches {
		for _, r := range batch {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			merged = append(merged, r)
		}
	}
	return merged
}
