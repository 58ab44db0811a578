package trackinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lyrics-sync-go/cache"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/services/token"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// StoreNamespace is the cache namespace for track information documents
	StoreNamespace = "Player_TrackInformation"
	StoreVersion   = 2
)

// StoreExpiration is how long a track information document stays cached.
var StoreExpiration = cache.Expiration{Count: 2, Unit: cache.Weeks}

// Client fetches track information from the metadata service. Concurrent
// requests for the same track share a single HTTP call.
type Client struct {
	baseURL    string
	tokens     token.Source
	httpClient *http.Client
	inflight   singleflight.Group
}

func NewClient(baseURL string, tokens token.Source, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
	}
}

// Fetch requests the document for a hex gid. The in-flight entry is dropped as
// soon as the call returns, successful or not.
func (c *Client) Fetch(ctx context.Context, internalID string) (*TrackInformation, error) {
	path := "/track/" + internalID
	v, err, shared := c.inflight.Do(c.baseURL+path, func() (interface{}, error) {
		return c.fetch(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debugf("%s Shared in-flight request for %s", logcolors.LogTrackInfo, internalID)
	}
	return v.(*TrackInformation), nil
}

func (c *Client) fetch(ctx context.Context, path string) (*TrackInformation, error) {
	accessToken, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("track information request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	var info TrackInformation
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	return &info, nil
}

// Service resolves track information through the cache, falling back to the
// metadata service on a miss.
type Service struct {
	client *Client
	store  *cache.Store[TrackInformation]
}

func NewService(client *Client, backend cache.Backend, opts ...cache.Option) *Service {
	return &Service{
		client: client,
		store:  cache.NewStore[TrackInformation](backend, StoreNamespace, StoreVersion, StoreExpiration, opts...),
	}
}

// Lookup returns the document for a track, keyed in the cache by its public
// id and fetched by its internal hex id.
func (s *Service) Lookup(ctx context.Context, id, internalID string) (*TrackInformation, error) {
	if info, ok := s.store.GetItem(id); ok {
		log.Debugf("%s Cache hit for %s", logcolors.LogTrackInfo, id)
		return &info, nil
	}

	info, err := s.client.Fetch(ctx, internalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load track (%s) information: %w", id, err)
	}
	if err := s.store.SetItem(id, *info); err != nil {
		log.Warnf("%s Failed to cache track information for %s: %v", logcolors.LogTrackInfo, id, err)
	}
	return info, nil
}
