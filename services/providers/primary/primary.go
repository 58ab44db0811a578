package primary

import (
	"context"

	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/services/providers"
)

// ProviderName is the identifier for the primary lyrics service
const ProviderName = "primary"

// PrimaryProvider implements providers.Provider for the lyrics service.
type PrimaryProvider struct {
	client *Client
}

func NewProvider(client *Client) *PrimaryProvider {
	return &PrimaryProvider{client: client}
}

func (p *PrimaryProvider) Name() string {
	return ProviderName
}

func (p *PrimaryProvider) FetchLyrics(ctx context.Context, req providers.Request) (lyrics.Lyrics, error) {
	if req.TrackID == "" {
		return nil, providers.NewProviderError(ProviderName, "track id is required", nil)
	}
	l, err := p.client.FetchLyrics(ctx, req.TrackID)
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "fetch failed", err)
	}
	return l, nil
}
