package middleware

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tier selects which of a client's limiters a request draws from.
type Tier int

const (
	// TierPlayer covers the host player's state pushes, which are frequent.
	TierPlayer Tier = iota
	// TierAPI covers everything else.
	TierAPI
)

func (t Tier) String() string {
	if t == TierPlayer {
		return "player"
	}
	return "api"
}

// LimiterPair holds both tiers for one client address.
type LimiterPair struct {
	Player   *rate.Limiter
	API      *rate.Limiter
	lastSeen time.Time
}

func (lp *LimiterPair) limiter(t Tier) *rate.Limiter {
	if t == TierPlayer {
		return lp.Player
	}
	return lp.API
}

// IPRateLimiter keeps a two-tier limiter per client address.
type IPRateLimiter struct {
	mu          sync.Mutex
	ips         map[string]*LimiterPair
	playerRate  rate.Limit
	playerBurst int
	apiRate     rate.Limit
	apiBurst    int
	now         func() time.Time
}

func NewIPRateLimiter(playerRate rate.Limit, playerBurst int, apiRate rate.Limit, apiBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:         make(map[string]*LimiterPair),
		playerRate:  playerRate,
		playerBurst: playerBurst,
		apiRate:     apiRate,
		apiBurst:    apiBurst,
		now:         time.Now,
	}
}

// GetLimiter returns the limiters for ip, creating them on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()

	pair, ok := i.ips[ip]
	if !ok {
		pair = &LimiterPair{
			Player: rate.NewLimiter(i.playerRate, i.playerBurst),
			API:    rate.NewLimiter(i.apiRate, i.apiBurst),
		}
		i.ips[ip] = pair
	}
	pair.lastSeen = i.now()
	return pair
}

// Allow takes one token from ip's limiter for tier and returns the whole
// tokens left afterwards.
func (i *IPRateLimiter) Allow(ip string, tier Tier) (bool, int) {
	l := i.GetLimiter(ip).limiter(tier)
	ok := l.Allow()
	return ok, int(math.Max(0, math.Floor(l.Tokens())))
}

// Limit returns the burst size of tier.
func (i *IPRateLimiter) Limit(tier Tier) int {
	if tier == TierPlayer {
		return i.playerBurst
	}
	return i.apiBurst
}

// Cleanup forgets clients that have not been seen for maxIdle and returns how
// many were removed.
func (i *IPRateLimiter) Cleanup(maxIdle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := i.now().Add(-maxIdle)
	removed := 0
	for ip, pair := range i.ips {
		if pair.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}
