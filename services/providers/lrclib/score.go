package lrclib

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Composite score weights. Track name dominates, artist second, duration is a
// sanity check and album a tiebreaker.
const (
	trackWeight    = 4.0
	artistWeight   = 3.0
	durationWeight = 2.0
	albumWeight    = 1.0
	syncedBonus    = 0.5

	// Candidates further than this from the track duration are never accepted.
	maxDurationDelta = 15.0
)

var (
	featParenRegex   = regexp.MustCompile(`\(feat\..*?\)`)
	featBracketRegex = regexp.MustCompile(`\[feat\..*?\]`)
	ftParenRegex     = regexp.MustCompile(`\(ft\..*?\)`)
	ftBracketRegex   = regexp.MustCompile(`\[ft\..*?\]`)
	remasterRegex    = regexp.MustCompile(`\s-\s.*remaster.*`)
	nonAlnumRegex    = regexp.MustCompile(`[^a-z0-9]`)

	artistSplitRegex = regexp.MustCompile(`(?i)[,&]| x | feat\. | ft\. `)
)

// Normalize lowercases s and strips featuring credits, remaster suffixes and
// everything outside [a-z0-9].
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = featParenRegex.ReplaceAllString(s, "")
	s = featBracketRegex.ReplaceAllString(s, "")
	s = ftParenRegex.ReplaceAllString(s, "")
	s = ftBracketRegex.ReplaceAllString(s, "")
	s = remasterRegex.ReplaceAllString(s, "")
	return nonAlnumRegex.ReplaceAllString(s, "")
}

// Similarity returns 1 - levenshtein/len(longer) in [0, 1]. Two empty strings
// are identical.
func Similarity(a, b string) float64 {
	longer := len([]rune(a))
	if n := len([]rune(b)); n > longer {
		longer = n
	}
	if longer == 0 {
		return 1.0
	}
	return float64(longer-fuzzy.LevenshteinDistance(a, b)) / float64(longer)
}

// ArtistSimilarity compares two artist credits. A close direct match wins
// outright; otherwise both credits are split into individual artists and the
// best pairwise match counts, so "A & B" still matches "B".
func ArtistSimilarity(a, b string) float64 {
	direct := Similarity(Normalize(a), Normalize(b))
	if direct > 0.8 {
		return direct
	}

	tokensA := artistTokens(a)
	tokensB := artistTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	best := 0.0
	for _, ta := range tokensA {
		for _, tb := range tokensB {
			if sim := Similarity(ta, tb); sim > best {
				best = sim
			}
		}
	}
	return math.Max(direct, best)
}

func artistTokens(s string) []string {
	var tokens []string
	for _, part := range artistSplitRegex.Split(s, -1) {
		if n := Normalize(part); n != "" {
			tokens = append(tokens, n)
		}
	}
	return tokens
}

// DurationScore maps a duration difference in seconds onto a step score.
func DurationScore(delta float64) float64 {
	switch {
	case delta <= 2:
		return 1.0
	case delta <= 5:
		return 0.8
	case delta <= 10:
		return 0.5
	default:
		return 0
	}
}

// CompositeScore combines the component similarities into one ranking value.
// It is non-decreasing in every component.
func CompositeScore(trackSim, artistSim, durationScore, albumSim float64, synced bool) float64 {
	score := trackSim*trackWeight + artistSim*artistWeight + durationScore*durationWeight + albumSim*albumWeight
	if synced {
		score += syncedBonus
	}
	return score
}

// MatchCandidate is a search result scored against the wanted track.
type MatchCandidate struct {
	Record           Record
	TrackSimilarity  float64
	ArtistSimilarity float64
	AlbumSimilarity  float64
	DurationDelta    float64
	HasTimedLyrics   bool
	Score            float64
}

// Accepted reports whether the candidate is close enough to use: the durations
// must be within 15 seconds and the names must agree on one of three
// track/artist/album combinations.
func (c MatchCandidate) Accepted() bool {
	if c.DurationDelta >= maxDurationDelta {
		return false
	}
	return (c.TrackSimilarity > 0.8 && c.ArtistSimilarity > 0.7) ||
		(c.TrackSimilarity > 0.9 && c.ArtistSimilarity > 0.5) ||
		(c.TrackSimilarity > 0.9 && c.AlbumSimilarity > 0.8)
}

// ScoreRecord scores one search result against the query.
func ScoreRecord(q Query, r Record) MatchCandidate {
	c := MatchCandidate{
		Record:           r,
		TrackSimilarity:  Similarity(Normalize(q.TrackName), Normalize(r.TrackName)),
		ArtistSimilarity: ArtistSimilarity(q.ArtistName, r.ArtistName),
		AlbumSimilarity:  Similarity(Normalize(q.AlbumName), Normalize(r.AlbumName)),
		DurationDelta:    math.Abs(r.Duration - q.Duration),
		HasTimedLyrics:   r.HasSyncedLyrics(),
	}
	c.Score = CompositeScore(c.TrackSimilarity, c.ArtistSimilarity, DurationScore(c.DurationDelta), c.AlbumSimilarity, c.HasTimedLyrics)
	return c
}

// Rank scores every record and orders them best first. Ties keep input order.
func Rank(q Query, records []Record) []MatchCandidate {
	candidates := make([]MatchCandidate, len(records))
	for i, r := range records {
		candidates[i] = ScoreRecord(q, r)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
