// Package ranking implements the time-decay scoring and cursor pagination
// described in spec §4.6: score candidates from Storage, filter, sort,
// dedupe per URL, and paginate via an opaque cursor.
package ranking

import "urlfeed/internal/config"

// Config holds the recognized ranking options and their defaults (spec
// §4.6). MaxPostsPerURL of 0 means unlimited.
type Config struct {
	DecayRate      float64
	MaxAgeHours    float64
	MinShareCount  int
	MinRepostCount int
	RepostWeight   float64
	ResultsLimit   int
	MaxPostsPerURL int
}

// DefaultConfig returns spec §4.6's defaults.
func DefaultConfig() Config {
	return Config{
		DecayRate:      0.05,
		MaxAgeHours:    72,
		MinShareCount:  1,
		MinRepostCount: 0,
		RepostWeight:   1.0,
		ResultsLimit:   50,
		MaxPostsPerURL: 2,
	}
}

// ApplyDocument overlays a parsed ranking.json document onto the receiver,
// leaving fields the document omits untouched. Used for startup config
// loading and for atomic reload_config swaps (spec §4.6's "the engine
// itself is stateless per call; reload_config atomically swaps its
// configuration").
func (c Config) ApplyDocument(doc config.RankingDocument) Config {
	if doc.DecayRate != nil {
		c.DecayRate = *doc.DecayRate
	}
	if doc.MaxAgeHours != nil {
		c.MaxAgeHours = *doc.MaxAgeHours
	}
	if doc.MinShareCount != nil {
		c.MinShareCount = *doc.MinShareCount
	}
	if doc.MinRepostCount != nil {
		c.MinRepostCount = *doc.MinRepostCount
	}
	if doc.RepostWeight != nil {
		c.RepostWeight = *doc.RepostWeight
	}
	if doc.ResultsLimit != nil {
		c.ResultsLimit = *doc.ResultsLimit
	}
	if doc.MaxPostsPerURL != nil {
		c.MaxPostsPerURL = *doc.MaxPostsPerURL
	}
	return c
}
