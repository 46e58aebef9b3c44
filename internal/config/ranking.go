package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// RankingDocument is the on-disk shape of the ranking tuning file (spec
// §4.6). Every field is a pointer so that a field absent from the JSON
// decodes to nil ("unset") rather than the Go zero value; callers overlay
// the document onto a set of defaults rather than using it directly.
type RankingDocument struct {
	DecayRate      *float64 `json:"decay_rate,omitempty"`
	MaxAgeHours    *float64 `json:"max_age_hours,omitempty"`
	MinShareCount  *int     `json:"min_share_count,omitempty"`
	MinRepostCount *int     `json:"min_repost_count,omitempty"`
	RepostWeight   *float64 `json:"repost_weight,omitempty"`
	ResultsLimit   *int     `json:"results_limit,omitempty"`
	MaxPostsPerURL *int     `json:"max_posts_per_url,omitempty"`
}

// LoadRanking reads and parses a ranking tuning document from path.
func LoadRanking(path string) (RankingDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RankingDocument{}, fmt.Errorf("config: read ranking file %q: %w", path, err)
	}
	var doc RankingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return RankingDocument{}, fmt.Errorf("config: parse ranking file %q: %w", path, err)
	}
	return doc, nil
}
