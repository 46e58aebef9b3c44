package ranking

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"urlfeed/internal/core/feed"
)

// overreadFactor is the "generous over-read" multiplier spec §4.6 step 1
// asks for, to tolerate post-filter attrition.
const overreadFactor = 5

// Store is the narrow read surface the ranking engine needs from storage.
// Implemented by *postgres.Storage; kept as an interface here so the
// engine can be tested against a fake, matching the teacher's
// Repository-interface pattern (e.g. communities.Repository).
type Store interface {
	GetRecentPosts(ctx context.Context, hours float64, limit int) ([]feed.Record, error)
	GetPostsByDomain(ctx context.Context, host string, limit, offset int) ([]feed.Record, error)
}

// Engine scores, filters, sorts, dedupes, and paginates candidate posts.
// It is stateless per call aside from its swappable Config.
type Engine struct {
	store Store

	mu  sync.RWMutex
	cfg Config
}

// New creates an Engine with the given store and initial configuration.
func New(store Store, cfg Config) *Engine {
	return &Engine{store: store, cfg: cfg}
}

// ReloadConfig atomically swaps the engine's configuration.
func (e *Engine) ReloadConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

func (e *Engine) config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// scored pairs a candidate Record with its computed rank score.
type scored struct {
	feed.Record
	score float64
}

// Score computes spec §4.6's decay score for a single record at time now.
func Score(r feed.Record, cfg Config, now time.Time) float64 {
	ageHours := now.Sub(r.URLFirstSeen).Hours()
	repostFactor := math.Pow(math.Max(1, float64(r.RepostCount)), cfg.RepostWeight)
	return repostFactor * float64(r.ShareCount) * math.Exp(-cfg.DecayRate*ageHours)
}

// Page is one page of ranked post URIs plus an optional opaque cursor for
// the next page.
type Page struct {
	PostURIs []string
	Cursor   string
}

// GetFeedSkeleton computes the ranked, paginated feed. host, if non-empty,
// restricts candidates to that domain (the additive `domain` query param);
// otherwise candidates are drawn from the recent window.
func (e *Engine) GetFeedSkeleton(ctx context.Context, host string, limit int, cursor string) (Page, error) {
	cfg := e.config()
	now := time.Now()

	ranked, err := e.rank(ctx, host, cfg, now)
	if err != nil {
		return Page{}, err
	}

	start := 0
	if cursor != "" {
		if cur, ok := decodeCursor(cursor); ok {
			start = advancePast(ranked, cur)
		}
	}

	end := start + limit
	var next string
	if end < len(ranked) {
		next = encodeCursor(cursorToken{Score: ranked[end-1].score, URI: ranked[end-1].PostURI})
	} else {
		end = len(ranked)
	}

	uris := make([]string, 0, end-start)
	for _, r := range ranked[start:end] {
		uris = append(uris, r.PostURI)
	}
	return Page{PostURIs: uris, Cursor: next}, nil
}

// rank performs steps 1–4 of spec §4.6's algorithm: fetch with over-read,
// filter, score, sort, and per-URL dedupe. It does not truncate to the
// requested limit — callers paginate over the full ranked slice.
func (e *Engine) rank(ctx context.Context, host string, cfg Config, now time.Time) ([]scored, error) {
	overread := cfg.ResultsLimit * overreadFactor
	if overread < cfg.ResultsLimit {
		overread = cfg.ResultsLimit
	}

	var candidates []feed.Record
	var err error
	if host != "" {
		candidates, err = e.store.GetPostsByDomain(ctx, host, overread, 0)
	} else {
		candidates, err = e.store.GetRecentPosts(ctx, cfg.MaxAgeHours, overread)
	}
	if err != nil {
		return nil, err
	}

	filtered := make([]scored, 0, len(candidates))
	for _, r := range candidates {
		ageHours := now.Sub(r.URLFirstSeen).Hours()
		if ageHours > cfg.MaxAgeHours {
			continue
		}
		if r.ShareCount < cfg.MinShareCount {
			continue
		}
		if r.RepostCount < cfg.MinRepostCount {
			continue
		}
		filtered = append(filtered, scored{Record: r, score: Score(r, cfg, now)})
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].score != filtered[j].score {
			return filtered[i].score > filtered[j].score
		}
		return filtered[i].PostURI < filtered[j].PostURI
	})

	if cfg.MaxPostsPerURL <= 0 {
		return filtered, nil
	}

	perURL := make(map[int64]int)
	out := make([]scored, 0, len(filtered))
	for _, s := range filtered {
		if perURL[s.URLID] >= cfg.MaxPostsPerURL {
			continue
		}
		perURL[s.URLID]++
		out = append(out, s)
	}
	return out, nil
}

// advancePast implements spec §4.6's identity-match-advance then
// score-lexicographic-skip fallback.
func advancePast(ranked []scored, cur cursorToken) int {
	for i, s := range ranked {
		if s.PostURI == cur.URI && math.Abs(s.score-cur.Score) < 1e-4 {
			return i + 1
		}
	}
	for i, s := range ranked {
		if s.score < cur.Score-1e-4 {
			return i
		}
		if math.Abs(s.score-cur.Score) < 1e-4 && s.PostURI > cur.URI {
			return i
		}
	}
	return len(ranked)
}
