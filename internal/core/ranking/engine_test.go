package ranking

import (
	"context"
	"testing"
	"time"

	"urlfeed/internal/core/feed"
)

// fakeStore implements Store over an in-memory slice, matching the
// teacher's hand-written fake-over-interface testing idiom.
type fakeStore struct {
	records []feed.Record
}

func (f *fakeStore) GetRecentPosts(_ context.Context, hours float64, limit int) ([]feed.Record, error) {
	var out []feed.Record
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))
	for _, r := range f.records {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetPostsByDomain(_ context.Context, host string, limit, offset int) ([]feed.Record, error) {
	var out []feed.Record
	for _, r := range f.records {
		if r.Host == host {
			out = append(out, r)
		}
	}
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func record(uri string, urlID int64, host string, ageHours float64, shareCount, repostCount int) feed.Record {
	now := time.Now()
	return feed.Record{
		PostURI:      uri,
		CreatedAt:    now.Add(-time.Duration(ageHours * float64(time.Hour))),
		RepostCount:  repostCount,
		URL:          "https://" + host + "/x",
		URLID:        urlID,
		Host:         host,
		URLFirstSeen: now.Add(-time.Duration(ageHours * float64(time.Hour))),
		ShareCount:   shareCount,
	}
}

func TestEngine_DecayFavorsNewerURL(t *testing.T) {
	// Scenario 5 from spec: X older with higher share_count still loses to
	// fresher Y with lower share_count once decay is applied.
	store := &fakeStore{records: []feed.Record{
		record("at://post/x", 1, "example.com", 24, 10, 0),
		record("at://post/y", 2, "example.com", 1, 5, 0),
	}}

	e := New(store, DefaultConfig())
	page, err := e.GetFeedSkeleton(context.Background(), "", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.PostURIs) != 2 {
		t.Fatalf("expected 2 posts, got %d: %+v", len(page.PostURIs), page.PostURIs)
	}
	if page.PostURIs[0] != "at://post/y" {
		t.Errorf("expected fresher URL first, got order %v", page.PostURIs)
	}
}

func TestEngine_FiltersByMinShareAndMaxAge(t *testing.T) {
	store := &fakeStore{records: []feed.Record{
		record("at://post/low-share", 1, "example.com", 1, 0, 0), // below min_share_count
		record("at://post/too-old", 2, "example.com", 1000, 5, 0),
		record("at://post/ok", 3, "example.com", 1, 5, 0),
	}}

	e := New(store, DefaultConfig())
	page, err := e.GetFeedSkeleton(context.Background(), "", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.PostURIs) != 1 || page.PostURIs[0] != "at://post/ok" {
		t.Fatalf("expected only the one passing post, got %v", page.PostURIs)
	}
}

func TestEngine_MaxPostsPerURLDedupes(t *testing.T) {
	records := []feed.Record{
		record("at://post/a", 1, "example.com", 1, 5, 0),
		record("at://post/b", 1, "example.com", 1, 5, 0),
		record("at://post/c", 1, "example.com", 1, 5, 0),
	}
	store := &fakeStore{records: records}

	cfg := DefaultConfig()
	cfg.MaxPostsPerURL = 2
	e := New(store, cfg)

	page, err := e.GetFeedSkeleton(context.Background(), "", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.PostURIs) != 2 {
		t.Fatalf("expected dedupe to cap at 2 posts for the same URL, got %v", page.PostURIs)
	}
}

func TestEngine_PaginationRoundTrip(t *testing.T) {
	var records []feed.Record
	for i := 0; i < 15; i++ {
		records = append(records, record(
			"at://post/"+string(rune('a'+i)), int64(i+1), "example.com", float64(i), 10-i%5, 0,
		))
	}
	store := &fakeStore{records: records}

	cfg := DefaultConfig()
	cfg.MaxPostsPerURL = 0
	cfg.ResultsLimit = 5
	e := New(store, cfg)

	var seen []string
	cursor := ""
	for i := 0; i < 3; i++ {
		page, err := e.GetFeedSkeleton(context.Background(), "", 5, cursor)
		if err != nil {
			t.Fatalf("unexpected error on page %d: %v", i, err)
		}
		seen = append(seen, page.PostURIs...)
		cursor = page.Cursor
	}

	if len(seen) != 15 {
		t.Fatalf("expected 15 distinct posts across pages, got %d: %v", len(seen), seen)
	}
	if cursor != "" {
		t.Errorf("expected no cursor after the final page, got %q", cursor)
	}
}

func TestEngine_ReloadConfigSwapsAtomically(t *testing.T) {
	store := &fakeStore{records: []feed.Record{
		record("at://post/a", 1, "example.com", 1, 1, 0),
	}}
	e := New(store, DefaultConfig())

	stricter := DefaultConfig()
	stricter.MinShareCount = 100
	e.ReloadConfig(stricter)

	page, err := e.GetFeedSkeleton(context.Background(), "", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.PostURIs) != 0 {
		t.Errorf("expected reloaded config to filter out the low-share post, got %v", page.PostURIs)
	}
}
