// Package feed defines the entities shared by storage, ingestion, and ranking:
// Post, URL, and the Link that associates them.
package feed

import "time"

// Post is a single accepted social-network record referencing exactly one
// tracked URL. Identity is the AT-URI.
type Post struct {
	URI         string
	CID         string
	AuthorDID   string
	Text        *string
	CreatedAt   time.Time
	IndexedAt   time.Time
	RepostCount int
}

// URL is a normalized absolute URL observed in at least one accepted post.
type URL struct {
	ID         int64
	URL        string
	Host       string
	FirstSeen  time.Time
	ShareCount int
}

// Link associates a Post with the URL it carries.
type Link struct {
	PostURI  string
	URLID    int64
	SharedAt time.Time
}

// NewPost is the input to Storage.AddPost / Storage.AddPostsBatch: the
// fields known at ingestion time, before the URL row exists.
type NewPost struct {
	URI           string
	CID           string
	AuthorDID     string
	Text          *string
	CreatedAt     time.Time
	NormalizedURL string
	Host          string
}

// Record is the flat projection Storage read methods return: a Post joined
// with its single URL, matching §4.3's "always join Post with its single
// URL and return a flat dictionary including url_first_seen".
type Record struct {
	PostURI      string
	CID          string
	AuthorDID    string
	Text         *string
	CreatedAt    time.Time
	IndexedAt    time.Time
	RepostCount  int
	URL          string
	URLID        int64
	Host         string
	URLFirstSeen time.Time
	ShareCount   int
}

// Stats is the aggregate counters exposed by Storage.GetStats and echoed by
// the feed service's /stats endpoint.
type Stats struct {
	PostCount        int64
	URLCount         int64
	LinkCount        int64
	AverageShare     float64
	TotalRepostCount int64
}
