// Package postgres implements the durable store described in spec §4.3 on
// top of database/sql and lib/pq: posts, urls, and the post_urls junction,
// with share/repost counters and the invariants in spec §3.
//
// Grounded on the teacher's transaction idiom in vote_repo.go /
// post_repo.go (upsert-or-reject on a natural key). Duplicate keys are
// detected with ON CONFLICT clauses and affected-row counts, not by
// inspecting driver error text.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"urlfeed/internal/core/feed"
)

// Storage is the PostgreSQL-backed implementation of the storage contract
// in spec §4.3. It is safe for concurrent use; the underlying *sql.DB pool
// serializes individual operations as single transactions.
type Storage struct {
	db *sql.DB
}

// New wraps an already-open, already-migrated *sql.DB.
func New(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Initialize applies pool-level settings equivalent to the source's SQLite
// WAL/page-cache pragmas: a bounded connection pool and a relaxed-but-safe
// commit mode, since schema creation itself is handled by goose migrations
// run before the server starts. The pool limits apply to every connection;
// the synchronous_commit setting is a session-level SET issued once through
// the pool, so it applies only to the one connection that ran it.
func (s *Storage) Initialize(ctx context.Context) error {
	s.db.SetMaxOpenConns(20)
	s.db.SetMaxIdleConns(10)
	s.db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := s.db.ExecContext(ctx, "SET synchronous_commit = 'off'"); err != nil {
		return fmt.Errorf("postgres: set synchronous_commit: %w", err)
	}
	return s.db.PingContext(ctx)
}

// AddPost upserts the post's URL, then inserts the Post and its Link in one
// transaction. It returns true if the Post was newly inserted, false if the
// Post key already existed — in which case the whole transaction, including
// the URL share-count increment, is rolled back so I2 (share_count counts
// only accepted sightings) holds.
func (s *Storage) AddPost(ctx context.Context, post feed.NewPost) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("postgres: begin add_post tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	urlID, err := upsertURL(ctx, tx, post.NormalizedURL, post.Host)
	if err != nil {
		return false, fmt.Errorf("postgres: upsert url: %w", err)
	}

	isNew, err := insertPost(ctx, tx, post)
	if err != nil {
		return false, fmt.Errorf("postgres: insert post: %w", err)
	}
	if !isNew {
		return false, nil
	}

	if err := insertLink(ctx, tx, post.URI, urlID); err != nil {
		return false, fmt.Errorf("postgres: insert link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("postgres: commit add_post tx: %w", err)
	}
	return true, nil
}

// AddPostsBatch inserts each post in one transaction, using a SAVEPOINT per
// item so a duplicate Post key skips only that item (rolled back to the
// savepoint) rather than aborting the batch. Any other failure aborts the
// whole batch and returns an error; the caller (the batch writer) drops the
// batch and logs.
func (s *Storage) AddPostsBatch(ctx context.Context, posts []feed.NewPost) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var inserted int
	for i, post := range posts {
		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			return inserted, fmt.Errorf("postgres: create savepoint: %w", err)
		}

		urlID, err := upsertURL(ctx, tx, post.NormalizedURL, post.Host)
		if err != nil {
			return inserted, fmt.Errorf("postgres: upsert url in batch: %w", err)
		}

		isNew, err := insertPost(ctx, tx, post)
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert post in batch: %w", err)
		}
		if !isNew {
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); err != nil {
				return inserted, fmt.Errorf("postgres: rollback to savepoint: %w", err)
			}
			continue
		}

		if err := insertLink(ctx, tx, post.URI, urlID); err != nil {
			return inserted, fmt.Errorf("postgres: insert link in batch: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return inserted, fmt.Errorf("postgres: release savepoint: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("postgres: commit batch tx: %w", err)
	}
	return inserted, nil
}

// upsertURL creates the URL row with share_count 1, or increments the
// existing row's share_count, returning the row's id either way.
func upsertURL(ctx context.Context, tx *sql.Tx, normalizedURL, host string) (int64, error) {
	const query = `
		INSERT INTO urls (url, host, share_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (url) DO UPDATE SET share_count = urls.share_count + 1
		RETURNING id
	`
	var id int64
	if err := tx.QueryRowContext(ctx, query, normalizedURL, host).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// insertPost inserts the post row, silently skipping on a duplicate URI.
// Returns true if the row was newly inserted.
func insertPost(ctx context.Context, tx *sql.Tx, post feed.NewPost) (bool, error) {
	const query = `
		INSERT INTO posts (uri, cid, author_did, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uri) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, query, post.URI, post.CID, post.AuthorDID, post.Text, post.CreatedAt)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func insertLink(ctx context.Context, tx *sql.Tx, postURI string, urlID int64) error {
	const query = `INSERT INTO post_urls (post_uri, url_id) VALUES ($1, $2)`
	_, err := tx.ExecContext(ctx, query, postURI, urlID)
	return err
}

// IncrementRepostCount best-effort increments the Post's repost counter.
// It returns false without error if the Post does not exist.
func (s *Storage) IncrementRepostCount(ctx context.Context, postURI string) (bool, error) {
	const query = `UPDATE posts SET repost_count = repost_count + 1 WHERE uri = $1`
	res, err := s.db.ExecContext(ctx, query, postURI)
	if err != nil {
		return false, fmt.Errorf("postgres: increment repost count: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: read rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeletePostsInPeriod deletes Posts with created_at in the half-open
// interval [start, end). Either bound may be nil for unbounded; both nil is
// a no-op. Cascades to post_urls via the foreign key; does not touch urls.
func (s *Storage) DeletePostsInPeriod(ctx context.Context, start, end *time.Time) (int64, error) {
	if start == nil && end == nil {
		return 0, nil
	}

	var conditions []string
	var args []interface{}
	if start != nil {
		args = append(args, *start)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := "DELETE FROM posts WHERE " + strings.Join(conditions, " AND ")
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete posts in period: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOldPosts deletes Posts older than the given number of days.
func (s *Storage) DeleteOldPosts(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	return s.DeletePostsInPeriod(ctx, nil, &cutoff)
}

// CleanupOrphanedURLs deletes URL rows with no remaining Link.
func (s *Storage) CleanupOrphanedURLs(ctx context.Context) (int64, error) {
	const query = `
		DELETE FROM urls
		WHERE NOT EXISTS (SELECT 1 FROM post_urls WHERE post_urls.url_id = urls.id)
	`
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("postgres: cleanup orphaned urls: %w", err)
	}
	return res.RowsAffected()
}

const recordSelect = `
	SELECT
		p.uri, p.cid, p.author_did, p.text, p.created_at, p.indexed_at, p.repost_count,
		u.url, u.id, u.host, u.first_seen, u.share_count
	FROM posts p
	JOIN post_urls pu ON pu.post_uri = p.uri
	JOIN urls u ON u.id = pu.url_id
`

func scanRecord(row interface{ Scan(dest ...interface{}) error }) (feed.Record, error) {
	var r feed.Record
	err := row.Scan(
		&r.PostURI, &r.CID, &r.AuthorDID, &r.Text, &r.CreatedAt, &r.IndexedAt, &r.RepostCount,
		&r.URL, &r.URLID, &r.Host, &r.URLFirstSeen, &r.ShareCount,
	)
	return r, err
}

// GetPost returns the flat Post+URL projection for a single AT-URI.
func (s *Storage) GetPost(ctx context.Context, uri string) (feed.Record, error) {
	row := s.db.QueryRowContext(ctx, recordSelect+" WHERE p.uri = $1", uri)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return feed.Record{}, feed.ErrNotFound
	}
	if err != nil {
		return feed.Record{}, fmt.Errorf("postgres: get post: %w", err)
	}
	return r, nil
}

// GetURL returns the URL row for a normalized URL string.
func (s *Storage) GetURL(ctx context.Context, normalizedURL string) (feed.URL, error) {
	const query = `SELECT id, url, host, first_seen, share_count FROM urls WHERE url = $1`
	var u feed.URL
	err := s.db.QueryRowContext(ctx, query, normalizedURL).Scan(&u.ID, &u.URL, &u.Host, &u.FirstSeen, &u.ShareCount)
	if err == sql.ErrNoRows {
		return feed.URL{}, feed.ErrNotFound
	}
	if err != nil {
		return feed.URL{}, fmt.Errorf("postgres: get url: %w", err)
	}
	return u, nil
}

// GetURLShareCount returns the share_count of a single normalized URL.
func (s *Storage) GetURLShareCount(ctx context.Context, normalizedURL string) (int, error) {
	u, err := s.GetURL(ctx, normalizedURL)
	if err != nil {
		return 0, err
	}
	return u.ShareCount, nil
}

// GetPostsByDomain returns Post+URL projections for a given host, most
// recent first, paginated with limit/offset.
func (s *Storage) GetPostsByDomain(ctx context.Context, host string, limit, offset int) ([]feed.Record, error) {
	query := recordSelect + " WHERE u.host = $1 ORDER BY p.created_at DESC LIMIT $2 OFFSET $3"
	rows, err := s.db.QueryContext(ctx, query, host, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: get posts by domain: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// GetRecentPosts returns Post+URL projections created within the last
// `hours` hours, most recent first, truncated to limit.
func (s *Storage) GetRecentPosts(ctx context.Context, hours float64, limit int) ([]feed.Record, error) {
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))
	query := recordSelect + " WHERE p.created_at >= $1 ORDER BY p.created_at DESC LIMIT $2"
	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: get recent posts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]feed.Record, error) {
	var out []feed.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStats aggregates counters across posts and urls, matching the
// original implementation's extended get_stats (post/url/link counts,
// average share count, total reposts) beyond the bare counters the
// distilled contract names.
func (s *Storage) GetStats(ctx context.Context) (feed.Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM posts) AS post_count,
			(SELECT COUNT(*) FROM urls) AS url_count,
			(SELECT COUNT(*) FROM post_urls) AS link_count,
			(SELECT COALESCE(AVG(share_count), 0) FROM urls) AS average_share,
			(SELECT COALESCE(SUM(repost_count), 0) FROM posts) AS total_reposts
	`
	var stats feed.Stats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.PostCount, &stats.URLCount, &stats.LinkCount, &stats.AverageShare, &stats.TotalRepostCount,
	)
	if err != nil {
		return feed.Stats{}, fmt.Errorf("postgres: get stats: %w", err)
	}
	return stats, nil
}
