package firehose

import "sync/atomic"

// Stats is the running counter set spec §4.5 requires: posts seen, posts
// with links, posts accepted, reposts seen, reposts applied, errors,
// dropped, batches flushed, posts flushed. All fields are updated with
// atomic ops, matching the teacher's lock-free consumer-counter idiom
// (spec §5: "Consumer counters: incremented without locks; readers accept
// eventual consistency").
type Stats struct {
	PostsSeen       int64
	PostsWithLinks  int64
	PostsAccepted   int64
	RepostsSeen     int64
	RepostsApplied  int64
	Errors          int64
	Dropped         int64
	BatchesFlushed  int64
	PostsFlushed    int64

	// Skip-reason sub-counters, supplementing the bare "dropped" field per
	// original_source/src/firehose.py's stats-summary breakdown.
	SkippedNoEmbed         int64
	SkippedWrongEmbedType  int64
	SkippedFilteredDomain  int64
	SkippedNormalizeFailed int64
}

func (s *Stats) incPostsSeen()      { atomic.AddInt64(&s.PostsSeen, 1) }
func (s *Stats) incPostsWithLinks() { atomic.AddInt64(&s.PostsWithLinks, 1) }
func (s *Stats) incPostsAccepted()  { atomic.AddInt64(&s.PostsAccepted, 1) }
func (s *Stats) incRepostsSeen()    { atomic.AddInt64(&s.RepostsSeen, 1) }
func (s *Stats) incRepostsApplied() { atomic.AddInt64(&s.RepostsApplied, 1) }
func (s *Stats) incErrors()         { atomic.AddInt64(&s.Errors, 1) }
func (s *Stats) incDropped()        { atomic.AddInt64(&s.Dropped, 1) }
func (s *Stats) incBatchesFlushed() { atomic.AddInt64(&s.BatchesFlushed, 1) }
func (s *Stats) addPostsFlushed(n int64) { atomic.AddInt64(&s.PostsFlushed, n) }

// RecordFlush updates the batches-flushed/posts-flushed counters. It is the
// exported hook batchwriter.Writer.OnFlush calls into, since the batch
// writer package itself has no dependency on firehose.Stats.
func (s *Stats) RecordFlush(n int) {
	s.incBatchesFlushed()
	s.addPostsFlushed(int64(n))
}

func (s *Stats) incSkippedNoEmbed()         { atomic.AddInt64(&s.SkippedNoEmbed, 1) }
func (s *Stats) incSkippedWrongEmbedType()  { atomic.AddInt64(&s.SkippedWrongEmbedType, 1) }
func (s *Stats) incSkippedFilteredDomain()  { atomic.AddInt64(&s.SkippedFilteredDomain, 1) }
func (s *Stats) incSkippedNormalizeFailed() { atomic.AddInt64(&s.SkippedNormalizeFailed, 1) }

// Snapshot returns a copy of the counters for reporting (the periodic
// throughput summary). Atomic loads, not a lock, since readers
// accept eventual consistency per spec §5.
func (s *Stats) Snapshot() Stats {
	return Stats{
		PostsSeen:              atomic.LoadInt64(&s.PostsSeen),
		PostsWithLinks:         atomic.LoadInt64(&s.PostsWithLinks),
		PostsAccepted:          atomic.LoadInt64(&s.PostsAccepted),
		RepostsSeen:            atomic.LoadInt64(&s.RepostsSeen),
		RepostsApplied:         atomic.LoadInt64(&s.RepostsApplied),
		Errors:                 atomic.LoadInt64(&s.Errors),
		Dropped:                atomic.LoadInt64(&s.Dropped),
		BatchesFlushed:         atomic.LoadInt64(&s.BatchesFlushed),
		PostsFlushed:           atomic.LoadInt64(&s.PostsFlushed),
		SkippedNoEmbed:         atomic.LoadInt64(&s.SkippedNoEmbed),
		SkippedWrongEmbedType:  atomic.LoadInt64(&s.SkippedWrongEmbedType),
		SkippedFilteredDomain:  atomic.LoadInt64(&s.SkippedFilteredDomain),
		SkippedNormalizeFailed: atomic.LoadInt64(&s.SkippedNormalizeFailed),
	}
}
