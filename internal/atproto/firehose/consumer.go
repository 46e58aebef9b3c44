package firehose

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"urlfeed/internal/core/domainfilter"
	"urlfeed/internal/core/feed"
	"urlfeed/internal/core/ingest/batchwriter"
	"urlfeed/internal/core/urlnorm"
)

// RepostIncrementer is the narrow storage surface the consumer needs for
// direct (unbatched) repost handling, per spec §4.5 step 4.
type RepostIncrementer interface {
	IncrementRepostCount(ctx context.Context, postURI string) (bool, error)
}

// summaryInterval is the fixed wall-clock interval spec §4.5 requires for
// the throughput summary log line.
const summaryInterval = 5 * time.Minute

// Consumer implements spec §4.5: it fans out one goroutine per commit
// operation (the fire-and-forget concurrency model spec §9 resolves the
// Open Question toward), normalizes and filters post records, enqueues
// accepted posts into the batch writer, and applies repost increments
// directly against storage.
type Consumer struct {
	filter        *domainfilter.Filter
	writer        *batchwriter.Writer
	storage       RepostIncrementer
	stripTracking bool

	Stats Stats

	promPostsAccepted prometheus.Counter
	promRepostsApplied prometheus.Counter
	promErrors        prometheus.Counter
}

// NewConsumer wires a Consumer against the given domain filter, batch
// writer, and storage (for repost increments). Prometheus counters are
// registered against a private registry — this rewrite does not expose a
// public /metrics scrape endpoint (out of scope per spec.md's Non-goals on
// cross-process clustering/external metrics). The in-process Stats counters
// feed the periodic throughput summary; no HTTP endpoint reads them.
func NewConsumer(filter *domainfilter.Filter, writer *batchwriter.Writer, storage RepostIncrementer, stripTracking bool) *Consumer {
	c := &Consumer{
		filter:        filter,
		writer:        writer,
		storage:       storage,
		stripTracking: stripTracking,
		promPostsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfeed_firehose_posts_accepted_total",
			Help: "Posts accepted into the batch writer.",
		}),
		promRepostsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfeed_firehose_reposts_applied_total",
			Help: "Repost increments applied to storage.",
		}),
		promErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfeed_firehose_errors_total",
			Help: "Per-message processing errors.",
		}),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(c.promPostsAccepted, c.promRepostsApplied, c.promErrors)
	return c
}

// HandleMessage decodes one raw websocket frame and, if it is a commit,
// spawns a detached worker per operation. Non-commit variants (info,
// error, etc.) are ignored, matching spec §4.5's input model.
func (c *Consumer) HandleMessage(ctx context.Context, raw []byte) {
	h, body, err := splitFrame(raw)
	if err != nil {
		c.Stats.incErrors()
		c.promErrors.Inc()
		log.Printf("firehose: malformed frame: %v", err)
		return
	}
	if !h.isCommit() {
		return
	}

	cm, err := decodeCommit(body)
	if err != nil {
		c.Stats.incErrors()
		c.promErrors.Inc()
		log.Printf("firehose: malformed commit: %v", err)
		return
	}

	for _, op := range cm.Ops {
		op := op
		go c.handleOp(ctx, cm, op)
	}
}

// handleOp processes a single commit operation. Per-message exceptions
// (here, errors) are caught, counted, and discarded — the firehose read
// loop never dies from a record-level error (spec §4.5's failure
// semantics).
func (c *Consumer) handleOp(ctx context.Context, cm commit, op commitOp) {
	defer func() {
		if r := recover(); r != nil {
			c.Stats.incErrors()
			c.promErrors.Inc()
			log.Printf("firehose: recovered panic processing op %s: %v", op.Path, r)
		}
	}()

	if op.Action != "create" {
		return
	}

	switch op.collection() {
	case postCollection:
		c.handlePostCreate(ctx, cm, op)
	case repostCollection:
		c.handleRepostCreate(ctx, cm, op)
	}
}

func (c *Consumer) handlePostCreate(ctx context.Context, cm commit, op commitOp) {
	c.Stats.incPostsSeen()

	recBytes, err := loadRecordBytes(cm.Blocks)
	if err != nil {
		c.Stats.incDropped()
		log.Printf("firehose: debug: could not load record block for %s: %v", op.Path, err)
		return
	}

	d := newDecoder(recBytes)
	v, err := d.decodeValue()
	if err != nil {
		c.Stats.incDropped()
		log.Printf("firehose: debug: malformed record for %s: %v", op.Path, err)
		return
	}
	rec, ok := v.(map[string]interface{})
	if !ok {
		c.Stats.incDropped()
		return
	}

	if !isLinkBearing(rec) {
		c.Stats.incDropped()
		c.Stats.incSkippedNoEmbed()
		return
	}
	c.Stats.incPostsWithLinks()

	rawURL, ok := extractExternalURL(rec)
	if !ok {
		c.Stats.incDropped()
		c.Stats.incSkippedWrongEmbedType()
		return
	}

	normalized, err := urlnorm.Normalize(rawURL, c.stripTracking)
	if err != nil {
		c.Stats.incDropped()
		c.Stats.incSkippedNormalizeFailed()
		return
	}

	if !c.filter.Allows(normalized.Host) {
		c.Stats.incDropped()
		c.Stats.incSkippedFilteredDomain()
		return
	}

	uri, err := buildATURI(cm.Repo, op.Path)
	if err != nil {
		c.Stats.incDropped()
		log.Printf("firehose: debug: %v", err)
		return
	}

	var text *string
	if t, ok := rec["text"].(string); ok && t != "" {
		text = &t
	}

	post := feed.NewPost{
		URI:           uri,
		CID:           op.CID,
		AuthorDID:     cm.Repo,
		Text:          text,
		CreatedAt:     parseRecordTime(rec, cm.Time),
		NormalizedURL: normalized.URL,
		Host:          normalized.Host,
	}

	c.writer.Enqueue(ctx, post)
	c.Stats.incPostsAccepted()
	c.promPostsAccepted.Inc()
}

func (c *Consumer) handleRepostCreate(ctx context.Context, cm commit, op commitOp) {
	c.Stats.incRepostsSeen()

	recBytes, err := loadRecordBytes(cm.Blocks)
	if err != nil {
		c.Stats.incDropped()
		return
	}
	d := newDecoder(recBytes)
	v, err := d.decodeValue()
	if err != nil {
		c.Stats.incDropped()
		return
	}
	rec, ok := v.(map[string]interface{})
	if !ok {
		c.Stats.incDropped()
		return
	}

	subjectURI, ok := repostSubjectURI(rec)
	if !ok {
		c.Stats.incDropped()
		return
	}

	existed, err := c.storage.IncrementRepostCount(ctx, subjectURI)
	if err != nil {
		c.Stats.incErrors()
		c.promErrors.Inc()
		log.Printf("firehose: increment repost count for %s: %v", subjectURI, err)
		return
	}
	if existed {
		c.Stats.incRepostsApplied()
		c.promRepostsApplied.Inc()
	}
}

// RunSummaryLoop logs a throughput summary every summaryInterval until ctx
// is canceled, per spec §4.5's observability requirement.
func (c *Consumer) RunSummaryLoop(ctx context.Context) {
	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()

	last := c.Stats.Snapshot()
	lastAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := c.Stats.Snapshot()
			elapsedMin := time.Since(lastAt).Minutes()
			if elapsedMin <= 0 {
				elapsedMin = 1
			}

			postsPerMin := float64(now.PostsSeen-last.PostsSeen) / elapsedMin
			acceptedPerMin := float64(now.PostsAccepted-last.PostsAccepted) / elapsedMin
			acceptRate := 0.0
			if now.PostsSeen > last.PostsSeen {
				acceptRate = float64(now.PostsAccepted-last.PostsAccepted) / float64(now.PostsSeen-last.PostsSeen)
			}

			log.Printf(
				"firehose: throughput posts/min=%.1f accepted/min=%.1f accept_rate=%.3f queue_depth=%d batches_flushed=%d",
				postsPerMin, acceptedPerMin, acceptRate, c.writer.Len(), now.BatchesFlushed,
			)

			last = now
			lastAt = time.Now()
		}
	}
}
