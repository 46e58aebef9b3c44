package firehose

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	carutil "github.com/ipld/go-car"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// atURIScheme is the URI scheme for AT Protocol AT-URIs.
const atURIScheme = "at://"

// postCollection and repostCollection are the two record collections the
// consumer cares about; everything else is discarded at the op-filter
// step in spec §4.5 step 1.
const (
	postCollection   = "app.bsky.feed.post"
	repostCollection = "app.bsky.feed.repost"
)

// commit is the decoded shape of a firehose commit message body: spec §6's
// "{repo, time, blocks, ops}".
type commit struct {
	Repo   string
	Time   string
	Blocks []byte
	Ops    []commitOp
}

type commitOp struct {
	Action string
	Path   string
	CID    string
}

// decodeCommit decodes the second CBOR object of a firehose frame into a
// commit. Only the fields the consumer needs are extracted; unrecognized
// fields are ignored.
func decodeCommit(body []byte) (commit, error) {
	d := newDecoder(body)
	v, err := d.decodeValue()
	if err != nil {
		return commit{}, fmt.Errorf("firehose: decode commit: %w", err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return commit{}, fmt.Errorf("firehose: commit body is not a map")
	}

	c := commit{}
	c.Repo, _ = m["repo"].(string)
	c.Time, _ = m["time"].(string)
	c.Blocks, _ = m["blocks"].([]byte)

	opsRaw, _ := m["ops"].([]interface{})
	for _, raw := range opsRaw {
		opm, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		action, _ := opm["action"].(string)
		path, _ := opm["path"].(string)
		if action == "" || path == "" {
			continue
		}
		c.Ops = append(c.Ops, commitOp{Action: action, Path: path, CID: opCIDString(opm["cid"])})
	}
	return c, nil
}

// opCIDString renders an op's decoded "cid" field (a cid.Cid when the
// source encoded it as a DAG-CBOR link, or a text string) as a display
// string. Best-effort: any other shape, including a raw byte string, yields
// "".
func opCIDString(v interface{}) string {
	switch c := v.(type) {
	case fmt.Stringer:
		return c.String()
	case string:
		return c
	default:
		return ""
	}
}

// collection returns the lexicon collection NSID from an op path shaped
// "<collection>/<rkey>".
func (op commitOp) collection() string {
	i := strings.IndexByte(op.Path, '/')
	if i < 0 {
		return ""
	}
	return op.Path[:i]
}

// loadRecordBytes returns the raw data of the last block in the commit's
// CAR-encoded block store, which for the common single-op commit is the
// record itself. The op's path and CID are not consulted, so in a commit
// whose CAR holds several record blocks every op gets the same (last)
// block. Malformed CAR data is reported as an error so the caller can skip
// the op per spec §4.5 step 2.
func loadRecordBytes(blocks []byte) ([]byte, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("firehose: empty block store")
	}
	reader, err := carutil.NewCarReader(bytes.NewReader(blocks))
	if err != nil {
		return nil, fmt.Errorf("firehose: open car: %w", err)
	}

	var last []byte
	for {
		blk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firehose: read car block: %w", err)
		}
		last = blk.RawData()
	}
	if last == nil {
		return nil, fmt.Errorf("firehose: car contained no blocks")
	}
	return last, nil
}

// isLinkBearing applies spec §4.5's cheap pre-filter: accept the record as
// a candidate for URL extraction if any of the listed signals are present.
func isLinkBearing(rec map[string]interface{}) bool {
	if facetsHaveLink(rec) {
		return true
	}
	if entitiesHaveLink(rec) {
		return true
	}
	if embedType(rec) == "app.bsky.embed.external" {
		return true
	}
	if embedType(rec) == "app.bsky.embed.recordWithMedia" {
		if embed, ok := rec["embed"].(map[string]interface{}); ok {
			if media, ok := embed["media"].(map[string]interface{}); ok {
				if t, _ := media["$type"].(string); t == "app.bsky.embed.external" {
					return true
				}
			}
		}
	}
	if text, ok := rec["text"].(string); ok {
		if strings.Contains(text, "http://") || strings.Contains(text, "https://") {
			return true
		}
	}
	return false
}

func facetsHaveLink(rec map[string]interface{}) bool {
	facets, _ := rec["facets"].([]interface{})
	for _, f := range facets {
		fm, ok := f.(map[string]interface{})
		if !ok {
			continue
		}
		features, _ := fm["features"].([]interface{})
		for _, feat := range features {
			featm, ok := feat.(map[string]interface{})
			if !ok {
				continue
			}
			if t, _ := featm["$type"].(string); t == "app.bsky.richtext.facet#link" {
				return true
			}
		}
	}
	return false
}

func entitiesHaveLink(rec map[string]interface{}) bool {
	entities, _ := rec["entities"].([]interface{})
	for _, e := range entities {
		em, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		if t, _ := em["type"].(string); t == "link" {
			return true
		}
	}
	return false
}

func embedType(rec map[string]interface{}) string {
	embed, ok := rec["embed"].(map[string]interface{})
	if !ok {
		return ""
	}
	t, _ := embed["$type"].(string)
	return t
}

// extractExternalURL implements spec §4.1's extraction priority: an
// external-link embed, or one nested inside a recordWithMedia embed.
// Anything else yields nothing, even if isLinkBearing returned true.
func extractExternalURL(rec map[string]interface{}) (string, bool) {
	embed, ok := rec["embed"].(map[string]interface{})
	if !ok {
		return "", false
	}

	switch t, _ := embed["$type"].(string); t {
	case "app.bsky.embed.external":
		return externalURI(embed)
	case "app.bsky.embed.recordWithMedia":
		media, ok := embed["media"].(map[string]interface{})
		if !ok {
			return "", false
		}
		if mt, _ := media["$type"].(string); mt != "app.bsky.embed.external" {
			return "", false
		}
		return externalURI(media)
	default:
		return "", false
	}
}

func externalURI(embed map[string]interface{}) (string, bool) {
	ext, ok := embed["external"].(map[string]interface{})
	if !ok {
		return "", false
	}
	uri, ok := ext["uri"].(string)
	if !ok || uri == "" {
		return "", false
	}
	return uri, true
}

// repostSubjectURI extracts the subject.uri field of a repost record.
func repostSubjectURI(rec map[string]interface{}) (string, bool) {
	subject, ok := rec["subject"].(map[string]interface{})
	if !ok {
		return "", false
	}
	uri, ok := subject["uri"].(string)
	return uri, ok
}

// buildATURI assembles an AT-URI from a repo DID and an op path. The repo
// is validated as a real DID via indigo's syntax package (the same
// identifier-parsing the teacher leans on throughout its oauth and jetstream
// code), and the assembled URI gets the same defensive structure check the
// teacher's comment consumer applies to inbound AT-URIs: we trust the PDS
// but catch obviously malformed values.
func buildATURI(repo, path string) (string, error) {
	if _, err := syntax.ParseDID(repo); err != nil {
		return "", fmt.Errorf("firehose: invalid repo did %q: %w", repo, err)
	}
	raw := atURIScheme + repo + "/" + path
	if err := validateATURI(raw); err != nil {
		return "", fmt.Errorf("firehose: invalid at-uri %q: %w", raw, err)
	}
	return raw, nil
}

// validateATURI performs basic structure validation on AT-URIs.
// Format: at://did:method:id/collection/rkey
func validateATURI(uri string) error {
	if !strings.HasPrefix(uri, atURIScheme) {
		return fmt.Errorf("must start with %s", atURIScheme)
	}

	withoutScheme := strings.TrimPrefix(uri, atURIScheme)
	parts := strings.SplitN(withoutScheme, "/", 3)
	if len(parts) < 3 {
		return fmt.Errorf("invalid structure (expected at://did/collection/rkey)")
	}
	if !strings.HasPrefix(parts[0], "did:") {
		return fmt.Errorf("repository identifier must be a DID")
	}
	if parts[1] == "" || parts[2] == "" {
		return fmt.Errorf("collection and rkey cannot be empty")
	}
	return nil
}

// parseRecordTime parses the record's createdAt timestamp, falling back to
// the commit time if the record's own timestamp is missing or malformed —
// the indexing timestamp is always the local wall clock regardless.
func parseRecordTime(rec map[string]interface{}, commitTime string) time.Time {
	if raw, ok := rec["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, commitTime); err == nil {
		return t
	}
	return time.Now().UTC()
}
