// Package urlnorm implements the normalization pipeline described in spec
// §4.1: parse, canonicalize, strip tracking parameters, and extract the
// registrable host of a URL found in a post.
//
// Grounded on the URL-cleanup idiom in
// other_examples/2dcaefd8_lcalzada-xor-AethonX__internal-platform-urlfilter-normalizer.go.go
// (net/url-based parse/lower-case/query-filter pipeline).
package urlnorm

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams is the recognized set of tracking query parameters removed
// during normalization, matched case-insensitively.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"msclkid":      {},
	"mc_cid":       {},
	"mc_eid":       {},
	"_ga":          {},
	"_gl":          {},
	"ref":          {},
	"source":       {},
	"campaign":     {},
	"link_source":  {},
	"taid":         {},
	"user_email":   {},
}

// Result is a normalized URL alongside the registrable host used for domain
// filtering.
type Result struct {
	URL  string
	Host string
}

// Normalize applies the pipeline in spec §4.1. stripTracking controls
// whether recognized tracking query parameters are removed (default true).
// It is idempotent: Normalize(Normalize(u).URL) == Normalize(u).
func Normalize(raw string, stripTracking bool) (Result, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Result{}, fmt.Errorf("urlnorm: parse %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Result{}, fmt.Errorf("urlnorm: %q is not an absolute URL", raw)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return Result{}, fmt.Errorf("urlnorm: %q has no host", raw)
	}

	// Force https for http/https; leave other schemes intact (the domain
	// filter rejects those in practice).
	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" || scheme == "https" {
		scheme = "https"
	}

	// Rebuild the authority preserving an explicit port, but lower-cased and
	// without a leading "www.".
	authority := strings.ToLower(u.Hostname())
	authority = strings.TrimPrefix(authority, "www.")
	if port := u.Port(); port != "" {
		authority = authority + ":" + port
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	query := u.Query()
	if stripTracking {
		for key := range query {
			if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
				query.Del(key)
			}
		}
	}

	normalized := url.URL{
		Scheme:   scheme,
		Host:     authority,
		Path:     path,
		RawQuery: encodeQuerySorted(query),
	}

	return Result{URL: normalized.String(), Host: host}, nil
}

// encodeQuerySorted mirrors url.Values.Encode but is kept local so the
// sorted-key behavior (stable, deterministic output) is explicit: the spec
// only requires that surviving parameters be preserved, not reordered, but a
// deterministic encoding keeps normalization idempotent regardless of the
// original parameter order.
func encodeQuerySorted(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}
