// Package domainfilter implements the allow-list decision described in
// spec §4.2: accept or reject a host against an operator-maintained
// whitelist, with optional subdomain matching.
//
// Grounded on the strict DNS-label-suffix matching idiom in
// other_examples/34682935_AdguardTeam-AdGuardDNS__internal-filter-internal-domain-filter.go.go.
package domainfilter

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
)

// config is the on-disk shape of the domains file.
type config struct {
	Domains         []string `json:"domains"`
	MatchSubdomains bool     `json:"match_subdomains"`
}

// Filter holds the in-memory allow-list. It is safe for concurrent use.
type Filter struct {
	mu              sync.RWMutex
	domains         map[string]struct{}
	matchSubdomains bool
	path            string
}

// New creates an empty filter with no backing file. Use LoadFile to create a
// filter populated from disk.
func New() *Filter {
	return &Filter{domains: make(map[string]struct{})}
}

// LoadFile loads a whitelist from path. On any read or parse error, it logs
// a warning and leaves the filter with an empty set rather than returning
// an error — config loading is a startup concern and the filter must never
// be left in a state where membership tests can panic.
func LoadFile(path string) *Filter {
	f := New()
	f.path = path
	if err := f.Reload(); err != nil {
		log.Printf("domainfilter: failed to load %q, starting with empty whitelist: %v", path, err)
	}
	return f
}

// Reload re-reads the backing file and replaces the set atomically from the
// caller's perspective. A missing or malformed file leaves the previous set
// untouched; callers relying on this for runtime reloads see a log, not a
// crash.
func (f *Filter) Reload() error {
	if f.path == "" {
		return nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}

	set := make(map[string]struct{}, len(cfg.Domains))
	for _, d := range cfg.Domains {
		set[normalizeHost(d)] = struct{}{}
	}

	f.mu.Lock()
	f.domains = set
	f.matchSubdomains = cfg.MatchSubdomains
	f.mu.Unlock()
	return nil
}

// Allows reports whether host is on the whitelist, per spec §4.2's decision
// rule: exact match, or a strict DNS-label suffix match when subdomain
// matching is enabled. Partial substring matches never count.
func (f *Filter) Allows(host string) bool {
	query := normalizeHost(host)
	if query == "" {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, ok := f.domains[query]; ok {
		return true
	}
	if !f.matchSubdomains {
		return false
	}
	for d := range f.domains {
		if isStrictSubdomain(query, d) {
			return true
		}
	}
	return false
}

// Add inserts host into the in-memory set. Not persisted.
func (f *Filter) Add(host string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains[normalizeHost(host)] = struct{}{}
}

// Remove deletes host from the in-memory set. Not persisted.
func (f *Filter) Remove(host string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.domains, normalizeHost(host))
}

// MatchSubdomains reports the currently configured subdomain-matching flag.
func (f *Filter) MatchSubdomains() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.matchSubdomains
}

// SetMatchSubdomains overrides the subdomain-matching flag at runtime.
func (f *Filter) SetMatchSubdomains(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchSubdomains = v
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// isStrictSubdomain reports whether query is exactly "x.<domain>" for some
// non-empty label x — never a bare substring match like "fakenytimes.com"
// against "nytimes.com".
func isStrictSubdomain(query, domain string) bool {
	suffix := "." + domain
	if !strings.HasSuffix(query, suffix) {
		return false
	}
	prefix := strings.TrimSuffix(query, suffix)
	return prefix != ""
}
