package api

import (
	"net/http"
	"strconv"
	"strings"
)

const generatorPathSuffix = "/app.bsky.feed.generator/"

// handleDescribeFeedGenerator implements GET
// /xrpc/app.bsky.feed.describeFeedGenerator.
func (a *App) handleDescribeFeedGenerator(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"did":   a.ServiceDID,
		"feeds": []interface{}{},
	})
}

// handleGetFeedSkeleton implements GET /xrpc/app.bsky.feed.getFeedSkeleton.
//
// The `domain` query parameter is additive: it is not part of spec.md's
// documented interface, but original_source/src/server.py exposes the same
// domain-scoped query C3 and the ranking engine already support, so it is
// surfaced here rather than as a second endpoint.
func (a *App) handleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	feedURI := query.Get("feed")
	if feedURI == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "feed parameter is required")
		return
	}
	idx := strings.Index(feedURI, generatorPathSuffix)
	if idx < 0 {
		writeError(w, http.StatusBadRequest, "UnsupportedAlgorithm", "feed must reference an app.bsky.feed.generator record")
		return
	}
	feedName := feedURI[idx+len(generatorPathSuffix):]
	if feedName == "" || strings.Contains(feedName, "/") {
		writeError(w, http.StatusBadRequest, "UnsupportedAlgorithm", "feed must reference an app.bsky.feed.generator record")
		return
	}

	limit := 50
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	// An invalid cursor is tolerated, not rejected: treated as no cursor
	// (spec §7's client-error taxonomy carves this out explicitly). The
	// ranking engine's own cursor decoding already tolerates malformed
	// input the same way, so the raw value is simply passed through.
	cursor := query.Get("cursor")

	host := query.Get("domain")

	page, err := a.Engine.GetFeedSkeleton(r.Context(), host, limit, cursor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalServerError", "failed to build feed skeleton")
		return
	}

	items := make([]map[string]string, 0, len(page.PostURIs))
	for _, uri := range page.PostURIs {
		items = append(items, map[string]string{"post": uri})
	}

	resp := map[string]interface{}{"feed": items}
	if page.Cursor != "" {
		resp["cursor"] = page.Cursor
	}
	writeJSON(w, http.StatusOK, resp)
}
