package api

import (
	"net/http"
	"time"
)

// handleRoot serves GET / — the static service descriptor.
func (a *App) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "urlfeed",
		"description": "A Bluesky feed generator that ranks posts by the external URLs they share.",
		"did":         a.ServiceDID,
		"version":     "1.0.0",
	})
}

// handleWellKnownDID serves GET /.well-known/did.json, the service
// identity document feed generator clients resolve.
func (a *App) handleWellKnownDID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       a.ServiceDID,
		"service": []map[string]string{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": "https://" + a.Hostname,
			},
		},
	})
}

// handleHealth serves GET /health. Storage unreachability degrades the
// service to 503 per spec §7's "initialization incomplete" error kind;
// everything else reports 200.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}

	status := http.StatusOK
	statusLabel := "healthy"

	stats, err := a.Storage.GetStats(r.Context())
	if err != nil {
		components["database"] = "error"
		status = http.StatusServiceUnavailable
		statusLabel = "degraded"
	} else {
		components["database"] = "ok"
	}
	components["ranking_engine"] = "ok"

	body := map[string]interface{}{
		"status":     statusLabel,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	}
	if err == nil {
		body["database_stats"] = stats
	}

	writeJSON(w, status, body)
}

// handleStats serves GET /stats: the aggregated counters spec §6 names,
// supplemented per original_source/src/database.py's get_stats() with
// total URL count and average share count (SPEC_FULL's supplemented
// features section).
func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Storage.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalServerError", "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
