package api

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the feed service's routes, using the same chi
// middleware stack (request logging, panic recovery, request IDs) the
// teacher's AppView server installs.
func NewRouter(app *App) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	r.Get("/", app.handleRoot)
	r.Get("/.well-known/did.json", app.handleWellKnownDID)
	r.Get("/xrpc/app.bsky.feed.describeFeedGenerator", app.handleDescribeFeedGenerator)
	r.Get("/xrpc/app.bsky.feed.getFeedSkeleton", app.handleGetFeedSkeleton)
	r.Get("/health", app.handleHealth)
	r.Get("/stats", app.handleStats)

	return r
}
