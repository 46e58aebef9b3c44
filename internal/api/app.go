// Package api implements the feed service's HTTP surface: the feed
// generator descriptor, getFeedSkeleton, and health/stats endpoints.
package api

import (
	"context"

	"urlfeed/internal/core/feed"
	"urlfeed/internal/core/ranking"
)

// Storage is the narrow read surface the feed service needs from the
// durable store.
type Storage interface {
	GetStats(ctx context.Context) (feed.Stats, error)
}

// Engine is the narrow surface the feed service needs from the ranking
// engine.
type Engine interface {
	GetFeedSkeleton(ctx context.Context, host string, limit int, cursor string) (ranking.Page, error)
}

// App is the explicit dependency container §9's re-architecture guidance
// asks for in place of ambient module-level globals: one value owning
// storage and the ranking engine, handed to HTTP handlers by reference.
type App struct {
	Storage Storage
	Engine  Engine

	ServiceDID string
	Hostname   string
}

// NewApp wires an App from its dependencies.
func NewApp(storage Storage, engine Engine, serviceDID, hostname string) *App {
	return &App{
		Storage:    storage,
		Engine:     engine,
		ServiceDID: serviceDID,
		Hostname:   hostname,
	}
}
