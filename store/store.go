// Package store defines the aggregate persistence interface of the engine.
package store

import (
	"context"

	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/sequence"
	"github.com/xraph/tuition/subscription"
)

// Store is the unified storage interface for all Tuition entities. The
// entity stores use prefixed method names so they embed without conflicts.
type Store interface {
	subscription.Store
	history.Store
	sequence.Store
	scheduler.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
