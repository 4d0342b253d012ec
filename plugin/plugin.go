// Package plugin provides an extensible plugin system for Tuition.
// Plugins can hook into subscription lifecycle events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/subscription"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a new subscription is created.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionCopied is called when a subscription is duplicated.
type OnSubscriptionCopied interface {
	Plugin
	OnSubscriptionCopied(ctx context.Context, src, dst *subscription.Subscription) error
}

// OnTransition is called after a state change is committed.
type OnTransition interface {
	Plugin
	OnTransition(ctx context.Context, sub *subscription.Subscription, from, to subscription.State) error
}

// OnSubscriptionDone is called when the last scheduled call completes a
// subscription.
type OnSubscriptionDone interface {
	Plugin
	OnSubscriptionDone(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Document hooks
// ──────────────────────────────────────────────────

// OnSaleProcessed is called when a sale created for a subscription reaches
// processing.
type OnSaleProcessed interface {
	Plugin
	OnSaleProcessed(ctx context.Context, sub *subscription.Subscription, s *sale.Sale) error
}

// OnInvoicePosted is called when a subscription invoice is posted.
type OnInvoicePosted interface {
	Plugin
	OnInvoicePosted(ctx context.Context, sub *subscription.Subscription, inv *invoice.Invoice) error
}

// OnConfirmFailed is called when confirmation fails partway through.
type OnConfirmFailed interface {
	Plugin
	OnConfirmFailed(ctx context.Context, sub *subscription.Subscription, err error) error
}

// ──────────────────────────────────────────────────
// Recurrence hooks
// ──────────────────────────────────────────────────

// OnRecurrence is called after a tick writes its history entry. The entry
// has no document when the copy failed.
type OnRecurrence interface {
	Plugin
	OnRecurrence(ctx context.Context, sub *subscription.Subscription, entry *history.Entry, ordinal int) error
}

// OnRecurrenceFailed is called when a tick fails to copy or process its
// source document.
type OnRecurrenceFailed interface {
	Plugin
	OnRecurrenceFailed(ctx context.Context, sub *subscription.Subscription, err error) error
}
