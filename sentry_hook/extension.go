// Package sentryhook reports failed confirmations and failed recurrence
// ticks to Sentry.
package sentryhook

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/plugin"
	"github.com/xraph/tuition/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnConfirmFailed    = (*Extension)(nil)
	_ plugin.OnRecurrenceFailed = (*Extension)(nil)
	_ plugin.OnShutdown         = (*Extension)(nil)
)

const flushTimeout = 2 * time.Second

// Extension captures workflow failures as Sentry exceptions.
type Extension struct {
	hub *sentry.Hub
}

// Option configures an Extension.
type Option func(*Extension)

// WithHub sets the hub events are captured on (default: a clone of the
// current hub).
func WithHub(hub *sentry.Hub) Option {
	return func(e *Extension) { e.hub = hub }
}

// New creates a Sentry reporting extension.
func New(opts ...Option) *Extension {
	e := &Extension{}
	for _, opt := range opts {
		opt(e)
	}
	if e.hub == nil {
		e.hub = sentry.CurrentHub().Clone()
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "sentry-hook" }

// OnConfirmFailed implements plugin.OnConfirmFailed.
func (e *Extension) OnConfirmFailed(_ context.Context, sub *subscription.Subscription, err error) error {
	e.capture(sub, "confirm", err, func(scope *sentry.Scope) {
		var ce *tuition.ConfirmError
		if errors.As(err, &ce) {
			scope.SetContext("created_documents", sentry.Context{
				"sales":    len(ce.Sales),
				"invoices": len(ce.Invoices),
			})
		}
	})
	return nil
}

// OnRecurrenceFailed implements plugin.OnRecurrenceFailed.
func (e *Extension) OnRecurrenceFailed(_ context.Context, sub *subscription.Subscription, err error) error {
	e.capture(sub, "model_copy", err, func(scope *sentry.Scope) {
		scope.SetContext("recurrence", sentry.Context{
			"source":       sub.ModelSource.String(),
			"number_calls": sub.NumberCalls,
			"next_call":    sub.NextCall,
		})
	})
	return nil
}

// OnShutdown implements plugin.OnShutdown. It drains buffered events.
func (e *Extension) OnShutdown(_ context.Context) error {
	e.hub.Flush(flushTimeout)
	return nil
}

func (e *Extension) capture(sub *subscription.Subscription, operation string, err error, enrich func(*sentry.Scope)) {
	e.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
		scope.SetTag("subscription_id", sub.ID.String())
		scope.SetTag("state", string(sub.State))
		if sub.Code != "" {
			scope.SetTag("subscription_code", sub.Code)
		}
		if enrich != nil {
			enrich(scope)
		}
		e.hub.CaptureException(err)
	})
}
