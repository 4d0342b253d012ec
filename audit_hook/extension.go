// Package audithook bridges tuition lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/plugin"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated = (*Extension)(nil)
	_ plugin.OnSubscriptionCopied  = (*Extension)(nil)
	_ plugin.OnTransition          = (*Extension)(nil)
	_ plugin.OnSubscriptionDone    = (*Extension)(nil)
	_ plugin.OnSaleProcessed       = (*Extension)(nil)
	_ plugin.OnInvoicePosted       = (*Extension)(nil)
	_ plugin.OnConfirmFailed       = (*Extension)(nil)
	_ plugin.OnRecurrence          = (*Extension)(nil)
	_ plugin.OnRecurrenceFailed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It matches chronicle.Emitter; callers inject the concrete backend at
// wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges tuition lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriptor_id", sub.SubscriptorID.String(),
		"student_id", sub.StudentID.String(),
		"total", sub.TotalMoney().String(),
	)
}

// OnSubscriptionCopied implements plugin.OnSubscriptionCopied.
func (e *Extension) OnSubscriptionCopied(ctx context.Context, src, dst *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCopied, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, dst.ID.String(), CategorySubscription, nil,
		"source_id", src.ID.String(),
		"source_code", src.Code,
	)
}

// OnTransition implements plugin.OnTransition.
func (e *Extension) OnTransition(ctx context.Context, sub *subscription.Subscription, from, to subscription.State) error {
	return e.record(ctx, ActionTransition, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"code", sub.Code,
		"from", string(from),
		"to", string(to),
	)
}

// OnSubscriptionDone implements plugin.OnSubscriptionDone.
func (e *Extension) OnSubscriptionDone(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionDone, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"code", sub.Code,
		"sales", len(sub.SaleIDs),
		"invoices", len(sub.InvoiceIDs),
	)
}

// OnConfirmFailed implements plugin.OnConfirmFailed. A failure that left
// documents behind in the host is recorded as a partial outcome.
func (e *Extension) OnConfirmFailed(ctx context.Context, sub *subscription.Subscription, err error) error {
	outcome := OutcomeFailure
	kv := []any{"code", sub.Code}
	var ce *tuition.ConfirmError
	if errors.As(err, &ce) {
		if len(ce.Sales)+len(ce.Invoices) > 0 {
			outcome = OutcomePartial
		}
		kv = append(kv, "sales_created", len(ce.Sales), "invoices_created", len(ce.Invoices))
	}
	return e.record(ctx, ActionConfirmFailed, SeverityCritical, outcome,
		ResourceSubscription, sub.ID.String(), CategoryBilling, err,
		kv...,
	)
}

// ──────────────────────────────────────────────────
// Document hooks
// ──────────────────────────────────────────────────

// OnSaleProcessed implements plugin.OnSaleProcessed.
func (e *Extension) OnSaleProcessed(ctx context.Context, sub *subscription.Subscription, s *sale.Sale) error {
	return e.record(ctx, ActionSaleProcessed, SeverityInfo, OutcomeSuccess,
		ResourceSale, s.ID.String(), CategoryBilling, nil,
		"subscription_id", sub.ID.String(),
		"subscription_code", s.SubscriptionCode,
	)
}

// OnInvoicePosted implements plugin.OnInvoicePosted.
func (e *Extension) OnInvoicePosted(ctx context.Context, sub *subscription.Subscription, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoicePosted, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"subscription_id", sub.ID.String(),
		"reference", inv.Reference,
		"total", inv.Amount().FormatMajor(),
		"currency", inv.Currency,
		"amount", inv.Amount().String(),
	)
}

// ──────────────────────────────────────────────────
// Recurrence hooks
// ──────────────────────────────────────────────────

// OnRecurrence implements plugin.OnRecurrence.
func (e *Extension) OnRecurrence(ctx context.Context, sub *subscription.Subscription, entry *history.Entry, ordinal int) error {
	outcome := OutcomeSuccess
	severity := SeverityInfo
	kv := []any{"code", sub.Code, "ordinal", ordinal, "log", entry.Log}
	if entry.Document == nil {
		outcome = OutcomeFailure
		severity = SeverityWarning
	} else {
		kv = append(kv, "document", entry.Document.String())
	}
	return e.record(ctx, ActionRecurrence, severity, outcome,
		ResourceSubscription, sub.ID.String(), CategoryScheduling, nil,
		kv...,
	)
}

// OnRecurrenceFailed implements plugin.OnRecurrenceFailed.
func (e *Extension) OnRecurrenceFailed(ctx context.Context, sub *subscription.Subscription, err error) error {
	return e.record(ctx, ActionRecurrenceFailed, SeverityError, OutcomeFailure,
		ResourceSubscription, sub.ID.String(), CategoryScheduling, err,
		"code", sub.Code,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
