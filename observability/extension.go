// Package observability provides a metrics plugin that records tuition
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/plugin"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/subscription"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCopied  = (*MetricsExtension)(nil)
	_ plugin.OnTransition          = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionDone    = (*MetricsExtension)(nil)
	_ plugin.OnSaleProcessed       = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePosted       = (*MetricsExtension)(nil)
	_ plugin.OnConfirmFailed       = (*MetricsExtension)(nil)
	_ plugin.OnRecurrence          = (*MetricsExtension)(nil)
	_ plugin.OnRecurrenceFailed    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a tuition plugin to track workflow and recurrence metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Subscription metrics
	SubscriptionCreated Counter
	SubscriptionCopied  Counter
	SubscriptionDone    Counter

	// Workflow metrics, keyed by target state
	Transitions    map[subscription.State]Counter
	ConfirmFailure Counter

	// Document metrics
	SaleProcessed Counter
	InvoicePosted Counter
	InvoiceTotal  Histogram

	// Recurrence metrics
	RecurrenceCreated Counter
	RecurrenceFailed  Counter
	RecurrenceOrdinal Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		// Subscription metrics
		SubscriptionCreated: factory.Counter("tuition.subscription.created"),
		SubscriptionCopied:  factory.Counter("tuition.subscription.copied"),
		SubscriptionDone:    factory.Counter("tuition.subscription.done"),

		// Workflow metrics
		Transitions:    make(map[subscription.State]Counter),
		ConfirmFailure: factory.Counter("tuition.confirm.failure"),

		// Document metrics
		SaleProcessed: factory.Counter("tuition.sale.processed"),
		InvoicePosted: factory.Counter("tuition.invoice.posted"),
		InvoiceTotal:  factory.Histogram("tuition.invoice.total_amount"),

		// Recurrence metrics
		RecurrenceCreated: factory.Counter("tuition.recurrence.created"),
		RecurrenceFailed:  factory.Counter("tuition.recurrence.failed"),
		RecurrenceOrdinal: factory.Histogram("tuition.recurrence.ordinal"),
	}
	for _, st := range subscription.States() {
		m.Transitions[st] = factory.Counter("tuition.transition." + string(st))
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCreated.Inc()
	return nil
}

// OnSubscriptionCopied implements plugin.OnSubscriptionCopied.
func (m *MetricsExtension) OnSubscriptionCopied(_ context.Context, _, _ *subscription.Subscription) error {
	m.SubscriptionCopied.Inc()
	return nil
}

// OnTransition implements plugin.OnTransition.
func (m *MetricsExtension) OnTransition(_ context.Context, _ *subscription.Subscription, _, to subscription.State) error {
	if c, ok := m.Transitions[to]; ok {
		c.Inc()
	}
	return nil
}

// OnSubscriptionDone implements plugin.OnSubscriptionDone.
func (m *MetricsExtension) OnSubscriptionDone(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionDone.Inc()
	return nil
}

// OnConfirmFailed implements plugin.OnConfirmFailed.
func (m *MetricsExtension) OnConfirmFailed(_ context.Context, _ *subscription.Subscription, _ error) error {
	m.ConfirmFailure.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Document hooks
// ──────────────────────────────────────────────────

// OnSaleProcessed implements plugin.OnSaleProcessed.
func (m *MetricsExtension) OnSaleProcessed(_ context.Context, _ *subscription.Subscription, _ *sale.Sale) error {
	m.SaleProcessed.Inc()
	return nil
}

// OnInvoicePosted implements plugin.OnInvoicePosted.
func (m *MetricsExtension) OnInvoicePosted(_ context.Context, _ *subscription.Subscription, inv *invoice.Invoice) error {
	m.InvoicePosted.Inc()
	total, _ := inv.Total.Float64()
	m.InvoiceTotal.Observe(total)
	return nil
}

// ──────────────────────────────────────────────────
// Recurrence hooks
// ──────────────────────────────────────────────────

// OnRecurrence implements plugin.OnRecurrence.
func (m *MetricsExtension) OnRecurrence(_ context.Context, _ *subscription.Subscription, entry *history.Entry, ordinal int) error {
	if entry.Document != nil {
		m.RecurrenceCreated.Inc()
	}
	m.RecurrenceOrdinal.Observe(float64(ordinal))
	return nil
}

// OnRecurrenceFailed implements plugin.OnRecurrenceFailed.
func (m *MetricsExtension) OnRecurrenceFailed(_ context.Context, _ *subscription.Subscription, _ error) error {
	m.RecurrenceFailed.Inc()
	return nil
}
