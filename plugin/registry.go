package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/subscription"
)

// DefaultTimeout bounds each plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onSubscriptionCreated []OnSubscriptionCreated
	onSubscriptionCopied  []OnSubscriptionCopied
	onTransition          []OnTransition
	onSubscriptionDone    []OnSubscriptionDone
	onSaleProcessed       []OnSaleProcessed
	onInvoicePosted       []OnInvoicePosted
	onConfirmFailed       []OnConfirmFailed
	onRecurrence          []OnRecurrence
	onRecurrenceFailed    []OnRecurrenceFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnSubscriptionCopied); ok {
		r.onSubscriptionCopied = append(r.onSubscriptionCopied, v)
	}
	if v, ok := p.(OnTransition); ok {
		r.onTransition = append(r.onTransition, v)
	}
	if v, ok := p.(OnSubscriptionDone); ok {
		r.onSubscriptionDone = append(r.onSubscriptionDone, v)
	}
	if v, ok := p.(OnSaleProcessed); ok {
		r.onSaleProcessed = append(r.onSaleProcessed, v)
	}
	if v, ok := p.(OnInvoicePosted); ok {
		r.onInvoicePosted = append(r.onInvoicePosted, v)
	}
	if v, ok := p.(OnConfirmFailed); ok {
		r.onConfirmFailed = append(r.onConfirmFailed, v)
	}
	if v, ok := p.(OnRecurrence); ok {
		r.onRecurrence = append(r.onRecurrence, v)
	}
	if v, ok := p.(OnRecurrenceFailed); ok {
		r.onRecurrenceFailed = append(r.onRecurrenceFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnSubscriptionCreated)(nil)).Elem(), "OnSubscriptionCreated")
	checkInterface(reflect.TypeOf((*OnSubscriptionCopied)(nil)).Elem(), "OnSubscriptionCopied")
	checkInterface(reflect.TypeOf((*OnTransition)(nil)).Elem(), "OnTransition")
	checkInterface(reflect.TypeOf((*OnSubscriptionDone)(nil)).Elem(), "OnSubscriptionDone")
	checkInterface(reflect.TypeOf((*OnSaleProcessed)(nil)).Elem(), "OnSaleProcessed")
	checkInterface(reflect.TypeOf((*OnInvoicePosted)(nil)).Elem(), "OnInvoicePosted")
	checkInterface(reflect.TypeOf((*OnConfirmFailed)(nil)).Elem(), "OnConfirmFailed")
	checkInterface(reflect.TypeOf((*OnRecurrence)(nil)).Elem(), "OnRecurrence")
	checkInterface(reflect.TypeOf((*OnRecurrenceFailed)(nil)).Elem(), "OnRecurrenceFailed")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionCreated(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionCopied emits a subscription copied event.
func (r *Registry) EmitSubscriptionCopied(ctx context.Context, src, dst *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionCopied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionCopied(ctx, src, dst)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionCopied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTransition emits a committed state change.
func (r *Registry) EmitTransition(ctx context.Context, sub *subscription.Subscription, from, to subscription.State) {
	r.mu.RLock()
	plugins := r.onTransition
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransition(ctx, sub, from, to)
		}); err != nil {
			r.logger.Warn("plugin OnTransition failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionDone emits a subscription completed by its last scheduled call.
func (r *Registry) EmitSubscriptionDone(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionDone
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionDone(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionDone failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSaleProcessed emits a processed subscription sale.
func (r *Registry) EmitSaleProcessed(ctx context.Context, sub *subscription.Subscription, s *sale.Sale) {
	r.mu.RLock()
	plugins := r.onSaleProcessed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSaleProcessed(ctx, sub, s)
		}); err != nil {
			r.logger.Warn("plugin OnSaleProcessed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvoicePosted emits a posted subscription invoice.
func (r *Registry) EmitInvoicePosted(ctx context.Context, sub *subscription.Subscription, inv *invoice.Invoice) {
	r.mu.RLock()
	plugins := r.onInvoicePosted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvoicePosted(ctx, sub, inv)
		}); err != nil {
			r.logger.Warn("plugin OnInvoicePosted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitConfirmFailed emits a failed confirmation.
func (r *Registry) EmitConfirmFailed(ctx context.Context, sub *subscription.Subscription, err error) {
	r.mu.RLock()
	plugins := r.onConfirmFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnConfirmFailed(ctx, sub, err)
		}); err != nil {
			r.logger.Warn("plugin OnConfirmFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRecurrence emits a recurrence tick that wrote history.
func (r *Registry) EmitRecurrence(ctx context.Context, sub *subscription.Subscription, entry *history.Entry, ordinal int) {
	r.mu.RLock()
	plugins := r.onRecurrence
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRecurrence(ctx, sub, entry, ordinal)
		}); err != nil {
			r.logger.Warn("plugin OnRecurrence failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRecurrenceFailed emits a failed recurrence tick.
func (r *Registry) EmitRecurrenceFailed(ctx context.Context, sub *subscription.Subscription, err error) {
	r.mu.RLock()
	plugins := r.onRecurrenceFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRecurrenceFailed(ctx, sub, err)
		}); err != nil {
			r.logger.Warn("plugin OnRecurrenceFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a transition.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
