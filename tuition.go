package tuition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/party"
	"github.com/xraph/tuition/plugin"
	"github.com/xraph/tuition/pricing"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/scheduler/cron"
	"github.com/xraph/tuition/sequence"
	"github.com/xraph/tuition/store"
	"github.com/xraph/tuition/subscription"
)

// FunctionModelCopy is the scheduler function name of the recurrence entry
// point. Its single argument is the subscription ID.
const FunctionModelCopy = "model_copy"

// Host groups the services of the ERP the engine drives. Sales, Invoices,
// Parties and Catalog are required; the rest have defaults.
type Host struct {
	Sales    sale.Service
	Invoices invoice.Service
	Parties  party.Directory
	Catalog  catalog.Catalog

	// Pricer defaults to list pricing, adjusted by price lists when Catalog
	// also implements pricing.PriceListSource.
	Pricer pricing.Pricer
	// Scheduler defaults to an in-process cron runner over the store.
	Scheduler scheduler.Scheduler
	// Sequences defaults to a generator over the store's sequences.
	Sequences sequence.Generator
}

// Engine is the training subscription engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	sales     sale.Service
	invoices  invoice.Service
	parties   party.Directory
	catalog   catalog.Catalog
	pricer    pricing.Pricer
	scheduler scheduler.Scheduler
	sequences sequence.Generator
	sources   *document.Registry

	// runner is set when the engine owns the scheduler.
	runner       *cron.Runner
	runScheduler bool
	pollInterval time.Duration

	seqMu          sync.Mutex
	sequenceID     id.SequenceID
	cronUser       id.UserID
	defaultCharges []id.ProductID

	locks    *keyedMutex
	ticks    *keyedMutex
	handlers map[subscription.Event]transitionHandler
}

// New creates a new Engine over the store and host services.
func New(s store.Store, h Host, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, ValidationError{Field: "store", Message: "is required"}
	}
	var errs MultiError
	if h.Sales == nil {
		errs.Add(ValidationError{Field: "host.sales", Message: "is required"})
	}
	if h.Invoices == nil {
		errs.Add(ValidationError{Field: "host.invoices", Message: "is required"})
	}
	if h.Parties == nil {
		errs.Add(ValidationError{Field: "host.parties", Message: "is required"})
	}
	if h.Catalog == nil {
		errs.Add(ValidationError{Field: "host.catalog", Message: "is required"})
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		now:          time.Now,
		sales:        h.Sales,
		invoices:     h.Invoices,
		parties:      h.Parties,
		catalog:      h.Catalog,
		pricer:       h.Pricer,
		scheduler:    h.Scheduler,
		sequences:    h.Sequences,
		runScheduler: true,
		pollInterval: time.Minute,
		locks:        newKeyedMutex(),
		ticks:        newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.pricer == nil {
		lists, _ := h.Catalog.(pricing.PriceListSource)
		e.pricer = pricing.NewListPricer(lists)
	}
	if e.sequences == nil {
		e.sequences = sequence.NewGenerator(s, sequence.WithClock(e.now))
	}
	if e.scheduler == nil {
		e.runner = cron.New(s,
			cron.WithLogger(e.logger),
			cron.WithPollInterval(e.pollInterval),
			cron.WithClock(e.now),
		)
		e.scheduler = e.runner
	}
	if e.sources == nil {
		e.sources = document.NewRegistry()
	}
	if !e.sources.Has(document.TypeSale) {
		e.sources.Register(document.TypeSale, sale.NewCopier(e.sales))
	}
	if reg, ok := e.scheduler.(scheduler.Registrar); ok {
		reg.Register(FunctionModelCopy, e.runModelCopy)
	}

	e.registerHandlers()
	return e, nil
}

// Start migrates the store, initializes plugins and starts the scheduler
// loop when the engine owns it.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	e.plugins.EmitInit(ctx, e)

	if e.runner != nil && e.runScheduler {
		e.runner.Start(ctx)
	}

	e.logger.Info("tuition started",
		"scheduler", e.runner != nil && e.runScheduler,
		"poll_interval", e.pollInterval,
		"default_charges", len(e.defaultCharges),
	)
	return nil
}

// Shutdown stops the scheduler loop, notifies plugins and closes the store.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.runner != nil && e.runScheduler {
		e.runner.Stop()
	}

	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Scheduler returns the scheduler jobs are registered with.
func (e *Engine) Scheduler() scheduler.Scheduler { return e.scheduler }

// Runner returns the engine-owned cron runner, or nil when the host
// supplied its own scheduler.
func (e *Engine) Runner() *cron.Runner { return e.runner }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// subscriptionSequence returns the sequence subscription codes are drawn
// from, creating the default one in the store on first use.
func (e *Engine) subscriptionSequence(ctx context.Context) (id.SequenceID, error) {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()

	if !e.sequenceID.IsNil() {
		return e.sequenceID, nil
	}
	if _, ok := e.sequences.(*sequence.StoreGenerator); !ok {
		return id.Nil, ErrSequenceNotConfigured
	}

	seq, err := e.store.GetSequenceByCode(ctx, sequence.CodeSubscription)
	if IsNotFound(err) {
		seq = sequence.NewSubscriptionSequence()
		if err = e.store.CreateSequence(ctx, seq); err != nil {
			return id.Nil, fmt.Errorf("create subscription sequence: %w", err)
		}
		e.logger.Info("subscription sequence created", "sequence", seq.ID.String(), "prefix", seq.Prefix)
	} else if err != nil {
		return id.Nil, err
	}
	e.sequenceID = seq.ID
	return seq.ID, nil
}
