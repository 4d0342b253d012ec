package tuition

import (
	"log/slog"
	"time"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/plugin"
)

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithSequence sets the sequence subscription codes are drawn from. Without
// it the engine provisions a default sequence in the store.
func WithSequence(seqID id.SequenceID) Option {
	return func(e *Engine) {
		e.sequenceID = seqID
	}
}

// WithCronUser sets the user recorded on subscriptions that do not name one.
// Scheduled jobs run as this user.
func WithCronUser(userID id.UserID) Option {
	return func(e *Engine) {
		e.cronUser = userID
	}
}

// WithDefaultCharges sets products billed once, each on its own sale, when a
// subscription is confirmed.
func WithDefaultCharges(productIDs ...id.ProductID) Option {
	return func(e *Engine) {
		e.defaultCharges = append([]id.ProductID(nil), productIDs...)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSourceRegistry sets the registry recurring ticks copy source
// documents through. A sale copier is added when missing.
func WithSourceRegistry(r *document.Registry) Option {
	return func(e *Engine) {
		e.sources = r
	}
}

// WithPollInterval sets how often the engine-owned scheduler looks for due
// jobs (default: 1m).
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.pollInterval = d
	}
}

// WithSchedulerLoop controls whether Start launches the engine-owned
// scheduler loop. Jobs can still be run explicitly through Runner.
func WithSchedulerLoop(enabled bool) Option {
	return func(e *Engine) {
		e.runScheduler = enabled
	}
}
