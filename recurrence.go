package tuition

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/subscription"
)

// RecurrenceStatus is the outcome of a recurrence tick.
type RecurrenceStatus string

const (
	// RecurrenceCreated: the source was copied and a history entry links
	// the copy.
	RecurrenceCreated RecurrenceStatus = "created"
	// RecurrenceFailed: the copy failed and a history entry without a
	// document records it.
	RecurrenceFailed RecurrenceStatus = "failed"
	// RecurrenceUnresolved: the subscription has no concrete source
	// document. Nothing was written.
	RecurrenceUnresolved RecurrenceStatus = "unresolved"
	// RecurrenceSkipped: another tick of the same subscription was in
	// flight.
	RecurrenceSkipped RecurrenceStatus = "skipped"
	// RecurrenceAborted: the subscription or its job could not be loaded.
	RecurrenceAborted RecurrenceStatus = "aborted"
)

// RecurrenceResult describes one tick. Err carries the swallowed failure,
// if any.
type RecurrenceResult struct {
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	Status         RecurrenceStatus  `json:"status"`
	// Ordinal is the 1-based number of this call, 0 for unlimited jobs and
	// for jobs whose remaining calls exceed the subscription's count.
	Ordinal   int            `json:"ordinal"`
	Remaining int            `json:"remaining"`
	Document  *document.Ref  `json:"document,omitempty"`
	History   *history.Entry `json:"history,omitempty"`
	// Done reports that this was the last call and the subscription is now
	// done.
	Done bool  `json:"done"`
	Err  error `json:"-"`
}

// Message returns the failure message, or "".
func (r *RecurrenceResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ModelCopy runs one recurrence tick: it copies the subscription's source
// document in draft, records the attempt in the history log, pushes a copied
// sale through the sales pipeline and, on the last scheduled call, marks the
// subscription done.
//
// Failures never escape: they are logged, reported to plugins and returned
// in the result. The remaining-call count is read from the job and never
// changed here.
func (e *Engine) ModelCopy(ctx context.Context, subID id.SubscriptionID) *RecurrenceResult {
	res := &RecurrenceResult{SubscriptionID: subID}

	key := subID.String()
	endTick, ok := e.ticks.TryLock(key)
	if !ok {
		e.logger.Debug("recurrence tick already running", "subscription", key)
		res.Status = RecurrenceSkipped
		return res
	}
	defer endTick()

	unlock, err := e.locks.Lock(ctx, key)
	if err != nil {
		return e.abortTick(res, err)
	}
	defer unlock()

	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return e.abortTick(res, err)
	}
	if sub.JobID.IsNil() {
		return e.abortTick(res, fmt.Errorf("%w: %s has no scheduled job", ErrJobNotFound, label(sub)))
	}
	job, err := e.scheduler.GetJob(ctx, sub.JobID)
	if err != nil {
		return e.abortTick(res, err)
	}
	res.Remaining = job.RemainingCalls()
	if calls := sub.ScheduledCalls(); res.Remaining > 0 && calls >= res.Remaining {
		res.Ordinal = calls - res.Remaining + 1
	}

	if !sub.ModelSource.Resolved() {
		e.logger.Error(fmt.Sprintf("Document in subscription %s not found", sub.Code),
			"subscription", key,
		)
		res.Status = RecurrenceUnresolved
		res.Err = ErrUnresolvedSourceDocument
		return res
	}

	now := e.now()
	copied, copyErr := e.sources.Copy(ctx, sub.ModelSource, document.Overrides{State: "draft"})
	var entry *history.Entry
	if copyErr != nil {
		entry = history.Failed(sub.ID, sub.ModelSource.Type, copyErr, now)
		res.Status = RecurrenceFailed
		res.Err = fmt.Errorf("%w: %w", ErrDuplicationFailure, copyErr)
	} else {
		entry = history.Succeeded(sub.ID, copied, now)
		res.Status = RecurrenceCreated
		res.Document = &copied
	}
	if err := e.store.CreateHistory(ctx, entry); err != nil {
		e.logger.Error("recurrence history not written", "subscription", key, "error", err)
	}
	res.History = entry
	e.plugins.EmitRecurrence(ctx, sub, entry, res.Ordinal)

	if copyErr == nil && copied.Type == document.TypeSale {
		invID, err := e.processSale(ctx, sub, copied.ID)
		sub.AddSale(copied.ID)
		if !invID.IsNil() && err == nil {
			sub.AddInvoice(invID)
		}
		if err != nil {
			res.Err = err
		}
	}
	if res.Err != nil {
		e.logger.Warn("recurrence tick failed",
			"subscription", key,
			"code", sub.Code,
			"call", res.Ordinal,
			"error", res.Err,
		)
		e.plugins.EmitRecurrenceFailed(ctx, sub, res.Err)
	}

	from := sub.State
	if res.Remaining == 1 && subscription.CanTransition(from, subscription.EventDone) {
		sub.State = subscription.StateDone
		res.Done = true
	}
	sub.Touch()
	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		e.logger.Error("recurrence result not saved", "subscription", key, "error", err)
		res.Err = errors.Join(res.Err, err)
		return res
	}

	e.logger.Info("recurrence tick",
		"subscription", key,
		"code", sub.Code,
		"status", res.Status,
		"call", res.Ordinal,
		"remaining", res.Remaining,
	)
	if res.Done {
		e.plugins.EmitTransition(ctx, sub, from, subscription.StateDone)
		e.plugins.EmitSubscriptionDone(ctx, sub)
	}
	return res
}

func (e *Engine) abortTick(res *RecurrenceResult, err error) *RecurrenceResult {
	e.logger.Error("recurrence tick aborted", "subscription", res.SubscriptionID.String(), "error", err)
	res.Status = RecurrenceAborted
	res.Err = err
	return res
}

// runModelCopy adapts ModelCopy to the scheduler callback signature.
func (e *Engine) runModelCopy(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s: want 1 argument, got %d", FunctionModelCopy, len(args))
	}
	subID, err := id.ParseSubscriptionID(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", FunctionModelCopy, err)
	}
	return e.ModelCopy(ctx, subID).Err
}
