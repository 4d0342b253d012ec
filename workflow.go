package tuition

import (
	"context"
	"fmt"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/subscription"
)

// transitionHandler runs the side effects of an event on a working copy of
// the subscription. The state change is committed only if it returns nil.
type transitionHandler func(ctx context.Context, sub *subscription.Subscription) error

func (e *Engine) registerHandlers() {
	e.handlers = map[subscription.Event]transitionHandler{
		subscription.EventQuotation:  e.onQuotation,
		subscription.EventConfirmed:  e.onConfirmed,
		subscription.EventProcessing: e.onProcessing,
		subscription.EventDone:       e.deactivateJob,
		subscription.EventStop:       e.deactivateJob,
	}
}

// Transition applies event to the subscription. Illegal edges fail with a
// *TransitionError before any side effect. Transitions of one subscription
// run one at a time.
func (e *Engine) Transition(ctx context.Context, subID id.SubscriptionID, event subscription.Event) (*subscription.Subscription, error) {
	unlock, err := e.locks.Lock(ctx, subID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, sub, event)
}

func (e *Engine) transition(ctx context.Context, sub *subscription.Subscription, event subscription.Event) (*subscription.Subscription, error) {
	from := sub.State
	to, err := subscription.Next(from, event)
	if err != nil {
		return nil, &TransitionError{From: from, To: event.Target()}
	}

	work := sub.Clone()
	if h, ok := e.handlers[event]; ok {
		if err := h(ctx, work); err != nil {
			e.logger.Warn("subscription transition failed",
				"subscription", work.ID.String(),
				"code", work.Code,
				"from", from,
				"to", to,
				"error", err,
			)
			return nil, err
		}
	}

	work.State = to
	work.Touch()
	if err := e.store.UpdateSubscription(ctx, work); err != nil {
		return nil, fmt.Errorf("commit %s -> %s: %w", from, to, err)
	}

	e.logger.Info("subscription transition",
		"subscription", work.ID.String(),
		"code", work.Code,
		"from", from,
		"to", to,
	)
	e.plugins.EmitTransition(ctx, work, from, to)
	if to == subscription.StateDone {
		e.plugins.EmitSubscriptionDone(ctx, work)
	}
	return work, nil
}

// Quotation assigns the subscription code, once, and moves a draft to
// quotation.
func (e *Engine) Quotation(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.Transition(ctx, subID, subscription.EventQuotation)
}

// Confirm creates, processes and invoices the subscription's sales.
func (e *Engine) Confirm(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.Transition(ctx, subID, subscription.EventConfirmed)
}

// Process schedules the recurring copy of the subscription's source
// document.
func (e *Engine) Process(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.Transition(ctx, subID, subscription.EventProcessing)
}

// Done deactivates the recurring job and closes the subscription.
func (e *Engine) Done(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.Transition(ctx, subID, subscription.EventDone)
}

// Stop deactivates the recurring job and pauses the subscription.
func (e *Engine) Stop(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.Transition(ctx, subID, subscription.EventStop)
}

// Cancel cancels a draft or quoted subscription.
func (e *Engine) Cancel(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.Transition(ctx, subID, subscription.EventCancel)
}

// Draft returns a quoted or cancelled subscription to draft.
func (e *Engine) Draft(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.Transition(ctx, subID, subscription.EventDraft)
}

// ──────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────

func (e *Engine) onQuotation(ctx context.Context, sub *subscription.Subscription) error {
	if sub.Code != "" {
		return nil
	}
	seqID, err := e.subscriptionSequence(ctx)
	if err != nil {
		return err
	}
	code, err := e.sequences.NextCode(ctx, seqID)
	if err != nil {
		return fmt.Errorf("assign code: %w", err)
	}
	sub.Code = code
	return nil
}

// onProcessing reactivates the subscription's inactive job when one exists
// under its code, and creates one otherwise.
func (e *Engine) onProcessing(ctx context.Context, sub *subscription.Subscription) error {
	spec := scheduler.Spec{
		Model:          subscription.Model,
		Name:           sub.Code,
		User:           sub.User,
		RequestUser:    sub.RequestUser,
		IntervalNumber: sub.IntervalNumber,
		IntervalType:   sub.IntervalType,
		NumberCalls:    sub.ScheduledCalls(),
		NextCall:       sub.NextCall,
		Function:       FunctionModelCopy,
		Args:           []string{sub.ID.String()},
	}
	if err := spec.Validate(); err != nil {
		return ValidationError{Field: "schedule", Message: err.Error()}
	}

	job, err := e.scheduler.FindJob(ctx, spec.Model, spec.Name)
	if err != nil {
		return fmt.Errorf("find job: %w", err)
	}
	if job != nil {
		job.Apply(spec)
		if err := e.scheduler.Activate(ctx, job); err != nil {
			return fmt.Errorf("activate job: %w", err)
		}
	} else {
		job, err = e.scheduler.CreateJob(ctx, spec)
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
	}
	sub.JobID = job.ID
	return nil
}

func (e *Engine) deactivateJob(ctx context.Context, sub *subscription.Subscription) error {
	if sub.JobID.IsNil() {
		return nil
	}
	if err := e.scheduler.Deactivate(ctx, sub.JobID); err != nil {
		return fmt.Errorf("deactivate job: %w", err)
	}
	return nil
}
