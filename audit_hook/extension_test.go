package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tuition"
	audithook "github.com/xraph/tuition/audit_hook"
	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/subscription"
)

type captured struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, evt *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *captured) last(t *testing.T) *audithook.AuditEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		t.Fatal("no audit event recorded")
	}
	return c.events[len(c.events)-1]
}

func newSub() *subscription.Subscription {
	sub := subscription.New(time.Now())
	sub.Code = "SUB2026-00003"
	return sub
}

func TestTransitionEvent(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)
	sub := newSub()

	if err := ext.OnTransition(context.Background(), sub, subscription.StateConfirmed, subscription.StateProcessing); err != nil {
		t.Fatalf("OnTransition: %v", err)
	}
	evt := rec.last(t)
	if evt.Action != audithook.ActionTransition || evt.ResourceID != sub.ID.String() {
		t.Errorf("got %+v", evt)
	}
	if evt.Metadata["from"] != "confirmed" || evt.Metadata["to"] != "processing" {
		t.Errorf("metadata: got %v", evt.Metadata)
	}
}

func TestConfirmFailedPartialOutcome(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)

	err := &tuition.ConfirmError{
		Sales: []id.SaleID{id.NewSaleID()},
		Err:   tuition.ErrMissingInvoice,
	}
	_ = ext.OnConfirmFailed(context.Background(), newSub(), err)

	evt := rec.last(t)
	if evt.Outcome != audithook.OutcomePartial {
		t.Errorf("Outcome: got %q, want partial", evt.Outcome)
	}
	if evt.Reason == "" {
		t.Error("Reason should carry the error text")
	}

	_ = ext.OnConfirmFailed(context.Background(), newSub(), tuition.ErrMissingPaymentTerm)
	if got := rec.last(t).Outcome; got != audithook.OutcomeFailure {
		t.Errorf("Outcome: got %q, want failure", got)
	}
}

func TestRecurrenceEventWithoutDocumentIsFailure(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)
	sub := newSub()

	failed := history.Failed(sub.ID, document.TypeSale, errors.New("boom"), time.Now())
	_ = ext.OnRecurrence(context.Background(), sub, failed, 2)
	evt := rec.last(t)
	if evt.Outcome != audithook.OutcomeFailure || evt.Severity != audithook.SeverityWarning {
		t.Errorf("got %+v", evt)
	}
	if evt.Metadata["ordinal"] != 2 {
		t.Errorf("ordinal: got %v", evt.Metadata["ordinal"])
	}
}

func TestDisabledActionsAreSkipped(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionSubscriptionCreated))

	_ = ext.OnSubscriptionCreated(context.Background(), newSub())
	if len(rec.events) != 0 {
		t.Fatalf("disabled action recorded: %+v", rec.events)
	}
	_ = ext.OnSubscriptionDone(context.Background(), newSub())
	if len(rec.events) != 1 {
		t.Fatalf("enabled action not recorded")
	}
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := ext.OnSubscriptionCreated(context.Background(), newSub()); err != nil {
		t.Fatalf("recorder errors must not propagate, got %v", err)
	}
}
