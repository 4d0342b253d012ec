package tuition_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/host/memhost"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/subscription"
)

// recurrenceRecorder counts recurrence hooks.
type recurrenceRecorder struct {
	mu       sync.Mutex
	ordinals []int
	failures int
	done     int
}

func (r *recurrenceRecorder) Name() string { return "recurrence-recorder" }

func (r *recurrenceRecorder) OnRecurrence(_ context.Context, _ *subscription.Subscription, _ *history.Entry, ordinal int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ordinals = append(r.ordinals, ordinal)
	return nil
}

func (r *recurrenceRecorder) OnRecurrenceFailed(context.Context, *subscription.Subscription, error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	return nil
}

func (r *recurrenceRecorder) OnSubscriptionDone(context.Context, *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	return nil
}

func TestRecurrenceRunsToCompletion(t *testing.T) {
	rec := &recurrenceRecorder{}
	fx := newFixture(t, tuition.WithPlugin(rec))
	ctx := context.Background()
	sub := fx.processing(t, "3")

	for call := 1; call <= 3; call++ {
		ran, err := fx.eng.Runner().RunDue(ctx)
		if err != nil {
			t.Fatalf("call %d: RunDue: %v", call, err)
		}
		if ran != 1 {
			t.Fatalf("call %d: ran %d jobs, want 1", call, ran)
		}

		got, _ := fx.eng.GetSubscription(ctx, sub.ID)
		wantState := subscription.StateProcessing
		if call == 3 {
			wantState = subscription.StateDone
		}
		if got.State != wantState {
			t.Fatalf("call %d: state = %s, want %s", call, got.State, wantState)
		}
		fx.clock.AddMonths(1)
	}

	// Nothing left to run.
	if ran, _ := fx.eng.Runner().RunDue(ctx); ran != 0 {
		t.Fatalf("ran %d jobs after the last call", ran)
	}

	entries, err := fx.eng.History(ctx, sub.ID, history.ListOpts{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("history = %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Document == nil || e.Document.Type != document.TypeSale {
			t.Errorf("entry %d: document = %v, want a sale", i, e.Document)
		}
	}

	got, _ := fx.eng.GetSubscription(ctx, sub.ID)
	if len(got.SaleIDs) != 4 || len(got.InvoiceIDs) != 4 {
		t.Fatalf("links = %d sales, %d invoices, want 4 and 4", len(got.SaleIDs), len(got.InvoiceIDs))
	}
	for _, inv := range fx.host.Invoices() {
		if inv.State != invoice.StatePosted || inv.Reference != got.Code {
			t.Errorf("invoice %s: state %s reference %q", inv.ID, inv.State, inv.Reference)
		}
	}

	job, _ := fx.eng.Scheduler().GetJob(ctx, got.JobID)
	if job.Active || job.NumberCalls != 0 {
		t.Errorf("job active=%v calls=%d, want inactive with 0 calls", job.Active, job.NumberCalls)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []int{1, 2, 3}
	if len(rec.ordinals) != len(want) {
		t.Fatalf("ordinals = %v, want %v", rec.ordinals, want)
	}
	for i := range want {
		if rec.ordinals[i] != want[i] {
			t.Errorf("ordinals = %v, want %v", rec.ordinals, want)
			break
		}
	}
	if rec.done != 1 {
		t.Errorf("done hooks = %d, want 1", rec.done)
	}
	if rec.failures != 0 {
		t.Errorf("failure hooks = %d, want 0", rec.failures)
	}
}

func TestRecurrenceCopyFailure(t *testing.T) {
	rec := &recurrenceRecorder{}
	fx := newFixture(t, tuition.WithPlugin(rec))
	ctx := context.Background()
	sub := fx.processing(t, "1")

	boom := errors.New("disk full")
	fx.host.FailOn(memhost.OpCopySale, boom)

	res := fx.eng.ModelCopy(ctx, sub.ID)
	if res.Status != tuition.RecurrenceFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !errors.Is(res.Err, tuition.ErrDuplicationFailure) || !errors.Is(res.Err, boom) {
		t.Fatalf("err = %v", res.Err)
	}
	if res.Document != nil {
		t.Errorf("document = %v, want nil", res.Document)
	}
	if res.Ordinal != 1 || res.Remaining != 3 {
		t.Errorf("ordinal %d remaining %d, want 1 and 3", res.Ordinal, res.Remaining)
	}

	entries, _ := fx.eng.History(ctx, sub.ID, history.ListOpts{})
	if len(entries) != 1 {
		t.Fatalf("history = %d entries, want 1", len(entries))
	}
	if entries[0].Document != nil {
		t.Errorf("failed entry links %v", entries[0].Document)
	}

	got, _ := fx.eng.GetSubscription(ctx, sub.ID)
	if got.State != subscription.StateProcessing {
		t.Errorf("state = %s, want processing", got.State)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.failures != 1 {
		t.Errorf("failure hooks = %d, want 1", rec.failures)
	}
}

func TestRecurrenceFailureOnLastCallCompletes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.draft(t, "1")

	edit, _ := fx.eng.GetSubscription(ctx, sub.ID)
	edit.NumberCalls = 1
	if err := fx.eng.UpdateSubscription(ctx, edit); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	fx.advance(t, sub.ID, subscription.EventQuotation, subscription.EventConfirmed, subscription.EventProcessing)
	fx.host.FailOn(memhost.OpCopySale, errors.New("disk full"))

	res := fx.eng.ModelCopy(ctx, sub.ID)
	if res.Status != tuition.RecurrenceFailed || !res.Done {
		t.Fatalf("status %s done %v, want failed and done", res.Status, res.Done)
	}
	got, _ := fx.eng.GetSubscription(ctx, sub.ID)
	if got.State != subscription.StateDone {
		t.Fatalf("state = %s, want done", got.State)
	}
}

func TestRecurrenceOrdinalWithoutNumberOfCalls(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.draft(t, "1")

	stored, _ := fx.store.GetSubscription(ctx, sub.ID)
	stored.NumberCalls = 0
	if err := fx.store.UpdateSubscription(ctx, stored); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	fx.advance(t, sub.ID, subscription.EventQuotation, subscription.EventConfirmed, subscription.EventProcessing)

	res := fx.eng.ModelCopy(ctx, sub.ID)
	if res.Status != tuition.RecurrenceCreated {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	if res.Ordinal != 1 || res.Remaining != 1 {
		t.Errorf("ordinal %d remaining %d, want 1 and 1", res.Ordinal, res.Remaining)
	}
}

func TestRecurrenceOrdinalAfterCallsReduced(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.processing(t, "1")

	stored, _ := fx.store.GetSubscription(ctx, sub.ID)
	stored.NumberCalls = -1
	if err := fx.store.UpdateSubscription(ctx, stored); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	res := fx.eng.ModelCopy(ctx, sub.ID)
	if res.Remaining != 3 {
		t.Fatalf("remaining = %d, want 3", res.Remaining)
	}
	if res.Ordinal != 0 {
		t.Errorf("ordinal = %d, want 0", res.Ordinal)
	}
}

func TestRecurrenceUnresolvedSource(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.processing(t, "1")

	// Point the subscription back at the bare default source.
	stored, _ := fx.store.GetSubscription(ctx, sub.ID)
	stored.ModelSource = document.DefaultSource()
	if err := fx.store.UpdateSubscription(ctx, stored); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	salesBefore := len(fx.host.Sales())

	res := fx.eng.ModelCopy(ctx, sub.ID)
	if res.Status != tuition.RecurrenceUnresolved {
		t.Fatalf("status = %s, want unresolved", res.Status)
	}
	if !errors.Is(res.Err, tuition.ErrUnresolvedSourceDocument) {
		t.Fatalf("err = %v", res.Err)
	}

	entries, _ := fx.eng.History(ctx, sub.ID, history.ListOpts{})
	if len(entries) != 0 {
		t.Errorf("history = %d entries, want 0", len(entries))
	}
	if n := len(fx.host.Sales()); n != salesBefore {
		t.Errorf("sales = %d, want %d", n, salesBefore)
	}
	got, _ := fx.eng.GetSubscription(ctx, sub.ID)
	if got.State != subscription.StateProcessing {
		t.Errorf("state = %s, want processing", got.State)
	}
}

func TestRecurrenceWithoutJob(t *testing.T) {
	fx := newFixture(t)
	sub := fx.draft(t, "1")

	res := fx.eng.ModelCopy(context.Background(), sub.ID)
	if res.Status != tuition.RecurrenceAborted {
		t.Fatalf("status = %s, want aborted", res.Status)
	}
	if !errors.Is(res.Err, tuition.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", res.Err)
	}
}

func TestConcurrentTicksDoNotOverlap(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.processing(t, "1")

	const workers = 8
	results := make([]*tuition.RecurrenceResult, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fx.eng.ModelCopy(ctx, sub.ID)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, res := range results {
		switch res.Status {
		case tuition.RecurrenceCreated:
			created++
		case tuition.RecurrenceSkipped:
		default:
			t.Fatalf("unexpected status %s: %v", res.Status, res.Err)
		}
	}
	if created == 0 {
		t.Fatal("no tick ran")
	}

	entries, _ := fx.eng.History(ctx, sub.ID, history.ListOpts{})
	if len(entries) != created {
		t.Fatalf("history = %d entries, want one per created tick (%d)", len(entries), created)
	}
	got, _ := fx.eng.GetSubscription(ctx, sub.ID)
	if len(got.SaleIDs) != created+1 {
		t.Fatalf("sales = %d, want %d", len(got.SaleIDs), created+1)
	}
}

func TestRunModelCopyRejectsBadArguments(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.processing(t, "1")

	job, _ := fx.eng.Scheduler().GetJob(ctx, sub.JobID)
	job.Args = []string{"not-an-id"}
	if err := fx.store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	ran, err := fx.eng.Runner().RunJob(ctx, job.ID)
	if err != nil || !ran {
		t.Fatalf("RunJob = %v, %v", ran, err)
	}
	entries, _ := fx.eng.History(ctx, sub.ID, history.ListOpts{})
	if len(entries) != 0 {
		t.Fatalf("history = %d entries, want 0", len(entries))
	}
}
