package tuition_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/subscription"
)

func TestTransitionEdges(t *testing.T) {
	tests := []struct {
		name   string
		path   []subscription.Event
		event  subscription.Event
		want   subscription.State
		reject bool
	}{
		{name: "draft to quotation", event: subscription.EventQuotation, want: subscription.StateQuotation},
		{name: "draft to cancel", event: subscription.EventCancel, want: subscription.StateCancel},
		{name: "draft cannot confirm", event: subscription.EventConfirmed, reject: true},
		{name: "draft cannot process", event: subscription.EventProcessing, reject: true},
		{
			name:  "quotation back to draft",
			path:  []subscription.Event{subscription.EventQuotation},
			event: subscription.EventDraft,
			want:  subscription.StateDraft,
		},
		{
			name:  "quotation to cancel",
			path:  []subscription.Event{subscription.EventQuotation},
			event: subscription.EventCancel,
			want:  subscription.StateCancel,
		},
		{
			name:  "cancel back to draft",
			path:  []subscription.Event{subscription.EventCancel},
			event: subscription.EventDraft,
			want:  subscription.StateDraft,
		},
		{
			name:   "confirmed cannot cancel",
			path:   []subscription.Event{subscription.EventQuotation, subscription.EventConfirmed},
			event:  subscription.EventCancel,
			reject: true,
		},
		{
			name:  "processing to stop",
			path:  []subscription.Event{subscription.EventQuotation, subscription.EventConfirmed, subscription.EventProcessing},
			event: subscription.EventStop,
			want:  subscription.StateStop,
		},
		{
			name:  "stop back to processing",
			path:  []subscription.Event{subscription.EventQuotation, subscription.EventConfirmed, subscription.EventProcessing, subscription.EventStop},
			event: subscription.EventProcessing,
			want:  subscription.StateProcessing,
		},
		{
			name:   "done is terminal",
			path:   []subscription.Event{subscription.EventQuotation, subscription.EventConfirmed, subscription.EventProcessing, subscription.EventDone},
			event:  subscription.EventDraft,
			reject: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			sub := fx.draft(t, "1")
			fx.advance(t, sub.ID, tt.path...)
			before, _ := fx.eng.GetSubscription(context.Background(), sub.ID)

			got, err := fx.eng.Transition(context.Background(), sub.ID, tt.event)
			if tt.reject {
				if !tuition.IsIllegalTransition(err) {
					t.Fatalf("expected illegal transition, got %v", err)
				}
				var te *tuition.TransitionError
				if !errors.As(err, &te) || te.From != before.State || te.To != tt.event.Target() {
					t.Fatalf("unexpected transition error: %v", err)
				}
				after, _ := fx.eng.GetSubscription(context.Background(), sub.ID)
				if after.State != before.State {
					t.Fatalf("state changed to %s on rejected edge", after.State)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition: %v", err)
			}
			if got.State != tt.want {
				t.Fatalf("state = %s, want %s", got.State, tt.want)
			}
		})
	}
}

func TestQuotationAssignsCodeOnce(t *testing.T) {
	fx := newFixture(t)
	first := fx.draft(t, "1")

	quoted := fx.advance(t, first.ID, subscription.EventQuotation)
	if quoted.Code != "SUB2026-00001" {
		t.Fatalf("code = %q, want SUB2026-00001", quoted.Code)
	}

	again := fx.advance(t, first.ID, subscription.EventDraft, subscription.EventQuotation)
	if again.Code != quoted.Code {
		t.Fatalf("code changed on second quotation: %q -> %q", quoted.Code, again.Code)
	}

	second := fx.draft(t, "1")
	if got := fx.advance(t, second.ID, subscription.EventQuotation); got.Code != "SUB2026-00002" {
		t.Fatalf("second code = %q, want SUB2026-00002", got.Code)
	}
}

func TestProcessingSchedulesJob(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.processing(t, "3")

	if sub.JobID.IsNil() {
		t.Fatal("processing did not link a job")
	}
	job, err := fx.eng.Scheduler().GetJob(ctx, sub.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !job.Active {
		t.Error("job should be active")
	}
	if job.Name != sub.Code {
		t.Errorf("job name = %q, want %q", job.Name, sub.Code)
	}
	if job.Model != subscription.Model {
		t.Errorf("job model = %q, want %q", job.Model, subscription.Model)
	}
	if job.Function != tuition.FunctionModelCopy {
		t.Errorf("job function = %q", job.Function)
	}
	if len(job.Args) != 1 || job.Args[0] != sub.ID.String() {
		t.Errorf("job args = %v, want [%s]", job.Args, sub.ID)
	}
	if job.NumberCalls != 3 {
		t.Errorf("job calls = %d, want 3", job.NumberCalls)
	}
}

func TestStopAndResumeReusesJob(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.processing(t, "1")

	stopped := fx.advance(t, sub.ID, subscription.EventStop)
	job, _ := fx.eng.Scheduler().GetJob(ctx, stopped.JobID)
	if job.Active {
		t.Fatal("stop should deactivate the job")
	}

	resumed := fx.advance(t, sub.ID, subscription.EventProcessing)
	if resumed.JobID.String() != sub.JobID.String() {
		t.Fatalf("resume created job %s, want reuse of %s", resumed.JobID, sub.JobID)
	}
	job, _ = fx.eng.Scheduler().GetJob(ctx, resumed.JobID)
	if !job.Active {
		t.Fatal("resume should reactivate the job")
	}
}

func TestDoneDeactivatesJob(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.processing(t, "1")

	done := fx.advance(t, sub.ID, subscription.EventDone)
	if done.State != subscription.StateDone {
		t.Fatalf("state = %s, want done", done.State)
	}
	job, err := fx.eng.Scheduler().GetJob(ctx, done.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Active {
		t.Fatal("done should deactivate the job")
	}
}

func TestProcessingRejectsBadSchedule(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.draft(t, "1")

	edit, _ := fx.eng.GetSubscription(ctx, sub.ID)
	edit.IntervalType = "fortnights"
	if err := fx.eng.UpdateSubscription(ctx, edit); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	fx.advance(t, sub.ID, subscription.EventQuotation, subscription.EventConfirmed)

	_, err := fx.eng.Process(ctx, sub.ID)
	if !tuition.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := fx.eng.GetSubscription(ctx, sub.ID)
	if got.State != subscription.StateConfirmed {
		t.Fatalf("state = %s, want confirmed", got.State)
	}
}
