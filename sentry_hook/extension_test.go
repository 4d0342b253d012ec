package sentryhook_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/id"
	sentryhook "github.com/xraph/tuition/sentry_hook"
	"github.com/xraph/tuition/subscription"
)

type sink struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (s *sink) hub(t *testing.T) *sentry.Hub {
	t.Helper()
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(evt *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.events = append(s.events, evt)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return sentry.NewHub(client, sentry.NewScope())
}

func (s *sink) only(t *testing.T) *sentry.Event {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) != 1 {
		t.Fatalf("events: got %d, want 1", len(s.events))
	}
	return s.events[0]
}

func TestRecurrenceFailureIsCaptured(t *testing.T) {
	s := &sink{}
	ext := sentryhook.New(sentryhook.WithHub(s.hub(t)))

	sub := subscription.New(time.Now())
	sub.Code = "SUB2026-00009"
	err := fmt.Errorf("%w: host unavailable", tuition.ErrDuplicationFailure)
	if got := ext.OnRecurrenceFailed(context.Background(), sub, err); got != nil {
		t.Fatalf("OnRecurrenceFailed: %v", got)
	}

	evt := s.only(t)
	if evt.Tags["operation"] != "model_copy" {
		t.Errorf("operation tag: got %q", evt.Tags["operation"])
	}
	if evt.Tags["subscription_code"] != "SUB2026-00009" {
		t.Errorf("code tag: got %q", evt.Tags["subscription_code"])
	}
	if _, ok := evt.Contexts["recurrence"]; !ok {
		t.Error("missing recurrence context")
	}
}

func TestConfirmFailureCarriesCreatedDocuments(t *testing.T) {
	s := &sink{}
	ext := sentryhook.New(sentryhook.WithHub(s.hub(t)))

	err := &tuition.ConfirmError{
		Sales:    []id.SaleID{id.NewSaleID(), id.NewSaleID()},
		Invoices: []id.InvoiceID{id.NewInvoiceID()},
		Err:      tuition.ErrMissingInvoice,
	}
	_ = ext.OnConfirmFailed(context.Background(), subscription.New(time.Now()), err)

	evt := s.only(t)
	docs, ok := evt.Contexts["created_documents"]
	if !ok {
		t.Fatal("missing created_documents context")
	}
	if docs["sales"] != 2 || docs["invoices"] != 1 {
		t.Errorf("created_documents: got %v", docs)
	}
	if _, ok := evt.Tags["subscription_code"]; ok {
		t.Error("draft subscription without code should not be tagged")
	}
}
