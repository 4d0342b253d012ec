package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/subscription"
)

func TestSubscriptionModelRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sub := subscription.New(now)
	sub.Code = "SUB2026-00004"
	sub.SubscriptorID = id.NewPartyID()
	sub.StudentID = id.NewStudentID()
	sub.ModelSource = document.Ref{Type: document.TypeSale, ID: id.NewSaleID()}
	l := subscription.NewLine(id.NewSessionID())
	l.UnitPrice = decimal.RequireFromString("12.50")
	l.Quantity = decimal.NewFromInt(2)
	sub.Lines = []*subscription.Line{l}

	m := toSubscriptionModel(sub)
	if !m.Total.Equal(decimal.RequireFromString("25")) {
		t.Errorf("Total: got %s, want 25", m.Total)
	}
	if m.PriceListID != "" {
		t.Errorf("nil price list should be stored empty, got %q", m.PriceListID)
	}

	back, err := fromSubscriptionModel(m)
	if err != nil {
		t.Fatalf("fromSubscriptionModel: %v", err)
	}
	if back.ID.String() != sub.ID.String() {
		t.Errorf("ID: got %s, want %s", back.ID, sub.ID)
	}
	if back.ModelSource.String() != sub.ModelSource.String() {
		t.Errorf("ModelSource: got %s, want %s", back.ModelSource, sub.ModelSource)
	}
	if !back.PriceListID.IsNil() {
		t.Errorf("PriceListID: got %s, want nil", back.PriceListID)
	}
	if !back.Date.Equal(sub.Date) {
		t.Errorf("Date: got %v, want %v", back.Date, sub.Date)
	}

	lm := toLineModel(sub.ID, 0, l)
	line, err := fromLineModel(lm)
	if err != nil {
		t.Fatalf("fromLineModel: %v", err)
	}
	if !line.Amount.Equal(decimal.RequireFromString("25")) {
		t.Errorf("line Amount: got %s, want 25", line.Amount)
	}
}

func TestSubscriptionModelRejectsMalformedIDs(t *testing.T) {
	m := toSubscriptionModel(subscription.New(time.Now()))
	m.StudentID = "not-an-id"
	if _, err := fromSubscriptionModel(m); err == nil {
		t.Fatal("expected error for malformed student id")
	}
}

func TestHistoryModelDocument(t *testing.T) {
	subID := id.NewSubscriptionID()
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	failed := toHistoryModel(history.Failed(subID, document.TypeSale, errors.New("copy failed"), at))
	if failed.Document != "" {
		t.Errorf("failed entry document: got %q, want empty", failed.Document)
	}
	back, err := fromHistoryModel(failed)
	if err != nil {
		t.Fatalf("fromHistoryModel: %v", err)
	}
	if back.Document != nil {
		t.Error("failed entry should read back without a document")
	}

	doc := document.Ref{Type: document.TypeSale, ID: id.NewSaleID()}
	ok, err := fromHistoryModel(toHistoryModel(history.Succeeded(subID, doc, at)))
	if err != nil {
		t.Fatalf("fromHistoryModel: %v", err)
	}
	if ok.Document == nil || ok.Document.ID.String() != doc.ID.String() {
		t.Errorf("Document: got %v, want %s", ok.Document, doc)
	}
}

func TestJobModelArgs(t *testing.T) {
	j := scheduler.NewJob(scheduler.Spec{
		Model:          subscription.Model,
		Name:           "Tuition SUB2026-00001",
		IntervalNumber: 1,
		IntervalType:   scheduler.IntervalMonths,
		NumberCalls:    3,
		NextCall:       time.Now(),
		Function:       "model_copy",
	})
	m := toJobModel(j)
	if m.Args == nil {
		t.Fatal("nil args must be stored as an empty array")
	}
	back, err := fromJobModel(m)
	if err != nil {
		t.Fatalf("fromJobModel: %v", err)
	}
	if back.NumberCalls != 3 || back.Function != "model_copy" {
		t.Errorf("got %+v", back)
	}
}

func TestUpdateArgsDropsCreatedAt(t *testing.T) {
	m := toJobModel(scheduler.NewJob(scheduler.Spec{Function: "f", NumberCalls: 1}))
	args := updateArgs(m.args())
	if len(args) != 14 {
		t.Fatalf("len: got %d, want 14", len(args))
	}
	if args[13] != m.UpdatedAt {
		t.Errorf("last arg: got %v, want updated_at", args[13])
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "$1, $2, $3" {
		t.Errorf("got %q", got)
	}
}
