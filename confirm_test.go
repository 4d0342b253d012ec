package tuition_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/host/memhost"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/subscription"
	"github.com/xraph/tuition/types"
)

func TestConfirmByStudent(t *testing.T) {
	fx := newFixture(t)
	sub := fx.draft(t, "3")

	got := fx.advance(t, sub.ID, subscription.EventQuotation, subscription.EventConfirmed)
	if got.State != subscription.StateConfirmed {
		t.Fatalf("state = %s, want confirmed", got.State)
	}

	sales := fx.host.Sales()
	if len(sales) != 1 {
		t.Fatalf("sales = %d, want 1", len(sales))
	}
	s := sales[0]
	if s.PartyID.String() != fx.studentPty.ID.String() {
		t.Errorf("sale party = %s, want the student's party", s.PartyID)
	}
	if s.State != sale.StateProcessing {
		t.Errorf("sale state = %s, want processing", s.State)
	}
	if s.SubscriptionCode != got.Code {
		t.Errorf("sale code = %q, want %q", s.SubscriptionCode, got.Code)
	}
	if s.Description != sub.Description {
		t.Errorf("sale description = %q", s.Description)
	}
	if !s.SaleDate.Equal(types.Date(fx.clock.Now())) {
		t.Errorf("sale date = %s, want today", s.SaleDate)
	}
	if len(s.Lines) != 1 {
		t.Fatalf("sale lines = %d, want 1", len(s.Lines))
	}
	line := s.Lines[0]
	if line.Description != fx.offer.Name {
		t.Errorf("line description = %q, want offer name", line.Description)
	}
	if !line.Quantity.Equal(dec("3")) || !line.UnitPrice.Equal(dec("15")) {
		t.Errorf("line = %s x %s, want 3 x 15.00", line.Quantity, line.UnitPrice)
	}
	if line.Unit != "unit" {
		t.Errorf("line unit = %q", line.Unit)
	}

	invoices := fx.host.Invoices()
	if len(invoices) != 1 {
		t.Fatalf("invoices = %d, want 1", len(invoices))
	}
	inv := invoices[0]
	if inv.State != invoice.StatePosted {
		t.Errorf("invoice state = %s, want posted", inv.State)
	}
	if inv.Reference != got.Code {
		t.Errorf("invoice reference = %q, want %q", inv.Reference, got.Code)
	}
	if !inv.InvoiceDate.Equal(s.SaleDate) {
		t.Errorf("invoice date = %s, want sale date %s", inv.InvoiceDate, s.SaleDate)
	}
	if !inv.Total.Equal(dec("45")) {
		t.Errorf("invoice total = %s, want 45.00", inv.Total)
	}

	if len(got.SaleIDs) != 1 || got.SaleIDs[0].String() != s.ID.String() {
		t.Errorf("subscription sales = %v", got.SaleIDs)
	}
	if len(got.InvoiceIDs) != 1 || got.InvoiceIDs[0].String() != inv.ID.String() {
		t.Errorf("subscription invoices = %v", got.InvoiceIDs)
	}
	want := document.Ref{Type: document.TypeSale, ID: s.ID}
	if got.ModelSource.String() != want.String() {
		t.Errorf("model source = %s, want %s", got.ModelSource, want)
	}
}

func TestConfirmBySubscriptor(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.draft(t, "1")

	edit, _ := fx.eng.GetSubscription(ctx, sub.ID)
	edit.InvoiceMethod = subscription.InvoiceBySubscriptor
	if err := fx.eng.UpdateSubscription(ctx, edit); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	fx.advance(t, sub.ID, subscription.EventQuotation, subscription.EventConfirmed)

	s := fx.host.Sales()[0]
	if s.PartyID.String() != fx.subscriptor.ID.String() {
		t.Errorf("sale party = %s, want subscriptor", s.PartyID)
	}
	addr := fx.subscriptor.Addresses[0].ID.String()
	if s.InvoiceAddressID.String() != addr || s.ShipmentAddressID.String() != addr {
		t.Errorf("sale addresses = %s / %s, want %s", s.InvoiceAddressID, s.ShipmentAddressID, addr)
	}
}

func TestConfirmSkipsNonPositiveLines(t *testing.T) {
	fx := newFixture(t)
	sub := fx.draft(t, "2", "0", "-1")

	fx.advance(t, sub.ID, subscription.EventQuotation, subscription.EventConfirmed)

	s := fx.host.Sales()[0]
	if len(s.Lines) != 1 {
		t.Fatalf("sale lines = %d, want 1", len(s.Lines))
	}
	if !s.Lines[0].Quantity.Equal(dec("2")) {
		t.Errorf("quantity = %s, want 2", s.Lines[0].Quantity)
	}
}

func TestConfirmWithoutPositiveLines(t *testing.T) {
	fx := newFixture(t)
	sub := fx.draft(t, "0")
	fx.advance(t, sub.ID, subscription.EventQuotation)

	_, err := fx.eng.Confirm(context.Background(), sub.ID)
	if !errors.Is(err, tuition.ErrNoLines) {
		t.Fatalf("expected ErrNoLines, got %v", err)
	}
	if n := len(fx.host.Sales()); n != 0 {
		t.Fatalf("sales = %d, want 0", n)
	}
}

func TestConfirmMissingPaymentTerm(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.draft(t, "1")

	edit, _ := fx.eng.GetSubscription(ctx, sub.ID)
	edit.PaymentTermID = id.Nil
	if err := fx.eng.UpdateSubscription(ctx, edit); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	fx.advance(t, sub.ID, subscription.EventQuotation)

	_, err := fx.eng.Confirm(ctx, sub.ID)
	if !errors.Is(err, tuition.ErrMissingPaymentTerm) {
		t.Fatalf("expected ErrMissingPaymentTerm, got %v", err)
	}
	if !tuition.IsValidation(err) {
		t.Error("missing payment term should be a validation error")
	}

	got, _ := fx.eng.GetSubscription(ctx, sub.ID)
	if got.State != subscription.StateQuotation {
		t.Fatalf("state = %s, want quotation", got.State)
	}
	if n := len(fx.host.Sales()); n != 0 {
		t.Fatalf("sales = %d, want 0", n)
	}
}

func TestConfirmDefaultCharges(t *testing.T) {
	mat := &catalog.Product{Code: "MAT", Name: "Materials", ListPrice: dec("5.00"), DefaultUOM: "unit"}
	reg := &catalog.Product{Code: "REG", Name: "Registration", ListPrice: dec("30.00"), DefaultUOM: "unit"}
	mat.ID = id.NewProductID()
	reg.ID = id.NewProductID()

	fx := newFixture(t, tuition.WithDefaultCharges(mat.ID, reg.ID))
	fx.host.AddProduct(mat)
	fx.host.AddProduct(reg)

	sub := fx.draft(t, "1")
	got := fx.advance(t, sub.ID, subscription.EventQuotation, subscription.EventConfirmed)

	sales := fx.host.Sales()
	if len(sales) != 3 {
		t.Fatalf("sales = %d, want 3", len(sales))
	}
	if len(got.SaleIDs) != 3 || len(got.InvoiceIDs) != 3 {
		t.Fatalf("links = %d sales, %d invoices, want 3 and 3", len(got.SaleIDs), len(got.InvoiceIDs))
	}

	byCode := make(map[string]*sale.Sale)
	for _, s := range sales {
		byCode[s.SubscriptionCode] = s
	}
	for _, p := range []*catalog.Product{mat, reg} {
		s, ok := byCode[got.Code+" "+p.Code]
		if !ok {
			t.Fatalf("no charge sale for %s", p.Code)
		}
		if len(s.Lines) != 1 || !s.Lines[0].Quantity.Equal(dec("1")) || !s.Lines[0].UnitPrice.Equal(p.ListPrice) {
			t.Errorf("charge sale %s lines = %+v", p.Code, s.Lines)
		}
	}
	main, ok := byCode[got.Code]
	if !ok {
		t.Fatal("no main sale")
	}
	if got.ModelSource.ID.String() != main.ID.String() {
		t.Errorf("model source = %s, want main sale %s", got.ModelSource.ID, main.ID)
	}
}

func TestConfirmPartialFailure(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sub := fx.draft(t, "1")
	fx.advance(t, sub.ID, subscription.EventQuotation)

	boom := errors.New("sales journal locked")
	fx.host.FailOn(memhost.OpPost, boom)

	_, err := fx.eng.Confirm(ctx, sub.ID)
	var cerr *tuition.ConfirmError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConfirmError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("cause not wrapped: %v", err)
	}
	if len(cerr.Sales) != 1 || len(cerr.Invoices) != 1 {
		t.Errorf("created = %d sales, %d invoices, want 1 and 1", len(cerr.Sales), len(cerr.Invoices))
	}

	got, _ := fx.eng.GetSubscription(ctx, sub.ID)
	if got.State != subscription.StateQuotation {
		t.Errorf("state = %s, want quotation", got.State)
	}
	if len(got.SaleIDs) != 0 {
		t.Errorf("subscription links %d sales after failure", len(got.SaleIDs))
	}
}

func TestConfirmMissingInvoice(t *testing.T) {
	fx := newFixture(t)
	sub := fx.draft(t, "1")
	fx.advance(t, sub.ID, subscription.EventQuotation)
	fx.host.SetInvoicing(false)

	_, err := fx.eng.Confirm(context.Background(), sub.ID)
	if !errors.Is(err, tuition.ErrMissingInvoice) {
		t.Fatalf("expected ErrMissingInvoice, got %v", err)
	}
	var cerr *tuition.ConfirmError
	if !errors.As(err, &cerr) || len(cerr.Sales) != 1 || len(cerr.Invoices) != 0 {
		t.Fatalf("unexpected confirm error: %v", err)
	}
}
