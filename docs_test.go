package tuition_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/host/memhost"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/party"
	"github.com/xraph/tuition/store/memory"
	"github.com/xraph/tuition/subscription"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// memhost stands in for the ERP: sales, invoicing, parties and catalog
		erp := memhost.New()

		eng, err := tuition.New(store, tuition.Host{
			Sales:    erp,
			Invoices: erp,
			Parties:  erp,
			Catalog:  erp,
		},
			tuition.WithLogger(slog.Default()),
			tuition.WithSchedulerLoop(false), // jobs are run by hand below
		)
		if err != nil {
			t.Fatal(err)
		}

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Shutdown(ctx)

		// Master data
		product := erp.AddProduct(&catalog.Product{
			Code:       "PY",
			Name:       "Python course",
			ListPrice:  decimal.RequireFromString("120.00"),
			DefaultUOM: "unit",
		})
		offer := erp.AddOffer(&catalog.Offer{Name: "Python I", ProductID: product.ID, NumberCalls: 2})
		session := erp.AddSession(&catalog.Session{
			Name:    "Python I - Evening",
			OfferID: offer.ID,
			State:   catalog.SessionOpen,
		})
		payer := erp.AddParty(&party.Party{Name: "Jane Doe"})
		student := erp.AddStudent(&party.Student{Name: "Jane Doe", PartyID: payer.ID})

		// Create a subscription
		sub := &subscription.Subscription{
			Description:   "Python for Jane",
			SubscriptorID: payer.ID,
			StudentID:     student.ID,
			PaymentTermID: id.NewPaymentTermID(),
			Currency:      "EUR",
		}
		if err := eng.CreateSubscription(ctx, sub); err != nil {
			t.Fatal(err)
		}
		if _, err := eng.AddLine(ctx, sub.ID, session.ID, nil); err != nil {
			t.Fatal(err)
		}

		// Quote, confirm (bills the sale and posts the invoice) and schedule
		for _, step := range []func(context.Context, id.SubscriptionID) (*subscription.Subscription, error){
			eng.Quotation,
			eng.Confirm,
			eng.Process,
		} {
			if _, err := step(ctx, sub.ID); err != nil {
				t.Fatal(err)
			}
		}

		// Run the recurring copies
		for range 2 {
			if _, err := eng.Runner().RunDue(ctx); err != nil {
				t.Fatal(err)
			}
		}

		entries, err := eng.History(ctx, sub.ID, history.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		t.Logf("history: %d entries", len(entries))
	})

	t.Run("ErrorHandling", func(t *testing.T) {
		store := memory.New()
		erp := memhost.New()
		eng, err := tuition.New(store, tuition.Host{Sales: erp, Invoices: erp, Parties: erp, Catalog: erp})
		if err != nil {
			t.Fatal(err)
		}

		_, err = eng.GetSubscription(context.Background(), id.NewSubscriptionID())
		if !tuition.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}
