package tuition

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/party"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/subscription"
	"github.com/xraph/tuition/types"
)

// onConfirmed bills the subscription. For the billing party it creates one
// sale per default charge and one main sale carrying every line with a
// positive quantity, runs each through quote, confirm and process, then
// stamps and posts the resulting invoice.
//
// Validation happens before any sale exists. Once the first sale is created
// a failure returns a *ConfirmError naming what was already created; the
// subscription is left unchanged.
func (e *Engine) onConfirmed(ctx context.Context, sub *subscription.Subscription) error {
	if sub.PaymentTermID.IsNil() {
		return fmt.Errorf("%w: %s", ErrMissingPaymentTerm, label(sub))
	}

	p, err := e.billingParty(ctx, sub)
	if err != nil {
		return err
	}
	charges, err := e.chargeProducts(ctx)
	if err != nil {
		return err
	}
	mainLines, err := e.mainSaleLines(ctx, sub)
	if err != nil {
		return err
	}
	if len(mainLines) == 0 {
		return fmt.Errorf("%w: %s has no line with a positive quantity", ErrNoLines, label(sub))
	}

	run := &confirmRun{}
	for _, product := range charges {
		s := e.newSale(sub, p, sub.Code+" "+product.Code)
		s.Lines = []sale.Line{{
			ProductID:   product.ID,
			Description: product.Name,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   product.ListPrice,
			Unit:        product.DefaultUOM,
		}}
		if err := e.billSale(ctx, sub, s, run); err != nil {
			return e.confirmFailed(ctx, sub, run, err)
		}
	}

	main := e.newSale(sub, p, sub.Code)
	main.Lines = mainLines
	if err := e.billSale(ctx, sub, main, run); err != nil {
		return e.confirmFailed(ctx, sub, run, err)
	}

	for _, saleID := range run.sales {
		sub.AddSale(saleID)
	}
	for _, invID := range run.invoices {
		sub.AddInvoice(invID)
	}
	sub.ModelSource = document.Ref{Type: document.TypeSale, ID: main.ID}
	return nil
}

// confirmRun tracks the documents created by one confirmation.
type confirmRun struct {
	sales    []id.SaleID
	invoices []id.InvoiceID
}

func (e *Engine) confirmFailed(ctx context.Context, sub *subscription.Subscription, run *confirmRun, err error) error {
	cerr := &ConfirmError{Sales: run.sales, Invoices: run.invoices, Err: err}
	e.logger.Error("subscription confirmation failed",
		"subscription", sub.ID.String(),
		"code", sub.Code,
		"sales", len(run.sales),
		"invoices", len(run.invoices),
		"error", err,
	)
	e.plugins.EmitConfirmFailed(ctx, sub, cerr)
	return cerr
}

// billSale creates s and runs it through the sales pipeline.
func (e *Engine) billSale(ctx context.Context, sub *subscription.Subscription, s *sale.Sale, run *confirmRun) error {
	if err := e.sales.CreateSale(ctx, s); err != nil {
		return fmt.Errorf("create sale: %w", err)
	}
	run.sales = append(run.sales, s.ID)

	invID, err := e.processSale(ctx, sub, s.ID)
	if !invID.IsNil() {
		run.invoices = append(run.invoices, invID)
	}
	return err
}

// processSale quotes, confirms and processes a sale, then stamps its
// invoice with the sale's subscription code and date and posts it. The
// invoice ID is returned as soon as it is known.
func (e *Engine) processSale(ctx context.Context, sub *subscription.Subscription, saleID id.SaleID) (id.InvoiceID, error) {
	if err := e.sales.Quote(ctx, saleID); err != nil {
		return id.Nil, fmt.Errorf("quote sale %s: %w", saleID, err)
	}
	if err := e.sales.Confirm(ctx, saleID); err != nil {
		return id.Nil, fmt.Errorf("confirm sale %s: %w", saleID, err)
	}
	if err := e.sales.Process(ctx, saleID); err != nil {
		return id.Nil, fmt.Errorf("process sale %s: %w", saleID, err)
	}
	s, err := e.sales.GetSale(ctx, saleID)
	if err != nil {
		return id.Nil, err
	}
	e.plugins.EmitSaleProcessed(ctx, sub, s)

	inv, err := e.invoices.FindForSale(ctx, saleID)
	if err != nil {
		return id.Nil, fmt.Errorf("find invoice for sale %s: %w", saleID, err)
	}
	if inv == nil {
		return id.Nil, fmt.Errorf("%w: sale %s", ErrMissingInvoice, saleID)
	}
	if err := e.invoices.Stamp(ctx, inv.ID, s.SubscriptionCode, s.SaleDate); err != nil {
		return inv.ID, fmt.Errorf("stamp invoice %s: %w", inv.ID, err)
	}
	if err := e.invoices.Post(ctx, inv.ID); err != nil {
		return inv.ID, fmt.Errorf("post invoice %s: %w", inv.ID, err)
	}
	if posted, err := e.invoices.GetInvoice(ctx, inv.ID); err == nil {
		inv = posted
	}
	e.plugins.EmitInvoicePosted(ctx, sub, inv)
	return inv.ID, nil
}

// billingParty is the subscriptor when invoicing by subscriptor, otherwise
// the party behind the student.
func (e *Engine) billingParty(ctx context.Context, sub *subscription.Subscription) (*party.Party, error) {
	partyID := sub.SubscriptorID
	if sub.InvoiceMethod == subscription.InvoiceByStudent {
		student, err := e.parties.GetStudent(ctx, sub.StudentID)
		if err != nil {
			return nil, fmt.Errorf("student of %s: %w", label(sub), err)
		}
		partyID = student.PartyID
	}
	p, err := e.parties.GetParty(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("billing party of %s: %w", label(sub), err)
	}
	return p, nil
}

func (e *Engine) chargeProducts(ctx context.Context) ([]*catalog.Product, error) {
	products := make([]*catalog.Product, 0, len(e.defaultCharges))
	for _, productID := range e.defaultCharges {
		p, err := e.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("default charge %s: %w", productID, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// mainSaleLines maps subscription lines to sale lines, skipping lines whose
// quantity is not positive.
func (e *Engine) mainSaleLines(ctx context.Context, sub *subscription.Subscription) ([]sale.Line, error) {
	var lines []sale.Line
	for _, l := range sub.Lines {
		if !l.Quantity.IsPositive() {
			continue
		}
		offer, product, err := e.offerFor(ctx, l.SessionID)
		if err != nil {
			return nil, err
		}
		unit := l.UOM
		if unit == "" {
			unit = product.DefaultUOM
		}
		lines = append(lines, sale.Line{
			ProductID:   product.ID,
			Description: offer.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Unit:        unit,
		})
	}
	return lines, nil
}

func (e *Engine) newSale(sub *subscription.Subscription, p *party.Party, code string) *sale.Sale {
	s := &sale.Sale{
		CompanyID:        sub.CompanyID,
		PartyID:          p.ID,
		PaymentTermID:    sub.PaymentTermID,
		PriceListID:      sub.PriceListID,
		Currency:         sub.Currency,
		SaleDate:         types.Date(e.now()),
		Description:      sub.Description,
		SubscriptionCode: code,
		State:            sale.StateDraft,
	}
	if a := p.AddressGet(party.AddressInvoice); a != nil {
		s.InvoiceAddressID = a.ID
	}
	if a := p.AddressGet(party.AddressDelivery); a != nil {
		s.ShipmentAddressID = a.ID
	}
	return s
}

func label(sub *subscription.Subscription) string {
	if sub.Code != "" {
		return sub.Code
	}
	return sub.ID.String()
}
