// Package memhost is an in-process stand-in for the ERP host the engine
// drives: it keeps sales, invoices, the training catalog, parties and price
// lists in memory and runs the order-to-cash pipeline synchronously.
//
// Any operation can be made to fail with FailOn, which is how tests exercise
// the engine's partial-failure paths.
package memhost

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/party"
	"github.com/xraph/tuition/pricing"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/types"
)

// Compile-time interface checks.
var (
	_ sale.Service            = (*Host)(nil)
	_ invoice.Service         = (*Host)(nil)
	_ catalog.Catalog         = (*Host)(nil)
	_ party.Directory         = (*Host)(nil)
	_ pricing.PriceListSource = (*Host)(nil)
)

// Op names a host operation that can be forced to fail.
type Op string

const (
	OpCreateSale  Op = "create_sale"
	OpQuote       Op = "quote"
	OpConfirm     Op = "confirm"
	OpProcess     Op = "process"
	OpCopySale    Op = "copy_sale"
	OpFindInvoice Op = "find_invoice"
	OpStamp       Op = "stamp"
	OpPost        Op = "post"
)

// Referencer reports whether a document is still linked from elsewhere.
// Store backends implement it.
type Referencer interface {
	IsDocumentReferenced(ctx context.Context, docID id.AnyID) (bool, error)
}

// Host holds the in-memory ERP state.
type Host struct {
	mu sync.RWMutex

	sales      map[string]*sale.Sale
	invoices   map[string]*invoice.Invoice
	saleInvIdx map[string]string

	sessions   map[string]*catalog.Session
	offers     map[string]*catalog.Offer
	products   map[string]*catalog.Product
	parties    map[string]*party.Party
	students   map[string]*party.Student
	priceLists map[string]*pricing.PriceList

	failures  map[Op]error
	invoicing bool
	refs      Referencer
	now       func() time.Time
}

// Option configures a Host.
type Option func(*Host)

// WithClock overrides the time source used for sale dates.
func WithClock(now func() time.Time) Option {
	return func(h *Host) { h.now = now }
}

// WithReferencer guards DeleteSale against sales still linked from
// subscriptions.
func WithReferencer(r Referencer) Option {
	return func(h *Host) { h.refs = r }
}

// New creates an empty host. Processing a sale generates a draft invoice.
func New(opts ...Option) *Host {
	h := &Host{
		sales:      make(map[string]*sale.Sale),
		invoices:   make(map[string]*invoice.Invoice),
		saleInvIdx: make(map[string]string),
		sessions:   make(map[string]*catalog.Session),
		offers:     make(map[string]*catalog.Offer),
		products:   make(map[string]*catalog.Product),
		parties:    make(map[string]*party.Party),
		students:   make(map[string]*party.Student),
		priceLists: make(map[string]*pricing.PriceList),
		failures:   make(map[Op]error),
		invoicing:  true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FailOn makes every later call of op return err. A nil err clears it.
func (h *Host) FailOn(op Op, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failures, op)
		return
	}
	h.failures[op] = err
}

// SetInvoicing controls whether processing a sale generates an invoice.
func (h *Host) SetInvoicing(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invoicing = enabled
}

func (h *Host) fail(op Op) error {
	if err, ok := h.failures[op]; ok {
		return fmt.Errorf("memhost: %s: %w", op, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Master data
// ──────────────────────────────────────────────────

// AddProduct stores a product, assigning an ID when unset.
func (h *Host) AddProduct(p *catalog.Product) *catalog.Product {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p.ID.IsNil() {
		p.ID = id.NewProductID()
	}
	c := *p
	h.products[p.ID.String()] = &c
	return p
}

// AddOffer stores an offer with its recurrence defaults applied.
func (h *Host) AddOffer(o *catalog.Offer) *catalog.Offer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if o.ID.IsNil() {
		o.ID = id.NewOfferID()
	}
	o.ApplyDefaults()
	c := *o
	h.offers[o.ID.String()] = &c
	return o
}

// AddSession stores a session.
func (h *Host) AddSession(s *catalog.Session) *catalog.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.ID.IsNil() {
		s.ID = id.NewSessionID()
	}
	c := *s
	h.sessions[s.ID.String()] = &c
	return s
}

// AddParty stores a party.
func (h *Host) AddParty(p *party.Party) *party.Party {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p.ID.IsNil() {
		p.ID = id.NewPartyID()
	}
	c := *p
	c.Addresses = append([]party.Address(nil), p.Addresses...)
	h.parties[p.ID.String()] = &c
	return p
}

// AddStudent stores a student.
func (h *Host) AddStudent(s *party.Student) *party.Student {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.ID.IsNil() {
		s.ID = id.NewStudentID()
	}
	c := *s
	h.students[s.ID.String()] = &c
	return s
}

// AddPriceList stores a price list.
func (h *Host) AddPriceList(pl *pricing.PriceList) *pricing.PriceList {
	h.mu.Lock()
	defer h.mu.Unlock()
	if pl.ID.IsNil() {
		pl.ID = id.NewPriceListID()
	}
	c := *pl
	c.Rules = append([]pricing.Rule(nil), pl.Rules...)
	h.priceLists[pl.ID.String()] = &c
	return pl
}

func (h *Host) GetSession(_ context.Context, sessionID id.SessionID) (*catalog.Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.sessions[sessionID.String()]; ok {
		c := *s
		return &c, nil
	}
	return nil, catalog.ErrSessionNotFound
}

func (h *Host) GetOffer(_ context.Context, offerID id.OfferID) (*catalog.Offer, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if o, ok := h.offers[offerID.String()]; ok {
		c := *o
		return &c, nil
	}
	return nil, catalog.ErrOfferNotFound
}

func (h *Host) GetProduct(_ context.Context, productID id.ProductID) (*catalog.Product, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if p, ok := h.products[productID.String()]; ok {
		c := *p
		return &c, nil
	}
	return nil, catalog.ErrProductNotFound
}

func (h *Host) GetParty(_ context.Context, partyID id.PartyID) (*party.Party, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if p, ok := h.parties[partyID.String()]; ok {
		c := *p
		c.Addresses = append([]party.Address(nil), p.Addresses...)
		return &c, nil
	}
	return nil, party.ErrPartyNotFound
}

func (h *Host) GetStudent(_ context.Context, studentID id.StudentID) (*party.Student, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.students[studentID.String()]; ok {
		c := *s
		return &c, nil
	}
	return nil, party.ErrStudentNotFound
}

func (h *Host) GetPriceList(_ context.Context, priceListID id.PriceListID) (*pricing.PriceList, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if pl, ok := h.priceLists[priceListID.String()]; ok {
		c := *pl
		c.Rules = append([]pricing.Rule(nil), pl.Rules...)
		return &c, nil
	}
	return nil, pricing.ErrPriceListNotFound
}

// ──────────────────────────────────────────────────
// Sales
// ──────────────────────────────────────────────────

func (h *Host) CreateSale(_ context.Context, s *sale.Sale) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.fail(OpCreateSale); err != nil {
		return err
	}
	if s.ID.IsNil() {
		s.ID = id.NewSaleID()
	}
	if s.CreatedAt.IsZero() {
		s.Entity = types.NewEntity()
	}
	if s.State == "" {
		s.State = sale.StateDraft
	}
	if s.SaleDate.IsZero() {
		s.SaleDate = h.now()
	}
	for i := range s.Lines {
		if s.Lines[i].ID.IsNil() {
			s.Lines[i].ID = id.NewSaleLineID()
		}
	}
	h.sales[s.ID.String()] = s.Clone()
	return nil
}

func (h *Host) GetSale(_ context.Context, saleID id.SaleID) (*sale.Sale, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.sales[saleID.String()]; ok {
		return s.Clone(), nil
	}
	return nil, sale.ErrSaleNotFound
}

func (h *Host) Quote(_ context.Context, saleID id.SaleID) error {
	return h.advance(OpQuote, saleID, sale.StateDraft, sale.StateQuotation)
}

func (h *Host) Confirm(_ context.Context, saleID id.SaleID) error {
	return h.advance(OpConfirm, saleID, sale.StateQuotation, sale.StateConfirmed)
}

// Process moves a confirmed sale to processing and generates its draft
// invoice.
func (h *Host) Process(_ context.Context, saleID id.SaleID) error {
	if err := h.advance(OpProcess, saleID, sale.StateConfirmed, sale.StateProcessing); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.invoicing {
		return nil
	}
	s := h.sales[saleID.String()]
	inv := &invoice.Invoice{
		Entity:   types.NewEntity(),
		ID:       id.NewInvoiceID(),
		SaleID:   s.ID,
		PartyID:  s.PartyID,
		Currency: s.Currency,
		State:    invoice.StateDraft,
		Total:    s.Total(),
	}
	for _, l := range s.Lines {
		inv.Lines = append(inv.Lines, invoice.LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Amount:      l.Amount(),
		})
	}
	h.invoices[inv.ID.String()] = inv
	h.saleInvIdx[s.ID.String()] = inv.ID.String()
	return nil
}

func (h *Host) advance(op Op, saleID id.SaleID, from, to sale.State) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.fail(op); err != nil {
		return err
	}
	s, ok := h.sales[saleID.String()]
	if !ok {
		return sale.ErrSaleNotFound
	}
	if s.State != from {
		return fmt.Errorf("%w: %s is %s, want %s", sale.ErrInvalidState, saleID, s.State, from)
	}
	s.State = to
	s.Touch()
	return nil
}

// CopySale duplicates a sale with fresh identifiers and today's date.
func (h *Host) CopySale(_ context.Context, saleID id.SaleID, defaults sale.CopyDefaults) (*sale.Sale, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.fail(OpCopySale); err != nil {
		return nil, err
	}
	src, ok := h.sales[saleID.String()]
	if !ok {
		return nil, sale.ErrSaleNotFound
	}
	c := src.Clone()
	c.ID = id.NewSaleID()
	c.Entity = types.NewEntity()
	c.SaleDate = h.now()
	c.State = defaults.State
	if c.State == "" {
		c.State = sale.StateDraft
	}
	if defaults.SubscriptionCode != "" {
		c.SubscriptionCode = defaults.SubscriptionCode
	}
	for i := range c.Lines {
		c.Lines[i].ID = id.NewSaleLineID()
	}
	h.sales[c.ID.String()] = c
	return c.Clone(), nil
}

// DeleteSale removes a sale that no subscription references.
func (h *Host) DeleteSale(ctx context.Context, saleID id.SaleID) error {
	if h.refs != nil {
		ok, err := h.refs.IsDocumentReferenced(ctx, saleID)
		if err != nil {
			return err
		}
		if ok {
			return sale.ErrSaleReferenced
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sales[saleID.String()]; !ok {
		return sale.ErrSaleNotFound
	}
	delete(h.sales, saleID.String())
	return nil
}

// Sales returns every sale in creation order.
func (h *Host) Sales() []*sale.Sale {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*sale.Sale, 0, len(h.sales))
	for _, s := range h.sales {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func (h *Host) FindForSale(_ context.Context, saleID id.SaleID) (*invoice.Invoice, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := h.fail(OpFindInvoice); err != nil {
		return nil, err
	}
	invID, ok := h.saleInvIdx[saleID.String()]
	if !ok {
		return nil, nil
	}
	return cloneInvoice(h.invoices[invID]), nil
}

func (h *Host) Stamp(_ context.Context, invID id.InvoiceID, reference string, date time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.fail(OpStamp); err != nil {
		return err
	}
	inv, ok := h.invoices[invID.String()]
	if !ok {
		return invoice.ErrInvoiceNotFound
	}
	if inv.State != invoice.StateDraft {
		return invoice.ErrNotDraft
	}
	inv.Reference = reference
	inv.InvoiceDate = date
	inv.Touch()
	return nil
}

func (h *Host) Post(_ context.Context, invID id.InvoiceID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.fail(OpPost); err != nil {
		return err
	}
	inv, ok := h.invoices[invID.String()]
	if !ok {
		return invoice.ErrInvoiceNotFound
	}
	if inv.State != invoice.StateDraft {
		return invoice.ErrNotDraft
	}
	inv.State = invoice.StatePosted
	inv.Touch()
	return nil
}

func (h *Host) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if inv, ok := h.invoices[invID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, invoice.ErrInvoiceNotFound
}

// Invoices returns every invoice ordered by ID.
func (h *Host) Invoices() []*invoice.Invoice {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*invoice.Invoice, 0, len(h.invoices))
	for _, inv := range h.invoices {
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	c.Lines = append([]invoice.LineItem(nil), inv.Lines...)
	return &c
}
