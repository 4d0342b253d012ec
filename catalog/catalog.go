// Package catalog describes what a subscription line can reference: training
// sessions, the offers they instantiate, and the products sold for them.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
)

// Catalog lookup errors.
var (
	ErrSessionNotFound = errors.New("tuition: session not found")
	ErrOfferNotFound   = errors.New("tuition: offer not found")
	ErrProductNotFound = errors.New("tuition: product not found")
)

// Product is a sellable item.
type Product struct {
	ID         id.ProductID    `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	ListPrice  decimal.Decimal `json:"list_price"`
	DefaultUOM string          `json:"default_uom"`
	SaleUOM    string          `json:"sale_uom,omitempty"`
}

// RecName is the display name used on documents: "[CODE] Name".
func (p *Product) RecName() string {
	if p.Code == "" {
		return p.Name
	}
	return "[" + p.Code + "] " + p.Name
}

// Offer is a sellable training product carrying recurrence defaults.
type Offer struct {
	ID             id.OfferID             `json:"id"`
	Name           string                 `json:"name"`
	ProductID      id.ProductID           `json:"product_id"`
	IntervalNumber int                    `json:"interval_number"`
	IntervalType   scheduler.IntervalType `json:"interval_type"`
	NumberCalls    int                    `json:"number_calls"`
}

// ApplyDefaults fills unset recurrence defaults.
func (o *Offer) ApplyDefaults() {
	if o.IntervalNumber == 0 {
		o.IntervalNumber = 1
	}
	if o.IntervalType == "" {
		o.IntervalType = scheduler.IntervalMonths
	}
	if o.NumberCalls == 0 {
		o.NumberCalls = 1
	}
}

// SessionState is the lifecycle state of a session.
type SessionState string

const (
	SessionDraft  SessionState = "draft"
	SessionOpen   SessionState = "open"
	SessionClosed SessionState = "closed"
)

// Session is a scheduled instance of an offer.
type Session struct {
	ID        id.SessionID `json:"id"`
	Name      string       `json:"name"`
	OfferID   id.OfferID   `json:"offer_id"`
	State     SessionState `json:"state"`
	StartDate time.Time    `json:"start_date"`
}

// Open reports whether lines may reference the session.
func (s *Session) Open() bool { return s.State == SessionOpen }

// Catalog resolves catalog records.
type Catalog interface {
	GetSession(ctx context.Context, sessionID id.SessionID) (*Session, error)
	GetOffer(ctx context.Context, offerID id.OfferID) (*Offer, error)
	GetProduct(ctx context.Context, productID id.ProductID) (*Product, error)
}
