// Package sale models sale orders created on behalf of subscriptions and the
// sales service that moves them through quotation, confirmation and
// processing.
package sale

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/types"
)

type State string

const (
	StateDraft      State = "draft"
	StateQuotation  State = "quotation"
	StateConfirmed  State = "confirmed"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateCancel     State = "cancel"
)

type Sale struct {
	types.Entity
	ID                id.SaleID        `json:"id"`
	CompanyID         id.PartyID       `json:"company_id"`
	PartyID           id.PartyID       `json:"party_id"`
	PaymentTermID     id.PaymentTermID `json:"payment_term_id"`
	PriceListID       id.PriceListID   `json:"price_list_id"`
	Currency          string           `json:"currency"`
	SaleDate          time.Time        `json:"sale_date"`
	InvoiceAddressID  id.AddressID     `json:"invoice_address_id"`
	ShipmentAddressID id.AddressID     `json:"shipment_address_id"`
	Description       string           `json:"description"`
	SubscriptionCode  string           `json:"subscription_code"`
	State             State            `json:"state"`
	Lines             []Line           `json:"lines"`
}

type Line struct {
	ID          id.SaleLineID   `json:"id"`
	ProductID   id.ProductID    `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        string          `json:"unit"`
}

// Amount returns quantity times unit price.
func (l Line) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Total returns the untaxed total of the sale.
func (s *Sale) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

// Clone returns a deep copy of the sale.
func (s *Sale) Clone() *Sale {
	c := *s
	c.Lines = append([]Line(nil), s.Lines...)
	return &c
}
