// Package invoice models customer invoices produced by processed sales.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/types"
)

type State string

const (
	StateDraft  State = "draft"
	StatePosted State = "posted"
	StatePaid   State = "paid"
	StateCancel State = "cancel"
)

type Invoice struct {
	types.Entity
	ID          id.InvoiceID    `json:"id"`
	SaleID      id.SaleID       `json:"sale_id"`
	PartyID     id.PartyID      `json:"party_id"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference,omitempty"`
	InvoiceDate time.Time       `json:"invoice_date"`
	State       State           `json:"state"`
	Total       decimal.Decimal `json:"total"`
	Lines       []LineItem      `json:"lines"`
}

type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// Amount is the invoice total in its currency.
func (inv *Invoice) Amount() types.Money {
	return types.New(inv.Total, inv.Currency)
}
