// Package pricing computes sale prices for products under a pricing context.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/id"
)

// ErrPriceListNotFound is returned when a price list does not exist.
var ErrPriceListNotFound = errors.New("tuition: price list not found")

// Context carries what a price depends on besides product and quantity.
type Context struct {
	Currency    string         `json:"currency"`
	PriceListID id.PriceListID `json:"price_list_id"`
	Date        time.Time      `json:"date"`
	PartyID     id.PartyID     `json:"party_id"`
	UOM         string         `json:"uom"`
}

// Pricer returns the unit sale price of a product.
type Pricer interface {
	SalePrice(ctx context.Context, product *catalog.Product, quantity decimal.Decimal, pc Context) (decimal.Decimal, error)
}

// Rule adjusts the list price. A rule with a nil ProductID matches every
// product. The resulting price is ListPrice*Multiplier + Surcharge.
type Rule struct {
	ProductID   id.ProductID    `json:"product_id"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	Surcharge   decimal.Decimal `json:"surcharge"`
}

func (r Rule) matches(productID id.ProductID, quantity decimal.Decimal) bool {
	if !r.ProductID.IsNil() && r.ProductID.String() != productID.String() {
		return false
	}
	return quantity.GreaterThanOrEqual(r.MinQuantity)
}

func (r Rule) apply(listPrice decimal.Decimal) decimal.Decimal {
	mult := r.Multiplier
	if mult.IsZero() {
		mult = decimal.NewFromInt(1)
	}
	return listPrice.Mul(mult).Add(r.Surcharge)
}

// PriceList is an ordered list of rules; the first matching rule wins.
type PriceList struct {
	ID    id.PriceListID `json:"id"`
	Name  string         `json:"name"`
	Rules []Rule         `json:"rules"`
}

// Price returns the price for product at quantity, or the list price when
// no rule matches.
func (pl *PriceList) Price(product *catalog.Product, quantity decimal.Decimal) decimal.Decimal {
	for _, r := range pl.Rules {
		if r.matches(product.ID, quantity) {
			return r.apply(product.ListPrice)
		}
	}
	return product.ListPrice
}

// PriceListSource resolves price lists.
type PriceListSource interface {
	GetPriceList(ctx context.Context, priceListID id.PriceListID) (*PriceList, error)
}

// ListPricer prices products from their list price adjusted by the context's
// price list.
type ListPricer struct {
	lists PriceListSource
}

// NewListPricer creates a ListPricer. lists may be nil, in which case list
// prices are returned unchanged.
func NewListPricer(lists PriceListSource) *ListPricer {
	return &ListPricer{lists: lists}
}

// SalePrice implements Pricer.
func (p *ListPricer) SalePrice(ctx context.Context, product *catalog.Product, quantity decimal.Decimal, pc Context) (decimal.Decimal, error) {
	if pc.PriceListID.IsNil() || p.lists == nil {
		return product.ListPrice, nil
	}
	pl, err := p.lists.GetPriceList(ctx, pc.PriceListID)
	if err != nil {
		return decimal.Zero, err
	}
	return pl.Price(product, quantity), nil
}
