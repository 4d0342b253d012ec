package pricing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/pricing"
)

type lists map[string]*pricing.PriceList

func (l lists) GetPriceList(_ context.Context, plID id.PriceListID) (*pricing.PriceList, error) {
	if pl, ok := l[plID.String()]; ok {
		return pl, nil
	}
	return nil, pricing.ErrPriceListNotFound
}

func TestListPricer(t *testing.T) {
	product := &catalog.Product{ID: id.NewProductID(), Code: "PY101", Name: "Python", ListPrice: decimal.RequireFromString("20.00")}
	other := id.NewProductID()

	discount := &pricing.PriceList{
		ID: id.NewPriceListID(),
		Rules: []pricing.Rule{
			{ProductID: other, Multiplier: decimal.RequireFromString("0.5")},
			{MinQuantity: decimal.NewFromInt(10), Multiplier: decimal.RequireFromString("0.8")},
			{Surcharge: decimal.RequireFromString("1.50")},
		},
	}
	src := lists{discount.ID.String(): discount}
	pricer := pricing.NewListPricer(src)
	ctx := context.Background()

	tests := []struct {
		name string
		qty  int64
		pc   pricing.Context
		want string
	}{
		{"no price list", 1, pricing.Context{}, "20.00"},
		{"surcharge rule", 1, pricing.Context{PriceListID: discount.ID}, "21.50"},
		{"volume rule", 12, pricing.Context{PriceListID: discount.ID}, "16.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pricer.SalePrice(ctx, product, decimal.NewFromInt(tt.qty), tt.pc)
			if err != nil {
				t.Fatalf("SalePrice: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("SalePrice = %s, want %s", got, tt.want)
			}
		})
	}

	_, err := pricer.SalePrice(ctx, product, decimal.NewFromInt(1), pricing.Context{PriceListID: id.NewPriceListID()})
	if !errors.Is(err, pricing.ErrPriceListNotFound) {
		t.Errorf("expected ErrPriceListNotFound, got %v", err)
	}
}
