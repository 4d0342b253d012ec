package sale

import (
	"context"
	"errors"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/id"
)

var (
	ErrSaleNotFound   = errors.New("tuition: sale not found")
	ErrInvalidState   = errors.New("tuition: sale is not in the required state")
	ErrSaleReferenced = errors.New("tuition: sale is referenced by a subscription")
)

// CopyDefaults are the values forced onto a duplicated sale.
type CopyDefaults struct {
	State            State
	SubscriptionCode string
}

// Service is the sales side of the host's order-to-cash pipeline.
type Service interface {
	CreateSale(ctx context.Context, s *Sale) error
	GetSale(ctx context.Context, saleID id.SaleID) (*Sale, error)
	Quote(ctx context.Context, saleID id.SaleID) error
	Confirm(ctx context.Context, saleID id.SaleID) error
	Process(ctx context.Context, saleID id.SaleID) error
	CopySale(ctx context.Context, saleID id.SaleID, defaults CopyDefaults) (*Sale, error)
}

// NewCopier adapts a Service to the document registry so recurring
// subscriptions can duplicate sale orders.
func NewCopier(svc Service) document.Copier {
	return document.CopierFunc(func(ctx context.Context, docID id.ID, ov document.Overrides) (id.ID, error) {
		st := State(ov.State)
		if st == "" {
			st = StateDraft
		}
		s, err := svc.CopySale(ctx, docID, CopyDefaults{State: st, SubscriptionCode: ov.SubscriptionCode})
		if err != nil {
			return id.Nil, err
		}
		return s.ID, nil
	})
}
