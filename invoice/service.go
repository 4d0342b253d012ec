package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/tuition/id"
)

var (
	ErrInvoiceNotFound = errors.New("tuition: invoice not found")
	ErrNotDraft        = errors.New("tuition: invoice is not a draft")
)

// Service is the invoice side of the host's order-to-cash pipeline.
type Service interface {
	// FindForSale returns the invoice generated by a sale, or nil when the
	// sale has not produced one.
	FindForSale(ctx context.Context, saleID id.SaleID) (*Invoice, error)
	// Stamp writes the reference and invoice date of a draft invoice.
	Stamp(ctx context.Context, invID id.InvoiceID, reference string, date time.Time) error
	Post(ctx context.Context, invID id.InvoiceID) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
}
