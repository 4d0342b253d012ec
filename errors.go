package tuition

import (
	"errors"
	"fmt"

	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/party"
	"github.com/xraph/tuition/pricing"
	"github.com/xraph/tuition/sale"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/sequence"
	"github.com/xraph/tuition/subscription"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tuition: not found")
	ErrAlreadyExists = errors.New("tuition: already exists")
	ErrInvalidInput  = errors.New("tuition: invalid input")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("tuition: subscription not found")
	ErrLineNotFound         = errors.New("tuition: subscription line not found")
	ErrNotEditable          = errors.New("tuition: subscription is not in draft")
	ErrNoLines              = errors.New("tuition: subscription has no lines")
	ErrSessionNotOpen       = errors.New("tuition: session is not open")

	// Workflow errors
	ErrIllegalTransition        = errors.New("tuition: illegal transition")
	ErrMissingPaymentTerm       = errors.New("tuition: subscription has no payment term")
	ErrMissingInvoice           = errors.New("tuition: no invoice found for processed sale")
	ErrUnresolvedSourceDocument = errors.New("tuition: subscription source document is not resolved")
	ErrDuplicationFailure       = errors.New("tuition: source document copy failed")
	ErrSequenceNotConfigured    = errors.New("tuition: subscription sequence is not configured")

	// Collaborator errors, re-exported so callers can match on one package.
	ErrJobNotFound       = scheduler.ErrJobNotFound
	ErrSequenceNotFound  = sequence.ErrSequenceNotFound
	ErrSaleNotFound      = sale.ErrSaleNotFound
	ErrInvoiceNotFound   = invoice.ErrInvoiceNotFound
	ErrSessionNotFound   = catalog.ErrSessionNotFound
	ErrOfferNotFound     = catalog.ErrOfferNotFound
	ErrProductNotFound   = catalog.ErrProductNotFound
	ErrPartyNotFound     = party.ErrPartyNotFound
	ErrStudentNotFound   = party.ErrStudentNotFound
	ErrPriceListNotFound = pricing.ErrPriceListNotFound

	// Store errors
	ErrStoreClosed     = errors.New("tuition: store is closed")
	ErrMigrationFailed = errors.New("tuition: migration failed")
)

// TransitionError names an edge outside the transition table.
type TransitionError struct {
	From subscription.State
	To   subscription.State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("tuition: illegal transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// ConfirmError reports a failure partway through confirmation. Sales and
// Invoices list the documents already created in the host; the subscription
// itself was not changed, so the caller owns their reconciliation.
type ConfirmError struct {
	Sales    []id.SaleID
	Invoices []id.InvoiceID
	Err      error
}

func (e *ConfirmError) Error() string {
	return fmt.Sprintf("tuition: confirmation failed after %d sale(s) and %d invoice(s): %v",
		len(e.Sales), len(e.Invoices), e.Err)
}

func (e *ConfirmError) Unwrap() error { return e.Err }

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tuition: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tuition: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tuition: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Err returns nil when empty, the single error, or the multi-error.
func (e MultiError) Err() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	}
	return e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrSequenceNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrOfferNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrPartyNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrPriceListNotFound)
}

// IsValidation returns true if the request was rejected before any side
// effect.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMissingPaymentTerm) ||
		errors.Is(err, ErrNotEditable) ||
		errors.Is(err, ErrNoLines) ||
		errors.Is(err, ErrSessionNotOpen)
}

// IsIllegalTransition returns true if the requested edge is not allowed.
func IsIllegalTransition(err error) bool {
	return errors.Is(err, ErrIllegalTransition)
}
