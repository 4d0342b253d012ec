package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/subscription"
)

// CreateSubscriptionRequest is the body of POST /subscriptions. Lines are
// priced from their sessions and stored together with the header.
type CreateSubscriptionRequest struct {
	Description    string                     `json:"description"`
	Date           *time.Time                 `json:"date,omitempty"`
	CompanyID      string                     `json:"company_id,omitempty"`
	SubscriptorID  string                     `json:"subscriptor_id"`
	StudentID      string                     `json:"student_id"`
	InvoiceMethod  subscription.InvoiceMethod `json:"invoice_method,omitempty"`
	Currency       string                     `json:"currency"`
	PriceListID    string                     `json:"price_list_id,omitempty"`
	PaymentTermID  string                     `json:"payment_term_id,omitempty"`
	MediaContact   subscription.MediaContact  `json:"media_contact,omitempty"`
	SalesmanID     string                     `json:"salesman_id,omitempty"`
	IntervalNumber int                        `json:"interval_number,omitempty"`
	IntervalType   scheduler.IntervalType     `json:"interval_type,omitempty"`
	NumberCalls    int                        `json:"number_calls,omitempty"`
	NextCall       *time.Time                 `json:"next_call,omitempty"`
	Lines          []AddLineRequest           `json:"lines,omitempty"`
}

// AddLineRequest is the body of POST /subscriptions/:id/lines.
type AddLineRequest struct {
	SessionID string           `json:"session_id"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
}

// CopyRequest is the body of POST /subscriptions/:id/copy.
type CopyRequest struct {
	Date *time.Time `json:"date,omitempty"`
}

// ListResponse wraps collection results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// HistoryResponse is the body of GET /subscriptions/:id/history.
type HistoryResponse = ListResponse[*history.Entry]

// SubscriptionListResponse is the body of GET /subscriptions.
type SubscriptionListResponse = ListResponse[*subscription.Subscription]

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Store     string `json:"store"`
}

// toSubscription converts the request into a draft. Every failure is a
// field-level validation error.
func (r *CreateSubscriptionRequest) toSubscription() (*subscription.Subscription, error) {
	var p fieldParser
	sub := &subscription.Subscription{
		Description:    r.Description,
		CompanyID:      p.optional("company_id", r.CompanyID),
		SubscriptorID:  p.required("subscriptor_id", r.SubscriptorID),
		StudentID:      p.required("student_id", r.StudentID),
		InvoiceMethod:  r.InvoiceMethod,
		Currency:       r.Currency,
		PriceListID:    p.optional("price_list_id", r.PriceListID),
		PaymentTermID:  p.optional("payment_term_id", r.PaymentTermID),
		MediaContact:   r.MediaContact,
		SalesmanID:     p.optional("salesman_id", r.SalesmanID),
		IntervalNumber: r.IntervalNumber,
		IntervalType:   r.IntervalType,
		NumberCalls:    r.NumberCalls,
	}
	if r.Date != nil {
		sub.Date = *r.Date
	}
	if r.NextCall != nil {
		sub.NextCall = *r.NextCall
	}
	return sub, p.err.Err()
}

func (r *AddLineRequest) parse() (id.SessionID, error) {
	var p fieldParser
	sessionID := p.required("session_id", r.SessionID)
	return sessionID, p.err.Err()
}

// toLine builds an unpriced line; quantity defaults to 1.
func (r *AddLineRequest) toLine() (*subscription.Line, error) {
	sessionID, err := r.parse()
	if err != nil {
		return nil, err
	}
	line := subscription.NewLine(sessionID)
	if r.Quantity != nil {
		line.Quantity = *r.Quantity
	}
	return line, nil
}
