package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/types"
)

// Model is the document type of a subscription, used as the scheduled job model.
const Model = string(document.TypeSubscription)

type InvoiceMethod string

const (
	InvoiceBySubscriptor InvoiceMethod = "by_subscriptor"
	InvoiceByStudent     InvoiceMethod = "by_student"
)

type MediaContact string

const (
	MediaNone        MediaContact = ""
	MediaWeb         MediaContact = "web"
	MediaYellowPages MediaContact = "yellow_pages"
	MediaRecommended MediaContact = "recommended"
	MediaFlyer       MediaContact = "volante"
	MediaManta17     MediaContact = "manta17"
	MediaBanners     MediaContact = "mantas"
	MediaPhoneCall   MediaContact = "llamada"
	MediaOther       MediaContact = "other"
)

type Subscription struct {
	types.Entity
	ID            id.SubscriptionID `json:"id"`
	Code          string            `json:"code,omitempty"`
	Description   string            `json:"description"`
	Date          time.Time         `json:"date"`
	CompanyID     id.PartyID        `json:"company_id"`
	SubscriptorID id.PartyID        `json:"subscriptor_id"`
	StudentID     id.StudentID      `json:"student_id"`
	InvoiceMethod InvoiceMethod     `json:"invoice_method"`
	State         State             `json:"state"`
	Currency      string            `json:"currency"`
	PriceListID   id.PriceListID    `json:"price_list_id"`
	PaymentTermID id.PaymentTermID  `json:"payment_term_id"`
	MediaContact  MediaContact      `json:"media_contact,omitempty"`
	SalesmanID    id.EmployeeID     `json:"salesman_id"`
	User          id.UserID         `json:"user"`
	RequestUser   id.UserID         `json:"request_user"`

	IntervalNumber int                    `json:"interval_number"`
	IntervalType   scheduler.IntervalType `json:"interval_type"`
	NextCall       time.Time              `json:"next_call"`
	NumberCalls    int                    `json:"number_calls"`

	ModelSource document.Ref   `json:"model_source"`
	JobID       id.JobID       `json:"job_id"`
	SaleIDs     []id.SaleID    `json:"sale_ids"`
	InvoiceIDs  []id.InvoiceID `json:"invoice_ids"`

	// Total caches TotalAmount for listings. It is rewritten on every save.
	Total  decimal.Decimal `json:"total"`
	Active bool            `json:"active"`
	Lines  []*Line         `json:"lines"`
}

// Line is one priced session entry. Its UOM and UnitPrice are derived from
// the session's offer whenever the session changes.
type Line struct {
	ID             id.LineID         `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	SessionID      id.SessionID      `json:"session_id"`
	Quantity       decimal.Decimal   `json:"quantity"`
	UnitPrice      decimal.Decimal   `json:"unit_price"`
	UOM            string            `json:"uom"`
	NumberCalls    int               `json:"number_calls"`
	Amount         decimal.Decimal   `json:"amount"`
	Notes          string            `json:"notes,omitempty"`
}

// New returns a draft subscription with the default field values.
func New(now time.Time) *Subscription {
	s := &Subscription{}
	s.ApplyDefaults(now)
	return s
}

// ApplyDefaults fills every unset field that has a default.
func (s *Subscription) ApplyDefaults(now time.Time) {
	if s.ID.IsNil() {
		s.ID = id.NewSubscriptionID()
	}
	if s.State == "" {
		s.State = StateDraft
	}
	if s.InvoiceMethod == "" {
		s.InvoiceMethod = InvoiceByStudent
	}
	if s.IntervalNumber == 0 {
		s.IntervalNumber = 1
	}
	if s.IntervalType == "" {
		s.IntervalType = scheduler.IntervalMonths
	}
	if s.NumberCalls == 0 {
		s.NumberCalls = 1
	}
	if s.NextCall.IsZero() {
		s.NextCall = now
	}
	if s.Date.IsZero() {
		s.Date = types.Date(now)
	}
	if s.ModelSource.Type == "" {
		s.ModelSource = document.DefaultSource()
	}
	if s.CreatedAt.IsZero() {
		s.Entity = types.NewEntity()
		s.Active = true
	}
}

// NewLine returns a line for the session with the default quantity of 1.
func NewLine(sessionID id.SessionID) *Line {
	return &Line{
		ID:        id.NewLineID(),
		SessionID: sessionID,
		Quantity:  decimal.NewFromInt(1),
	}
}
