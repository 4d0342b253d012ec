package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/sequence"
	"github.com/xraph/tuition/subscription"
	"github.com/xraph/tuition/types"
)

// ==================== Subscription models ====================

const subscriptionColumns = `id, code, description, date, company_id, subscriptor_id, student_id,
	invoice_method, state, currency, price_list_id, payment_term_id, media_contact, salesman_id,
	user_id, request_user_id, interval_number, interval_type, next_call, number_calls,
	model_source, job_id, total, active, created_at, updated_at`

type subscriptionModel struct {
	ID             string          `db:"id"`
	Code           string          `db:"code"`
	Description    string          `db:"description"`
	Date           *time.Time      `db:"date"`
	CompanyID      string          `db:"company_id"`
	SubscriptorID  string          `db:"subscriptor_id"`
	StudentID      string          `db:"student_id"`
	InvoiceMethod  string          `db:"invoice_method"`
	State          string          `db:"state"`
	Currency       string          `db:"currency"`
	PriceListID    string          `db:"price_list_id"`
	PaymentTermID  string          `db:"payment_term_id"`
	MediaContact   string          `db:"media_contact"`
	SalesmanID     string          `db:"salesman_id"`
	UserID         string          `db:"user_id"`
	RequestUserID  string          `db:"request_user_id"`
	IntervalNumber int             `db:"interval_number"`
	IntervalType   string          `db:"interval_type"`
	NextCall       *time.Time      `db:"next_call"`
	NumberCalls    int             `db:"number_calls"`
	ModelSource    string          `db:"model_source"`
	JobID          string          `db:"job_id"`
	Total          decimal.Decimal `db:"total"`
	Active         bool            `db:"active"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// args returns the column values in subscriptionColumns order.
func (m *subscriptionModel) args() []any {
	return []any{
		m.ID, m.Code, m.Description, m.Date, m.CompanyID, m.SubscriptorID, m.StudentID,
		m.InvoiceMethod, m.State, m.Currency, m.PriceListID, m.PaymentTermID, m.MediaContact, m.SalesmanID,
		m.UserID, m.RequestUserID, m.IntervalNumber, m.IntervalType, m.NextCall, m.NumberCalls,
		m.ModelSource, m.JobID, m.Total, m.Active, m.CreatedAt, m.UpdatedAt,
	}
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:             s.ID.String(),
		Code:           s.Code,
		Description:    s.Description,
		Date:           nullTime(s.Date),
		CompanyID:      s.CompanyID.String(),
		SubscriptorID:  s.SubscriptorID.String(),
		StudentID:      s.StudentID.String(),
		InvoiceMethod:  string(s.InvoiceMethod),
		State:          string(s.State),
		Currency:       s.Currency,
		PriceListID:    s.PriceListID.String(),
		PaymentTermID:  s.PaymentTermID.String(),
		MediaContact:   string(s.MediaContact),
		SalesmanID:     s.SalesmanID.String(),
		UserID:         s.User.String(),
		RequestUserID:  s.RequestUser.String(),
		IntervalNumber: s.IntervalNumber,
		IntervalType:   string(s.IntervalType),
		NextCall:       nullTime(s.NextCall),
		NumberCalls:    s.NumberCalls,
		ModelSource:    refString(s.ModelSource),
		JobID:          s.JobID.String(),
		Total:          s.TotalAmount(),
		Active:         s.Active,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	var p idParser
	s := &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             p.parse(m.ID),
		Code:           m.Code,
		Description:    m.Description,
		Date:           timeOrZero(m.Date),
		CompanyID:      p.parse(m.CompanyID),
		SubscriptorID:  p.parse(m.SubscriptorID),
		StudentID:      p.parse(m.StudentID),
		InvoiceMethod:  subscription.InvoiceMethod(m.InvoiceMethod),
		State:          subscription.State(m.State),
		Currency:       m.Currency,
		PriceListID:    p.parse(m.PriceListID),
		PaymentTermID:  p.parse(m.PaymentTermID),
		MediaContact:   subscription.MediaContact(m.MediaContact),
		SalesmanID:     p.parse(m.SalesmanID),
		User:           p.parse(m.UserID),
		RequestUser:    p.parse(m.RequestUserID),
		IntervalNumber: m.IntervalNumber,
		IntervalType:   scheduler.IntervalType(m.IntervalType),
		NextCall:       timeOrZero(m.NextCall),
		NumberCalls:    m.NumberCalls,
		JobID:          p.parse(m.JobID),
		Total:          m.Total,
		Active:         m.Active,
	}
	if p.err != nil {
		return nil, p.err
	}
	src, err := document.Parse(m.ModelSource)
	if err != nil {
		return nil, err
	}
	s.ModelSource = src
	return s, nil
}

const lineColumns = `id, subscription_id, position, session_id, quantity, unit_price, uom, number_calls, amount, notes`

type lineModel struct {
	ID             string          `db:"id"`
	SubscriptionID string          `db:"subscription_id"`
	Position       int             `db:"position"`
	SessionID      string          `db:"session_id"`
	Quantity       decimal.Decimal `db:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price"`
	UOM            string          `db:"uom"`
	NumberCalls    int             `db:"number_calls"`
	Amount         decimal.Decimal `db:"amount"`
	Notes          string          `db:"notes"`
}

func toLineModel(subID id.SubscriptionID, pos int, l *subscription.Line) *lineModel {
	return &lineModel{
		ID:             l.ID.String(),
		SubscriptionID: subID.String(),
		Position:       pos,
		SessionID:      l.SessionID.String(),
		Quantity:       l.Quantity,
		UnitPrice:      l.UnitPrice,
		UOM:            l.UOM,
		NumberCalls:    l.NumberCalls,
		Amount:         l.ComputeAmount(),
		Notes:          l.Notes,
	}
}

func fromLineModel(m *lineModel) (*subscription.Line, error) {
	var p idParser
	l := &subscription.Line{
		ID:             p.parse(m.ID),
		SubscriptionID: p.parse(m.SubscriptionID),
		SessionID:      p.parse(m.SessionID),
		Quantity:       m.Quantity,
		UnitPrice:      m.UnitPrice,
		UOM:            m.UOM,
		NumberCalls:    m.NumberCalls,
		Amount:         m.Amount,
		Notes:          m.Notes,
	}
	return l, p.err
}

// ==================== History models ====================

type historyModel struct {
	ID             string    `db:"id"`
	SubscriptionID string    `db:"subscription_id"`
	Date           time.Time `db:"date"`
	Log            string    `db:"log"`
	Document       string    `db:"document"`
}

func toHistoryModel(e *history.Entry) *historyModel {
	m := &historyModel{
		ID:             e.ID.String(),
		SubscriptionID: e.SubscriptionID.String(),
		Date:           e.Date,
		Log:            e.Log,
	}
	if e.Document != nil {
		m.Document = refString(*e.Document)
	}
	return m
}

func fromHistoryModel(m *historyModel) (*history.Entry, error) {
	var p idParser
	e := &history.Entry{
		ID:             p.parse(m.ID),
		SubscriptionID: p.parse(m.SubscriptionID),
		Date:           m.Date,
		Log:            m.Log,
	}
	if p.err != nil {
		return nil, p.err
	}
	if m.Document != "" {
		doc, err := document.Parse(m.Document)
		if err != nil {
			return nil, err
		}
		e.Document = &doc
	}
	return e, nil
}

// ==================== Sequence models ====================

const sequenceColumns = `id, name, code, prefix, suffix, padding, increment_by, number_next, created_at, updated_at`

type sequenceModel struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Code        string    `db:"code"`
	Prefix      string    `db:"prefix"`
	Suffix      string    `db:"suffix"`
	Padding     int       `db:"padding"`
	IncrementBy int64     `db:"increment_by"`
	NumberNext  int64     `db:"number_next"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func fromSequenceModel(m *sequenceModel) (*sequence.Sequence, error) {
	seqID, err := id.ParseSequenceID(m.ID)
	if err != nil {
		return nil, err
	}
	return &sequence.Sequence{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         seqID,
		Name:       m.Name,
		Code:       m.Code,
		Prefix:     m.Prefix,
		Suffix:     m.Suffix,
		Padding:    m.Padding,
		Increment:  m.IncrementBy,
		NumberNext: m.NumberNext,
	}, nil
}

// ==================== Job models ====================

const jobColumns = `id, model, name, user_id, request_user_id, interval_number, interval_type,
	number_calls, next_call, function, args, active, repeat_missed, created_at, updated_at`

type jobModel struct {
	ID             string    `db:"id"`
	Model          string    `db:"model"`
	Name           string    `db:"name"`
	UserID         string    `db:"user_id"`
	RequestUserID  string    `db:"request_user_id"`
	IntervalNumber int       `db:"interval_number"`
	IntervalType   string    `db:"interval_type"`
	NumberCalls    int       `db:"number_calls"`
	NextCall       time.Time `db:"next_call"`
	Function       string    `db:"function"`
	Args           []string  `db:"args"`
	Active         bool      `db:"active"`
	RepeatMissed   bool      `db:"repeat_missed"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (m *jobModel) args() []any {
	return []any{
		m.ID, m.Model, m.Name, m.UserID, m.RequestUserID, m.IntervalNumber, m.IntervalType,
		m.NumberCalls, m.NextCall, m.Function, m.Args, m.Active, m.RepeatMissed, m.CreatedAt, m.UpdatedAt,
	}
}

func toJobModel(j *scheduler.Job) *jobModel {
	args := j.Args
	if args == nil {
		args = []string{}
	}
	return &jobModel{
		ID:             j.ID.String(),
		Model:          j.Model,
		Name:           j.Name,
		UserID:         j.User.String(),
		RequestUserID:  j.RequestUser.String(),
		IntervalNumber: j.IntervalNumber,
		IntervalType:   string(j.IntervalType),
		NumberCalls:    j.NumberCalls,
		NextCall:       j.NextCall,
		Function:       j.Function,
		Args:           args,
		Active:         j.Active,
		RepeatMissed:   j.RepeatMissed,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*scheduler.Job, error) {
	var p idParser
	j := &scheduler.Job{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             p.parse(m.ID),
		Model:          m.Model,
		Name:           m.Name,
		User:           p.parse(m.UserID),
		RequestUser:    p.parse(m.RequestUserID),
		IntervalNumber: m.IntervalNumber,
		IntervalType:   scheduler.IntervalType(m.IntervalType),
		NumberCalls:    m.NumberCalls,
		NextCall:       m.NextCall,
		Function:       m.Function,
		Args:           m.Args,
		Active:         m.Active,
		RepeatMissed:   m.RepeatMissed,
	}
	return j, p.err
}

// ==================== Helpers ====================

// idParser parses a run of identifier columns, keeping the first error.
type idParser struct {
	err error
}

func (p *idParser) parse(s string) id.ID {
	if p.err != nil {
		return id.Nil
	}
	v, err := id.FromString(s)
	if err != nil {
		p.err = err
	}
	return v
}

func refString(r document.Ref) string {
	b, _ := r.MarshalText() //nolint:errcheck // never fails
	return string(b)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
