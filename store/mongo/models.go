package mongo

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

type subscriptionModel struct {
	ID             string      `bson:"_id"`
	Code           string      `bson:"code,omitempty"`
	Description    string      `bson:"description"`
	Date           time.Time   `bson:"date"`
	CompanyID      string      `bson:"company_id"`
	SubscriptorID  string      `bson:"subscriptor_id"`
	StudentID      string      `bson:"student_id"`
	InvoiceMethod  string      `bson:"invoice_method"`
	State          string      `bson:"state"`
	Currency       string      `bson:"currency"`
	PriceListID    string      `bson:"price_list_id"`
	PaymentTermID  string      `bson:"payment_term_id"`
	MediaContact   string      `bson:"media_contact"`
	SalesmanID     string      `bson:"salesman_id"`
	UserID         string      `bson:"user_id"`
	RequestUserID  string      `bson:"request_user_id"`
	IntervalNumber int         `bson:"interval_number"`
	IntervalType   string      `bson:"interval_type"`
	NextCall       time.Time   `bson:"next_call"`
	NumberCalls    int         `bson:"number_calls"`
	ModelSource    refModel    `bson:"model_source"`
	JobID          string      `bson:"job_id"`
	SaleIDs        []string    `bson:"sale_ids"`
	InvoiceIDs     []string    `bson:"invoice_ids"`
	Total          string      `bson:"total"`
	Active         bool        `bson:"active"`
	Lines          []lineModel `bson:"lines"`
	CreatedAt      time.Time   `bson:"created_at"`
	UpdatedAt      time.Time   `bson:"updated_at"`
}

type lineModel struct {
	ID          string `bson:"id"`
	SessionID   string `bson:"session_id"`
	Quantity    string `bson:"quantity"`
	UnitPrice   string `bson:"unit_price"`
	UOM         string `bson:"uom"`
	NumberCalls int    `bson:"number_calls"`
	Amount      string `bson:"amount"`
	Notes       string `bson:"notes,omitempty"`
}

type refModel struct {
	Type string `bson:"type"`
	ID   string `bson:"id"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	lines := make([]lineModel, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = lineModel{
			ID:          l.ID.String(),
			SessionID:   l.SessionID.String(),
			Quantity:    l.Quantity.String(),
			UnitPrice:   l.UnitPrice.String(),
			UOM:         l.UOM,
			NumberCalls: l.NumberCalls,
			Amount:      l.ComputeAmount().String(),
			Notes:       l.Notes,
		}
	}
	return &subscriptionModel{
		ID:             s.ID.String(),
		Code:           s.Code,
		Description:    s.Description,
		Date:           s.Date,
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
		NextCall:       s.NextCall,
		NumberCalls:    s.NumberCalls,
		ModelSource:    refModel{Type: string(s.ModelSource.Type), ID: s.ModelSource.ID.String()},
		JobID:          s.JobID.String(),
		SaleIDs:        idStrings(s.SaleIDs),
		InvoiceIDs:     idStrings(s.InvoiceIDs),
		Total:          s.TotalAmount().String(),
		Active:         s.Active,
		Lines:          lines,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	var p parser
	s := &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             p.id(m.ID),
		Code:           m.Code,
		Description:    m.Description,
		Date:           m.Date,
		CompanyID:      p.id(m.CompanyID),
		SubscriptorID:  p.id(m.SubscriptorID),
		StudentID:      p.id(m.StudentID),
		InvoiceMethod:  subscription.InvoiceMethod(m.InvoiceMethod),
		State:          subscription.State(m.State),
		Currency:       m.Currency,
		PriceListID:    p.id(m.PriceListID),
		PaymentTermID:  p.id(m.PaymentTermID),
		MediaContact:   subscription.MediaContact(m.MediaContact),
		SalesmanID:     p.id(m.SalesmanID),
		User:           p.id(m.UserID),
		RequestUser:    p.id(m.RequestUserID),
		IntervalNumber: m.IntervalNumber,
		IntervalType:   scheduler.IntervalType(m.IntervalType),
		NextCall:       m.NextCall,
		NumberCalls:    m.NumberCalls,
		ModelSource:    document.Ref{Type: document.Type(m.ModelSource.Type), ID: p.id(m.ModelSource.ID)},
		JobID:          p.id(m.JobID),
		Total:          p.decimal(m.Total),
		Active:         m.Active,
	}
	for _, raw := range m.SaleIDs {
		s.SaleIDs = append(s.SaleIDs, p.id(raw))
	}
	for _, raw := range m.InvoiceIDs {
		s.InvoiceIDs = append(s.InvoiceIDs, p.id(raw))
	}
	s.Lines = make([]*subscription.Line, len(m.Lines))
	for i, lm := range m.Lines {
		s.Lines[i] = &subscription.Line{
			ID:             p.id(lm.ID),
			SubscriptionID: s.ID,
			SessionID:      p.id(lm.SessionID),
			Quantity:       p.decimal(lm.Quantity),
			UnitPrice:      p.decimal(lm.UnitPrice),
			UOM:            lm.UOM,
			NumberCalls:    lm.NumberCalls,
			Amount:         p.decimal(lm.Amount),
			Notes:          lm.Notes,
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return s, nil
}

// ==================== History models ====================

type historyModel struct {
	ID             string    `bson:"_id"`
	SubscriptionID string    `bson:"subscription_id"`
	Seq            int64     `bson:"seq"`
	Date           time.Time `bson:"date"`
	Log            string    `bson:"log"`
	Document       *refModel `bson:"document,omitempty"`
}

func toHistoryModel(e *history.Entry, seq int64) *historyModel {
	m := &historyModel{
		ID:             e.ID.String(),
		SubscriptionID: e.SubscriptionID.String(),
		Seq:            seq,
		Date:           e.Date,
		Log:            e.Log,
	}
	if e.Document != nil {
		m.Document = &refModel{Type: string(e.Document.Type), ID: e.Document.ID.String()}
	}
	return m
}

func fromHistoryModel(m *historyModel) (*history.Entry, error) {
	var p parser
	e := &history.Entry{
		ID:             p.id(m.ID),
		SubscriptionID: p.id(m.SubscriptionID),
		Date:           m.Date,
		Log:            m.Log,
	}
	if m.Document != nil {
		e.Document = &document.Ref{Type: document.Type(m.Document.Type), ID: p.id(m.Document.ID)}
	}
	return e, p.err
}

// ==================== Sequence models ====================

type sequenceModel struct {
	ID         string    `bson:"_id"`
	Name       string    `bson:"name"`
	Code       string    `bson:"code"`
	Prefix     string    `bson:"prefix"`
	Suffix     string    `bson:"suffix"`
	Padding    int       `bson:"padding"`
	Increment  int64     `bson:"increment"`
	NumberNext int64     `bson:"number_next"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toSequenceModel(s *sequence.Sequence) *sequenceModel {
	return &sequenceModel{
		ID:         s.ID.String(),
		Name:       s.Name,
		Code:       s.Code,
		Prefix:     s.Prefix,
		Suffix:     s.Suffix,
		Padding:    s.Padding,
		Increment:  s.Increment,
		NumberNext: s.NumberNext,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func fromSequenceModel(m *sequenceModel) (*sequence.Sequence, error) {
	var p parser
	s := &sequence.Sequence{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         p.id(m.ID),
		Name:       m.Name,
		Code:       m.Code,
		Prefix:     m.Prefix,
		Suffix:     m.Suffix,
		Padding:    m.Padding,
		Increment:  m.Increment,
		NumberNext: m.NumberNext,
	}
	return s, p.err
}

// ==================== Job models ====================

type jobModel struct {
	ID             string    `bson:"_id"`
	Model          string    `bson:"model"`
	Name           string    `bson:"name"`
	UserID         string    `bson:"user_id"`
	RequestUserID  string    `bson:"request_user_id"`
	IntervalNumber int       `bson:"interval_number"`
	IntervalType   string    `bson:"interval_type"`
	NumberCalls    int       `bson:"number_calls"`
	NextCall       time.Time `bson:"next_call"`
	Function       string    `bson:"function"`
	Args           []string  `bson:"args"`
	Active         bool      `bson:"active"`
	RepeatMissed   bool      `bson:"repeat_missed"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toJobModel(j *scheduler.Job) *jobModel {
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
		Args:           j.Args,
		Active:         j.Active,
		RepeatMissed:   j.RepeatMissed,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*scheduler.Job, error) {
	var p parser
	j := &scheduler.Job{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             p.id(m.ID),
		Model:          m.Model,
		Name:           m.Name,
		User:           p.id(m.UserID),
		RequestUser:    p.id(m.RequestUserID),
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

// parser decodes stored strings, keeping the first error.
type parser struct {
	err error
}

func (p *parser) id(s string) id.ID {
	if p.err != nil {
		return id.Nil
	}
	v, err := id.FromString(s)
	if err != nil {
		p.err = err
	}
	return v
}

func (p *parser) decimal(s string) decimal.Decimal {
	if p.err != nil || s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.err = err
	}
	return d
}

func idStrings(ids []id.ID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}
