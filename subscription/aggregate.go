package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/types"
)

// ComputeAmount returns quantity × unit price, rounded to price precision.
func (l *Line) ComputeAmount() decimal.Decimal {
	if l.Quantity.IsZero() || l.UnitPrice.IsZero() {
		return decimal.Zero
	}
	return types.Quantize(l.Quantity.Mul(l.UnitPrice), types.PriceDigits)
}

// OnChangeUnitPrice recomputes the cached line amount.
func (l *Line) OnChangeUnitPrice() {
	l.Amount = l.ComputeAmount()
}

// Summary is the aggregate of a set of lines.
type Summary struct {
	Total       decimal.Decimal `json:"total"`
	NumberCalls int             `json:"number_calls"`
}

// OnChangeLines sums line totals and line call counts.
func OnChangeLines(lines []*Line) Summary {
	sum := Summary{Total: decimal.Zero}
	for _, l := range lines {
		sum.Total = sum.Total.Add(l.ComputeAmount())
		sum.NumberCalls += l.NumberCalls
	}
	return sum
}

// TotalAmount is the sum of all line totals.
func (s *Subscription) TotalAmount() decimal.Decimal {
	return OnChangeLines(s.Lines).Total
}

// TotalMoney is TotalAmount in the subscription's currency.
func (s *Subscription) TotalMoney() types.Money {
	return types.New(s.TotalAmount(), s.Currency)
}

// Refresh recomputes every derived field: line amounts and the cached total.
func (s *Subscription) Refresh() {
	for _, l := range s.Lines {
		l.SubscriptionID = s.ID
		l.OnChangeUnitPrice()
	}
	s.Total = s.TotalAmount()
}

// ApplyLines refreshes derived fields and takes the number of calls from the
// lines when any line carries one.
func (s *Subscription) ApplyLines() {
	s.Refresh()
	if n := OnChangeLines(s.Lines).NumberCalls; n > 0 {
		s.NumberCalls = n
	}
}

// ScheduledCalls is the number of calls the recurring job is created with.
// A subscription without a number of calls runs once; a negative value is
// the scheduler's unlimited marker and passes through.
func (s *Subscription) ScheduledCalls() int {
	if s.NumberCalls == 0 {
		return 1
	}
	return s.NumberCalls
}

// Line returns the line with the given ID, or nil.
func (s *Subscription) Line(lineID id.LineID) *Line {
	for _, l := range s.Lines {
		if l.ID.String() == lineID.String() {
			return l
		}
	}
	return nil
}

// RemoveLine drops a line and reports whether it existed.
func (s *Subscription) RemoveLine(lineID id.LineID) bool {
	for i, l := range s.Lines {
		if l.ID.String() == lineID.String() {
			s.Lines = append(s.Lines[:i], s.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// AddSale records a produced sale. Sales are never removed.
func (s *Subscription) AddSale(saleID id.SaleID) {
	for _, existing := range s.SaleIDs {
		if existing.String() == saleID.String() {
			return
		}
	}
	s.SaleIDs = append(s.SaleIDs, saleID)
}

// AddInvoice records a produced invoice. Invoices are never removed.
func (s *Subscription) AddInvoice(invID id.InvoiceID) {
	for _, existing := range s.InvoiceIDs {
		if existing.String() == invID.String() {
			return
		}
	}
	s.InvoiceIDs = append(s.InvoiceIDs, invID)
}

// Clone returns a deep copy sharing no slices with s.
func (s *Subscription) Clone() *Subscription {
	c := *s
	c.SaleIDs = append([]id.SaleID(nil), s.SaleIDs...)
	c.InvoiceIDs = append([]id.InvoiceID(nil), s.InvoiceIDs...)
	c.Lines = make([]*Line, len(s.Lines))
	for i, l := range s.Lines {
		lc := *l
		c.Lines[i] = &lc
	}
	return &c
}

// Duplicate returns an independent draft copy: new identifiers, no code, no
// produced documents, no scheduled job, and the source reset to the default.
// date becomes the copy's date; pass the zero time to leave it unset.
func (s *Subscription) Duplicate(date time.Time) *Subscription {
	c := s.Clone()
	c.ID = id.NewSubscriptionID()
	c.Entity = types.NewEntity()
	c.State = StateDraft
	c.Code = ""
	c.Date = date
	c.SaleIDs = nil
	c.InvoiceIDs = nil
	c.JobID = id.Nil
	c.ModelSource = document.DefaultSource()
	c.Active = true
	for _, l := range c.Lines {
		l.ID = id.NewLineID()
		l.SubscriptionID = c.ID
	}
	c.Refresh()
	return c
}
