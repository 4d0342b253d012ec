package tuition

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/pricing"
	"github.com/xraph/tuition/subscription"
	"github.com/xraph/tuition/types"
)

// ──────────────────────────────────────────────────
// Subscription Management
// ──────────────────────────────────────────────────

// CreateSubscription stores a new draft subscription. Unset fields take
// their defaults and every line is priced from its session. Without an
// explicit number of calls the subscription takes the lines' total.
func (e *Engine) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if sub.State != "" && sub.State != subscription.StateDraft {
		return ValidationError{Field: "state", Message: "new subscriptions start in draft"}
	}
	if sub.Code != "" {
		return ValidationError{Field: "code", Message: "is assigned on quotation"}
	}
	deriveCalls := sub.NumberCalls == 0
	sub.ApplyDefaults(e.now())
	if sub.User.IsNil() {
		sub.User = e.cronUser
	}
	if sub.InvoiceMethod != subscription.InvoiceBySubscriptor && sub.InvoiceMethod != subscription.InvoiceByStudent {
		return ValidationError{Field: "invoice_method", Message: fmt.Sprintf("unknown method %q", sub.InvoiceMethod)}
	}

	for _, l := range sub.Lines {
		if l.ID.IsNil() {
			l.ID = id.NewLineID()
		}
		if err := e.checkSession(ctx, l.SessionID); err != nil {
			return err
		}
		if l.UOM == "" {
			if err := e.OnChangeSession(ctx, sub, l); err != nil {
				return err
			}
		}
	}
	if deriveCalls {
		sub.ApplyLines()
	} else {
		sub.Refresh()
	}

	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		return err
	}

	e.plugins.EmitSubscriptionCreated(ctx, sub)
	return nil
}

// GetSubscription retrieves a subscription by ID.
func (e *Engine) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.store.GetSubscription(ctx, subID)
}

// ListSubscriptions lists subscriptions oldest first.
func (e *Engine) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptions(ctx, opts)
}

// UpdateSubscription saves header and line edits of a draft subscription.
// Workflow-owned fields (state, code, produced documents, job and source)
// are kept from the stored copy. New lines and lines whose session changed
// are priced again from their session.
func (e *Engine) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	unlock, err := e.locks.Lock(ctx, sub.ID.String())
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := e.store.GetSubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	if existing.State != subscription.StateDraft {
		return fmt.Errorf("%w: %s is %s", ErrNotEditable, existing.ID, existing.State)
	}

	sub.Entity = existing.Entity
	sub.State = existing.State
	sub.Code = existing.Code
	sub.SaleIDs = existing.SaleIDs
	sub.InvoiceIDs = existing.InvoiceIDs
	sub.JobID = existing.JobID
	sub.ModelSource = existing.ModelSource

	linesChanged := len(sub.Lines) != len(existing.Lines)
	for _, l := range sub.Lines {
		if l.ID.IsNil() {
			l.ID = id.NewLineID()
		}
		if err := e.checkSession(ctx, l.SessionID); err != nil {
			return err
		}
		stored := existing.Line(l.ID)
		if stored == nil || stored.SessionID.String() != l.SessionID.String() {
			if err := e.OnChangeSession(ctx, sub, l); err != nil {
				return err
			}
			linesChanged = true
			continue
		}
		if stored.NumberCalls != l.NumberCalls {
			linesChanged = true
		}
	}
	// Header-only edits keep the caller's number of calls.
	if linesChanged {
		sub.ApplyLines()
	} else {
		sub.Refresh()
	}
	sub.Touch()

	return e.store.UpdateSubscription(ctx, sub)
}

// DeleteSubscription removes a draft or cancelled subscription together
// with its lines and history.
func (e *Engine) DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error {
	unlock, err := e.locks.Lock(ctx, subID.String())
	if err != nil {
		return err
	}
	defer unlock()

	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}
	if sub.State != subscription.StateDraft && sub.State != subscription.StateCancel {
		return ValidationError{Field: "state", Message: fmt.Sprintf("cannot delete a %s subscription", sub.State)}
	}
	return e.store.DeleteSubscription(ctx, subID)
}

// History lists the recurrence log of a subscription, oldest first.
func (e *Engine) History(ctx context.Context, subID id.SubscriptionID, opts history.ListOpts) ([]*history.Entry, error) {
	return e.store.ListHistory(ctx, subID, opts)
}

// ──────────────────────────────────────────────────
// Lines
// ──────────────────────────────────────────────────

// LineUpdate carries the editable fields of a line. Nil fields are left
// unchanged.
type LineUpdate struct {
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	NumberCalls *int             `json:"number_calls,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

// AddLine adds a line for an open session to a draft subscription. The
// line is priced from the session's offer; a nil quantity means 1.
func (e *Engine) AddLine(ctx context.Context, subID id.SubscriptionID, sessionID id.SessionID, quantity *decimal.Decimal) (*subscription.Line, error) {
	var line *subscription.Line
	err := e.editLines(ctx, subID, func(sub *subscription.Subscription) error {
		if err := e.checkSession(ctx, sessionID); err != nil {
			return err
		}
		line = subscription.NewLine(sessionID)
		if quantity != nil {
			line.Quantity = *quantity
		}
		if err := e.OnChangeSession(ctx, sub, line); err != nil {
			return err
		}
		sub.Lines = append(sub.Lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveLine removes a line from a draft subscription.
func (e *Engine) RemoveLine(ctx context.Context, subID id.SubscriptionID, lineID id.LineID) error {
	return e.editLines(ctx, subID, func(sub *subscription.Subscription) error {
		if !sub.RemoveLine(lineID) {
			return ErrLineNotFound
		}
		return nil
	})
}

// UpdateLine edits a line of a draft subscription. Unit prices are rounded
// to price precision.
func (e *Engine) UpdateLine(ctx context.Context, subID id.SubscriptionID, lineID id.LineID, u LineUpdate) (*subscription.Line, error) {
	var line *subscription.Line
	err := e.editLines(ctx, subID, func(sub *subscription.Subscription) error {
		line = sub.Line(lineID)
		if line == nil {
			return ErrLineNotFound
		}
		if u.Quantity != nil {
			line.Quantity = *u.Quantity
		}
		if u.UnitPrice != nil {
			line.UnitPrice = types.Quantize(*u.UnitPrice, types.PriceDigits)
		}
		if u.NumberCalls != nil {
			line.NumberCalls = *u.NumberCalls
		}
		if u.Notes != nil {
			line.Notes = *u.Notes
		}
		line.OnChangeUnitPrice()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (e *Engine) editLines(ctx context.Context, subID id.SubscriptionID, fn func(*subscription.Subscription) error) error {
	unlock, err := e.locks.Lock(ctx, subID.String())
	if err != nil {
		return err
	}
	defer unlock()

	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}
	if sub.State != subscription.StateDraft {
		return fmt.Errorf("%w: %s is %s", ErrNotEditable, sub.ID, sub.State)
	}
	if err := fn(sub); err != nil {
		return err
	}
	sub.ApplyLines()
	sub.Touch()
	return e.store.UpdateSubscription(ctx, sub)
}

func (e *Engine) checkSession(ctx context.Context, sessionID id.SessionID) error {
	if sessionID.IsNil() {
		return ValidationError{Field: "session", Message: "is required"}
	}
	session, err := e.catalog.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.Open() {
		return fmt.Errorf("%w: %s is %s", ErrSessionNotOpen, session.Name, session.State)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Derived fields and change handlers
// ──────────────────────────────────────────────────

// OnChangeSession re-derives a line from its session: the unit of measure
// and product come from the session's offer, the unit price from the
// pricer under the subscription's currency, price list, date and
// subscriptor, and the number of calls from the offer.
func (e *Engine) OnChangeSession(ctx context.Context, sub *subscription.Subscription, line *subscription.Line) error {
	offer, product, err := e.offerFor(ctx, line.SessionID)
	if err != nil {
		return err
	}

	line.UOM = product.DefaultUOM
	price, err := e.pricer.SalePrice(ctx, product, line.Quantity, pricing.Context{
		Currency:    sub.Currency,
		PriceListID: sub.PriceListID,
		Date:        sub.Date,
		PartyID:     sub.SubscriptorID,
		UOM:         line.UOM,
	})
	if err != nil {
		return fmt.Errorf("price %s: %w", product.RecName(), err)
	}
	line.UnitPrice = types.Quantize(price, types.PriceDigits)
	line.NumberCalls = offer.NumberCalls
	line.OnChangeUnitPrice()
	return nil
}

// GetSession returns the name of the session of the subscription's first
// line, or "" when it has none.
func (e *Engine) GetSession(ctx context.Context, sub *subscription.Subscription) (string, error) {
	if len(sub.Lines) == 0 {
		return "", nil
	}
	session, err := e.catalog.GetSession(ctx, sub.Lines[0].SessionID)
	if err != nil {
		return "", err
	}
	return session.Name, nil
}

// SessionSubscriptionCount returns how many subscription lines reference
// the session.
func (e *Engine) SessionSubscriptionCount(ctx context.Context, sessionID id.SessionID) (int, error) {
	return e.store.CountLinesBySession(ctx, sessionID)
}

// offerFor resolves the offer and product behind a session.
func (e *Engine) offerFor(ctx context.Context, sessionID id.SessionID) (*catalog.Offer, *catalog.Product, error) {
	session, err := e.catalog.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	offer, err := e.catalog.GetOffer(ctx, session.OfferID)
	if err != nil {
		return nil, nil, err
	}
	product, err := e.catalog.GetProduct(ctx, offer.ProductID)
	if err != nil {
		return nil, nil, err
	}
	return offer, product, nil
}
