package tuition

import (
	"context"
	"time"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/subscription"
)

// CopyOptions overrides fields of a duplicated subscription.
type CopyOptions struct {
	// Date becomes the copy's date. Nil leaves it unset.
	Date *time.Time `json:"date,omitempty"`
}

// Copy duplicates a subscription in any state into an independent draft:
// no code, no sales or invoices, no job, and the default source document.
func (e *Engine) Copy(ctx context.Context, subID id.SubscriptionID, opts CopyOptions) (*subscription.Subscription, error) {
	src, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	var date time.Time
	if opts.Date != nil {
		date = *opts.Date
	}
	dup := src.Duplicate(date)
	if err := e.store.CreateSubscription(ctx, dup); err != nil {
		return nil, err
	}

	e.logger.Info("subscription copied",
		"source", src.ID.String(),
		"copy", dup.ID.String(),
	)
	e.plugins.EmitSubscriptionCopied(ctx, src, dup)
	return dup, nil
}
