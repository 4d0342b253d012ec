package subscription

import (
	"context"

	"github.com/xraph/tuition/id"
)

// Store persists subscriptions together with their lines and the sale and
// invoice join sets.
type Store interface {
	CreateSubscription(ctx context.Context, s *Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error)
	// UpdateSubscription replaces the lines and adds any new sale and
	// invoice links. Existing links are never removed.
	UpdateSubscription(ctx context.Context, s *Subscription) error
	// DeleteSubscription removes the subscription and cascades to its lines.
	DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error
	// CountLinesBySession counts lines referencing a session across all
	// subscriptions.
	CountLinesBySession(ctx context.Context, sessionID id.SessionID) (int, error)
	// IsDocumentReferenced reports whether any subscription links the sale
	// or invoice, or uses it as its model source.
	IsDocumentReferenced(ctx context.Context, docID id.AnyID) (bool, error)
}

type ListOpts struct {
	State         State
	SubscriptorID id.PartyID
	Limit         int
	Offset        int
}
