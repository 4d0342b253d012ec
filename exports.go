package tuition

import (
	"github.com/xraph/tuition/subscription"
	"github.com/xraph/tuition/types"
)

// Re-export common types so callers don't have to import the types and
// subscription packages for everyday use.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Subscription is re-exported from subscription package.
type Subscription = subscription.Subscription

// Line is re-exported from subscription package.
type Line = subscription.Line

// State is re-exported from subscription package.
type State = subscription.State

// Event is re-exported from subscription package.
type Event = subscription.Event

// Re-export Money helpers
var (
	ParseMoney = types.Parse
	ZeroMoney  = types.Zero
)

// Re-export constructors
var (
	NewEntity       = types.NewEntity
	NewSubscription = subscription.New
	NewLine         = subscription.NewLine
)
