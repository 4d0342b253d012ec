// Package history is the append-only log of recurrence attempts.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/id"
)

// Entry records the outcome of one recurrence tick. Document is nil when the
// tick failed to produce a document.
type Entry struct {
	ID             id.HistoryID      `json:"id"`
	Date           time.Time         `json:"date"`
	Log            string            `json:"log"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	Document       *document.Ref     `json:"document,omitempty"`
}

// Succeeded builds the entry for a tick that created doc.
func Succeeded(subID id.SubscriptionID, doc document.Ref, at time.Time) *Entry {
	return &Entry{
		ID:             id.NewHistoryID(),
		Date:           at,
		Log:            fmt.Sprintf("Document '%s' created successfully", doc.Type),
		SubscriptionID: subID,
		Document:       &doc,
	}
}

// Failed builds the entry for a tick whose copy of a src-typed document failed.
func Failed(subID id.SubscriptionID, src document.Type, cause error, at time.Time) *Entry {
	msg := fmt.Sprintf("Error creating document '%s'", src)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Entry{
		ID:             id.NewHistoryID(),
		Date:           at,
		Log:            msg,
		SubscriptionID: subID,
	}
}

// ListOpts pages history listings. Entries are returned oldest first.
type ListOpts struct {
	Limit  int
	Offset int
}

// Store persists history entries. Entries are never updated or deleted.
type Store interface {
	CreateHistory(ctx context.Context, e *Entry) error
	ListHistory(ctx context.Context, subID id.SubscriptionID, opts ListOpts) ([]*Entry, error)
}
