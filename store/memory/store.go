// Package memory is an in-process Store for tests and single-node demos.
// Every read and write copies the value so callers never share state with the
// store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/sequence"
	"github.com/xraph/tuition/store"
	"github.com/xraph/tuition/subscription"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Subscription storage
	subscriptions map[string]*subscription.Subscription

	// History storage, per subscription in insertion order
	history map[string][]*history.Entry

	// Sequence storage
	sequences map[string]*sequence.Sequence

	// Job storage
	jobs map[string]*scheduler.Job

	closed bool
}

func New() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		history:       make(map[string][]*history.Entry),
		sequences:     make(map[string]*sequence.Sequence),
		jobs:          make(map[string]*scheduler.Job),
	}
}

// ──────────────────────────────────────────────────
// Subscription Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return tuition.ErrAlreadyExists
	}
	if err := s.checkCode(sub); err != nil {
		return err
	}
	c := sub.Clone()
	c.Refresh()
	s.subscriptions[sub.ID.String()] = c
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return sub.Clone(), nil
	}
	return nil, tuition.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if opts.State != "" && sub.State != opts.State {
			continue
		}
		if !opts.SubscriptorID.IsNil() && sub.SubscriptorID.String() != opts.SubscriptorID.String() {
			continue
		}
		result = append(result, sub.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subscriptions[sub.ID.String()]
	if !ok {
		return tuition.ErrSubscriptionNotFound
	}
	if err := s.checkCode(sub); err != nil {
		return err
	}
	c := sub.Clone()
	// Links only grow.
	for _, saleID := range existing.SaleIDs {
		c.AddSale(saleID)
	}
	for _, invID := range existing.InvoiceIDs {
		c.AddInvoice(invID)
	}
	c.Refresh()
	s.subscriptions[sub.ID.String()] = c
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, subID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subID.String()
	if _, ok := s.subscriptions[key]; !ok {
		return tuition.ErrSubscriptionNotFound
	}
	delete(s.subscriptions, key)
	delete(s.history, key)
	return nil
}

func (s *Store) CountLinesBySession(_ context.Context, sessionID id.SessionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sub := range s.subscriptions {
		for _, l := range sub.Lines {
			if l.SessionID.String() == sessionID.String() {
				n++
			}
		}
	}
	return n, nil
}

func (s *Store) IsDocumentReferenced(_ context.Context, docID id.AnyID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := docID.String()
	for _, sub := range s.subscriptions {
		if sub.ModelSource.ID.String() == key {
			return true, nil
		}
		for _, saleID := range sub.SaleIDs {
			if saleID.String() == key {
				return true, nil
			}
		}
		for _, invID := range sub.InvoiceIDs {
			if invID.String() == key {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) checkCode(sub *subscription.Subscription) error {
	if sub.Code == "" {
		return nil
	}
	for key, other := range s.subscriptions {
		if key != sub.ID.String() && other.Code == sub.Code {
			return fmt.Errorf("%w: subscription code %q", tuition.ErrAlreadyExists, sub.Code)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// History Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateHistory(_ context.Context, e *history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.SubscriptionID.String()
	if _, ok := s.subscriptions[key]; !ok {
		return tuition.ErrSubscriptionNotFound
	}
	c := *e
	if e.Document != nil {
		doc := *e.Document
		c.Document = &doc
	}
	s.history[key] = append(s.history[key], &c)
	return nil
}

func (s *Store) ListHistory(_ context.Context, subID id.SubscriptionID, opts history.ListOpts) ([]*history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[subID.String()]
	result := make([]*history.Entry, 0, len(entries))
	for _, e := range entries {
		c := *e
		result = append(result, &c)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Sequence Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateSequence(_ context.Context, seq *sequence.Sequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sequences[seq.ID.String()]; exists {
		return tuition.ErrAlreadyExists
	}
	for _, other := range s.sequences {
		if other.Code == seq.Code {
			return fmt.Errorf("%w: sequence code %q", tuition.ErrAlreadyExists, seq.Code)
		}
	}
	c := *seq
	s.sequences[seq.ID.String()] = &c
	return nil
}

func (s *Store) GetSequence(_ context.Context, seqID id.SequenceID) (*sequence.Sequence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if seq, ok := s.sequences[seqID.String()]; ok {
		c := *seq
		return &c, nil
	}
	return nil, tuition.ErrSequenceNotFound
}

func (s *Store) GetSequenceByCode(_ context.Context, code string) (*sequence.Sequence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, seq := range s.sequences {
		if seq.Code == code {
			c := *seq
			return &c, nil
		}
	}
	return nil, tuition.ErrSequenceNotFound
}

func (s *Store) NextSequenceNumber(_ context.Context, seqID id.SequenceID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.sequences[seqID.String()]
	if !ok {
		return 0, tuition.ErrSequenceNotFound
	}
	n := seq.NumberNext
	inc := seq.Increment
	if inc == 0 {
		inc = 1
	}
	seq.NumberNext += inc
	seq.Touch()
	return n, nil
}

// ──────────────────────────────────────────────────
// Job Store implementation
// ──────────────────────────────────────────────────

func (s *Store) InsertJob(_ context.Context, j *scheduler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID.String()]; exists {
		return tuition.ErrAlreadyExists
	}
	s.jobs[j.ID.String()] = j.Clone()
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID id.JobID) (*scheduler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if j, ok := s.jobs[jobID.String()]; ok {
		return j.Clone(), nil
	}
	return nil, tuition.ErrJobNotFound
}

func (s *Store) UpdateJob(_ context.Context, j *scheduler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID.String()]; !ok {
		return tuition.ErrJobNotFound
	}
	s.jobs[j.ID.String()] = j.Clone()
	return nil
}

func (s *Store) FindJobByName(_ context.Context, model, name string, active bool) (*scheduler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *scheduler.Job
	for _, j := range s.jobs {
		if j.Model != model || j.Name != name || j.Active != active {
			continue
		}
		if found == nil || j.CreatedAt.Before(found.CreatedAt) {
			found = j
		}
	}
	if found == nil {
		return nil, tuition.ErrJobNotFound
	}
	return found.Clone(), nil
}

func (s *Store) ListDueJobs(_ context.Context, now time.Time) ([]*scheduler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*scheduler.Job, 0)
	for _, j := range s.jobs {
		if j.Due(now) {
			result = append(result, j.Clone())
		}
	}
	sort.Slice(result, func(i, k int) bool { return result[i].NextCall.Before(result[k].NextCall) })
	return result, nil
}

// ──────────────────────────────────────────────────
// Store management
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return tuition.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
