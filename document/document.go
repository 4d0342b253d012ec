// Package document models polymorphic references to documents owned by the
// host (sale orders, subscriptions) and a registry of copy handlers keyed by
// document type.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xraph/tuition/id"
)

// Type names a document model.
type Type string

// Known document types.
const (
	TypeSale         Type = "sale.sale"
	TypeSubscription Type = "training.subscription"
)

// ErrUnknownType is returned when no copier is registered for a document type.
var ErrUnknownType = errors.New("document: unknown document type")

// Ref is a tagged reference {type, identifier}. A Ref with a nil ID names a
// document type without a concrete instance.
type Ref struct {
	Type Type  `json:"type"`
	ID   id.ID `json:"id"`
}

// DefaultSource is the source reference of a new subscription: a sale order
// with no concrete instance.
func DefaultSource() Ref { return Ref{Type: TypeSale} }

// Resolved reports whether the reference points at a concrete document.
func (r Ref) Resolved() bool { return r.Type != "" && !r.ID.IsNil() }

// String renders the reference as "type,id". Unresolved references render
// the type followed by a trailing comma.
func (r Ref) String() string {
	return string(r.Type) + "," + r.ID.String()
}

// Parse is the inverse of Ref.String. The empty string yields a zero Ref.
func Parse(s string) (Ref, error) {
	if s == "" {
		return Ref{}, nil
	}
	typ, raw, ok := strings.Cut(s, ",")
	if !ok || typ == "" {
		return Ref{}, fmt.Errorf("document: malformed reference %q", s)
	}
	docID, err := id.FromString(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("document: malformed reference %q: %w", s, err)
	}
	return Ref{Type: Type(typ), ID: docID}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Ref) MarshalText() ([]byte, error) {
	if r.Type == "" {
		return []byte{}, nil
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ref) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Overrides are the field values forced onto a duplicated document.
type Overrides struct {
	State            string
	SubscriptionCode string
}

// Copier duplicates documents of one type.
type Copier interface {
	Copy(ctx context.Context, docID id.ID, ov Overrides) (id.ID, error)
}

// CopierFunc adapts a function to the Copier interface.
type CopierFunc func(ctx context.Context, docID id.ID, ov Overrides) (id.ID, error)

// Copy implements Copier.
func (f CopierFunc) Copy(ctx context.Context, docID id.ID, ov Overrides) (id.ID, error) {
	return f(ctx, docID, ov)
}

// Registry resolves references to the copier registered for their type.
type Registry struct {
	mu      sync.RWMutex
	copiers map[Type]Copier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{copiers: make(map[Type]Copier)}
}

// Register installs the copier for a document type, replacing any previous one.
func (r *Registry) Register(t Type, c Copier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.copiers[t] = c
}

// Has reports whether a copier exists for t.
func (r *Registry) Has(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.copiers[t]
	return ok
}

// Copy duplicates the referenced document and returns a reference to the copy.
func (r *Registry) Copy(ctx context.Context, ref Ref, ov Overrides) (Ref, error) {
	if !ref.Resolved() {
		return Ref{}, fmt.Errorf("document: copy of unresolved reference %q", ref.String())
	}

	r.mu.RLock()
	c, ok := r.copiers[ref.Type]
	r.mu.RUnlock()
	if !ok {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnknownType, ref.Type)
	}

	newID, err := c.Copy(ctx, ref.ID, ov)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Type: ref.Type, ID: newID}, nil
}
