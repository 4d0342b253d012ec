// Package sequence issues formatted, strictly increasing document codes.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/types"
)

// CodeSubscription is the sequence code used for subscription codes.
const CodeSubscription = "training.subscription"

// ErrSequenceNotFound is returned when a sequence does not exist.
var ErrSequenceNotFound = errors.New("tuition: sequence not found")

// Sequence defines how codes are rendered. Prefix and Suffix may contain the
// placeholders ${year}, ${month} and ${day}.
type Sequence struct {
	types.Entity
	ID         id.SequenceID `json:"id"`
	Name       string        `json:"name"`
	Code       string        `json:"code"`
	Prefix     string        `json:"prefix"`
	Suffix     string        `json:"suffix"`
	Padding    int           `json:"padding"`
	Increment  int64         `json:"increment"`
	NumberNext int64         `json:"number_next"`
}

// NewSubscriptionSequence returns the default subscription sequence.
func NewSubscriptionSequence() *Sequence {
	return &Sequence{
		Entity:     types.NewEntity(),
		ID:         id.NewSequenceID(),
		Name:       "Training Subscription",
		Code:       CodeSubscription,
		Prefix:     "SUB${year}-",
		Padding:    5,
		Increment:  1,
		NumberNext: 1,
	}
}

// Format renders number with the sequence's affixes at date.
func (s *Sequence) Format(number int64, date time.Time) string {
	digits := fmt.Sprintf("%d", number)
	if s.Padding > 0 {
		digits = fmt.Sprintf("%0*d", s.Padding, number)
	}
	return substitute(s.Prefix, date) + digits + substitute(s.Suffix, date)
}

func substitute(affix string, date time.Time) string {
	if !strings.Contains(affix, "${") {
		return affix
	}
	return strings.NewReplacer(
		"${year}", date.Format("2006"),
		"${month}", date.Format("01"),
		"${day}", date.Format("02"),
	).Replace(affix)
}

// Store persists sequences.
type Store interface {
	CreateSequence(ctx context.Context, s *Sequence) error
	GetSequence(ctx context.Context, seqID id.SequenceID) (*Sequence, error)
	GetSequenceByCode(ctx context.Context, code string) (*Sequence, error)
	// NextSequenceNumber atomically returns the current NumberNext and
	// advances it by the sequence's increment.
	NextSequenceNumber(ctx context.Context, seqID id.SequenceID) (int64, error)
}

// Generator issues codes.
type Generator interface {
	NextCode(ctx context.Context, seqID id.SequenceID) (string, error)
}

// StoreGenerator issues codes from sequences held in a Store.
type StoreGenerator struct {
	store Store
	now   func() time.Time
}

// GeneratorOption configures a StoreGenerator.
type GeneratorOption func(*StoreGenerator)

// WithClock overrides the time source used for date placeholders.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *StoreGenerator) { g.now = now }
}

// NewGenerator creates a generator over s.
func NewGenerator(s Store, opts ...GeneratorOption) *StoreGenerator {
	g := &StoreGenerator{store: s, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NextCode implements Generator.
func (g *StoreGenerator) NextCode(ctx context.Context, seqID id.SequenceID) (string, error) {
	seq, err := g.store.GetSequence(ctx, seqID)
	if err != nil {
		return "", err
	}
	n, err := g.store.NextSequenceNumber(ctx, seqID)
	if err != nil {
		return "", fmt.Errorf("sequence %s: %w", seq.Code, err)
	}
	return seq.Format(n, g.now()), nil
}
