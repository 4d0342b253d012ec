package sequence_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/tuition/sequence"
	"github.com/xraph/tuition/store/memory"
)

func TestFormat(t *testing.T) {
	date := time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		seq  sequence.Sequence
		n    int64
		want string
	}{
		{"default", *sequence.NewSubscriptionSequence(), 7, "SUB2026-00007"},
		{"no padding", sequence.Sequence{Prefix: "S"}, 42, "S42"},
		{"suffix", sequence.Sequence{Prefix: "T", Suffix: "/${month}${day}", Padding: 3}, 5, "T005/0409"},
		{"overflow padding", sequence.Sequence{Padding: 2}, 1234, "1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seq.Format(tt.n, date); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeneratorIsStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seq := sequence.NewSubscriptionSequence()
	seq.Prefix = "S"
	if err := store.CreateSequence(ctx, seq); err != nil {
		t.Fatal(err)
	}

	gen := sequence.NewGenerator(store)
	want := []string{"S00001", "S00002", "S00003"}
	for _, w := range want {
		code, err := gen.NextCode(ctx, seq.ID)
		if err != nil {
			t.Fatal(err)
		}
		if code != w {
			t.Errorf("got %q, want %q", code, w)
		}
	}
}

func TestGeneratorUsesClockForPlaceholders(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seq := sequence.NewSubscriptionSequence()
	if err := store.CreateSequence(ctx, seq); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC)
	gen := sequence.NewGenerator(store, sequence.WithClock(func() time.Time { return at }))
	code, err := gen.NextCode(ctx, seq.ID)
	if err != nil {
		t.Fatal(err)
	}
	if code != "SUB2031-00001" {
		t.Errorf("got %q, want SUB2031-00001", code)
	}
}
