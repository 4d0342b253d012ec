package document_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/tuition/document"
	"github.com/xraph/tuition/id"
)

func TestRefResolved(t *testing.T) {
	tests := []struct {
		name string
		ref  document.Ref
		want bool
	}{
		{"default source", document.DefaultSource(), false},
		{"zero", document.Ref{}, false},
		{"concrete sale", document.Ref{Type: document.TypeSale, ID: id.NewSaleID()}, true},
		{"id without type", document.Ref{ID: id.NewSaleID()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Resolved(); got != tt.want {
				t.Errorf("Resolved() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefTextRoundTrip(t *testing.T) {
	refs := []document.Ref{
		document.DefaultSource(),
		{Type: document.TypeSale, ID: id.NewSaleID()},
		{Type: document.TypeSubscription, ID: id.NewSubscriptionID()},
	}

	for _, ref := range refs {
		t.Run(ref.String(), func(t *testing.T) {
			data, err := ref.MarshalText()
			if err != nil {
				t.Fatalf("MarshalText: %v", err)
			}
			var back document.Ref
			if err := back.UnmarshalText(data); err != nil {
				t.Fatalf("UnmarshalText: %v", err)
			}
			if back.Type != ref.Type || back.ID.String() != ref.ID.String() {
				t.Errorf("round-trip mismatch: %v != %v", back, ref)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"sale.sale", ",sale_01h2xcejqtf2nbrexx3vqjhp41", "sale.sale,notanid"} {
		if _, err := document.Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error", s)
		}
	}
}

func TestRegistryCopy(t *testing.T) {
	reg := document.NewRegistry()
	newID := id.NewSaleID()
	var gotOverrides document.Overrides
	reg.Register(document.TypeSale, document.CopierFunc(func(_ context.Context, _ id.ID, ov document.Overrides) (id.ID, error) {
		gotOverrides = ov
		return newID, nil
	}))

	src := document.Ref{Type: document.TypeSale, ID: id.NewSaleID()}
	out, err := reg.Copy(context.Background(), src, document.Overrides{State: "draft", SubscriptionCode: "SUB-1"})
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if out.Type != document.TypeSale || out.ID.String() != newID.String() {
		t.Errorf("unexpected copy ref %v", out)
	}
	if gotOverrides.SubscriptionCode != "SUB-1" || gotOverrides.State != "draft" {
		t.Errorf("overrides not forwarded: %+v", gotOverrides)
	}
}

func TestRegistryErrors(t *testing.T) {
	reg := document.NewRegistry()
	ctx := context.Background()

	if _, err := reg.Copy(ctx, document.DefaultSource(), document.Overrides{}); err == nil {
		t.Error("expected error copying unresolved reference")
	}

	_, err := reg.Copy(ctx, document.Ref{Type: "stock.move", ID: id.NewSaleID()}, document.Overrides{})
	if !errors.Is(err, document.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}
