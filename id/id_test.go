package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/tuition/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"SubscriptionID", id.NewSubscriptionID, "sub_"},
		{"LineID", id.NewLineID, "subl_"},
		{"HistoryID", id.NewHistoryID, "hist_"},
		{"SaleID", id.NewSaleID, "sale_"},
		{"SaleLineID", id.NewSaleLineID, "sline_"},
		{"InvoiceID", id.NewInvoiceID, "inv_"},
		{"JobID", id.NewJobID, "job_"},
		{"SequenceID", id.NewSequenceID, "seq_"},
		{"SessionID", id.NewSessionID, "sess_"},
		{"OfferID", id.NewOfferID, "offer_"},
		{"ProductID", id.NewProductID, "prod_"},
		{"PartyID", id.NewPartyID, "party_"},
		{"AddressID", id.NewAddressID, "addr_"},
		{"StudentID", id.NewStudentID, "stud_"},
		{"PaymentTermID", id.NewPaymentTermID, "ptrm_"},
		{"PriceListID", id.NewPriceListID, "plst_"},
		{"EmployeeID", id.NewEmployeeID, "emp_"},
		{"UserID", id.NewUserID, "usr_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"SubscriptionID", id.NewSubscriptionID, id.ParseSubscriptionID},
		{"LineID", id.NewLineID, id.ParseLineID},
		{"HistoryID", id.NewHistoryID, id.ParseHistoryID},
		{"SaleID", id.NewSaleID, id.ParseSaleID},
		{"InvoiceID", id.NewInvoiceID, id.ParseInvoiceID},
		{"JobID", id.NewJobID, id.ParseJobID},
		{"SequenceID", id.NewSequenceID, id.ParseSequenceID},
		{"SessionID", id.NewSessionID, id.ParseSessionID},
		{"ProductID", id.NewProductID, id.ParseProductID},
		{"PartyID", id.NewPartyID, id.ParsePartyID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseSubscriptionID rejects subl_", id.NewLineID().String(), id.ParseSubscriptionID},
		{"ParseSaleID rejects inv_", id.NewInvoiceID().String(), id.ParseSaleID},
		{"ParseInvoiceID rejects sale_", id.NewSaleID().String(), id.ParseInvoiceID},
		{"ParseJobID rejects seq_", id.NewSequenceID().String(), id.ParseJobID},
		{"ParseSessionID rejects offer_", id.NewOfferID().String(), id.ParseSessionID},
		{"ParsePartyID rejects stud_", id.NewStudentID().String(), id.ParsePartyID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestFromString(t *testing.T) {
	got, err := id.FromString("")
	if err != nil {
		t.Fatalf("FromString(\"\") failed: %v", err)
	}
	if !got.IsNil() {
		t.Error("expected nil ID for empty string")
	}

	want := id.NewJobID()
	got, err = id.FromString(want.String())
	if err != nil {
		t.Fatalf("FromString failed: %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("mismatch: %q != %q", got.String(), want.String())
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewSubscriptionID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewSaleID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewSubscriptionID()
	b := id.NewSubscriptionID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewSubscriptionID() calls returned the same ID: %q", a.String())
	}
}
