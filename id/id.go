// Package id defines TypeID-based identity types for all Tuition entities.
//
// Every entity in Tuition uses a single ID struct with a prefix that identifies
// the entity type. IDs are K-sortable (UUIDv7-based), globally unique,
// and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Tuition entity types.
const (
	PrefixSubscription Prefix = "sub"   // Training subscription
	PrefixLine         Prefix = "subl"  // Subscription line
	PrefixHistory      Prefix = "hist"  // Recurrence history entry
	PrefixSale         Prefix = "sale"  // Sale order
	PrefixSaleLine     Prefix = "sline" // Sale order line
	PrefixInvoice      Prefix = "inv"   // Customer invoice
	PrefixJob          Prefix = "job"   // Scheduled job
	PrefixSequence     Prefix = "seq"   // Code sequence
	PrefixSession      Prefix = "sess"  // Training session
	PrefixOffer        Prefix = "offer" // Training offer
	PrefixProduct      Prefix = "prod"  // Sellable product
	PrefixParty        Prefix = "party" // Party (customer, company)
	PrefixAddress      Prefix = "addr"  // Party address
	PrefixStudent      Prefix = "stud"  // Student
	PrefixPaymentTerm  Prefix = "ptrm"  // Payment term
	PrefixPriceList    Prefix = "plst"  // Price list
	PrefixEmployee     Prefix = "emp"   // Salesman
	PrefixUser         Prefix = "usr"   // Operator account
)

// ID is the primary identifier type for all Tuition entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "sub_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// SubscriptionID is a type-safe identifier for subscriptions (prefix: "sub").
type SubscriptionID = ID

// LineID is a type-safe identifier for subscription lines (prefix: "subl").
type LineID = ID

// HistoryID is a type-safe identifier for history entries (prefix: "hist").
type HistoryID = ID

// SaleID is a type-safe identifier for sale orders (prefix: "sale").
type SaleID = ID

// SaleLineID is a type-safe identifier for sale lines (prefix: "sline").
type SaleLineID = ID

// InvoiceID is a type-safe identifier for invoices (prefix: "inv").
type InvoiceID = ID

// JobID is a type-safe identifier for scheduled jobs (prefix: "job").
type JobID = ID

// SequenceID is a type-safe identifier for code sequences (prefix: "seq").
type SequenceID = ID

// SessionID is a type-safe identifier for training sessions (prefix: "sess").
type SessionID = ID

// OfferID is a type-safe identifier for training offers (prefix: "offer").
type OfferID = ID

// ProductID is a type-safe identifier for products (prefix: "prod").
type ProductID = ID

// PartyID is a type-safe identifier for parties (prefix: "party").
type PartyID = ID

// AddressID is a type-safe identifier for addresses (prefix: "addr").
type AddressID = ID

// StudentID is a type-safe identifier for students (prefix: "stud").
type StudentID = ID

// PaymentTermID is a type-safe identifier for payment terms (prefix: "ptrm").
type PaymentTermID = ID

// PriceListID is a type-safe identifier for price lists (prefix: "plst").
type PriceListID = ID

// EmployeeID is a type-safe identifier for salesmen (prefix: "emp").
type EmployeeID = ID

// UserID is a type-safe identifier for operator accounts (prefix: "usr").
type UserID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewSubscriptionID generates a new unique subscription ID.
func NewSubscriptionID() ID { return New(PrefixSubscription) }

// NewLineID generates a new unique subscription line ID.
func NewLineID() ID { return New(PrefixLine) }

// NewHistoryID generates a new unique history entry ID.
func NewHistoryID() ID { return New(PrefixHistory) }

// NewSaleID generates a new unique sale ID.
func NewSaleID() ID { return New(PrefixSale) }

// NewSaleLineID generates a new unique sale line ID.
func NewSaleLineID() ID { return New(PrefixSaleLine) }

// NewInvoiceID generates a new unique invoice ID.
func NewInvoiceID() ID { return New(PrefixInvoice) }

// NewJobID generates a new unique job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewSequenceID generates a new unique sequence ID.
func NewSequenceID() ID { return New(PrefixSequence) }

// NewSessionID generates a new unique session ID.
func NewSessionID() ID { return New(PrefixSession) }

// NewOfferID generates a new unique offer ID.
func NewOfferID() ID { return New(PrefixOffer) }

// NewProductID generates a new unique product ID.
func NewProductID() ID { return New(PrefixProduct) }

// NewPartyID generates a new unique party ID.
func NewPartyID() ID { return New(PrefixParty) }

// NewAddressID generates a new unique address ID.
func NewAddressID() ID { return New(PrefixAddress) }

// NewStudentID generates a new unique student ID.
func NewStudentID() ID { return New(PrefixStudent) }

// NewPaymentTermID generates a new unique payment term ID.
func NewPaymentTermID() ID { return New(PrefixPaymentTerm) }

// NewPriceListID generates a new unique price list ID.
func NewPriceListID() ID { return New(PrefixPriceList) }

// NewEmployeeID generates a new unique employee ID.
func NewEmployeeID() ID { return New(PrefixEmployee) }

// NewUserID generates a new unique user ID.
func NewUserID() ID { return New(PrefixUser) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseSubscriptionID parses a string and validates the "sub" prefix.
func ParseSubscriptionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSubscription) }

// ParseLineID parses a string and validates the "subl" prefix.
func ParseLineID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLine) }

// ParseHistoryID parses a string and validates the "hist" prefix.
func ParseHistoryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixHistory) }

// ParseSaleID parses a string and validates the "sale" prefix.
func ParseSaleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSale) }

// ParseInvoiceID parses a string and validates the "inv" prefix.
func ParseInvoiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInvoice) }

// ParseJobID parses a string and validates the "job" prefix.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseSequenceID parses a string and validates the "seq" prefix.
func ParseSequenceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSequence) }

// ParseSessionID parses a string and validates the "sess" prefix.
func ParseSessionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSession) }

// ParseProductID parses a string and validates the "prod" prefix.
func ParseProductID(s string) (ID, error) { return ParseWithPrefix(s, PrefixProduct) }

// ParsePartyID parses a string and validates the "party" prefix.
func ParsePartyID(s string) (ID, error) { return ParseWithPrefix(s, PrefixParty) }

// ParseUserID parses a string and validates the "usr" prefix.
func ParseUserID(s string) (ID, error) { return ParseWithPrefix(s, PrefixUser) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

// FromString parses s, mapping the empty string to Nil. Store backends use it
// for nullable reference columns.
func FromString(s string) (ID, error) {
	if s == "" {
		return Nil, nil
	}
	return Parse(s)
}
