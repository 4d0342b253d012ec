// Package party resolves billing parties, students and their addresses.
package party

import (
	"context"
	"errors"

	"github.com/xraph/tuition/id"
)

// Lookup errors.
var (
	ErrPartyNotFound   = errors.New("tuition: party not found")
	ErrStudentNotFound = errors.New("tuition: student not found")
)

// AddressKind selects which address of a party to use.
type AddressKind string

const (
	AddressInvoice  AddressKind = "invoice"
	AddressDelivery AddressKind = "delivery"
)

// Address is a postal address of a party.
type Address struct {
	ID       id.AddressID `json:"id"`
	PartyID  id.PartyID   `json:"party_id"`
	Street   string       `json:"street"`
	City     string       `json:"city"`
	Invoice  bool         `json:"invoice"`
	Delivery bool         `json:"delivery"`
}

// Party is a person or company that can be billed.
type Party struct {
	ID        id.PartyID `json:"id"`
	Name      string     `json:"name"`
	Addresses []Address  `json:"addresses,omitempty"`
}

// AddressGet returns the first address flagged for kind, falling back to the
// first address. It returns nil when the party has no address.
func (p *Party) AddressGet(kind AddressKind) *Address {
	for i := range p.Addresses {
		a := &p.Addresses[i]
		if (kind == AddressInvoice && a.Invoice) || (kind == AddressDelivery && a.Delivery) {
			return a
		}
	}
	if len(p.Addresses) > 0 {
		return &p.Addresses[0]
	}
	return nil
}

// Student is the beneficiary of a subscription. Each student is backed by a
// party used for billing when invoicing by student.
type Student struct {
	ID      id.StudentID `json:"id"`
	Name    string       `json:"name"`
	PartyID id.PartyID   `json:"party_id"`
}

// Directory resolves parties and students.
type Directory interface {
	GetParty(ctx context.Context, partyID id.PartyID) (*Party, error)
	GetStudent(ctx context.Context, studentID id.StudentID) (*Student, error)
}
