package main

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/host/memhost"
	"github.com/xraph/tuition/party"
	"github.com/xraph/tuition/scheduler"
)

// seedDemo registers a monthly course with one open session and a customer
// who is their own student.
func seedDemo(h *memhost.Host, log *slog.Logger) {
	product := h.AddProduct(&catalog.Product{
		Code:       "ENG-B1",
		Name:       "English B1",
		ListPrice:  decimal.RequireFromString("120.00"),
		DefaultUOM: "unit",
	})
	offer := h.AddOffer(&catalog.Offer{
		Name:           "English B1 monthly",
		ProductID:      product.ID,
		IntervalNumber: 1,
		IntervalType:   scheduler.IntervalMonths,
		NumberCalls:    6,
	})
	session := h.AddSession(&catalog.Session{
		Name:    "English B1 - Mornings",
		OfferID: offer.ID,
		State:   catalog.SessionOpen,
	})
	customer := h.AddParty(&party.Party{Name: "Ana Torres"})
	student := h.AddStudent(&party.Student{Name: "Ana Torres", PartyID: customer.ID})

	log.Info("demo catalog seeded",
		"product", product.ID.String(),
		"session", session.ID.String(),
		"party", customer.ID.String(),
		"student", student.ID.String(),
	)
}
