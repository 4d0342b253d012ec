package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/api"
	"github.com/xraph/tuition/catalog"
	"github.com/xraph/tuition/host/memhost"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/party"
	"github.com/xraph/tuition/store/memory"
)

type server struct {
	app         *fiber.App
	session     *catalog.Session
	subscriptor *party.Party
	student     *party.Student
}

func newServer(t *testing.T) *server {
	t.Helper()
	st := memory.New()
	erp := memhost.New(memhost.WithReferencer(st))

	product := erp.AddProduct(&catalog.Product{
		Code:       "DE",
		Name:       "German course",
		ListPrice:  decimal.RequireFromString("15.00"),
		DefaultUOM: "unit",
	})
	offer := erp.AddOffer(&catalog.Offer{Name: "German A1", ProductID: product.ID, NumberCalls: 3})
	srv := &server{
		session: erp.AddSession(&catalog.Session{
			Name:    "German A1 - Evening",
			OfferID: offer.ID,
			State:   catalog.SessionOpen,
		}),
		subscriptor: erp.AddParty(&party.Party{Name: "Max Mustermann"}),
	}
	srv.student = erp.AddStudent(&party.Student{Name: "Max Mustermann", PartyID: srv.subscriptor.ID})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := tuition.New(st, tuition.Host{Sales: erp, Invoices: erp, Parties: erp, Catalog: erp},
		tuition.WithLogger(logger),
		tuition.WithSchedulerLoop(false),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	srv.app = api.NewApp(eng,
		api.WithLogger(logger),
		api.WithMetricsHandler(promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})),
	)
	return srv
}

func (s *server) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func (s *server) create(t *testing.T, withTerm bool) string {
	t.Helper()
	req := api.CreateSubscriptionRequest{
		Description:   "German for Max",
		SubscriptorID: s.subscriptor.ID.String(),
		StudentID:     s.student.ID.String(),
		Currency:      "EUR",
		Lines:         []api.AddLineRequest{{SessionID: s.session.ID.String()}},
	}
	if withTerm {
		req.PaymentTermID = id.NewPaymentTermID().String()
	}
	code, body := s.do(t, http.MethodPost, "/tuition/subscriptions", req)
	if code != http.StatusCreated {
		t.Fatalf("create: status %d, body %v", code, body)
	}
	return body["id"].(string)
}

func TestSubscriptionLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	subID := s.create(t, true)
	base := "/tuition/subscriptions/" + subID

	code, body := s.do(t, http.MethodGet, base, nil)
	if code != http.StatusOK {
		t.Fatalf("get: status %d", code)
	}
	if body["state"] != "draft" || body["total"] != "15" {
		t.Errorf("draft: got state %v total %v", body["state"], body["total"])
	}

	if code, _ := s.do(t, http.MethodPost, base+"/confirmed", nil); code != http.StatusConflict {
		t.Errorf("draft -> confirmed: status %d, want 409", code)
	}

	for _, event := range []string{"quotation", "confirmed", "processing"} {
		code, body := s.do(t, http.MethodPost, base+"/"+event, nil)
		if code != http.StatusOK {
			t.Fatalf("%s: status %d, body %v", event, code, body)
		}
		if body["state"] != event {
			t.Errorf("%s: state %v", event, body["state"])
		}
	}

	code, body = s.do(t, http.MethodPost, base+"/tick", nil)
	if code != http.StatusOK {
		t.Fatalf("tick: status %d", code)
	}
	if body["status"] != string(tuition.RecurrenceCreated) || body["ordinal"] != float64(1) {
		t.Errorf("tick: got %v", body)
	}

	code, body = s.do(t, http.MethodGet, base+"/history", nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("history: status %d body %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, base+"/copy", nil)
	if code != http.StatusCreated {
		t.Fatalf("copy: status %d", code)
	}
	if body["state"] != "draft" || body["id"] == subID {
		t.Errorf("copy: got %v", body)
	}
	if _, ok := body["code"]; ok {
		t.Errorf("copy should not carry a code, got %v", body["code"])
	}
}

func TestErrorStatusCodes(t *testing.T) {
	s := newServer(t)
	noTerm := s.create(t, false)

	if code, _ := s.do(t, http.MethodPost, "/tuition/subscriptions/"+noTerm+"/quotation", nil); code != http.StatusOK {
		t.Fatalf("quotation: status %d", code)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing payment term", http.MethodPost, "/tuition/subscriptions/" + noTerm + "/confirmed", nil, http.StatusUnprocessableEntity},
		{"unknown subscription", http.MethodGet, "/tuition/subscriptions/" + id.NewSubscriptionID().String(), nil, http.StatusNotFound},
		{"malformed id", http.MethodGet, "/tuition/subscriptions/nope", nil, http.StatusBadRequest},
		{"unknown event", http.MethodPost, "/tuition/subscriptions/" + noTerm + "/archive", nil, http.StatusNotFound},
		{"tick unknown subscription", http.MethodPost, "/tuition/subscriptions/" + id.NewSubscriptionID().String() + "/tick", nil, http.StatusNotFound},
		{"missing party ids", http.MethodPost, "/tuition/subscriptions", api.CreateSubscriptionRequest{Currency: "EUR"}, http.StatusUnprocessableEntity},
		{"bad state filter", http.MethodGet, "/tuition/subscriptions?state=paused", nil, http.StatusUnprocessableEntity},
		{"edit outside draft", http.MethodPost, "/tuition/subscriptions/" + noTerm + "/lines", api.AddLineRequest{SessionID: s.session.ID.String()}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, tt.method, tt.path, tt.body)
			if code != tt.want {
				t.Fatalf("status: got %d, want %d (body %v)", code, tt.want, body)
			}
			if body["error"] != true {
				t.Errorf("error body: got %v", body)
			}
		})
	}
}

func TestListAndDelete(t *testing.T) {
	s := newServer(t)
	first := s.create(t, true)
	s.create(t, true)

	code, body := s.do(t, http.MethodGet, "/tuition/subscriptions?state=draft&limit=1", nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("list: status %d body %v", code, body)
	}

	if code, _ := s.do(t, http.MethodDelete, "/tuition/subscriptions/"+first, nil); code != http.StatusNoContent {
		t.Fatalf("delete: status %d", code)
	}
	_, body = s.do(t, http.MethodGet, "/tuition/subscriptions", nil)
	if body["count"] != float64(1) {
		t.Errorf("after delete: got %v", body["count"])
	}
}

func TestCreateWithBadLinePersistsNothing(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name    string
		session string
		status  int
	}{
		{"malformed session", "garbage", http.StatusUnprocessableEntity},
		{"unknown session", id.NewSessionID().String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := api.CreateSubscriptionRequest{
				SubscriptorID: s.subscriptor.ID.String(),
				StudentID:     s.student.ID.String(),
				Lines: []api.AddLineRequest{
					{SessionID: s.session.ID.String()},
					{SessionID: tt.session},
				},
			}
			if code, body := s.do(t, http.MethodPost, "/tuition/subscriptions", req); code != tt.status {
				t.Fatalf("create: status %d, want %d (%v)", code, tt.status, body)
			}
			_, body := s.do(t, http.MethodGet, "/tuition/subscriptions", nil)
			if body["count"] != float64(0) {
				t.Errorf("subscriptions after failed create: got %v, want 0", body["count"])
			}
		})
	}
}

func TestAddLineWithZeroQuantity(t *testing.T) {
	s := newServer(t)
	subID := s.create(t, true)

	zero := decimal.Zero
	code, body := s.do(t, http.MethodPost, "/tuition/subscriptions/"+subID+"/lines",
		api.AddLineRequest{SessionID: s.session.ID.String(), Quantity: &zero})
	if code != http.StatusCreated {
		t.Fatalf("add line: status %d (%v)", code, body)
	}
	if body["quantity"] != "0" {
		t.Errorf("quantity = %v, want 0", body["quantity"])
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/health", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: status %d body %v", code, body)
	}
	if code, _ := s.do(t, http.MethodGet, "/metrics", nil); code != http.StatusOK {
		t.Errorf("metrics: status %d", code)
	}
}
