// Package api exposes the subscription engine over HTTP with Fiber.
package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/subscription"
)

// Handler serves the subscription routes.
type Handler struct {
	eng    *tuition.Engine
	logger *slog.Logger
}

// NewHandler creates a handler over eng.
func NewHandler(eng *tuition.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = eng.Logger()
	}
	return &Handler{eng: eng, logger: logger}
}

// Register mounts the subscription routes on r. The fixed-name actions are
// registered before the generic event route so they win the match.
func (h *Handler) Register(r fiber.Router) {
	subs := r.Group("/subscriptions")
	subs.Post("/", h.create)
	subs.Get("/", h.list)
	subs.Get("/:id", h.get)
	subs.Delete("/:id", h.delete)

	subs.Post("/:id/lines", h.addLine)
	subs.Patch("/:id/lines/:line", h.updateLine)
	subs.Delete("/:id/lines/:line", h.removeLine)

	subs.Get("/:id/history", h.history)
	subs.Post("/:id/copy", h.copy)
	subs.Post("/:id/tick", h.tick)
	subs.Post("/:id/:event", h.transition)
}

// ──────────────────────────────────────────────────
// CRUD
// ──────────────────────────────────────────────────

func (h *Handler) create(c *fiber.Ctx) error {
	var req CreateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	sub, err := req.toSubscription()
	if err != nil {
		return err
	}
	// Lines are validated and priced with the header so a bad line
	// persists nothing.
	for i := range req.Lines {
		line, err := req.Lines[i].toLine()
		if err != nil {
			return err
		}
		sub.Lines = append(sub.Lines, line)
	}
	ctx := c.UserContext()
	if err := h.eng.CreateSubscription(ctx, sub); err != nil {
		return err
	}

	created, err := h.eng.GetSubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) list(c *fiber.Ctx) error {
	opts := subscription.ListOpts{
		State:  subscription.State(c.Query("state")),
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	}
	if raw := c.Query("subscriptor_id"); raw != "" {
		var p fieldParser
		opts.SubscriptorID = p.optional("subscriptor_id", raw)
		if err := p.err.Err(); err != nil {
			return err
		}
	}
	if opts.State != "" && !opts.State.Valid() {
		return tuition.ValidationError{Field: "state", Message: "unknown state " + strconv.Quote(string(opts.State))}
	}

	subs, err := h.eng.ListSubscriptions(c.UserContext(), opts)
	if err != nil {
		return err
	}
	return c.JSON(SubscriptionListResponse{Items: subs, Count: len(subs)})
}

func (h *Handler) get(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	sub, err := h.eng.GetSubscription(c.UserContext(), subID)
	if err != nil {
		return err
	}
	return c.JSON(sub)
}

func (h *Handler) delete(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	if err := h.eng.DeleteSubscription(c.UserContext(), subID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ──────────────────────────────────────────────────
// Lines
// ──────────────────────────────────────────────────

func (h *Handler) addLine(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	var req AddLineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	sessionID, err := req.parse()
	if err != nil {
		return err
	}
	line, err := h.eng.AddLine(c.UserContext(), subID, sessionID, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(line)
}

func (h *Handler) updateLine(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	lineID, err := id.ParseLineID(c.Params("line"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	var u tuition.LineUpdate
	if err := c.BodyParser(&u); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	line, err := h.eng.UpdateLine(c.UserContext(), subID, lineID, u)
	if err != nil {
		return err
	}
	return c.JSON(line)
}

func (h *Handler) removeLine(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	lineID, err := id.ParseLineID(c.Params("line"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.eng.RemoveLine(c.UserContext(), subID, lineID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ──────────────────────────────────────────────────
// Workflow
// ──────────────────────────────────────────────────

func (h *Handler) transition(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	event := subscription.Event(c.Params("event"))
	if !knownEvent(event) {
		return fiber.NewError(fiber.StatusNotFound, "unknown event "+strconv.Quote(string(event)))
	}
	sub, err := h.eng.Transition(c.UserContext(), subID, event)
	if err != nil {
		return err
	}
	return c.JSON(sub)
}

func (h *Handler) copy(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	var req CopyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed body")
		}
	}
	dup, err := h.eng.Copy(c.UserContext(), subID, tuition.CopyOptions{Date: req.Date})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dup)
}

// tick runs one recurrence by hand. The result is returned as is; only a
// tick aborted because the subscription is missing fails the request.
func (h *Handler) tick(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	res := h.eng.ModelCopy(c.UserContext(), subID)
	if res.Status == tuition.RecurrenceAborted && tuition.IsNotFound(res.Err) {
		return res.Err
	}
	return c.JSON(struct {
		*tuition.RecurrenceResult
		Error string `json:"error,omitempty"`
	}{res, res.Message()})
}

func (h *Handler) history(c *fiber.Ctx) error {
	subID, err := subscriptionID(c)
	if err != nil {
		return err
	}
	entries, err := h.eng.History(c.UserContext(), subID, history.ListOpts{
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	})
	if err != nil {
		return err
	}
	return c.JSON(HistoryResponse{Items: entries, Count: len(entries)})
}

// ──────────────────────────────────────────────────
// Health
// ──────────────────────────────────────────────────

func (h *Handler) health(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Store:     "ok",
	}
	if err := h.eng.Store().Ping(c.UserContext()); err != nil {
		resp.Status = "degraded"
		resp.Store = "unhealthy: " + err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

func subscriptionID(c *fiber.Ctx) (id.SubscriptionID, error) {
	subID, err := id.ParseSubscriptionID(c.Params("id"))
	if err != nil {
		return id.Nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return subID, nil
}

func knownEvent(ev subscription.Event) bool {
	for _, known := range subscription.Events {
		if ev == known {
			return true
		}
	}
	return false
}
