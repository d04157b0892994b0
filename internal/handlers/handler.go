package handlers

import (
	"errors"

	"github.com/chainguard-dev/clog"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rlduels/duelsrv/internal/model"
	"github.com/rlduels/duelsrv/internal/session"
)

// #region handler-struct
// Handler exposes the session over HTTP.
type Handler struct {
	Session *session.Controller
}

// NewHandler creates the HTTP handler for one session controller.
func NewHandler(s *session.Controller) *Handler {
	return &Handler{Session: s}
}

// Register mounts all routes on the app. Media files are served by
// basename out of mediaDir, matching the leftMedia/rightMedia fields.
func (h *Handler) Register(app *fiber.App, mediaDir string) {
	app.Get("/", h.ConfigStatus)
	app.Get("/next_pair", h.NextPair)
	app.Get("/rewards/:pairId", h.RewardsFor)
	app.Post("/trim", h.Trim)
	app.Post("/judgment", h.Judgment)
	app.Post("/terminate", h.Terminate)
	app.Get("/judgments", h.Judgments)
	if mediaDir != "" {
		app.Static("/media", mediaDir)
	}
}
// #endregion handler-struct

// #region request-bodies
type trimRequest struct {
	PairID string `json:"pairId"`
	session.TrimRequest
}

type judgmentRequest struct {
	PairID  string `json:"pairId"`
	Outcome string `json:"outcome"`
}
// #endregion request-bodies

// #region routes
// ConfigStatus reports the four session flags, as the frontend reads
// them at startup.
func (h *Handler) ConfigStatus(c *fiber.Ctx) error {
	return c.JSON(h.Session.Config())
}

// NextPair serves the next pair to present, or the exhausted signal.
func (h *Handler) NextPair(c *fiber.Ctx) error {
	view, err := h.Session.NextPair(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(view)
}

// RewardsFor serves the debug-only reward aggregates for a pair.
func (h *Handler) RewardsFor(c *fiber.Ctx) error {
	pairID, err := uuid.Parse(c.Params("pairId"))
	if err != nil {
		return h.badRequest(c, "invalid pair id")
	}
	r, err := h.Session.RewardsFor(c.UserContext(), pairID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(r)
}

// Trim applies edited windows to both sides of a pair.
func (h *Handler) Trim(c *fiber.Ctx) error {
	var req trimRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid trim payload")
	}
	pairID, err := uuid.Parse(req.PairID)
	if err != nil {
		return h.badRequest(c, "invalid pair id")
	}
	bounds, err := h.Session.Trim(c.UserContext(), pairID, req.TrimRequest)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(bounds)
}

// Judgment records the reviewer's outcome for a pair.
func (h *Handler) Judgment(c *fiber.Ctx) error {
	var req judgmentRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid judgment payload")
	}
	pairID, err := uuid.Parse(req.PairID)
	if err != nil {
		return h.badRequest(c, "invalid pair id")
	}
	if _, err := h.Session.Judge(c.UserContext(), pairID, model.Outcome(req.Outcome)); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"accepted": true})
}

// Terminate ends the session; repeat calls are no-ops.
func (h *Handler) Terminate(c *fiber.Ctx) error {
	if err := h.Session.Terminate(c.UserContext()); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": "session terminated"})
}

// Judgments dumps every committed judgment.
func (h *Handler) Judgments(c *fiber.Ctx) error {
	list, err := h.Session.Judgments(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	if list == nil {
		list = []model.Judgment{}
	}
	return c.JSON(fiber.Map{"judgments": list})
}
// #endregion routes

// #region error-mapping
func (h *Handler) badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "kind": "bad_request"})
}

// fail maps a domain error onto a status code and a stable kind string.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var conflict *model.ConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   conflict.Error(),
			"kind":    "conflict",
			"outcome": conflict.Existing.Outcome,
		})
	}

	status := fiber.StatusInternalServerError
	kind := "internal"
	switch {
	case errors.Is(err, model.ErrNotFound):
		status, kind = fiber.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrInvalidRange):
		status, kind = fiber.StatusUnprocessableEntity, "invalid_range"
	case errors.Is(err, model.ErrInvalidOutcome):
		status, kind = fiber.StatusUnprocessableEntity, "invalid_outcome"
	case errors.Is(err, model.ErrConflict):
		status, kind = fiber.StatusConflict, "conflict"
	case errors.Is(err, model.ErrExhausted):
		status, kind = fiber.StatusGone, "exhausted"
	case errors.Is(err, model.ErrSessionEnded):
		status, kind = fiber.StatusGone, "session_ended"
	case errors.Is(err, model.ErrNotReady):
		status, kind = fiber.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, model.ErrEditingDisabled):
		status, kind = fiber.StatusForbidden, "editing_disabled"
	case errors.Is(err, model.ErrRewardsHidden):
		status, kind = fiber.StatusForbidden, "rewards_hidden"
	case errors.Is(err, model.ErrStorage):
		status, kind = fiber.StatusInternalServerError, "storage_failure"
	}

	if status == fiber.StatusInternalServerError {
		clog.FromContext(c.UserContext()).Errorf("request failed: %v", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "kind": kind})
}
// #endregion error-mapping
