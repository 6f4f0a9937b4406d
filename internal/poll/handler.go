package poll

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gatherspace/realtime-service/internal/apperr"
	"github.com/gatherspace/realtime-service/internal/chat"
	"github.com/gatherspace/realtime-service/internal/config"
	"github.com/gatherspace/realtime-service/internal/event"
	"github.com/gatherspace/realtime-service/internal/hub"
	"github.com/gatherspace/realtime-service/internal/metrics"
	"github.com/gatherspace/realtime-service/internal/queue"
)

// Handler is the polling transport adapter: the same logical operations as
// the socket adapter, as one-shot HTTP calls. Every request authenticates
// independently (middleware puts user_id in locals); room registrations are
// keyed by user id because there is no connection object to key on.
type Handler struct {
	svc     *chat.Service
	pending *queue.Pending
	rooms   *hub.Registry
	cfg     *config.Config
	log     *zap.SugaredLogger
}

func NewHandler(svc *chat.Service, pending *queue.Pending, rooms *hub.Registry, cfg *config.Config, log *zap.SugaredLogger) *Handler {
	return &Handler{
		svc:     svc,
		pending: pending,
		rooms:   rooms,
		cfg:     cfg,
		log:     log,
	}
}

// Drain atomically pops and returns the caller's entire pending queue. With
// ?wait=1 it long-polls, bounded by the configured max wait so the request
// never hangs past serverless execution limits.
func (h *Handler) Drain(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	metrics.PollDrains.Inc()

	var events []event.Event
	if c.Query("wait") == "1" {
		events = h.pending.DrainWait(c.Context(), userID, h.cfg.PollMaxWait)
	} else {
		events = h.pending.Drain(userID)
	}
	return c.JSON(fiber.Map{"events": events})
}

type sendReq struct {
	ConversationID string   `json:"conversation_id"`
	Content        string   `json:"content"`
	Attachments    []string `json:"attachments,omitempty"`
}

func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if req.ConversationID == "" || req.Content == "" {
		return fiber.NewError(fiber.StatusBadRequest, "conversation_id and content required")
	}
	userID := c.Locals("user_id").(string)

	msg, err := h.svc.Send(c.Context(), req.ConversationID, userID, req.Content, req.Attachments)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

type convReq struct {
	ConversationID string `json:"conversation_id"`
}

func (h *Handler) Join(c *fiber.Ctx) error {
	var req convReq
	if err := c.BodyParser(&req); err != nil || req.ConversationID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "conversation_id required")
	}
	userID := c.Locals("user_id").(string)

	if err := h.svc.Authorize(c.Context(), req.ConversationID, userID); err != nil {
		return h.fail(c, err)
	}
	h.rooms.Join(req.ConversationID, userID)
	return c.JSON(event.ConversationJoined(req.ConversationID, userID))
}

func (h *Handler) Leave(c *fiber.Ctx) error {
	var req convReq
	if err := c.BodyParser(&req); err != nil || req.ConversationID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "conversation_id required")
	}
	userID := c.Locals("user_id").(string)
	h.rooms.Leave(req.ConversationID, userID)
	return c.JSON(fiber.Map{"status": "ok"})
}

type readReq struct {
	MessageID string `json:"message_id"`
}

func (h *Handler) MarkRead(c *fiber.Ctx) error {
	var req readReq
	if err := c.BodyParser(&req); err != nil || req.MessageID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message_id required")
	}
	userID := c.Locals("user_id").(string)

	if err := h.svc.MarkRead(c.Context(), req.MessageID, userID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotAMember):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": apperr.ErrNotAMember.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": apperr.ErrNotFound.Error()})
	case errors.Is(err, apperr.ErrPersistence):
		h.log.Errorw("persistence failure", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.ErrPersistence.Error()})
	default:
		h.log.Errorw("poll op failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
