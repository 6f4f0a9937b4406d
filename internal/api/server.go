package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gatherspace/realtime-service/internal/apperr"
	"github.com/gatherspace/realtime-service/internal/auth"
	"github.com/gatherspace/realtime-service/internal/chat"
	"github.com/gatherspace/realtime-service/internal/config"
	"github.com/gatherspace/realtime-service/internal/hub"
	"github.com/gatherspace/realtime-service/internal/poll"
	"github.com/gatherspace/realtime-service/internal/presence"
	wss "github.com/gatherspace/realtime-service/internal/ws"
)

type Server struct {
	svc      *chat.Service
	hub      *hub.Hub
	presence presence.Tracker
	log      *zap.SugaredLogger
}

// NewServer wires both transports under one fiber app: the socket upgrade at
// /v1/ws and the polling one-shot calls under /v1/poll.
func NewServer(cfg *config.Config, svc *chat.Service, h *hub.Hub, wsSrv *wss.Server, pollH *poll.Handler, verifier *auth.Verifier, p presence.Tracker, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.PollMaxWait + 5*time.Second,
	})
	app.Use(fiberlogger.New())

	s := &Server{svc: svc, hub: h, presence: p, log: log}

	v1 := app.Group("/v1")
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(wsSrv.HandleWS()))

	authed := v1.Group("", AuthMiddleware(verifier))
	authed.Get("/presence/:user_id", s.getPresence)
	authed.Get("/poll/events", pollH.Drain)
	authed.Post("/poll/messages", pollH.Send)
	authed.Post("/poll/read", pollH.MarkRead)
	authed.Post("/poll/join", pollH.Join)
	authed.Post("/poll/leave", pollH.Leave)
	authed.Get("/conversations/:conversation_id/messages", s.listMessages)

	return app
}

// AuthMiddleware resolves the session credential from the Authorization
// header or the session cookie and stores the user id in locals.
func AuthMiddleware(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		credential := ""
		if h := c.Get("Authorization"); h != "" {
			token, err := auth.ParseBearerToken(h)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
			}
			credential = token
		} else {
			credential = c.Cookies("session")
		}

		userID, err := verifier.Resolve(credential)
		if err != nil {
			status := fiber.StatusUnauthorized
			msg := apperr.ErrInvalidCredential.Error()
			if errors.Is(err, apperr.ErrNoCredential) {
				msg = apperr.ErrNoCredential.Error()
			}
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	conversationID := c.Params("conversation_id")
	userID := c.Locals("user_id").(string)

	var before time.Time
	if q := c.Query("before"); q != "" {
		t, err := time.Parse(time.RFC3339Nano, q)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid before timestamp")
		}
		before = t
	}
	limit := int64(c.QueryInt("limit", 50))

	msgs, err := s.svc.History(c.Context(), conversationID, userID, limit, before)
	if err != nil {
		if errors.Is(err, apperr.ErrNotAMember) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": apperr.ErrNotAMember.Error()})
		}
		if errors.Is(err, apperr.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": apperr.ErrNotFound.Error()})
		}
		s.log.Errorw("list messages failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (s *Server) getPresence(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	online := false
	if s.presence != nil {
		online = s.presence.IsOnline(c.Context(), userID)
	} else {
		online = s.hub.IsUserConnected(userID)
	}
	return c.JSON(fiber.Map{"user_id": userID, "online": online})
}
