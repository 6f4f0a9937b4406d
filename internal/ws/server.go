package ws

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherspace/realtime-service/internal/auth"
	"github.com/gatherspace/realtime-service/internal/chat"
	"github.com/gatherspace/realtime-service/internal/config"
	"github.com/gatherspace/realtime-service/internal/hub"
	"github.com/gatherspace/realtime-service/internal/metrics"
	"github.com/gatherspace/realtime-service/internal/presence"
)

// Server is the socket transport adapter. Handshake runs the identity
// bridge; a failed resolution closes the connection before any operation is
// accepted.
type Server struct {
	hub      *hub.Hub
	svc      *chat.Service
	verifier *auth.Verifier
	presence presence.Tracker
	cfg      *config.Config
	log      *zap.SugaredLogger
}

func NewServer(h *hub.Hub, svc *chat.Service, v *auth.Verifier, p presence.Tracker, cfg *config.Config, log *zap.SugaredLogger) *Server {
	return &Server{
		hub:      h,
		svc:      svc,
		verifier: v,
		presence: p,
		cfg:      cfg,
		log:      log,
	}
}

// HandleWS authenticates the handshake, registers the connection and runs
// the pumps. The token rides the query string as connection metadata.
func (s *Server) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		userID, err := s.verifier.Resolve(token)
		if err != nil {
			s.log.Debugw("handshake rejected", "err", err)
			_ = conn.WriteJSON(map[string]string{"type": "error", "message": "authentication failed"})
			_ = conn.Close()
			return
		}

		c := newClient(uuid.NewString(), userID, conn, s)
		s.hub.AddClient(c.id, userID, c)
		metrics.Connections.Inc()
		if s.presence != nil {
			s.presence.Online(context.Background(), userID)
		}
		s.log.Infow("socket connected", "user_id", userID, "conn_id", c.id)

		go c.writePump()
		c.readPump()
	}
}
