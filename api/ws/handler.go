// Package ws runs interactive battles over WebSocket: the client starts a
// battle, receives every battle event, and answers input requests with the
// command each party member uses.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/battleevent/arena"
	"github.com/kasuganosora/battleevent/config"
	mw "github.com/kasuganosora/battleevent/middleware"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws/battle.
type Handler struct {
	runner       *arena.Runner
	sec          config.SecurityConfig
	inputTimeout time.Duration
	router       *Router
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler and registers the battle messages.
// sec.AllowedOrigins controls which origins are accepted; empty permits all.
func NewHandler(runner *arena.Runner, sec config.SecurityConfig, bc config.BattleConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		runner:       runner,
		sec:          sec,
		inputTimeout: bc.InputTimeout,
		router:       NewRouter(logger),
		logger:       logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return slices.Contains(allowed, r.Header.Get("Origin"))
		},
	}
	h.registerBattle(h.router)
	h.router.On("ping", func(_ context.Context, s *Session, _ json.RawMessage) error {
		s.Send("pong", map[string]int64{"server_ts": time.Now().UnixMilli()})
		return nil
	})
	return h
}

// ServeWS handles GET /ws/battle?token=<jwt>. The token must carry the admin role.
func (h *Handler) ServeWS(c *gin.Context) {
	if h.sec.AdminJWTSecret == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin api disabled"})
		return
	}
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := mw.ParseToken(tokenStr, h.sec.AdminJWTSecret)
	if err != nil || claims.Role != mw.RoleAdmin {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	s := NewSession(claims.Subject, conn, h.logger)
	h.logger.Info("operator connected", zap.String("operator", s.Operator))
	h.readPump(s)
}

// readPump reads messages until the connection closes.
func (h *Handler) readPump(s *Session) {
	defer h.handleDisconnect(s)

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.String("operator", s.Operator),
					zap.Error(err))
			}
			return
		}
		s.SetReadDeadline()
		h.router.Dispatch(context.Background(), s, raw)
	}
}

// handleDisconnect aborts a running battle; it is still recorded.
func (h *Handler) handleDisconnect(s *Session) {
	if lb := s.battle(); lb != nil {
		lb.cancel()
	}
	s.Close()
	h.logger.Info("operator disconnected", zap.String("operator", s.Operator))
}
