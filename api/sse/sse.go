// Package sse streams live battle events to operators over server-sent events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/battleevent/cache"
	"github.com/kasuganosora/battleevent/config"
	"github.com/kasuganosora/battleevent/game/battle"
	mw "github.com/kasuganosora/battleevent/middleware"
	"go.uber.org/zap"
)

const keepaliveInterval = 30 * time.Second

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	sec       config.SecurityConfig
	logger    *zap.Logger
	keepalive time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, sec: sec, logger: logger, keepalive: keepaliveInterval}
}

// authorize accepts an admin token from the Authorization header or, for
// browser EventSource clients, the token query parameter.
func (h *Handler) authorize(c *gin.Context) bool {
	tokenStr := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if tokenStr == "" {
		tokenStr = c.Query("token")
	}
	if h.sec.AdminJWTSecret == "" || tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return false
	}
	claims, err := mw.ParseToken(tokenStr, h.sec.AdminJWTSecret)
	if err != nil || claims.Role != mw.RoleAdmin {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return false
	}
	return true
}

// ServeBattle handles GET /api/battles/:id/stream?token=<jwt>.
// Subscribe before starting the battle with the same battle_id; the stream
// closes after the battle_end event.
func (h *Handler) ServeBattle(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid battle id"})
		return
	}
	if !h.authorize(c) {
		return
	}

	msgCh, unsub, err := h.pubsub.Subscribe(c.Request.Context(), battle.Channel(id))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("battle_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"battle_id\":%q}\n\n", id)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			var env struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Type == "" {
				env.Type = "message"
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", env.Type, msg.Payload)
			c.Writer.Flush()
			if env.Type == (battle.EventBattleEnd{}).EventType() {
				return
			}

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
