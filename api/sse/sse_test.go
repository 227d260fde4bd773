package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/battleevent/config"
	"github.com/kasuganosora/battleevent/game/battle"
	mw "github.com/kasuganosora/battleevent/middleware"
	"github.com/kasuganosora/battleevent/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "sse-test-secret"

func init() { gin.SetMode(gin.TestMode) }

func adminToken(t *testing.T, role string) string {
	t.Helper()
	tok, err := mw.GenerateToken("ops", role, secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestServeBattle_Auth(t *testing.T) {
	_, ps := testutil.SetupTestCache(t)
	h := NewHandler(ps, config.SecurityConfig{AdminJWTSecret: secret}, nil)
	r := gin.New()
	r.GET("/api/battles/:id/stream", h.ServeBattle)

	id := uuid.NewString()
	tests := []struct {
		name string
		url  string
		want int
	}{
		{"bad id", "/api/battles/nope/stream?token=" + adminToken(t, mw.RoleAdmin), http.StatusBadRequest},
		{"no token", "/api/battles/" + id + "/stream", http.StatusUnauthorized},
		{"viewer token", "/api/battles/" + id + "/stream?token=" + adminToken(t, "viewer"), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServeBattle_StreamsUntilBattleEnd(t *testing.T) {
	_, ps := testutil.SetupTestCache(t)
	h := NewHandler(ps, config.SecurityConfig{AdminJWTSecret: secret}, nil)
	r := gin.New()
	r.GET("/api/battles/:id/stream", h.ServeBattle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/battles/"+id+"/stream?token="+adminToken(t, mw.RoleAdmin), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	sink := battle.NewPublishSink(ps, id, nil)
	sink.Emit(battle.EventTurnStart{TurnCount: 1})
	sink.Emit(battle.EventBattleEnd{Result: battle.ResultWin, Name: "win"})

	var events []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event: ")))
		}
	}
	assert.Equal(t, []string{"turn_start", "battle_end"}, events)
}
