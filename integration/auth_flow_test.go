package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/kasuganosora/battleevent/config"
	mw "github.com/kasuganosora/battleevent/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_PublicRoutesOpen(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.Get(t, "/health", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.Get(t, "/api/troops/1", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_BattleRoutesNeedAdmin(t *testing.T) {
	ts := NewTestServer(t)
	viewer, err := mw.GenerateToken("viewer", "viewer", adminSecret, time.Hour)
	require.NoError(t, err)
	expired, err := mw.GenerateToken("ops", mw.RoleAdmin, adminSecret, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"wrong role", viewer, http.StatusForbidden},
		{"admin", ts.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.PostJSON(t, "/api/troops/1/battles", map[string]any{"party": []int{1}}, tt.token)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAuth_NoSecretDisablesBattles(t *testing.T) {
	ts := NewTestServer(t, func(c *config.Config) { c.Security.AdminJWTSecret = "" })
	resp := ts.PostJSON(t, "/api/troops/1/battles", map[string]any{"party": []int{1}}, "anything")
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAuth_AdminIPWhitelist(t *testing.T) {
	ts := NewTestServer(t, func(c *config.Config) { c.Security.AdminIPs = []string{"10.0.0.0/8"} })

	resp := ts.PostJSON(t, "/api/troops/1/battles", map[string]any{"party": []int{1}}, ts.Token)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "loopback is not in 10/8")

	resp = ts.Get(t, "/ws/battle?token="+ts.Token, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// public routes ignore the list
	resp = ts.Get(t, "/api/troops/1", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_RateLimit(t *testing.T) {
	ts := NewTestServer(t, func(c *config.Config) {
		c.Security.RateLimitRPS = 1
		c.Security.RateLimitBurst = 2
	})
	codes := make([]int, 0, 4)
	for range 4 {
		resp := ts.Get(t, "/health", "")
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}
