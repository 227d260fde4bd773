package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/battleevent/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newProtectedRouter(sec config.SecurityConfig) *gin.Engine {
	r := gin.New()
	r.Use(AdminAuth(sec))
	r.GET("/protected", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, GetOperator(ctx))
	})
	return r
}

func authStatus(t *testing.T, sec config.SecurityConfig, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	newProtectedRouter(sec).ServeHTTP(w, req)
	return w
}

func TestAdminAuth(t *testing.T) {
	sec := config.SecurityConfig{AdminJWTSecret: testSecret}
	admin, err := GenerateToken("ops", RoleAdmin, testSecret, time.Hour)
	require.NoError(t, err)
	viewer, err := GenerateToken("guest", "viewer", testSecret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token abc123", http.StatusUnauthorized},
		{"invalid token", "Bearer notavalidtoken", http.StatusUnauthorized},
		{"wrong role", "Bearer " + viewer, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, authStatus(t, sec, tt.header).Code)
		})
	}
}

func TestAdminAuth_SetsOperator(t *testing.T) {
	sec := config.SecurityConfig{AdminJWTSecret: testSecret}
	tok, err := GenerateToken("ops", RoleAdmin, testSecret, time.Hour)
	require.NoError(t, err)

	w := authStatus(t, sec, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", w.Body.String())
}

func TestAdminAuth_DisabledWithoutSecret(t *testing.T) {
	tok, err := GenerateToken("ops", RoleAdmin, "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, authStatus(t, config.SecurityConfig{}, "Bearer "+tok).Code)
}

func TestGetOperator_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetOperator(c))
}

func TestRecovery_CatchesPanic(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(TraceID())
	r.Use(Recovery(zap.New(core)))
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte(w.Header().Get(TraceIDHeader))))
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRecovery_NoPanic_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(TraceID())
	r.Use(Logger(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ping", "/missing", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/ping", entries[0].ContextMap()["path"])
	assert.NotEmpty(t, entries[0].ContextMap()["trace_id"])
}
