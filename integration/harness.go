package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apirest "github.com/kasuganosora/battleevent/api/rest"
	"github.com/kasuganosora/battleevent/api/sse"
	apiws "github.com/kasuganosora/battleevent/api/ws"
	"github.com/kasuganosora/battleevent/arena"
	"github.com/kasuganosora/battleevent/battlelog"
	"github.com/kasuganosora/battleevent/cache"
	"github.com/kasuganosora/battleevent/config"
	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/game/state"
	"github.com/kasuganosora/battleevent/game/troop"
	mw "github.com/kasuganosora/battleevent/middleware"
	"github.com/kasuganosora/battleevent/resource"
	"github.com/kasuganosora/battleevent/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const adminSecret = "integration-test-secret"

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	State  *state.GameState
	Logs   *battlelog.Service
	Res    *resource.ResourceLoader
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws/battle
	Sec    config.SecurityConfig
	Token  string // admin token
}

// ServerOption tweaks the configuration before the server is wired.
type ServerOption func(*config.Config)

// NewTestServer creates a fully wired battle server for integration testing.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T, opts ...ServerOption) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Security.AdminJWTSecret = adminSecret
	cfg.Security.RateLimitRPS = 1000
	cfg.Security.RateLimitBurst = 2000
	cfg.Battle.InputTimeout = 5 * time.Second
	for _, o := range opts {
		o(cfg)
	}

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	res := Resources()
	gameState := state.New(db, time.Hour, logger)
	t.Cleanup(gameState.Stop)
	logs := battlelog.New(db, logger)
	t.Cleanup(func() { logs.Stop(context.Background()) })

	runner := arena.New(arena.Deps{
		Res:    res,
		State:  gameState,
		Battle: cfg.Battle,
		Logs:   logs,
		Cache:  c,
		PubSub: pubsub,
		Logger: logger,
	})

	// ---- Gin HTTP Server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	r.GET("/health", apirest.Health)

	troopH := apirest.NewTroopHandler(runner, logger)
	sseH := sse.NewHandler(pubsub, cfg.Security, logger)
	wsH := apiws.NewHandler(runner, cfg.Security, cfg.Battle, logger)

	api := r.Group("/api")
	{
		api.GET("/troops/:id", troopH.Detail)
		api.GET("/battles/:id", troopH.GetBattle)

		adminG := api.Group("", mw.IPWhitelist(cfg.Security.AdminIPs))
		adminG.POST("/troops/:id/battles", mw.AdminAuth(cfg.Security), troopH.RunBattle)
		adminG.GET("/battles/:id/stream", sseH.ServeBattle)
	}
	r.GET("/ws/battle", mw.IPWhitelist(cfg.Security.AdminIPs), wsH.ServeWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	var token string
	if cfg.Security.AdminJWTSecret != "" {
		var err error
		token, err = mw.GenerateToken("integration", mw.RoleAdmin, cfg.Security.AdminJWTSecret, time.Hour)
		require.NoError(t, err)
	}

	return &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		State:  gameState,
		Logs:   logs,
		Res:    res,
		Server: srv,
		URL:    srv.URL,
		WSURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/battle",
		Sec:    cfg.Security,
		Token:  token,
	}
}

// Resources is a small database: troop 1 is a lone bat; troop 2 is a slime
// whose hidden partner appears once the slime drops below half HP, and whose
// page 2 records the turn in variable 20 when switch 8 is on.
func Resources() *resource.ResourceLoader {
	cmd := func(code, indent int, params ...int) *resource.EventCommand {
		return &resource.EventCommand{Code: code, Indent: indent, Parameters: params}
	}
	return &resource.ResourceLoader{
		System: &resource.SystemData{GameTitle: "integration", BattleBackground: "Plains"},
		Actors: []*resource.Actor{nil,
			{ID: 1, Name: "Alex", HP: 200, SP: 30, Atk: 40, Def: 10, Spi: 10, Agi: 20},
			{ID: 2, Name: "Brian", HP: 160, SP: 50, Atk: 35, Def: 8, Spi: 15, Agi: 15},
		},
		Enemies: []*resource.Enemy{nil,
			{ID: 1, Name: "Slime", HP: 60, SP: 20, Atk: 10, Def: 5, Agi: 5, Exp: 3, Gold: 5},
			{ID: 2, Name: "Bat", HP: 40, Atk: 12, Def: 2, Agi: 30, Exp: 4, Gold: 2},
		},
		States: []*resource.State{nil, {ID: 1, Name: "Death", Restriction: resource.RestrictionDoNothing}},
		BattleCommands: []*resource.BattleCommand{nil,
			{ID: 1, Name: "Attack", Type: resource.BattleCommandAttack},
			{ID: 2, Name: "Defend", Type: resource.BattleCommandDefense},
		},
		Troops: []*resource.Troop{nil,
			{ID: 1, Name: "Bat", Members: []resource.TroopMember{{EnemyID: 2}}},
			{ID: 2, Name: "Slime and friend",
				Members: []resource.TroopMember{{EnemyID: 1}, {EnemyID: 2, Invisible: true}},
				Pages: []*resource.TroopPage{
					{
						ID: 1,
						Condition: resource.TroopPageCondition{
							Flags:      resource.TroopPageConditionFlags{EnemyHP: true},
							EnemyID:    0,
							EnemyHPMin: 0,
							EnemyHPMax: 50,
						},
						List: []*resource.EventCommand{cmd(troop.CmdShowHiddenMonster, 0, 1)},
					},
					{
						ID: 2,
						Condition: resource.TroopPageCondition{
							Flags:     resource.TroopPageConditionFlags{SwitchA: true},
							SwitchAID: 8,
						},
						List: []*resource.EventCommand{cmd(interpreter.CmdControlVars, 0, 0, 20, 0, 0, 0, 1)},
					},
				},
			},
		},
	}
}

// --- HTTP helpers ---

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), string(data))
}

// --- SSE client ---

// SSEEvent is one server-sent event.
type SSEEvent struct {
	Name string
	Data string
}

// StreamBattle opens the battle event stream and returns a channel of events.
// The channel closes when the server ends the stream. It returns once the
// connected event has arrived, so the subscription is live.
func (ts *TestServer) StreamBattle(t *testing.T, battleID string) <-chan SSEEvent {
	t.Helper()
	resp := ts.Get(t, "/api/battles/"+battleID+"/stream?token="+ts.Token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	t.Cleanup(func() { resp.Body.Close() })

	ch := make(chan SSEEvent, 256)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(resp.Body)
		var ev SSEEvent
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			case line == "" && ev.Name != "":
				ch <- ev
				ev = SSEEvent{}
			}
		}
	}()

	select {
	case ev := <-ch:
		require.Equal(t, "connected", ev.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not connect")
	}
	return ch
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection for integration testing.
// A background readLoop owns all reads so a timed-out Recv leaves the
// connection usable.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials the battle WebSocket with the given JWT token.
func (ts *TestServer) ConnectWS(t *testing.T, token string) *WSClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(ts.WSURL+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	t.Cleanup(wc.Close)
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes a packet with the next seq number.
func (wc *WSClient) Send(msgType string, payload any) {
	wc.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	pkt := apiws.Packet{Seq: atomic.AddUint64(&wc.seq, 1), Type: msgType, Payload: raw}
	data, err := json.Marshal(pkt)
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
}

// Recv reads one packet with a timeout.
func (wc *WSClient) Recv(timeout time.Duration) apiws.Packet {
	wc.t.Helper()
	select {
	case res := <-wc.readCh:
		require.NoError(wc.t, res.err, "WS recv failed")
		var pkt apiws.Packet
		require.NoError(wc.t, json.Unmarshal(res.data, &pkt))
		return pkt
	case <-time.After(timeout):
		wc.t.Fatal("WS recv timed out")
		return apiws.Packet{}
	}
}

// RecvType reads packets until one with the given type arrives, passing
// every packet to seen when it is non-nil.
func (wc *WSClient) RecvType(msgType string, timeout time.Duration, seen func(apiws.Packet)) apiws.Packet {
	wc.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			wc.t.Fatalf("timed out waiting for message type %q", msgType)
		}
		pkt := wc.Recv(remaining)
		if seen != nil {
			seen(pkt)
		}
		if pkt.Type == msgType {
			return pkt
		}
	}
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

// Payload decodes a packet payload into target.
func Payload(t *testing.T, pkt apiws.Packet, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(pkt.Payload, target))
}
