package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/battleevent/api/rest"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const adminSecret = "rest-test-secret"

func init() { gin.SetMode(gin.TestMode) }

func cmd(code, indent int, params ...int) *resource.EventCommand {
	return &resource.EventCommand{Code: code, Indent: indent, Parameters: params}
}

// testResources: troop 1 is a lone bat, troop 2 ends the battle when switch 5 is on
// after setting variable 9 to 77.
func testResources() *resource.ResourceLoader {
	return &resource.ResourceLoader{
		System: &resource.SystemData{BattleBackground: "Grass"},
		Actors: []*resource.Actor{
			nil,
			{ID: 1, Name: "Alex", HP: 100, SP: 30, Atk: 30, Def: 10, Spi: 10, Agi: 20},
			{ID: 2, Name: "Brian", HP: 80, SP: 50, Atk: 25, Def: 8, Spi: 15, Agi: 15},
		},
		Enemies: []*resource.Enemy{
			nil,
			{ID: 1, Name: "Slime", HP: 100, SP: 20, Atk: 10, Def: 5, Agi: 5, Exp: 3, Gold: 5},
			{ID: 2, Name: "Bat", HP: 40, Atk: 12, Def: 2, Agi: 30, Exp: 4, Gold: 2},
		},
		States: []*resource.State{nil, {ID: 1, Name: "Death", Restriction: resource.RestrictionDoNothing}},
		BattleCommands: []*resource.BattleCommand{
			nil,
			{ID: 1, Name: "Attack", Type: resource.BattleCommandAttack},
		},
		Troops: []*resource.Troop{
			nil,
			{ID: 1, Name: "Bat", Members: []resource.TroopMember{{EnemyID: 2}}},
			{ID: 2, Name: "Guarded Slime", Members: []resource.TroopMember{{EnemyID: 1}, {EnemyID: 2, Invisible: true}},
				Pages: []*resource.TroopPage{{
					ID: 1,
					Condition: resource.TroopPageCondition{
						Flags:     resource.TroopPageConditionFlags{SwitchA: true},
						SwitchAID: 5,
					},
					List: []*resource.EventCommand{
						cmd(interpreter.CmdControlVars, 0, 0, 9, 0, 0, 0, 77),
						cmd(troop.CmdTerminateBattle, 0),
					},
				}},
			},
		},
	}
}

type harness struct {
	r     *gin.Engine
	gs    *state.GameState
	logs  *battlelog.Service
	cache cache.Cache
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	gs := state.New(nil, 0, nil)
	logs := battlelog.New(db, zap.NewNop())
	t.Cleanup(func() { logs.Stop(context.Background()) })

	sec := config.SecurityConfig{AdminJWTSecret: adminSecret}
	runner := arena.New(arena.Deps{
		Res:    testResources(),
		State:  gs,
		Battle: config.Default().Battle,
		Logs:   logs,
		Cache:  c,
		PubSub: ps,
	})
	h := rest.NewTroopHandler(runner, nil)

	r := gin.New()
	r.Use(mw.TraceID())
	r.GET("/health", rest.Health)
	r.GET("/api/troops/:id", h.Detail)
	r.POST("/api/troops/:id/battles", mw.AdminAuth(sec), h.RunBattle)
	r.GET("/api/battles/:id", h.GetBattle)

	tok, err := mw.GenerateToken("ops", mw.RoleAdmin, adminSecret, time.Hour)
	require.NoError(t, err)
	return &harness{r: r, gs: gs, logs: logs, cache: c, token: tok}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

type battleResp struct {
	BattleID   string `json:"battle_id"`
	Result     int    `json:"result"`
	ResultName string `json:"result_name"`
	Turns      int    `json:"turns"`
	Exp        int    `json:"exp"`
	Gold       int    `json:"gold"`
	Background string `json:"background"`
	Events     []struct {
		Type string `json:"type"`
	} `json:"events"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) battleResp {
	t.Helper()
	var resp battleResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestTroopDetail(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/troops/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Name    string `json:"name"`
		Members []struct {
			Name   string `json:"name"`
			Hidden bool   `json:"hidden"`
		} `json:"members"`
		Pages []struct {
			Triggers []string `json:"triggers"`
			Commands int      `json:"commands"`
		} `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "Guarded Slime", view.Name)
	require.Len(t, view.Members, 2)
	assert.Equal(t, "Bat", view.Members[1].Name)
	assert.True(t, view.Members[1].Hidden)
	require.Len(t, view.Pages, 1)
	assert.Equal(t, []string{"switch_a"}, view.Pages[0].Triggers)
	assert.Equal(t, 2, view.Pages[0].Commands)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/troops/9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/troops/abc", nil).Code)
}

func TestRunBattle_Win(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/troops/1/battles", map[string]any{"name": "smoke", "party": []int{1}, "seed": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "win", resp.ResultName)
	assert.Equal(t, 4, resp.Exp)
	assert.Equal(t, 2, resp.Gold)
	assert.Equal(t, "Grass", resp.Background)
	require.NotEmpty(t, resp.Events)
	assert.Equal(t, "battle_start", resp.Events[0].Type)
	assert.Equal(t, "battle_end", resp.Events[len(resp.Events)-1].Type)
	_, err := uuid.Parse(resp.BattleID)
	assert.NoError(t, err)
}

func TestRunBattle_RequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.token = "garbage"
	w := h.do(http.MethodPost, "/api/troops/1/battles", map[string]any{"party": []int{1}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRunBattle_BadRequests(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown troop", "/api/troops/9/battles", map[string]any{"party": []int{1}}, http.StatusNotFound},
		{"empty party", "/api/troops/1/battles", map[string]any{}, http.StatusBadRequest},
		{"no body", "/api/troops/1/battles", nil, http.StatusBadRequest},
		{"unknown actor", "/api/troops/1/battles", map[string]any{"party": []int{7}}, http.StatusBadRequest},
		{"bad condition", "/api/troops/1/battles", map[string]any{"party": []int{1}, "condition": "sideways"}, http.StatusBadRequest},
		{"bad battle id", "/api/troops/1/battles", map[string]any{"party": []int{1}, "battle_id": "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.do(http.MethodPost, tt.path, tt.body).Code)
		})
	}
}

func TestRunBattle_PagesSeePrivateStateCopy(t *testing.T) {
	h := newHarness(t)
	h.gs.SetSwitch(5, true)

	w := h.do(http.MethodPost, "/api/troops/2/battles", map[string]any{"party": []int{1, 2}})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "abort", resp.ResultName)
	assert.Zero(t, resp.Turns)
	assert.Zero(t, h.gs.GetVariable(9), "without persist the shared state is untouched")
}

func TestRunBattle_PersistWritesSharedState(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/troops/2/battles", map[string]any{
		"party":    []int{1},
		"switches": map[string]bool{"5": true},
		"persist":  true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abort", decode(t, w).ResultName)
	assert.True(t, h.gs.GetSwitch(5))
	assert.Equal(t, 77, h.gs.GetVariable(9))
}

func TestGetBattle_FromCacheThenDB(t *testing.T) {
	h := newHarness(t)
	id := uuid.NewString()

	w := h.do(http.MethodPost, "/api/troops/1/battles", map[string]any{"party": []int{1}, "battle_id": id})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w).BattleID)

	w = h.do(http.MethodGet, "/api/battles/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cached struct {
		ID         string `json:"id"`
		ResultName string `json:"result_name"`
		TroopName  string `json:"troop_name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cached))
	assert.Equal(t, id, cached.ID)
	assert.Equal(t, "win", cached.ResultName)

	// evict and flush: the row must come from the database
	require.NoError(t, h.cache.Del(context.Background(), "battle:"+id+":log"))
	h.logs.Stop(context.Background())
	w = h.do(http.MethodGet, "/api/battles/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored struct {
		ID        string `json:"id"`
		TroopName string `json:"troop_name"`
		Events    []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, "Bat", stored.TroopName)
	assert.NotEmpty(t, stored.Events)
}

func TestGetBattle_Missing(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/battles/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/battles/not-a-uuid", nil).Code)
}
