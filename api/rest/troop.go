package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/battleevent/arena"
	"github.com/kasuganosora/battleevent/game/battle"
	mw "github.com/kasuganosora/battleevent/middleware"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// TroopHandler serves troop inspection and simulated battles.
type TroopHandler struct {
	runner *arena.Runner
	res    *resource.ResourceLoader
	logger *zap.Logger
}

// NewTroopHandler creates a TroopHandler.
func NewTroopHandler(runner *arena.Runner, logger *zap.Logger) *TroopHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TroopHandler{runner: runner, res: runner.Resources(), logger: logger}
}

// Health handles GET /health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type memberView struct {
	Index   int    `json:"index"`
	EnemyID int    `json:"enemy_id"`
	Name    string `json:"name"`
	Hidden  bool   `json:"hidden"`
}

type pageView struct {
	ID       int      `json:"id"`
	Triggers []string `json:"triggers"`
	Commands int      `json:"commands"`
}

type troopView struct {
	ID      int          `json:"id"`
	Name    string       `json:"name"`
	Members []memberView `json:"members"`
	Pages   []pageView   `json:"pages"`
}

func triggerNames(f resource.TroopPageConditionFlags) []string {
	names := make([]string, 0, 2)
	for _, t := range []struct {
		on   bool
		name string
	}{
		{f.SwitchA, "switch_a"},
		{f.SwitchB, "switch_b"},
		{f.Variable, "variable"},
		{f.Turn, "turn"},
		{f.Fatigue, "fatigue"},
		{f.EnemyHP, "enemy_hp"},
		{f.ActorHP, "actor_hp"},
		{f.TurnEnemy, "turn_enemy"},
		{f.TurnActor, "turn_actor"},
		{f.CommandActor, "command_actor"},
	} {
		if t.on {
			names = append(names, t.name)
		}
	}
	return names
}

func (h *TroopHandler) troopParam(c *gin.Context) (*resource.Troop, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid troop id"})
		return nil, false
	}
	tr := h.res.TroopByID(id)
	if tr == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "troop not found"})
		return nil, false
	}
	return tr, true
}

// Detail returns a troop's members and page triggers.
// GET /api/troops/:id
func (h *TroopHandler) Detail(c *gin.Context) {
	tr, ok := h.troopParam(c)
	if !ok {
		return
	}
	view := troopView{ID: tr.ID, Name: tr.Name, Members: []memberView{}, Pages: []pageView{}}
	for i, m := range tr.Members {
		mv := memberView{Index: i, EnemyID: m.EnemyID, Hidden: m.Invisible}
		if e := h.res.EnemyByID(m.EnemyID); e != nil {
			mv.Name = e.Name
		}
		view.Members = append(view.Members, mv)
	}
	for _, p := range tr.Pages {
		if p == nil {
			continue
		}
		view.Pages = append(view.Pages, pageView{ID: p.ID, Triggers: triggerNames(p.Condition.Flags), Commands: len(p.List)})
	}
	c.JSON(http.StatusOK, view)
}

// battleRequest is a scenario plus run options. The troop comes from the path.
type battleRequest struct {
	resource.Scenario
	// BattleID lets a client subscribe to the event stream before starting the battle.
	BattleID string `json:"battle_id"`
	// Persist writes switch/variable changes through to the shared game state.
	Persist bool `json:"persist"`
}

type battleResponse struct {
	BattleID   string            `json:"battle_id"`
	Result     int               `json:"result"`
	ResultName string            `json:"result_name"`
	Turns      int               `json:"turns"`
	Exp        int               `json:"exp"`
	Gold       int               `json:"gold"`
	Background string            `json:"background"`
	Events     []battle.Envelope `json:"events"`
	Error      string            `json:"error,omitempty"`
}

// RunBattle runs a scenario against the troop and returns the outcome and every event.
// POST /api/troops/:id/battles
func (h *TroopHandler) RunBattle(c *gin.Context) {
	tr, ok := h.troopParam(c)
	if !ok {
		return
	}
	var req battleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.TroopID = tr.ID

	p, err := h.runner.Prepare(arena.Request{
		Scenario: req.Scenario,
		BattleID: req.BattleID,
		TraceID:  mw.GetTraceID(c),
		Persist:  req.Persist,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out := h.runner.Run(c.Request.Context(), p)

	c.JSON(http.StatusOK, battleResponse{
		BattleID:   out.BattleID,
		Result:     out.Record.Result,
		ResultName: out.Record.ResultName,
		Turns:      out.Record.Turns,
		Exp:        out.Record.Exp,
		Gold:       out.Record.Gold,
		Background: out.Background,
		Events:     battle.WrapAll(out.Events),
		Error:      out.Record.Error,
	})
}

// GetBattle returns a finished battle log.
// GET /api/battles/:id
func (h *TroopHandler) GetBattle(c *gin.Context) {
	id := c.Param("id")
	data, err := h.runner.Lookup(c.Request.Context(), id)
	switch {
	case errors.Is(err, arena.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid battle id"})
	case errors.Is(err, arena.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "battle not found"})
	case err != nil:
		h.logger.Error("battle lookup", zap.String("battle_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
	default:
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	}
}
