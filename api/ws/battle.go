package ws

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"time"

	"github.com/kasuganosora/battleevent/arena"
	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

const defaultInputTimeout = 30 * time.Second

var (
	errBattleRunning = errors.New("a battle is already running on this connection")
	errNoBattle      = errors.New("no battle running")
	errInputQueue    = errors.New("input queue full")
	errBadPayload    = errors.New("invalid payload")
)

// liveBattle is the battle currently bound to a session.
type liveBattle struct {
	id     string
	inputs chan battleInput
	cancel context.CancelFunc
	done   chan struct{}
}

type battleInput struct {
	ActorID   int `json:"actor_id"`
	CommandID int `json:"command_id"`
	// TargetIndex picks an enemy by troop position; nil means the first one standing.
	TargetIndex *int `json:"target_index"`
}

type startRequest struct {
	resource.Scenario
	BattleID string `json:"battle_id"`
	Persist  bool   `json:"persist"`
}

type inputRequest struct {
	BattleID  string `json:"battle_id"`
	Turn      int    `json:"turn"`
	ActorID   int    `json:"actor_id"`
	Actor     string `json:"actor"`
	TimeoutMs int64  `json:"timeout_ms"`
}

type battleResult struct {
	BattleID   string `json:"battle_id"`
	Result     int    `json:"result"`
	ResultName string `json:"result_name"`
	Turns      int    `json:"turns"`
	Exp        int    `json:"exp"`
	Gold       int    `json:"gold"`
	Background string `json:"background"`
	Error      string `json:"error,omitempty"`
}

func (h *Handler) registerBattle(r *Router) {
	r.On("battle_start", h.handleStart)
	r.On("battle_input", h.handleInput)
	r.On("battle_cancel", h.handleCancel)
}

// handleStart assembles the battle and runs it in the background.
// Events arrive as battle_event packets, the outcome as battle_result.
func (h *Handler) handleStart(ctx context.Context, s *Session, raw json.RawMessage) error {
	var req startRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errBadPayload
	}
	lb := &liveBattle{inputs: make(chan battleInput, 4), done: make(chan struct{})}
	if !s.attach(lb) {
		return errBattleRunning
	}
	bctx, cancel := context.WithCancel(context.Background())
	lb.cancel = cancel

	timeout := h.inputTimeout
	if timeout <= 0 {
		timeout = defaultInputTimeout
	}
	p, err := h.runner.Prepare(arena.Request{
		Scenario: req.Scenario,
		BattleID: req.BattleID,
		TraceID:  TraceIDFromCtx(ctx),
		Persist:  req.Persist,
		Source:   &remoteSource{s: s, lb: lb, timeout: timeout, done: bctx.Done()},
		Sink:     sessionSink{s},
	})
	if err != nil {
		cancel()
		s.detach(lb)
		return err
	}
	lb.id = p.ID
	s.Send("battle_started", map[string]any{"battle_id": p.ID, "troop_id": req.TroopID})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic in ws battle",
					zap.String("battle_id", lb.id),
					zap.Any("recover", r),
					zap.String("stack", string(debug.Stack())))
				s.SendError("internal error")
			}
			cancel()
			s.detach(lb)
			close(lb.done)
		}()
		out := h.runner.Run(bctx, p)
		s.Send("battle_result", battleResult{
			BattleID:   out.BattleID,
			Result:     out.Record.Result,
			ResultName: out.Record.ResultName,
			Turns:      out.Record.Turns,
			Exp:        out.Record.Exp,
			Gold:       out.Record.Gold,
			Background: out.Background,
			Error:      out.Record.Error,
		})
	}()
	return nil
}

// handleInput answers the pending input_request.
func (h *Handler) handleInput(_ context.Context, s *Session, raw json.RawMessage) error {
	var in battleInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return errBadPayload
	}
	lb := s.battle()
	if lb == nil {
		return errNoBattle
	}
	select {
	case lb.inputs <- in:
		return nil
	default:
		return errInputQueue
	}
}

func (h *Handler) handleCancel(_ context.Context, s *Session, _ json.RawMessage) error {
	lb := s.battle()
	if lb == nil {
		return errNoBattle
	}
	lb.cancel()
	return nil
}

// sessionSink forwards battle events to the client.
type sessionSink struct{ s *Session }

func (k sessionSink) Emit(evt battle.BattleEvent) {
	k.s.Send("battle_event", battle.Wrap(evt))
}

// remoteSource asks the client for each actor's command. Without an answer
// inside timeout the actor auto-attacks.
type remoteSource struct {
	s       *Session
	lb      *liveBattle
	timeout time.Duration
	done    <-chan struct{}
}

func (rs *remoteSource) ActorAction(bctx *battle.Context, actor *battle.ActorBattler, turn int) *battle.Action {
	rs.s.Send("input_request", inputRequest{
		BattleID:  rs.lb.id,
		Turn:      turn,
		ActorID:   actor.ActorID(),
		Actor:     actor.Name(),
		TimeoutMs: rs.timeout.Milliseconds(),
	})
	timer := time.NewTimer(rs.timeout)
	defer timer.Stop()
	for {
		select {
		case in := <-rs.lb.inputs:
			if in.ActorID != actor.ActorID() {
				rs.s.SendError("input is for another actor")
				continue
			}
			a := battle.ActionFromCommand(bctx.Res, in.CommandID)
			a.TargetIndex = battle.FirstActiveEnemy(bctx)
			if in.TargetIndex != nil {
				if e := bctx.Enemies.Enemy(*in.TargetIndex); e != nil && e.Exists() {
					a.TargetIndex = *in.TargetIndex
				}
			}
			return a
		case <-timer.C:
			rs.s.Send("input_timeout", map[string]int{"turn": turn, "actor_id": actor.ActorID()})
			return battle.AutoAttack{}.ActorAction(bctx, actor, turn)
		case <-rs.done:
			return battle.AutoAttack{}.ActorAction(bctx, actor, turn)
		}
	}
}
