// Package arena runs troop battles on behalf of the HTTP and WebSocket
// transports: it picks the state store, fans events out to the requested
// sinks, and records the finished battle in the cache and the battle log.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/battleevent/battlelog"
	"github.com/kasuganosora/battleevent/cache"
	"github.com/kasuganosora/battleevent/config"
	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/game/troop"
	"github.com/kasuganosora/battleevent/model"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// CacheTTL keeps a finished battle readable until the log writer has flushed it.
const CacheTTL = 10 * time.Minute

var (
	// ErrInvalid wraps every error caused by a bad request.
	ErrInvalid = errors.New("arena: invalid battle request")
	// ErrNotFound is returned by Lookup for unknown battle IDs.
	ErrNotFound = errors.New("arena: battle not found")
)

// StateStore is the shared switch/variable store battles may write through to.
type StateStore interface {
	battle.SwitchVariableStore
	Snapshot() (map[int]bool, map[int]int)
}

// Deps bundles the collaborators of a Runner. PubSub may be nil.
type Deps struct {
	Res    *resource.ResourceLoader
	State  StateStore
	Battle config.BattleConfig
	Logs   *battlelog.Service
	Cache  cache.Cache
	PubSub cache.PubSub
	Logger *zap.Logger
}

// Runner builds, runs and records battles.
type Runner struct {
	res    *resource.ResourceLoader
	state  StateStore
	cfg    config.BattleConfig
	logs   *battlelog.Service
	cache  cache.Cache
	pubsub cache.PubSub
	logger *zap.Logger
}

// New creates a Runner.
func New(d Deps) *Runner {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		res:    d.Res,
		state:  d.State,
		cfg:    d.Battle,
		logs:   d.Logs,
		cache:  d.Cache,
		pubsub: d.PubSub,
		logger: logger,
	}
}

// Resources returns the loaded database.
func (r *Runner) Resources() *resource.ResourceLoader { return r.res }

// Request describes one battle.
type Request struct {
	Scenario resource.Scenario
	// BattleID lets a client subscribe to the event stream before the battle starts.
	// Empty means a fresh UUID.
	BattleID string
	TraceID  string
	// Persist writes switch/variable changes through to the shared game state.
	Persist bool
	// Source picks actor commands the scenario leaves open; nil auto-attacks.
	Source battle.ActionSource
	// Sink receives every event in addition to the internal log.
	Sink battle.EventSink
}

// Outcome is a finished battle.
type Outcome struct {
	BattleID   string
	Record     *model.BattleLog
	Background string
	Events     []battle.BattleEvent
	Err        error
}

// Prepared is a battle that has been assembled but not run.
type Prepared struct {
	ID      string
	Session *troop.Session
	req     Request
	troop   *resource.Troop
	events  *battle.EventLog
	logger  *zap.Logger
}

// Prepare validates req and assembles the session. Errors wrap ErrInvalid.
func (r *Runner) Prepare(req Request) (*Prepared, error) {
	if req.Scenario.Condition == "" {
		req.Scenario.Condition = r.cfg.Condition
	}
	id := req.BattleID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: battle_id must be a UUID", ErrInvalid)
	}
	tr := r.res.TroopByID(req.Scenario.TroopID)
	if tr == nil {
		return nil, fmt.Errorf("%w: troop %d not found", ErrInvalid, req.Scenario.TroopID)
	}
	logger := r.logger.With(zap.String("trace_id", req.TraceID))

	events := &battle.EventLog{}
	sinks := battle.MultiSink{events}
	if req.Sink != nil {
		sinks = append(sinks, req.Sink)
	}
	if r.pubsub != nil {
		sinks = append(sinks, battle.NewPublishSink(r.pubsub, id, logger))
	}
	opts := troop.SessionOptions{
		ID:                id,
		Res:               r.res,
		State:             r.battleState(req.Persist),
		Sink:              sinks,
		Source:            req.Source,
		Logger:            logger,
		RPG2k3:            r.cfg.RPG2k3(),
		MaxCallDepth:      r.cfg.MaxCallDepth,
		MaxTurns:          r.cfg.MaxTurns,
		MaxFramesPerEvent: r.cfg.MaxFramesPerEvent,
		CanEscape:         r.cfg.CanEscape,
	}
	if err := troop.ApplyScenario(&opts, &req.Scenario); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	session, err := troop.NewSession(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &Prepared{ID: id, Session: session, req: req, troop: tr, events: events, logger: logger}, nil
}

// Run runs a prepared battle to the end and records it.
func (r *Runner) Run(ctx context.Context, p *Prepared) *Outcome {
	start := time.Now()
	result, runErr := p.Session.Run(ctx)
	entry := battlelog.Entry{
		ID:        p.ID,
		TraceID:   p.req.TraceID,
		TroopID:   p.troop.ID,
		TroopName: p.troop.Name,
		Scenario:  p.req.Scenario.Name,
		Engine:    r.cfg.Engine,
		Party:     p.req.Scenario.Party,
		Result:    result,
		Events:    p.events.Events(),
		Err:       runErr,
		Duration:  time.Since(start),
	}
	rec := battlelog.Record(entry)
	if runErr != nil {
		p.logger.Warn("battle ended with error", zap.String("battle_id", p.ID), zap.Error(runErr))
	}
	if data, err := json.Marshal(rec); err == nil {
		// the request context may already be gone
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if err := r.cache.Set(cctx, cacheKey(p.ID), string(data), CacheTTL); err != nil {
			p.logger.Warn("cache battle log", zap.String("battle_id", p.ID), zap.Error(err))
		}
		cancel()
	}
	r.logs.Log(entry)

	return &Outcome{
		BattleID:   p.ID,
		Record:     rec,
		Background: p.Session.Presenter.Background(),
		Events:     entry.Events,
		Err:        runErr,
	}
}

// battleState returns the store a battle runs against. Without persist the
// battle sees a private copy of the shared state.
func (r *Runner) battleState(persist bool) battle.SwitchVariableStore {
	if persist {
		return r.state
	}
	mem := interpreter.NewMemoryState()
	sw, vars := r.state.Snapshot()
	for id, v := range sw {
		mem.SetSwitch(id, v)
	}
	for id, v := range vars {
		mem.SetVariable(id, v)
	}
	return mem
}

// Lookup returns a finished battle log as JSON, from the cache while it is fresh.
func (r *Runner) Lookup(ctx context.Context, id string) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invalid battle id", ErrInvalid)
	}
	if v, err := r.cache.Get(ctx, cacheKey(id)); err == nil {
		return []byte(v), nil
	} else if !cache.IsNotFound(err) {
		r.logger.Warn("battle cache read", zap.String("battle_id", id), zap.Error(err))
	}

	rec, err := r.logs.Get(ctx, id)
	if errors.Is(err, battlelog.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

func cacheKey(id string) string { return "battle:" + id + ":log" }
