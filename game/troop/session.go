package troop

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// ErrUnknownTroop 敌群 ID 在数据库中不存在。
var ErrUnknownTroop = errors.New("troop: unknown troop")

// SessionOptions 一场战斗的构造参数。
type SessionOptions struct {
	// ID 为空时生成新的 UUID。
	ID        string
	Res       *resource.ResourceLoader
	TroopID   int
	Party     []int
	Condition battle.Condition
	// State 为 nil 时使用仅在本场战斗内有效的内存存储。
	State  battle.SwitchVariableStore
	Sink   battle.EventSink
	Source battle.ActionSource
	Logger *zap.Logger
	RNG    *rand.Rand

	RPG2k3            bool
	MaxCallDepth      int
	MaxTurns          int
	MaxFramesPerEvent int
	CanEscape         bool
}

// Session 组装好的一场战斗：上下文、敌群事件解释器与战斗循环。
type Session struct {
	ID        string
	Troop     *resource.Troop
	Context   *battle.Context
	Events    *Interpreter
	Presenter *battle.Presenter

	instance *battle.Instance
}

// NewSession 按 opts 组装战斗。
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Res == nil {
		return nil, errors.New("troop: resource loader is nil")
	}
	tr := opts.Res.TroopByID(opts.TroopID)
	if tr == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTroop, opts.TroopID)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	state := opts.State
	if state == nil {
		state = interpreter.NewMemoryState()
	}

	actors := battle.NewActorRegistry(opts.Res)
	party, err := battle.NewParty(actors, opts.Party)
	if err != nil {
		return nil, fmt.Errorf("troop: build party: %w", err)
	}
	enemies, err := battle.NewEnemyParty(tr, opts.Res)
	if err != nil {
		return nil, fmt.Errorf("troop: build troop %d: %w", tr.ID, err)
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger = logger.With(zap.String("battle_id", id), zap.Int("troop_id", tr.ID))
	presenter := battle.NewPresenter(opts.Res, opts.Sink, logger)

	bctx := &battle.Context{
		State:      state,
		Actors:     actors,
		Party:      party,
		Enemies:    enemies,
		Res:        opts.Res,
		Sound:      presenter,
		Animation:  presenter,
		Background: presenter,
		Condition:  opts.Condition,
		RPG2k3:     opts.RPG2k3,
	}

	events := New(tr.Pages, bctx, Options{
		MaxCallDepth: opts.MaxCallDepth,
		Logger:       logger,
		RNG:          rng,
		Sink:         opts.Sink,
	})

	inst := battle.NewInstance(battle.Config{
		TroopID:           tr.ID,
		Context:           bctx,
		Events:            events,
		Sink:              opts.Sink,
		Source:            opts.Source,
		Logger:            logger,
		RNG:               rng,
		MaxTurns:          opts.MaxTurns,
		MaxFramesPerEvent: opts.MaxFramesPerEvent,
		CanEscape:         opts.CanEscape,
	})

	return &Session{
		ID:        id,
		Troop:     tr,
		Context:   bctx,
		Events:    events,
		Presenter: presenter,
		instance:  inst,
	}, nil
}

// ApplyScenario 把场景中的敌群、队伍、阵型、初始开关/变量、回合上限、随机种子与
// 指令脚本合并进 opts。场景初始值写入 opts.State。
func ApplyScenario(opts *SessionOptions, sc *resource.Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	cond, err := battle.ParseCondition(sc.Condition)
	if err != nil {
		return err
	}
	opts.TroopID = sc.TroopID
	opts.Party = sc.Party
	opts.Condition = cond
	if sc.MaxTurns > 0 {
		opts.MaxTurns = sc.MaxTurns
	}
	if sc.Seed != 0 {
		opts.RNG = rand.New(rand.NewSource(sc.Seed))
	}
	opts.Source = battle.ScriptedActions{Scenario: sc, Fallback: opts.Source}

	if opts.State == nil {
		opts.State = interpreter.NewMemoryState()
	}
	for id, v := range sc.Switches {
		opts.State.SetSwitch(id, v)
	}
	for id, v := range sc.Variables {
		opts.State.SetVariable(id, v)
	}
	return nil
}

// Run 运行战斗直到出结果。
func (s *Session) Run(ctx context.Context) (int, error) {
	return s.instance.Run(ctx)
}
