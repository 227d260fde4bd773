package battle

import (
	"context"
	"math/rand"
	"time"

	"github.com/kasuganosora/battleevent/game/interpreter"
	"go.uber.org/zap"
)

// DefaultMaxFramesPerEvent bounds how many frames one event phase may run.
const DefaultMaxFramesPerEvent = 60 * 60

// TroopEvents is the troop page interpreter as seen by the battle loop.
type TroopEvents interface {
	// Update runs one frame of the active page.
	Update() error
	IsRunning() bool
	// StartNextPage starts the first page whose trigger holds and that has not
	// run since its last reset. Returns false when none qualifies.
	StartNextPage() bool
	ResetPagesExecuted(b Battler)
	AsyncOp() interpreter.AsyncOp
	ClearAsyncOp()
}

// Config configures an Instance.
type Config struct {
	TroopID int
	Context *Context
	Events  TroopEvents
	Sink    EventSink
	Source  ActionSource // nil = AutoAttack
	TurnMgr TurnManager  // nil = DefaultTurnManager
	Logger  *zap.Logger
	RNG     *rand.Rand // injectable for testing
	// MaxTurns ends the battle with ResultAbort after that many turns; 0 = unlimited.
	MaxTurns          int
	MaxFramesPerEvent int
	CanEscape         bool
}

// Instance runs one battle from start to result.
type Instance struct {
	troopID   int
	ctx       *Context
	events    TroopEvents
	sink      EventSink
	source    ActionSource
	turnMgr   TurnManager
	logger    *zap.Logger
	rng       *rand.Rand
	ap        *ActionProcessor
	maxTurns  int
	maxFrames int
	canEscape bool

	escapeRatio float64
}

// NewInstance creates a battle instance.
func NewInstance(cfg Config) *Instance {
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.TurnMgr == nil {
		cfg.TurnMgr = DefaultTurnManager{}
	}
	if cfg.Source == nil {
		cfg.Source = AutoAttack{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxFramesPerEvent <= 0 {
		cfg.MaxFramesPerEvent = DefaultMaxFramesPerEvent
	}
	return &Instance{
		troopID:     cfg.TroopID,
		ctx:         cfg.Context,
		events:      cfg.Events,
		sink:        cfg.Sink,
		source:      cfg.Source,
		turnMgr:     cfg.TurnMgr,
		logger:      cfg.Logger,
		rng:         cfg.RNG,
		ap:          &ActionProcessor{RNG: cfg.RNG},
		maxTurns:    cfg.MaxTurns,
		maxFrames:   cfg.MaxFramesPerEvent,
		canEscape:   cfg.CanEscape,
		escapeRatio: 0.5,
	}
}

// Context returns the battle context.
func (b *Instance) Context() *Context { return b.ctx }

// Run executes the battle main loop. Blocks until the battle ends.
// Fatal interpreter errors end the battle with ResultAbort and are returned.
func (b *Instance) Run(ctx context.Context) (int, error) {
	b.emitStart()

	if result, done, err := b.runEvents(); done {
		return b.finish(result), err
	}

	for {
		if err := ctx.Err(); err != nil {
			b.logger.Warn("battle cancelled", zap.Int("troop_id", b.troopID), zap.Error(err))
			return b.finish(ResultAbort), err
		}
		if b.maxTurns > 0 && b.ctx.Turn() >= b.maxTurns {
			b.logger.Warn("battle turn limit reached",
				zap.Int("troop_id", b.troopID), zap.Int("max_turns", b.maxTurns))
			return b.finish(ResultAbort), nil
		}

		b.ctx.NextTurn()
		turn := b.ctx.Turn()
		b.logger.Debug("battle turn start", zap.Int("turn", turn))

		actors := b.actorBattlers()
		enemies := b.enemyBattlers()
		for _, bt := range actors {
			bt.SetGuarding(false)
		}
		for _, bt := range enemies {
			bt.SetGuarding(false)
		}

		b.collectActions(turn)

		order := b.turnMgr.MakeActionOrder(actors, enemies, b.rng)
		b.emit(&EventTurnStart{TurnCount: turn, Order: refs(order)})

		for _, bt := range order {
			if !bt.Exists() {
				continue
			}
			bt.NextBattleTurn()

			if result, done := b.performAction(bt); done {
				return b.finish(result), nil
			}

			b.events.ResetPagesExecuted(bt)
			if result, done, err := b.runEvents(); done {
				return b.finish(result), err
			}
			if result := b.checkBattleEnd(); result >= 0 {
				return b.finish(result), nil
			}
		}

		b.events.ResetPagesExecuted(nil)
		if result, done, err := b.runEvents(); done {
			return b.finish(result), err
		}
		if result := b.checkBattleEnd(); result >= 0 {
			return b.finish(result), nil
		}

		for _, bt := range actors {
			bt.ClearAction()
		}
		for _, bt := range enemies {
			bt.ClearAction()
		}
	}
}

// collectActions asks the action source for actor actions; enemies attack a random actor.
func (b *Instance) collectActions(turn int) {
	for _, a := range b.ctx.Party.Members() {
		if !a.Exists() {
			continue
		}
		a.SetAction(b.source.ActorAction(b.ctx, a, turn))
	}
	for _, e := range b.ctx.Enemies.Members() {
		if !e.Exists() {
			continue
		}
		e.SetAction(&Action{Type: ActionAttack, TargetIndex: -1})
	}
}

// performAction runs the battler's action, including combo repeats.
func (b *Instance) performAction(bt Battler) (int, bool) {
	action := bt.CurrentAction()
	if actor, ok := bt.(*ActorBattler); ok && action != nil {
		actor.SetLastBattleAction(action.CommandID)
	}
	if action == nil || !bt.CanAct() {
		return -1, false
	}

	if action.Type == ActionEscape {
		if b.canEscape && b.ctx.Condition != ConditionPincers && b.tryEscape() {
			b.ctx.PlaySE(SEEscape)
			return ResultEscape, true
		}
		return -1, false
	}

	opponents := b.actorBattlers()
	if bt.IsActor() {
		opponents = b.enemyBattlers()
	}

	times := Repeats(bt, action)
	for r := 0; r < times; r++ {
		outcomes := b.ap.ProcessAction(bt, action, opponents)
		if len(outcomes) == 0 && action.Type != ActionAttack {
			b.emit(&EventActionResult{Subject: RefBattler(bt), ActionType: action.Type, CommandID: action.CommandID})
			break
		}
		targets := make([]ActionResultTarget, 0, len(outcomes))
		for _, out := range outcomes {
			var tgt Battler
			if out.TargetIsActor {
				tgt = b.ctx.Party.Member(out.TargetIndex)
			} else {
				e := b.ctx.Enemies.Enemy(out.TargetIndex)
				if e != nil {
					tgt = e
					if bt.IsActor() {
						b.ctx.SetEnemyTargetIndex(out.TargetIndex)
					}
					if out.Killed {
						b.ctx.PlaySE(SEEnemyKill)
						e.SetDeathTimer()
					}
				}
			}
			if tgt == nil {
				continue
			}
			targets = append(targets, ActionResultTarget{
				Target:  RefBattler(tgt),
				Damage:  out.Damage,
				HPAfter: tgt.HP(),
				Killed:  out.Killed,
			})
		}
		b.emit(&EventActionResult{
			Subject:    RefBattler(bt),
			ActionType: action.Type,
			CommandID:  action.CommandID,
			Repeat:     r,
			Targets:    targets,
		})
	}
	return -1, false
}

// runEvents runs troop pages frame by frame until no page is running and none
// can start. Returns done=true when an event ended the battle.
func (b *Instance) runEvents() (result int, done bool, err error) {
	for frame := 0; frame < b.maxFrames; frame++ {
		if !b.events.IsRunning() && !b.events.StartNextPage() {
			return -1, false, nil
		}

		if err := b.events.Update(); err != nil {
			b.logger.Error("battle event interpreter failed",
				zap.Int("troop_id", b.troopID), zap.Int("turn", b.ctx.Turn()), zap.Error(err))
			return ResultAbort, true, err
		}
		b.tickDeathTimers()

		if op := b.events.AsyncOp(); op.IsActive() {
			b.events.ClearAsyncOp()
			if op.Type == interpreter.AsyncTerminateBattle {
				return op.Result, true, nil
			}
		}
		if b.ctx.NeedRefresh() {
			b.ctx.SetNeedRefresh(false)
			if r := b.checkBattleEnd(); r >= 0 {
				return r, true, nil
			}
		}
	}
	b.logger.Warn("battle event frame limit reached",
		zap.Int("troop_id", b.troopID), zap.Int("frames", b.maxFrames))
	return -1, false, nil
}

func (b *Instance) tickDeathTimers() {
	for _, e := range b.ctx.Enemies.Members() {
		e.TickDeathTimer()
	}
}

func (b *Instance) tryEscape() bool {
	if b.rng.Float64() < b.escapeRatio {
		return true
	}
	b.escapeRatio += 0.1 // increase escape chance each failed attempt
	return false
}

// checkBattleEnd returns the battle result or -1 if battle continues.
func (b *Instance) checkBattleEnd() int {
	if !b.ctx.Enemies.IsAnyActive() {
		return ResultWin
	}
	if !b.ctx.Party.IsAnyActive() {
		return ResultLose
	}
	return -1
}

func (b *Instance) actorBattlers() []Battler {
	members := b.ctx.Party.Members()
	out := make([]Battler, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

func (b *Instance) enemyBattlers() []Battler {
	members := b.ctx.Enemies.Members()
	out := make([]Battler, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

func (b *Instance) emitStart() {
	actors := b.actorBattlers()
	enemies := b.enemyBattlers()
	evt := &EventBattleStart{
		TroopID:   b.troopID,
		Condition: b.ctx.Condition.String(),
		Actors:    make([]BattlerSnapshot, len(actors)),
		Enemies:   make([]BattlerSnapshot, len(enemies)),
	}
	for i, a := range actors {
		evt.Actors[i] = SnapshotBattler(a)
	}
	for i, e := range enemies {
		evt.Enemies[i] = SnapshotBattler(e)
	}
	b.emit(evt)
}

func (b *Instance) finish(result int) int {
	evt := &EventBattleEnd{Result: result, Name: ResultName(result), Turns: b.ctx.Turn()}
	if result == ResultWin {
		evt.Exp, evt.Gold = b.ctx.Enemies.ExpAndGold()
	}
	b.logger.Info("battle finished",
		zap.Int("troop_id", b.troopID),
		zap.String("result", evt.Name),
		zap.Int("turns", evt.Turns))
	b.emit(evt)
	return result
}

func (b *Instance) emit(evt BattleEvent) {
	if b.sink != nil {
		b.sink.Emit(evt)
	}
}
