// Package troop 实现战斗事件（敌群页）解释器：页触发条件判定、页执行标记、
// 战斗专用指令分派与处理。通用指令交给 game/interpreter。
package troop

import (
	"math/rand"

	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// Options 构造战斗事件解释器的参数。
type Options struct {
	MaxCallDepth int
	Logger       *zap.Logger
	RNG          *rand.Rand
	// Sink 接收"页开始执行"事件，可为 nil。
	Sink battle.EventSink
}

// Interpreter 战斗事件解释器。持有敌群页（只读）、每页的已执行标记与战斗上下文。
// 一个实例只服务一场战斗，且只能在战斗循环所在的 goroutine 中使用。
type Interpreter struct {
	*interpreter.Interpreter

	pages    []*resource.TroopPage
	executed map[int]bool
	ctx      *battle.Context
	logger   *zap.Logger
	sink     battle.EventSink
}

// New 创建战斗事件解释器。开关/变量取自 ctx.State。
func New(pages []*resource.TroopPage, ctx *battle.Context, opts Options) *Interpreter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := interpreter.New(interpreter.Options{
		State:        ctx.State,
		MaxCallDepth: opts.MaxCallDepth,
		Logger:       logger,
		RNG:          opts.RNG,
	})
	return &Interpreter{
		Interpreter: base,
		pages:       pages,
		executed:    make(map[int]bool, len(pages)),
		ctx:         ctx,
		logger:      logger,
		sink:        opts.Sink,
	}
}

// Context 返回战斗上下文。
func (t *Interpreter) Context() *battle.Context { return t.ctx }

// Update 执行一帧。
func (t *Interpreter) Update() error {
	return t.Run(t)
}

// StartNextPage 按顺序查找第一个本回合未执行且条件满足的页，压栈成功后标记为已执行。
func (t *Interpreter) StartNextPage() bool {
	for _, page := range t.pages {
		if page == nil || t.executed[page.ID] {
			continue
		}
		if !t.AreConditionsMet(&page.Condition) {
			continue
		}
		if err := t.Push(page.List, page.ID); err != nil {
			return false
		}
		t.executed[page.ID] = true
		t.logger.Debug("troop page started", zap.Int("page_id", page.ID), zap.Int("turn", t.ctx.Turn()))
		if t.sink != nil {
			t.sink.Emit(&battle.EventPageStarted{PageID: page.ID, Turn: t.ctx.Turn()})
		}
		return true
	}
	return false
}

// ---- 页执行标记 ----

// NumPages 敌群页数量。
func (t *Interpreter) NumPages() int { return len(t.pages) }

// HasPageExecuted 该页在最近一次重置后是否已执行。
func (t *Interpreter) HasPageExecuted(pageID int) bool { return t.executed[pageID] }

// SetHasPageExecuted 设置页的已执行标记。
func (t *Interpreter) SetHasPageExecuted(pageID int, v bool) {
	if v {
		t.executed[pageID] = true
		return
	}
	delete(t.executed, pageID)
}

// ResetPagesExecuted 回合边界的执行标记重置。
// b 为 nil 时清除全部标记；否则：
//  1. 不依赖角色回合/敌人回合/角色指令条件的页一律清除；
//  2. 已执行且 b 是该页角色回合或角色指令条件指定的我方角色时清除；
//  3. b 是该页敌人回合条件指定的敌人时清除。
func (t *Interpreter) ResetPagesExecuted(b battle.Battler) {
	if b == nil {
		for _, page := range t.pages {
			if page != nil {
				t.SetHasPageExecuted(page.ID, false)
			}
		}
		return
	}
	for _, page := range t.pages {
		if page == nil {
			continue
		}
		flags := page.Condition.Flags
		cond := &page.Condition

		if !flags.TurnActor && !flags.TurnEnemy && !flags.CommandActor {
			t.SetHasPageExecuted(page.ID, false)
		}

		if t.HasPageExecuted(page.ID) && b.Type() == battle.TypeAlly {
			if (flags.TurnActor && t.isActor(b, cond.TurnActorID)) ||
				(flags.CommandActor && t.isActor(b, cond.CommandActorID)) {
				t.SetHasPageExecuted(page.ID, false)
			}
		}

		if b.Type() == battle.TypeEnemy && flags.TurnEnemy && t.isEnemy(b, cond.TurnEnemyID) {
			t.SetHasPageExecuted(page.ID, false)
		}
	}
}

func (t *Interpreter) isActor(b battle.Battler, actorID int) bool {
	a := t.ctx.Actor(actorID)
	return a != nil && battle.Battler(a) == b
}

func (t *Interpreter) isEnemy(b battle.Battler, idx int) bool {
	e := t.ctx.Enemy(idx)
	return e != nil && battle.Battler(e) == b
}
