package troop

import (
	"math/rand"
	"testing"

	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/resource"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- 测试数据 ----

func cmd(code, indent int, params ...int) *resource.EventCommand {
	return &resource.EventCommand{Code: code, Indent: indent, Parameters: params}
}

// testResources 两名角色、两种敌人、战斗不能与麻痹状态、一个 30 帧动画、一个公共事件。
func testResources() *resource.ResourceLoader {
	return &resource.ResourceLoader{
		System: &resource.SystemData{
			GameTitle: "test",
			Sounds: resource.SystemSounds{
				Escape:    resource.Sound{Name: "Escape1"},
				EnemyKill: resource.Sound{Name: "Collapse1"},
			},
			BattleBackground: "Grass",
		},
		Actors: []*resource.Actor{
			nil,
			{ID: 1, Name: "Alex", HP: 100, SP: 30, Atk: 30, Def: 10, Spi: 10, Agi: 20},
			{ID: 2, Name: "Brian", HP: 80, SP: 50, Atk: 25, Def: 8, Spi: 15, Agi: 15},
			{ID: 3, Name: "Cherry", HP: 60, SP: 60, Atk: 10, Def: 5, Spi: 20, Agi: 10},
		},
		Enemies: []*resource.Enemy{
			nil,
			{ID: 1, Name: "Slime", HP: 100, SP: 20, Atk: 10, Def: 5, Agi: 5, Exp: 3, Gold: 5},
			{ID: 2, Name: "Bat", HP: 40, SP: 0, Atk: 12, Def: 2, Agi: 30, Exp: 4, Gold: 2},
		},
		States: []*resource.State{
			nil,
			{ID: 1, Name: "Death", Restriction: resource.RestrictionDoNothing},
			{ID: 2, Name: "Paralysis", Restriction: resource.RestrictionDoNothing},
			{ID: 3, Name: "Poison", Restriction: resource.RestrictionNormal},
		},
		Animations: []*resource.Animation{
			nil,
			{ID: 1, Name: "Hit", Frames: 30},
		},
		BattleCommands: []*resource.BattleCommand{
			nil,
			{ID: 1, Name: "Attack", Type: resource.BattleCommandAttack},
			{ID: 2, Name: "Defend", Type: resource.BattleCommandDefense},
			{ID: 3, Name: "Escape", Type: resource.BattleCommandEscape},
		},
		Troops: []*resource.Troop{
			nil,
			{ID: 1, Name: "Slime x2", Members: []resource.TroopMember{{EnemyID: 1}, {EnemyID: 1}}},
		},
		CommonEvents: []*resource.CommonEvent{
			nil,
			{ID: 1, Name: "set var 1", List: []*resource.EventCommand{
				cmd(interpreter.CmdControlVars, 0, 0, 1, 0, 0, 0, 7),
			}},
		},
	}
}

type fixture struct {
	res    *resource.ResourceLoader
	ctx    *battle.Context
	events *Interpreter
	log    *battle.EventLog
}

// newFixture 队伍为角色 1、2，敌群为 members 指定的敌人（nil 时为两只史莱姆）。
func newFixture(t *testing.T, pages []*resource.TroopPage, members ...resource.TroopMember) *fixture {
	t.Helper()
	res := testResources()
	if len(members) == 0 {
		members = []resource.TroopMember{{EnemyID: 1}, {EnemyID: 1}}
	}
	tr := &resource.Troop{ID: 1, Name: "test", Members: members, Pages: pages}
	res.Troops[1] = tr

	actors := battle.NewActorRegistry(res)
	party, err := battle.NewParty(actors, []int{1, 2})
	require.NoError(t, err)
	enemies, err := battle.NewEnemyParty(tr, res)
	require.NoError(t, err)

	log := &battle.EventLog{}
	presenter := battle.NewPresenter(res, log, zap.NewNop())
	ctx := &battle.Context{
		State:      interpreter.NewMemoryState(),
		Actors:     actors,
		Party:      party,
		Enemies:    enemies,
		Res:        res,
		Sound:      presenter,
		Animation:  presenter,
		Background: presenter,
	}
	events := New(pages, ctx, Options{
		Logger: zap.NewNop(),
		RNG:    rand.New(rand.NewSource(1)),
		Sink:   log,
	})
	return &fixture{res: res, ctx: ctx, events: events, log: log}
}

// run 把指令列表压栈并执行到结束或停下。
func (f *fixture) run(t *testing.T, list ...*resource.EventCommand) {
	t.Helper()
	require.NoError(t, f.events.Push(list, 0))
	for i := 0; i < 100 && f.events.IsRunning(); i++ {
		require.NoError(t, f.events.Update())
		if f.events.AsyncOp().IsActive() {
			return
		}
	}
}

// count 统计事件日志中某类事件的数量。
func (f *fixture) count(eventType string) int {
	n := 0
	for _, typ := range f.log.Types() {
		if typ == eventType {
			n++
		}
	}
	return n
}
