package battle

import (
	"github.com/kasuganosora/battleevent/resource"
)

// ActionSource chooses what each party member does on a turn.
type ActionSource interface {
	ActorAction(ctx *Context, actor *ActorBattler, turn int) *Action
}

// AutoAttack makes every actor attack the first enemy still on the field.
type AutoAttack struct{}

func (AutoAttack) ActorAction(ctx *Context, _ *ActorBattler, _ int) *Action {
	a := ActionFromCommand(ctx.Res, attackCommandID(ctx.Res))
	a.TargetIndex = FirstActiveEnemy(ctx)
	return a
}

// ScriptedActions replays the per-turn battle commands of a scenario.
// Turns or actors the scenario leaves out fall back to Fallback.
type ScriptedActions struct {
	Scenario *resource.Scenario
	Fallback ActionSource
}

func (s ScriptedActions) ActorAction(ctx *Context, actor *ActorBattler, turn int) *Action {
	if s.Scenario != nil {
		if cmd := s.Scenario.CommandFor(turn, actor.ActorID()); cmd > 0 {
			a := ActionFromCommand(ctx.Res, cmd)
			a.TargetIndex = FirstActiveEnemy(ctx)
			return a
		}
	}
	fb := s.Fallback
	if fb == nil {
		fb = AutoAttack{}
	}
	return fb.ActorAction(ctx, actor, turn)
}

// attackCommandID returns the first attack command of the database, or 1.
func attackCommandID(res *resource.ResourceLoader) int {
	if res != nil {
		for _, c := range res.BattleCommands {
			if c != nil && c.Type == resource.BattleCommandAttack {
				return c.ID
			}
		}
	}
	return 1
}

// FirstActiveEnemy returns the index of the first enemy still on the field, or -1.
func FirstActiveEnemy(ctx *Context) int {
	if ctx.Enemies == nil {
		return -1
	}
	active := ctx.Enemies.ActiveBattlers()
	if len(active) == 0 {
		return -1
	}
	return active[0].Index()
}
