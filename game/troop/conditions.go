// 页触发条件判定。
package troop

import (
	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// AreConditionsMet 判断页触发条件是否成立。
// 没有任何触发标志的页永远不会执行；各启用项按顺序逐一判定，任一不满足即返回 false。
// 条件引用了不存在的角色或敌人时记录警告并视为不满足。
func (t *Interpreter) AreConditionsMet(cond *resource.TroopPageCondition) bool {
	flags := cond.Flags
	if !flags.Any() {
		return false
	}

	if flags.SwitchA && !t.ctx.State.GetSwitch(cond.SwitchAID) {
		return false
	}
	if flags.SwitchB && !t.ctx.State.GetSwitch(cond.SwitchBID) {
		return false
	}
	if flags.Variable && !(t.ctx.State.GetVariable(cond.VariableID) >= cond.VariableValue) {
		return false
	}
	if flags.Turn && !battle.CheckTurns(t.ctx.Turn(), cond.TurnB, cond.TurnA) {
		return false
	}

	if flags.TurnEnemy {
		enemy := t.ctx.Enemy(cond.TurnEnemyID)
		if enemy == nil {
			t.warnInvalidRef("turn_enemy", cond.TurnEnemyID)
			return false
		}
		if !battle.CheckTurns(enemy.BattleTurn(), cond.TurnEnemyB, cond.TurnEnemyA) {
			return false
		}
	}

	if flags.TurnActor {
		actor := t.ctx.Actor(cond.TurnActorID)
		if actor == nil {
			t.warnInvalidRef("turn_actor", cond.TurnActorID)
			return false
		}
		if !battle.CheckTurns(actor.BattleTurn(), cond.TurnActorB, cond.TurnActorA) {
			return false
		}
	}

	if flags.Fatigue {
		fatigue := t.ctx.Party.Fatigue()
		if fatigue < cond.FatigueMin || fatigue > cond.FatigueMax {
			return false
		}
	}

	if flags.EnemyHP {
		enemy := t.ctx.Enemy(cond.EnemyID)
		if enemy == nil {
			t.warnInvalidRef("enemy_hp", cond.EnemyID)
			return false
		}
		if !hpInRange(enemy, cond.EnemyHPMin, cond.EnemyHPMax) {
			return false
		}
	}

	if flags.ActorHP {
		actor := t.ctx.Actor(cond.ActorID)
		if actor == nil {
			t.warnInvalidRef("actor_hp", cond.ActorID)
			return false
		}
		if !hpInRange(actor, cond.ActorHPMin, cond.ActorHPMax) {
			return false
		}
	}

	if flags.CommandActor {
		actor := t.ctx.Actor(cond.CommandActorID)
		if actor == nil {
			t.warnInvalidRef("command_actor", cond.CommandActorID)
			return false
		}
		if actor.LastBattleAction() != cond.CommandID {
			return false
		}
	}

	return true
}

// hpInRange 百分比边界按 maxHP*pct/100 整数截断计算。
func hpInRange(b battle.Battler, minPct, maxPct int) bool {
	hp := b.HP()
	hpMin := b.MaxHP() * minPct / 100
	hpMax := b.MaxHP() * maxPct / 100
	return hp >= hpMin && hp <= hpMax
}

func (t *Interpreter) warnInvalidRef(kind string, id int) {
	t.logger.Warn("troop page condition references unknown battler",
		zap.String("condition", kind), zap.Int("id", id))
}
