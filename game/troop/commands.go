// 战斗专用指令处理。
package troop

import (
	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// ---- 调用公共事件（代码 1005） ----

// commandCallCommonEvent [0]=公共事件ID。ID 无效时记录警告并继续。
// 调用深度超限由 Push 记录为致命错误，本次 Update 随即返回。
func (t *Interpreter) commandCallCommonEvent(com *resource.EventCommand) bool {
	id := com.Param(0)
	ce := t.ctx.CommonEvent(id)
	if ce == nil {
		t.logger.Warn("call common event: invalid common event", zap.Int("common_event_id", id))
		return true
	}
	_ = t.Push(ce.List, ce.ID)
	return true
}

// ---- 强制逃跑（代码 1006） ----

// commandForceFlee [0]=模式, [1]=敌人索引（模式 2）, [2]=0 时受战斗阵型限制。
// 模式 0：全队逃跑（夹击时受限）；模式 1：全部敌人逃跑；模式 2：指定敌人逃跑（包围时受限）。
func (t *Interpreter) commandForceFlee(com *resource.EventCommand) bool {
	check := com.Param(2) == 0
	ok := false

	switch com.Param(0) {
	case 0:
		if !check || t.ctx.Condition != battle.ConditionPincers {
			t.SetAsyncOp(interpreter.MakeTerminateBattle(battle.ResultEscape))
			ok = true
		}
	case 1:
		if !check || t.ctx.Condition != battle.ConditionSurround {
			if t.ctx.Enemies != nil {
				for _, e := range t.ctx.Enemies.Members() {
					e.Kill()
				}
			}
			t.ctx.SetNeedRefresh(true)
			ok = true
		}
	case 2:
		if !check || t.ctx.Condition != battle.ConditionSurround {
			enemy := t.enemyAt(com, com.Param(1))
			if enemy == nil {
				return true
			}
			enemy.Kill()
			t.ctx.SetNeedRefresh(true)
			ok = true
		}
	}

	if ok {
		t.ctx.PlaySE(battle.SEEscape)
	}
	return true
}

// ---- 连续攻击（代码 1007） ----

// commandEnableCombo [0]=角色ID, [1]=战斗指令ID, [2]=次数。角色不在队伍中时忽略。
func (t *Interpreter) commandEnableCombo(com *resource.EventCommand) bool {
	actorID := com.Param(0)
	if t.ctx.Party == nil || !t.ctx.Party.IsActorInParty(actorID) {
		return true
	}
	actor := t.ctx.Actor(actorID)
	if actor == nil {
		t.logger.Warn("enable combo: invalid actor", zap.Int("actor_id", actorID))
		return true
	}
	actor.SetBattleCombo(com.Param(1), com.Param(2))
	return true
}

// ---- 敌人 HP/MP/状态 ----

// commandChangeMonsterHP [0]=敌人索引, [1]>0 为减少, [2]=数值来源（0 常量 / 1 变量 / 2 当前 HP 百分比）,
// [3]=数值, [4]>0 允许致死。对已死亡的敌人无效果。
func (t *Interpreter) commandChangeMonsterHP(com *resource.EventCommand) bool {
	enemy := t.enemyAt(com, com.Param(0))
	if enemy == nil || enemy.IsDead() {
		return true
	}
	lose := com.Param(1) > 0
	lethal := com.Param(4) > 0

	change := 0
	switch com.Param(2) {
	case 0:
		change = com.Param(3)
	case 1:
		change = t.State().GetVariable(com.Param(3))
	case 2:
		change = com.Param(3) * enemy.HP() / 100
	}
	if lose {
		change = -change
	}

	enemy.ChangeHP(change, lethal)

	if enemy.IsDead() {
		t.ctx.PlaySE(battle.SEEnemyKill)
		enemy.SetDeathTimer()
	}
	return true
}

// commandChangeMonsterMP [0]=敌人索引, [1]>0 为减少, [2]=数值来源（0 常量 / 1 变量）, [3]=数值。
func (t *Interpreter) commandChangeMonsterMP(com *resource.EventCommand) bool {
	enemy := t.enemyAt(com, com.Param(0))
	if enemy == nil {
		return true
	}
	change := 0
	switch com.Param(2) {
	case 0:
		change = com.Param(3)
	case 1:
		change = t.State().GetVariable(com.Param(3))
	}
	if com.Param(1) > 0 {
		change = -change
	}
	enemy.SetSP(enemy.SP() + change)
	return true
}

// commandChangeMonsterCondition [0]=敌人索引, [1]>0 为解除, [2]=状态ID。
// 解除状态不播放死亡动画；附加战斗不能时启动死亡计时。
func (t *Interpreter) commandChangeMonsterCondition(com *resource.EventCommand) bool {
	enemy := t.enemyAt(com, com.Param(0))
	if enemy == nil {
		return true
	}
	stateID := com.Param(2)
	if com.Param(1) > 0 {
		enemy.RemoveState(stateID)
		return true
	}
	wasDead := enemy.IsDead()
	enemy.AddState(stateID)
	if !wasDead && enemy.IsDead() {
		enemy.SetDeathTimer()
		t.ctx.SetNeedRefresh(true)
	}
	return true
}

// commandShowHiddenMonster [0]=敌人索引。
func (t *Interpreter) commandShowHiddenMonster(com *resource.EventCommand) bool {
	enemy := t.enemyAt(com, com.Param(0))
	if enemy == nil {
		return true
	}
	if !enemy.IsHidden() {
		return true
	}
	enemy.SetHidden(false)
	if t.sink != nil {
		t.sink.Emit(&battle.EventEnemyShown{Enemy: battle.RefBattler(enemy)})
	}
	return true
}

// ---- 演出 ----

// commandChangeBattleBG 背景名取自指令字符串。
func (t *Interpreter) commandChangeBattleBG(com *resource.EventCommand) bool {
	t.ctx.ChangeBackground(com.String)
	return true
}

// commandShowBattleAnimation [0]=动画ID, [1]=目标（<0 为全体）, [2]!=0 等待播放完毕,
// [3]!=0 目标为我方（仅 2003）。我方目标从 1 开始计数，敌方从 0 开始。
func (t *Interpreter) commandShowBattleAnimation(com *resource.EventCommand) bool {
	animationID := com.Param(0)
	target := com.Param(1)
	wait := com.Param(2) != 0
	allies := t.ctx.RPG2k3 && com.Param(3) != 0

	frames := 0
	if target < 0 {
		var targets []battle.Battler
		if allies {
			if t.ctx.Party != nil {
				targets = t.ctx.Party.ActiveBattlers()
			}
		} else if t.ctx.Enemies != nil {
			targets = t.ctx.Enemies.ActiveBattlers()
		}
		frames = t.ctx.ShowBattleAnimation(animationID, targets)
	} else {
		var b battle.Battler
		if allies {
			if t.ctx.Party != nil {
				if a := t.ctx.Party.Member(target - 1); a != nil {
					b = a
				}
			}
		} else if e := t.ctx.Enemy(target); e != nil {
			b = e
		}
		if b != nil {
			frames = t.ctx.ShowBattleAnimation(animationID, []battle.Battler{b})
		}
	}

	if wait {
		t.SetWait(frames)
	}
	return true
}

// ---- 结束战斗（代码 13410） ----

// commandTerminateBattle 以中止结果结束战斗。返回 false 让战斗循环先处理异步操作。
func (t *Interpreter) commandTerminateBattle() bool {
	t.SetAsyncOp(interpreter.MakeTerminateBattle(battle.ResultAbort))
	return false
}

// enemyAt 按索引取敌人。索引越界时记录警告并返回 nil，调用方按无效果处理。
func (t *Interpreter) enemyAt(com *resource.EventCommand, idx int) *battle.EnemyBattler {
	enemy := t.ctx.Enemy(idx)
	if enemy == nil {
		t.logger.Warn("battle command references invalid enemy",
			zap.Int("code", com.Code), zap.Int("enemy_index", idx))
	}
	return enemy
}
