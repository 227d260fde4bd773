// 战斗条件分支（代码 13310 / 23310 / 23311）。
package troop

import (
	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// 战斗条件分支的条件类型，参数 [0]。
const (
	BranchSwitch        = 0
	BranchVariable      = 1
	BranchActorCanAct   = 2
	BranchEnemyCanAct   = 3
	BranchEnemyIsTarget = 4
	BranchActorCommand  = 5
)

var branchTerminators = []int{CmdElseBranch, CmdEndBranch}

// commandConditionalBranch 战斗条件分支。
//
//	0 开关：     [1]=开关ID, [2]=0 为 ON / 1 为 OFF
//	1 变量：     [1]=变量ID, [2]=0 常量 / 1 变量引用, [3]=比较值, [4]=比较运算符
//	2 角色可行动：[1]=角色ID
//	3 敌人可行动：[1]=敌人索引
//	4 敌人是当前目标：[1]=敌人索引
//	5 角色使用指令：[1]=角色ID, [2]=战斗指令ID
//
// 条件为假时激活 Else 臂并跳到同层的 Else/End。
func (t *Interpreter) commandConditionalBranch(com *resource.EventCommand) bool {
	result := false
	state := t.State()

	switch com.Param(0) {
	case BranchSwitch:
		result = state.GetSwitch(com.Param(1)) == (com.Param(2) == 0)
	case BranchVariable:
		lhs := state.GetVariable(com.Param(1))
		rhs := com.Param(3)
		if com.Param(2) != 0 {
			rhs = state.GetVariable(rhs)
		}
		result = interpreter.Compare(com.Param(4), lhs, rhs)
	case BranchActorCanAct:
		actor := t.ctx.Actor(com.Param(1))
		if actor == nil {
			return t.branchInvalidActor(com)
		}
		result = actor.CanAct()
	case BranchEnemyCanAct:
		if enemy := t.ctx.Enemy(com.Param(1)); enemy != nil {
			result = enemy.CanAct()
		}
	case BranchEnemyIsTarget:
		result = t.ctx.EnemyTargetIndex() == com.Param(1)
	case BranchActorCommand:
		actor := t.ctx.Actor(com.Param(1))
		if actor == nil {
			return t.branchInvalidActor(com)
		}
		result = actor.LastBattleAction() == com.Param(2)
	}

	subIdx := interpreter.SubcommandSentinel
	if !result {
		subIdx = interpreter.BranchElse
		t.SkipToNextConditional(branchTerminators, com.Indent)
	}
	t.SetSubcommandIndex(com.Indent, subIdx)
	return true
}

// branchInvalidActor 条件引用了不存在的角色：走 Else 臂。
func (t *Interpreter) branchInvalidActor(com *resource.EventCommand) bool {
	t.logger.Warn("battle conditional branch: invalid actor",
		zap.Int("kind", com.Param(0)), zap.Int("actor_id", com.Param(1)))
	t.SetSubcommandIndex(com.Indent, interpreter.BranchElse)
	t.SkipToNextConditional(branchTerminators, com.Indent)
	return true
}

func (t *Interpreter) commandElseBranch(com *resource.EventCommand) bool {
	return t.CommandOptionGeneric(com, interpreter.BranchElse, []int{CmdEndBranch})
}
