// 指令分派：战斗专用指令代码到处理函数的映射。
package troop

// ---- RPG Maker 2000/2003 战斗事件专用指令代码 ----

const (
	CmdCallCommonEvent        = 1005
	CmdForceFlee              = 1006
	CmdEnableCombo            = 1007
	CmdChangeMonsterHP        = 13110
	CmdChangeMonsterMP        = 13120
	CmdChangeMonsterCondition = 13130
	CmdShowHiddenMonster      = 13150
	CmdChangeBattleBG         = 13210
	CmdShowBattleAnimation    = 13260
	CmdConditionalBranch      = 13310
	CmdTerminateBattle        = 13410
	CmdElseBranch             = 23310
	CmdEndBranch              = 23311
)

// ExecuteCommand 执行栈顶帧游标处的指令。战斗专用指令在此处理，其余交给通用解释器。
// 返回 true 推进到下一条，false 暂停。
func (t *Interpreter) ExecuteCommand() bool {
	com := t.CurrentCommand()
	if com == nil {
		return true
	}

	switch com.Code {
	case CmdCallCommonEvent:
		return t.commandCallCommonEvent(com)
	case CmdForceFlee:
		return t.commandForceFlee(com)
	case CmdEnableCombo:
		return t.commandEnableCombo(com)
	case CmdChangeMonsterHP:
		return t.commandChangeMonsterHP(com)
	case CmdChangeMonsterMP:
		return t.commandChangeMonsterMP(com)
	case CmdChangeMonsterCondition:
		return t.commandChangeMonsterCondition(com)
	case CmdShowHiddenMonster:
		return t.commandShowHiddenMonster(com)
	case CmdChangeBattleBG:
		return t.commandChangeBattleBG(com)
	case CmdShowBattleAnimation:
		return t.commandShowBattleAnimation(com)
	case CmdTerminateBattle:
		return t.commandTerminateBattle()
	case CmdConditionalBranch:
		return t.commandConditionalBranch(com)
	case CmdElseBranch:
		return t.commandElseBranch(com)
	case CmdEndBranch:
		return true
	default:
		return t.Interpreter.ExecuteCommand()
	}
}
