// 指令分派：通用事件指令代码到处理函数的映射。
package interpreter

import "go.uber.org/zap"

// 比较运算符（条件分支共用）。
const (
	OpEqual = iota
	OpGreaterEqual
	OpLessEqual
	OpGreater
	OpLess
	OpNotEqual
)

// Compare 按运算符比较 a 与 b。未知运算符返回 false。
func Compare(op, a, b int) bool {
	switch op {
	case OpEqual:
		return a == b
	case OpGreaterEqual:
		return a >= b
	case OpLessEqual:
		return a <= b
	case OpGreater:
		return a > b
	case OpLess:
		return a < b
	case OpNotEqual:
		return a != b
	}
	return false
}

// ExecuteCommand 执行栈顶帧游标处的通用指令。
// 未识别的指令代码记录调试日志后直接跳过。
func (it *Interpreter) ExecuteCommand() bool {
	com := it.CurrentCommand()
	if com == nil {
		return true
	}

	switch com.Code {
	case CmdEnd, CmdComment, CmdCommentCont, CmdLabel, CmdLoop, CmdEndBranch:
		return true
	case CmdControlSwitches:
		return it.commandControlSwitches(com)
	case CmdControlVars:
		return it.commandControlVars(com)
	case CmdWait:
		return it.commandWait(com)
	case CmdConditionalBranch:
		return it.commandConditionalBranch(com)
	case CmdElseBranch:
		return it.commandElseBranch(com)
	case CmdJumpToLabel:
		return it.commandJumpToLabel(com)
	case CmdBreakLoop:
		return it.commandBreakLoop(com)
	case CmdEndLoop:
		return it.commandEndLoop(com)
	case CmdEndEventProcessing:
		return it.commandEndEventProcessing()
	default:
		it.logger.Debug("unsupported event command skipped",
			zap.Int("code", com.Code), zap.Int("event_id", it.Frame().EventID))
		return true
	}
}
