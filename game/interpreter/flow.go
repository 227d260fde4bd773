// 控制流：分支跳转、子指令索引、循环与标签。
package interpreter

import (
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// SetSubcommandIndex 记录栈顶帧在 indent 层级上当前激活的分支臂。同层级覆盖写入。
func (it *Interpreter) SetSubcommandIndex(indent, idx int) {
	f := it.Frame()
	if f == nil {
		return
	}
	f.subcommands[indent] = idx
}

// SubcommandIndex 返回栈顶帧在 indent 层级上记录的分支臂，未记录时为 SubcommandSentinel。
func (it *Interpreter) SubcommandIndex(indent int) int {
	f := it.Frame()
	if f == nil {
		return SubcommandSentinel
	}
	idx, ok := f.subcommands[indent]
	if !ok {
		return SubcommandSentinel
	}
	return idx
}

// SkipToNextConditional 从游标的下一条开始向前扫描，跳过缩进更深的嵌套块，
// 停在第一条代码属于 codes 的指令上（该指令将在下一步执行）。
// 扫描到帧末尾仍未找到时，游标置于帧末尾，当前帧随之结束。
func (it *Interpreter) SkipToNextConditional(codes []int, indent int) {
	f := it.Frame()
	if f == nil {
		return
	}
	for j := f.Cursor + 1; j < len(f.Commands); j++ {
		c := f.Commands[j]
		if c == nil || c.Indent > indent {
			continue
		}
		if containsCode(codes, c.Code) {
			f.JumpTo(j)
			return
		}
	}
	it.logger.Debug("branch terminator not found, ending frame",
		zap.Int("event_id", f.EventID), zap.Int("indent", indent), zap.Ints("codes", codes))
	f.JumpTo(len(f.Commands))
}

// CommandOptionGeneric 分支臂指令（Else 等）的通用处理：
// 若 subIdx 为当前激活臂则标记为已执行并继续，否则跳到 next 中的下一条分支指令。
func (it *Interpreter) CommandOptionGeneric(com *resource.EventCommand, subIdx int, next []int) bool {
	if it.SubcommandIndex(com.Indent) == subIdx {
		it.SetSubcommandIndex(com.Indent, SubcommandSentinel)
	} else {
		it.SkipToNextConditional(next, com.Indent)
	}
	return true
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// ---- 条件分支（代码 12010） ----

// commandConditionalBranch 通用条件分支。参数：[0]=条件类型。
// 0=开关：[1]=开关ID, [2]=0 为 ON / 1 为 OFF。
// 1=变量：[1]=变量ID, [2]=0 常量 / 1 变量引用, [3]=比较值, [4]=比较运算符。
// 其余类型依赖地图/角色上下文，战斗服务端不支持，记录警告并按假处理。
func (it *Interpreter) commandConditionalBranch(com *resource.EventCommand) bool {
	result := false
	switch com.Param(0) {
	case 0:
		result = it.state.GetSwitch(com.Param(1)) == (com.Param(2) == 0)
	case 1:
		lhs := it.state.GetVariable(com.Param(1))
		rhs := com.Param(3)
		if com.Param(2) != 0 {
			rhs = it.state.GetVariable(rhs)
		}
		result = Compare(com.Param(4), lhs, rhs)
	default:
		it.logger.Warn("conditional branch kind not supported",
			zap.Int("kind", com.Param(0)), zap.Int("event_id", it.Frame().EventID))
	}

	subIdx := SubcommandSentinel
	if !result {
		subIdx = BranchElse
		it.SkipToNextConditional([]int{CmdElseBranch, CmdEndBranch}, com.Indent)
	}
	it.SetSubcommandIndex(com.Indent, subIdx)
	return true
}

func (it *Interpreter) commandElseBranch(com *resource.EventCommand) bool {
	return it.CommandOptionGeneric(com, BranchElse, []int{CmdEndBranch})
}

// ---- 标签 ----

// commandJumpToLabel 跳转到同一帧中 ID 为 [0] 的标签。标签不存在时继续执行。
func (it *Interpreter) commandJumpToLabel(com *resource.EventCommand) bool {
	f := it.Frame()
	id := com.Param(0)
	for j, c := range f.Commands {
		if c != nil && c.Code == CmdLabel && c.Param(0) == id {
			f.JumpTo(j)
			return true
		}
	}
	it.logger.Warn("jump to unknown label", zap.Int("label", id), zap.Int("event_id", f.EventID))
	return true
}

// ---- 循环 ----

// commandEndLoop 回到同缩进层级的循环起点。
func (it *Interpreter) commandEndLoop(com *resource.EventCommand) bool {
	f := it.Frame()
	for j := f.Cursor - 1; j >= 0; j-- {
		c := f.Commands[j]
		if c != nil && c.Code == CmdLoop && c.Indent == com.Indent {
			f.JumpTo(j + 1)
			return true
		}
	}
	// 没有配对的循环起点，视为普通指令
	return true
}

// commandBreakLoop 跳出当前所在的循环：定位到缩进更浅的第一个循环结束标记之后。
func (it *Interpreter) commandBreakLoop(com *resource.EventCommand) bool {
	f := it.Frame()
	for j := f.Cursor + 1; j < len(f.Commands); j++ {
		c := f.Commands[j]
		if c != nil && c.Code == CmdEndLoop && c.Indent < com.Indent {
			f.JumpTo(j + 1)
			return true
		}
	}
	f.JumpTo(len(f.Commands))
	return true
}

// commandEndEventProcessing 结束当前帧。
func (it *Interpreter) commandEndEventProcessing() bool {
	f := it.Frame()
	f.JumpTo(len(f.Commands))
	return true
}

// ---- 等待（代码 11410） ----

// commandWait 参数 [0] 以 0.1 秒为单位。
func (it *Interpreter) commandWait(com *resource.EventCommand) bool {
	it.SetWait(com.Param(0) * FramesPerSecond / 10)
	return true
}
