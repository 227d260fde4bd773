// 状态变更：开关与变量操作指令。
package interpreter

import (
	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// 开关/变量指令的目标选择方式。
const (
	targetSingle   = 0
	targetRange    = 1
	targetIndirect = 2
)

// targetIDs 根据 [0]=方式, [1]=起始ID, [2]=结束ID 解析目标 ID 列表。
// 间接方式下 [1] 为存放目标 ID 的变量。
func (it *Interpreter) targetIDs(com *resource.EventCommand) []int {
	switch com.Param(0) {
	case targetSingle:
		return []int{com.Param(1)}
	case targetRange:
		start, end := com.Param(1), com.Param(2)
		if end < start {
			start, end = end, start
		}
		ids := make([]int, 0, end-start+1)
		for id := start; id <= end; id++ {
			ids = append(ids, id)
		}
		return ids
	case targetIndirect:
		return []int{it.state.GetVariable(com.Param(1))}
	}
	it.logger.Warn("unknown switch/variable target mode", zap.Int("mode", com.Param(0)))
	return nil
}

// commandControlSwitches 处理开关操作（代码 10210）。
// 参数：[0..2]=目标, [3]=操作(0=ON, 1=OFF, 2=反转)。
func (it *Interpreter) commandControlSwitches(com *resource.EventCommand) bool {
	op := com.Param(3)
	for _, id := range it.targetIDs(com) {
		switch op {
		case 0:
			it.state.SetSwitch(id, true)
		case 1:
			it.state.SetSwitch(id, false)
		case 2:
			it.state.SetSwitch(id, !it.state.GetSwitch(id))
		}
	}
	return true
}

// commandControlVars 处理变量操作（代码 10220）。
// 参数：[0..2]=目标, [3]=操作(0=设置,1=加,2=减,3=乘,4=除,5=取模),
// [4]=操作数类型(0=常量,1=变量,2=间接变量,3=随机), [5]=操作数或最小值, [6]=最大值(随机时)。
func (it *Interpreter) commandControlVars(com *resource.EventCommand) bool {
	var operand int
	switch com.Param(4) {
	case 0:
		operand = com.Param(5)
	case 1:
		operand = it.state.GetVariable(com.Param(5))
	case 2:
		operand = it.state.GetVariable(it.state.GetVariable(com.Param(5)))
	case 3:
		operand = it.Rand(com.Param(5), com.Param(6))
	default:
		it.logger.Warn("unknown variable operand type", zap.Int("type", com.Param(4)))
		return true
	}

	op := com.Param(3)
	for _, id := range it.targetIDs(com) {
		current := it.state.GetVariable(id)
		switch op {
		case 0: // 设置
			current = operand
		case 1: // 加
			current += operand
		case 2: // 减
			current -= operand
		case 3: // 乘
			current *= operand
		case 4: // 除（防止除零）
			if operand != 0 {
				current /= operand
			}
		case 5: // 取模（防止除零）
			if operand != 0 {
				current %= operand
			}
		}
		it.state.SetVariable(id, current)
	}
	return true
}

// ---- 内存实现 ----

// MemoryState 仅驻留内存的开关/变量存储，用于测试和无持久化的模拟战斗。
type MemoryState struct {
	switches  map[int]bool
	variables map[int]int
}

// NewMemoryState 创建空的内存开关/变量存储。
func NewMemoryState() *MemoryState {
	return &MemoryState{switches: make(map[int]bool), variables: make(map[int]int)}
}

func (m *MemoryState) GetSwitch(id int) bool       { return m.switches[id] }
func (m *MemoryState) SetSwitch(id int, val bool)  { m.switches[id] = val }
func (m *MemoryState) GetVariable(id int) int      { return m.variables[id] }
func (m *MemoryState) SetVariable(id int, val int) { m.variables[id] = val }
