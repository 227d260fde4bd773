// Package interpreter 实现 RPG Maker 2000/2003 事件指令的通用解释器：
// 帧调用栈、通用指令分派、分支子指令索引、等待计时器与异步操作槽。
// 战斗专用指令由 game/troop 在此基础上扩展。
package interpreter

import (
	"errors"
	"math/rand"
	"time"

	"github.com/kasuganosora/battleevent/resource"
	"go.uber.org/zap"
)

// ---- RPG Maker 2000/2003 通用事件指令代码 ----

const (
	CmdEnd                = 10
	CmdControlSwitches    = 10210
	CmdControlVars        = 10220
	CmdWait               = 11410
	CmdConditionalBranch  = 12010
	CmdLabel              = 12110
	CmdJumpToLabel        = 12120
	CmdLoop               = 12210
	CmdBreakLoop          = 12220
	CmdEndEventProcessing = 12310
	CmdComment            = 12410
	CmdElseBranch         = 22010
	CmdEndBranch          = 22011
	CmdEndLoop            = 22210
	CmdCommentCont        = 22410
)

const (
	// SubcommandSentinel 表示该缩进层级的分支臂已经执行完毕，其余分支一律跳过。
	SubcommandSentinel = 255
	// BranchElse 条件分支判断为假时激活的分支臂。
	BranchElse = 1

	// DefaultMaxCallDepth 公共事件嵌套调用的默认上限。
	DefaultMaxCallDepth = 100

	// MaxCommandsPerUpdate 单次 Run 最多执行的指令数。超出后让出本帧，下一次 Run 从原处继续。
	MaxCommandsPerUpdate = 10000

	// FramesPerSecond 引擎逻辑帧率。
	FramesPerSecond = 60
)

var (
	// ErrCallDepthExceeded 公共事件递归调用超出上限。属于致命错误，战斗应中止。
	ErrCallDepthExceeded = errors.New("interpreter: call depth exceeded")
)

// ---- 异步操作 ----

// AsyncOpType 异步操作类型。
type AsyncOpType int

const (
	AsyncNone AsyncOpType = iota
	AsyncTerminateBattle
)

// AsyncOp 由指令处理器设置、由战斗循环在本次执行结束后消费的延迟操作。
// 同一时刻只存在一个，后写覆盖先写。
type AsyncOp struct {
	Type   AsyncOpType
	Result int
}

// MakeTerminateBattle 构造"以 result 结束战斗"的异步操作。
func MakeTerminateBattle(result int) AsyncOp {
	return AsyncOp{Type: AsyncTerminateBattle, Result: result}
}

// IsActive 是否存在待处理的异步操作。
func (op AsyncOp) IsActive() bool { return op.Type != AsyncNone }

// ---- 核心接口 ----

// GameState 提供开关与变量的读写访问。
type GameState interface {
	GetSwitch(id int) bool
	SetSwitch(id int, val bool)
	GetVariable(id int) int
	SetVariable(id int, val int)
}

// Serializer 由多场战斗共享的存储实现。fn 执行期间独占全部开关与变量，
// 解释器用它包裹每条指令，使读-改-写不会与其他战斗交错。
type Serializer interface {
	Exclusive(fn func())
}

// CommandExecutor 执行当前帧游标处的一条指令。
// 返回 true 表示推进到下一条指令，false 表示暂停（下一次 Run 会重新执行该指令）。
type CommandExecutor interface {
	ExecuteCommand() bool
}

// Frame 调用栈中的一帧：指令列表、游标与按缩进记录的分支索引。
type Frame struct {
	Commands []*resource.EventCommand
	Cursor   int
	EventID  int

	subcommands map[int]int
	// jumped 本条指令执行期间游标已被重新定位，Run 不再自动推进。
	jumped bool
}

// Current 返回游标处的指令，越界时返回 nil。
func (f *Frame) Current() *resource.EventCommand {
	if f == nil || f.Cursor < 0 || f.Cursor >= len(f.Commands) {
		return nil
	}
	return f.Commands[f.Cursor]
}

// Done 该帧的指令是否已经全部执行完。
func (f *Frame) Done() bool { return f.Cursor >= len(f.Commands) }

// JumpTo 把游标移到 idx，本条指令执行后不再自动推进。
func (f *Frame) JumpTo(idx int) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(f.Commands) {
		idx = len(f.Commands)
	}
	f.Cursor = idx
	f.jumped = true
}

// Options 构造 Interpreter 的参数。
type Options struct {
	State        GameState
	MaxCallDepth int
	Logger       *zap.Logger
	RNG          *rand.Rand
}

// Interpreter 通用事件解释器。单个实例只能在一个 goroutine 中使用。
type Interpreter struct {
	state    GameState
	serial   Serializer
	logger   *zap.Logger
	rng      *rand.Rand
	maxDepth int

	stack      []*Frame
	waitFrames int
	async      AsyncOp
	fatal      error
}

// New 创建通用解释器。
func New(opts Options) *Interpreter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	depth := opts.MaxCallDepth
	if depth <= 0 {
		depth = DefaultMaxCallDepth
	}
	var state GameState = NewMemoryState()
	if opts.State != nil {
		state = opts.State
	}
	serial, _ := state.(Serializer)
	return &Interpreter{
		state:    state,
		serial:   serial,
		logger:   logger,
		rng:      rng,
		maxDepth: depth,
	}
}

// Logger 返回解释器使用的日志器。
func (it *Interpreter) Logger() *zap.Logger { return it.logger }

// State 返回开关/变量存储。
func (it *Interpreter) State() GameState { return it.state }

// ---- 调用栈 ----

// Push 压入新的指令列表帧。超出调用深度上限时记录致命错误并返回 ErrCallDepthExceeded。
func (it *Interpreter) Push(cmds []*resource.EventCommand, eventID int) error {
	if len(it.stack) >= it.maxDepth {
		it.logger.Error("call event limit exceeded",
			zap.Int("limit", it.maxDepth), zap.Int("event_id", eventID))
		it.fatal = ErrCallDepthExceeded
		return ErrCallDepthExceeded
	}
	it.stack = append(it.stack, &Frame{
		Commands:    cmds,
		EventID:     eventID,
		subcommands: make(map[int]int),
	})
	return nil
}

// Pop 弹出栈顶帧。
func (it *Interpreter) Pop() {
	if len(it.stack) == 0 {
		return
	}
	it.stack[len(it.stack)-1] = nil
	it.stack = it.stack[:len(it.stack)-1]
}

// Frame 返回栈顶帧，栈空时返回 nil。
func (it *Interpreter) Frame() *Frame {
	if len(it.stack) == 0 {
		return nil
	}
	return it.stack[len(it.stack)-1]
}

// Depth 当前调用栈深度。
func (it *Interpreter) Depth() int { return len(it.stack) }

// MaxCallDepth 调用栈深度上限。
func (it *Interpreter) MaxCallDepth() int { return it.maxDepth }

// IsRunning 栈中是否还有帧。
func (it *Interpreter) IsRunning() bool { return len(it.stack) > 0 }

// Clear 清空调用栈、等待计时与异步操作。
func (it *Interpreter) Clear() {
	for i := range it.stack {
		it.stack[i] = nil
	}
	it.stack = it.stack[:0]
	it.waitFrames = 0
	it.async = AsyncOp{}
	it.fatal = nil
}

// CurrentCommand 返回栈顶帧游标处的指令。
func (it *Interpreter) CurrentCommand() *resource.EventCommand {
	return it.Frame().Current()
}

// ---- 等待与异步操作 ----

// SetWait 设置等待帧数，期间 Run 只递减计时不执行指令。
func (it *Interpreter) SetWait(frames int) {
	if frames < 0 {
		frames = 0
	}
	it.waitFrames = frames
}

// Wait 剩余等待帧数。
func (it *Interpreter) Wait() int { return it.waitFrames }

// AsyncOp 返回待处理的异步操作。
func (it *Interpreter) AsyncOp() AsyncOp { return it.async }

// SetAsyncOp 设置异步操作，覆盖尚未消费的旧操作。
func (it *Interpreter) SetAsyncOp(op AsyncOp) { it.async = op }

// ClearAsyncOp 由战斗循环在消费异步操作后调用。
func (it *Interpreter) ClearAsyncOp() { it.async = AsyncOp{} }

// ---- 执行 ----

// Run 执行一帧更新：依次执行指令，直到栈空、需要等待、出现异步操作或处理器暂停。
// 递归超限等致命错误以 error 返回。
func (it *Interpreter) Run(ex CommandExecutor) error {
	if it.fatal != nil {
		return it.fatal
	}
	if it.waitFrames > 0 {
		it.waitFrames--
		return nil
	}
	for n := 0; ; n++ {
		if it.async.IsActive() || it.waitFrames > 0 {
			return nil
		}
		f := it.Frame()
		if f == nil {
			return nil
		}
		if f.Done() {
			it.Pop()
			continue
		}
		if n >= MaxCommandsPerUpdate {
			it.logger.Warn("event command limit per update reached, yielding",
				zap.Int("event_id", f.EventID), zap.Int("limit", MaxCommandsPerUpdate))
			return nil
		}

		f.jumped = false
		ok := it.execute(ex)
		if it.fatal != nil {
			return it.fatal
		}
		if !ok {
			return nil
		}
		if !f.jumped {
			f.Cursor++
		}
	}
}

func (it *Interpreter) execute(ex CommandExecutor) bool {
	if it.serial == nil {
		return ex.ExecuteCommand()
	}
	var ok bool
	it.serial.Exclusive(func() { ok = ex.ExecuteCommand() })
	return ok
}

// Rand 返回 [lo, hi] 之间的随机整数。
func (it *Interpreter) Rand(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + it.rng.Intn(hi-lo+1)
}
