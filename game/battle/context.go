package battle

import (
	"fmt"

	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/resource"
)

// Result codes of a finished battle.
const (
	ResultWin    = 0
	ResultEscape = 1
	ResultLose   = 2
	ResultAbort  = 3
)

// ResultName returns a readable name for a battle result code.
func ResultName(result int) string {
	switch result {
	case ResultWin:
		return "win"
	case ResultEscape:
		return "escape"
	case ResultLose:
		return "lose"
	case ResultAbort:
		return "abort"
	}
	return fmt.Sprintf("result(%d)", result)
}

// Condition is the formation the battle starts in.
type Condition int

const (
	ConditionNormal Condition = iota
	ConditionInitiative
	ConditionBack
	ConditionSurround
	ConditionPincers
)

var conditionNames = [...]string{"normal", "initiative", "back", "surround", "pincers"}

func (c Condition) String() string {
	if c < 0 || int(c) >= len(conditionNames) {
		return fmt.Sprintf("condition(%d)", int(c))
	}
	return conditionNames[c]
}

// ParseCondition converts a condition name. The empty string means normal.
func ParseCondition(s string) (Condition, error) {
	if s == "" {
		return ConditionNormal, nil
	}
	for i, name := range conditionNames {
		if name == s {
			return Condition(i), nil
		}
	}
	return ConditionNormal, fmt.Errorf("battle: unknown battle condition %q", s)
}

// SwitchVariableStore is the switch/variable storage battle events read and write.
type SwitchVariableStore = interpreter.GameState

// SystemSE names the system sound effects battle events can trigger.
type SystemSE int

const (
	SEEscape SystemSE = iota
	SEEnemyKill
)

func (s SystemSE) String() string {
	switch s {
	case SEEscape:
		return "escape"
	case SEEnemyKill:
		return "enemy_kill"
	}
	return fmt.Sprintf("se(%d)", int(s))
}

// SoundPlayer plays system sound effects.
type SoundPlayer interface {
	PlaySystemSE(se SystemSE)
}

// AnimationPlayer starts a battle animation on targets and returns its length in frames.
type AnimationPlayer interface {
	ShowBattleAnimation(animationID int, targets []Battler) int
}

// BackgroundChanger swaps the battle background.
type BackgroundChanger interface {
	ChangeBackground(name string)
}

// Context bundles the battle state and services that battle events act on.
// It is owned by one battle and used from one goroutine.
type Context struct {
	State      SwitchVariableStore
	Actors     *ActorRegistry
	Party      *Party
	Enemies    *EnemyParty
	Res        *resource.ResourceLoader
	Sound      SoundPlayer
	Animation  AnimationPlayer
	Background BackgroundChanger
	Condition  Condition
	// RPG2k3 enables 2003-only command parameters.
	RPG2k3 bool

	turn             int
	enemyTargetIndex int
	needRefresh      bool
}

// Turn is the global battle turn counter. Battle start is turn 0.
func (c *Context) Turn() int { return c.turn }

// NextTurn advances the global turn counter.
func (c *Context) NextTurn() { c.turn++ }

// EnemyTargetIndex is the troop index of the enemy currently targeted by the party.
func (c *Context) EnemyTargetIndex() int      { return c.enemyTargetIndex }
func (c *Context) SetEnemyTargetIndex(idx int) { c.enemyTargetIndex = idx }

// NeedRefresh is set by events that change who is still fighting.
func (c *Context) NeedRefresh() bool     { return c.needRefresh }
func (c *Context) SetNeedRefresh(v bool) { c.needRefresh = v }

// CommonEvent returns the common event with the given ID or nil.
func (c *Context) CommonEvent(id int) *resource.CommonEvent {
	if c.Res == nil {
		return nil
	}
	return c.Res.CommonEventByID(id)
}

// Actor returns the actor with the given database ID or nil.
func (c *Context) Actor(id int) *ActorBattler {
	if c.Actors == nil {
		return nil
	}
	return c.Actors.Actor(id)
}

// Enemy returns the troop member at idx or nil.
func (c *Context) Enemy(idx int) *EnemyBattler {
	if c.Enemies == nil {
		return nil
	}
	return c.Enemies.Enemy(idx)
}

// PlaySE plays a system sound if a sound player is attached.
func (c *Context) PlaySE(se SystemSE) {
	if c.Sound != nil {
		c.Sound.PlaySystemSE(se)
	}
}

// ShowBattleAnimation plays an animation if a player is attached and returns its frames.
func (c *Context) ShowBattleAnimation(animationID int, targets []Battler) int {
	if c.Animation == nil {
		return 0
	}
	return c.Animation.ShowBattleAnimation(animationID, targets)
}

// ChangeBackground swaps the background if a changer is attached.
func (c *Context) ChangeBackground(name string) {
	if c.Background != nil {
		c.Background.ChangeBackground(name)
	}
}
