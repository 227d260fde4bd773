package battle

import (
	"math"
	"math/rand"

	"github.com/kasuganosora/battleevent/resource"
)

// Action types.
const (
	ActionNone = iota
	ActionAttack
	ActionDefend
	ActionEscape
)

// Action represents a battle action chosen by or assigned to a battler.
type Action struct {
	Type int
	// CommandID is the battle command the actor picked; 0 for enemies.
	CommandID int
	// TargetIndex is a position on the opposing side, -1 for a random target.
	TargetIndex int
}

// ActionFromCommand maps a battle command to an action. Unknown commands and
// 2000 data without a command list fall back to a plain attack.
func ActionFromCommand(res *resource.ResourceLoader, commandID int) *Action {
	a := &Action{Type: ActionAttack, CommandID: commandID, TargetIndex: -1}
	if res == nil {
		return a
	}
	cmd := res.BattleCommandByID(commandID)
	if cmd == nil {
		return a
	}
	switch cmd.Type {
	case resource.BattleCommandDefense:
		a.Type = ActionDefend
	case resource.BattleCommandEscape:
		a.Type = ActionEscape
	case resource.BattleCommandAttack:
	default:
		// skills and items are not simulated
		a.Type = ActionNone
	}
	return a
}

// ActionProcessor resolves attacks between battlers.
type ActionProcessor struct {
	RNG *rand.Rand
}

// ActionOutcome is the result of processing one action against one target.
type ActionOutcome struct {
	TargetIndex   int
	TargetIsActor bool
	Damage        int
	Killed        bool
}

// Damage computes the physical damage of attacker against defender:
// atk*4 - def*2 with a ±10% spread, halved when the defender guards, never negative.
func (ap *ActionProcessor) Damage(attacker, defender Battler) int {
	base := float64(attacker.Atk()*4 - defender.Def()*2)
	if ap.RNG != nil {
		base *= 0.9 + ap.RNG.Float64()*0.2
	}
	if defender.IsGuarding() {
		base /= 2
	}
	return int(math.Max(0, math.Round(base)))
}

// ProcessAction executes a battler's action once and returns outcomes per target.
// opponents is the side the subject attacks.
func (ap *ActionProcessor) ProcessAction(subject Battler, action *Action, opponents []Battler) []ActionOutcome {
	if action == nil {
		return nil
	}

	switch action.Type {
	case ActionAttack:
		tgt := ap.pickTarget(action.TargetIndex, opponents)
		if tgt == nil {
			return nil
		}
		dmg := ap.Damage(subject, tgt)
		tgt.ChangeHP(-dmg, true)
		return []ActionOutcome{{
			TargetIndex:   tgt.Index(),
			TargetIsActor: tgt.IsActor(),
			Damage:        dmg,
			Killed:        tgt.IsDead(),
		}}
	case ActionDefend:
		subject.SetGuarding(true)
		return nil
	default:
		return nil
	}
}

// pickTarget returns the opponent at idx when it still exists, otherwise a
// random existing opponent.
func (ap *ActionProcessor) pickTarget(idx int, opponents []Battler) Battler {
	var alive []Battler
	for _, b := range opponents {
		if !b.Exists() {
			continue
		}
		if b.Index() == idx {
			return b
		}
		alive = append(alive, b)
	}
	if len(alive) == 0 {
		return nil
	}
	if ap.RNG == nil {
		return alive[0]
	}
	return alive[ap.RNG.Intn(len(alive))]
}

// Repeats is how many times the subject performs action this turn.
// An actor's combo applies when the chosen command matches it.
func Repeats(subject Battler, action *Action) int {
	a, ok := subject.(*ActorBattler)
	if !ok || action == nil || action.Type != ActionAttack {
		return 1
	}
	cmd, times := a.BattleCombo()
	if cmd != 0 && cmd == action.CommandID && times > 1 {
		return times
	}
	return 1
}
