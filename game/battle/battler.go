package battle

import (
	"github.com/kasuganosora/battleevent/resource"
)

// DeathStateID is the database ID of the knockout state.
const DeathStateID = 1

// DeathTimerFrames is how long a killed enemy keeps fading out.
const DeathTimerFrames = 36

// BattlerType distinguishes party members from troop members.
type BattlerType int

const (
	TypeAlly BattlerType = iota
	TypeEnemy
)

func (t BattlerType) String() string {
	if t == TypeAlly {
		return "ally"
	}
	return "enemy"
}

// Battler represents any entity participating in battle.
type Battler interface {
	Name() string
	Type() BattlerType
	IsActor() bool
	// Index is the position in the party (allies) or troop (enemies), 0-based.
	Index() int

	HP() int
	MaxHP() int
	SP() int
	MaxSP() int
	Atk() int
	Def() int
	Spi() int
	Agi() int

	SetHP(v int)
	SetSP(v int)
	// ChangeHP applies a signed delta. A non-lethal change never drops HP below 1.
	// Returns the HP actually gained or lost.
	ChangeHP(delta int, lethal bool) int
	Kill()

	IsDead() bool
	// Exists is false for dead or hidden battlers.
	Exists() bool
	// CanAct is false when the battler does not exist or a state restricts it.
	CanAct() bool

	AddState(stateID int)
	RemoveState(stateID int)
	HasState(stateID int) bool
	StateIDs() []int

	BattleTurn() int
	NextBattleTurn()

	CurrentAction() *Action
	SetAction(a *Action)
	ClearAction()

	IsGuarding() bool
	SetGuarding(v bool)
}

// ---------------------------------------------------------------------------
//  baseBattler: shared implementation for actors and enemies
// ---------------------------------------------------------------------------

type baseBattler struct {
	name   string
	index  int
	hp, sp int
	// 0=mhp, 1=msp, 2=atk, 3=def, 4=spi, 5=agi
	params     [6]int
	states     []int
	action     *Action
	guarding   bool
	battleTurn int
	res        *resource.ResourceLoader
}

func (b *baseBattler) Name() string { return b.name }
func (b *baseBattler) Index() int   { return b.index }
func (b *baseBattler) HP() int      { return b.hp }
func (b *baseBattler) SP() int      { return b.sp }
func (b *baseBattler) MaxHP() int   { return max(b.params[0], 1) }
func (b *baseBattler) MaxSP() int   { return max(b.params[1], 0) }
func (b *baseBattler) Atk() int     { return b.params[2] }
func (b *baseBattler) Def() int     { return b.params[3] }
func (b *baseBattler) Spi() int     { return b.params[4] }
func (b *baseBattler) Agi() int     { return b.params[5] }

func (b *baseBattler) SetHP(v int) {
	b.hp = clamp(v, 0, b.MaxHP())
}

func (b *baseBattler) SetSP(v int) {
	b.sp = clamp(v, 0, b.MaxSP())
}

func (b *baseBattler) ChangeHP(delta int, lethal bool) int {
	if b.IsDead() {
		return 0
	}
	before := b.hp
	v := b.hp + delta
	if !lethal && v <= 0 {
		v = 1
	}
	b.SetHP(v)
	if b.hp == 0 {
		b.Kill()
	}
	return b.hp - before
}

// Kill sets HP to zero and leaves only the death state.
func (b *baseBattler) Kill() {
	b.hp = 0
	b.states = b.states[:0]
	b.states = append(b.states, DeathStateID)
	b.guarding = false
}

func (b *baseBattler) IsDead() bool { return b.HasState(DeathStateID) }

func (b *baseBattler) restricted() bool {
	if b.res == nil {
		return false
	}
	for _, id := range b.states {
		if st := b.res.StateByID(id); st != nil && st.Restriction == resource.RestrictionDoNothing {
			return true
		}
	}
	return false
}

// --- State management ---

// AddState adds a state. Adding death kills the battler.
func (b *baseBattler) AddState(stateID int) {
	if stateID <= 0 {
		return
	}
	if stateID == DeathStateID {
		b.Kill()
		return
	}
	if b.IsDead() || b.HasState(stateID) {
		return
	}
	b.states = append(b.states, stateID)
}

// RemoveState removes a state. Removing death revives the battler with 1 HP.
func (b *baseBattler) RemoveState(stateID int) {
	for i, s := range b.states {
		if s == stateID {
			b.states = append(b.states[:i], b.states[i+1:]...)
			if stateID == DeathStateID && b.hp == 0 {
				b.hp = 1
			}
			return
		}
	}
}

func (b *baseBattler) HasState(stateID int) bool {
	for _, s := range b.states {
		if s == stateID {
			return true
		}
	}
	return false
}

func (b *baseBattler) StateIDs() []int {
	ids := make([]int, len(b.states))
	copy(ids, b.states)
	return ids
}

// --- Turn counter ---

func (b *baseBattler) BattleTurn() int  { return b.battleTurn }
func (b *baseBattler) NextBattleTurn() { b.battleTurn++ }

// --- Action management ---

func (b *baseBattler) CurrentAction() *Action { return b.action }
func (b *baseBattler) SetAction(a *Action)    { b.action = a }
func (b *baseBattler) ClearAction()           { b.action = nil }

// --- Guard ---

func (b *baseBattler) IsGuarding() bool   { return b.guarding }
func (b *baseBattler) SetGuarding(v bool) { b.guarding = v }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ---------------------------------------------------------------------------
//  ActorBattler
// ---------------------------------------------------------------------------

// ActorBattler represents a party member in battle.
type ActorBattler struct {
	baseBattler
	actorID int

	lastBattleAction int
	comboCommandID   int
	comboTimes       int
}

// NewActorBattler creates an ActorBattler at full HP/SP from database data.
func NewActorBattler(actor *resource.Actor, res *resource.ResourceLoader) *ActorBattler {
	a := &ActorBattler{actorID: actor.ID}
	a.name = actor.Name
	a.index = -1
	a.params = [6]int{actor.HP, actor.SP, actor.Atk, actor.Def, actor.Spi, actor.Agi}
	a.hp = a.MaxHP()
	a.sp = a.MaxSP()
	a.res = res
	return a
}

func (a *ActorBattler) Type() BattlerType { return TypeAlly }
func (a *ActorBattler) IsActor() bool     { return true }
func (a *ActorBattler) ActorID() int      { return a.actorID }

func (a *ActorBattler) Exists() bool { return !a.IsDead() }
func (a *ActorBattler) CanAct() bool { return a.Exists() && !a.restricted() }

// LastBattleAction is the battle command ID the actor executed most recently.
func (a *ActorBattler) LastBattleAction() int     { return a.lastBattleAction }
func (a *ActorBattler) SetLastBattleAction(id int) { a.lastBattleAction = id }

// SetBattleCombo makes commandID execute times times in one turn.
func (a *ActorBattler) SetBattleCombo(commandID, times int) {
	a.comboCommandID = commandID
	a.comboTimes = times
}

// BattleCombo returns the combo command and its repeat count.
func (a *ActorBattler) BattleCombo() (commandID, times int) {
	return a.comboCommandID, a.comboTimes
}

// ---------------------------------------------------------------------------
//  EnemyBattler
// ---------------------------------------------------------------------------

// EnemyBattler represents a troop member in battle.
type EnemyBattler struct {
	baseBattler
	enemyID    int
	enemy      *resource.Enemy
	hidden     bool
	deathTimer int
}

// NewEnemyBattler creates an EnemyBattler from enemy resource data.
func NewEnemyBattler(enemy *resource.Enemy, index int, hidden bool, res *resource.ResourceLoader) *EnemyBattler {
	e := &EnemyBattler{
		enemyID: enemy.ID,
		enemy:   enemy,
		hidden:  hidden,
	}
	e.name = enemy.Name
	e.index = index
	e.params = [6]int{enemy.HP, enemy.SP, enemy.Atk, enemy.Def, enemy.Spi, enemy.Agi}
	e.hp = e.MaxHP()
	e.sp = e.MaxSP()
	e.res = res
	return e
}

func (e *EnemyBattler) Type() BattlerType      { return TypeEnemy }
func (e *EnemyBattler) IsActor() bool          { return false }
func (e *EnemyBattler) Enemy() *resource.Enemy { return e.enemy }
func (e *EnemyBattler) EnemyID() int           { return e.enemyID }

func (e *EnemyBattler) IsHidden() bool         { return e.hidden }
func (e *EnemyBattler) SetHidden(v bool)       { e.hidden = v }
func (e *EnemyBattler) Exists() bool           { return !e.hidden && !e.IsDead() }
func (e *EnemyBattler) CanAct() bool           { return e.Exists() && !e.restricted() }
func (e *EnemyBattler) SetDeathTimer()         { e.deathTimer = DeathTimerFrames }
func (e *EnemyBattler) DeathTimer() int        { return e.deathTimer }
func (e *EnemyBattler) IsDeathAnimating() bool { return e.deathTimer > 0 }

// TickDeathTimer advances the fade-out by one frame.
func (e *EnemyBattler) TickDeathTimer() {
	if e.deathTimer > 0 {
		e.deathTimer--
	}
}
