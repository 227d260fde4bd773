package battle

import (
	"fmt"

	"github.com/kasuganosora/battleevent/resource"
)

// MaxPartySize is the number of actors that can fight at once.
const MaxPartySize = 4

// ActorRegistry owns every actor of the database, party member or not.
// Lookups by database ID return nil for unknown IDs.
type ActorRegistry struct {
	actors map[int]*ActorBattler
}

// NewActorRegistry builds one ActorBattler per database actor.
func NewActorRegistry(res *resource.ResourceLoader) *ActorRegistry {
	r := &ActorRegistry{actors: make(map[int]*ActorBattler)}
	if res == nil {
		return r
	}
	for _, a := range res.Actors {
		if a == nil {
			continue
		}
		r.actors[a.ID] = NewActorBattler(a, res)
	}
	return r
}

// Add registers an actor battler, replacing any actor with the same ID.
func (r *ActorRegistry) Add(a *ActorBattler) { r.actors[a.ActorID()] = a }

// Actor returns the actor with the given database ID or nil.
func (r *ActorRegistry) Actor(id int) *ActorBattler { return r.actors[id] }

// Party is the ordered list of fighting actors.
type Party struct {
	members []*ActorBattler
}

// NewParty builds the party from actor IDs in order.
func NewParty(reg *ActorRegistry, actorIDs []int) (*Party, error) {
	if len(actorIDs) > MaxPartySize {
		return nil, fmt.Errorf("battle: party has %d members (max %d)", len(actorIDs), MaxPartySize)
	}
	p := &Party{}
	for _, id := range actorIDs {
		a := reg.Actor(id)
		if a == nil {
			return nil, fmt.Errorf("battle: unknown actor %d", id)
		}
		if p.IsActorInParty(id) {
			return nil, fmt.Errorf("battle: actor %d is already in the party", id)
		}
		a.index = len(p.members)
		p.members = append(p.members, a)
	}
	return p, nil
}

// BattlerCount is the number of party members.
func (p *Party) BattlerCount() int { return len(p.members) }

// Member returns the member at position idx (0-based) or nil.
func (p *Party) Member(idx int) *ActorBattler {
	if idx < 0 || idx >= len(p.members) {
		return nil
	}
	return p.members[idx]
}

// Members returns the party members in order.
func (p *Party) Members() []*ActorBattler {
	out := make([]*ActorBattler, len(p.members))
	copy(out, p.members)
	return out
}

// IsActorInParty reports whether the actor with database ID id is a member.
func (p *Party) IsActorInParty(id int) bool {
	for _, a := range p.members {
		if a.ActorID() == id {
			return true
		}
	}
	return false
}

// ActiveBattlers returns members that still exist on the field.
func (p *Party) ActiveBattlers() []Battler {
	var out []Battler
	for _, a := range p.members {
		if a.Exists() {
			out = append(out, a)
		}
	}
	return out
}

// IsAnyActive reports whether at least one member can still fight.
func (p *Party) IsAnyActive() bool { return len(p.ActiveBattlers()) > 0 }

// Fatigue is 0 for a fresh party and grows as HP and SP are spent.
// HP weighs twice as much as SP; a party without SP never drops below 34.
func (p *Party) Fatigue() int {
	hp, totalHP, sp, totalSP := 0, 0, 0, 0
	for _, a := range p.members {
		hp += a.HP()
		totalHP += a.MaxHP()
		sp += a.SP()
		totalSP += a.MaxSP()
	}
	totalHP = max(1, totalHP)
	totalSP = max(1, totalSP)
	return 100 - (200*hp/totalHP+100*sp/totalSP)/3
}

// EnemyParty is the troop being fought, indexed by member position.
type EnemyParty struct {
	members []*EnemyBattler
}

// NewEnemyParty builds the enemy battlers of a troop.
func NewEnemyParty(troop *resource.Troop, res *resource.ResourceLoader) (*EnemyParty, error) {
	ep := &EnemyParty{}
	for i, m := range troop.Members {
		enemy := res.EnemyByID(m.EnemyID)
		if enemy == nil {
			return nil, fmt.Errorf("battle: troop %d member %d: unknown enemy %d", troop.ID, i, m.EnemyID)
		}
		ep.members = append(ep.members, NewEnemyBattler(enemy, i, m.Invisible, res))
	}
	return ep, nil
}

// NewEnemyPartyOf wraps already built enemy battlers.
func NewEnemyPartyOf(members ...*EnemyBattler) *EnemyParty {
	for i, e := range members {
		e.index = i
	}
	return &EnemyParty{members: members}
}

// BattlerCount is the number of troop members, hidden and dead included.
func (ep *EnemyParty) BattlerCount() int { return len(ep.members) }

// Enemy returns the member at position idx or nil.
func (ep *EnemyParty) Enemy(idx int) *EnemyBattler {
	if idx < 0 || idx >= len(ep.members) {
		return nil
	}
	return ep.members[idx]
}

// Members returns all troop members in order.
func (ep *EnemyParty) Members() []*EnemyBattler {
	out := make([]*EnemyBattler, len(ep.members))
	copy(out, ep.members)
	return out
}

// ActiveBattlers returns members that are visible and alive.
func (ep *EnemyParty) ActiveBattlers() []Battler {
	var out []Battler
	for _, e := range ep.members {
		if e.Exists() {
			out = append(out, e)
		}
	}
	return out
}

// IsAnyActive reports whether at least one enemy is still on the field.
func (ep *EnemyParty) IsAnyActive() bool { return len(ep.ActiveBattlers()) > 0 }

// IsAnyAlive reports whether at least one enemy, hidden or not, is alive.
func (ep *EnemyParty) IsAnyAlive() bool {
	for _, e := range ep.members {
		if !e.IsDead() {
			return true
		}
	}
	return false
}

// ExpAndGold sums the rewards of all dead enemies.
func (ep *EnemyParty) ExpAndGold() (exp, gold int) {
	for _, e := range ep.members {
		if e.IsDead() && e.enemy != nil {
			exp += e.enemy.Exp
			gold += e.enemy.Gold
		}
	}
	return exp, gold
}
