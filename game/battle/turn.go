package battle

import (
	"math/rand"
	"sort"
)

// CheckTurns reports whether turns falls in the window that opens at start and
// repeats every multiple turns. With multiple == 0 only turn start matches.
func CheckTurns(turns, multiple, start int) bool {
	if multiple > 0 {
		return turns >= start && (turns-start)%multiple == 0
	}
	return turns == start
}

// TurnManager determines the action order for a battle turn.
type TurnManager interface {
	// MakeActionOrder sorts battlers by their effective speed for the turn.
	// The returned slice is a new ordering; the input slices are not modified.
	MakeActionOrder(actors, enemies []Battler, rng *rand.Rand) []Battler
}

// DefaultTurnManager orders by AGI with a small random spread.
// Speed = AGI + random(0, floor(5 + AGI/4)), guarding battlers act first.
type DefaultTurnManager struct{}

func (DefaultTurnManager) MakeActionOrder(actors, enemies []Battler, rng *rand.Rand) []Battler {
	var all []Battler
	for _, b := range actors {
		if b.Exists() {
			all = append(all, b)
		}
	}
	for _, b := range enemies {
		if b.Exists() {
			all = append(all, b)
		}
	}

	type entry struct {
		battler Battler
		speed   int
	}
	entries := make([]entry, len(all))
	for i, b := range all {
		agi := b.Agi()
		randomRange := 5 + agi/4
		if randomRange < 1 {
			randomRange = 1
		}
		speed := agi + rng.Intn(randomRange)
		if a := b.CurrentAction(); a != nil && a.Type == ActionDefend {
			speed += 10000
		}
		entries[i] = entry{battler: b, speed: speed}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].speed > entries[j].speed
	})

	result := make([]Battler, len(entries))
	for i, e := range entries {
		result[i] = e.battler
	}
	return result
}
