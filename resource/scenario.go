package resource

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes a headless battle: which troop fights which party, the
// starting switches/variables and optionally the command each actor picks per turn.
type Scenario struct {
	Name      string         `yaml:"name" json:"name"`
	TroopID   int            `yaml:"troop_id" json:"troop_id"`
	Party     []int          `yaml:"party" json:"party"`
	Condition string         `yaml:"condition" json:"condition"`
	Switches  map[int]bool   `yaml:"switches" json:"switches"`
	Variables map[int]int    `yaml:"variables" json:"variables"`
	MaxTurns  int            `yaml:"max_turns" json:"max_turns"`
	Seed      int64          `yaml:"seed" json:"seed"`
	Turns     []ScenarioTurn `yaml:"turns" json:"turns"`
}

// ScenarioTurn maps actor ID to the battle command ID chosen on that turn.
type ScenarioTurn struct {
	Commands map[int]int `yaml:"commands" json:"commands"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: read scenario %s: %w", path, err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("resource: parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the fields a battle cannot start without.
func (sc *Scenario) Validate() error {
	if sc.TroopID <= 0 {
		return fmt.Errorf("resource: scenario %q: troop_id must be positive", sc.Name)
	}
	if len(sc.Party) == 0 {
		return fmt.Errorf("resource: scenario %q: party is empty", sc.Name)
	}
	if len(sc.Party) > 4 {
		return fmt.Errorf("resource: scenario %q: party has %d members (max 4)", sc.Name, len(sc.Party))
	}
	switch sc.Condition {
	case "", "normal", "initiative", "back", "surround", "pincers":
	default:
		return fmt.Errorf("resource: scenario %q: unknown battle condition %q", sc.Name, sc.Condition)
	}
	return nil
}

// CommandFor returns the battle command actor actorID picks on turn (1-based),
// or 0 when the scenario does not say.
func (sc *Scenario) CommandFor(turn, actorID int) int {
	if turn <= 0 || turn > len(sc.Turns) {
		return 0
	}
	return sc.Turns[turn-1].Commands[actorID]
}
