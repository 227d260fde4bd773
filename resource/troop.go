package resource

// EventCommand is a single event command.
// Parameters are plain integers; String carries the command's text argument
// (background name, label text, ...).
type EventCommand struct {
	Code       int    `json:"code"`
	Indent     int    `json:"indent"`
	String     string `json:"string,omitempty"`
	Parameters []int  `json:"parameters"`
}

// Param returns parameter idx, or 0 when the command has fewer parameters.
// Older exports omit trailing zero parameters.
func (c *EventCommand) Param(idx int) int {
	if c == nil || idx < 0 || idx >= len(c.Parameters) {
		return 0
	}
	return c.Parameters[idx]
}

// TroopPageConditionFlags selects which trigger checks of a page are active.
type TroopPageConditionFlags struct {
	SwitchA      bool `json:"switchA"`
	SwitchB      bool `json:"switchB"`
	Variable     bool `json:"variable"`
	Turn         bool `json:"turn"`
	Fatigue      bool `json:"fatigue"`
	EnemyHP      bool `json:"enemyHp"`
	ActorHP      bool `json:"actorHp"`
	TurnEnemy    bool `json:"turnEnemy"`
	TurnActor    bool `json:"turnActor"`
	CommandActor bool `json:"commandActor"`
}

// Any reports whether at least one trigger is enabled.
func (f TroopPageConditionFlags) Any() bool {
	return f.SwitchA || f.SwitchB || f.Variable || f.Turn || f.Fatigue ||
		f.EnemyHP || f.ActorHP || f.TurnEnemy || f.TurnActor || f.CommandActor
}

// TroopPageCondition is the trigger of a troop page.
// Turn windows use A as the first turn and B as the repeat interval.
// HP bounds are percentages of max HP.
type TroopPageCondition struct {
	Flags          TroopPageConditionFlags `json:"flags"`
	SwitchAID      int                     `json:"switchAId"`
	SwitchBID      int                     `json:"switchBId"`
	VariableID     int                     `json:"variableId"`
	VariableValue  int                     `json:"variableValue"`
	TurnA          int                     `json:"turnA"`
	TurnB          int                     `json:"turnB"`
	FatigueMin     int                     `json:"fatigueMin"`
	FatigueMax     int                     `json:"fatigueMax"`
	EnemyID        int                     `json:"enemyId"` // troop member index, 0-based
	EnemyHPMin     int                     `json:"enemyHpMin"`
	EnemyHPMax     int                     `json:"enemyHpMax"`
	ActorID        int                     `json:"actorId"`
	ActorHPMin     int                     `json:"actorHpMin"`
	ActorHPMax     int                     `json:"actorHpMax"`
	TurnEnemyID    int                     `json:"turnEnemyId"` // troop member index, 0-based
	TurnEnemyA     int                     `json:"turnEnemyA"`
	TurnEnemyB     int                     `json:"turnEnemyB"`
	TurnActorID    int                     `json:"turnActorId"`
	TurnActorA     int                     `json:"turnActorA"`
	TurnActorB     int                     `json:"turnActorB"`
	CommandActorID int                     `json:"commandActorId"`
	CommandID      int                     `json:"commandId"`
}

// TroopPage is one scripted page of a troop. Pages are read-only once loaded.
type TroopPage struct {
	ID        int                `json:"id"`
	Condition TroopPageCondition `json:"condition"`
	List      []*EventCommand    `json:"list"`
}

// TroopMember places one enemy in the troop. Invisible members start hidden.
type TroopMember struct {
	EnemyID   int  `json:"enemyId"`
	X         int  `json:"x"`
	Y         int  `json:"y"`
	Invisible bool `json:"invisible"`
}

type Troop struct {
	ID      int           `json:"id"`
	Name    string        `json:"name"`
	Members []TroopMember `json:"members"`
	Pages   []*TroopPage  `json:"pages"`
}
