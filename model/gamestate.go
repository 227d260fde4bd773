package model

// GameSwitch stores a global switch (ON/OFF) read and written by troop events.
type GameSwitch struct {
	SwitchID int  `gorm:"primaryKey;autoIncrement:false" json:"switch_id"`
	Value    bool `json:"value"`
}

func (GameSwitch) TableName() string { return "game_switches" }

// GameVariable stores a global integer variable.
type GameVariable struct {
	VariableID int `gorm:"primaryKey;autoIncrement:false" json:"variable_id"`
	Value      int `json:"value"`
}

func (GameVariable) TableName() string { return "game_variables" }
