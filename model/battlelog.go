package model

import (
	"time"

	"gorm.io/datatypes"
)

// BattleLog records one finished simulated battle.
type BattleLog struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	TraceID    string         `gorm:"index:idx_battle_trace;size:36" json:"trace_id"`
	TroopID    int            `gorm:"index:idx_battle_troop;not null" json:"troop_id"`
	TroopName  string         `gorm:"size:64" json:"troop_name"`
	Scenario   string         `gorm:"size:64" json:"scenario"`
	Engine     string         `gorm:"size:8" json:"engine"`
	Party      datatypes.JSON `json:"party"`
	Result     int            `json:"result"`
	ResultName string         `gorm:"size:16" json:"result_name"`
	Turns      int            `json:"turns"`
	Exp        int            `json:"exp"`
	Gold       int            `json:"gold"`
	Events     datatypes.JSON `json:"events"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_battle_created;autoCreateTime:milli" json:"created_at"`
}
