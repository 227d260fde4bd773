package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ---- RPG Maker 2000/2003 database structures (JSON export) ----

// Sound is a sound effect reference from the database.
type Sound struct {
	Name    string `json:"name"`
	Volume  int    `json:"volume"`
	Tempo   int    `json:"tempo"`
	Balance int    `json:"balance"`
}

// SystemSounds holds the system sound effects used during battle.
type SystemSounds struct {
	Cursor      Sound `json:"cursor"`
	Decision    Sound `json:"decision"`
	Cancel      Sound `json:"cancel"`
	Buzzer      Sound `json:"buzzer"`
	BeginBattle Sound `json:"beginBattle"`
	Escape      Sound `json:"escape"`
	EnemyAttack Sound `json:"enemyAttack"`
	EnemyDamage Sound `json:"enemyDamage"`
	ActorDamage Sound `json:"actorDamage"`
	Dodge       Sound `json:"dodge"`
	EnemyKill   Sound `json:"enemyKill"`
	ItemUse     Sound `json:"itemUse"`
}

type SystemData struct {
	GameTitle string       `json:"gameTitle"`
	Sounds    SystemSounds `json:"sounds"`
	// BattleBackground is the default background when a troop does not set one.
	BattleBackground string `json:"battleBackground"`
}

// Actor params follow the 2k3 order: hp, sp, atk, def, spi, agi.
type Actor struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	InitialLevel int    `json:"initialLevel"`
	HP           int    `json:"mhp"`
	SP           int    `json:"msp"`
	Atk          int    `json:"atk"`
	Def          int    `json:"def"`
	Spi          int    `json:"spi"`
	Agi          int    `json:"agi"`
}

type Enemy struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	HP   int    `json:"mhp"`
	SP   int    `json:"msp"`
	Atk  int    `json:"atk"`
	Def  int    `json:"def"`
	Spi  int    `json:"spi"`
	Agi  int    `json:"agi"`
	Exp  int    `json:"exp"`
	Gold int    `json:"gold"`
}

// State restrictions.
const (
	RestrictionNormal      = 0
	RestrictionDoNothing   = 1
	RestrictionAttackEnemy = 2
	RestrictionAttackAlly  = 3
)

type State struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Restriction int    `json:"restriction"`
}

// Animation only carries what the battle needs: its length in frames.
type Animation struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Frames int    `json:"frames"`
}

// Battle command types (2k3 battle command database).
const (
	BattleCommandAttack = iota
	BattleCommandSkill
	BattleCommandSubskill
	BattleCommandDefense
	BattleCommandItem
	BattleCommandEscape
	BattleCommandSpecial
)

// BattleCommand is an entry of the 2k3 battle command list. Actors remember the
// ID of the last one they executed.
type BattleCommand struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

type CommonEvent struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Trigger  int             `json:"trigger"`
	SwitchID int             `json:"switchId"`
	List     []*EventCommand `json:"list"`
}

// ---- ResourceLoader ----

// ResourceLoader reads and holds the database files a battle needs.
// Slices are indexed by database ID; index 0 is unused (nil).
type ResourceLoader struct {
	DataPath       string
	System         *SystemData
	Actors         []*Actor
	Enemies        []*Enemy
	States         []*State
	Animations     []*Animation
	BattleCommands []*BattleCommand
	Troops         []*Troop
	CommonEvents   []*CommonEvent
}

// NewLoader creates a ResourceLoader for the given data directory.
func NewLoader(dataPath string) *ResourceLoader {
	return &ResourceLoader{DataPath: dataPath}
}

// Load reads all database files.
func (rl *ResourceLoader) Load() error {
	loaders := []func() error{
		rl.loadSystem,
		rl.loadActors,
		rl.loadEnemies,
		rl.loadStates,
		rl.loadAnimations,
		rl.loadBattleCommands,
		rl.loadTroops,
		rl.loadCommonEvents,
	}
	for _, fn := range loaders {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (rl *ResourceLoader) path(file string) string {
	return filepath.Join(rl.DataPath, file)
}

func loadJSONArray[T any](path string) ([]*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", path, err)
	}
	var arr []*T
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return arr, nil
}

func loadJSONObject[T any](path string, out *T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return nil
}

func (rl *ResourceLoader) loadSystem() error {
	rl.System = &SystemData{}
	return loadJSONObject(rl.path("System.json"), rl.System)
}

func (rl *ResourceLoader) loadActors() error {
	var err error
	rl.Actors, err = loadJSONArray[Actor](rl.path("Actors.json"))
	return err
}

func (rl *ResourceLoader) loadEnemies() error {
	var err error
	rl.Enemies, err = loadJSONArray[Enemy](rl.path("Enemies.json"))
	return err
}

func (rl *ResourceLoader) loadStates() error {
	var err error
	rl.States, err = loadJSONArray[State](rl.path("States.json"))
	return err
}

func (rl *ResourceLoader) loadAnimations() error {
	var err error
	rl.Animations, err = loadJSONArray[Animation](rl.path("Animations.json"))
	return err
}

// BattleCommands.json only exists in 2k3 exports.
func (rl *ResourceLoader) loadBattleCommands() error {
	var err error
	rl.BattleCommands, err = loadJSONArray[BattleCommand](rl.path("BattleCommands.json"))
	if errors.Is(err, os.ErrNotExist) {
		rl.BattleCommands = nil
		return nil
	}
	return err
}

func (rl *ResourceLoader) loadTroops() error {
	var err error
	rl.Troops, err = loadJSONArray[Troop](rl.path("Troops.json"))
	return err
}

func (rl *ResourceLoader) loadCommonEvents() error {
	var err error
	rl.CommonEvents, err = loadJSONArray[CommonEvent](rl.path("CommonEvents.json"))
	return err
}

// ---- lookups ----

func byID[T any](list []*T, id int) *T {
	if id <= 0 || id >= len(list) {
		return nil
	}
	return list[id]
}

// ActorByID returns the actor with the given ID or nil.
func (rl *ResourceLoader) ActorByID(id int) *Actor { return byID(rl.Actors, id) }

// EnemyByID returns the enemy with the given ID or nil.
func (rl *ResourceLoader) EnemyByID(id int) *Enemy { return byID(rl.Enemies, id) }

// StateByID returns the state with the given ID or nil.
func (rl *ResourceLoader) StateByID(id int) *State { return byID(rl.States, id) }

// AnimationByID returns the animation with the given ID or nil.
func (rl *ResourceLoader) AnimationByID(id int) *Animation { return byID(rl.Animations, id) }

// TroopByID returns the troop with the given ID or nil.
func (rl *ResourceLoader) TroopByID(id int) *Troop { return byID(rl.Troops, id) }

// CommonEventByID returns the common event with the given ID or nil.
func (rl *ResourceLoader) CommonEventByID(id int) *CommonEvent { return byID(rl.CommonEvents, id) }

// BattleCommandByID returns the battle command with the given ID or nil.
func (rl *ResourceLoader) BattleCommandByID(id int) *BattleCommand {
	return byID(rl.BattleCommands, id)
}
