package resource

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJSON writes v as JSON to path/filename.
func writeJSON(t *testing.T, dir, filename string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), data, 0644))
}

// setupMinimalDataDir creates a temp directory with the minimal set of database
// files required for ResourceLoader.Load() to succeed.
func setupMinimalDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeJSON(t, dir, "System.json", map[string]interface{}{
		"gameTitle": "TestGame",
		"sounds": map[string]interface{}{
			"escape":    map[string]interface{}{"name": "Escape", "volume": 100, "tempo": 100},
			"enemyKill": map[string]interface{}{"name": "Kill1", "volume": 90, "tempo": 100},
		},
	})

	nullArray := []interface{}{nil}

	// First element is null, ID 0 unused.
	for _, name := range []string{
		"Actors.json", "Enemies.json", "States.json",
		"Animations.json", "Troops.json", "CommonEvents.json",
	} {
		writeJSON(t, dir, name, nullArray)
	}

	return dir
}

func TestNewLoader(t *testing.T) {
	rl := NewLoader("/data")
	assert.Equal(t, "/data", rl.DataPath)
	assert.Nil(t, rl.System)
}

func TestLoader_Load_Success(t *testing.T) {
	dir := setupMinimalDataDir(t)
	rl := NewLoader(dir)
	require.NoError(t, rl.Load())

	require.NotNil(t, rl.System)
	assert.Equal(t, "TestGame", rl.System.GameTitle)
	assert.Equal(t, "Escape", rl.System.Sounds.Escape.Name)
	assert.Equal(t, 90, rl.System.Sounds.EnemyKill.Volume)
	assert.Nil(t, rl.BattleCommands, "BattleCommands.json is optional")
}

func TestLoader_Load_PopulatesCollections(t *testing.T) {
	dir := setupMinimalDataDir(t)

	writeJSON(t, dir, "Actors.json", []*Actor{nil, {ID: 1, Name: "Alex", HP: 120, Agi: 30}})
	writeJSON(t, dir, "Enemies.json", []*Enemy{nil, {ID: 1, Name: "Slime", HP: 40}})
	writeJSON(t, dir, "BattleCommands.json", []*BattleCommand{nil, {ID: 1, Name: "Attack", Type: BattleCommandAttack}})
	writeJSON(t, dir, "Troops.json", []*Troop{nil, {
		ID:      1,
		Name:    "Slime x2",
		Members: []TroopMember{{EnemyID: 1}, {EnemyID: 1, Invisible: true}},
		Pages: []*TroopPage{{
			ID: 1,
			Condition: TroopPageCondition{
				Flags: TroopPageConditionFlags{Turn: true},
				TurnA: 2, TurnB: 3,
			},
			List: []*EventCommand{{Code: 13410}, {Code: 10}},
		}},
	}})

	rl := NewLoader(dir)
	require.NoError(t, rl.Load())

	require.NotNil(t, rl.ActorByID(1))
	assert.Equal(t, 120, rl.ActorByID(1).HP)
	assert.Equal(t, "Slime", rl.EnemyByID(1).Name)
	assert.Equal(t, "Attack", rl.BattleCommandByID(1).Name)

	troop := rl.TroopByID(1)
	require.NotNil(t, troop)
	require.Len(t, troop.Members, 2)
	assert.True(t, troop.Members[1].Invisible)
	require.Len(t, troop.Pages, 1)
	assert.True(t, troop.Pages[0].Condition.Flags.Turn)
	assert.Equal(t, 3, troop.Pages[0].Condition.TurnB)
	assert.Equal(t, 13410, troop.Pages[0].List[0].Code)
}

func TestLoader_Load_MissingSystemJSON(t *testing.T) {
	dir := setupMinimalDataDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "System.json")))

	err := NewLoader(dir).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_Load_InvalidTroopsJSON(t *testing.T) {
	dir := setupMinimalDataDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Troops.json"), []byte("{not json"), 0644))

	err := NewLoader(dir).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Troops.json")
}

func TestLoader_ByID_OutOfRange(t *testing.T) {
	rl := NewLoader("")
	rl.Troops = []*Troop{nil, {ID: 1}}

	assert.Nil(t, rl.TroopByID(0))
	assert.Nil(t, rl.TroopByID(-1))
	assert.Nil(t, rl.TroopByID(2))
	assert.NotNil(t, rl.TroopByID(1))
	assert.Nil(t, rl.CommonEventByID(1))
}

func TestEventCommand_Param(t *testing.T) {
	cmd := &EventCommand{Code: 13110, Parameters: []int{2, 1, 0}}
	assert.Equal(t, 2, cmd.Param(0))
	assert.Equal(t, 1, cmd.Param(1))
	assert.Equal(t, 0, cmd.Param(5), "missing parameters read as zero")
	assert.Equal(t, 0, cmd.Param(-1))

	var nilCmd *EventCommand
	assert.Equal(t, 0, nilCmd.Param(0))
}

func TestConditionFlags_Any(t *testing.T) {
	assert.False(t, TroopPageConditionFlags{}.Any())
	assert.True(t, TroopPageConditionFlags{CommandActor: true}.Any())
	assert.True(t, TroopPageConditionFlags{Fatigue: true}.Any())
}
