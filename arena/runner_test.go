package arena

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/battleevent/battlelog"
	"github.com/kasuganosora/battleevent/cache"
	"github.com/kasuganosora/battleevent/config"
	"github.com/kasuganosora/battleevent/game/battle"
	"github.com/kasuganosora/battleevent/game/interpreter"
	"github.com/kasuganosora/battleevent/game/state"
	"github.com/kasuganosora/battleevent/resource"
	"github.com/kasuganosora/battleevent/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testResources() *resource.ResourceLoader {
	setVar := &resource.EventCommand{Code: interpreter.CmdControlVars, Parameters: []int{0, 3, 0, 0, 0, 11}}
	return &resource.ResourceLoader{
		System: &resource.SystemData{BattleBackground: "Cave"},
		Actors: []*resource.Actor{nil, {ID: 1, Name: "Alex", HP: 100, SP: 30, Atk: 30, Def: 10, Spi: 10, Agi: 20}},
		Enemies: []*resource.Enemy{nil,
			{ID: 1, Name: "Bat", HP: 40, Atk: 12, Def: 2, Agi: 30, Exp: 4, Gold: 2},
		},
		States:         []*resource.State{nil, {ID: 1, Name: "Death", Restriction: resource.RestrictionDoNothing}},
		BattleCommands: []*resource.BattleCommand{nil, {ID: 1, Name: "Attack", Type: resource.BattleCommandAttack}},
		Troops: []*resource.Troop{nil, {
			ID:      1,
			Name:    "Bat",
			Members: []resource.TroopMember{{EnemyID: 1}},
			Pages: []*resource.TroopPage{{
				ID:        1,
				Condition: resource.TroopPageCondition{Flags: resource.TroopPageConditionFlags{Turn: true}},
				List:      []*resource.EventCommand{setVar},
			}},
		}},
	}
}

type fixture struct {
	runner *Runner
	gs     *state.GameState
	logs   *battlelog.Service
	cache  cache.Cache
	pubsub cache.PubSub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logs := battlelog.New(db, zap.NewNop())
	t.Cleanup(func() { logs.Stop(context.Background()) })
	gs := state.New(nil, 0, nil)
	r := New(Deps{
		Res:    testResources(),
		State:  gs,
		Battle: config.Default().Battle,
		Logs:   logs,
		Cache:  c,
		PubSub: ps,
	})
	return &fixture{runner: r, gs: gs, logs: logs, cache: c, pubsub: ps}
}

func scenario() resource.Scenario {
	return resource.Scenario{Name: "bat", TroopID: 1, Party: []int{1}, Seed: 4}
}

func TestPrepare_Invalid(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  Request
	}{
		{"bad battle id", Request{Scenario: scenario(), BattleID: "nope"}},
		{"unknown troop", Request{Scenario: resource.Scenario{TroopID: 5, Party: []int{1}}}},
		{"empty party", Request{Scenario: resource.Scenario{TroopID: 1}}},
		{"unknown actor", Request{Scenario: resource.Scenario{TroopID: 1, Party: []int{9}}}},
		{"bad condition", Request{Scenario: resource.Scenario{TroopID: 1, Party: []int{1}, Condition: "upside"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.runner.Prepare(tt.req)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestRun_RecordsAndCaches(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()
	extra := &battle.EventLog{}

	msgs, unsub, err := f.pubsub.Subscribe(context.Background(), battle.Channel(id))
	require.NoError(t, err)
	defer unsub()

	p, err := f.runner.Prepare(Request{Scenario: scenario(), BattleID: id, TraceID: "t-1", Sink: extra})
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)

	out := f.runner.Run(context.Background(), p)
	require.NoError(t, out.Err)
	assert.Equal(t, "win", out.Record.ResultName)
	assert.Equal(t, "Cave", out.Background)
	assert.Equal(t, "t-1", out.Record.TraceID)
	assert.Equal(t, len(out.Events), len(extra.Events()), "the extra sink sees every event")

	select {
	case m := <-msgs:
		assert.Contains(t, m.Payload, `"type":"battle_start"`)
	case <-time.After(time.Second):
		t.Fatal("nothing published")
	}

	data, err := f.runner.Lookup(context.Background(), id)
	require.NoError(t, err)
	var rec struct {
		ID     string `json:"id"`
		Result string `json:"result_name"`
	}
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "win", rec.Result)
}

func TestRun_RecordCarriesRewards(t *testing.T) {
	f := newFixture(t)
	p, err := f.runner.Prepare(Request{Scenario: scenario()})
	require.NoError(t, err)

	out := f.runner.Run(context.Background(), p)
	require.NoError(t, out.Err)
	require.Equal(t, battle.ResultWin, out.Record.Result)
	assert.Equal(t, 4, out.Record.Exp)
	assert.Equal(t, 2, out.Record.Gold)
	assert.Positive(t, out.Record.Turns)

	end := battle.EndOf(out.Events)
	require.NotNil(t, end)
	assert.Equal(t, end.Turns, out.Record.Turns)
}

func TestRun_PrivateStateUnlessPersist(t *testing.T) {
	f := newFixture(t)

	p, err := f.runner.Prepare(Request{Scenario: scenario()})
	require.NoError(t, err)
	f.runner.Run(context.Background(), p)
	assert.Zero(t, f.gs.GetVariable(3))

	p, err = f.runner.Prepare(Request{Scenario: scenario(), Persist: true})
	require.NoError(t, err)
	f.runner.Run(context.Background(), p)
	assert.Equal(t, 11, f.gs.GetVariable(3))
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := f.runner.Prepare(Request{Scenario: scenario()})
	require.NoError(t, err)
	out := f.runner.Run(ctx, p)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, battle.ResultAbort, out.Record.Result)
}

func TestLookup(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner.Lookup(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.runner.Lookup(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := f.runner.Prepare(Request{Scenario: scenario()})
	require.NoError(t, err)
	f.runner.Run(context.Background(), p)
	require.NoError(t, f.cache.Del(context.Background(), cacheKey(p.ID)))
	f.logs.Stop(context.Background())

	data, err := f.runner.Lookup(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"troop_name":"Bat"`)
}
