package battle

import (
	"math/rand"
	"testing"
)

func TestActionFromCommand(t *testing.T) {
	res := makeTestRes()
	cases := []struct {
		cmd  int
		want int
	}{
		{1, ActionAttack},
		{2, ActionDefend},
		{3, ActionEscape},
		{4, ActionNone},
		{99, ActionAttack},
	}
	for _, tc := range cases {
		a := ActionFromCommand(res, tc.cmd)
		if a.Type != tc.want {
			t.Errorf("command %d: type = %d, want %d", tc.cmd, a.Type, tc.want)
		}
		if a.CommandID != tc.cmd || a.TargetIndex != -1 {
			t.Errorf("command %d: got %+v", tc.cmd, a)
		}
	}
	if ActionFromCommand(nil, 2).Type != ActionAttack {
		t.Error("no database means plain attacks")
	}
}

func TestDamageFormula(t *testing.T) {
	res := makeTestRes()
	hero := makeTestActor(res)  // atk 30
	slime := makeTestEnemy(res) // def 10

	ap := &ActionProcessor{}
	if got := ap.Damage(hero, slime); got != 100 {
		t.Errorf("damage = %d, want 100", got)
	}
	slime.SetGuarding(true)
	if got := ap.Damage(hero, slime); got != 50 {
		t.Errorf("guarded damage = %d, want 50", got)
	}

	// weak attacker never heals
	knight := NewActorBattler(res.Actors[3], res)
	bat := NewEnemyBattler(res.Enemies[2], 0, false, res)
	if got := ap.Damage(bat, knight); got != 0 {
		t.Errorf("damage = %d, want 0", got)
	}
}

func TestDamageVariance(t *testing.T) {
	res := makeTestRes()
	ap := &ActionProcessor{RNG: rand.New(rand.NewSource(9))}
	hero := makeTestActor(res)
	slime := makeTestEnemy(res)
	for i := 0; i < 50; i++ {
		d := ap.Damage(hero, slime)
		if d < 90 || d > 110 {
			t.Fatalf("damage %d outside ±10%% of 100", d)
		}
	}
}

func TestProcessActionAttack(t *testing.T) {
	res := makeTestRes()
	ap := &ActionProcessor{RNG: rand.New(rand.NewSource(1))}
	hero := makeTestActor(res)
	ep := NewEnemyPartyOf(
		NewEnemyBattler(res.Enemies[1], 0, false, res),
		NewEnemyBattler(res.Enemies[2], 0, false, res),
	)
	opponents := []Battler{ep.Enemy(0), ep.Enemy(1)}

	out := ap.ProcessAction(hero, &Action{Type: ActionAttack, TargetIndex: 1}, opponents)
	if len(out) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(out))
	}
	if out[0].TargetIndex != 1 || out[0].TargetIsActor {
		t.Errorf("target = %+v, want enemy 1", out[0])
	}
	if !out[0].Killed || !ep.Enemy(1).IsDead() {
		t.Error("bat should die to one hit")
	}

	// dead target → falls back to a living one
	out = ap.ProcessAction(hero, &Action{Type: ActionAttack, TargetIndex: 1}, opponents)
	if len(out) != 1 || out[0].TargetIndex != 0 {
		t.Errorf("fallback target = %+v, want enemy 0", out)
	}
}

func TestProcessActionDefendAndNone(t *testing.T) {
	res := makeTestRes()
	ap := &ActionProcessor{}
	hero := makeTestActor(res)
	if out := ap.ProcessAction(hero, &Action{Type: ActionDefend}, nil); out != nil {
		t.Errorf("defend outcomes = %v", out)
	}
	if !hero.IsGuarding() {
		t.Error("defend should set guarding")
	}
	if out := ap.ProcessAction(hero, &Action{Type: ActionNone}, nil); out != nil {
		t.Errorf("none outcomes = %v", out)
	}
	if out := ap.ProcessAction(hero, nil, nil); out != nil {
		t.Errorf("nil action outcomes = %v", out)
	}
}

func TestRepeatsCombo(t *testing.T) {
	res := makeTestRes()
	hero := makeTestActor(res)
	attack := &Action{Type: ActionAttack, CommandID: 1}

	if Repeats(hero, attack) != 1 {
		t.Error("no combo → 1")
	}
	hero.SetBattleCombo(1, 3)
	if Repeats(hero, attack) != 3 {
		t.Error("combo on attack → 3")
	}
	if Repeats(hero, &Action{Type: ActionAttack, CommandID: 4}) != 1 {
		t.Error("combo only applies to its command")
	}
	if Repeats(makeTestEnemy(res), attack) != 1 {
		t.Error("enemies never combo")
	}
}
