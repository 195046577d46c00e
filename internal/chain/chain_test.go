package chain

import (
	"reflect"
	"testing"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/phase"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

var testCatalog = map[string]tracker.ActionDefinition{
	"melee_attack": {Key: "melee_attack", Label: "Melee Attack", MinCost: 2, MaxCost: 2},
	"spell_cast":   {Key: "spell_cast", Label: "Cast Spell", MinCost: 2, MaxCost: 4},
	"parry":        {Key: "parry", Label: "Parry", MinCost: 1, MaxCost: 1},
}

func key(s string) tracker.SlotKey {
	k, err := tracker.ParseSlotKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func evaluate(plan *tracker.CombatantPlan, now tracker.SlotKey) *Result {
	return Evaluate(Input{
		Window:   phase.Window(plan, 1, now.Round),
		Plan:     plan,
		Capacity: func(tracker.SlotKey) float64 { return 1 },
		Catalog:  testCatalog,
		Now:      now,
	})
}

func TestFixedCostCompletesAcrossTwoSlots(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.PlanActions["r1p1"] = "melee_attack"
	p.PlanActions["r1p2"] = "melee_attack"

	res := evaluate(p, key("r2p1"))

	if got := res.Slots[key("r1p1")].Contribution; got != 1 {
		t.Fatalf("r1p1 contribution = %v, want 1", got)
	}
	if got := res.Slots[key("r1p2")].Contribution; got != 1 {
		t.Fatalf("r1p2 contribution = %v, want 1", got)
	}
	if !res.Slots[key("r1p2")].Complete {
		t.Fatalf("chain should complete at r1p2")
	}
	if !res.InChain[key("r1p1")] || !res.InChain[key("r1p2")] {
		t.Fatalf("both slots should be marked in-chain")
	}
	if res.Slots[key("r1p2")].Penalty != 0 {
		t.Fatalf("completed fixed-cost chain must carry no penalty")
	}
}

func TestRangeCostBreaksUnderMinimum(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.PlanActions["r1p1"] = "spell_cast"

	res := evaluate(p, key("r2p1"))

	if !res.Slots[key("r1p1")].Lost {
		t.Fatalf("contributing slot should be lost")
	}
	if !res.Slots[key("r1p2")].Broke {
		t.Fatalf("chain should break at r1p2")
	}
	// 1 AP paid against a 4 AP maximum: 3 AP shortfall.
	if got := res.Slots[key("r1p2")].Penalty; got != -75 {
		t.Fatalf("penalty = %v, want -75", got)
	}
}

func TestRangeCostMinimumMetEndsSilently(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.PlanActions["r1p1"] = "spell_cast"
	p.PlanActions["r1p2"] = "spell_cast"
	p.PlanActions["r1p3"] = "spell_cast"

	res := evaluate(p, key("r2p1"))

	for _, ks := range []string{"r1p1", "r1p2", "r1p3"} {
		if res.Slots[key(ks)].Lost || res.Slots[key(ks)].Broke {
			t.Fatalf("%s should not be lost or broken: %+v", ks, res.Slots[key(ks)])
		}
		if !res.InChain[key(ks)] {
			t.Fatalf("%s should be in-chain", ks)
		}
	}
	last := res.Slots[key("r1p3")]
	if !last.Complete {
		t.Fatalf("silent end should complete at the last contributor")
	}
	// 3 AP paid against a 4 AP maximum.
	if last.Penalty != -25 {
		t.Fatalf("shortfall penalty = %v, want -25", last.Penalty)
	}
	if res.Slots[key("r1p4")].Broke {
		t.Fatalf("the blank slot after a silent end must not break")
	}
}

func TestUnfinishedChainExpectsContinuationAtNow(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.PlanActions["r1p4"] = "spell_cast"
	now := key("r2p1")

	res := evaluate(p, now)

	if got := res.Expected[now]; got != "spell_cast" {
		t.Fatalf("expected continuation %q at now, got %q", "spell_cast", got)
	}
	if res.Invalid[now] {
		t.Fatalf("blank current slot should not be invalid")
	}
	// Breaks at or after the current position are not penalized.
	for k, r := range res.Slots {
		if r.Broke || r.Lost {
			t.Fatalf("slot %v penalized for an uncommitted break: %+v", k, r)
		}
	}

	p.PlanActions[now.String()] = "melee_attack"
	res = evaluate(p, now)
	if !res.Invalid[now] {
		t.Fatalf("conflicting selection at now should be invalid")
	}
}

func TestCompletionResetsChainImmediately(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	for _, ks := range []string{"r1p1", "r1p2", "r1p3", "r1p4"} {
		p.PlanActions[ks] = "melee_attack"
	}

	res := evaluate(p, key("r2p1"))

	if !res.Slots[key("r1p2")].Complete {
		t.Fatalf("first chain should complete at r1p2")
	}
	if !res.Slots[key("r1p4")].Complete {
		t.Fatalf("second chain should complete at r1p4")
	}
	if res.Slots[key("r1p3")].Complete {
		t.Fatalf("r1p3 starts the second chain; it must not complete there")
	}
}

func TestFinishEarlyOnCurrentGroup(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.PlanActions["r1p3"] = "spell_cast"
	p.PlanActions["r1p4"] = "spell_cast"
	p.FinishEarly["r1p4"] = true
	now := key("r1p4")

	res := evaluate(p, now)

	last := res.Slots[key("r1p4")]
	if !last.Complete {
		t.Fatalf("finish-early on the current slot should complete the chain")
	}
	// 2 AP paid against a 4 AP maximum.
	if last.Penalty != -50 {
		t.Fatalf("finish-early penalty = %v, want -50", last.Penalty)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.PlanActions["r1p1"] = "spell_cast"
	p.PlanActions["r1p2"] = "spell_cast"
	p.PlanActions["r1p4"] = "melee_attack"
	now := key("r2p1")

	first := evaluate(p, now)
	second := evaluate(p, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("evaluation is not idempotent:\n%+v\n%+v", first, second)
	}
}
