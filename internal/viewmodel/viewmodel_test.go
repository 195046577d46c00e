package viewmodel

import (
	"testing"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/catalog"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/movement"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

func testCombat(phase int) *tracker.Combat {
	return &tracker.Combat{
		Name:          "Skirmish",
		JoinCode:      "AAAA1111",
		Status:        tracker.StatusActive,
		Round:         1,
		Phase:         phase,
		PhaseCount:    4,
		BudgetPerSlot: 1,
	}
}

func slotByKey(t *testing.T, v *PlanView, key string) SlotView {
	t.Helper()
	for _, s := range v.Slots {
		if s.Key == key {
			return s
		}
	}
	t.Fatalf("slot %s not rendered", key)
	return SlotView{}
}

func TestBuildLabelsCompletedChain(t *testing.T) {
	combat := testCombat(3)
	plan := tracker.NewCombatantPlan("u1", "Arryn", "sub1")
	plan.PlanActions["r1p1"] = "melee_attack"
	plan.PlanActions["r1p2"] = "melee_attack"
	combat.Plans = []tracker.CombatantPlan{*plan}

	v := Build(combat, plan, catalog.Defaults())
	if len(v.Slots) != 4 {
		t.Fatalf("rendered %d slots, want 4", len(v.Slots))
	}

	first := slotByKey(t, v, "r1p1")
	if first.Label != "+1 AP" || !first.InChain {
		t.Fatalf("r1p1 = %+v, want +1 AP in chain", first)
	}
	second := slotByKey(t, v, "r1p2")
	if second.Label != "+1 AP" || !second.Complete {
		t.Fatalf("r1p2 = %+v, want +1 AP complete", second)
	}
	third := slotByKey(t, v, "r1p3")
	if !third.Current || third.Label != "" {
		t.Fatalf("r1p3 = %+v, want current with blank label", third)
	}
	if v.TotalPenalty != "" {
		t.Fatalf("total penalty = %q, want blank", v.TotalPenalty)
	}
}

func TestBuildLabelsBrokenChain(t *testing.T) {
	combat := testCombat(4)
	plan := tracker.NewCombatantPlan("u1", "Arryn", "sub1")
	plan.PlanActions["r1p1"] = "spell_cast"
	combat.Plans = []tracker.CombatantPlan{*plan}

	v := Build(combat, plan, catalog.Defaults())

	first := slotByKey(t, v, "r1p1")
	if first.Label != "LOST" {
		t.Fatalf("r1p1 label = %q, want LOST", first.Label)
	}
	second := slotByKey(t, v, "r1p2")
	if second.Label != "BROKEN" {
		t.Fatalf("r1p2 label = %q, want BROKEN", second.Label)
	}
	if second.Penalty != "-75" {
		t.Fatalf("r1p2 penalty = %q, want -75", second.Penalty)
	}
	if v.TotalPenalty != "-75" {
		t.Fatalf("total penalty = %q, want -75", v.TotalPenalty)
	}
}

func TestBuildHalvedCapacityAndExpectation(t *testing.T) {
	combat := testCombat(2)
	plan := tracker.NewCombatantPlan("u1", "Arryn", "sub1")
	plan.Flags[tracker.FlagConcentration] = true
	plan.PlanActions["r1p1"] = "melee_attack"
	combat.Plans = []tracker.CombatantPlan{*plan}

	v := Build(combat, plan, catalog.Defaults())

	first := slotByKey(t, v, "r1p1")
	if first.Label != "+0.5 AP" || first.Capacity != 0.5 {
		t.Fatalf("r1p1 = %+v, want +0.5 AP at capacity 0.5", first)
	}
	second := slotByKey(t, v, "r1p2")
	if second.Expected != "melee_attack" {
		t.Fatalf("r1p2 expected = %q, want melee_attack", second.Expected)
	}
	if len(v.Flags) != 1 || v.Flags[0] != "concentration" {
		t.Fatalf("flags = %v, want [concentration]", v.Flags)
	}
}

func TestBuildSurfacesReminders(t *testing.T) {
	combat := testCombat(1)
	combat.Round = 3
	plan := tracker.NewCombatantPlan("u1", "Arryn", "sub1")
	plan.MentalFocusStartRound = 1
	plan.EnduranceAckRound = 1
	combat.Plans = []tracker.CombatantPlan{*plan}

	v := Build(combat, plan, catalog.Defaults())
	if len(v.Reminders) != 1 {
		t.Fatalf("reminders = %v, want one", v.Reminders)
	}
	if v.Reminders[0].Kind != tracker.ReminderMentalFocus || v.Reminders[0].Round != 3 {
		t.Fatalf("reminder = %+v, want mental_focus at round 3", v.Reminders[0])
	}
}

func TestMovementOverlayExplicit(t *testing.T) {
	got := MovementOverlay(movement.Verdict{
		Decision:   movement.DecisionClamp,
		Pace:       movement.PaceWalk,
		SlotCap:    16,
		SlotUsed:   16,
		RoundTotal: 16,
	})
	want := "16 / 16 ft\nTotal 16 ft\nWalk"
	if got != want {
		t.Fatalf("overlay = %q, want %q", got, want)
	}
}

func TestMovementOverlayIncidental(t *testing.T) {
	got := MovementOverlay(movement.Verdict{
		Decision:   movement.DecisionAccept,
		Incidental: true,
		Pace:       movement.PaceJog,
		CapPace:    movement.PaceRun,
		SlotCap:    12,
		SlotUsed:   5,
	})
	want := "5 / 12 ft\nJog (cap Run)"
	if got != want {
		t.Fatalf("overlay = %q, want %q", got, want)
	}
}

func TestMovementOverlaySkipIsBlank(t *testing.T) {
	if got := MovementOverlay(movement.Verdict{Decision: movement.DecisionSkip}); got != "" {
		t.Fatalf("overlay = %q, want blank", got)
	}
}
