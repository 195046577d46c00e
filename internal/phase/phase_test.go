package phase

import (
	"testing"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

func TestNowByPhaseCount(t *testing.T) {
	cases := []struct {
		round, phase, count int
		wantSlot            int
	}{
		{1, 1, 1, 1},
		{2, 1, 2, 1},
		{2, 2, 2, 3},
		{3, 1, 4, 1},
		{3, 3, 4, 3},
		{3, 4, 4, 4},
	}
	for _, c := range cases {
		got := Now(c.round, c.phase, c.count)
		want := tracker.SlotKey{Round: c.round, Slot: c.wantSlot, Kind: tracker.SlotMain}
		if got != want {
			t.Fatalf("Now(%d,%d,%d) = %v, want %v", c.round, c.phase, c.count, got, want)
		}
	}
}

func TestSlotCapacityConcentrationHalves(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	key := tracker.SlotKey{Round: 1, Slot: 2, Kind: tracker.SlotMain}

	if got := SlotCapacity(p, 1, key); got != 1 {
		t.Fatalf("base capacity = %v, want 1", got)
	}
	p.Flags[tracker.FlagConcentration] = true
	if got := SlotCapacity(p, 1, key); got != 0.5 {
		t.Fatalf("concentrating capacity = %v, want 0.5", got)
	}
	// A second flag does not halve again.
	p.Flags[tracker.FlagPartialDodge] = true
	if got := SlotCapacity(p, 1, key); got != 0.5 {
		t.Fatalf("double-flag capacity = %v, want 0.5", got)
	}
}

func TestSlotCapacityHoldActionCarveOut(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.Flags[tracker.FlagHoldAction] = true
	p.HoldAction = &tracker.HoldActionMeta{PendingKey: "r1p2", Label: "Held strike"}

	before := tracker.SlotKey{Round: 1, Slot: 1, Kind: tracker.SlotMain}
	at := tracker.SlotKey{Round: 1, Slot: 2, Kind: tracker.SlotMain}
	after := tracker.SlotKey{Round: 1, Slot: 3, Kind: tracker.SlotMain}

	if got := SlotCapacity(p, 1, before); got != 1 {
		t.Fatalf("capacity before pending key = %v, want 1", got)
	}
	if got := SlotCapacity(p, 1, at); got != 1 {
		t.Fatalf("capacity at pending key = %v, want 1", got)
	}
	if got := SlotCapacity(p, 1, after); got != 0.5 {
		t.Fatalf("capacity after pending key = %v, want 0.5", got)
	}
}

func TestLookbackRounds(t *testing.T) {
	// One round of halved slots covers 2 AP at budget 1.
	if got := LookbackRounds(2, 1); got != 1 {
		t.Fatalf("LookbackRounds(2,1) = %d, want 1", got)
	}
	// 4 AP at the halved rate needs two rounds.
	if got := LookbackRounds(4.5, 1); got != 3 {
		t.Fatalf("LookbackRounds(4.5,1) = %d, want 3", got)
	}
	if got := LookbackRounds(0, 1); got != 1 {
		t.Fatalf("degenerate max cost should still give 1, got %d", got)
	}
}

func TestWindowBonusSlots(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.BonusCount = 1

	window := Window(p, 1, 1)
	// 4 mains + 1 bonus on the last slot.
	if len(window) != 5 {
		t.Fatalf("window length = %d, want 5", len(window))
	}
	last := window[len(window)-1]
	if last.Slot != 4 || last.Kind != tracker.SlotBonus {
		t.Fatalf("last key = %v, want r1p4b", last)
	}
}

func TestWindowKeepsRecordedBonusAfterCountDrop(t *testing.T) {
	p := tracker.NewCombatantPlan("u1", "", "")
	p.PlanActions["r1p4b"] = "melee_attack"
	p.BonusCount = 0

	window := Window(p, 1, 1)
	found := false
	for _, k := range window {
		if k.String() == "r1p4b" {
			found = true
		}
	}
	if !found {
		t.Fatalf("recorded bonus selection dropped from window: %v", window)
	}
}
