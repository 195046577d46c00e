package replication

import (
	"encoding/json"
	"testing"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

func TestConfirmClearsOnlyUnsuperseded(t *testing.T) {
	s := NewPendingStore()
	path := JoinPath("u1", tracker.PathBonusCount)

	seq1 := s.Stage("AAAA1111", path, json.RawMessage(`1`))
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}

	// A newer write to the same path supersedes the first.
	seq2 := s.Stage("AAAA1111", path, json.RawMessage(`2`))
	s.Confirm("AAAA1111", path, seq1)
	if s.Len() != 1 {
		t.Fatalf("confirming a superseded write must not clear the newer one")
	}
	s.Confirm("AAAA1111", path, seq2)
	if s.Len() != 0 {
		t.Fatalf("len = %d after final confirm, want 0", s.Len())
	}
}

func TestOverlayPlanPatchesClone(t *testing.T) {
	s := NewPendingStore()
	plan := tracker.NewCombatantPlan("u1", "Karsa", "sub1")
	plan.PlanActions["r1p1"] = "move"

	s.Stage("AAAA1111", JoinPath("u1", "planActions.r1p2"), json.RawMessage(`"melee_attack"`))
	s.Stage("AAAA1111", JoinPath("u1", "flags.concentration"), json.RawMessage(`true`))
	// A write for a different combatant must not leak into this view.
	s.Stage("AAAA1111", JoinPath("u2", "bonusCount"), json.RawMessage(`3`))

	view := s.OverlayPlan("AAAA1111", plan)

	if view.PlanActions["r1p2"] != "melee_attack" {
		t.Fatalf("staged selection missing from view: %+v", view.PlanActions)
	}
	if !view.Flags[tracker.FlagConcentration] {
		t.Fatalf("staged flag missing from view")
	}
	if view.BonusCount != 0 {
		t.Fatalf("foreign combatant write leaked: bonus count %d", view.BonusCount)
	}
	// The authoritative record stays untouched.
	if plan.PlanActions["r1p2"] != "" || plan.Flags[tracker.FlagConcentration] {
		t.Fatalf("overlay mutated the authoritative plan: %+v", plan)
	}
}

func TestOverlayRetainsInapplicableWrite(t *testing.T) {
	s := NewPendingStore()
	plan := tracker.NewCombatantPlan("u1", "", "")

	s.Stage("AAAA1111", JoinPath("u1", "planActions.bogus"), json.RawMessage(`"move"`))

	view := s.OverlayPlan("AAAA1111", plan)
	if view == nil {
		t.Fatalf("overlay returned nil")
	}
	// The write cannot apply, but it stays staged until superseded.
	if s.Len() != 1 {
		t.Fatalf("inapplicable write dropped from store, len = %d", s.Len())
	}
}

func TestSplitPath(t *testing.T) {
	uuid, planPath, err := SplitPath("combatants.u1.planActions.r1p2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uuid != "u1" || planPath != "planActions.r1p2" {
		t.Fatalf("split = %q, %q", uuid, planPath)
	}
	for _, bad := range []string{"", "combatants.", "combatants.u1", "plans.u1.bonusCount"} {
		if _, _, err := SplitPath(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
