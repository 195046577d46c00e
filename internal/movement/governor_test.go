package movement

import (
	"math"
	"testing"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

const moveKey = "move"

func movingPlan(bmr float64) *tracker.CombatantPlan {
	p := tracker.NewCombatantPlan("tok1", "", "")
	p.Movement = tracker.MovementStats{BMRPerSlot: bmr, CarriedWeight: 10, BodyWeight: 100}
	return p
}

func request(to Point, window string, slots []int) Request {
	return Request{
		TokenID:       "tok1",
		From:          Point{},
		To:            to,
		WindowID:      window,
		Round:         1,
		GroupSlots:    slots,
		MoveActionKey: moveKey,
		Enforcing:     true,
	}
}

func TestExplicitMoveClampsToSlotCap(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey

	v := g.Govern(p, request(Point{X: 20}, "r1p1", []int{1}))

	if v.Decision != DecisionClamp {
		t.Fatalf("decision = %v, want clamp", v.Decision)
	}
	if math.Abs(v.Moved-16) > 1e-9 {
		t.Fatalf("moved = %v, want 16", v.Moved)
	}
	if math.Abs(v.To.X-16) > 1e-9 || math.Abs(v.To.Y) > 1e-9 {
		t.Fatalf("destination = %+v, want (16,0)", v.To)
	}
	// 16 ft in a round with BMR 16 is a full Walk.
	if v.Pace != PaceWalk {
		t.Fatalf("pace = %v, want Walk", v.Pace)
	}
	if v.SlotCap != 16 || math.Abs(v.SlotUsed-16) > 1e-9 {
		t.Fatalf("slot cap/used = %v/%v, want 16/16", v.SlotCap, v.SlotUsed)
	}
}

func TestExplicitMoveAcceptsWithinCap(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey

	v := g.Govern(p, request(Point{X: 6, Y: 8}, "r1p1", []int{1}))

	if v.Decision != DecisionAccept {
		t.Fatalf("decision = %v, want accept: %+v", v.Decision, v)
	}
	if math.Abs(v.Moved-10) > 1e-9 {
		t.Fatalf("moved = %v, want 10", v.Moved)
	}
}

func TestBoostAfterFullPreviousGroup(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey
	p.PlanActions["r1p2"] = moveKey

	// Use 8 ft in slot 1, at least half the per-slot cap.
	v := g.Govern(p, request(Point{X: 8}, "r1p1", []int{1}))
	if v.Decision != DecisionAccept {
		t.Fatalf("setup move rejected: %+v", v)
	}

	// Advancing to slot 2 snapshots 8 ft of prior-group distance; at 10%
	// load with no flags the slot cap becomes 16 * 1.25 = 20.
	v = g.Govern(p, request(Point{X: 25}, "r1p2", []int{2}))
	if v.Decision != DecisionClamp {
		t.Fatalf("decision = %v, want clamp", v.Decision)
	}
	if math.Abs(v.Moved-20) > 1e-9 {
		t.Fatalf("boosted move = %v, want 20", v.Moved)
	}
}

func TestNoBoostUnderHalfPreviousGroup(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey
	p.PlanActions["r1p2"] = moveKey

	v := g.Govern(p, request(Point{X: 5}, "r1p1", []int{1}))
	if v.Decision != DecisionAccept {
		t.Fatalf("setup move rejected: %+v", v)
	}

	v = g.Govern(p, request(Point{X: 25}, "r1p2", []int{2}))
	if math.Abs(v.Moved-16) > 1e-9 {
		t.Fatalf("unboosted move = %v, want 16", v.Moved)
	}
}

func TestNoBoostAfterSkippedGroup(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey
	p.PlanActions["r1p3"] = moveKey

	// Full slot-cap move in slot 1, then nothing at all for slot 2.
	v := g.Govern(p, request(Point{X: 16}, "r1p1", []int{1}))
	if v.Decision != DecisionAccept {
		t.Fatalf("setup move rejected: %+v", v)
	}

	// The snapshot still names r1p1, which is not adjacent to r1p3; the
	// idle group broke the streak, so the plain cap of 16 governs.
	v = g.Govern(p, request(Point{X: 20}, "r1p3", []int{3}))
	if v.Decision != DecisionClamp {
		t.Fatalf("decision = %v, want clamp: %+v", v.Decision, v)
	}
	if math.Abs(v.Moved-16) > 1e-9 {
		t.Fatalf("moved = %v, want 16 (no boost after an idle group)", v.Moved)
	}
}

func TestBoostCarriesAcrossRoundBoundary(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p4"] = moveKey
	p.PlanActions["r2p1"] = moveKey
	p.InstantAction = "parry" // no dash, keep slot 4 at the plain cap

	v := g.Govern(p, request(Point{X: 8}, "r1p4", []int{4}))
	if v.Decision != DecisionAccept {
		t.Fatalf("setup move rejected: %+v", v)
	}

	// r2p1 immediately follows r1p4, so the half-cap streak holds across
	// the round boundary and the new round's first slot is boosted to 20.
	req := request(Point{X: 25}, "r2p1", []int{1})
	req.Round = 2
	v = g.Govern(p, req)
	if math.Abs(v.Moved-20) > 1e-9 {
		t.Fatalf("boosted move = %v, want 20: %+v", v.Moved, v)
	}
}

func TestConcentrationHalvesSlotCap(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey
	p.Flags[tracker.FlagConcentration] = true

	v := g.Govern(p, request(Point{X: 20}, "r1p1", []int{1}))
	if math.Abs(v.Moved-8) > 1e-9 {
		t.Fatalf("moved = %v, want 8", v.Moved)
	}
}

func TestDashOnFinalSlot(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p4"] = moveKey

	v := g.Govern(p, request(Point{X: 40}, "r1p4", []int{4}))

	if v.CapPace != PaceDash {
		t.Fatalf("cap pace = %v, want Dash", v.CapPace)
	}
	// Dash grants 2×BMR on the final slot absent an explicit table row.
	if math.Abs(v.Moved-32) > 1e-9 {
		t.Fatalf("dash move = %v, want 32", v.Moved)
	}
}

func TestDashNeedsUnusedInstantAction(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p4"] = moveKey
	p.InstantAction = "parry"

	v := g.Govern(p, request(Point{X: 40}, "r1p4", []int{4}))
	if v.CapPace == PaceDash {
		t.Fatalf("dash must require an unused instantaneous action")
	}
	if math.Abs(v.Moved-16) > 1e-9 {
		t.Fatalf("moved = %v, want 16", v.Moved)
	}
}

func TestRoundCapAppliesBeforeSlotAllocation(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(10)
	p.Movement.MaxPaceLabel = string(PaceWalk)
	p.PlanActions["r1p1"] = moveKey
	p.PlanActions["r1p2"] = moveKey

	// Walk cap: 10 ft per round. Spend 6 in slot 1.
	v := g.Govern(p, request(Point{X: 6}, "r1p1", []int{1}))
	if v.Decision != DecisionAccept {
		t.Fatalf("setup move rejected: %+v", v)
	}

	// Slot 2 has 10 ft of slot capacity left, but only 4 ft of round
	// allowance. The round cap must shrink the grant first.
	v = g.Govern(p, request(Point{X: 8}, "r1p2", []int{2}))
	if v.Decision != DecisionClamp {
		t.Fatalf("decision = %v, want clamp: %+v", v.Decision, v)
	}
	if math.Abs(v.Moved-4) > 1e-9 {
		t.Fatalf("moved = %v, want 4 (round cap before allocation)", v.Moved)
	}
}

func TestIncidentalTierClassification(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = "melee_attack"

	v := g.Govern(p, request(Point{X: 5}, "r1p1", []int{1}))

	if !v.Incidental {
		t.Fatalf("non-move slot group should govern incidentally")
	}
	if v.Decision != DecisionAccept {
		t.Fatalf("decision = %v, want accept: %+v", v.Decision, v)
	}
	// 5 ft of 16 BMR crosses the quarter threshold into the half band.
	if v.Pace != PaceJog {
		t.Fatalf("pace = %v, want Jog", v.Pace)
	}
	if v.Penalty != -50 {
		t.Fatalf("penalty = %v, want -50", v.Penalty)
	}
}

func TestIncidentalCapRejectsWhenExhausted(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = "melee_attack"

	// Run tier cap: 3/4 × 16 = 12 ft.
	v := g.Govern(p, request(Point{X: 20}, "r1p1", []int{1}))
	if v.Decision != DecisionClamp || math.Abs(v.Moved-12) > 1e-9 {
		t.Fatalf("first incidental = %+v, want clamp to 12", v)
	}
	v = g.Govern(p, request(Point{X: 2}, "r1p1", []int{1}))
	if v.Decision != DecisionReject {
		t.Fatalf("exhausted incidental should reject, got %+v", v)
	}
	if v.To != (Point{}) {
		t.Fatalf("reject must hold position, got %+v", v.To)
	}
}

func TestPreviewDoesNotCommit(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey

	req := request(Point{X: 20}, "r1p1", []int{1})
	req.Preview = true
	v := g.Govern(p, req)

	// The preview verdict shows exactly what a commit would produce.
	if v.Decision != DecisionClamp || math.Abs(v.Moved-16) > 1e-9 {
		t.Fatalf("preview verdict = %+v, want clamp to 16", v)
	}
	if math.Abs(v.SlotUsed-16) > 1e-9 {
		t.Fatalf("preview slot used = %v, want 16", v.SlotUsed)
	}
	pv := g.Previews.Get("tok1")
	if pv == nil || math.Abs(pv.Distance-16) > 1e-9 {
		t.Fatalf("preview not retained: %+v", pv)
	}
	track := g.Tracks.Get("tok1")
	if track.GroupUsed() != 0 || track.RoundUsed != 0 {
		t.Fatalf("preview must not touch the ledger: used %v round %v", track.GroupUsed(), track.RoundUsed)
	}
}

func TestCommitDiscardsPreview(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey

	req := request(Point{X: 20}, "r1p1", []int{1})
	req.Preview = true
	g.Govern(p, req)

	v := g.Govern(p, request(Point{X: 10}, "r1p1", []int{1}))
	if v.Decision != DecisionAccept || math.Abs(v.Moved-10) > 1e-9 {
		t.Fatalf("commit after preview = %+v, want accept 10", v)
	}
	if g.Previews.Get("tok1") != nil {
		t.Fatalf("commit must discard the preview")
	}
	if track := g.Tracks.Get("tok1"); math.Abs(track.RoundUsed-10) > 1e-9 {
		t.Fatalf("round used = %v, want 10", track.RoundUsed)
	}
}

func TestTrackRecordsTopLeftOrigin(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey

	req := request(Point{X: 12}, "r1p1", []int{1})
	req.From = Point{X: 2, Y: 2}
	req.FromTopLeft = Point{X: 1, Y: 1}
	g.Govern(p, req)

	track := g.Tracks.Get("tok1")
	if track.OriginCenter != (Point{X: 2, Y: 2}) {
		t.Fatalf("origin center = %+v", track.OriginCenter)
	}
	if track.OriginTopLeft != (Point{X: 1, Y: 1}) {
		t.Fatalf("origin top-left = %+v, want the request's corner", track.OriginTopLeft)
	}
}

func TestGovernFailsOpenOnMissingStats(t *testing.T) {
	g := NewGovernor()
	p := tracker.NewCombatantPlan("tok1", "", "")
	p.PlanActions["r1p1"] = moveKey

	v := g.Govern(p, request(Point{X: 500}, "r1p1", []int{1}))
	if v.Decision != DecisionSkip {
		t.Fatalf("missing stats should skip enforcement, got %+v", v)
	}
	if v.To != (Point{X: 500}) {
		t.Fatalf("skip must pass the destination through, got %+v", v.To)
	}
}

func TestGovernSkipsWhenNotEnforcing(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	req := request(Point{X: 100}, "r1p1", []int{1})
	req.Enforcing = false

	v := g.Govern(p, req)
	if v.Decision != DecisionSkip {
		t.Fatalf("non-enforcing observer must skip, got %+v", v)
	}
}

func TestTrackCarriesRoundTotalAcrossGroups(t *testing.T) {
	g := NewGovernor()
	p := movingPlan(16)
	p.PlanActions["r1p1"] = moveKey
	p.PlanActions["r1p2"] = moveKey

	g.Govern(p, request(Point{X: 10}, "r1p1", []int{1}))
	v := g.Govern(p, request(Point{X: 10}, "r1p2", []int{2}))
	if math.Abs(v.RoundTotal-20) > 1e-9 {
		t.Fatalf("round total = %v, want 20", v.RoundTotal)
	}

	track := g.Tracks.Get("tok1")
	if track.PrevGroupDistance != 10 {
		t.Fatalf("prev group distance = %v, want 10", track.PrevGroupDistance)
	}
}
