// Package movement computes, enforces and classifies per-slot and per-round
// token movement against an actor's pace table.
package movement

import (
	"math"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

// BoostLoadLimit is the load fraction at or under which the 1.25× per-slot
// boost and the dash pace are permitted.
const BoostLoadLimit = 0.15

// BoostFactor is the per-slot cap multiplier for boosted movement.
const BoostFactor = 1.25

// Decision is the outcome kind for one position-change request.
type Decision int

const (
	// DecisionAccept permits the full requested delta.
	DecisionAccept Decision = iota
	// DecisionClamp shortens the delta to the permitted distance.
	DecisionClamp
	// DecisionReject refuses the delta entirely; the position is unchanged.
	DecisionReject
	// DecisionSkip means enforcement did not apply (fail-open); nothing was
	// tracked or mutated.
	DecisionSkip
)

// Verdict reports the governor's ruling on one request.
type Verdict struct {
	Decision Decision
	// To is the permitted destination (equal to the request for accept,
	// shortened for clamp, the origin for reject).
	To Point
	// Moved is the distance actually consumed, in feet.
	Moved float64
	// Pace is the resulting classification; CapPace the ceiling it was
	// classified under.
	Pace    Pace
	CapPace Pace
	// SlotCap and SlotUsed describe the governing slot for overlay text.
	SlotCap  float64
	SlotUsed float64
	// RoundTotal is the actor's round total after this request.
	RoundTotal float64
	// Penalty is the incidental-tier game-rule penalty (0 in explicit mode
	// for all but nothing — explicit pace carries no flat penalty).
	Penalty float64
	// Incidental reports which mode governed the request.
	Incidental bool
	// Warning carries a user-facing notice for clamp/reject/skip.
	Warning string
}

// Request describes one proposed position change for the active token.
type Request struct {
	TokenID string
	From    Point
	// FromTopLeft is the token's top-left corner at the origin, recorded so
	// a move can be undone on the hosting grid. Zero value falls back to
	// From for center-anchored hosts.
	FromTopLeft Point
	To          Point
	// GridSize, when positive, snaps a clamped destination to the hosting
	// grid.
	GridSize float64
	// WindowID identifies the current slot-group; round and the group's
	// internal slots define where consumed distance is allocated.
	WindowID string
	Round    int
	// GroupSlots are the internal slot numbers of the active slot-group in
	// slot order.
	GroupSlots []int
	// MoveActionKey is the catalog key treated as the explicit move action.
	MoveActionKey string
	// Enforcing is false when this observer is not responsible for the
	// token; the governor then fails open without touching any numbers.
	Enforcing bool
	// Preview rules on the request without committing it: the verdict shows
	// what a commit would produce, the speculative allocation is retained in
	// the preview store, and the ledger stays untouched. The next committing
	// request for the token discards the preview.
	Preview bool
}

// Governor owns the per-combat movement stores and rules on requests.
type Governor struct {
	Tracks   *TrackStore
	Previews *PreviewStore
}

func NewGovernor() *Governor {
	return &Governor{Tracks: NewTrackStore(), Previews: NewPreviewStore()}
}

// Govern rules on one position-change request against the actor's plan and
// movement stats. The round cap is applied to the requested segment before
// per-slot allocation runs; this ordering is load-bearing near cap
// boundaries.
func (g *Governor) Govern(plan *tracker.CombatantPlan, req Request) Verdict {
	if !req.Enforcing {
		return Verdict{Decision: DecisionSkip, To: req.To}
	}
	stats := plan.Movement
	if !validStats(stats) {
		// Fail open: never block a turn over missing sheet numbers.
		return Verdict{Decision: DecisionSkip, To: req.To, Warning: "movement enforcement skipped: missing or invalid movement stats"}
	}

	topLeft := req.FromTopLeft
	if topLeft == (Point{}) {
		topLeft = req.From
	}
	track := g.Tracks.Advance(req.TokenID, req.WindowID, req.Round, req.From, topLeft)
	requested := distance(req.From, req.To)
	if requested <= distanceEpsilon {
		return Verdict{Decision: DecisionAccept, To: req.To}
	}

	if g.explicitMode(plan, req) {
		return g.governExplicit(plan, stats, req, track, requested)
	}
	return g.governIncidental(plan, stats, req, track, requested)
}

// explicitMode reports whether the active slot-group is planned as the
// movement action: at least one of its slots selects the move action and no
// slot selects a different action.
func (g *Governor) explicitMode(plan *tracker.CombatantPlan, req Request) bool {
	moves := 0
	for _, s := range req.GroupSlots {
		key := tracker.SlotKey{Round: req.Round, Slot: s, Kind: tracker.SlotMain}
		switch plan.ActionAt(key) {
		case req.MoveActionKey:
			moves++
		case "":
		default:
			return false
		}
	}
	return moves > 0
}

func (g *Governor) governExplicit(plan *tracker.CombatantPlan, stats tracker.MovementStats, req Request, track *Track, requested float64) Verdict {
	flags := plan.ActiveFlagCount()
	load := stats.LoadFraction()

	// Per-slot cap: BMR, halved by a single concentration flag, hard-capped
	// at Creep with two or more.
	slotCap := stats.BMRPerSlot
	if flags == 1 {
		slotCap = stats.BMRPerSlot / 2
	} else if flags >= 2 {
		slotCap = math.Min(slotCap, 0.5*stats.BMRPerSlot)
	}

	boosted := flags == 0 && load >= 0 && load <= BoostLoadLimit &&
		track.PrevWindowID != "" && track.PrevWindowID == previousWindowID(req) &&
		track.PrevGroupDistance >= slotCap/2-distanceEpsilon && track.PrevGroupDistance > 0
	if boosted {
		slotCap *= BoostFactor
	}

	dashOK := g.dashEligible(plan, stats, req, load)
	capPace := g.capPace(stats, dashOK)

	// Round cap first: shrink the requested segment before any per-slot
	// allocation happens.
	roundCap := stats.BMRPerSlot * RoundMultiplier(capPace)
	remainingRound := roundCap - track.RoundUsed
	if remainingRound <= distanceEpsilon {
		return g.reject(req, track, capPace, stats, "round movement allowance exhausted")
	}
	grant := math.Min(requested, remainingRound)

	// Slot-by-slot allocation in slot order against residual caps. Only
	// slots planned as the move action carry capacity.
	alloc := map[string]float64{}
	remaining := grant
	var lastSlotKey string
	var lastSlotCap float64
	for _, s := range req.GroupSlots {
		key := tracker.SlotKey{Round: req.Round, Slot: s, Kind: tracker.SlotMain}
		if plan.ActionAt(key) != req.MoveActionKey {
			continue
		}
		cap := slotCap
		if s == tracker.SlotsPerRound && dashOK {
			cap = g.dashFeet(stats)
		}
		residual := cap - track.UsedBySlot[key.String()]
		if residual <= distanceEpsilon {
			continue
		}
		take := math.Min(residual, remaining)
		alloc[key.String()] = take
		remaining -= take
		lastSlotKey = key.String()
		lastSlotCap = cap
		if remaining <= distanceEpsilon {
			break
		}
	}
	consumed := grant - remaining
	if consumed <= distanceEpsilon {
		return g.reject(req, track, capPace, stats, "no movement capacity remains this phase")
	}

	to, moved := g.clampDestination(req, requested, consumed)
	verdict := Verdict{
		Decision:   DecisionAccept,
		To:         to,
		Moved:      moved,
		CapPace:    capPace,
		SlotCap:    lastSlotCap,
		RoundTotal: track.RoundUsed + moved,
	}
	if moved < requested-distanceEpsilon {
		verdict.Decision = DecisionClamp
		verdict.Warning = "movement clamped to remaining allowance"
	}

	if req.Preview {
		g.Previews.Put(&Preview{TokenID: req.TokenID, Allocation: alloc, Distance: consumed})
		shadow := track.previewCopy()
		g.commit(shadow, alloc, moved, consumed, to)
		verdict.SlotUsed = shadow.UsedBySlot[lastSlotKey]
		verdict.Pace = classifyRound(shadow.RoundUsed, stats.BMRPerSlot, capPace)
		return verdict
	}

	g.commit(track, alloc, moved, consumed, to)
	g.Previews.Discard(req.TokenID)
	verdict.SlotUsed = track.UsedBySlot[lastSlotKey]
	verdict.Pace = classifyRound(track.RoundUsed, stats.BMRPerSlot, capPace)
	return verdict
}

func (g *Governor) governIncidental(plan *tracker.CombatantPlan, stats tracker.MovementStats, req Request, track *Track, requested float64) Verdict {
	flags := plan.ActiveFlagCount()
	effBMR := stats.BMRPerSlot
	if flags >= 1 {
		effBMR /= 2
	}

	// Incidental movement caps at Run, tightened by double concentration or
	// a load-derived pace limit.
	capTier := PaceRun
	if flags >= 2 {
		capTier = PaceCreep
	}
	if lp := g.loadPaceLimit(stats); paceIndex(lp) < paceIndex(capTier) {
		capTier = lp
	}

	incKey := "inc:" + req.WindowID
	cap := incidentalCap(effBMR, capTier)
	used := track.UsedBySlot[incKey]
	remaining := cap - used
	if remaining <= distanceEpsilon {
		v := g.reject(req, track, capTier, stats, "incidental movement allowance exhausted")
		v.Incidental = true
		return v
	}
	consumed := math.Min(requested, remaining)

	to, moved := g.clampDestination(req, requested, consumed)
	verdict := Verdict{
		Decision:   DecisionAccept,
		To:         to,
		Moved:      moved,
		CapPace:    capTier,
		SlotCap:    cap,
		Incidental: true,
		RoundTotal: track.RoundUsed + moved,
	}
	if moved < requested-distanceEpsilon {
		verdict.Decision = DecisionClamp
		verdict.Warning = "incidental movement clamped"
	}

	if req.Preview {
		g.Previews.Put(&Preview{TokenID: req.TokenID, Allocation: map[string]float64{incKey: moved}, Distance: moved})
		shadow := track.previewCopy()
		g.commit(shadow, map[string]float64{incKey: moved}, moved, moved, to)
		verdict.SlotUsed = shadow.UsedBySlot[incKey]
		verdict.Pace, verdict.Penalty = classifyIncidental(shadow.UsedBySlot[incKey], effBMR, capTier)
		return verdict
	}

	g.commit(track, map[string]float64{incKey: moved}, moved, moved, to)
	g.Previews.Discard(req.TokenID)
	verdict.SlotUsed = track.UsedBySlot[incKey]
	verdict.Pace, verdict.Penalty = classifyIncidental(track.UsedBySlot[incKey], effBMR, capTier)
	return verdict
}

// previousWindowID names the slot-group immediately preceding the request's
// active one. Groups are uniform in width, so the preceding group starts one
// group-width earlier, wrapping to the final group of the previous round.
func previousWindowID(req Request) string {
	sp := len(req.GroupSlots)
	if sp == 0 {
		return ""
	}
	round := req.Round
	prevFirst := req.GroupSlots[0] - sp
	if prevFirst < 1 {
		round--
		prevFirst = tracker.SlotsPerRound - sp + 1
	}
	if round < 1 {
		return ""
	}
	return tracker.SlotKey{Round: round, Slot: prevFirst, Kind: tracker.SlotMain}.String()
}

// dashEligible gates the dash pace: final internal slot only, an unused
// instantaneous action, that slot itself planned as the move action, and
// light load.
func (g *Governor) dashEligible(plan *tracker.CombatantPlan, stats tracker.MovementStats, req Request, load float64) bool {
	if load < 0 || load > BoostLoadLimit {
		return false
	}
	if plan.InstantAction != tracker.InstantAvailable {
		return false
	}
	inGroup := false
	for _, s := range req.GroupSlots {
		if s == tracker.SlotsPerRound {
			inGroup = true
		}
	}
	if !inGroup {
		return false
	}
	final := tracker.SlotKey{Round: req.Round, Slot: tracker.SlotsPerRound, Kind: tracker.SlotMain}
	if plan.ActionAt(final) != req.MoveActionKey {
		return false
	}
	for _, row := range stats.PaceTable {
		if Pace(row.Pace) == PaceDash {
			return row.Allowed
		}
	}
	// No table row: dash is available on load alone.
	return true
}

func (g *Governor) dashFeet(stats tracker.MovementStats) float64 {
	for _, row := range stats.PaceTable {
		if Pace(row.Pace) == PaceDash && row.FeetPerSlot > 0 {
			return row.FeetPerSlot
		}
	}
	return stats.BMRPerSlot * 2
}

// capPace combines dash eligibility, the sheet's explicit maximum pace and
// the pace table's allowed rows into the most restrictive ceiling.
func (g *Governor) capPace(stats tracker.MovementStats, dashOK bool) Pace {
	cap := PaceSprint
	if dashOK {
		cap = PaceDash
	}
	if stats.MaxPaceLabel != "" {
		if idx := paceIndex(Pace(stats.MaxPaceLabel)); idx >= 0 {
			cap = slowerOf(cap, Pace(stats.MaxPaceLabel))
		}
	}
	if len(stats.PaceTable) > 0 {
		fastest := PaceCreep
		for _, row := range stats.PaceTable {
			if !row.Allowed {
				continue
			}
			if idx := paceIndex(Pace(row.Pace)); idx > paceIndex(fastest) {
				fastest = Pace(row.Pace)
			}
		}
		cap = slowerOf(cap, fastest)
	}
	return cap
}

// loadPaceLimit derives a pace ceiling from the sheet data for incidental
// movement; absent data imposes no limit beyond the Run default.
func (g *Governor) loadPaceLimit(stats tracker.MovementStats) Pace {
	limit := PaceRun
	if stats.MaxPaceLabel != "" {
		if idx := paceIndex(Pace(stats.MaxPaceLabel)); idx >= 0 {
			limit = slowerOf(limit, Pace(stats.MaxPaceLabel))
		}
	}
	return limit
}

// clampDestination shortens the request vector to the consumed length and
// snaps it to the grid, re-measuring afterwards. A snap never grants more
// than was allocated.
func (g *Governor) clampDestination(req Request, requested, consumed float64) (Point, float64) {
	if consumed >= requested-distanceEpsilon {
		return req.To, requested
	}
	t := consumed / requested
	to := Point{
		X: req.From.X + (req.To.X-req.From.X)*t,
		Y: req.From.Y + (req.To.Y-req.From.Y)*t,
	}
	if req.GridSize > 0 {
		snapped := Point{
			X: math.Round(to.X/req.GridSize) * req.GridSize,
			Y: math.Round(to.Y/req.GridSize) * req.GridSize,
		}
		if d := distance(req.From, snapped); d <= consumed+distanceEpsilon {
			return snapped, d
		}
	}
	return to, consumed
}

func (g *Governor) commit(track *Track, alloc map[string]float64, moved, consumed float64, to Point) {
	// When the grid snap shortened the clamped segment, scale the
	// allocation down so the ledger matches the measured distance.
	scale := 1.0
	if consumed > distanceEpsilon && moved < consumed {
		scale = moved / consumed
	}
	for k, v := range alloc {
		track.UsedBySlot[k] += v * scale
	}
	track.RoundUsed += moved
	track.LastCenter = to
}

func (g *Governor) reject(req Request, track *Track, capPace Pace, stats tracker.MovementStats, warning string) Verdict {
	return Verdict{
		Decision:   DecisionReject,
		To:         req.From,
		CapPace:    capPace,
		RoundTotal: track.RoundUsed,
		Pace:       classifyRound(track.RoundUsed, stats.BMRPerSlot, capPace),
		Warning:    warning,
	}
}

func validStats(stats tracker.MovementStats) bool {
	if stats.BMRPerSlot <= 0 || math.IsNaN(stats.BMRPerSlot) || math.IsInf(stats.BMRPerSlot, 0) {
		return false
	}
	if math.IsNaN(stats.CarriedWeight) || math.IsNaN(stats.BodyWeight) {
		return false
	}
	return true
}
