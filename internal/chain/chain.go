// Package chain evaluates multi-slot action commitments over a sliding
// window of slots. Evaluation is a pure function of the planned selections,
// the capacity map and the current position; it never fails on well-formed
// input and treats unknown action keys as zero-cost no-ops.
package chain

import (
	"math"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

// PenaltyPerAP is the flat penalty applied per whole AP of shortfall when a
// range-cost action ends under-paid.
const PenaltyPerAP = -25.0

// Input collects everything one evaluation pass reads.
type Input struct {
	// Window is the ordered sub-slot sequence, oldest first, as produced by
	// phase.Window. It must extend far enough back to cover the longest
	// catalog action at the halved rate.
	Window []tracker.SlotKey
	// Plan supplies selections and finish-early flags.
	Plan *tracker.CombatantPlan
	// Capacity yields the AP capacity of a sub-slot.
	Capacity func(tracker.SlotKey) float64
	// Catalog maps action keys to definitions. Loaded once per pass.
	Catalog map[string]tracker.ActionDefinition
	// Now is the evaluation position: the main sub-slot at the start of the
	// current displayed phase. Slots before it are committed history.
	Now tracker.SlotKey
}

// SlotResult is the evaluation outcome for one sub-slot.
type SlotResult struct {
	// Contribution is the AP this sub-slot paid into a chain.
	Contribution float64
	// Broke marks the slot where a chain ended without completing.
	Broke bool
	// Lost marks contributing slots whose chain broke; their AP is forfeit.
	Lost bool
	// Complete marks the slot where a chain finished paying its cost.
	Complete bool
	// Penalty is the AP-equivalent shortfall penalty (0 or negative).
	Penalty float64
}

// Result is the full evaluation outcome.
type Result struct {
	Slots map[tracker.SlotKey]SlotResult
	// InChain marks every sub-slot inside a completed chain.
	InChain map[tracker.SlotKey]bool
	// Expected records, per blank-or-mismatched sub-slot, the action key an
	// unfinished chain expects there, so the UI can prompt for continuation.
	Expected map[tracker.SlotKey]string
	// Invalid marks the current slot when its selection contradicts the
	// chain it is expected to continue.
	Invalid map[tracker.SlotKey]bool
}

func newResult() *Result {
	return &Result{
		Slots:    map[tracker.SlotKey]SlotResult{},
		InChain:  map[tracker.SlotKey]bool{},
		Expected: map[tracker.SlotKey]string{},
		Invalid:  map[tracker.SlotKey]bool{},
	}
}

// activeChain tracks the commitment currently being paid for.
type activeChain struct {
	key          string
	def          tracker.ActionDefinition
	target       float64
	accumulated  float64
	contributors []tracker.SlotKey
	lastKey      tracker.SlotKey
	lastGroup    tracker.SlotKey // main key of the last contributing group
}

func shortfallPenalty(def tracker.ActionDefinition, accumulated float64) float64 {
	short := math.Round(math.Max(0, def.MaxCost-accumulated))
	return PenaltyPerAP * short
}

// Evaluate runs one pass over the window. It is deterministic and
// idempotent: evaluating the same input twice yields identical results.
func Evaluate(in Input) *Result {
	res := newResult()
	if in.Plan == nil || in.Capacity == nil {
		return res
	}

	groups := groupWindow(in.Window)
	var chain *activeChain

	for _, grp := range groups {
		groupMain := tracker.SlotKey{Round: grp.round, Slot: grp.slot, Kind: tracker.SlotMain}
		isPast := groupMain.Before(in.Now)

		// Gap detection happens at slot-group level: the chain survives the
		// group when either sub-slot continues it.
		if chain != nil && !groupMatches(in, grp, chain.key) {
			stop := handleGap(in, res, chain, groupMain, isPast)
			chain = nil
			if stop {
				return res
			}
		}

		for _, key := range grp.entries {
			sel := in.Plan.ActionAt(key)

			if chain != nil && sel == chain.key {
				cap := in.Capacity(key)
				r := res.Slots[key]
				r.Contribution = cap
				res.Slots[key] = r
				chain.accumulated += cap
				chain.contributors = append(chain.contributors, key)
				chain.lastKey = key
				chain.lastGroup = groupMain
				if finished(in, res, chain, groupMain) {
					chain = nil
				}
				continue
			}

			// A new chain may only start strictly in the past.
			if chain == nil && isPast && sel != "" {
				def, ok := in.Catalog[sel]
				if !ok || def.MinCost <= 0 {
					continue
				}
				target := def.MinCost
				if def.RangeCost() {
					target = def.MaxCost
				}
				cap := in.Capacity(key)
				r := res.Slots[key]
				r.Contribution = cap
				res.Slots[key] = r
				chain = &activeChain{
					key:          sel,
					def:          def,
					target:       target,
					accumulated:  cap,
					contributors: []tracker.SlotKey{key},
					lastKey:      key,
					lastGroup:    groupMain,
				}
				if finished(in, res, chain, groupMain) {
					chain = nil
				}
			}
		}
	}
	return res
}

// finished checks completion and the finish-early override after a
// contribution. Completing a chain resets tracking immediately, so an
// identical action on the very next contributing sub-slot starts a brand-new
// chain instead of extending this one.
func finished(in Input, res *Result, chain *activeChain, groupMain tracker.SlotKey) bool {
	if chain.accumulated >= chain.target {
		markComplete(res, chain, 0)
		return true
	}
	if chain.def.RangeCost() && groupMain.SameGroup(in.Now) && finishEarlySet(in, chain.lastKey, groupMain) {
		markComplete(res, chain, shortfallPenalty(chain.def, chain.accumulated))
		return true
	}
	return false
}

// finishEarlySet honours the flag on either the contributing sub-slot or the
// group's main sub-slot; it is only consulted for the current group — flags
// on past or future slots are inert.
func finishEarlySet(in Input, key, groupMain tracker.SlotKey) bool {
	if in.Plan.FinishEarly == nil {
		return false
	}
	return in.Plan.FinishEarly[key.String()] || in.Plan.FinishEarly[groupMain.String()]
}

func markComplete(res *Result, chain *activeChain, penalty float64) {
	r := res.Slots[chain.lastKey]
	r.Complete = true
	if penalty != 0 {
		r.Penalty = penalty
	}
	res.Slots[chain.lastKey] = r
	for _, c := range chain.contributors {
		res.InChain[c] = true
	}
}

// handleGap ends a chain that found no continuation in the current group.
// Returns true when the scan must stop (breaks at or after the current
// position are not penalized — the user has not committed to them yet).
func handleGap(in Input, res *Result, chain *activeChain, groupMain tracker.SlotKey, isPast bool) bool {
	// Range-cost chains that already met their minimum end silently, with
	// only the shortfall-versus-maximum penalty on the last contributor.
	if chain.def.RangeCost() && chain.accumulated >= chain.def.MinCost {
		markComplete(res, chain, shortfallPenalty(chain.def, chain.accumulated))
		return false
	}

	if !isPast {
		// The chain's commitment runs into editable slots. When its last
		// contribution landed exactly one slot before the current position,
		// the current slot is expected to continue it.
		if chain.lastGroup == previousGroup(in.Now) {
			res.Expected[in.Now] = chain.key
			if sel := in.Plan.ActionAt(in.Now); sel != "" && sel != chain.key {
				res.Invalid[in.Now] = true
			}
		}
		return true
	}

	for _, c := range chain.contributors {
		r := res.Slots[c]
		r.Lost = true
		res.Slots[c] = r
	}
	r := res.Slots[groupMain]
	r.Broke = true
	if chain.def.RangeCost() {
		r.Penalty = shortfallPenalty(chain.def, chain.accumulated)
	}
	res.Slots[groupMain] = r
	return false
}

func previousGroup(now tracker.SlotKey) tracker.SlotKey {
	if now.Slot > 1 {
		return tracker.SlotKey{Round: now.Round, Slot: now.Slot - 1, Kind: tracker.SlotMain}
	}
	return tracker.SlotKey{Round: now.Round - 1, Slot: tracker.SlotsPerRound, Kind: tracker.SlotMain}
}

type slotGroup struct {
	round, slot int
	entries     []tracker.SlotKey
}

func groupWindow(window []tracker.SlotKey) []slotGroup {
	groups := make([]slotGroup, 0, len(window))
	for _, key := range window {
		n := len(groups)
		if n > 0 && groups[n-1].round == key.Round && groups[n-1].slot == key.Slot {
			groups[n-1].entries = append(groups[n-1].entries, key)
			continue
		}
		groups = append(groups, slotGroup{round: key.Round, slot: key.Slot, entries: []tracker.SlotKey{key}})
	}
	return groups
}

func groupMatches(in Input, grp slotGroup, actionKey string) bool {
	for _, key := range grp.entries {
		if in.Plan.ActionAt(key) == actionKey {
			return true
		}
	}
	return false
}
