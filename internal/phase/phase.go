// Package phase maps displayed phases onto the fixed 4-slot round structure
// and computes per-slot action-point capacities.
package phase

import (
	"math"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

// ValidPhaseCount reports whether a displayed-phase granularity is supported.
func ValidPhaseCount(n int) bool { return n == 1 || n == 2 || n == 4 }

// SlotsPerPhase returns how many internal slots one displayed phase spans.
func SlotsPerPhase(phaseCount int) int {
	if !ValidPhaseCount(phaseCount) {
		return tracker.SlotsPerRound
	}
	return tracker.SlotsPerRound / phaseCount
}

// FirstSlot returns the first internal slot of a displayed phase.
func FirstSlot(displayedPhase, phaseCount int) int {
	sp := SlotsPerPhase(phaseCount)
	first := (displayedPhase-1)*sp + 1
	if first < 1 {
		first = 1
	}
	if first > tracker.SlotsPerRound {
		first = tracker.SlotsPerRound
	}
	return first
}

// Now returns the evaluation position: the main sub-slot at the start of the
// current displayed phase. Slots before it are history, slots at or after it
// are still editable.
func Now(round, displayedPhase, phaseCount int) tracker.SlotKey {
	if round < 1 {
		round = 1
	}
	return tracker.SlotKey{Round: round, Slot: FirstSlot(displayedPhase, phaseCount), Kind: tracker.SlotMain}
}

// SlotCapacity returns the action-point capacity of one sub-slot.
//
// Base capacity is budgetPerSlot, halved while any concentration flag is
// active. Hold-action overrides this: while the flag is on and a pending key
// is recorded, every slot up to and including the pending key keeps full
// capacity and only slots after it are halved — the concentration effect
// begins once the held action resolves.
func SlotCapacity(plan *tracker.CombatantPlan, budgetPerSlot float64, key tracker.SlotKey) float64 {
	if plan == nil {
		return budgetPerSlot
	}
	if plan.Flags[tracker.FlagHoldAction] && plan.HoldAction != nil {
		if pending, err := tracker.ParseSlotKey(plan.HoldAction.PendingKey); err == nil {
			if !pending.Before(key) {
				return budgetPerSlot
			}
			return budgetPerSlot / 2
		}
	}
	if plan.Concentrating() {
		return budgetPerSlot / 2
	}
	return budgetPerSlot
}

// LookbackRounds returns how many rounds of history chain evaluation must
// see to cover the worst-case chain: maxActionCost paid at the halved rate.
func LookbackRounds(maxActionCost, budgetPerSlot float64) int {
	if budgetPerSlot <= 0 || maxActionCost <= 0 {
		return 1
	}
	perRoundWorst := budgetPerSlot / 2 * tracker.SlotsPerRound
	n := int(math.Ceil(maxActionCost / perRoundWorst))
	if n < 1 {
		n = 1
	}
	return n
}

// Window enumerates the ordered sub-slot keys for rounds [fromRound,
// toRound], main sub-slot first within each internal slot. A bonus sub-slot
// is included when the current bonus count grants one, and additionally when
// the plan already recorded a selection on that bonus sub-slot: reducing the
// bonus count after bonus AP was spent must not erase the historical record.
func Window(plan *tracker.CombatantPlan, fromRound, toRound int) []tracker.SlotKey {
	if fromRound < 1 {
		fromRound = 1
	}
	if toRound < fromRound {
		toRound = fromRound
	}
	bonusCount := 0
	if plan != nil {
		bonusCount = plan.BonusCount
	}
	keys := make([]tracker.SlotKey, 0, (toRound-fromRound+1)*tracker.SlotsPerRound*2)
	for r := fromRound; r <= toRound; r++ {
		for s := 1; s <= tracker.SlotsPerRound; s++ {
			keys = append(keys, tracker.SlotKey{Round: r, Slot: s, Kind: tracker.SlotMain})
			bonus := tracker.SlotKey{Round: r, Slot: s, Kind: tracker.SlotBonus}
			if tracker.HasBonus(s, bonusCount) || recordedSelection(plan, bonus) {
				keys = append(keys, bonus)
			}
		}
	}
	return keys
}

func recordedSelection(plan *tracker.CombatantPlan, key tracker.SlotKey) bool {
	if plan == nil {
		return false
	}
	return plan.PlanActions[key.String()] != ""
}
