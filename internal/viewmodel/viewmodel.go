// Package viewmodel renders evaluation results into the strings and flags a
// client displays verbatim. Hosts format nothing themselves.
package viewmodel

import (
	"strconv"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/catalog"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/chain"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/movement"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/phase"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

const (
	labelBroken = "BROKEN"
	labelLost   = "LOST"
)

// SlotView is the display state of one sub-slot.
type SlotView struct {
	Key    string `json:"key"`
	Slot   int    `json:"slot"`
	Bonus  bool   `json:"bonus"`
	Action string `json:"action"`
	Auto   bool   `json:"auto"`
	// Label is the AP annotation: "+<n> AP", "BROKEN", "LOST" or blank.
	Label    string  `json:"label"`
	Complete bool    `json:"complete"`
	InChain  bool    `json:"in_chain"`
	Invalid  bool    `json:"invalid"`
	Expected string  `json:"expected,omitempty"`
	Penalty  string  `json:"penalty,omitempty"`
	Capacity float64 `json:"capacity"`
	Current  bool    `json:"current"`
	Finish   bool    `json:"finish_early"`
}

// PlanView is the full display state of one combatant's plan for the
// current round.
type PlanView struct {
	CombatantUUID string     `json:"combatant_uuid"`
	Name          string     `json:"name"`
	Round         int        `json:"round"`
	Phase         int        `json:"phase"`
	PhaseCount    int        `json:"phase_count"`
	BonusCount    int        `json:"bonus_count"`
	InstantAction string     `json:"instant_action"`
	Flags         []string   `json:"flags"`
	HoldAction    string     `json:"hold_action,omitempty"`
	Slots         []SlotView `json:"slots"`
	TotalPenalty  string     `json:"total_penalty,omitempty"`
	// Reminders lists unacknowledged mental-focus / endurance checks.
	Reminders []tracker.Reminder `json:"reminders,omitempty"`
}

// fmtNum renders a float the way clients expect: no trailing zeros, no
// exponent.
func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// apLabel renders one slot's chain result.
func apLabel(r chain.SlotResult) string {
	switch {
	case r.Lost:
		return labelLost
	case r.Broke:
		return labelBroken
	case r.Contribution > 0:
		return "+" + fmtNum(r.Contribution) + " AP"
	}
	return ""
}

func penaltyLabel(p float64) string {
	if p >= 0 {
		return ""
	}
	return fmtNum(p)
}

// Build evaluates the combatant's plan and renders the current round's
// slots. The evaluation window reaches back far enough to cover the most
// expensive catalog action at halved capacity.
func Build(combat *tracker.Combat, plan *tracker.CombatantPlan, reg *catalog.Registry) *PlanView {
	now := phase.Now(combat.Round, combat.Phase, combat.PhaseCount)
	lookback := phase.LookbackRounds(reg.MaxCost(), combat.BudgetPerSlot)
	window := phase.Window(plan, now.Round-lookback, now.Round)
	res := chain.Evaluate(chain.Input{
		Window: window,
		Plan:   plan,
		Capacity: func(key tracker.SlotKey) float64 {
			return phase.SlotCapacity(plan, combat.BudgetPerSlot, key)
		},
		Catalog: reg.Map(),
		Now:     now,
	})

	view := &PlanView{
		CombatantUUID: plan.CombatantUUID,
		Name:          plan.CombatantName,
		Round:         combat.Round,
		Phase:         combat.Phase,
		PhaseCount:    combat.PhaseCount,
		BonusCount:    plan.BonusCount,
		InstantAction: plan.InstantAction,
		Flags:         activeFlags(plan),
	}
	if plan.HoldAction != nil {
		view.HoldAction = plan.HoldAction.Label
	}

	var total float64
	for _, key := range window {
		if key.Round != now.Round {
			// History outside the displayed round still counts toward the
			// penalty total but is not rendered.
			total += res.Slots[key].Penalty
			continue
		}
		sr := res.Slots[key]
		total += sr.Penalty
		sv := SlotView{
			Key:      key.String(),
			Slot:     key.Slot,
			Bonus:    key.Kind == tracker.SlotBonus,
			Action:   plan.ActionAt(key),
			Auto:     plan.PlanAuto[key.String()],
			Label:    apLabel(sr),
			Complete: sr.Complete,
			InChain:  res.InChain[key],
			Invalid:  res.Invalid[key],
			Expected: res.Expected[key],
			Penalty:  penaltyLabel(sr.Penalty),
			Capacity: phase.SlotCapacity(plan, combat.BudgetPerSlot, key),
			Current:  key.SameGroup(now),
			Finish:   plan.FinishEarly[key.String()],
		}
		view.Slots = append(view.Slots, sv)
	}
	view.TotalPenalty = penaltyLabel(total)
	view.Reminders = plan.DueReminders(combat.Round)
	return view
}

func activeFlags(plan *tracker.CombatantPlan) []string {
	out := []string{}
	for _, f := range tracker.KnownFlags {
		if plan.Flags[f] {
			out = append(out, string(f))
		}
	}
	return out
}

// MovementOverlay renders the governor's verdict as the two- or three-line
// overlay a token displays. The wording is fixed; clients show it verbatim.
func MovementOverlay(v movement.Verdict) string {
	if v.Decision == movement.DecisionSkip {
		return ""
	}
	if v.Incidental {
		return fmtNum(v.SlotUsed) + " / " + fmtNum(v.SlotCap) + " ft\n" +
			string(v.Pace) + " (cap " + string(v.CapPace) + ")"
	}
	return fmtNum(v.SlotUsed) + " / " + fmtNum(v.SlotCap) + " ft\n" +
		"Total " + fmtNum(v.RoundTotal) + " ft\n" +
		string(v.Pace)
}
