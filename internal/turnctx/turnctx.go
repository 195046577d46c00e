// Package turnctx abstracts where the current round, phase and action
// budget come from. The core never scans a host object graph; whatever
// discovery or fallback chain a host integration needs lives behind this
// interface.
//
// The server binaries read turn state straight off the combat record, so
// only host integrations (and session, which they drive) implement or
// consume a Provider in this tree.
package turnctx

// Context is the turn-order collaborator's view of time.
type Context struct {
	// Round is 1-based.
	Round int
	// Phase is the displayed phase, 1-based, bounded by PhaseCount.
	Phase int
	// PhaseCount is the displayed-phase granularity: 1, 2 or 4.
	PhaseCount int
	// SlotsPerPhase is how many internal slots one displayed phase spans.
	SlotsPerPhase int
	// BudgetPerSlot is the per-slot action-point budget.
	BudgetPerSlot float64
}

// Provider yields the current turn context.
type Provider interface {
	Current() Context
}

// Static is a fixed provider; it doubles as the degraded fallback when no
// turn signal is available — the tracker holds at round 1, phase 1 rather
// than guessing forward.
type Static struct {
	Ctx Context
}

func (s Static) Current() Context { return s.Ctx }

// Degraded returns the hold-at-start fallback context.
func Degraded(phaseCount int, budgetPerSlot float64) Static {
	if phaseCount != 1 && phaseCount != 2 && phaseCount != 4 {
		phaseCount = 4
	}
	if budgetPerSlot <= 0 {
		budgetPerSlot = 1
	}
	return Static{Ctx: Context{
		Round:         1,
		Phase:         1,
		PhaseCount:    phaseCount,
		SlotsPerPhase: 4 / phaseCount,
		BudgetPerSlot: budgetPerSlot,
	}}
}
