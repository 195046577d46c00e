package tracker

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// SlotsPerRound is fixed: a round always has exactly 4 internal slots no
// matter how many displayed phases it is divided into. Chain math depends
// on this staying constant when the displayed granularity changes.
const SlotsPerRound = 4

type SlotKind string

const (
	SlotMain  SlotKind = "main"
	SlotBonus SlotKind = "bonus"
)

// SlotKey identifies one action sub-slot: a round, an internal slot (1..4)
// and whether it is the main or the bonus sub-slot.
type SlotKey struct {
	Round int      `json:"round"`
	Slot  int      `json:"slot"`
	Kind  SlotKind `json:"kind"`
}

// String renders the canonical key form used in plan maps and update paths,
// e.g. "r3p2" for round 3 slot 2 main, "r3p2b" for its bonus sub-slot.
func (k SlotKey) String() string {
	s := "r" + strconv.Itoa(k.Round) + "p" + strconv.Itoa(k.Slot)
	if k.Kind == SlotBonus {
		s += "b"
	}
	return s
}

// Before reports whether k comes strictly before other in slot order. The
// bonus sub-slot of a slot orders after its main sub-slot.
func (k SlotKey) Before(other SlotKey) bool {
	if k.Round != other.Round {
		return k.Round < other.Round
	}
	if k.Slot != other.Slot {
		return k.Slot < other.Slot
	}
	return k.Kind == SlotMain && other.Kind == SlotBonus
}

// SameGroup reports whether two keys address the same internal slot
// (ignoring the main/bonus distinction).
func (k SlotKey) SameGroup(other SlotKey) bool {
	return k.Round == other.Round && k.Slot == other.Slot
}

// ParseSlotKey parses the canonical "r<round>p<slot>[b]" form.
func ParseSlotKey(s string) (SlotKey, error) {
	var k SlotKey
	rest, ok := strings.CutPrefix(s, "r")
	if !ok {
		return k, fmt.Errorf("invalid slot key %q", s)
	}
	roundStr, slotStr, ok := strings.Cut(rest, "p")
	if !ok {
		return k, fmt.Errorf("invalid slot key %q", s)
	}
	k.Kind = SlotMain
	if b, okB := strings.CutSuffix(slotStr, "b"); okB {
		k.Kind = SlotBonus
		slotStr = b
	}
	round, err := strconv.Atoi(roundStr)
	if err != nil || round < 1 {
		return k, fmt.Errorf("invalid slot key %q", s)
	}
	slot, err := strconv.Atoi(slotStr)
	if err != nil || slot < 1 || slot > SlotsPerRound {
		return k, fmt.Errorf("invalid slot key %q", s)
	}
	k.Round = round
	k.Slot = slot
	return k, nil
}

// HasBonus reports whether internal slot p carries a bonus sub-slot for the
// given bonus count. Bonus AP is always consumed from the last slot of the
// round backward: slot p has one iff p >= 5 - bonusCount.
func HasBonus(slot, bonusCount int) bool {
	if bonusCount < 0 {
		bonusCount = 0
	}
	if bonusCount > SlotsPerRound {
		bonusCount = SlotsPerRound
	}
	return slot >= SlotsPerRound+1-bonusCount
}

// ActionDefinition describes one catalog entry. MinCost == MaxCost means a
// fixed-cost action; MaxCost > MinCost means a range-cost action whose chain
// may end early once the minimum is paid.
type ActionDefinition struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	MinCost float64 `json:"min_cost"`
	MaxCost float64 `json:"max_cost"`
	Icon    string  `json:"icon,omitempty"`
}

func (d ActionDefinition) RangeCost() bool { return d.MaxCost > d.MinCost }

// ConcentrationFlag is one of the independent ongoing-state toggles. Any
// active flag halves per-slot action capacity; at most two may be active at
// once, enforced at the write boundary.
type ConcentrationFlag string

const (
	FlagConcentration ConcentrationFlag = "concentration"
	FlagHoldPosition  ConcentrationFlag = "hold_position"
	FlagPartialDodge  ConcentrationFlag = "partial_dodge"
	FlagSpellPrep     ConcentrationFlag = "spell_prep"
	FlagHoldAction    ConcentrationFlag = "hold_action"
)

// KnownFlags lists every valid concentration flag.
var KnownFlags = []ConcentrationFlag{
	FlagConcentration, FlagHoldPosition, FlagPartialDodge, FlagSpellPrep, FlagHoldAction,
}

// MaxActiveFlags caps how many concentration flags may be on simultaneously.
const MaxActiveFlags = 2

// InstantAvailable is the reset value of the per-round instantaneous action.
const InstantAvailable = "available"

// PaceRate is one row of an actor's pace table.
type PaceRate struct {
	Pace        string  `json:"pace"`
	FeetPerSlot float64 `json:"feet_per_slot"`
	Allowed     bool    `json:"allowed"`
}

// MovementStats carries the actor numbers the movement governor needs. They
// are supplied by a collaborator (host sheet data) and replicated alongside
// the plan so every observer enforces identical caps.
type MovementStats struct {
	BMRPerSlot    float64    `json:"bmr_per_slot"`
	PaceTable     []PaceRate `json:"pace_table,omitempty"`
	CarriedWeight float64    `json:"carried_weight"`
	BodyWeight    float64    `json:"body_weight"`
	MaxPaceLabel  string     `json:"max_pace,omitempty"`
}

// LoadFraction returns carried/body weight, or -1 when the numbers are
// missing so callers can fail open.
func (m MovementStats) LoadFraction() float64 {
	if m.BodyWeight <= 0 {
		return -1
	}
	return m.CarriedWeight / m.BodyWeight
}

// HoldActionMeta records the slot and label of an action being held while
// the hold-action flag is active. PendingKey is the canonical slot key form.
type HoldActionMeta struct {
	PendingKey string `json:"pending_key"`
	Label      string `json:"label"`
}

// CombatantPlan is the authoritative per-actor planning record for one
// combat. Map fields are keyed by the canonical SlotKey string form and are
// persisted as JSON columns.
type CombatantPlan struct {
	gorm.Model
	CombatID      uint   `json:"-"`
	CombatantUUID string `json:"combatant_uuid" gorm:"index"`
	CombatantName string `json:"combatant_name"`
	// OwnerSub is the session subject allowed to edit this plan (besides
	// the game master).
	OwnerSub string `json:"-"`

	BonusCount int                        `json:"bonus_count"`
	Flags      map[ConcentrationFlag]bool `json:"flags" gorm:"serializer:json"`
	HoldAction *HoldActionMeta            `json:"hold_action,omitempty" gorm:"serializer:json"`
	// InstantAction is either InstantAvailable or a chosen catalog key.
	// It resets to InstantAvailable at every round boundary.
	InstantAction string `json:"instant_action"`

	PlanActions map[string]string `json:"plan_actions" gorm:"serializer:json"`
	PlanAuto    map[string]bool   `json:"plan_auto" gorm:"serializer:json"`
	// PlanCosts is legacy per-slot range-cost storage. It is replicated and
	// persisted for compatibility but never read by the evaluator.
	PlanCosts   map[string]*float64 `json:"plan_costs" gorm:"serializer:json"`
	FinishEarly map[string]bool     `json:"finish_early" gorm:"serializer:json"`

	Movement MovementStats `json:"movement" gorm:"serializer:json"`

	// Periodic-reminder bookkeeping.
	MentalFocusStartRound int `json:"mental_focus_start_round"`
	MentalFocusAckRound   int `json:"mental_focus_ack_round"`
	EnduranceAckRound     int `json:"endurance_ack_round"`
}

func (CombatantPlan) TableName() string { return "combatant_plans" }

// NewCombatantPlan returns an empty plan with all maps allocated.
func NewCombatantPlan(combatantUUID, name, ownerSub string) *CombatantPlan {
	return &CombatantPlan{
		CombatantUUID: combatantUUID,
		CombatantName: name,
		OwnerSub:      ownerSub,
		Flags:         map[ConcentrationFlag]bool{},
		InstantAction: InstantAvailable,
		PlanActions:   map[string]string{},
		PlanAuto:      map[string]bool{},
		PlanCosts:     map[string]*float64{},
		FinishEarly:   map[string]bool{},
	}
}

// ActiveFlagCount counts the concentration flags currently on.
func (p *CombatantPlan) ActiveFlagCount() int {
	n := 0
	for _, on := range p.Flags {
		if on {
			n++
		}
	}
	return n
}

// Concentrating reports whether any concentration-type flag is active.
func (p *CombatantPlan) Concentrating() bool { return p.ActiveFlagCount() > 0 }

// ActionAt returns the selected action key for a slot, or "" when blank.
func (p *CombatantPlan) ActionAt(key SlotKey) string {
	if p.PlanActions == nil {
		return ""
	}
	return p.PlanActions[key.String()]
}

// Clone returns a deep copy of the plan. Read-through overlays patch a
// clone, never the authoritative record.
func (p *CombatantPlan) Clone() *CombatantPlan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Flags = make(map[ConcentrationFlag]bool, len(p.Flags))
	for k, v := range p.Flags {
		cp.Flags[k] = v
	}
	if p.HoldAction != nil {
		h := *p.HoldAction
		cp.HoldAction = &h
	}
	cp.PlanActions = make(map[string]string, len(p.PlanActions))
	for k, v := range p.PlanActions {
		cp.PlanActions[k] = v
	}
	cp.PlanAuto = make(map[string]bool, len(p.PlanAuto))
	for k, v := range p.PlanAuto {
		cp.PlanAuto[k] = v
	}
	cp.PlanCosts = make(map[string]*float64, len(p.PlanCosts))
	for k, v := range p.PlanCosts {
		if v != nil {
			c := *v
			cp.PlanCosts[k] = &c
		} else {
			cp.PlanCosts[k] = nil
		}
	}
	cp.FinishEarly = make(map[string]bool, len(p.FinishEarly))
	for k, v := range p.FinishEarly {
		cp.FinishEarly[k] = v
	}
	if p.Movement.PaceTable != nil {
		cp.Movement.PaceTable = append([]PaceRate(nil), p.Movement.PaceTable...)
	}
	return &cp
}

// Combat statuses.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Combat is the authoritative record for one tracked combat.
type Combat struct {
	gorm.Model
	Name     string `json:"name" gorm:"size:64"`
	JoinCode string `json:"join_code" gorm:"unique"`
	// GMSub is the session subject holding game-master authority.
	GMSub  string `json:"-"`
	Status string `json:"status"`

	Round int `json:"round"`
	// Phase is the displayed phase, 1-based, bounded by PhaseCount.
	Phase int `json:"phase"`
	// PhaseCount is the displayed-phase granularity: 1, 2 or 4.
	PhaseCount    int     `json:"phase_count"`
	BudgetPerSlot float64 `json:"budget_per_slot"`

	Plans []CombatantPlan `json:"plans"`
}

func (Combat) TableName() string { return "combats" }

// SlotsPerPhase derives how many internal slots each displayed phase spans.
func (c *Combat) SlotsPerPhase() int {
	if c.PhaseCount <= 0 {
		return SlotsPerRound
	}
	return SlotsPerRound / c.PhaseCount
}

// PlanFor returns the plan for a combatant UUID, or nil.
func (c *Combat) PlanFor(uuid string) *CombatantPlan {
	for i := range c.Plans {
		if c.Plans[i].CombatantUUID == uuid {
			return &c.Plans[i]
		}
	}
	return nil
}
