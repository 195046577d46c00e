package tracker

// Reminder kinds surfaced to clients until acknowledged.
const (
	ReminderMentalFocus = "mental_focus"
	ReminderEndurance   = "endurance"
)

// EnduranceIntervalRounds is how often an endurance check comes due.
const EnduranceIntervalRounds = 5

// Reminder is one due acknowledgement for a combatant.
type Reminder struct {
	CombatantUUID string `json:"combatant_uuid"`
	Kind          string `json:"kind"`
	Round         int    `json:"round"`
}

// mentalFocusDue reports whether a mental-focus upkeep reminder is due: one
// per round after the round focus started, until acknowledged for the
// current round.
func (p *CombatantPlan) mentalFocusDue(round int) bool {
	if p.MentalFocusStartRound <= 0 || round <= p.MentalFocusStartRound {
		return false
	}
	return p.MentalFocusAckRound < round
}

// enduranceDue reports whether an endurance check is due. Acknowledging
// resets the interval from the acknowledged round.
func (p *CombatantPlan) enduranceDue(round int) bool {
	return round-p.EnduranceAckRound >= EnduranceIntervalRounds
}

// DueReminders lists every unacknowledged reminder for a plan at the given
// round.
func (p *CombatantPlan) DueReminders(round int) []Reminder {
	var due []Reminder
	if p.mentalFocusDue(round) {
		due = append(due, Reminder{CombatantUUID: p.CombatantUUID, Kind: ReminderMentalFocus, Round: round})
	}
	if p.enduranceDue(round) {
		due = append(due, Reminder{CombatantUUID: p.CombatantUUID, Kind: ReminderEndurance, Round: round})
	}
	return due
}

// DueReminders aggregates due reminders across all plans in a combat.
func (c *Combat) DueReminders() []Reminder {
	var due []Reminder
	for i := range c.Plans {
		due = append(due, c.Plans[i].DueReminders(c.Round)...)
	}
	return due
}
