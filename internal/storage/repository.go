package storage

import (
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

type Repository interface {
	CreateCombat(c *tracker.Combat) error
	GetCombatByID(id uint) (*tracker.Combat, error)
	// GetCombatByCode loads a combat and all its plans by join code.
	GetCombatByCode(code string) (*tracker.Combat, error)
	UpdateCombat(c *tracker.Combat) error
	// GetActiveCombats returns every combat still in the active status;
	// the reminder scanner walks these on its interval.
	GetActiveCombats() ([]tracker.Combat, error)

	GetPlan(combatID uint, combatantUUID string) (*tracker.CombatantPlan, error)
	SavePlan(p *tracker.CombatantPlan) error
	RemovePlan(combatID uint, combatantUUID string) error
}
