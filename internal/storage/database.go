package storage

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

func OpenAndMigrate(dataSourceName string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Keep the schema updated via AutoMigrate; removing the DB file resets
	// everything during development.
	if err := db.AutoMigrate(&tracker.Combat{}, &tracker.CombatantPlan{}); err != nil {
		return nil, err
	}

	// One plan row per (combat, combatant).
	if execErr := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_combatant_plans_combat_uuid ON combatant_plans(combat_id, combatant_uuid);").Error; execErr != nil {
		return nil, execErr
	}
	return db, nil
}
