package storage

import (
	"gorm.io/gorm"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

type sqliteRepository struct {
	db *gorm.DB
}

func NewSQLiteRepository(db *gorm.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) CreateCombat(c *tracker.Combat) error {
	return r.db.Create(c).Error
}

func (r *sqliteRepository) GetCombatByID(id uint) (*tracker.Combat, error) {
	var c tracker.Combat
	if err := r.db.Preload("Plans").First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *sqliteRepository) GetCombatByCode(code string) (*tracker.Combat, error) {
	var c tracker.Combat
	if err := r.db.Preload("Plans").Where("join_code = ?", code).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *sqliteRepository) UpdateCombat(c *tracker.Combat) error {
	return r.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(c).Error
}

func (r *sqliteRepository) GetActiveCombats() ([]tracker.Combat, error) {
	var combats []tracker.Combat
	if err := r.db.Preload("Plans").Where("status = ?", tracker.StatusActive).Find(&combats).Error; err != nil {
		return nil, err
	}
	return combats, nil
}

func (r *sqliteRepository) GetPlan(combatID uint, combatantUUID string) (*tracker.CombatantPlan, error) {
	var p tracker.CombatantPlan
	err := r.db.Where("combat_id = ? AND combatant_uuid = ?", combatID, combatantUUID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqliteRepository) SavePlan(p *tracker.CombatantPlan) error {
	return r.db.Save(p).Error
}

func (r *sqliteRepository) RemovePlan(combatID uint, combatantUUID string) error {
	return r.db.Where("combat_id = ? AND combatant_uuid = ?", combatID, combatantUUID).
		Delete(&tracker.CombatantPlan{}).Error
}
