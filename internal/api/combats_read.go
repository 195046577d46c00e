package api

import (
	"net/http"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/constants"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/viewmodel"

	"github.com/gin-gonic/gin"
)

// GetCombat returns the full combat record, plans included.
func (h *CombatHandler) GetCombat(c *gin.Context) {
	combat, ok := h.loadScopedCombat(c)
	if !ok {
		return
	}
	out, err := MarshalIntoSnakeTimestamps(combat)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedFetchCombat})
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetPlanView returns the rendered per-slot view for one combatant: AP
// labels, chain flags and penalty text, ready for verbatim display.
func (h *CombatHandler) GetPlanView(c *gin.Context) {
	combat, ok := h.loadScopedCombat(c)
	if !ok {
		return
	}
	plan := combat.PlanFor(c.Param("combatantID"))
	if plan == nil {
		c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrCombatantNotFound})
		return
	}
	c.JSON(http.StatusOK, viewmodel.Build(combat, plan, h.registry))
}

// ListCatalog returns the action catalog in display order, with its source
// so clients can tell a merged override from the built-in defaults.
func (h *CombatHandler) ListCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"actions":                h.registry.Actions(),
		constants.LogFieldSource: string(h.registry.Source()),
		"version":                h.registry.Version(),
	})
}
