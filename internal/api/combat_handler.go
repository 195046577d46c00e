package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/catalog"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/movement"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/replication"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/storage"
)

// Broadcaster fans a holder outcome out to every connected observer of a
// combat and attaches new observer connections. The websocket hub implements
// it; tests use a recording stub.
type Broadcaster interface {
	Broadcast(combatCode string, env replication.Envelope)
	ServeWS(c *gin.Context, combatCode, sub string, gm bool)
}

// CombatHandler groups all combat-related HTTP handlers.
type CombatHandler struct {
	repo     storage.Repository
	registry *catalog.Registry
	holder   *replication.Holder
	hub      Broadcaster
	// governors holds one movement governor per combat code; HTTP movement
	// requests and websocket ones share the same tracked totals.
	governors *movement.GovernorSet

	defaultPhaseCount    int
	defaultBudgetPerSlot float64
}

// NewCombatHandler creates a CombatHandler with the given collaborators and
// configured new-combat defaults.
func NewCombatHandler(repo storage.Repository, registry *catalog.Registry, holder *replication.Holder, hub Broadcaster, defaultPhaseCount int, defaultBudgetPerSlot float64) *CombatHandler {
	return &CombatHandler{
		repo:                 repo,
		registry:             registry,
		holder:               holder,
		hub:                  hub,
		governors:            movement.NewGovernorSet(),
		defaultPhaseCount:    defaultPhaseCount,
		defaultBudgetPerSlot: defaultBudgetPerSlot,
	}
}
