package api

import (
	"net/http"
	"strings"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/catalog"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/constants"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/movement"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/phase"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/replication"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/viewmodel"

	"github.com/gin-gonic/gin"
)

type setOp struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

type updatePlanPayload struct {
	Sets []setOp `json:"sets"`
}

// UpdatePlan applies a batch of path-scoped plan writes. The batch is not
// atomic: each write is applied and broadcast independently, so a failure
// partway leaves the earlier writes in place.
func (h *CombatHandler) UpdatePlan(c *gin.Context) {
	combat, ok := h.loadScopedCombat(c)
	if !ok {
		return
	}
	if combat.Status != tracker.StatusActive {
		c.JSON(http.StatusConflict, gin.H{constants.JSONKeyError: constants.ErrCombatEnded})
		return
	}
	plan := combat.PlanFor(c.Param("combatantID"))
	if plan == nil {
		c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrCombatantNotFound})
		return
	}
	if !h.authorized(c, combat, plan) {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrNotYourCombatant})
		return
	}
	var req updatePlanPayload
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Sets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}

	for _, op := range req.Sets {
		if msg := h.validatePlanSet(combat, plan, op); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: msg})
			return
		}
	}

	var warnings []string
	for _, op := range req.Sets {
		env, err := replication.SetStatePath(combat.JoinCode, plan.CombatantUUID, op.Path, op.Value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
			return
		}
		out := h.holder.Apply(env)
		if out.Reply != nil && out.Reply.Type == replication.MsgWriteFailed {
			warnings = append(warnings, out.Reply.Error)
			continue
		}
		if out.Broadcast != nil && h.hub != nil {
			h.hub.Broadcast(combat.JoinCode, *out.Broadcast)
		}
	}

	refreshed, err := h.repo.GetCombatByCode(combat.JoinCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedFetchCombat})
		return
	}
	resp := gin.H{"plan": viewmodel.Build(refreshed, refreshed.PlanFor(plan.CombatantUUID), h.registry)}
	if len(warnings) > 0 {
		resp[constants.JSONKeyWarning] = warnings
	}
	c.JSON(http.StatusOK, resp)
}

type toggleFlagPayload struct {
	Flag string `json:"flag"`
	On   bool   `json:"on"`
}

// ToggleFlag enables or disables a concentration flag, enforcing the flag
// cap and the blank-slot-group rule at the write boundary.
func (h *CombatHandler) ToggleFlag(c *gin.Context) {
	combat, ok := h.loadScopedCombat(c)
	if !ok {
		return
	}
	if combat.Status != tracker.StatusActive {
		c.JSON(http.StatusConflict, gin.H{constants.JSONKeyError: constants.ErrCombatEnded})
		return
	}
	plan := combat.PlanFor(c.Param("combatantID"))
	if plan == nil {
		c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrCombatantNotFound})
		return
	}
	if !h.authorized(c, combat, plan) {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrNotYourCombatant})
		return
	}
	var req toggleFlagPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}
	flag := tracker.ConcentrationFlag(req.Flag)
	if msg := validateFlagToggle(combat, plan, flag, req.On); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: msg})
		return
	}

	h.applyAndBroadcast(combat.JoinCode, plan.CombatantUUID, tracker.PathFlags+"."+req.Flag, req.On)
	if flag == tracker.FlagHoldAction && !req.On {
		h.applyAndBroadcast(combat.JoinCode, plan.CombatantUUID, tracker.PathHoldAction, nil)
	}
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyMessage: "Flag updated"})
}

type movePayload struct {
	From        movement.Point `json:"from"`
	FromTopLeft movement.Point `json:"from_top_left"`
	To          movement.Point `json:"to"`
	GridSize    float64        `json:"grid_size"`
	// Preview asks for a ruling on an in-flight drag without committing it.
	Preview bool `json:"preview"`
}

// Move rules on a token position change and returns the verdict plus the
// overlay text the client shows verbatim.
func (h *CombatHandler) Move(c *gin.Context) {
	combat, ok := h.loadScopedCombat(c)
	if !ok {
		return
	}
	plan := combat.PlanFor(c.Param("combatantID"))
	if plan == nil {
		c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrCombatantNotFound})
		return
	}
	var req movePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}

	now := phase.Now(combat.Round, combat.Phase, combat.PhaseCount)
	enforcing := combat.Status == tracker.StatusActive && h.authorized(c, combat, plan)
	verdict := h.governors.For(combat.JoinCode).Govern(plan, movement.Request{
		TokenID:       plan.CombatantUUID,
		From:          req.From,
		FromTopLeft:   req.FromTopLeft,
		To:            req.To,
		GridSize:      req.GridSize,
		WindowID:      now.String(),
		Round:         combat.Round,
		GroupSlots:    groupSlots(combat),
		MoveActionKey: catalog.MoveActionKey,
		Enforcing:     enforcing,
		Preview:       req.Preview,
	})

	resp := gin.H{
		"decision":    decisionString(verdict.Decision),
		"to":          verdict.To,
		"moved":       verdict.Moved,
		"pace":        string(verdict.Pace),
		"round_total": verdict.RoundTotal,
		"penalty":     verdict.Penalty,
		"overlay":     viewmodel.MovementOverlay(verdict),
	}
	if verdict.Warning != "" {
		resp[constants.JSONKeyWarning] = verdict.Warning
	}
	c.JSON(http.StatusOK, resp)
}

// authorized reports whether the session may write this plan.
func (h *CombatHandler) authorized(c *gin.Context, combat *tracker.Combat, plan *tracker.CombatantPlan) bool {
	sub, gm := sessionIdentity(c)
	if gm && combat.GMSub == sub {
		return true
	}
	return plan.OwnerSub != "" && plan.OwnerSub == sub
}

func (h *CombatHandler) applyAndBroadcast(combatCode, combatantUUID, planPath string, value interface{}) {
	env, err := replication.SetStatePath(combatCode, combatantUUID, planPath, value)
	if err != nil {
		return
	}
	out := h.holder.Apply(env)
	if out.Broadcast != nil && h.hub != nil {
		h.hub.Broadcast(combatCode, *out.Broadcast)
	}
}

// validatePlanSet rejects writes that violate a write-boundary invariant.
// Shape errors surface later from the holder instead.
func (h *CombatHandler) validatePlanSet(combat *tracker.Combat, plan *tracker.CombatantPlan, op setOp) string {
	switch {
	case strings.HasPrefix(op.Path, tracker.PathFlags+"."):
		flag := tracker.ConcentrationFlag(strings.TrimPrefix(op.Path, tracker.PathFlags+"."))
		on, _ := op.Value.(bool)
		return validateFlagToggle(combat, plan, flag, on)
	case strings.HasPrefix(op.Path, tracker.PathFinishEarly+"."):
		keyStr := strings.TrimPrefix(op.Path, tracker.PathFinishEarly+".")
		key, err := tracker.ParseSlotKey(keyStr)
		if err != nil {
			return constants.ErrInvalidSlotKey
		}
		now := phase.Now(combat.Round, combat.Phase, combat.PhaseCount)
		if !key.SameGroup(now) {
			return constants.ErrFinishEarlyNotNow
		}
	}
	return ""
}

func validateFlagToggle(combat *tracker.Combat, plan *tracker.CombatantPlan, flag tracker.ConcentrationFlag, on bool) string {
	known := false
	for _, f := range tracker.KnownFlags {
		if f == flag {
			known = true
			break
		}
	}
	if !known {
		return constants.ErrUnknownFlag
	}
	if !on || plan.Flags[flag] {
		return ""
	}
	if plan.ActiveFlagCount() >= tracker.MaxActiveFlags {
		return constants.ErrTooManyFlags
	}
	now := phase.Now(combat.Round, combat.Phase, combat.PhaseCount)
	first := phase.FirstSlot(combat.Phase, combat.PhaseCount)
	for i := 0; i < combat.SlotsPerPhase(); i++ {
		slot := first + i
		if slot > tracker.SlotsPerRound {
			break
		}
		main := tracker.SlotKey{Round: now.Round, Slot: slot, Kind: tracker.SlotMain}
		bonus := tracker.SlotKey{Round: now.Round, Slot: slot, Kind: tracker.SlotBonus}
		if plan.ActionAt(main) != "" || plan.ActionAt(bonus) != "" {
			return constants.ErrSlotGroupNotBlank
		}
	}
	return ""
}

func groupSlots(combat *tracker.Combat) []int {
	first := phase.FirstSlot(combat.Phase, combat.PhaseCount)
	slots := make([]int, 0, combat.SlotsPerPhase())
	for i := 0; i < combat.SlotsPerPhase(); i++ {
		if slot := first + i; slot <= tracker.SlotsPerRound {
			slots = append(slots, slot)
		}
	}
	return slots
}

func decisionString(d movement.Decision) string {
	switch d {
	case movement.DecisionAccept:
		return "accept"
	case movement.DecisionClamp:
		return "clamp"
	case movement.DecisionReject:
		return "reject"
	default:
		return "skip"
	}
}
