package api

import (
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/constants"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/logging"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/replication"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionTTL = 12 * time.Hour

type createCombatPayload struct {
	Name          string   `json:"name"`
	GMName        string   `json:"gm_name"`
	PhaseCount    int      `json:"phase_count"`
	BudgetPerSlot float64  `json:"budget_per_slot"`
	Combatants    []string `json:"combatants"`
}

// CreateCombat creates a new combat and returns its join code together with
// a game-master session token.
func (h *CombatHandler) CreateCombat(c *gin.Context) {
	var req createCombatPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}
	if utf8.RuneCountInString(req.Name) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}
	phaseCount := req.PhaseCount
	if phaseCount == 0 {
		phaseCount = h.defaultPhaseCount
	}
	if phaseCount != 1 && phaseCount != 2 && phaseCount != 4 {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}
	budget := req.BudgetPerSlot
	if budget == 0 {
		budget = h.defaultBudgetPerSlot
	}
	if budget < 0 {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}

	joinCode := generateJoinCode()
	gmSub := uuid.NewString()

	combat := tracker.Combat{
		Name:          req.Name,
		JoinCode:      joinCode,
		GMSub:         gmSub,
		Status:        tracker.StatusActive,
		Round:         1,
		Phase:         1,
		PhaseCount:    phaseCount,
		BudgetPerSlot: budget,
	}
	for _, name := range req.Combatants {
		plan := tracker.NewCombatantPlan(uuid.NewString(), name, "")
		combat.Plans = append(combat.Plans, *plan)
	}

	if err := h.repo.CreateCombat(&combat); err != nil {
		logging.Error("failed to create combat", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedCreateCombat})
		return
	}

	token, err := createSessionToken(gmSub, req.GMName, joinCode, true, sessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedCreateToken})
		return
	}
	setSessionCookie(c, token, sessionTTL)

	c.JSON(http.StatusCreated, gin.H{
		"combat_id":   combat.ID,
		"combat_code": joinCode,
		"token":       token,
	})
}

type joinCombatPayload struct {
	JoinCode      string `json:"join_code"`
	PlayerName    string `json:"player_name"`
	CombatantUUID string `json:"combatant_uuid"`
}

// JoinCombat claims a combatant in an active combat and returns a player
// session token scoped to it. Joining without a combatant UUID creates a
// fresh combatant owned by the caller.
func (h *CombatHandler) JoinCombat(c *gin.Context) {
	var req joinCombatPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}
	code := normalizeJoinCode(req.JoinCode)
	if !joinCodeRegex.MatchString(code) {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidCombatCode})
		return
	}
	combat, err := h.repo.GetCombatByCode(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrCombatNotFound})
		return
	}
	if combat.Status != tracker.StatusActive {
		c.JSON(http.StatusConflict, gin.H{constants.JSONKeyError: constants.ErrCombatEnded})
		return
	}

	sub := uuid.NewString()
	var plan *tracker.CombatantPlan
	if req.CombatantUUID != "" {
		plan = combat.PlanFor(req.CombatantUUID)
		if plan == nil {
			c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrCombatantNotFound})
			return
		}
		if plan.OwnerSub != "" {
			c.JSON(http.StatusConflict, gin.H{constants.JSONKeyError: constants.ErrCombatFull})
			return
		}
		plan.OwnerSub = sub
		if req.PlayerName != "" {
			plan.CombatantName = req.PlayerName
		}
	} else {
		plan = tracker.NewCombatantPlan(uuid.NewString(), req.PlayerName, sub)
		plan.CombatID = combat.ID
		combat.Plans = append(combat.Plans, *plan)
	}
	if err := h.repo.UpdateCombat(combat); err != nil {
		logging.Error("failed to update combat on join", err, logging.Fields{constants.LogFieldCombatID: combat.ID})
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedUpdateCombat})
		return
	}

	token, err := createSessionToken(sub, req.PlayerName, code, false, sessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedCreateToken})
		return
	}
	setSessionCookie(c, token, sessionTTL)

	c.JSON(http.StatusOK, gin.H{
		"combat_code":    code,
		"combatant_uuid": plan.CombatantUUID,
		"token":          token,
	})
}

// EndCombat marks a combat ended. Game master only.
func (h *CombatHandler) EndCombat(c *gin.Context) {
	combat, ok := h.loadScopedCombat(c)
	if !ok {
		return
	}
	sub, gm := sessionIdentity(c)
	if !gm || combat.GMSub != sub {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrGameMasterOnly})
		return
	}
	combat.Status = tracker.StatusEnded
	if err := h.repo.UpdateCombat(combat); err != nil {
		logging.Error("failed to end combat", err, logging.Fields{constants.LogFieldCombatID: combat.ID})
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedUpdateCombat})
		return
	}
	h.governors.Drop(combat.JoinCode)
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyMessage: "Combat ended"})
}

type advancePayload struct {
	Round int `json:"round"`
	Phase int `json:"phase"`
}

// AdvanceTurn moves a combat to a new round/phase. Game master only.
// Crossing a round boundary resets every combatant's instantaneous action;
// the resets are broadcast so observers converge without a full reload.
func (h *CombatHandler) AdvanceTurn(c *gin.Context) {
	combat, ok := h.loadScopedCombat(c)
	if !ok {
		return
	}
	sub, gm := sessionIdentity(c)
	if !gm || combat.GMSub != sub {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrGameMasterOnly})
		return
	}
	var req advancePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}
	if req.Round < 1 || req.Phase < 1 || req.Phase > combat.PhaseCount {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidRequest})
		return
	}

	newRound := req.Round > combat.Round
	combat.Round = req.Round
	combat.Phase = req.Phase
	if newRound {
		for i := range combat.Plans {
			if combat.Plans[i].InstantAction != tracker.InstantAvailable {
				combat.Plans[i].InstantAction = tracker.InstantAvailable
				h.broadcastPlanPath(combat.JoinCode, combat.Plans[i].CombatantUUID, tracker.PathInstantAction, tracker.InstantAvailable)
			}
		}
	}
	if err := h.repo.UpdateCombat(combat); err != nil {
		logging.Error("failed to advance combat", err, logging.Fields{constants.LogFieldCombatID: combat.ID, constants.LogFieldRound: req.Round})
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedUpdateCombat})
		return
	}
	h.broadcastState(combat.JoinCode)

	c.JSON(http.StatusOK, gin.H{
		constants.LogFieldRound: combat.Round,
		constants.LogFieldPhase: combat.Phase,
	})
}

// loadScopedCombat resolves the :combatCode param, verifies the session is
// scoped to it and loads the combat.
func (h *CombatHandler) loadScopedCombat(c *gin.Context) (*tracker.Combat, bool) {
	code := normalizeJoinCode(c.Param("combatCode"))
	if !joinCodeRegex.MatchString(code) {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidCombatCode})
		return nil, false
	}
	if !sessionScopedTo(c, code) {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrInvalidSession})
		return nil, false
	}
	combat, err := h.repo.GetCombatByCode(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrCombatNotFound})
		return nil, false
	}
	return combat, true
}

// broadcastPlanPath publishes one authoritative path write to all observers.
func (h *CombatHandler) broadcastPlanPath(combatCode, combatantUUID, planPath string, value interface{}) {
	if h.hub == nil {
		return
	}
	env, err := replication.SetStatePath(combatCode, combatantUUID, planPath, value)
	if err != nil {
		logging.Error("failed to encode broadcast", err, logging.Fields{constants.LogFieldPath: planPath})
		return
	}
	env.Type = replication.MsgStatePath
	h.hub.Broadcast(combatCode, env)
}

// broadcastState publishes a full snapshot, e.g. after a turn advance.
func (h *CombatHandler) broadcastState(combatCode string) {
	if h.hub == nil {
		return
	}
	out := h.holder.Apply(replication.Envelope{Type: replication.MsgInitState, CombatID: combatCode})
	if out.Reply != nil && out.Reply.Type == replication.MsgState {
		h.hub.Broadcast(combatCode, *out.Reply)
	}
}
