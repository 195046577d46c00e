package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/constants"
)

// ServeWS attaches an observer websocket to a combat. The session must be
// scoped to the requested combat; the resolved identity rides along so the
// holder can authorize every write on the channel, same as the HTTP path.
func (h *CombatHandler) ServeWS(c *gin.Context) {
	code := normalizeJoinCode(c.Param("combatCode"))
	if !joinCodeRegex.MatchString(code) {
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrInvalidCombatCode})
		return
	}
	if !sessionScopedTo(c, code) {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrInvalidSession})
		return
	}
	sub, gm := sessionIdentity(c)
	h.hub.ServeWS(c, code, sub, gm)
}
