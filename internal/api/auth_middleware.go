package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/constants"
	"github.com/gin-gonic/gin"
)

// setSessionCookie sets the session cookie with appropriate flags for dev/prod.
func setSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	secure := false
	if os.Getenv(constants.EnvSessionSecureCookie) == "1" {
		secure = true
	}
	c.SetCookie(constants.CookieSessionName, token, int(ttl.Seconds()), "/", "", secure, true)
}

// sessionToken extracts the token from the cookie or, for non-browser
// clients, from a bearer Authorization header.
func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(constants.CookieSessionName); err == nil && token != "" {
		return token
	}
	auth := c.GetHeader(constants.HeaderAuthorization)
	if strings.HasPrefix(auth, constants.BearerPrefix) {
		return strings.TrimPrefix(auth, constants.BearerPrefix)
	}
	return ""
}

// AuthRequired validates the session token and injects identity into context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{constants.JSONKeyError: constants.ErrAuthRequired})
			return
		}
		claims, err := parseAndValidateSession(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{constants.JSONKeyError: constants.ErrInvalidSession})
			return
		}
		c.Set("sessionSub", claims.Sub)
		c.Set("sessionName", claims.Name)
		c.Set("sessionCombat", claims.Combat)
		c.Set("sessionGM", claims.GM)
		c.Next()
	}
}

func sessionIdentity(c *gin.Context) (sub string, gm bool) {
	if v, ok := c.Get("sessionSub"); ok {
		sub, _ = v.(string)
	}
	if v, ok := c.Get("sessionGM"); ok {
		gm, _ = v.(bool)
	}
	return sub, gm
}

// sessionScopedTo reports whether the session token was issued for the
// given combat code.
func sessionScopedTo(c *gin.Context, combatCode string) bool {
	v, ok := c.Get("sessionCombat")
	if !ok {
		return false
	}
	scoped, _ := v.(string)
	return scoped == combatCode
}
