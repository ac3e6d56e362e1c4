// README: Caller identification middleware.
//
// Identity arrives on X-Actor-Type / X-Actor-ID headers set by the gateway.
// Token verification lives at the edge; this service trusts the headers.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	ActorTypeKey = "actor_type"
	ActorIDKey   = "actor_id"
)

var knownActorTypes = map[string]bool{
	"customer":   true,
	"restaurant": true,
	"courier":    true,
	"system":     true,
}

// RequireActor rejects requests without a recognizable caller identity.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorType := c.GetHeader("X-Actor-Type")
		actorID := c.GetHeader("X-Actor-ID")
		if !knownActorTypes[actorType] || actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid actor identity",
				"kind":  "unauthorized",
			})
			return
		}
		c.Set(ActorTypeKey, actorType)
		c.Set(ActorIDKey, actorID)
		c.Next()
	}
}
