package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
)

const actorKey = "actor"

// authMiddleware resolves the bearer token to a fully assigned actor.
// The token only names the actor; role and assignments come from the actor store.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims, err := s.deps.Tokens.Parse(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		id, err := claims.ActorID()
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ctx := c.Request.Context()
		actor, err := s.deps.Actors.GetByID(ctx, id)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				abortUnauthorized(c, "unknown actor")
				return
			}
			s.logger.Error("Failed to load actor", "actor_id", id, "error", err)
			respondError(c, err)
			c.Abort()
			return
		}
		if claims.Role != "" && claims.Role != actor.Role {
			abortUnauthorized(c, "token role is stale")
			return
		}

		resolved, err := s.deps.Locations.ResolveActor(ctx, *actor)
		if err != nil {
			s.logger.Error("Failed to resolve actor assignment", "actor_id", id, "error", err)
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(actorKey, resolved)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Success: false,
		Error:   msg,
		Kind:    "unauthorized",
	})
}

func actorFrom(c *gin.Context) (entity.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return entity.Actor{}, false
	}
	actor, ok := v.(entity.Actor)
	return actor, ok
}
