package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
)

// userIDKey is the key used to store the authenticated user's ID.
const userIDKey = contextKey("userID")

// actorKey holds the authenticated domain.Actor.
const actorKey = contextKey("actor")

// GetUserIDFromContext retrieves the authenticated user ID from the Gin context.
// It returns the user ID and a boolean indicating if it was found.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	if userIDVal, exists := c.Get(string(userIDKey)); exists {
		userID, ok := userIDVal.(string)
		return userID, ok && userID != ""
	}
	// check in the request context as well
	if userID, ok := c.Request.Context().Value(userIDKey).(string); ok && userID != "" {
		return userID, true
	}
	return "", false
}

// GetActorFromContext retrieves the caller identity set by AuthMiddleware.
func GetActorFromContext(c *gin.Context) (domain.Actor, bool) {
	if actor, ok := c.Request.Context().Value(actorKey).(domain.Actor); ok && actor.UserID != "" {
		return actor, true
	}
	return domain.Actor{}, false
}

// WithActor stores the caller identity in ctx.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	ctx = context.WithValue(ctx, userIDKey, actor.UserID)
	return context.WithValue(ctx, actorKey, actor)
}
