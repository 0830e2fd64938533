package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/StudioBack/internal/models"
)

var errInvalidActor = errors.New("invalid actor")

// actorFromContext rebuilds the authenticated caller from the JWT
// claims the auth middleware stored on the request.
func actorFromContext(c *fiber.Ctx) (models.ActorContext, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return models.ActorContext{}, errInvalidActor
	}
	role, ok := c.Locals("role").(string)
	if !ok {
		return models.ActorContext{}, errInvalidActor
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		return models.ActorContext{}, errInvalidActor
	}
	return models.ActorContext{ID: userID, Role: role}, nil
}
