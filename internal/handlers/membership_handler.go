package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/saeid-a/StudioBack/internal/services"
)

type membershipApplicationService interface {
	Grant(ctx context.Context, actor models.ActorContext, input services.GrantMembershipInput) (*models.Membership, error)
	GetCurrent(ctx context.Context, memberID int64) (*models.MembershipDetail, error)
	ListPlans(ctx context.Context) ([]models.MembershipPlan, error)
}

type MembershipHandler struct {
	service membershipApplicationService
}

func NewMembershipHandler(service *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{service: service}
}

type grantMembershipRequest struct {
	MemberID int64  `json:"member_id"`
	PlanID   int64  `json:"plan_id"`
	StartsOn string `json:"starts_on"`
}

func (h *MembershipHandler) Grant(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req grantMembershipRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var startsOn time.Time
	if raw := strings.TrimSpace(req.StartsOn); raw != "" {
		startsOn, err = time.Parse("2006-01-02", raw)
		if err != nil {
			startsOn, err = time.Parse(time.RFC3339, raw)
		}
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "starts_on must be a date (2006-01-02) or RFC3339 timestamp"})
		}
	}

	membership, err := h.service.Grant(c.Context(), actor, services.GrantMembershipInput{
		MemberID: req.MemberID,
		PlanID:   req.PlanID,
		StartsOn: startsOn,
	})
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"membership": membership})
}

func (h *MembershipHandler) GetMine(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	detail, err := h.service.GetCurrent(c.Context(), actor.ID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"membership": detail})
}

func (h *MembershipHandler) ListPlans(c *fiber.Ctx) error {
	plans, err := h.service.ListPlans(c.Context())
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"plans": plans})
}
