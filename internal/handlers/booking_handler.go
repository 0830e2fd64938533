package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/saeid-a/StudioBack/internal/services"
)

type bookingApplicationService interface {
	Register(ctx context.Context, actor models.ActorContext, memberID, sessionID int64) (*services.RegisterResult, error)
	Cancel(ctx context.Context, actor models.ActorContext, registrationID int64) (*services.CancelResult, error)
}

type registrationLister interface {
	ListByMember(ctx context.Context, memberID int64) ([]models.RegistrationDetail, error)
}

type BookingHandler struct {
	service       bookingApplicationService
	registrations registrationLister
}

func NewBookingHandler(service bookingApplicationService, registrations registrationLister) *BookingHandler {
	return &BookingHandler{service: service, registrations: registrations}
}

type registerRequestBody struct {
	MemberID int64 `json:"member_id"`
}

// Register books the caller (or, for operators, the supplied member)
// into the session named in the path.
func (h *BookingHandler) Register(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	memberID := actor.ID
	if len(c.Body()) > 0 {
		var req registerRequestBody
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.MemberID > 0 {
			memberID = req.MemberID
		}
	}

	result, err := h.service.Register(c.Context(), actor, memberID, sessionID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"registration": result.Registration,
		"waitlisted":   result.Waitlisted,
	})
}

func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	registrationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || registrationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid registration id"})
	}

	result, err := h.service.Cancel(c.Context(), actor, registrationID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{
		"registration":   result.Registration,
		"late_cancelled": result.LateCancelled,
	})
}

func (h *BookingHandler) ListMine(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	details, err := h.registrations.ListByMember(c.Context(), actor.ID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"registrations": details})
}

func mapBookingError(c *fiber.Ctx, err error) error {
	var weeklyLimit *services.WeeklyLimitError

	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrRegistrationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Registration not found"})
	case errors.Is(err, services.ErrMemberNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
	case errors.Is(err, services.ErrPlanNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Plan not found"})
	case errors.Is(err, services.ErrSessionNotAvailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session is not open for registration"})
	case errors.Is(err, services.ErrAlreadyRegistered):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Already registered for this session"})
	case errors.Is(err, services.ErrNotCancellable):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Registration can no longer be cancelled"})
	case errors.Is(err, services.ErrNoActiveMembership):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "No active membership"})
	case errors.Is(err, services.ErrClassTypeNotAllowed):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Membership does not cover this class type"})
	case errors.Is(err, services.ErrPackExhausted):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "No sessions left on pack"})
	case errors.Is(err, services.ErrMembershipExpired):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Membership has expired"})
	case errors.As(err, &weeklyLimit):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": weeklyLimit.Error(),
			"limit": weeklyLimit.Limit,
		})
	case errors.Is(err, services.ErrBookingUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Booking temporarily unavailable, please retry"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process booking request"})
	}
}
