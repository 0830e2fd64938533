package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/StudioBack/internal/models"
	"github.com/saeid-a/StudioBack/internal/repository"
	"github.com/saeid-a/StudioBack/internal/services"
)

type scheduleApplicationService interface {
	CreateSession(ctx context.Context, actor models.ActorContext, input services.ScheduleSessionInput) (*models.ClassSession, error)
	CancelSession(ctx context.Context, actor models.ActorContext, sessionID int64) (*models.ClassSession, error)
	ListSessions(ctx context.Context, filter repository.ClassSessionListFilter) ([]models.ClassSessionDetail, int, error)
	ListClassTypes(ctx context.Context) ([]models.ClassType, error)
	GetSession(ctx context.Context, sessionID int64) (*models.ClassSession, error)
	SessionRoster(ctx context.Context, actor models.ActorContext, sessionID int64) ([]models.Registration, error)
	MarkAttendance(ctx context.Context, actor models.ActorContext, registrationID int64, requestedStatus string) (*models.Registration, error)
}

type SessionHandler struct {
	service scheduleApplicationService
}

func NewSessionHandler(service *services.ScheduleService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	ClassTypeID int64  `json:"class_type_id"`
	CoachID     int64  `json:"coach_id"`
	CohortID    *int64 `json:"cohort_id"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
	Capacity    int    `json:"capacity"`
}

type attendanceRequest struct {
	Status string `json:"status"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "starts_at must be a valid RFC3339 timestamp"})
	}
	endsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndsAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ends_at must be a valid RFC3339 timestamp"})
	}
	if req.Capacity <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "capacity must be greater than 0"})
	}

	session, err := h.service.CreateSession(c.Context(), actor, services.ScheduleSessionInput{
		ClassTypeID: req.ClassTypeID,
		CoachID:     req.CoachID,
		CohortID:    req.CohortID,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Capacity:    req.Capacity,
	})
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.CancelSession(c.Context(), actor, sessionID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	page, limit := parsePagination(c)
	filter := repository.ClassSessionListFilter{Page: page, Limit: limit}

	if raw := strings.TrimSpace(c.Query("class_type_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class_type_id"})
		}
		filter.ClassTypeID = id
	}
	if raw := strings.TrimSpace(c.Query("coach_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid coach_id"})
		}
		filter.CoachID = id
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be a valid RFC3339 timestamp"})
		}
		filter.From = &from
	} else {
		now := time.Now().UTC()
		filter.From = &now
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be a valid RFC3339 timestamp"})
		}
		filter.To = &to
	}

	sessions, total, err := h.service.ListSessions(c.Context(), filter)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions":   sessions,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *SessionHandler) ListClassTypes(c *fiber.Ctx) error {
	classTypes, err := h.service.ListClassTypes(c.Context())
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"class_types": classTypes})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), sessionID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) SessionRoster(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	roster, err := h.service.SessionRoster(c.Context(), actor, sessionID)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"registrations": roster})
}

func (h *SessionHandler) MarkAttendance(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	registrationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || registrationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid registration id"})
	}

	var req attendanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	registration, err := h.service.MarkAttendance(c.Context(), actor, registrationID, req.Status)
	if err != nil {
		return mapBookingError(c, err)
	}

	return c.JSON(fiber.Map{"registration": registration})
}
