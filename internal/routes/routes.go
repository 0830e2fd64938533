package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/saeid-a/StudioBack/internal/config"
	"github.com/saeid-a/StudioBack/internal/handlers"
	"github.com/saeid-a/StudioBack/internal/middleware"
	"github.com/saeid-a/StudioBack/internal/repository"
	"github.com/saeid-a/StudioBack/internal/services"
	bookingws "github.com/saeid-a/StudioBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client) {
	userRepo := repository.NewUserRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	classTypeRepo := repository.NewClassTypeRepository(db)
	sessionRepo := repository.NewClassSessionRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)

	hub := bookingws.NewHub()
	go hub.Run()

	resolver := services.NewEntitlementResolver(cfg.BookingLocation())
	bookingService := services.NewBookingService(db, resolver, hub)
	scheduleService := services.NewScheduleService(db, sessionRepo, classTypeRepo, registrationRepo)
	membershipService := services.NewMembershipService(db, membershipRepo, userRepo)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	bookingHandler := handlers.NewBookingHandler(bookingService, registrationRepo)
	sessionHandler := handlers.NewSessionHandler(scheduleService)
	membershipHandler := handlers.NewMembershipHandler(membershipService)
	wsHandler := handlers.NewWSHandler(hub, cfg.JWTSecret)

	bookingLimiter := middleware.RateLimit(cfg.RateLimit, rdb)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	plans := authProtected.Group("/plans")
	plans.Get("", membershipHandler.ListPlans)

	classTypes := authProtected.Group("/class-types")
	classTypes.Get("", sessionHandler.ListClassTypes)

	memberships := authProtected.Group("/memberships")
	memberships.Post("", membershipHandler.Grant)
	memberships.Get("/me", membershipHandler.GetMine)

	sessions := authProtected.Group("/sessions")
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)
	sessions.Get("/:id/roster", sessionHandler.SessionRoster)
	sessions.Post("/:id/register", bookingLimiter, bookingHandler.Register)

	registrations := authProtected.Group("/registrations")
	registrations.Get("/me", bookingHandler.ListMine)
	registrations.Post("/:id/cancel", bookingLimiter, bookingHandler.Cancel)
	registrations.Post("/:id/attendance", sessionHandler.MarkAttendance)

	api.Use("/v1/ws", wsHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(wsHandler.HandleWebSocket))
}
