package handlers

import (
	"errors"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	bookingws "github.com/saeid-a/StudioBack/internal/websocket"
	"github.com/saeid-a/StudioBack/pkg/utils"
)

// WSHandler upgrades authenticated members onto the booking event hub
// so waitlist promotions reach them without polling.
type WSHandler struct {
	hub       *bookingws.Hub
	jwtSecret string
}

func NewWSHandler(hub *bookingws.Hub, jwtSecret string) *WSHandler {
	return &WSHandler{hub: hub, jwtSecret: jwtSecret}
}

func (h *WSHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *WSHandler) HandleWebSocket(conn *websocket.Conn) {
	memberID, _ := conn.Locals("user_id").(string)
	client := bookingws.NewClient(h.hub, conn, memberID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

func (h *WSHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}
