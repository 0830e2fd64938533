package bookingws

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/saeid-a/StudioBack/internal/models"
)

// Hub fans booking events out to a member's open websocket
// connections. It implements the booking service's Notifier port;
// delivery is best effort and never blocks the caller.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	memberID string
	send     chan []byte
}

type Event struct {
	Type            string `json:"type"`
	MemberID        string `json:"member_id"`
	RegistrationID  string `json:"registration_id"`
	SessionID       string `json:"session_id"`
	SessionStartsAt string `json:"session_starts_at,omitempty"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, memberID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		memberID: memberID,
		send:     make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.memberID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.memberID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.memberID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.memberID)
			}
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// RegistrationPromoted satisfies the booking service's Notifier port:
// the member in question gets told their waitlisted spot turned into a
// confirmed seat.
func (h *Hub) RegistrationPromoted(
	memberID int64,
	registration *models.Registration,
	session *models.ClassSession,
) {
	event := &Event{
		Type:           "registration_promoted",
		MemberID:       strconv.FormatInt(memberID, 10),
		RegistrationID: strconv.FormatInt(registration.ID, 10),
		SessionID:      strconv.FormatInt(registration.SessionID, 10),
		Status:         string(registration.Status),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	if session != nil {
		event.SessionStartsAt = session.StartsAt.UTC().Format(time.RFC3339)
	}

	select {
	case h.broadcast <- event:
	default:
		log.Printf("booking hub: dropping event for member %d, broadcast buffer full", memberID)
	}
}

func (h *Hub) deliver(event *Event) {
	encoded, err := json.Marshal(event)
	if err != nil {
		log.Printf("booking hub encode event: %v", err)
		return
	}
	h.sendToMember(event.MemberID, encoded)
}

func (h *Hub) sendToMember(memberID string, payload []byte) {
	set, ok := h.clients[memberID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, memberID)
	}
}

// ReadPump drains the connection so pings and closes are handled;
// clients never send commands over this socket.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
