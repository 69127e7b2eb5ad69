package notifyws

import (
	"encoding/json"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
)

// Hub fans session notifications out to the connected sockets of a single
// user. A user may hold several connections (web and mobile) at once.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	notify     chan *Envelope
	logger     zerolog.Logger
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Envelope is the wire shape of a pushed notification.
type Envelope struct {
	UserID    string `json:"-"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url,omitempty"`
	Timestamp string `json:"timestamp"`
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan *Envelope, 64),
		logger:     logger.With().Str("component", "notify_hub").Logger(),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case envelope := <-h.notify:
			h.deliver(envelope)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Push queues a notification for delivery. Users with no open socket are
// skipped silently; the persisted notification row is the durable copy.
func (h *Hub) Push(envelope *Envelope) {
	if envelope.Timestamp == "" {
		envelope.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	select {
	case h.notify <- envelope:
	default:
		h.logger.Warn().Str("user_id", envelope.UserID).Msg("notification channel full, dropping push")
	}
}

func (h *Hub) deliver(envelope *Envelope) {
	encoded, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode notification")
		return
	}
	h.sendToUser(envelope.UserID, encoded)
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
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
		delete(h.clients, userID)
	}
}

// ReadPump discards inbound frames; this socket is push-only. It exists to
// notice the close handshake and unregister the client.
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
