package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

// Message types pushed to websocket clients.
const (
	MessageFeed = "feed"
	MessageChat = "chat"
)

// Message represents a message to be sent to connected clients
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// outbound is a message addressed to one player, or to everyone when userID is empty.
type outbound struct {
	userID string
	msg    Message
}

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Inbound messages from the system to be delivered to clients.
	broadcast chan outbound

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Lock for client map safety
	mu sync.Mutex

	// First delay before retrying a failed chat subscription.
	resubscribeInterval time.Duration
}

const (
	defaultResubscribeInterval = 500 * time.Millisecond
	maxResubscribeInterval     = 30 * time.Second
)

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),

		resubscribeInterval: defaultResubscribeInterval,
	}
}

// Run delivers messages until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case out := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if out.userID != "" && client.userID != out.userID {
					continue
				}
				select {
				case client.send <- out.msg:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Connected reports whether userID has at least one open websocket.
func (h *Hub) Connected(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.userID == userID {
			return true
		}
	}
	return false
}

// Broadcast publishes a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	h.enqueue(outbound{msg: msg})
}

// SendTo publishes a message to the clients of one player.
func (h *Hub) SendTo(userID string, msg Message) {
	h.enqueue(outbound{userID: userID, msg: msg})
}

// SendFeed pushes a terminal feed line to the player's clients.
func (h *Hub) SendFeed(userID string, entry domain.FeedEntry) {
	h.SendTo(userID, Message{Type: MessageFeed, Payload: entry})
}

// enqueue never blocks the caller; sessions call it from their own loop.
func (h *Hub) enqueue(out outbound) {
	select {
	case h.broadcast <- out:
	case <-h.done:
	default:
		logger.Warn("Websocket hub backlog full, dropping message", "type", out.msg.Type, "user_id", out.userID)
	}
}

// ChatConsumer consumes chat inserts from the PubSub port, broadcasts them
// to every client and hands them to the extra forwarders. Failed or dropped
// subscriptions are retried with backoff until ctx is done.
func (h *Hub) ChatConsumer(ctx context.Context, pubsub ports.ChatPubSub, forward ...func(*domain.ChatMessage)) {
	for {
		chatCh, err := h.subscribeChat(ctx, pubsub)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("Failed to subscribe to chat inserts", "error", err)
			}
			return
		}
		logger.Info("Chat consumer started")

		if !h.consumeChat(ctx, chatCh, forward) {
			logger.Info("Chat consumer shutting down")
			return
		}
		logger.Warn("Chat channel closed, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.resubscribeInterval):
		}
	}
}

func (h *Hub) subscribeChat(ctx context.Context, pubsub ports.ChatPubSub) (<-chan *domain.ChatMessage, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.resubscribeInterval
	b.MaxInterval = maxResubscribeInterval

	return backoff.Retry(ctx, func() (<-chan *domain.ChatMessage, error) {
		return pubsub.SubscribeChat(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Chat subscribe failed, retrying", "error", err, "retry_in", next)
		}),
	)
}

// consumeChat fans out chatCh until it closes. It reports false once ctx is done.
func (h *Hub) consumeChat(ctx context.Context, chatCh <-chan *domain.ChatMessage, forward []func(*domain.ChatMessage)) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-chatCh:
			if !ok {
				return ctx.Err() == nil
			}
			h.Broadcast(Message{Type: MessageChat, Payload: msg})
			for _, f := range forward {
				f(msg)
			}
		}
	}
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub    *Hub
	userID string

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message
}

// readPump drains the connection so pongs and close frames are seen.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Websocket closed", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			json.NewEncoder(w).Encode(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				json.NewEncoder(w).Encode(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request for userID. backlog is queued before any live message.
func ServeWs(hub *Hub, userID string, backlog []Message, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	client := &Client{hub: hub, userID: userID, conn: conn, send: make(chan Message, 256)}
	for _, m := range backlog {
		select {
		case client.send <- m:
		default:
		}
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
}
