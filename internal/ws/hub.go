package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"whatsapp-crm/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy is enforced by the CORS layer in front of the API
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client represents a connected dashboard socket of one workspace.
type Client struct {
	id        string
	workspace string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
}

type envelope struct {
	workspace string
	payload   []byte
}

// Hub fans pipeline events out to the sockets of the workspace they belong to.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *logging.Logger
}

func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]bool),
		log:        log,
	}
}

// Run owns the client registry until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for ws, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, ws)
			}
			h.mu.Unlock()
			return nil
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.workspace] == nil {
				h.clients[client.workspace] = make(map[*Client]bool)
			}
			h.clients[client.workspace][client] = true
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.id).Str("workspace_id", client.workspace).Msg("websocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.id).Msg("websocket client unregistered")
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.workspace] {
				select {
				case client.send <- msg.payload:
				default:
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops client from the registry. Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.workspace]
	if !ok {
		return
	}
	if _, ok := set[client]; ok {
		delete(set, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(h.clients, client.workspace)
	}
}

// Clients reports how many sockets a workspace has open.
func (h *Hub) Clients(workspaceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[workspaceID])
}

type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Publish queues an event for workspaceID. It never blocks the caller; when the
// queue is full the event is dropped.
func (h *Hub) Publish(workspaceID, eventType string, data interface{}) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("marshal websocket event")
		return
	}
	select {
	case h.broadcast <- envelope{workspace: workspaceID, payload: payload}:
	default:
		h.log.Warn().Str("type", eventType).Str("workspace_id", workspaceID).Msg("websocket queue full, dropping event")
	}
}

// ServeWs upgrades GET /ws?workspace_id=... into a subscription.
func (h *Hub) ServeWs(c *gin.Context) {
	workspace := c.Query("workspace_id")
	if workspace == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workspace_id is required"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	client := &Client{
		id:        uuid.NewString(),
		workspace: workspace,
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// dashboards only listen; reads keep the pong deadline moving
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
