package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/raaihank/redactor/internal/workspace"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 512
	sendBufferSize        = 256
)

// Hub keeps the connected clients and fans workspace events out to the
// clients bound to that workspace.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	config   HubConfig
	source   StateSource
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	stats HubStats
}

// NewHub creates a new WebSocket hub
func NewHub(config HubConfig, source StateSource, logger *zap.Logger) *Hub {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteWait
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = defaultPongWait
	}
	if config.PingInterval <= 0 || config.PingInterval >= config.PongTimeout {
		// Must be less than the pong timeout
		config.PingInterval = (config.PongTimeout * 9) / 10
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaultMaxMessageSize
	}

	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     config,
		source:     source,
		logger:     logger.With(zap.String("component", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run handles client registration and event delivery until ctx is done
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.deliver(event, nil)
		}
	}
}

// PublishState queues a state snapshot for the clients of that workspace.
// It never blocks; events are dropped when the queue is full.
func (h *Hub) PublishState(state workspace.State) {
	h.BroadcastEvent(Event{
		Type:        EventTypeWorkspaceState,
		Timestamp:   time.Now(),
		WorkspaceID: state.ID,
		Data:        state,
	})
}

// BroadcastEvent queues an event for delivery
func (h *Hub) BroadcastEvent(event Event) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- event:
	default:
		h.mu.Lock()
		h.stats.DroppedEvents++
		h.mu.Unlock()
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("workspace_id", event.WorkspaceID),
		)
	}
}

// HandleWebSocket upgrades GET /ws?workspace={id}
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace")
	if workspaceID == "" {
		http.Error(w, "workspace query parameter is required", http.StatusBadRequest)
		return
	}
	if _, ok := h.source.Snapshot(workspaceID); !ok {
		http.Error(w, "workspace not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Send:        make(chan Event, sendBufferSize),
		ConnectedAt: time.Now(),
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		conn:        conn,
		pong:        make(chan struct{}, 1),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

// Viewers returns the number of clients bound to a workspace
func (h *Hub) Viewers(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.viewersLocked(workspaceID)
}

// registerClient adds the client and queues the current workspace state as
// its first event. The snapshot is taken after the client joins, so every
// later transition reaches it through deliver.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.LastConnectionTime = time.Now()
	viewers := h.viewersLocked(client.WorkspaceID)
	h.mu.Unlock()

	state, ok := h.source.Snapshot(client.WorkspaceID)
	if !ok {
		// Removed between the handshake and registration
		h.mu.Lock()
		h.removeLocked(client)
		h.mu.Unlock()
		return
	}
	client.Send <- Event{
		Type:        EventTypeWorkspaceState,
		Timestamp:   time.Now(),
		WorkspaceID: client.WorkspaceID,
		Data:        state,
	}

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID),
		zap.String("workspace_id", client.WorkspaceID),
		zap.String("client_ip", client.IP),
	)

	h.announce(client, "connected", viewers)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	h.removeLocked(client)
	viewers := h.viewersLocked(client.WorkspaceID)
	h.mu.Unlock()

	h.logger.Info("Client disconnected",
		zap.String("client_id", client.ID),
		zap.String("workspace_id", client.WorkspaceID),
	)

	h.announce(client, "disconnected", viewers)
}

// announce tells the other viewers of a workspace about a connection change
func (h *Hub) announce(client *Client, action string, viewers int) {
	if !h.config.BroadcastConnections {
		return
	}
	h.deliver(Event{
		Type:        EventTypeConnection,
		Timestamp:   time.Now(),
		WorkspaceID: client.WorkspaceID,
		Data: ConnectionEvent{
			Action:   action,
			ClientID: client.ID,
			Viewers:  viewers,
		},
	}, client)
}

// deliver sends event to every client of its workspace except exclude.
// Clients that cannot keep up are disconnected.
func (h *Hub) deliver(event Event, exclude *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()

	for client := range h.clients {
		if client == exclude || client.WorkspaceID != event.WorkspaceID {
			continue
		}
		select {
		case client.Send <- event:
			h.stats.TotalMessages++
		default:
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("client_id", client.ID),
			)
			h.removeLocked(client)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
	h.logger.Info("WebSocket hub stopped")
}

func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}

func (h *Hub) viewersLocked(workspaceID string) int {
	return lo.CountBy(lo.Keys(h.clients), func(c *Client) bool {
		return c.WorkspaceID == workspaceID
	})
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				h.logger.Debug("Failed to write WebSocket message",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
				return
			}

		case <-client.pong:
			client.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.conn.WriteJSON(Event{
				Type:        EventTypePong,
				Timestamp:   time.Now(),
				WorkspaceID: client.WorkspaceID,
			}); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(h.config.MaxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket error",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
			}
			return
		}

		if msg.Type == "ping" {
			select {
			case client.pong <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	allowed := h.config.AllowedOrigins
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || lo.Contains(allowed, origin)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
