package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/redactor/internal/workspace"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeWorkspaceState carries a workspace.State snapshot
	EventTypeWorkspaceState EventType = "workspace_state"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping message
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkspaceID string    `json:"workspace_id"`
	Data        any       `json:"data"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	Viewers  int    `json:"viewers"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string `json:"type"`
}

// HubConfig contains configuration for the WebSocket hub
type HubConfig struct {
	ReadBufferSize       int
	WriteBufferSize      int
	PingInterval         time.Duration
	PongTimeout          time.Duration
	WriteTimeout         time.Duration
	MaxMessageSize       int64
	AllowedOrigins       []string
	BroadcastConnections bool
}

// StateSource resolves workspace ids for connecting clients
type StateSource interface {
	Snapshot(id string) (workspace.State, bool)
}

// Client is one WebSocket connection bound to a single workspace
type Client struct {
	ID          string
	WorkspaceID string
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	conn *websocket.Conn
	pong chan struct{}
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedEvents      int64     `json:"dropped_events"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}
