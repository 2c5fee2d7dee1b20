package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/google/uuid"
)

// Event types sent to clients
const (
	EventConnectionEstablished = "connection_established"
	EventNotification          = "notification"
)

// WebSocketService tracks live connections per user and fans notifications
// out to them
type WebSocketService struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	onChange    func(active int)
	onPush      func(delivered int)
}

// Connection represents a WebSocket connection
type Connection struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	LastSeen  time.Time
	Active    bool
	Events    chan *Event
}

// Event represents a WebSocket event
type Event struct {
	ID        string               `json:"id"`
	Type      string               `json:"type"`
	Data      *domain.Notification `json:"data,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// NewWebSocketService creates a new WebSocket service
func NewWebSocketService() *WebSocketService {
	return &WebSocketService{
		connections: make(map[string]*Connection),
	}
}

// OnConnectionsChanged registers a callback receiving the active connection count
func (ws *WebSocketService) OnConnectionsChanged(fn func(active int)) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.onChange = fn
}

// OnPushed registers a callback receiving the number of delivered events per push
func (ws *WebSocketService) OnPushed(fn func(delivered int)) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.onPush = fn
}

// CreateConnection registers a new connection for userID
func (ws *WebSocketService) CreateConnection(userID string) *Connection {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := time.Now()
	conn := &Connection{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		LastSeen:  now,
		Active:    true,
		Events:    make(chan *Event, 100),
	}
	ws.connections[conn.ID] = conn
	ws.changedLocked()

	return conn
}

// GetConnection retrieves a connection by ID
func (ws *WebSocketService) GetConnection(connID string) (*Connection, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	conn, exists := ws.connections[connID]
	return conn, exists
}

// Touch marks a connection as seen
func (ws *WebSocketService) Touch(connID string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if conn, ok := ws.connections[connID]; ok {
		conn.LastSeen = time.Now()
	}
}

// PushNotification queues n on every live connection of its recipient and
// returns how many connections accepted it. Full queues are skipped.
func (ws *WebSocketService) PushNotification(n domain.Notification) int {
	event := &Event{
		ID:        n.EventID,
		Type:      EventNotification,
		Data:      &n,
		Timestamp: time.Now(),
	}

	ws.mu.RLock()
	delivered := 0
	for _, conn := range ws.connections {
		if !conn.Active || conn.UserID != n.UserID {
			continue
		}
		select {
		case conn.Events <- event:
			delivered++
		default:
		}
	}
	onPush := ws.onPush
	ws.mu.RUnlock()

	if onPush != nil && delivered > 0 {
		onPush(delivered)
	}
	return delivered
}

// CloseConnection closes a WebSocket connection
func (ws *WebSocketService) CloseConnection(connID string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if conn, exists := ws.connections[connID]; exists {
		conn.Active = false
		close(conn.Events)
		delete(ws.connections, connID)
		ws.changedLocked()
	}
}

// GetConnectionStats returns statistics about connections
func (ws *WebSocketService) GetConnectionStats() map[string]interface{} {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	users := make(map[string]struct{})
	for _, conn := range ws.connections {
		users[conn.UserID] = struct{}{}
	}

	return map[string]interface{}{
		"active_connections": len(ws.connections),
		"connected_users":    len(users),
	}
}

// CleanupInactiveConnections removes connections not seen within maxIdle
func (ws *WebSocketService) CleanupInactiveConnections(maxIdle time.Duration) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := time.Now()
	removed := false
	for connID, conn := range ws.connections {
		if !conn.Active || now.Sub(conn.LastSeen) > maxIdle {
			conn.Active = false
			close(conn.Events)
			delete(ws.connections, connID)
			removed = true
		}
	}
	if removed {
		ws.changedLocked()
	}
}

// StartCleanupRoutine runs CleanupInactiveConnections until ctx is done
func (ws *WebSocketService) StartCleanupRoutine(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.CleanupInactiveConnections(maxIdle)
		}
	}
}

func (ws *WebSocketService) changedLocked() {
	if ws.onChange != nil {
		ws.onChange(len(ws.connections))
	}
}
