package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/identity"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// NotificationLister returns the stored notifications of a user
type NotificationLister interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
}

// HTTPServer handles HTTP to WebSocket upgrades and the notification inbox
type HTTPServer struct {
	wsService  *WebSocketService
	verifier   *identity.TokenVerifier
	inbox      NotificationLister
	upgrader   websocket.Upgrader
	port       int
	server     *http.Server
	middleware []func(http.Handler) http.Handler
	log        *logrus.Entry
}

// NewHTTPServer creates a new HTTP server for WebSocket connections. inbox
// may be nil.
func NewHTTPServer(wsService *WebSocketService, verifier *identity.TokenVerifier, inbox NotificationLister, port int) *HTTPServer {
	return &HTTPServer{
		wsService: wsService,
		verifier:  verifier,
		inbox:     inbox,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		port: port,
		log:  logger.Component("websocket"),
	}
}

// Use wraps the handler with middleware, outermost last
func (s *HTTPServer) Use(mw func(http.Handler) http.Handler) {
	s.middleware = append(s.middleware, mw)
}

// Handler returns the routes served by the server
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/notifications", s.handleNotifications)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	var h http.Handler = mux
	for _, mw := range s.middleware {
		h = mw(h)
	}
	return h
}

// Start starts the HTTP server
func (s *HTTPServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("WebSocket server error")
		}
	}()

	s.log.Infof("WebSocket server started on %s", listener.Addr())
	return nil
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// authenticate reads a session token from the Authorization header or the
// token query parameter
func (s *HTTPServer) authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return "", domain.ErrNotAuthenticated
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsConn := s.wsService.CreateConnection(userID)
	defer s.wsService.CloseConnection(wsConn.ID)

	s.handleConnection(wsConn, conn)
}

// handleConnection pumps queued events to the client until it disconnects
func (s *HTTPServer) handleConnection(wsConn *Connection, conn *websocket.Conn) {
	log := s.log.WithFields(logrus.Fields{
		logger.FieldUserID: wsConn.UserID,
		"connection_id":    wsConn.ID,
	})

	established := &Event{
		ID:        wsConn.ID,
		Type:      EventConnectionEstablished,
		Timestamp: time.Now(),
	}
	if err := s.sendEvent(conn, established); err != nil {
		log.WithError(err).Debug("Failed to send connection event")
		return
	}

	done := make(chan struct{})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		s.wsService.Touch(wsConn.ID)
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Debug("WebSocket closed unexpectedly")
				}
				return
			}
			s.wsService.Touch(wsConn.ID)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-wsConn.Events:
			if !ok {
				return
			}
			if err := s.sendEvent(conn, event); err != nil {
				log.WithError(err).Debug("Failed to send event")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *HTTPServer) sendEvent(conn *websocket.Conn, event *Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// handleNotifications returns the caller's stored notifications, newest first
func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.inbox == nil {
		writeJSON(w, http.StatusOK, []domain.Notification{})
		return
	}

	items, err := s.inbox.List(r.Context(), userID)
	if err != nil {
		s.log.WithError(err).WithField(logger.FieldUserID, userID).Error("Failed to list notifications")
		http.Error(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.wsService.GetConnectionStats())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Debug("Failed to encode response")
	}
}
