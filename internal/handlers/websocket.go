package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/interfaces"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler pushes cache lifecycle events to connected chart
// clients so refreshes show up without polling.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	hitLimiter       *rate.Limiter // throttles chatty hit/miss events; lifecycle events always go out
	serverInstanceID string        // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		hitLimiter:       rate.NewLimiter(rate.Limit(20), 40),
		serverInstanceID: uuid.New().String(),
	}

	logger.Debug().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	if eventService != nil {
		if err := eventService.SubscribeAll(h.onEvent); err != nil {
			logger.Warn().Err(err).Msg("Failed to subscribe WebSocket handler to events")
		}
	}

	return h
}

// HandleWebSocket upgrades the connection and registers the client.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("WebSocket client connected")

	// Greet with the instance ID so clients can detect restarts.
	h.send(conn, map[string]interface{}{
		"type":               "connected",
		"server_instance_id": h.serverInstanceID,
		"timestamp":          time.Now().UTC(),
	})

	// Reader loop: we ignore client messages but need the loop to detect
	// disconnects.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) onEvent(ctx context.Context, event interfaces.Event) error {
	// Every cache read publishes a hit or miss; under load that would
	// flood the socket.
	if event.Type == interfaces.EventCacheHit || event.Type == interfaces.EventCacheMiss {
		if !h.hitLimiter.Allow() {
			return nil
		}
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, event)
	}
	return nil
}

func (h *WebSocketHandler) send(conn *websocket.Conn, payload interface{}) {
	h.mu.RLock()
	lock := h.clientMutex[conn]
	h.mu.RUnlock()
	if lock == nil {
		return
	}

	lock.Lock()
	defer lock.Unlock()

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(payload); err != nil {
		h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
		go h.removeClient(conn)
	}
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, conn)
	delete(h.clientMutex, conn)
	count := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Debug().Int("clients", count).Msg("WebSocket client disconnected")
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
