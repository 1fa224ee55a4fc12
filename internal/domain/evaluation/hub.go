package evaluation

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/middleware"
	"github.com/cvlift/cvlift-api/internal/pkg/response"
)

// Event types streamed over the progress socket.
const (
	EventStarted     = "evaluation_started"
	EventAspectsDone = "aspects_done"
	EventFinished    = "evaluation_finished"
	EventFailed      = "evaluation_failed"
)

// Event is one progress update for an evaluation run.
type Event struct {
	Type    string      `json:"type"`
	FileID  string      `json:"file_id,omitempty"`
	Group   string      `json:"group,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

const writeWait = 5 * time.Second

// Hub fans evaluation progress out to a user's open sockets. A user with no
// socket simply misses the events; results are still persisted.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		conns: make(map[string]map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeWS upgrades the request and keeps the connection registered until the
// client goes away. The read loop only consumes control frames; the socket
// is server-to-client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	h.register(userID, conn)
	log.Debug().Str("user_id", userID).Msg("progress socket connected")

	defer func() {
		h.unregister(userID, conn)
		conn.Close()
		log.Debug().Str("user_id", userID).Msg("progress socket disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends the event to every open socket of the user. Write failures
// drop the connection; the client reconnects if it still cares.
func (h *Hub) Publish(userID string, event Event) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteJSON(event); err != nil {
			h.unregister(userID, c)
			c.Close()
		}
	}
}

func (h *Hub) register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]bool)
	}
	h.conns[userID][conn] = true
}

func (h *Hub) unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], conn)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}
