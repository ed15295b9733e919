package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event is one job progress notification pushed to websocket clients.
type Event struct {
	JobID   string    `json:"job_id"`
	Kind    string    `json:"kind"` // started, chunk, completed, failed
	Message string    `json:"message,omitempty"`
	Chunk   int       `json:"chunk,omitempty"`
	Chunks  int       `json:"chunks,omitempty"`
	Time    time.Time `json:"time"`
}

// hub fans events out to connected websocket clients. Slow clients are
// dropped rather than allowed to stall the pipeline.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan Event)}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to loopback by default; same-origin enforcement is
	// left to deployments that expose it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS upgrades the connection and streams events until the client
// disconnects.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := make(chan Event, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("event client connected")

	// Reader goroutine: discard inbound frames, detect disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			h.drop(conn)
			return
		}
	}
}

// publish delivers the event to every connected client.
func (h *hub) publish(ev Event) {
	ev.Time = time.Now().UTC()
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Buffer full: the client is not keeping up.
			go h.drop(conn)
		}
	}
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	if ok {
		conn.Close()
		log.Debug().Msg("event client dropped")
	}
}

// closeAll disconnects every client, for shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		h.drop(conn)
	}
}
