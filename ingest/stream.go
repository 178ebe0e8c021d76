package ingest

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamFrame is one message on the outcome stream.
type StreamFrame struct {
	Type    string        `json:"type"`
	Payload EventResponse `json:"payload"`
}

// hub fans processed outcomes out to WebSocket subscribers. Writes to a
// dead connection drop the subscriber.
type hub struct {
	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*websocket.Conn]struct{})}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[conn] = struct{}{}
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, conn)
}

func (h *hub) broadcast(resp EventResponse) {
	frame := StreamFrame{Type: "outcome", Payload: resp}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subs {
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("[INGEST] websocket write error: %v", err)
			conn.Close()
			delete(h.subs, conn)
		}
	}
}

// HandleStream upgrades the connection and subscribes it to outcome
// frames until the client disconnects.
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[INGEST] websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	s.hub.add(conn)
	defer s.hub.remove(conn)

	// Drain client messages so pings and close frames are handled; the
	// stream itself is one-way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[INGEST] websocket read error: %v", err)
			}
			return
		}
	}
}
