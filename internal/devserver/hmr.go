package devserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"peaque.dev/peaque/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     isLocalOrigin,
}

// isLocalOrigin allows same-host and localhost peers, mirroring the
// teacher's websocket.go origin check.
func isLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	reqHost := r.Host
	if i := strings.IndexByte(reqHost, ':'); i >= 0 {
		reqHost = reqHost[:i]
	}
	if host == reqHost {
		return true
	}
	return host == "localhost" || host == "127.0.0.1" || strings.HasPrefix(host, "127.") || strings.HasSuffix(host, ".localhost")
}

// hmrMessage is the JSON frame shape spec §4.E's HMR protocol defines.
type hmrMessage struct {
	Data struct {
		Event string `json:"event"`
		Path  string `json:"path"`
	} `json:"data"`
}

type peer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// hub tracks connected HMR peers and broadcasts notifications to all
// of them, snapshotting under a read lock before writing so a slow
// peer never blocks connects or disconnects, per the teacher's
// websocketManager.Broadcast discipline.
type hub struct {
	mu    sync.RWMutex
	peers map[string]*peer
}

func newHub() *hub {
	return &hub{peers: make(map[string]*peer)}
}

func (h *hub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warning("devserver: hmr upgrade failed: %v", err)
		return
	}

	p := &peer{id: uuid.NewString(), conn: conn}
	h.mu.Lock()
	h.peers[p.id] = p
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.peers, p.id)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// broadcast sends an HMR notification to every connected peer; each
// peer receives notifications in the order broadcast is called (spec
// §5's HMR ordering guarantee).
func (h *hub) broadcast(event, path string) {
	var msg hmrMessage
	msg.Data.Event = event
	msg.Data.Path = path
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Warning("devserver: hmr marshal failed: %v", err)
		return
	}

	h.mu.RLock()
	snapshot := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		snapshot = append(snapshot, p)
	}
	h.mu.RUnlock()

	var dead []string
	for _, p := range snapshot {
		p.mu.Lock()
		err := p.conn.WriteMessage(websocket.TextMessage, data)
		p.mu.Unlock()
		if err != nil {
			dead = append(dead, p.id)
		}
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, id := range dead {
			if p, ok := h.peers[id]; ok {
				_ = p.conn.Close()
				delete(h.peers, id)
			}
		}
		h.mu.Unlock()
	}
}

// closeAll gracefully closes every peer connection, used during
// server shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.peers {
		p.mu.Lock()
		_ = p.conn.SetWriteDeadline(time.Now().Add(500 * time.Millisecond))
		_ = p.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"))
		p.mu.Unlock()
		_ = p.conn.Close()
	}
	h.peers = make(map[string]*peer)
}
