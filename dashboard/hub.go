package dashboard

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dictate/log"
	"dictate/status"
)

const (
	clientQueue  = 8
	writeTimeout = 5 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan status.Snapshot
}

// hub fans sink snapshots out to websocket clients. Each client has its
// own writer goroutine; a client whose queue is full loses its oldest
// snapshot.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) Observe(ev status.Event) {
	h.broadcast(ev.Snapshot)
}

func (h *hub) broadcast(snap status.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(snap)
	}
}

func (c *client) enqueue(snap status.Snapshot) {
	for {
		select {
		case c.send <- snap:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// register adds the client before reading its first snapshot, so a change
// landing in between is still pushed.
func (h *hub) register(conn *websocket.Conn, current func() status.Snapshot) *client {
	c := &client{conn: conn, send: make(chan status.Snapshot, clientQueue)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	first := current()
	h.mu.RLock()
	if _, ok := h.clients[c]; ok {
		c.enqueue(first)
	}
	h.mu.RUnlock()

	log.Debugf("dashboard client connected, total %d", n)
	go c.writeLoop()
	return c
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Debugf("dashboard client disconnected, total %d", n)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) writeLoop() {
	for snap := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(snap); err != nil {
			c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
