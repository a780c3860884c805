package control

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/command"
	"github.com/dokzlo13/softboxd/internal/device"
)

const (
	clientQueue  = 16
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Hub fans status notifications out to websocket subscribers. Text frames sent by a
// client are treated as control writes.
type Hub struct {
	server   *Server
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]*wsClient
	nextID  atomic.Int64
}

func newHub(s *Server) *Hub {
	return &Hub{
		server: s,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[int64]*wsClient),
	}
}

// Notify encodes the snapshot and queues it for every subscriber. It never blocks;
// slow clients drop notifications.
func (h *Hub) Notify(s device.Snapshot, src device.Source) {
	body, err := command.EncodeStatus(s)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode status notification")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.send(body)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &wsClient{
		id:     h.nextID.Add(1),
		conn:   conn,
		hub:    h,
		sendCh: make(chan []byte, clientQueue),
		done:   make(chan struct{}),
	}

	h.server.dev.WithSnapshot(func(s device.Snapshot) {
		if body, err := command.EncodeStatus(s); err == nil {
			c.send(body)
		}
		h.mu.Lock()
		h.clients[c.id] = c
		h.mu.Unlock()
	})

	log.Debug().Int64("client", c.id).Msg("Status subscriber connected")

	go c.writePump()
	c.readPump()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	log.Debug().Int64("client", c.id).Msg("Status subscriber disconnected")
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

type wsClient struct {
	id     int64
	conn   *websocket.Conn
	hub    *Hub
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *wsClient) send(msg []byte) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		log.Debug().Int64("client", c.id).Msg("Dropping status notification")
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	c.conn.SetReadLimit(command.MaxPayload)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Int64("client", c.id).Msg("WebSocket read error")
			}
			return
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if !c.hub.server.limiter.Allow() {
			c.send([]byte(`{"error":"rate limit exceeded"}`))
			continue
		}
		if _, _, err := c.hub.server.norm.HandleControl(msg); err != nil {
			body, _ := json.Marshal(map[string]string{"error": err.Error()})
			c.send(body)
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
