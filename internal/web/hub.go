package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"migraine-sense/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait bounds a single write to a websocket client.
	writeWait = 10 * time.Second
	// clientQueueSize is how many events may wait for a client before it is
	// dropped as too slow.
	clientQueueSize = 32
)

// PredictionEvent is pushed to websocket clients after every prediction.
type PredictionEvent struct {
	ID           string    `json:"id" yaml:"id"`
	Source       string    `json:"source" yaml:"source"`
	InputProfile string    `json:"input_profile" yaml:"input_profile"`
	Label        string    `json:"label" yaml:"label"`
	Encoded      int       `json:"encoded" yaml:"encoded"`
	InfoFound    bool      `json:"info_found" yaml:"info_found"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
}

// hubClient is one websocket subscriber with its own outgoing queue.
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// writePump drains the queue until it is closed or a write fails.
func (c *hubClient) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Msg("Failed to send message to WebSocket client")
			return
		}
	}
}

// Hub fans prediction events out to connected websocket clients.
type Hub struct {
	upgrader         websocket.Upgrader   // WebSocket upgrader for the live feed
	clients          map[*hubClient]bool  // Connected WebSocket clients
	clientsMu        sync.Mutex           // Guards clients; never held across network writes
	broadcastChannel chan PredictionEvent // Events waiting to be sent
	stopChannel      chan struct{}        // Closed on shutdown
	last             *PredictionEvent     // Sent to new clients on connect
	lastMu           sync.RWMutex         // Guards last
	gauge            metrics.MetricsGauge // nil when metrics are disabled
	running          bool
	mu               sync.Mutex
}

func NewHub(gauge metrics.MetricsGauge) *Hub {
	return &Hub{
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*hubClient]bool),
		broadcastChannel: make(chan PredictionEvent, 100),
		stopChannel:      make(chan struct{}),
		gauge:            gauge,
	}
}

// Start runs the broadcaster until Stop is called.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.clientBroadcaster()
}

// Stop ends broadcasting and closes every client connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopChannel)

	h.clientsMu.Lock()
	for client := range h.clients {
		h.removeLocked(client)
	}
	h.clientsMu.Unlock()
	h.setGauge(0)
}

// Publish queues an event. When the queue is full the event is dropped.
func (h *Hub) Publish(event PredictionEvent) {
	h.lastMu.Lock()
	h.last = &event
	h.lastMu.Unlock()

	select {
	case h.broadcastChannel <- event:
	default:
		log.Warn().Str("id", event.ID).Msg("prediction feed full, dropping event")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *Hub) clientBroadcaster() {
	for {
		select {
		case event := <-h.broadcastChannel:
			h.broadcastToClients(event)
		case <-h.stopChannel:
			return
		}
	}
}

// broadcastToClients queues data for every client without blocking. A
// client whose queue is full is disconnected.
func (h *Hub) broadcastToClients(event PredictionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal prediction event")
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			log.Warn().Str("remote", client.conn.RemoteAddr().String()).Msg("WebSocket client too slow, disconnecting")
			h.removeLocked(client)
		}
	}
}

// removeLocked unregisters c and closes its queue and connection. The
// caller holds clientsMu.
func (h *Hub) removeLocked(c *hubClient) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
	h.addGauge(-1)
}

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, clientQueueSize)}

	// Send the latest prediction so new clients are not empty.
	h.lastMu.RLock()
	last := h.last
	h.lastMu.RUnlock()
	if last != nil {
		if data, err := json.Marshal(last); err == nil {
			client.send <- data
		}
	}

	h.clientsMu.Lock()
	h.clients[client] = true
	h.addGauge(1)
	h.clientsMu.Unlock()

	go client.writePump()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.clientsMu.Lock()
	h.removeLocked(client)
	h.clientsMu.Unlock()
}

func (h *Hub) setGauge(v float64) {
	if h.gauge != nil {
		h.gauge.Set(v)
	}
}

func (h *Hub) addGauge(v float64) {
	if h.gauge != nil {
		h.gauge.Add(v)
	}
}
