package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/template-marketplace/internal/catalog"
	"github.com/terra-clan/template-marketplace/internal/feed"
	"github.com/terra-clan/template-marketplace/internal/models"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveMessage is one frame on the live stream
type LiveMessage struct {
	Type     string      `json:"type"`
	ClientID string      `json:"clientId,omitempty"`
	Event    *feed.Event `json:"event,omitempty"`
}

type liveClient struct {
	id     string
	send   chan []byte
	filter *models.QuerySpec
	once   sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans feed events out to connected websocket clients.
// A client whose buffer is full is dropped rather than blocking the feed.
type Hub struct {
	lookup func(id int) *models.Record
	buffer int

	mu      sync.RWMutex
	clients map[string]*liveClient
}

// NewHub creates a hub. lookup resolves event template IDs for filtered clients.
func NewHub(lookup func(id int) *models.Record, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		lookup:  lookup,
		buffer:  buffer,
		clients: make(map[string]*liveClient),
	}
}

// Publish delivers e to every client whose filter it matches
func (h *Hub) Publish(e feed.Event) {
	data, err := json.Marshal(LiveMessage{Type: "deployment", Event: &e})
	if err != nil {
		slog.Error("failed to marshal live event", "error", err)
		return
	}

	var rec *models.Record
	if h.lookup != nil {
		rec = h.lookup(e.TemplateID)
	}

	var slow []*liveClient

	h.mu.RLock()
	for _, c := range h.clients {
		if c.filter != nil && (rec == nil || !catalog.Matches(rec, *c.filter)) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("dropping slow live client", "client_id", c.id)
		h.unregister(c)
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

func (h *Hub) register(filter *models.QuerySpec) *liveClient {
	c := &liveClient{
		id:     uuid.New().String(),
		send:   make(chan []byte, h.buffer),
		filter: filter,
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *liveClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.close()
	}
	h.mu.Unlock()
}

// liveFilter parses the optional filter query. No filter parameters means every event.
func liveFilter(r *http.Request) (*models.QuerySpec, error) {
	q := r.URL.Query()
	if q.Get("category") == "" && q.Get("source") == "" && q.Get("search") == "" {
		return nil, nil
	}
	spec, err := models.ParseQuerySpec(q.Get("category"), q.Get("source"), q.Get("search"), "")
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	filter, err := liveFilter(r)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, "validation_error", verr.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	client := s.hub.register(filter)
	defer s.hub.unregister(client)

	slog.Info("live websocket connected", "client_id", client.id, "filtered", filter != nil)

	if err := writeLiveMessage(conn, LiveMessage{Type: "connected", ClientID: client.id}); err != nil {
		return
	}

	// Reader: the stream is one-way, reads only detect close and keep pongs flowing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("live websocket read error", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			slog.Info("live websocket disconnected", "client_id", client.id)
			return
		case data, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("failed to send live message", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeLiveMessage(conn *websocket.Conn, msg LiveMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal live message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send live message", "error", err)
		return err
	}
	return nil
}
