// Package ws streams auction events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
	backlogLimit   = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Format selects the frame encoding of a connection.
type Format int

const (
	// FormatProto sends structpb.Struct messages as binary frames.
	FormatProto Format = iota
	// FormatJSON sends the event JSON as text frames.
	FormatJSON
)

// filter narrows a client to some instances and listings. Empty sets match
// everything.
type filter struct {
	houses   map[string]bool
	listings map[string]bool
}

func (f filter) match(ev domain.Event) bool {
	if len(f.houses) > 0 && !f.houses[ev.AuctionHouse.String()] {
		return false
	}
	if len(f.listings) > 0 && (ev.Listing == nil || !f.listings[ev.Listing.String()]) {
		return false
	}
	return true
}

// subscribeMsg replaces the client's filter.
//
//	{"auction_houses":["..."],"listings":["..."]}
type subscribeMsg struct {
	AuctionHouses []string `json:"auction_houses"`
	Listings      []string `json:"listings"`
}

type frame struct {
	event domain.Event
	raw   []byte
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	format Format

	mu     sync.RWMutex
	filter filter
}

// Hub relays published auction events to connected clients.
type Hub struct {
	bus    domain.SignalBus
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	ready   chan struct{}
}

func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		logger:  logger.With(slog.String("component", "ws")),
		clients: make(map[*client]struct{}),
		ready:   make(chan struct{}),
	}
}

// Run subscribes to the event channel and fans out until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	msgs, err := h.bus.Subscribe(ctx, domain.ChannelAuctionEvents)
	if err != nil {
		return err
	}
	close(h.ready)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				h.logger.Warn("event subscription closed")
				return nil
			}
			var ev domain.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				h.logger.Warn("dropping undecodable event", slog.String("error", err.Error()))
				continue
			}
			h.broadcast(frame{event: ev, raw: raw})
		}
	}
}

func (h *Hub) broadcast(f frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.deliver(f)
	}
}

// ClientCount is the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request. Query parameters:
//
//	format=json      text frames instead of protobuf
//	auction_house=A  initial filter, repeatable
//	listing=L        initial filter, repeatable
//	since=ID         replay the event stream after ID first
//
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		filter: newFilter(subscribeMsg{AuctionHouses: q["auction_house"], Listings: q["listing"]}),
	}
	if q.Get("format") == "json" {
		c.format = FormatJSON
	}

	if since := q.Get("since"); since != "" {
		c.replay(r.Context(), since)
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("client connected", slog.Int("clients", h.ClientCount()))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Info("client disconnected", slog.Int("clients", h.ClientCount()))
}

func newFilter(m subscribeMsg) filter {
	f := filter{houses: map[string]bool{}, listings: map[string]bool{}}
	for _, a := range m.AuctionHouses {
		f.houses[a] = true
	}
	for _, l := range m.Listings {
		f.listings[l] = true
	}
	return f
}

// replay queues stored events after since that pass the filter.
func (c *client) replay(ctx context.Context, since string) {
	msgs, err := c.hub.bus.StreamRead(ctx, domain.StreamAuctionEvents, since, backlogLimit)
	if err != nil {
		c.hub.logger.Warn("stream replay failed", slog.String("error", err.Error()))
		return
	}
	for _, m := range msgs {
		var ev domain.Event
		if json.Unmarshal(m.Payload, &ev) == nil {
			c.deliver(frame{event: ev, raw: m.Payload})
		}
	}
}

func (c *client) deliver(f frame) {
	c.mu.RLock()
	ok := c.filter.match(f.event)
	c.mu.RUnlock()
	if !ok {
		return
	}
	data, err := c.encode(f)
	if err != nil {
		c.hub.logger.Warn("encode frame failed", slog.String("error", err.Error()))
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("dropping event for slow client", slog.String("event", f.event.ID))
	}
}

func (c *client) encode(f frame) ([]byte, error) {
	if c.format == FormatJSON {
		return f.raw, nil
	}
	return EncodeProto(f.raw)
}

// EncodeProto converts one event JSON document into a marshaled
// structpb.Struct.
func EncodeProto(raw []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if json.Unmarshal(message, &sub) != nil {
			continue
		}
		c.mu.Lock()
		c.filter = newFilter(sub)
		c.mu.Unlock()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	msgType := websocket.BinaryMessage
	if c.format == FormatJSON {
		msgType = websocket.TextMessage
	}
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msgType, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
