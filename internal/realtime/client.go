// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package realtime

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/huntboard/huntboard/internal/metrics"
)

// maxSubscriptionsPerClient bounds per-connection registry growth. A feed
// page watches a few dozen products at most; anything past the cap is
// dropped with a counter bump.
const maxSubscriptionsPerClient = 200

// clientIDCounter orders clients for deterministic fan-out.
var clientIDCounter atomic.Uint64

// Client pairs one WebSocket connection with its subscription set. The
// read pump handles inbound frames; the write pump drains send. The hub
// signals shutdown by closing done, never by closing send, so concurrent
// enqueues are always safe.
type Client struct {
	id       uint64
	identity string
	hub      *Hub
	conn     *websocket.Conn
	send     chan Message
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	products map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, identity string) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		identity: identity,
		hub:      hub,
		conn:     conn,
		send:     make(chan Message, hub.cfg.SendBuffer),
		done:     make(chan struct{}),
		products: make(map[string]struct{}),
	}
}

// start launches the read and write pumps.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}

// stop tells the write pump to send a close frame and exit. Safe to call
// from any goroutine, any number of times.
func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Client) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// subscribe records the new product ids and registers them with the hub's
// registry in one critical section, so a concurrent drain either sees
// none of the batch or all of it. Returns the ids actually added.
func (c *Client) subscribe(productIDs []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped() {
		return nil
	}

	added := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := c.products[id]; ok {
			continue
		}
		if len(c.products) >= maxSubscriptionsPerClient {
			metrics.WSErrors.WithLabelValues("subscription_cap").Inc()
			break
		}
		c.products[id] = struct{}{}
		added = append(added, id)
	}

	c.hub.registry.Add(added)
	return added
}

// unsubscribe releases the product ids the client actually holds.
func (c *Client) unsubscribe(productIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if _, ok := c.products[id]; !ok {
			continue
		}
		delete(c.products, id)
		removed = append(removed, id)
	}

	c.hub.registry.Release(removed)
}

// subscribedTo reports whether the client watches the product.
func (c *Client) subscribedTo(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.products[productID]
	return ok
}

// drainSubscriptions empties the subscription set and returns what it
// held. The caller releases the ids from the registry.
func (c *Client) drainSubscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.products))
	for id := range c.products {
		ids = append(ids, id)
	}
	c.products = make(map[string]struct{})
	return ids
}

// handle dispatches one inbound frame. Unknown types are ignored rather
// than refused; old clients keep working across protocol additions.
func (c *Client) handle(msg Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		added := c.subscribe(msg.ProductIDs)
		c.reply(Message{Type: MessageTypeSubscribed, Data: c.hub.velocitySnapshot(added)})
	case MessageTypeUnsubscribe:
		c.unsubscribe(msg.ProductIDs)
	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})
	}
}

// reply enqueues a frame for this client without blocking the read pump.
func (c *Client) reply(msg Message) {
	select {
	case c.send <- msg:
	default:
		metrics.WSErrors.WithLabelValues("send_buffer_full").Inc()
	}
}

// readPump consumes inbound frames until the connection errors or closes,
// then removes the client from the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("read_failed").Inc()
				c.hub.log.Debug().Err(err).Uint64("client", c.id).Msg("live connection read failed")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			// One malformed frame does not cost the connection.
			metrics.WSErrors.WithLabelValues("bad_frame").Inc()
			continue
		}
		c.handle(msg)
	}
}

// writePump drains send onto the wire and keeps the connection alive with
// pings. On done it sends a close frame so the client knows the server is
// going away rather than crashing.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				return
			}

			payload, err := json.Marshal(msg)
			if err != nil {
				c.hub.log.Error().Err(err).Str("type", msg.Type).Msg("live frame marshal failed")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.WSErrors.WithLabelValues("write_failed").Inc()
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
