// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package realtime

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/huntboard/huntboard/internal/auth"
	"github.com/huntboard/huntboard/internal/cache"
	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/events"
	"github.com/huntboard/huntboard/internal/logging"
	"github.com/huntboard/huntboard/internal/metrics"
)

// Velocity counters cover a rolling ten-minute window in 30-second
// buckets, capped to the hottest products.
const (
	velocityWindow  = 10 * time.Minute
	velocityBuckets = 20
	velocityMaxKeys = 5000

	// trendingSize bounds the periodic leaderboard frame.
	trendingSize = 10

	broadcastBuffer = 256
)

// delivery pairs an outbound frame with its audience. An empty product
// means every connected client.
type delivery struct {
	msg     Message
	product string
}

// Hub owns the live connections, the subscription registry, and the
// velocity counters. It implements events.Notifier so the event router
// feeds it without either package importing the other's internals.
type Hub struct {
	log      zerolog.Logger
	cfg      config.RealtimeConfig
	registry *Registry

	broadcast chan delivery

	mu      sync.RWMutex
	clients map[*Client]bool

	velocity *cache.SlidingWindowStore
	visitors *cache.UniqueValueStore

	upgrader websocket.Upgrader
}

var _ events.Notifier = (*Hub)(nil)

// NewHub creates a hub around the given registry. Zero config fields fall
// back to the documented defaults so a partially filled config cannot
// produce a dead connection.
func NewHub(cfg config.RealtimeConfig, registry *Registry) *Hub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = (cfg.PongTimeout * 9) / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 1024
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.TrendingInterval <= 0 {
		cfg.TrendingInterval = 30 * time.Second
	}
	if registry == nil {
		registry = NewRegistry()
	}

	return &Hub{
		log:       logging.WithComponent("realtime"),
		cfg:       cfg,
		registry:  registry,
		broadcast: make(chan delivery, broadcastBuffer),
		clients:   make(map[*Client]bool),
		velocity:  cache.NewSlidingWindowStore(velocityWindow, velocityBuckets, velocityMaxKeys),
		visitors:  cache.NewUniqueValueStore(velocityWindow, velocityBuckets, velocityMaxKeys),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Live frames carry only public product data; cross-origin
			// dialers get nothing a plain GET would not.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve runs the fan-out loop under the supervision tree. Frames are
// delivered in client-id order so two subscribers of the same product
// observe the same sequence.
func (h *Hub) Serve(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.TrendingInterval)
	defer ticker.Stop()

	h.log.Info().
		Dur("trending_interval", h.cfg.TrendingInterval).
		Msg("live hub started")

	for {
		select {
		case <-ctx.Done():
			closed := h.closeAll()
			h.log.Info().Int("clients_closed", closed).Msg("live hub stopped")
			return ctx.Err()

		case d := <-h.broadcast:
			h.deliver(d)

		case <-ticker.C:
			h.pushTrending()
			h.velocity.CleanupInactive()
		}
	}
}

func (h *Hub) String() string { return "live-hub" }

// ServeHTTP upgrades the request and hands the connection to the pumps.
// Identity comes from the request context; anonymous connections are
// allowed, they just show up without an identity in logs.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		metrics.WSErrors.WithLabelValues("upgrade_failed").Inc()
		h.log.Warn().Err(err).Msg("websocket upgrade refused")
		return
	}

	identity := auth.IdentityFromContext(r.Context())
	client := newClient(h, conn, identity.Key())
	h.addClient(client)
	client.start()
}

// NotifyInteraction feeds the velocity counters and, when anyone watches
// the product, pushes an interaction frame. Part of events.Notifier.
func (h *Hub) NotifyInteraction(evt *events.InteractionRecorded) {
	if evt == nil || evt.ProductID == "" {
		return
	}

	h.velocity.Increment(evt.ProductID)
	if evt.Identity != "" {
		h.visitors.Add(evt.ProductID, evt.Identity)
	}

	if !h.registry.Watched(evt.ProductID) {
		return
	}

	h.enqueue(delivery{
		product: evt.ProductID,
		msg: Message{
			Type: MessageTypeInteraction,
			Data: InteractionUpdate{
				ProductID:      evt.ProductID,
				Kind:           evt.Kind,
				Quality:        evt.Quality,
				RecordedAt:     evt.RecordedAt,
				Velocity:       h.velocity.Count(evt.ProductID),
				UniqueVisitors: h.visitors.CountUnique(evt.ProductID),
			},
		},
	})
}

// NotifyProduct pushes a catalog change to the product's subscribers.
// Part of events.Notifier.
func (h *Hub) NotifyProduct(evt *events.ProductUpdated) {
	if evt == nil || evt.ProductID == "" {
		return
	}
	if !h.registry.Watched(evt.ProductID) {
		return
	}

	h.enqueue(delivery{
		product: evt.ProductID,
		msg: Message{
			Type: MessageTypeProduct,
			Data: ProductUpdate{
				ProductID: evt.ProductID,
				Change:    evt.Change,
				ChangedAt: evt.ChangedAt,
			},
		},
	})
}

// enqueue hands a frame to the fan-out loop without blocking the caller.
// The event router must never stall on a slow hub.
func (h *Hub) enqueue(d delivery) {
	select {
	case h.broadcast <- d:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		h.log.Warn().Str("type", d.msg.Type).Msg("live broadcast buffer full, dropping update")
	}
}

// deliver fans one frame out to its audience in client-id order. A client
// whose send buffer is full is disconnected; it is cheaper for the client
// to reconnect than for the hub to queue unboundedly.
func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if d.product != "" && !client.subscribedTo(d.product) {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	for _, client := range targets {
		select {
		case client.send <- d.msg:
		default:
			metrics.WSErrors.WithLabelValues("send_buffer_full").Inc()
			h.log.Warn().Uint64("client", client.id).Msg("live client send buffer full, disconnecting")
			h.removeClient(client)
		}
	}
}

// pushTrending broadcasts the velocity leaderboard to every client.
func (h *Hub) pushTrending() {
	if h.ClientCount() == 0 {
		return
	}

	leaders := h.velocityLeaders(trendingSize)
	if len(leaders) == 0 {
		return
	}

	h.enqueue(delivery{msg: Message{Type: MessageTypeTrending, Data: leaders}})
}

// velocityLeaders returns the hottest products by windowed interaction
// count, ties broken by product id for stable output.
func (h *Hub) velocityLeaders(n int) []ProductVelocity {
	keys := h.velocity.Keys()
	leaders := make([]ProductVelocity, 0, len(keys))
	for _, key := range keys {
		count := h.velocity.Count(key)
		if count == 0 {
			continue
		}
		leaders = append(leaders, ProductVelocity{
			ProductID:      key,
			Velocity:       count,
			UniqueVisitors: h.visitors.CountUnique(key),
		})
	}

	sort.Slice(leaders, func(i, j int) bool {
		if leaders[i].Velocity != leaders[j].Velocity {
			return leaders[i].Velocity > leaders[j].Velocity
		}
		return leaders[i].ProductID < leaders[j].ProductID
	})

	if len(leaders) > n {
		leaders = leaders[:n]
	}
	return leaders
}

// velocitySnapshot returns current numbers for the given products, used
// as the subscribe acknowledgment payload.
func (h *Hub) velocitySnapshot(productIDs []string) []ProductVelocity {
	snapshot := make([]ProductVelocity, 0, len(productIDs))
	for _, id := range productIDs {
		snapshot = append(snapshot, ProductVelocity{
			ProductID:      id,
			Velocity:       h.velocity.Count(id),
			UniqueVisitors: h.visitors.CountUnique(id),
		})
	}
	return snapshot
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	h.log.Debug().
		Uint64("client", c.id).
		Str("identity", c.identity).
		Int("total_clients", total).
		Msg("live client connected")
}

// removeClient detaches a client, releases its subscriptions, and stops
// its write pump. Idempotent: the read pump's exit path and a fan-out
// disconnect may both land here.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	c.stop()
	h.registry.Release(c.drainSubscriptions())
	metrics.WSConnections.Dec()
	h.log.Debug().
		Uint64("client", c.id).
		Int("total_clients", total).
		Msg("live client disconnected")
}

// closeAll detaches every client during shutdown and returns how many
// there were.
func (h *Hub) closeAll() int {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		client.stop()
		h.registry.Release(client.drainSubscriptions())
		metrics.WSConnections.Dec()
	}
	return len(clients)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats summarizes hub state for the health endpoint.
type Stats struct {
	Clients       int `json:"clients"`
	Products      int `json:"products"`
	Subscriptions int `json:"subscriptions"`
}

// Stats returns a point-in-time summary of connections and subscriptions.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:       h.ClientCount(),
		Products:      h.registry.Products(),
		Subscriptions: h.registry.Total(),
	}
}
