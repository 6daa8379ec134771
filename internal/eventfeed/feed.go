// Package eventfeed is the in-process hub behind the admin offer feed. The
// negotiation service publishes one price-free event per processed offer;
// websocket subscribers watch session liveness without seeing floors,
// coupons or amounts.
package eventfeed

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/pkg/types"
)

const (
	// subscriberBuffer is the per-subscriber event queue. A full queue means
	// the subscriber is dropped, never that a publisher blocks.
	subscriberBuffer = 64

	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub fans offer events out to websocket subscribers.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	events chan types.OfferEvent
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// New creates an event hub.
func New(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Publish fans one event out without blocking. Subscribers too slow to drain
// their queue are disconnected.
func (h *Hub) Publish(ev types.OfferEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	eventsPublishedTotal.Inc()

	for sub := range h.subs {
		select {
		case sub.events <- ev:
		default:
			subscribersDroppedTotal.Inc()
			sub.close()
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves
// or falls behind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed-upgrade-failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		events: make(chan types.OfferEvent, subscriberBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	subscribersGauge.Set(float64(len(h.subs)))
	h.mu.Unlock()

	h.logger.Info("feed-subscriber-connected",
		zap.String("remote", r.RemoteAddr))

	go h.readLoop(conn, sub)
	h.writeLoop(conn, sub)

	h.mu.Lock()
	delete(h.subs, sub)
	subscribersGauge.Set(float64(len(h.subs)))
	h.mu.Unlock()

	_ = conn.Close()
	h.logger.Info("feed-subscriber-disconnected",
		zap.String("remote", r.RemoteAddr))
}

// readLoop drains client frames so pings are answered; the feed carries no
// inbound protocol.
func (h *Hub) readLoop(conn *websocket.Conn, sub *subscriber) {
	defer sub.close()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			return
		case ev := <-sub.events:
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("feed-encode-failed", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

			eventsDeliveredTotal.Inc()
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SubscriberCount returns the number of connected feed clients.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close disconnects all subscribers and stops accepting new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for sub := range h.subs {
		sub.close()
	}

	h.subs = make(map[*subscriber]struct{})
	subscribersGauge.Set(0)
}
