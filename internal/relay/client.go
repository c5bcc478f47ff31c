package relay

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// BackpressureStats counts a client's queue behaviour, aggregated into the
// Prometheus counters exposed by internal/metrics.
type BackpressureStats struct {
	TrackBatchesDropped atomic.Uint64
	TrackBatchesSent    atomic.Uint64
	HighPrioritySent    atomic.Uint64
}

// Client is one relay WebSocket connection: a subscription plus the
// two-priority-queue writer required by the backpressure discipline
// (spec §4.5, §5).
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub

	subMu sync.RWMutex
	sub   *model.ClientSubscription

	high   chan []byte
	normal chan []byte

	Stats BackpressureStats

	closeOnce sync.Once
	closed    atomic.Bool

	playbackMu     sync.Mutex
	playbackCancel context.CancelFunc
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		conn:   conn,
		hub:    hub,
		sub:    model.NewDefaultSubscription(id),
		high:   make(chan []byte, hub.cfg.HighQueueCapacity),
		normal: make(chan []byte, hub.cfg.NormalQueueCapacity),
	}
}

// Subscription returns a copy of the client's current subscription state.
func (c *Client) Subscription() *model.ClientSubscription {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	sub := *c.sub
	return &sub
}

func (c *Client) setSubscription(sub *model.ClientSubscription) {
	c.subMu.Lock()
	c.sub = sub
	c.subMu.Unlock()
}

// isHighPriority classifies an envelope per the backpressure discipline:
// everything except TrackDeltaBatch is never dropped.
func isHighPriority(e *wire.Envelope) bool {
	return e.TrackDeltaBatch == nil
}

// SendEnvelope routes e to the high- or normal-priority queue. A normal-
// priority send that finds the queue full drops the batch and increments
// TrackBatchesDropped. A high-priority send that cannot be queued closes
// the client instead of losing the frame. SendEnvelope never blocks.
func (c *Client) SendEnvelope(e *wire.Envelope) bool {
	if c.closed.Load() {
		return false
	}
	data := wire.Marshal(e)

	if isHighPriority(e) {
		sent := c.safeSend(c.high, data, &c.Stats.HighPrioritySent, nil)
		if !sent {
			log.Printf("[relay] high-priority queue full for client %s: disconnecting", c.ID)
			c.Close()
			return false
		}
		if c.hub != nil && c.hub.metrics != nil {
			c.hub.metrics.HighPrioritySent.Inc()
		}
		return true
	}

	sent := c.safeSend(c.normal, data, &c.Stats.TrackBatchesSent, &c.Stats.TrackBatchesDropped)
	if c.hub != nil && c.hub.metrics != nil {
		if sent {
			c.hub.metrics.TrackBatchesSent.Inc()
		} else {
			c.hub.metrics.TrackBatchesDropped.Inc()
		}
	}
	return sent
}

// safeSend never panics even if Close() races it past the c.closed check:
// sending on a closed channel is recovered and reported as a failed send.
func (c *Client) safeSend(ch chan []byte, data []byte, sentCounter, droppedCounter *atomic.Uint64) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	if c.closed.Load() {
		return false
	}
	select {
	case ch <- data:
		if sentCounter != nil {
			sentCounter.Add(1)
		}
		return true
	default:
		if droppedCounter != nil {
			droppedCounter.Add(1)
			log.Printf("[relay] dropping TrackDeltaBatch for client %s: queue full", c.ID)
		}
		return false
	}
}

// Close tears the client down exactly once: cancels any running playback,
// closes both queues, and marks the client closed so further sends are
// no-ops instead of panics.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.stopPlayback()
		close(c.high)
		close(c.normal)
	})
}

func (c *Client) stopPlayback() {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()
	if c.playbackCancel != nil {
		c.playbackCancel()
		c.playbackCancel = nil
	}
}

func (c *Client) startPlayback(cancel context.CancelFunc) {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()
	if c.playbackCancel != nil {
		c.playbackCancel()
	}
	c.playbackCancel = cancel
}

// readPump reads binary Envelope frames from the connection until it closes
// or errors. The only inbound payload of interest is SubscriptionRequest;
// everything else is ignored, per spec.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[relay] client %s read error: %v", c.ID, err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		env, err := wire.Unmarshal(data)
		if err != nil {
			c.SendEnvelope(&wire.Envelope{
				SchemaVersion:   wire.SchemaVersion,
				SubscriptionAck: &wire.SubscriptionAck{Success: false, Error: err.Error()},
			})
			continue
		}
		if env.SubscriptionRequest != nil {
			c.hub.handleSubscriptionRequest(c, env.SubscriptionRequest)
		}
	}
}

// writePump drains the high-priority queue ahead of the normal-priority
// queue, and pings the connection on pingPeriod.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.high:
			if !c.writeOrStop(msg, ok) {
				return
			}
			continue
		default:
		}

		select {
		case msg, ok := <-c.high:
			if !c.writeOrStop(msg, ok) {
				return
			}
		case msg, ok := <-c.normal:
			if !c.writeOrStop(msg, ok) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeOrStop(msg []byte, ok bool) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if !ok {
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		return false
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return false
	}
	return true
}
