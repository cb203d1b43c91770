package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/Goosie/NostrQuizAndVote/pkg/logger"
	"github.com/Goosie/NostrQuizAndVote/pkg/metrics"
)

// Reconnect tuning constants.
const (
	initialReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay     = 30 * time.Second
	defaultDialTimeout    = 10 * time.Second
)

// conn maintains one relay connection, reconnecting with exponential backoff.
// A relay that never answers is simply retried in the background and excluded
// from results in the meantime; that is the eventual-consistency design point,
// not an error surfaced to callers.
type conn struct {
	url string
	bus *Bus
	log logger.Logger

	mu      sync.Mutex
	ws      *websocket.Conn
	pending map[string]chan error

	done chan struct{}
}

func newConn(url string, bus *Bus) *conn {
	return &conn{
		url:     url,
		bus:     bus,
		log:     bus.log.Named("relay"),
		pending: make(map[string]chan error),
		done:    make(chan struct{}),
	}
}

// run dials and re-dials the relay until the context or the bus closes.
func (c *conn) run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialReconnectDelay
	bo.MaxInterval = maxReconnectDelay
	bo.MaxElapsedTime = 0 // retry forever

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: defaultDialTimeout}
		ws, _, err := dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			metrics.RecordRelayReconnect()
			c.log.Debug(ctx, "relay dial failed",
				logger.String("relay", c.url),
				logger.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(bo.NextBackOff()):
			}
			continue
		}

		bo.Reset()
		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()
		c.bus.connUp()
		c.log.Info(ctx, "relay connected", logger.String("relay", c.url))

		// Replay standing subscriptions so long-lived queries survive reconnects.
		c.bus.replaySubscriptions(c)

		// Unblock the read loop when the process shuts down.
		watcherDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
			case <-c.done:
			case <-watcherDone:
			}
			_ = ws.Close()
		}()

		c.readLoop(ctx, ws)
		close(watcherDone)

		c.mu.Lock()
		c.ws = nil
		for id, ch := range c.pending {
			ch <- ErrNotConnected
			delete(c.pending, id)
		}
		c.mu.Unlock()
		c.bus.connDown()
	}
}

// readLoop consumes relay messages until the connection drops.
func (c *conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.log.Debug(ctx, "relay read ended",
				logger.String("relay", c.url),
				logger.Error(err),
			)
			return
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil || len(frame) == 0 {
			c.log.Warn(ctx, "malformed relay frame", logger.String("relay", c.url))
			continue
		}

		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}

		switch label {
		case "EVENT":
			if len(frame) < 3 {
				continue
			}
			var subID string
			if err := json.Unmarshal(frame[1], &subID); err != nil {
				continue
			}
			var ev Event
			if err := json.Unmarshal(frame[2], &ev); err != nil {
				c.log.Warn(ctx, "malformed event from relay", logger.String("relay", c.url))
				continue
			}
			c.bus.dispatch(subID, &ev)

		case "OK":
			if len(frame) < 3 {
				continue
			}
			var eventID string
			var accepted bool
			if err := json.Unmarshal(frame[1], &eventID); err != nil {
				continue
			}
			if err := json.Unmarshal(frame[2], &accepted); err != nil {
				continue
			}
			c.resolve(eventID, accepted)

		case "EOSE":
			// End of stored events; live events follow on the same REQ.

		case "NOTICE":
			var msg string
			if len(frame) > 1 {
				_ = json.Unmarshal(frame[1], &msg)
			}
			c.log.Warn(ctx, "relay notice",
				logger.String("relay", c.url),
				logger.String("notice", msg),
			)
		}
	}
}

// resolve completes a pending publish acknowledgment.
func (c *conn) resolve(eventID string, accepted bool) {
	c.mu.Lock()
	ch, ok := c.pending[eventID]
	if ok {
		delete(c.pending, eventID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if accepted {
		ch <- nil
	} else {
		ch <- ErrRejected
	}
}

// send writes one frame, serialized per connection.
func (c *conn) send(frame interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(frame)
}

// publish sends an event and waits for this relay's OK.
func (c *conn) publish(ctx context.Context, e *Event) error {
	ack := make(chan error, 1)
	c.mu.Lock()
	if c.ws == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.pending[e.ID] = ack
	err := c.ws.WriteJSON([]interface{}{"EVENT", e})
	c.mu.Unlock()
	if err != nil {
		c.dropPending(e.ID)
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		c.dropPending(e.ID)
		return ctx.Err()
	}
}

func (c *conn) dropPending(eventID string) {
	c.mu.Lock()
	delete(c.pending, eventID)
	c.mu.Unlock()
}

// request opens a standing query. A disconnected relay picks it up on the
// next replay.
func (c *conn) request(subID string, filter Filter) {
	if err := c.send([]interface{}{"REQ", subID, filter}); err != nil {
		return
	}
}

// closeSub releases a standing query.
func (c *conn) closeSub(subID string) {
	_ = c.send([]interface{}{"CLOSE", subID})
}

// close stops the reconnect loop and drops the connection.
func (c *conn) close() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.mu.Lock()
	if c.ws != nil {
		_ = c.ws.Close()
	}
	c.mu.Unlock()
}
