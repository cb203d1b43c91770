package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Goosie/NostrQuizAndVote/internal/domain/dedupe"
	"github.com/Goosie/NostrQuizAndVote/pkg/logger"
	"github.com/Goosie/NostrQuizAndVote/pkg/metrics"
)

// Default bus configuration constants.
const (
	defaultPublishTimeout = 5 * time.Second
	defaultDedupeSize     = 50000
)

// Handler receives one event per distinct event id on a subscription.
// Handlers run on a relay read goroutine and must not block; enqueue work
// instead of computing inline.
type Handler func(e *Event)

// subscription is one standing query with its dedup cache.
type subscription struct {
	id      string
	filter  Filter
	handler Handler
	deduper dedupe.Deduper
}

// Bus publishes signed events to all configured relays and fans relay
// deliveries into per-subscription handlers.
type Bus struct {
	signer         Signer
	log            logger.Logger
	publishTimeout time.Duration
	dedupeSize     int

	conns     []*conn
	connected atomic.Int64

	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
}

// NewBus creates a bus against the given relay URLs with configuration options.
func NewBus(relays []string, signer Signer, opts ...Option) *Bus {
	b := &Bus{
		signer:         signer,
		log:            logger.Get().Named("bus"),
		publishTimeout: defaultPublishTimeout,
		dedupeSize:     defaultDedupeSize,
		subs:           make(map[string]*subscription),
	}

	for _, opt := range opts {
		opt(b)
	}

	for _, url := range relays {
		b.conns = append(b.conns, newConn(url, b))
	}

	return b
}

// Start opens the relay connections. Each maintains itself with backoff until
// ctx is cancelled or Close is called.
func (b *Bus) Start(ctx context.Context) {
	for _, c := range b.conns {
		go c.run(ctx)
	}
}

// Close drops all connections and subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.subs = make(map[string]*subscription)
	b.mu.Unlock()

	for _, c := range b.conns {
		c.close()
	}
	metrics.UpdateActiveSubscriptions(0)
}

// PubKey returns the signing identity used for outbound events.
func (b *Bus) PubKey() string { return b.signer.PubKey() }

// Publish signs the event and sends it to every relay, returning the event id
// as soon as any one relay acknowledges. ErrPublishFailed is returned only
// when every relay failed or the timeout elapsed.
func (b *Bus) Publish(ctx context.Context, kind int, content string, tags [][]string) (string, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return "", ErrBusClosed
	}

	e := &Event{
		Kind:      kind,
		CreatedAt: time.Now().Unix(),
		Tags:      tags,
		Content:   content,
	}
	if e.Tags == nil {
		e.Tags = [][]string{}
	}
	if err := b.signer.Sign(ctx, e); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()

	start := time.Now()
	results := make(chan error, len(b.conns))
	for _, c := range b.conns {
		go func(c *conn) {
			results <- c.publish(ctx, e)
		}(c)
	}

	var lastErr error
	for range b.conns {
		err := <-results
		if err == nil {
			metrics.RecordEventPublished()
			metrics.RecordPublishLatency(float64(time.Since(start).Milliseconds()))
			return e.ID, nil
		}
		lastErr = err
	}

	metrics.RecordPublishFailure()
	b.log.Warn(ctx, "publish failed on all relays",
		logger.Int("kind", kind),
		logger.Error(lastErr),
	)
	return "", ErrPublishFailed
}

// Subscribe opens a standing query against all relays. The handler is invoked
// once per distinct event id even when several relays deliver the same event.
func (b *Bus) Subscribe(_ context.Context, filter Filter, handler Handler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrBusClosed
	}

	sub := &subscription{
		id:      uuid.NewString(),
		filter:  filter,
		handler: handler,
		deduper: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(b.dedupeSize)),
	}
	b.subs[sub.id] = sub
	metrics.UpdateActiveSubscriptions(len(b.subs))

	for _, c := range b.conns {
		go c.request(sub.id, filter)
	}

	return sub.id, nil
}

// Unsubscribe releases the standing query and its dedup cache. Idempotent.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	_, ok := b.subs[subID]
	if ok {
		delete(b.subs, subID)
	}
	metrics.UpdateActiveSubscriptions(len(b.subs))
	b.mu.Unlock()
	if !ok {
		return
	}

	for _, c := range b.conns {
		go c.closeSub(subID)
	}
}

// dispatch routes one relay delivery to its subscription, suppressing
// duplicate event ids for the subscription's lifetime.
func (b *Bus) dispatch(subID string, e *Event) {
	b.mu.RLock()
	sub, ok := b.subs[subID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	if !sub.filter.Matches(e) {
		return
	}
	if sub.deduper.SeenAndRecord(context.Background(), e.ID) {
		metrics.RecordEventDuplicate()
		return
	}
	metrics.RecordEventReceived()
	sub.handler(e)
}

// replaySubscriptions re-opens every standing query on a fresh connection.
func (b *Bus) replaySubscriptions(c *conn) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		c.request(sub.id, sub.filter)
	}
}

func (b *Bus) connUp() {
	metrics.UpdateRelaysConnected(int(b.connected.Add(1)))
}

func (b *Bus) connDown() {
	metrics.UpdateRelaysConnected(int(b.connected.Add(-1)))
}
