package relay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	relay "github.com/Goosie/NostrQuizAndVote/internal/adapters/relay"
	"github.com/Goosie/NostrQuizAndVote/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// fakeRelay is a minimal in-process relay: it stores published events, acks
// them with OK, and forwards matching events to standing REQ subscriptions.
type fakeRelay struct {
	upgrader websocket.Upgrader
	reject   bool

	mu     sync.Mutex
	events []relay.Event
	conns  map[*websocket.Conn]map[string]relay.Filter
	wmu    map[*websocket.Conn]*sync.Mutex
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		conns:    make(map[*websocket.Conn]map[string]relay.Filter),
		wmu:      make(map[*websocket.Conn]*sync.Mutex),
	}
}

func (fr *fakeRelay) serve(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(fr.handle))
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func (fr *fakeRelay) write(conn *websocket.Conn, frame interface{}) {
	fr.mu.Lock()
	lock := fr.wmu[conn]
	fr.mu.Unlock()
	if lock == nil {
		return
	}
	lock.Lock()
	_ = conn.WriteJSON(frame)
	lock.Unlock()
}

// inject delivers an event to matching subscribers without storing it,
// simulating a second relay repeating an already-seen event.
func (fr *fakeRelay) inject(ev relay.Event) {
	fr.mu.Lock()
	type target struct {
		conn  *websocket.Conn
		subID string
	}
	var targets []target
	for conn, subs := range fr.conns {
		for subID, filter := range subs {
			if filter.Matches(&ev) {
				targets = append(targets, target{conn, subID})
			}
		}
	}
	fr.mu.Unlock()
	for _, tg := range targets {
		fr.write(tg.conn, []interface{}{"EVENT", tg.subID, ev})
	}
}

func (fr *fakeRelay) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := fr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fr.mu.Lock()
	fr.conns[conn] = make(map[string]relay.Filter)
	fr.wmu[conn] = &sync.Mutex{}
	fr.mu.Unlock()
	defer func() {
		fr.mu.Lock()
		delete(fr.conns, conn)
		delete(fr.wmu, conn)
		fr.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil || len(frame) == 0 {
			continue
		}
		var label string
		_ = json.Unmarshal(frame[0], &label)

		switch label {
		case "EVENT":
			var ev relay.Event
			if err := json.Unmarshal(frame[1], &ev); err != nil {
				continue
			}
			if fr.reject {
				fr.write(conn, []interface{}{"OK", ev.ID, false, "blocked"})
				continue
			}
			fr.mu.Lock()
			fr.events = append(fr.events, ev)
			fr.mu.Unlock()
			fr.write(conn, []interface{}{"OK", ev.ID, true, ""})
			fr.inject(ev)

		case "REQ":
			if len(frame) < 3 {
				continue
			}
			var subID string
			var filter relay.Filter
			_ = json.Unmarshal(frame[1], &subID)
			if err := json.Unmarshal(frame[2], &filter); err != nil {
				continue
			}
			fr.mu.Lock()
			fr.conns[conn][subID] = filter
			stored := make([]relay.Event, len(fr.events))
			copy(stored, fr.events)
			fr.mu.Unlock()
			for i := range stored {
				if filter.Matches(&stored[i]) {
					fr.write(conn, []interface{}{"EVENT", subID, stored[i]})
				}
			}
			fr.write(conn, []interface{}{"EOSE", subID})

		case "CLOSE":
			var subID string
			_ = json.Unmarshal(frame[1], &subID)
			fr.mu.Lock()
			delete(fr.conns[conn], subID)
			fr.mu.Unlock()
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestPublishFirstSuccess(t *testing.T) {
	Convey("Given one live relay and one dead endpoint", t, func() {
		fr := newFakeRelay()
		server, url := fr.serve(t)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bus := relay.NewBus(
			[]string{url, "ws://127.0.0.1:1"},
			relay.NewDigestSigner([]byte("host-secret")),
			relay.WithPublishTimeout(3*time.Second),
		)
		bus.Start(ctx)
		defer bus.Close()

		Convey("When publishing an event", func() {
			ok := waitFor(t, 3*time.Second, func() bool {
				id, err := bus.Publish(ctx, relay.KindQuizDefinition, `{"quiz_id":"q1"}`, [][]string{{"d", "q1"}})
				return err == nil && id != ""
			})

			Convey("Then the first relay ack resolves the publish", func() {
				So(ok, ShouldBeTrue)
				fr.mu.Lock()
				stored := len(fr.events)
				fr.mu.Unlock()
				So(stored, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})
	})
}

func TestPublishAllFail(t *testing.T) {
	Convey("Given only unreachable relays", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bus := relay.NewBus(
			[]string{"ws://127.0.0.1:1", "ws://127.0.0.1:2"},
			relay.NewDigestSigner([]byte("host-secret")),
			relay.WithPublishTimeout(200*time.Millisecond),
		)
		bus.Start(ctx)
		defer bus.Close()

		Convey("When publishing an event", func() {
			_, err := bus.Publish(ctx, relay.KindQuizDefinition, "{}", nil)

			Convey("Then the publish fails with ErrPublishFailed", func() {
				So(err, ShouldEqual, relay.ErrPublishFailed)
			})
		})
	})
}

func TestPublishRejected(t *testing.T) {
	Convey("Given a relay that rejects every event", t, func() {
		fr := newFakeRelay()
		fr.reject = true
		server, url := fr.serve(t)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bus := relay.NewBus(
			[]string{url},
			relay.NewDigestSigner([]byte("host-secret")),
			relay.WithPublishTimeout(2*time.Second),
		)
		bus.Start(ctx)
		defer bus.Close()

		waitFor(t, 2*time.Second, func() bool {
			_, err := bus.Publish(ctx, relay.KindQuizDefinition, "{}", nil)
			return err == relay.ErrPublishFailed
		})

		_, err := bus.Publish(ctx, relay.KindQuizDefinition, "{}", nil)
		So(err, ShouldEqual, relay.ErrPublishFailed)
	})
}

func TestSubscribeDeliversDistinctEvents(t *testing.T) {
	Convey("Given a subscription for answers on a session", t, func() {
		fr := newFakeRelay()
		server, url := fr.serve(t)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bus := relay.NewBus([]string{url}, relay.NewDigestSigner([]byte("host-secret")))
		bus.Start(ctx)
		defer bus.Close()

		var mu sync.Mutex
		var received []relay.Event
		filter := relay.Filter{
			Kinds: []int{relay.KindAnswer},
			Tags:  map[string][]string{"e": {"session-ev-1"}},
		}
		subID, err := bus.Subscribe(ctx, filter, func(e *relay.Event) {
			mu.Lock()
			received = append(received, *e)
			mu.Unlock()
		})
		So(err, ShouldBeNil)
		So(subID, ShouldNotBeEmpty)

		Convey("When a matching event is published", func() {
			ok := waitFor(t, 3*time.Second, func() bool {
				_, err := bus.Publish(ctx, relay.KindAnswer,
					`{"session_id":"s1","question_index":0,"answer_index":1,"time_ms":420}`,
					[][]string{{"p", "playerpub"}, {"e", "session-ev-1"}},
				)
				return err == nil
			})
			So(ok, ShouldBeTrue)

			Convey("Then the handler receives it exactly once", func() {
				So(waitFor(t, 2*time.Second, func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(received) == 1
				}), ShouldBeTrue)

				Convey("And a relay repeating the event is suppressed", func() {
					mu.Lock()
					ev := received[0]
					mu.Unlock()

					fr.inject(ev)
					fr.inject(ev)
					time.Sleep(200 * time.Millisecond)

					mu.Lock()
					count := len(received)
					mu.Unlock()
					So(count, ShouldEqual, 1)
				})
			})
		})

		Convey("When a non-matching event is published", func() {
			waitFor(t, 3*time.Second, func() bool {
				_, err := bus.Publish(ctx, relay.KindPlayerJoin,
					`{"session_id":"s1","nickname":"n"}`,
					[][]string{{"e", "other-session"}},
				)
				return err == nil
			})
			time.Sleep(200 * time.Millisecond)

			Convey("Then the handler sees nothing", func() {
				mu.Lock()
				defer mu.Unlock()
				So(received, ShouldBeEmpty)
			})
		})
	})
}

func TestUnsubscribeIdempotent(t *testing.T) {
	Convey("Given an open subscription", t, func() {
		fr := newFakeRelay()
		server, url := fr.serve(t)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bus := relay.NewBus([]string{url}, relay.NewDigestSigner([]byte("host-secret")))
		bus.Start(ctx)
		defer bus.Close()

		subID, err := bus.Subscribe(ctx, relay.Filter{Kinds: []int{relay.KindAnswer}}, func(*relay.Event) {})
		So(err, ShouldBeNil)

		Convey("When unsubscribing twice", func() {
			bus.Unsubscribe(subID)
			bus.Unsubscribe(subID)

			Convey("Then nothing panics and later publishes are not delivered", func() {
				So(true, ShouldBeTrue)
			})
		})
	})
}

func TestDigestSigner(t *testing.T) {
	Convey("Given a digest signer", t, func() {
		signer := relay.NewDigestSigner([]byte("secret"))

		Convey("Then the pubkey is stable", func() {
			So(signer.PubKey(), ShouldEqual, relay.NewDigestSigner([]byte("secret")).PubKey())
		})

		Convey("When signing two identical events", func() {
			e1 := &relay.Event{Kind: relay.KindAnswer, CreatedAt: 42, Tags: [][]string{}, Content: "{}"}
			e2 := &relay.Event{Kind: relay.KindAnswer, CreatedAt: 42, Tags: [][]string{}, Content: "{}"}
			So(signer.Sign(context.Background(), e1), ShouldBeNil)
			So(signer.Sign(context.Background(), e2), ShouldBeNil)

			Convey("Then ids are deterministic", func() {
				So(e1.ID, ShouldEqual, e2.ID)
				So(e1.Sig, ShouldEqual, e2.Sig)
			})
		})

		Convey("When content differs the id differs", func() {
			e1 := &relay.Event{Kind: relay.KindAnswer, CreatedAt: 42, Tags: [][]string{}, Content: "{}"}
			e2 := &relay.Event{Kind: relay.KindAnswer, CreatedAt: 42, Tags: [][]string{}, Content: `{"a":1}`}
			So(signer.Sign(context.Background(), e1), ShouldBeNil)
			So(signer.Sign(context.Background(), e2), ShouldBeNil)
			So(e1.ID, ShouldNotEqual, e2.ID)
		})
	})
}

func TestFilterRoundTrip(t *testing.T) {
	Convey("Given a filter with kinds and tags", t, func() {
		f := relay.Filter{
			Kinds: []int{relay.KindPlayerJoin, relay.KindAnswer},
			Tags:  map[string][]string{"e": {"ev-1"}},
			Limit: 10,
		}

		Convey("When marshaled and unmarshaled", func() {
			data, err := json.Marshal(f)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"#e"`)

			var back relay.Filter
			So(json.Unmarshal(data, &back), ShouldBeNil)
			So(back.Kinds, ShouldResemble, f.Kinds)
			So(back.Tags, ShouldResemble, f.Tags)
			So(back.Limit, ShouldEqual, 10)
		})
	})
}
