package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/Goosie/NostrQuizAndVote/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When recording a new event id", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(context.Background(), "event-1")

			Convey("Then it should return false and record the id", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When recording the same id twice", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "event-1")
			seen := d.SeenAndRecord(context.Background(), "event-1")

			Convey("Then the second call should report it as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording an id", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "event-1")
			d.Unrecord(context.Background(), "event-1")

			Convey("Then the id can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(context.Background(), "event-1"), ShouldBeFalse)
			})

			Convey("And unrecording an unknown id is a no-op", func() {
				d.Unrecord(context.Background(), "never-seen")
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestBoundedEviction(t *testing.T) {
	Convey("Given a deduper bounded to 3 ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("event-%d", i)), ShouldBeFalse)
		}
		So(d.Size(), ShouldEqual, 3)

		Convey("When a fourth id arrives", func() {
			So(d.SeenAndRecord(ctx, "event-3"), ShouldBeFalse)

			Convey("Then the oldest id is evicted and may be re-recorded", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "event-0"), ShouldBeFalse)
			})

			Convey("And recent ids remain suppressed", func() {
				So(d.SeenAndRecord(ctx, "event-3"), ShouldBeTrue)
			})
		})
	})
}

func TestUnboundedMode(t *testing.T) {
	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		ctx := context.Background()

		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("event-%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.SeenAndRecord(ctx, "event-0"), ShouldBeTrue)
		})
	})
}

func TestConcurrentAccess(t *testing.T) {
	Convey("Given concurrent recorders of the same id", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()

		const goroutines = 32
		var wg sync.WaitGroup
		newly := make(chan bool, goroutines)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "contended") {
					newly <- true
				}
			}()
		}
		wg.Wait()
		close(newly)

		Convey("Then exactly one recorder wins", func() {
			So(len(newly), ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
