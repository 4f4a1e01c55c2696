package notify

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBroadcaster(t *testing.T) {
	Convey("Given a broadcaster with one subscriber", t, func() {
		b := New[int]()
		ch, cancel := b.Subscribe()
		So(b.Len(), ShouldEqual, 1)

		Convey("a slow subscriber only sees the latest value", func() {
			b.Publish(1)
			b.Publish(2)
			b.Publish(3)
			So(<-ch, ShouldEqual, 3)
			select {
			case v := <-ch:
				So(v, ShouldEqual, -1)
			default:
			}
		})

		Convey("cancel closes the channel and is idempotent", func() {
			cancel()
			cancel()
			_, ok := <-ch
			So(ok, ShouldBeFalse)
			So(b.Len(), ShouldEqual, 0)
			b.Publish(4)
		})

		Convey("close ends every subscription", func() {
			b.Close()
			_, ok := <-ch
			So(ok, ShouldBeFalse)
			cancel()

			late, _ := b.Subscribe()
			_, ok = <-late
			So(ok, ShouldBeFalse)
		})
	})
}

func TestQueue(t *testing.T) {
	Convey("Given a queueing broadcaster", t, func() {
		b := NewQueue[int](3)
		ch, cancel := b.Subscribe()
		defer cancel()

		Convey("a burst is delivered in order", func() {
			b.Publish(1)
			b.Publish(2)
			b.Publish(3)
			So(<-ch, ShouldEqual, 1)
			So(<-ch, ShouldEqual, 2)
			So(<-ch, ShouldEqual, 3)
		})

		Convey("values past the buffer are dropped and the older ones kept", func() {
			for i := 1; i <= 5; i++ {
				b.Publish(i)
			}
			So(<-ch, ShouldEqual, 1)
			So(<-ch, ShouldEqual, 2)
			So(<-ch, ShouldEqual, 3)
			select {
			case v := <-ch:
				So(v, ShouldEqual, -1)
			default:
			}
		})
	})
}
