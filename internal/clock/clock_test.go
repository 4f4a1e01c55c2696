package clock

import (
	"testing"
	"time"

	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/skidoodle/radio-sync/internal/player"
)

func playing(pos int64) Sample {
	return Sample{
		Event:    player.EventPositionSeek,
		Position: mo.Some(pos),
		HasTrack: true,
		Duration: 300000,
	}
}

func TestTrackClock(t *testing.T) {
	Convey("Given a clock synced to 10000ms of a playing track", t, func() {
		c := New(0)
		c.Observe(playing(10000))
		So(c.Position(), ShouldEqual, int64(10000))
		So(c.State(), ShouldEqual, Advancing)

		Convey("a small server delta is ignored", func() {
			c.Observe(playing(10500))
			So(c.Position(), ShouldEqual, int64(10000))
		})

		Convey("a large server delta snaps the counter", func() {
			c.Observe(playing(20000))
			So(c.Position(), ShouldEqual, int64(20000))
		})

		Convey("a server position of exactly 0 always snaps", func() {
			c.Observe(playing(0))
			So(c.Position(), ShouldEqual, int64(0))
		})

		Convey("TRACK_STARTED resets to 0 whatever position it carries", func() {
			s := playing(123456)
			s.Event = player.EventTrackStarted
			c.Observe(s)
			So(c.Position(), ShouldEqual, int64(0))
		})

		Convey("an absent position does not resync", func() {
			s := playing(0)
			s.Position = mo.None[int64]()
			c.Observe(s)
			So(c.Position(), ShouldEqual, int64(10000))
		})

		Convey("ticks advance one to one with wall time", func() {
			So(c.Tick(time.Second), ShouldBeTrue)
			So(c.Tick(time.Second), ShouldBeTrue)
			So(c.Position(), ShouldEqual, int64(12000))
		})

		Convey("ticks clamp at the track duration", func() {
			c.Seek(299500)
			c.Tick(time.Second)
			So(c.Position(), ShouldEqual, int64(300000))
			So(c.Tick(time.Second), ShouldBeFalse)
		})

		Convey("pausing holds the counter", func() {
			s := playing(10000)
			s.Paused = true
			c.Observe(s)
			So(c.State(), ShouldEqual, Held)
			So(c.Tick(time.Second), ShouldBeFalse)
			So(c.Position(), ShouldEqual, int64(10000))

			Convey("and resuming releases it", func() {
				c.SetPaused(false, false)
				So(c.State(), ShouldEqual, Advancing)
				c.Tick(time.Second)
				So(c.Position(), ShouldEqual, int64(11000))
			})
		})

		Convey("a live stream never advances", func() {
			s := playing(0)
			s.Stream = true
			s.Duration = 0
			c.Observe(s)
			So(c.State(), ShouldEqual, Held)
			So(c.Tick(5*time.Second), ShouldBeFalse)
		})

		Convey("a seek moves the counter immediately", func() {
			c.Seek(60000)
			So(c.Position(), ShouldEqual, int64(60000))
		})
	})

	Convey("A clock with a custom threshold", t, func() {
		c := New(500 * time.Millisecond)
		c.Observe(playing(10000))
		c.Observe(playing(10600))
		So(c.Position(), ShouldEqual, int64(10600))
	})

	Convey("Without a track the clock holds", t, func() {
		c := New(0)
		c.Observe(Sample{Event: player.EventSnapshot})
		So(c.State(), ShouldEqual, Held)
		c.SetPaused(false, false)
		So(c.State(), ShouldEqual, Held)
	})
}
