package optimistic

import (
	"testing"
	"time"

	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/skidoodle/radio-sync/internal/player"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func track(uri string) player.Track {
	return player.Track{Title: uri, URI: uri, Duration: 1000}
}

func baseView() player.PlayerView {
	return player.PlayerView{
		State: player.PlaybackState{
			IsPlaying: true,
			Position:  mo.Some(int64(1000)),
			Loop:      player.LoopOff,
		},
		Queue:   []player.Track{track("a"), track("b"), track("c")},
		History: []player.Track{},
	}
}

func TestLayer(t *testing.T) {
	Convey("Given an empty layer over a confirmed view", t, func() {
		clk := &fakeClock{t: time.Unix(1000, 0)}
		l := New(0, clk.now)
		base := baseView()

		Convey("rendering returns the confirmed view", func() {
			So(l.Render(base), ShouldResemble, base)
			_, ok := l.NextDeadline()
			So(ok, ShouldBeFalse)
		})

		Convey("a pause prediction shows immediately", func() {
			id, apply := l.Issue(PausePrediction{Paused: true})
			So(id, ShouldNotBeEmpty)
			So(apply(base).State.IsPaused, ShouldBeTrue)
			So(l.Render(base).State.IsPaused, ShouldBeTrue)
			So(base.State.IsPaused, ShouldBeFalse)

			Convey("and PAUSE_TOGGLED clears it whatever the server decided", func() {
				So(l.Reconcile(player.EventPauseToggled), ShouldResemble, []Kind{Pause})
				So(l.Render(base).State.IsPaused, ShouldBeFalse)
			})

			Convey("an unrelated event leaves it alone", func() {
				So(l.Reconcile(player.EventLoopChanged), ShouldBeEmpty)
				So(l.Render(base).State.IsPaused, ShouldBeTrue)
			})

			Convey("it reverts silently after the timeout", func() {
				clk.advance(DefaultTimeout - time.Millisecond)
				So(l.Expire(), ShouldBeEmpty)
				clk.advance(time.Millisecond)
				So(l.Expire(), ShouldResemble, []Kind{Pause})
				So(l.Render(base).State.IsPaused, ShouldBeFalse)
			})

			Convey("its deadline is issue time plus the timeout", func() {
				d, ok := l.NextDeadline()
				So(ok, ShouldBeTrue)
				So(d.Equal(clk.t.Add(DefaultTimeout)), ShouldBeTrue)
			})

			Convey("discarding it by id reverts it", func() {
				So(l.Discard(id), ShouldBeTrue)
				So(l.Discard(id), ShouldBeFalse)
				So(l.Pending(), ShouldBeEmpty)
			})
		})

		Convey("a second prediction of the same kind replaces the first", func() {
			first, _ := l.Issue(SeekPrediction{Position: 5000})
			l.Issue(SeekPrediction{Position: 9000})
			pos, _ := l.Render(base).State.Position.Get()
			So(pos, ShouldEqual, int64(9000))
			So(l.Pending(), ShouldResemble, []Kind{Seek})

			Convey("so discarding the stale id is a no-op", func() {
				So(l.Discard(first), ShouldBeFalse)
				So(l.Pending(), ShouldResemble, []Kind{Seek})
			})
		})

		Convey("overlays of different kinds coexist", func() {
			l.Issue(LoopPrediction{Mode: player.LoopTrack})
			l.Issue(PausePrediction{Paused: true})
			r := l.Render(base)
			So(r.State.Loop, ShouldEqual, player.LoopTrack)
			So(r.State.IsPaused, ShouldBeTrue)
			So(l.Pending(), ShouldResemble, []Kind{Loop, Pause})

			Convey("and a full-state event clears all of them", func() {
				So(l.Reconcile(player.EventGeneric), ShouldHaveLength, 2)
				So(l.Render(base), ShouldResemble, base)
			})
		})

		Convey("queue predictions render in issuance order", func() {
			l.Issue(NewQueuePrediction(QueueRemove, []player.Track{track("b"), track("c")}))
			l.Issue(NewQueuePrediction(QueueMove, []player.Track{track("c"), track("b")}))
			r := l.Render(base)
			So(r.Queue, ShouldResemble, []player.Track{track("c"), track("b")})
			So(base.Queue, ShouldHaveLength, 3)

			Convey("and QUEUE_CHANGED clears every queue kind", func() {
				So(l.Reconcile(player.EventQueueChanged), ShouldResemble, []Kind{QueueMove, QueueRemove})
				So(l.Render(base).Queue, ShouldResemble, base.Queue)
			})

			Convey("and QUEUE_SHUFFLED does as well", func() {
				So(l.Reconcile(player.EventQueueShuffled), ShouldHaveLength, 2)
			})
		})

		Convey("an empty predicted queue renders as empty, not nil", func() {
			l.Issue(NewQueuePrediction(QueueRemove, nil))
			So(l.Render(base).Queue, ShouldNotBeNil)
			So(l.Render(base).Queue, ShouldBeEmpty)
		})

		Convey("only expired overlays are dropped", func() {
			l.Issue(PausePrediction{Paused: true})
			clk.advance(3 * time.Second)
			l.Issue(SeekPrediction{Position: 42})
			clk.advance(2 * time.Second)
			So(l.Expire(), ShouldResemble, []Kind{Pause})
			So(l.Pending(), ShouldResemble, []Kind{Seek})
			d, _ := l.NextDeadline()
			So(d.Equal(clk.t.Add(3*time.Second)), ShouldBeTrue)
		})

		Convey("clear drops everything", func() {
			l.Issue(PausePrediction{Paused: true})
			l.Issue(SeekPrediction{Position: 42})
			l.Clear()
			So(l.Pending(), ShouldBeEmpty)
		})
	})

	Convey("A non-queue kind passed to NewQueuePrediction is coerced", t, func() {
		So(NewQueuePrediction(Pause, nil).Kind(), ShouldEqual, QueueMove)
		So(QueueAdd.String(), ShouldEqual, "QUEUE_ADD")
	})
}
