package queue

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/optimistic"
	"github.com/skidoodle/radio-sync/internal/player"
)

func tr(uri string) player.Track { return player.Track{Title: uri, URI: uri} }

func uris(q []player.Track) []string {
	out := make([]string, len(q))
	for i, t := range q {
		out[i] = t.URI
	}
	return out
}

func TestEdits(t *testing.T) {
	Convey("Given a rendered queue a, b, c", t, func() {
		q := []player.Track{tr("a"), tr("b"), tr("c")}

		Convey("move(2, 0) predicts c, a, b and sends the uri of c", func() {
			e, err := Move(q, 2, 0)
			So(err, ShouldBeNil)
			So(uris(e.Predicted), ShouldResemble, []string{"c", "a", "b"})
			So(e.Command, ShouldResemble, command.MoveQueueItem(2, 0, "c"))
			So(e.Kind, ShouldEqual, optimistic.QueueMove)
			So(uris(q), ShouldResemble, []string{"a", "b", "c"})
		})

		Convey("move(0, 2) moves the head to the tail", func() {
			e, err := Move(q, 0, 2)
			So(err, ShouldBeNil)
			So(uris(e.Predicted), ShouldResemble, []string{"b", "c", "a"})
		})

		Convey("out of range indexes are rejected", func() {
			_, err := Move(q, 3, 0)
			So(errors.Is(err, ErrIndex), ShouldBeTrue)
			_, err = RemoveAt(q, -1)
			So(errors.Is(err, ErrIndex), ShouldBeTrue)
		})

		Convey("moving in place changes nothing", func() {
			_, err := Move(q, 1, 1)
			So(errors.Is(err, ErrNoChange), ShouldBeTrue)
		})

		Convey("removeAt(1) drops b", func() {
			e, err := RemoveAt(q, 1)
			So(err, ShouldBeNil)
			So(uris(e.Predicted), ShouldResemble, []string{"a", "c"})
			So(e.Command, ShouldResemble, command.RemoveFromQueue(1, "b"))
		})

		Convey("addNext puts the track first", func() {
			e, err := AddNext(q, tr("z"))
			So(err, ShouldBeNil)
			So(uris(e.Predicted), ShouldResemble, []string{"z", "a", "b", "c"})
			So(e.Command, ShouldResemble, command.Add("z", true, false))
			So(e.Kind, ShouldEqual, optimistic.QueueAdd)

			_, err = AddNext(q, player.Track{Title: "no uri"})
			So(errors.Is(err, ErrNoURI), ShouldBeTrue)
		})
	})

	Convey("A confirmed queue event replaces a predicted move", t, func() {
		base, err := player.Apply(nil, player.UpdateEvent{
			Type:  player.EventSnapshot,
			State: &player.PartialState{},
			Queue: []player.Track{tr("a"), tr("b"), tr("c")},
		})
		So(err, ShouldBeNil)

		layer := optimistic.New(0, nil)
		e, err := Move(base.Queue, 2, 0)
		So(err, ShouldBeNil)
		layer.Issue(e.Prediction())
		So(uris(layer.Render(base).Queue), ShouldResemble, []string{"c", "a", "b"})

		confirmed, err := player.Apply(&base, player.UpdateEvent{
			Type:  player.EventQueueChanged,
			Queue: []player.Track{tr("b"), tr("a")},
		})
		So(err, ShouldBeNil)
		layer.Reconcile(confirmed.LastEvent)
		So(uris(layer.Render(confirmed).Queue), ShouldResemble, []string{"b", "a"})
	})
}

func TestDrag(t *testing.T) {
	q := []player.Track{tr("a"), tr("b"), tr("c")}

	Convey("An idle drag drops nothing", t, func() {
		var d Drag
		_, ok, err := d.Drop(q, 1)
		So(ok, ShouldBeFalse)
		So(err, ShouldBeNil)
	})

	Convey("Given an item picked up at 2", t, func() {
		var d Drag
		d.PickUp(2)

		Convey("hovering only moves the target", func() {
			d.Hover(1)
			d.Hover(0)
			target, ok := d.Target()
			So(ok, ShouldBeTrue)
			So(target, ShouldEqual, 0)
			source, _ := d.Source()
			So(source, ShouldEqual, 2)
		})

		Convey("dropping emits exactly one move and clears", func() {
			e, ok, err := d.Drop(q, 0)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(e.Command, ShouldResemble, command.MoveQueueItem(2, 0, "c"))
			So(d.Active(), ShouldBeFalse)

			_, ok, _ = d.Drop(q, 1)
			So(ok, ShouldBeFalse)
		})

		Convey("dropping in place emits nothing", func() {
			_, ok, err := d.Drop(q, 2)
			So(ok, ShouldBeFalse)
			So(err, ShouldBeNil)
			So(d.Active(), ShouldBeFalse)
		})

		Convey("a failed drop still clears", func() {
			_, ok, err := d.Drop(q, 9)
			So(ok, ShouldBeFalse)
			So(errors.Is(err, ErrIndex), ShouldBeTrue)
			So(d.Active(), ShouldBeFalse)
		})

		Convey("cancel clears", func() {
			d.Cancel()
			So(d.Active(), ShouldBeFalse)
			d.Hover(1)
			_, ok := d.Target()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestFind(t *testing.T) {
	q := []player.Track{
		{Title: "Bohemian Rhapsody", Author: "Queen", URI: "u1"},
		{Title: "Under Pressure", Author: "Queen & David Bowie", URI: "u2"},
		{Title: "Hey Jude", Author: "The Beatles", URI: "u3"},
	}

	Convey("Find matches title and author case-insensitively", t, func() {
		m := Find(q, "RHAPSODY")
		So(m, ShouldHaveLength, 1)
		So(m[0].Index, ShouldEqual, 0)

		m = Find(q, "jude")
		So(m, ShouldHaveLength, 1)
		So(m[0].Track.URI, ShouldEqual, "u3")
	})

	Convey("Closer matches rank first", t, func() {
		m := Find(q, "queen")
		So(m, ShouldHaveLength, 2)
		So(m[0].Index, ShouldEqual, 0)
		So(m[1].Index, ShouldEqual, 1)
	})

	Convey("Blank text matches nothing", t, func() {
		So(Find(q, "  "), ShouldBeEmpty)
	})
}
