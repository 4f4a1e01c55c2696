package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/skidoodle/radio-sync/internal/player"
)

func receive(ch <-chan Message) Message {
	select {
	case m := <-ch:
		return m
	case <-time.After(5 * time.Second):
		return Message{Err: errors.New("timed out waiting for message")}
	}
}

func TestSubscriber(t *testing.T) {
	Convey("Given a service that pushes two messages then drops the connection", t, func() {
		var connects atomic.Int32
		upgrader := websocket.Upgrader{}
		mux := http.NewServeMux()
		mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, stateJSON)
		})
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			if connects.Add(1) > 1 {
				// keep the second connection open until the client leaves
				_, _, _ = conn.ReadMessage()
				return
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eventType":"PAUSE_TOGGLED","state":{"isPaused":true}}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eventType":"PAUSE_TOGGLED"}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		client := NewClient(ctx, srv.URL, "")
		sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", client, "")
		out := make(chan Message)
		done := make(chan error, 1)
		go func() { done <- sub.Run(ctx, out) }()

		first := receive(out)
		So(first.Err, ShouldBeNil)
		So(first.Event.Type, ShouldEqual, player.EventSnapshot)
		So(first.Event.Queue, ShouldHaveLength, 1)

		pushed := receive(out)
		So(pushed.Err, ShouldBeNil)
		So(pushed.Event.Type, ShouldEqual, player.EventPauseToggled)
		So(pushed.Event.State.IsPaused, ShouldResemble, mo.Some(true))

		malformed := receive(out)
		So(errors.Is(malformed.Err, player.ErrDecode), ShouldBeTrue)

		Convey("a reconnect starts with a fresh snapshot", func() {
			again := receive(out)
			So(again.Err, ShouldBeNil)
			So(again.Event.Type, ShouldEqual, player.EventSnapshot)
			So(connects.Load(), ShouldEqual, int32(2))

			cancel()
			So(<-done, ShouldBeNil)
		})
	})
}

func TestBackoff(t *testing.T) {
	Convey("Backoff doubles up to the cap", t, func() {
		So(backoff(0), ShouldEqual, minBackoff)
		So(backoff(1), ShouldEqual, 2*minBackoff)
		So(backoff(3), ShouldEqual, 8*minBackoff)
		So(backoff(50), ShouldEqual, maxBackoff)
	})
}

func TestPollerChangeDetection(t *testing.T) {
	view := func(pos int64, paused bool) player.PlayerView {
		return player.PlayerView{
			State: player.PlaybackState{
				IsPlaying: true,
				IsPaused:  paused,
				Position:  mo.Some(pos),
				Loop:      player.LoopOff,
				Track:     &player.Track{URI: "u:1", Duration: 300000},
			},
			Queue:   []player.Track{},
			History: []player.Track{},
		}
	}

	Convey("Given a poller that has seen one state", t, func() {
		p := NewPoller(nil, 0, 0)
		So(p.hasStateChanged(view(10000, false), 0), ShouldBeTrue)
		last := view(10000, false)
		p.last = &last

		Convey("steady playback is not a change", func() {
			So(p.hasStateChanged(view(13000, false), 3*time.Second), ShouldBeFalse)
		})

		Convey("a jump past the tolerance is a change", func() {
			So(p.hasStateChanged(view(60000, false), 3*time.Second), ShouldBeTrue)
		})

		Convey("a pause is a change", func() {
			So(p.hasStateChanged(view(13000, true), 3*time.Second), ShouldBeTrue)
		})

		Convey("a different queue is a change", func() {
			v := view(13000, false)
			v.Queue = []player.Track{{URI: "u:2"}}
			So(p.hasStateChanged(v, 3*time.Second), ShouldBeTrue)
		})

		Convey("a different track is a change", func() {
			v := view(13000, false)
			v.State.Track = &player.Track{URI: "u:3"}
			So(p.hasStateChanged(v, 3*time.Second), ShouldBeTrue)
		})
	})
}
