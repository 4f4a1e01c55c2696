package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeTransport records how many of its connections are open at once.
type fakeTransport struct {
	kind     Kind
	live     *atomic.Int32
	maxLive  *atomic.Int32
	startErr error
	attach   bool

	mu       sync.Mutex
	reporter Reporter
	starts   int
}

func (f *fakeTransport) Start(ctx context.Context, _ Sink, r Reporter) (Conn, error) {
	f.mu.Lock()
	f.starts++
	f.reporter = r
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	n := f.live.Add(1)
	for {
		m := f.maxLive.Load()
		if n <= m || f.maxLive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.attach {
		r.Attached()
	}
	return &fakeConn{live: f.live}, nil
}

func (f *fakeTransport) report() Reporter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reporter
}

func (f *fakeTransport) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// stallingTransport never finishes its handshake on its own.
type stallingTransport struct {
	started chan struct{}
}

func (f *stallingTransport) Start(ctx context.Context, _ Sink, _ Reporter) (Conn, error) {
	close(f.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeConn struct {
	live *atomic.Int32
	once sync.Once
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { c.live.Add(-1) })
	return nil
}

type playSink struct {
	DiscardSink
	plays atomic.Int32
}

func (p *playSink) Play() error {
	p.plays.Add(1)
	return ErrNoOutput
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func waitClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func TestSelector(t *testing.T) {
	Convey("Given a selector with hls and webrtc transports", t, func() {
		live, maxLive := &atomic.Int32{}, &atomic.Int32{}
		hls := &fakeTransport{kind: KindHLS, live: live, maxLive: maxLive, attach: true}
		peer := &fakeTransport{kind: KindWebRTC, live: live, maxLive: maxLive}
		sink := &playSink{}
		s := NewSelector(map[Kind]Transport{KindHLS: hls, KindWebRTC: peer}, sink)
		defer s.Close()

		So(s.Status().State, ShouldEqual, Unattached)

		Convey("auto resolves to webrtc when it is configured", func() {
			So(s.Resolve(KindAuto), ShouldEqual, KindWebRTC)
		})

		Convey("mounting hls attaches on first media and tries to play", func() {
			So(s.Mount(KindHLS), ShouldBeNil)
			st := s.Status()
			So(st.Kind, ShouldEqual, KindHLS)
			So(st.State, ShouldEqual, Attached)
			So(sink.plays.Load(), ShouldEqual, int32(1))
		})

		Convey("a peer connection stays connecting until media arrives", func() {
			So(s.Mount(KindWebRTC), ShouldBeNil)
			So(s.Status().State, ShouldEqual, Connecting)
			peer.report().Attached()
			So(s.Status().State, ShouldEqual, Attached)
		})

		Convey("switching never holds two live connections", func() {
			for i := 0; i < 10; i++ {
				kind := KindHLS
				if i%2 == 1 {
					kind = KindWebRTC
				}
				So(s.Switch(kind), ShouldBeNil)
				So(live.Load(), ShouldEqual, int32(1))
			}
			So(maxLive.Load(), ShouldEqual, int32(1))
		})

		Convey("reports from a replaced connection are ignored", func() {
			So(s.Mount(KindWebRTC), ShouldBeNil)
			stale := peer.report()
			So(s.Switch(KindHLS), ShouldBeNil)
			stale.Failed(errors.New("late failure"))
			So(s.Status().State, ShouldEqual, Attached)
			So(s.Status().Kind, ShouldEqual, KindHLS)
		})

		Convey("a fatal error fails and tears the connection down", func() {
			So(s.Mount(KindHLS), ShouldBeNil)
			hls.report().Failed(ErrStreamEnded)
			st := s.Status()
			So(st.State, ShouldEqual, Failed)
			So(st.Err, ShouldEqual, ErrStreamEnded.Error())
			So(eventually(func() bool { return live.Load() == 0 }), ShouldBeTrue)
			So(hls.startCount(), ShouldEqual, 1)
		})

		Convey("a handshake error fails without leaving a connection", func() {
			peer.startErr = errors.New("whep offer: status 503")
			err := s.Mount(KindWebRTC)
			So(err, ShouldNotBeNil)
			So(s.Status().State, ShouldEqual, Failed)
			So(s.Live(), ShouldBeFalse)
		})

		Convey("unknown kinds are rejected", func() {
			So(errors.Is(s.Switch("dash"), ErrUnknownKind), ShouldBeTrue)
		})

		Convey("status changes are published", func() {
			ch, cancel := s.Subscribe()
			defer cancel()
			So(s.Mount(KindHLS), ShouldBeNil)
			st := <-ch
			So(st.State, ShouldEqual, Attached)
		})

		Convey("close tears down and refuses new connections", func() {
			So(s.Mount(KindHLS), ShouldBeNil)
			So(s.Close(), ShouldBeNil)
			So(live.Load(), ShouldEqual, int32(0))
			So(s.Status().State, ShouldEqual, Unattached)
			So(errors.Is(s.Switch(KindHLS), ErrClosed), ShouldBeTrue)
		})
	})

	Convey("With fallback on, a failed peer connection falls back to hls once", t, func() {
		live, maxLive := &atomic.Int32{}, &atomic.Int32{}
		hls := &fakeTransport{kind: KindHLS, live: live, maxLive: maxLive, attach: true}
		peer := &fakeTransport{kind: KindWebRTC, live: live, maxLive: maxLive}
		s := NewSelector(map[Kind]Transport{KindHLS: hls, KindWebRTC: peer}, &DiscardSink{}, WithFallback(true))
		defer s.Close()

		So(s.Mount(KindAuto), ShouldBeNil)
		peer.report().Failed(ErrPeerFailed)

		So(eventually(func() bool {
			st := s.Status()
			return st.Kind == KindHLS && st.State == Attached
		}), ShouldBeTrue)
		So(maxLive.Load(), ShouldEqual, int32(1))
		So(live.Load(), ShouldEqual, int32(1))
	})

	Convey("A handshake in progress", t, func() {
		live, maxLive := &atomic.Int32{}, &atomic.Int32{}
		hls := &fakeTransport{kind: KindHLS, live: live, maxLive: maxLive, attach: true}
		peer := &stallingTransport{started: make(chan struct{})}
		s := NewSelector(map[Kind]Transport{KindHLS: hls, KindWebRTC: peer}, &DiscardSink{})
		defer s.Close()

		switched := make(chan error, 1)
		go func() { switched <- s.Switch(KindWebRTC) }()
		<-peer.started
		So(s.Status().State, ShouldEqual, Connecting)

		Convey("is cancelled by close", func() {
			closed := make(chan struct{})
			go func() {
				_ = s.Close()
				close(closed)
			}()
			So(waitClosed(closed), ShouldBeTrue)
			So(errors.Is(<-switched, context.Canceled), ShouldBeTrue)
			So(s.Status().State, ShouldEqual, Unattached)
		})

		Convey("is abandoned by a newer switch", func() {
			So(s.Switch(KindHLS), ShouldBeNil)
			So(errors.Is(<-switched, context.Canceled), ShouldBeTrue)
			st := s.Status()
			So(st.Kind, ShouldEqual, KindHLS)
			So(st.State, ShouldEqual, Attached)
		})
	})

	Convey("Close does not wait for a manifest request that hangs", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		s := NewSelector(map[Kind]Transport{KindHLS: NewHLS(srv.URL+"/live.m3u8", http.DefaultClient)}, &DiscardSink{})
		go func() { _ = s.Switch(KindHLS) }()
		So(eventually(func() bool { return s.Status().State == Connecting }), ShouldBeTrue)

		closed := make(chan struct{})
		go func() {
			_ = s.Close()
			close(closed)
		}()
		So(waitClosed(closed), ShouldBeTrue)
		So(s.Status().State, ShouldEqual, Unattached)
	})

	Convey("Without a peer transport auto means hls", t, func() {
		s := NewSelector(map[Kind]Transport{}, &DiscardSink{})
		So(s.Resolve(KindAuto), ShouldEqual, KindHLS)
		So(errors.Is(s.Mount(KindAuto), ErrUnknownKind), ShouldBeTrue)
	})
}

func TestParseKind(t *testing.T) {
	Convey("ParseKind accepts known kinds", t, func() {
		k, err := ParseKind(" WebRTC ")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, KindWebRTC)
		k, _ = ParseKind("")
		So(k, ShouldEqual, KindAuto)
		_, err = ParseKind("dash")
		So(errors.Is(err, ErrUnknownKind), ShouldBeTrue)
	})
}
