package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/skidoodle/radio-sync/internal/notify"
)

// Selector owns the live-audio connection. At most one connection is live:
// a switch tears the previous one down completely before starting the next.
// Every connection gets a generation number; reports from an older
// generation are ignored.
type Selector struct {
	transports map[Kind]Transport
	sink       Sink
	fallback   bool
	now        func() time.Time

	// switchMu serializes teardown and startup.
	switchMu sync.Mutex

	// life is cancelled by Close before it waits for switchMu.
	life context.Context
	stop context.CancelFunc

	mu        sync.Mutex
	gen       uint64
	conn      Conn
	cancel    context.CancelFunc
	handshake context.CancelFunc
	status   Status
	fellBack bool
	closed   bool

	updates *notify.Broadcaster[Status]
}

// Option configures a Selector.
type Option func(*Selector)

// WithFallback lets a failed peer connection fall back to HLS once.
func WithFallback(on bool) Option {
	return func(s *Selector) { s.fallback = on }
}

// WithClock overrides the time source of status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// NewSelector creates an unattached selector. transports maps each
// configured kind to its implementation.
func NewSelector(transports map[Kind]Transport, sink Sink, opts ...Option) *Selector {
	s := &Selector{
		transports: transports,
		sink:       sink,
		now:        time.Now,
		updates:    notify.New[Status](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.life, s.stop = context.WithCancel(context.Background())
	s.status = Status{State: Unattached, Since: s.now()}
	return s
}

// Resolve maps auto to a concrete kind: webrtc when a peer transport is
// configured, hls otherwise.
func (s *Selector) Resolve(kind Kind) Kind {
	if kind != KindAuto {
		return kind
	}
	if _, ok := s.transports[KindWebRTC]; ok {
		return KindWebRTC
	}
	return KindHLS
}

// Mount starts the first connection.
func (s *Selector) Mount(kind Kind) error {
	return s.Switch(kind)
}

// Switch tears down the current connection and starts one of the given kind.
// A handshake still in progress is abandoned. A handshake error leaves the
// selector FAILED and is returned.
func (s *Selector) Switch(kind Kind) error {
	s.interrupt()
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	s.mu.Lock()
	s.fellBack = false
	s.mu.Unlock()
	return s.switchLocked(kind)
}

func (s *Selector) switchLocked(kind Kind) error {
	resolved := s.Resolve(kind)
	t, ok := s.transports[resolved]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.teardown()

	s.setStatus(gen, Status{Kind: resolved, State: Connecting})
	log.WithField("kind", resolved).Info("transport connecting")

	ctx, cancel := context.WithCancel(s.life)
	s.mu.Lock()
	s.handshake = cancel
	s.mu.Unlock()

	conn, err := t.Start(ctx, s.sink, &reporter{s: s, gen: gen, kind: resolved})

	s.mu.Lock()
	s.handshake = nil
	s.mu.Unlock()
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			// superseded by Switch or Close, which set the status themselves
			return fmt.Errorf("start %s transport: %w", resolved, ctx.Err())
		}
		s.fail(gen, resolved, err)
		return fmt.Errorf("start %s transport: %w", resolved, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

// teardown closes the current connection and waits for it to release its
// resources. Callers hold switchMu.
func (s *Selector) teardown() {
	s.mu.Lock()
	conn, cancel := s.conn, s.cancel
	s.conn, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			log.WithError(err).Warn("error closing transport connection")
		}
	}
}

// interrupt cancels a handshake in progress, if any.
func (s *Selector) interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshake != nil {
		s.handshake()
	}
}

// Close tears down the live connection and ends status subscriptions. A
// handshake in progress is cancelled rather than waited out.
func (s *Selector) Close() error {
	s.stop()
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	s.mu.Unlock()

	s.teardown()

	s.mu.Lock()
	s.status = Status{State: Unattached, Since: s.now()}
	st := s.status
	s.mu.Unlock()
	s.updates.Publish(st)
	s.updates.Close()
	return nil
}

// Status returns the current status.
func (s *Selector) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe delivers status changes. The channel holds only the latest one.
func (s *Selector) Subscribe() (<-chan Status, func()) {
	return s.updates.Subscribe()
}

// Live reports whether a connection is currently held.
func (s *Selector) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Selector) setStatus(gen uint64, st Status) bool {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return false
	}
	st.Since = s.now()
	s.status = st
	s.mu.Unlock()
	s.updates.Publish(st)
	return true
}

func (s *Selector) attached(gen uint64, kind Kind) {
	s.mu.Lock()
	connecting := gen == s.gen && s.status.State == Connecting
	s.mu.Unlock()
	if !connecting || !s.setStatus(gen, Status{Kind: kind, State: Attached}) {
		return
	}
	log.WithField("kind", kind).Info("transport attached")

	if err := s.sink.Play(); err != nil {
		log.WithError(err).Warn("playback start rejected, media stays attached")
	}
}

// fail marks the connection FAILED and tears it down off the reporting
// goroutine, which Close would otherwise wait on.
func (s *Selector) fail(gen uint64, kind Kind, err error) {
	if !s.setStatus(gen, Status{Kind: kind, State: Failed, Err: err.Error()}) {
		return
	}
	log.WithError(err).WithField("kind", kind).Error("transport failed")
	go s.recover(gen, kind)
}

func (s *Selector) recover(gen uint64, kind Kind) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	current := gen == s.gen && !s.closed
	retry := current && s.fallback && kind == KindWebRTC && !s.fellBack
	if retry {
		s.fellBack = true
	}
	s.mu.Unlock()
	if !current {
		return
	}

	s.teardown()

	if _, ok := s.transports[KindHLS]; retry && ok {
		log.Info("falling back to hls")
		if err := s.switchLocked(KindHLS); err != nil {
			log.WithError(err).Error("hls fallback failed")
		}
	}
}

type reporter struct {
	s    *Selector
	gen  uint64
	kind Kind
}

func (r *reporter) Attached()        { r.s.attached(r.gen, r.kind) }
func (r *reporter) Failed(err error) { r.s.fail(r.gen, r.kind, err) }
