// Package engine composes the merger, clock, optimistic layer and queue
// coordinator into one event loop. The loop goroutine is the only writer of
// engine state; every input is applied and rendered as one step.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/skidoodle/radio-sync/internal/clock"
	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/notify"
	"github.com/skidoodle/radio-sync/internal/optimistic"
	"github.com/skidoodle/radio-sync/internal/player"
	"github.com/skidoodle/radio-sync/internal/remote"
	"github.com/skidoodle/radio-sync/internal/transport"
)

var ErrStopped = errors.New("engine stopped")

// failureBuffer is how many unread failures a subscriber may fall behind.
const failureBuffer = 16

// Sender delivers command intents to the player service.
type Sender interface {
	Send(ctx context.Context, cmd command.Command) error
}

// Transport is the part of the transport selector the engine drives.
type Transport interface {
	Switch(kind transport.Kind) error
	Status() transport.Status
	Subscribe() (<-chan transport.Status, func())
	Close() error
}

// Surface is what a presentation layer needs from the engine.
type Surface interface {
	CurrentView() Rendered
	Issue(cmd command.Command) error
	TransportState() transport.Status
}

// Rendered is the render input: the view with optimistic overlays applied
// and the projections derived from it.
type Rendered struct {
	View            player.PlayerView
	DisplayPosition int64
	Clock           clock.State
	Title           string
	Transport       transport.Status
	Pending         []string
	Synced          bool
}

// Failure is a command that did not go through. Its prediction has already
// been reverted.
type Failure struct {
	Command command.Command
	Err     error
	At      time.Time
}

// Config holds the engine tunables. Zero values select the defaults.
type Config struct {
	DriftThreshold time.Duration
	OverlayTimeout time.Duration
	TickInterval   time.Duration
	CommandTimeout time.Duration
	DefaultTitle   string
	Transport      transport.Kind
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
	if c.DefaultTitle == "" {
		c.DefaultTitle = player.DefaultTitle
	}
	return c
}

type result struct {
	cmd       command.Command
	overlayID string
	err       error
}

// pendingSeek remembers where the clock was before an optimistic seek so a
// failed seek can put it back.
type pendingSeek struct {
	overlayID string
	position  int64
	issuedAt  time.Time
	advancing bool
}

// Engine is the player state synchronization engine.
type Engine struct {
	cfg       Config
	source    remote.Source
	sender    Sender
	transport Transport
	now       func() time.Time

	intents chan command.Command
	results chan result
	done    chan struct{}
	running sync.Once

	mu       sync.RWMutex
	rendered Rendered

	updates  *notify.Broadcaster[Rendered]
	failures *notify.Broadcaster[Failure]

	// owned by the loop goroutine
	base      *player.PlayerView
	layer     *optimistic.Layer
	clk       *clock.TrackClock
	lastTick  time.Time
	seek      *pendingSeek
	trStatus  transport.Status
	cmdCtx    context.Context
	cmdCancel context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithTransport lets the engine mount and switch the live-audio transport.
func WithTransport(t Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithClock overrides the wall clock used for overlay timeouts.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine reading updates from source and sending commands
// through sender.
func New(cfg Config, source remote.Source, sender Sender, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg.withDefaults(),
		source:   source,
		sender:   sender,
		now:      time.Now,
		intents:  make(chan command.Command, 32),
		results:  make(chan result, 32),
		done:     make(chan struct{}),
		updates:  notify.New[Rendered](),
		failures: notify.NewQueue[Failure](failureBuffer),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.layer = optimistic.New(e.cfg.OverlayTimeout, e.now)
	e.clk = clock.New(e.cfg.DriftThreshold)
	e.trStatus = transport.Status{State: transport.Unattached}
	e.rendered = e.project(e.view())
	return e
}

// CurrentView returns the last rendered value.
func (e *Engine) CurrentView() Rendered {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rendered
}

// TransportState returns the transport status as of the last render.
func (e *Engine) TransportState() transport.Status {
	return e.CurrentView().Transport
}

// Issue queues a command. It does not wait for the command to be sent.
func (e *Engine) Issue(cmd command.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.intents <- cmd:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

// Subscribe delivers every render. The channel holds only the latest one.
func (e *Engine) Subscribe() (<-chan Rendered, func()) {
	return e.updates.Subscribe()
}

// Failures delivers command failures.
func (e *Engine) Failures() (<-chan Failure, func()) {
	return e.failures.Subscribe()
}

// Run drives the engine until ctx is done, then stops the timers, the update
// subscription and the transport before returning. Run may only be called
// once.
func (e *Engine) Run(ctx context.Context) error {
	err := ErrStopped
	e.running.Do(func() { err = e.run(ctx) })
	return err
}

func (e *Engine) run(ctx context.Context) error {
	log.Info("engine started")
	defer log.Info("engine stopped")

	e.cmdCtx, e.cmdCancel = context.WithCancel(ctx)

	events := make(chan remote.Message)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.source.Run(e.cmdCtx, events); err != nil {
			log.WithError(err).Error("update source stopped")
		}
	}()

	var trUpdates <-chan transport.Status
	if e.transport != nil {
		ch, cancel := e.transport.Subscribe()
		defer cancel()
		trUpdates = ch
		e.trStatus = e.transport.Status()
		if e.cfg.Transport != "" {
			e.handleIntent(command.SwitchTransport(string(e.cfg.Transport)))
		}
	}

	ticker := time.NewTicker(e.cfg.TickInterval)
	ticker.Stop()
	var tickC <-chan time.Time

	expiry := time.NewTimer(time.Hour)
	expiry.Stop()
	var expiryC <-chan time.Time

	defer func() {
		ticker.Stop()
		expiry.Stop()
		e.cmdCancel()
		close(e.done)
		wg.Wait()
		if e.transport != nil {
			if err := e.transport.Close(); err != nil {
				log.WithError(err).Warn("error closing transport")
			}
		}
		e.updates.Close()
		e.failures.Close()
	}()

	e.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-events:
			e.handleMessage(m)
		case cmd := <-e.intents:
			e.handleIntent(cmd)
		case res := <-e.results:
			e.handleResult(res)
		case now := <-tickC:
			e.clk.Tick(now.Sub(e.lastTick))
			e.lastTick = now
		case <-expiryC:
			e.expire()
		case st, ok := <-trUpdates:
			if !ok {
				trUpdates = nil
				continue
			}
			e.trStatus = st
		}

		e.render()

		switch {
		case e.clk.State() == clock.Advancing && tickC == nil:
			e.lastTick = time.Now()
			ticker.Reset(e.cfg.TickInterval)
			tickC = ticker.C
		case e.clk.State() == clock.Held && tickC != nil:
			ticker.Stop()
			tickC = nil
		}

		if deadline, ok := e.layer.NextDeadline(); ok {
			expiry.Reset(max(deadline.Sub(e.now()), 0))
			expiryC = expiry.C
		} else {
			expiry.Stop()
			expiryC = nil
		}
	}
}

func (e *Engine) handleMessage(m remote.Message) {
	if m.Err != nil {
		log.WithError(m.Err).Warn("dropping malformed update")
		return
	}

	next, err := player.Apply(e.base, m.Event)
	if err != nil {
		log.WithError(err).WithField("eventType", m.Event.Type).Warn("dropping malformed update")
		return
	}
	e.base = &next

	if cleared := e.layer.Reconcile(next.LastEvent); len(cleared) > 0 {
		log.WithField("kinds", cleared).Debug("predictions settled")
		if lo.Contains(cleared, optimistic.Seek) {
			e.seek = nil
		}
	}
	e.clk.Observe(clock.SampleFrom(next))
}

func (e *Engine) expire() {
	expired := e.layer.Expire()
	if len(expired) == 0 {
		return
	}
	log.WithField("kinds", expired).Info("unconfirmed predictions reverted")
	if lo.Contains(expired, optimistic.Seek) {
		e.revertSeek()
	}
}

func (e *Engine) handleResult(res result) {
	if res.err == nil {
		return
	}
	log.WithError(res.err).WithField("command", res.cmd.Kind).Warn("command failed")

	if res.overlayID != "" && e.layer.Discard(res.overlayID) {
		if e.seek != nil && e.seek.overlayID == res.overlayID {
			e.revertSeek()
		}
	}
	e.failures.Publish(Failure{Command: res.cmd, Err: res.err, At: e.now()})
}

// revertSeek puts the clock back where it would be had the seek never
// happened.
func (e *Engine) revertSeek() {
	if e.seek == nil {
		return
	}
	pos := e.seek.position
	if e.seek.advancing {
		pos += e.now().Sub(e.seek.issuedAt).Milliseconds()
	}
	e.clk.Seek(pos)
	e.seek = nil
}

// view returns the rendered view, or an empty one before the first
// snapshot.
func (e *Engine) view() player.PlayerView {
	if e.base == nil {
		v, _ := player.Apply(nil, player.UpdateEvent{Type: player.EventSnapshot, State: &player.PartialState{}})
		return e.layer.Render(v)
	}
	return e.layer.Render(*e.base)
}

func (e *Engine) project(v player.PlayerView) Rendered {
	return Rendered{
		View:            v,
		DisplayPosition: e.clk.Position(),
		Clock:           e.clk.State(),
		Title:           player.DocumentTitle(v, e.cfg.DefaultTitle),
		Transport:       e.trStatus,
		Pending:         lo.Map(e.layer.Pending(), func(k optimistic.Kind, _ int) string { return k.String() }),
		Synced:          e.base != nil,
	}
}

func (e *Engine) render() {
	v := e.view()
	stream := v.State.Track != nil && v.State.Track.IsStream
	e.clk.SetPaused(v.State.IsPaused, stream)

	r := e.project(v)
	e.mu.Lock()
	e.rendered = r
	e.mu.Unlock()
	e.updates.Publish(r)
}
