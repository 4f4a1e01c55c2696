package remote

import (
	"context"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/skidoodle/radio-sync/internal/player"
)

// DefaultPollInterval is used when the service has no push channel.
const DefaultPollInterval = 3 * time.Second

// Poller is the Source used when the service exposes no push channel. It
// fetches the full state periodically and emits it as a SNAPSHOT only when it
// changed in a way the local estimate would not predict.
type Poller struct {
	client   *Client
	interval time.Duration
	drift    int64

	last     *player.PlayerView
	lastSeen time.Time
}

// NewPoller creates a poller. drift is the position error tolerated before a
// sample counts as a change.
func NewPoller(client *Client, interval, drift time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if drift <= 0 {
		drift = 2 * time.Second
	}
	return &Poller{
		client:   client,
		interval: interval,
		drift:    drift.Milliseconds(),
	}
}

// Run starts the polling loop.
func (p *Poller) Run(ctx context.Context, out chan<- Message) error {
	log.WithField("interval", p.interval).Info("poller started")
	defer log.Info("poller stopped")

	p.poll(ctx, out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx, out)
		}
	}
}

func (p *Poller) poll(ctx context.Context, out chan<- Message) {
	current, err := p.client.InitialState(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Error("failed to poll player state")
		}
		return
	}

	now := time.Now()
	changed := p.hasStateChanged(current, now.Sub(p.lastSeen))
	p.lastSeen = now
	p.last = &current
	if !changed {
		return
	}
	send(ctx, out, Message{Event: player.SnapshotEvent(current)})
}

// hasStateChanged compares everything but the position exactly. The position
// counts as changed when it is off from where steady playback would have
// taken it by at least the drift tolerance.
func (p *Poller) hasStateChanged(current player.PlayerView, elapsed time.Duration) bool {
	if p.last == nil {
		return true
	}
	prev := p.last.State
	cur := current.State

	if prev.IsPlaying != cur.IsPlaying || prev.IsPaused != cur.IsPaused || prev.Loop != cur.Loop {
		return true
	}
	if (prev.Track == nil) != (cur.Track == nil) {
		return true
	}
	if prev.Track != nil && *prev.Track != *cur.Track {
		return true
	}
	if !slices.Equal(p.last.Queue, current.Queue) || !slices.Equal(p.last.History, current.History) {
		return true
	}

	before, okBefore := prev.Position.Get()
	after, okAfter := cur.Position.Get()
	if okBefore != okAfter {
		return true
	}
	if !okAfter {
		return false
	}
	expected := before
	if cur.IsPlaying && !cur.IsPaused && (cur.Track == nil || !cur.Track.IsStream) {
		expected += elapsed.Milliseconds()
	}
	delta := after - expected
	if delta < 0 {
		delta = -delta
	}
	return delta >= p.drift
}
