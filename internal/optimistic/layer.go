// Package optimistic layers locally predicted state over the last confirmed
// PlayerView until the server confirms, contradicts or ignores the command.
package optimistic

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/skidoodle/radio-sync/internal/player"
)

// DefaultTimeout bounds how long an unconfirmed prediction stays visible.
const DefaultTimeout = 5 * time.Second

// Transform applies a prediction to a view.
type Transform func(player.PlayerView) player.PlayerView

// Overlay is one pending prediction.
type Overlay struct {
	ID         string
	Prediction Prediction
	IssuedAt   time.Time
	seq        uint64
}

// Layer holds at most one overlay per kind. It is not safe for concurrent
// use.
type Layer struct {
	timeout  time.Duration
	now      func() time.Time
	overlays map[Kind]*Overlay
	seq      uint64
}

// New creates a layer. A non-positive timeout selects DefaultTimeout; a nil
// now selects time.Now.
func New(timeout time.Duration, now func() time.Time) *Layer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Layer{
		timeout:  timeout,
		now:      now,
		overlays: make(map[Kind]*Overlay),
	}
}

// Issue records p, replacing any pending overlay of the same kind, and returns
// the overlay id with a transform applying p.
func (l *Layer) Issue(p Prediction) (string, Transform) {
	l.seq++
	o := &Overlay{
		ID:         uuid.NewString(),
		Prediction: p,
		IssuedAt:   l.now(),
		seq:        l.seq,
	}
	l.overlays[p.Kind()] = o
	return o.ID, func(v player.PlayerView) player.PlayerView {
		return p.Apply(v.Clone())
	}
}

// Reconcile clears the overlays a confirmed event of type t settles. The
// confirmed value always wins, whether or not it matches the prediction.
// Full-state events settle everything: queue indexes captured in pending
// overlays mean nothing once a new authoritative state is in place.
func (l *Layer) Reconcile(t player.EventType) []Kind {
	return l.drop(func(k Kind, _ *Overlay) bool {
		switch t {
		case player.EventPauseToggled:
			return k == Pause
		case player.EventLoopChanged:
			return k == Loop
		case player.EventPositionSeek:
			return k == Seek
		case player.EventQueueChanged, player.EventQueueShuffled:
			return k.IsQueue()
		default:
			return true
		}
	})
}

// Expire drops overlays older than the timeout and returns their kinds. The
// view then falls back to the last confirmed value.
func (l *Layer) Expire() []Kind {
	now := l.now()
	return l.drop(func(_ Kind, o *Overlay) bool {
		return !now.Before(o.IssuedAt.Add(l.timeout))
	})
}

// Discard drops the overlay with the given id, e.g. after its command failed.
// It reports false when that overlay was already settled or replaced.
func (l *Layer) Discard(id string) bool {
	return len(l.drop(func(_ Kind, o *Overlay) bool { return o.ID == id })) > 0
}

// Clear drops everything.
func (l *Layer) Clear() {
	clear(l.overlays)
}

// Render layers the live overlays over base in issuance order.
func (l *Layer) Render(base player.PlayerView) player.PlayerView {
	out := base.Clone()
	for _, o := range l.ordered() {
		out = o.Prediction.Apply(out)
	}
	return out
}

// Pending returns the kinds with a live overlay, oldest first.
func (l *Layer) Pending() []Kind {
	return lo.Map(l.ordered(), func(o *Overlay, _ int) Kind { return o.Prediction.Kind() })
}

// Get returns the live overlay of kind k.
func (l *Layer) Get(k Kind) (*Overlay, bool) {
	o, ok := l.overlays[k]
	return o, ok
}

// NextDeadline returns when the oldest live overlay times out.
func (l *Layer) NextDeadline() (time.Time, bool) {
	if len(l.overlays) == 0 {
		return time.Time{}, false
	}
	oldest := lo.MinBy(lo.Values(l.overlays), func(a, b *Overlay) bool {
		return a.IssuedAt.Before(b.IssuedAt)
	})
	return oldest.IssuedAt.Add(l.timeout), true
}

func (l *Layer) ordered() []*Overlay {
	out := lo.Values(l.overlays)
	slices.SortFunc(out, func(a, b *Overlay) int {
		return int(a.seq) - int(b.seq)
	})
	return out
}

func (l *Layer) drop(match func(Kind, *Overlay) bool) []Kind {
	var dropped []Kind
	for k, o := range l.overlays {
		if match(k, o) {
			delete(l.overlays, k)
			dropped = append(dropped, k)
		}
	}
	slices.Sort(dropped)
	return dropped
}
