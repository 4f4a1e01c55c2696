package optimistic

import (
	"slices"

	"github.com/samber/mo"

	"github.com/skidoodle/radio-sync/internal/player"
)

// Kind identifies the part of the view a prediction overrides. At most one
// overlay per kind is live.
type Kind int

const (
	Pause Kind = iota
	Loop
	Seek
	QueueMove
	QueueRemove
	QueueAdd
)

func (k Kind) String() string {
	switch k {
	case Pause:
		return "PAUSE"
	case Loop:
		return "LOOP"
	case Seek:
		return "SEEK"
	case QueueMove:
		return "QUEUE_MOVE"
	case QueueRemove:
		return "QUEUE_REMOVE"
	case QueueAdd:
		return "QUEUE_ADD"
	default:
		return "UNKNOWN"
	}
}

// IsQueue reports whether k predicts a queue ordering.
func (k Kind) IsQueue() bool {
	return k == QueueMove || k == QueueRemove || k == QueueAdd
}

// Prediction is a locally predicted change. Apply receives a private copy of
// the view and may modify it in place.
type Prediction interface {
	Kind() Kind
	Apply(v player.PlayerView) player.PlayerView
}

// PausePrediction predicts the paused flag.
type PausePrediction struct{ Paused bool }

func (PausePrediction) Kind() Kind { return Pause }

func (p PausePrediction) Apply(v player.PlayerView) player.PlayerView {
	v.State.IsPaused = p.Paused
	return v
}

// LoopPrediction predicts the loop mode.
type LoopPrediction struct{ Mode player.LoopMode }

func (LoopPrediction) Kind() Kind { return Loop }

func (p LoopPrediction) Apply(v player.PlayerView) player.PlayerView {
	v.State.Loop = p.Mode
	return v
}

// SeekPrediction predicts the playback position.
type SeekPrediction struct{ Position int64 }

func (SeekPrediction) Kind() Kind { return Seek }

func (p SeekPrediction) Apply(v player.PlayerView) player.PlayerView {
	v.State.Position = mo.Some(p.Position)
	return v
}

// QueuePrediction predicts a whole queue ordering. Intents are computed
// against the rendered queue, which already contains older queue
// predictions, so the newest ordering subsumes them.
type QueuePrediction struct {
	kind  Kind
	queue []player.Track
}

// NewQueuePrediction wraps a predicted ordering. kind must be a queue kind.
func NewQueuePrediction(kind Kind, queue []player.Track) QueuePrediction {
	if !kind.IsQueue() {
		kind = QueueMove
	}
	return QueuePrediction{kind: kind, queue: slices.Clone(queue)}
}

func (p QueuePrediction) Kind() Kind { return p.kind }

func (p QueuePrediction) Apply(v player.PlayerView) player.PlayerView {
	v.Queue = slices.Clone(p.queue)
	if v.Queue == nil {
		v.Queue = []player.Track{}
	}
	return v
}
