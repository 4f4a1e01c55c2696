package player

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/samber/mo"
)

// ErrDecode marks a payload that does not match the expected shape. Such
// payloads are dropped; the prior view stays in place.
var ErrDecode = errors.New("decode player event")

type wireState struct {
	IsPlaying *bool           `json:"isPlaying"`
	IsPaused  *bool           `json:"isPaused"`
	Position  *float64        `json:"position"`
	Loop      *string         `json:"loop"`
	Track     json.RawMessage `json:"track"`
}

type wireEvent struct {
	EventType string     `json:"eventType"`
	State     *wireState `json:"state"`
	Queue     []Track    `json:"queue"`
	History   []Track    `json:"history"`
}

// DecodeEvent parses one message of the update stream.
func DecodeEvent(data []byte) (UpdateEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return UpdateEvent{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return w.toEvent(ParseEventType(w.EventType))
}

// DecodeView parses a full-state payload such as the initial state response.
// The payload is validated like a SNAPSHOT event regardless of its eventType.
func DecodeView(data []byte) (PlayerView, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return PlayerView{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	ev, err := w.toEvent(EventSnapshot)
	if err != nil {
		return PlayerView{}, err
	}
	return Apply(nil, ev)
}

func (w wireEvent) toEvent(t EventType) (UpdateEvent, error) {
	ev := UpdateEvent{Type: t, Queue: w.Queue, History: w.History}

	if w.State == nil {
		if t.RequiresState() {
			return UpdateEvent{}, fmt.Errorf("%w: %s without state", ErrDecode, t)
		}
	} else {
		ps, err := w.State.toPartial()
		if err != nil {
			return UpdateEvent{}, err
		}
		ev.State = ps
	}

	if (t == EventQueueChanged || t == EventQueueShuffled) && ev.Queue == nil {
		return UpdateEvent{}, fmt.Errorf("%w: %s without queue", ErrDecode, t)
	}
	if err := validateTracks(ev.Queue); err != nil {
		return UpdateEvent{}, fmt.Errorf("%w: queue: %v", ErrDecode, err)
	}
	if err := validateTracks(ev.History); err != nil {
		return UpdateEvent{}, fmt.Errorf("%w: history: %v", ErrDecode, err)
	}
	return ev, nil
}

func (w wireState) toPartial() (*PartialState, error) {
	ps := &PartialState{}
	if w.IsPlaying != nil {
		ps.IsPlaying = mo.Some(*w.IsPlaying)
	}
	if w.IsPaused != nil {
		ps.IsPaused = mo.Some(*w.IsPaused)
	}
	if w.Position != nil {
		p := *w.Position
		if math.IsNaN(p) || p < 0 || p >= math.MaxInt64 {
			return nil, fmt.Errorf("%w: position %v", ErrDecode, p)
		}
		ps.Position = mo.Some(int64(math.Round(p)))
	}
	if w.Loop != nil {
		mode, ok := ParseLoopMode(*w.Loop)
		if !ok {
			return nil, fmt.Errorf("%w: loop mode %q", ErrDecode, *w.Loop)
		}
		ps.Loop = mo.Some(mode)
	}
	switch {
	case len(w.Track) == 0:
	case string(w.Track) == "null":
		ps.Track = mo.Some[*Track](nil)
	default:
		var t Track
		if err := json.Unmarshal(w.Track, &t); err != nil {
			return nil, fmt.Errorf("%w: track: %v", ErrDecode, err)
		}
		if t.URI == "" {
			return nil, fmt.Errorf("%w: track without uri", ErrDecode)
		}
		ps.Track = mo.Some(&t)
	}
	return ps, nil
}

func validateTracks(tracks []Track) error {
	for i, t := range tracks {
		if t.URI == "" {
			return fmt.Errorf("item %d has no uri", i)
		}
	}
	return nil
}

// WireState is the JSON shape of PlaybackState.
type WireState struct {
	IsPlaying bool   `json:"isPlaying"`
	IsPaused  bool   `json:"isPaused"`
	Position  *int64 `json:"position,omitempty"`
	Loop      string `json:"loop"`
	Track     *Track `json:"track"`
}

// WireView is the JSON shape of PlayerView, identical to the payloads the
// remote service sends.
type WireView struct {
	EventType string    `json:"eventType"`
	State     WireState `json:"state"`
	Queue     []Track   `json:"queue"`
	History   []Track   `json:"history"`
}

// Wire converts v to its JSON shape.
func (v PlayerView) Wire() WireView {
	c := v.Clone()
	out := WireView{
		EventType: string(c.LastEvent),
		State: WireState{
			IsPlaying: c.State.IsPlaying,
			IsPaused:  c.State.IsPaused,
			Loop:      string(c.State.Loop),
			Track:     c.State.Track,
		},
		Queue:   c.Queue,
		History: c.History,
	}
	if pos, ok := c.State.Position.Get(); ok {
		out.State.Position = &pos
	}
	return out
}
