package player

import (
	"fmt"

	"github.com/samber/mo"
)

// Apply folds ev into prior and returns the next view. prior may be nil when
// no view exists yet. On error the returned view is the zero value and prior
// is left untouched; callers keep rendering prior.
//
// Merge rules by event type:
//   - SNAPSHOT replaces the view; missing queue/history become empty.
//   - QUEUE_CHANGED and QUEUE_SHUFFLED replace the queue and clear the
//     position. Everything else is kept.
//   - PAUSE_TOGGLED, POSITION_SEEKED and LOOP_MODE_CHANGED merge the state
//     fields present in the event. Track, queue and history are kept.
//   - TRACK_STARTED is a full-state event whose position is forced to 0.
//   - GENERIC (and anything unknown) is a full-state event. Queue and
//     history left out of the payload are kept from prior.
func Apply(prior *PlayerView, ev UpdateEvent) (PlayerView, error) {
	if ev.State == nil && ev.Type.RequiresState() {
		return PlayerView{}, fmt.Errorf("%w: %s without state", ErrDecode, ev.Type)
	}

	base := PlayerView{State: PlaybackState{Loop: LoopOff}, Queue: []Track{}, History: []Track{}}
	if prior != nil {
		base = prior.Clone()
	}

	switch ev.Type {
	case EventSnapshot:
		return PlayerView{
			State:     replaceState(PlaybackState{Loop: LoopOff}, ev.State),
			Queue:     cloneTracks(ev.Queue),
			History:   cloneTracks(ev.History),
			LastEvent: ev.Type,
		}, nil

	case EventQueueChanged, EventQueueShuffled:
		if ev.Queue == nil {
			return PlayerView{}, fmt.Errorf("%w: %s without queue", ErrDecode, ev.Type)
		}
		base.Queue = cloneTracks(ev.Queue)
		base.State.Position = mo.None[int64]()
		base.LastEvent = ev.Type
		return base, nil

	case EventPauseToggled, EventPositionSeek, EventLoopChanged:
		base.State = mergeState(base.State, ev.State)
		base.LastEvent = ev.Type
		return base, nil

	default:
		base.State = replaceState(base.State, ev.State)
		if ev.Type == EventTrackStarted {
			base.State.Position = mo.Some[int64](0)
		}
		if ev.Queue != nil {
			base.Queue = cloneTracks(ev.Queue)
		}
		if ev.History != nil {
			base.History = cloneTracks(ev.History)
		}
		base.LastEvent = ev.Type
		return base, nil
	}
}

// mergeState overlays the scalar fields present in ps. The track is owned by
// full-state events only and is never touched here.
func mergeState(st PlaybackState, ps *PartialState) PlaybackState {
	if v, ok := ps.IsPlaying.Get(); ok {
		st.IsPlaying = v
	}
	if v, ok := ps.IsPaused.Get(); ok {
		st.IsPaused = v
	}
	if v, ok := ps.Position.Get(); ok {
		st.Position = mo.Some(v)
	}
	if v, ok := ps.Loop.Get(); ok {
		st.Loop = v
	}
	return st
}

// replaceState applies a full-state payload. The position always comes from
// the payload (absent means unknown). Other fields the payload leaves out keep
// their prior value so a present field never disappears transiently.
func replaceState(st PlaybackState, ps *PartialState) PlaybackState {
	st = mergeState(st, ps)
	st.Position = ps.Position
	if t, ok := ps.Track.Get(); ok {
		if t == nil {
			st.Track = nil
		} else {
			c := *t
			st.Track = &c
		}
	}
	return st
}
