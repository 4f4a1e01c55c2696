package player

import (
	"github.com/samber/mo"
)

// EventType tags an UpdateEvent with the kind of change it carries.
type EventType string

const (
	EventSnapshot      EventType = "SNAPSHOT"
	EventQueueChanged  EventType = "QUEUE_CHANGED"
	EventQueueShuffled EventType = "QUEUE_SHUFFLED"
	EventPauseToggled  EventType = "PAUSE_TOGGLED"
	EventPositionSeek  EventType = "POSITION_SEEKED"
	EventLoopChanged   EventType = "LOOP_MODE_CHANGED"
	EventTrackStarted  EventType = "TRACK_STARTED"
	EventGeneric       EventType = "GENERIC"
)

// ParseEventType maps a wire event name to an EventType. Unknown names are
// treated as GENERIC so they replace the whole view.
func ParseEventType(s string) EventType {
	switch s {
	case "SNAPSHOT":
		return EventSnapshot
	case "QUEUE_CHANGED", "QUEUE_UPDATED":
		return EventQueueChanged
	case "QUEUE_SHUFFLED":
		return EventQueueShuffled
	case "PAUSE_TOGGLED":
		return EventPauseToggled
	case "POSITION_SEEKED":
		return EventPositionSeek
	case "LOOP_MODE_CHANGED":
		return EventLoopChanged
	case "TRACK_STARTED":
		return EventTrackStarted
	}
	return EventGeneric
}

// Field names a top-level sub-tree of PlayerView.
type Field uint8

const (
	FieldState Field = 1 << iota
	FieldQueue
	FieldHistory
)

// Owns reports which sub-trees an event of type t may overwrite. Everything
// else is carried over from the prior view.
func (t EventType) Owns() Field {
	switch t {
	case EventQueueChanged, EventQueueShuffled:
		// position is cleared as a side effect, the rest of state is kept
		return FieldQueue
	case EventPauseToggled, EventPositionSeek, EventLoopChanged:
		return FieldState
	default:
		return FieldState | FieldQueue | FieldHistory
	}
}

// IsPartial reports whether t only touches part of the view.
func (t EventType) IsPartial() bool {
	return t.Owns() != FieldState|FieldQueue|FieldHistory
}

// RequiresState reports whether a payload of type t is malformed without a
// state object.
func (t EventType) RequiresState() bool {
	return t != EventQueueChanged && t != EventQueueShuffled
}

// PartialState is the state carried by an event. Every field is optional so
// partial events can say "unchanged" by leaving it out.
type PartialState struct {
	IsPlaying mo.Option[bool]
	IsPaused  mo.Option[bool]
	Position  mo.Option[int64]
	Loop      mo.Option[LoopMode]
	// Track is None when the payload left it out and Some(nil) when the
	// server explicitly reported no track.
	Track mo.Option[*Track]
}

// UpdateEvent is one decoded message of the update stream. State is nil when
// the payload had no state object; Queue and History are nil when absent.
type UpdateEvent struct {
	Type    EventType
	State   *PartialState
	Queue   []Track
	History []Track
}

// SnapshotEvent wraps a full view as a SNAPSHOT event, used for the initial
// state fetch and for the fresh state after a reconnect.
func SnapshotEvent(v PlayerView) UpdateEvent {
	st := v.State
	ps := &PartialState{
		IsPlaying: mo.Some(st.IsPlaying),
		IsPaused:  mo.Some(st.IsPaused),
		Position:  st.Position,
		Loop:      mo.Some(st.Loop),
		Track:     mo.Some[*Track](nil),
	}
	if st.Track != nil {
		t := *st.Track
		ps.Track = mo.Some(&t)
	}
	return UpdateEvent{
		Type:    EventSnapshot,
		State:   ps,
		Queue:   cloneTracks(v.Queue),
		History: cloneTracks(v.History),
	}
}
