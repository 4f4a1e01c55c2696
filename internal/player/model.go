// Package player holds the player data model and the SnapshotMerger that folds
// server events into a single renderable view.
package player

import (
	"slices"

	"github.com/samber/mo"
)

// Track is an immutable description of a playable item.
type Track struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Duration   int64  `json:"duration"` // ms, 0 for live streams
	Identifier string `json:"identifier"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	IsStream   bool   `json:"isStream"`
}

// LoopMode is the repeat mode of the remote player.
type LoopMode string

const (
	LoopOff   LoopMode = "OFF"
	LoopQueue LoopMode = "QUEUE"
	LoopTrack LoopMode = "TRACK"
)

// ParseLoopMode accepts the wire spellings of a loop mode. "NONE" is an alias
// for OFF.
func ParseLoopMode(s string) (LoopMode, bool) {
	switch s {
	case "OFF", "NONE", "off", "none":
		return LoopOff, true
	case "QUEUE", "queue":
		return LoopQueue, true
	case "TRACK", "track":
		return LoopTrack, true
	}
	return "", false
}

// Next returns the mode a loop toggle cycles to: OFF -> QUEUE -> TRACK -> OFF.
func (m LoopMode) Next() LoopMode {
	switch m {
	case LoopOff:
		return LoopQueue
	case LoopQueue:
		return LoopTrack
	default:
		return LoopOff
	}
}

// PlaybackState is the point-in-time playback state reported by the server.
// Position is a sample taken when the event was produced; it is None after a
// queue mutation until the next authoritative position arrives.
type PlaybackState struct {
	IsPlaying bool
	IsPaused  bool
	Position  mo.Option[int64]
	Loop      LoopMode
	Track     *Track
}

// PlayerView is the sole render input. Values are treated as immutable: every
// operation in this package returns a fresh view that shares no slices with
// its input.
type PlayerView struct {
	State     PlaybackState
	Queue     []Track
	History   []Track
	LastEvent EventType
}

// Clone returns a deep copy of v.
func (v PlayerView) Clone() PlayerView {
	out := v
	out.State = v.State.clone()
	out.Queue = cloneTracks(v.Queue)
	out.History = cloneTracks(v.History)
	return out
}

func (s PlaybackState) clone() PlaybackState {
	out := s
	if s.Track != nil {
		t := *s.Track
		out.Track = &t
	}
	return out
}

func cloneTracks(in []Track) []Track {
	if in == nil {
		return []Track{}
	}
	return slices.Clone(in)
}
