package websocket

import (
	"slices"

	"github.com/skidoodle/radio-sync/internal/engine"
	"github.com/skidoodle/radio-sync/internal/player"
	"github.com/skidoodle/radio-sync/internal/transport"
)

const (
	typeState = "state"
	typeError = "error"
)

// PlaybackState is the client-facing data structure.
type PlaybackState struct {
	Type      string           `json:"type"`
	Synced    bool             `json:"synced"`
	Title     string           `json:"title"`
	View      player.WireView  `json:"view"`
	Pending   []string         `json:"pending"`
	Transport transport.Status `json:"transport"`

	// only filled in realtime mode
	PositionMs int64  `json:"position_ms,omitempty"`
	Elapsed    string `json:"elapsed,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

// ErrorMessage tells a client a command did not go through.
type ErrorMessage struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error"`
}

// newPlaybackState creates a client-facing PlaybackState from a render.
func newPlaybackState(r engine.Rendered, realtime bool) PlaybackState {
	state := PlaybackState{
		Type:      typeState,
		Synced:    r.Synced,
		Title:     r.Title,
		View:      r.View.Wire(),
		Pending:   r.Pending,
		Transport: r.Transport,
	}
	if state.Pending == nil {
		state.Pending = []string{}
	}
	if realtime {
		state.PositionMs = r.DisplayPosition
		if t := r.View.State.Track; t != nil {
			state.Elapsed = player.FormatDuration(t.IsStream, r.DisplayPosition)
			state.Duration = player.FormatDuration(t.IsStream, t.Duration)
		}
	}
	return state
}

func newErrorMessage(f engine.Failure) ErrorMessage {
	msg := ErrorMessage{Type: typeError, Command: string(f.Command.Kind)}
	if f.Err != nil {
		msg.Error = f.Err.Error()
	}
	return msg
}

// hasStateChanged compares two renders. Outside realtime mode, clock ticks
// alone are not worth a broadcast.
func hasStateChanged(last *engine.Rendered, current engine.Rendered, realtime bool) bool {
	if last == nil {
		return true
	}
	if realtime && current.DisplayPosition != last.DisplayPosition {
		return true
	}
	if last.Synced != current.Synced || last.Title != current.Title {
		return true
	}
	if last.Transport.Kind != current.Transport.Kind || last.Transport.State != current.Transport.State {
		return true
	}
	if !slices.Equal(last.Pending, current.Pending) {
		return true
	}
	return !sameView(last.View, current.View)
}

func sameView(a, b player.PlayerView) bool {
	if a.LastEvent != b.LastEvent || a.State.IsPlaying != b.State.IsPlaying ||
		a.State.IsPaused != b.State.IsPaused || a.State.Loop != b.State.Loop {
		return false
	}
	if (a.State.Track == nil) != (b.State.Track == nil) {
		return false
	}
	if a.State.Track != nil && *a.State.Track != *b.State.Track {
		return false
	}
	// a seek confirmation changes only the reported position
	if a.State.Position != b.State.Position {
		return false
	}
	return slices.Equal(a.Queue, b.Queue) && slices.Equal(a.History, b.History)
}
