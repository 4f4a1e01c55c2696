// Package command defines the intents a user can issue against the remote
// player. Intents are values; sending them is the remote client's job.
package command

import (
	"errors"
	"fmt"

	"github.com/skidoodle/radio-sync/internal/player"
)

// Kind names an intent.
type Kind string

const (
	KindPlay      Kind = "play"
	KindAdd       Kind = "add"
	KindPause     Kind = "pause"
	KindResume    Kind = "resume"
	KindStop      Kind = "stop"
	KindSkip      Kind = "skip"
	KindSeek      Kind = "seek"
	KindLoop      Kind = "loop"
	KindShuffle   Kind = "shuffle"
	KindRemove    Kind = "queue.remove"
	KindMove      Kind = "queue.move"
	KindTransport Kind = "transport"
)

// ErrInvalid is returned for intents missing required arguments.
var ErrInvalid = errors.New("invalid command")

// Command is one user intent. Only the fields relevant to Kind are set.
// Queue intents carry the item URI so the server can resolve the item even
// when indexes drifted in flight.
type Command struct {
	Kind      Kind            `json:"command"`
	URI       string          `json:"uri,omitempty"`
	PlayNext  bool            `json:"playNext,omitempty"`
	Shuffle   bool            `json:"shuffle,omitempty"`
	Position  int64           `json:"position,omitempty"`
	Loop      player.LoopMode `json:"loop,omitempty"`
	Index     int             `json:"index,omitempty"`
	From      int             `json:"from,omitempty"`
	To        int             `json:"to,omitempty"`
	Transport string          `json:"transport,omitempty"`
}

func Play(uri string) Command { return Command{Kind: KindPlay, URI: uri} }

func Add(uri string, playNext, shuffle bool) Command {
	return Command{Kind: KindAdd, URI: uri, PlayNext: playNext, Shuffle: shuffle}
}

func Pause() Command        { return Command{Kind: KindPause} }
func Resume() Command       { return Command{Kind: KindResume} }
func Stop() Command         { return Command{Kind: KindStop} }
func Skip() Command         { return Command{Kind: KindSkip} }
func ShuffleQueue() Command { return Command{Kind: KindShuffle} }

func Seek(ms int64) Command { return Command{Kind: KindSeek, Position: ms} }

// SetLoop requests a loop mode. An empty mode asks the engine to cycle from
// the currently rendered mode.
func SetLoop(mode player.LoopMode) Command { return Command{Kind: KindLoop, Loop: mode} }

func RemoveFromQueue(index int, uri string) Command {
	return Command{Kind: KindRemove, Index: index, URI: uri}
}

func MoveQueueItem(from, to int, uri string) Command {
	return Command{Kind: KindMove, From: from, To: to, URI: uri}
}

// SwitchTransport selects the live-audio transport ("hls", "webrtc" or "auto").
func SwitchTransport(kind string) Command { return Command{Kind: KindTransport, Transport: kind} }

// Validate checks that the fields Kind needs are present.
func (c Command) Validate() error {
	switch c.Kind {
	case KindPlay, KindAdd:
		if c.URI == "" {
			return fmt.Errorf("%w: %s needs a uri", ErrInvalid, c.Kind)
		}
	case KindSeek:
		if c.Position < 0 {
			return fmt.Errorf("%w: negative seek position", ErrInvalid)
		}
	case KindLoop:
		if c.Loop != "" {
			if _, ok := player.ParseLoopMode(string(c.Loop)); !ok {
				return fmt.Errorf("%w: loop mode %q", ErrInvalid, c.Loop)
			}
		}
	case KindRemove:
		if c.Index < 0 {
			return fmt.Errorf("%w: negative queue index", ErrInvalid)
		}
	case KindMove:
		if c.From < 0 || c.To < 0 || c.URI == "" {
			return fmt.Errorf("%w: move needs from, to and uri", ErrInvalid)
		}
	case KindTransport:
		if c.Transport == "" {
			return fmt.Errorf("%w: transport kind missing", ErrInvalid)
		}
	case KindPause, KindResume, KindStop, KindSkip, KindShuffle:
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalid, c.Kind)
	}
	return nil
}
