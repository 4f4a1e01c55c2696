// Package transport runs the live-audio connection and switches between the
// segmented (HLS) and peer (WHEP) delivery mechanisms.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// State is the lifecycle state of the live-audio connection.
type State int

const (
	Unattached State = iota
	Connecting
	Attached
	Failed
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "UNATTACHED"
	case Connecting:
		return "CONNECTING"
	case Attached:
		return "ATTACHED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Kind names a delivery mechanism.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindHLS    Kind = "hls"
	KindWebRTC Kind = "webrtc"
)

var (
	ErrUnknownKind = errors.New("unknown transport kind")
	ErrClosed      = errors.New("transport selector closed")
	ErrStreamEnded = errors.New("live stream ended")
)

// ParseKind accepts "auto", "hls" and "webrtc" in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAuto, KindHLS, KindWebRTC:
		return k, nil
	case "":
		return KindAuto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Status is a snapshot of the selector.
type Status struct {
	Kind  Kind      `json:"kind,omitempty"`
	State State     `json:"state"`
	Err   string    `json:"error,omitempty"`
	Since time.Time `json:"since"`
}

// Sink receives decoded media. Play starts audible output; its failure (an
// autoplay policy, a missing device) is not fatal to the connection.
type Sink interface {
	io.Writer
	Play() error
}

// Reporter is how a running connection reports back. Attached is called when
// the first media reached the sink; Failed on a fatal error. Both may be
// called from any goroutine, more than once, and after Close.
type Reporter interface {
	Attached()
	Failed(err error)
}

// Conn is a live connection. Close releases every goroutine, request and
// peer connection it owns before returning and may be called more than once.
type Conn interface {
	Close() error
}

// Transport starts connections of one kind. Start must not block on the
// network beyond the handshake; ctx is cancelled on teardown.
type Transport interface {
	Start(ctx context.Context, sink Sink, r Reporter) (Conn, error)
}
