// Package clock estimates the playback position between authoritative
// server samples.
package clock

import (
	"time"

	"github.com/samber/mo"

	"github.com/skidoodle/radio-sync/internal/player"
)

// DefaultDriftThreshold is the smallest local/server difference that causes a
// resync. Smaller differences are poll and network jitter.
const DefaultDriftThreshold = 2 * time.Second

// State is the state of the local counter.
type State int

const (
	Held State = iota
	Advancing
)

func (s State) String() string {
	switch s {
	case Advancing:
		return "advancing"
	case Held:
		return "held"
	default:
		return "unknown"
	}
}

// Sample is one authoritative observation fed to the clock.
type Sample struct {
	Event    player.EventType
	Position mo.Option[int64] // ms
	Paused   bool
	Stream   bool
	HasTrack bool
	Duration int64 // ms
}

// SampleFrom builds a sample from a confirmed view.
func SampleFrom(v player.PlayerView) Sample {
	s := Sample{
		Event:    v.LastEvent,
		Position: v.State.Position,
		Paused:   v.State.IsPaused,
	}
	if t := v.State.Track; t != nil {
		s.HasTrack = true
		s.Stream = t.IsStream
		s.Duration = t.Duration
	}
	return s
}

// TrackClock is a local state machine. It is not safe for concurrent use;
// the engine drives it from its single event loop.
type TrackClock struct {
	threshold int64
	position  int64
	duration  int64
	hasTrack  bool
	state     State
}

// New creates a held clock at position 0. A non-positive threshold selects
// DefaultDriftThreshold.
func New(threshold time.Duration) *TrackClock {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}
	return &TrackClock{threshold: threshold.Milliseconds()}
}

// Observe applies an authoritative sample.
//
// TRACK_STARTED always resets the counter to 0. Any other present position
// only resyncs the counter when it drifted past the threshold or when the
// server reports exactly 0. The sample also decides whether the counter
// advances: it holds while paused, for live streams and without a track.
func (c *TrackClock) Observe(s Sample) {
	c.duration = s.Duration
	c.hasTrack = s.HasTrack
	c.setRunning(s.HasTrack && !s.Paused && !s.Stream)

	if s.Event == player.EventTrackStarted {
		c.position = 0
		return
	}

	server, ok := s.Position.Get()
	if !ok {
		return
	}
	if server == 0 || abs(c.position-server) >= c.threshold {
		c.position = server
	}
	c.clamp()
}

// SetPaused holds or releases the counter without a position sample, e.g.
// when an optimistic pause is rendered.
func (c *TrackClock) SetPaused(paused bool, stream bool) {
	c.setRunning(c.hasTrack && !paused && !stream)
}

func (c *TrackClock) setRunning(run bool) {
	if run {
		c.state = Advancing
	} else {
		c.state = Held
	}
}

// Tick advances the counter by elapsed wall time while advancing. It reports
// whether the position changed.
func (c *TrackClock) Tick(elapsed time.Duration) bool {
	if c.state != Advancing || elapsed <= 0 {
		return false
	}
	before := c.position
	c.position += elapsed.Milliseconds()
	c.clamp()
	return c.position != before
}

// Seek moves the counter to the target immediately.
func (c *TrackClock) Seek(ms int64) {
	if ms < 0 {
		ms = 0
	}
	c.position = ms
	c.clamp()
}

// Position returns the current display position in milliseconds.
func (c *TrackClock) Position() int64 { return c.position }

// State returns whether the counter is advancing.
func (c *TrackClock) State() State { return c.state }

func (c *TrackClock) clamp() {
	if c.duration > 0 && c.position > c.duration {
		c.position = c.duration
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
