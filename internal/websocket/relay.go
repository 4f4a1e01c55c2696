package websocket

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/skidoodle/radio-sync/internal/engine"
)

// Engine is what the server needs from the sync engine.
type Engine interface {
	engine.Surface
	Subscribe() (<-chan engine.Rendered, func())
	Failures() (<-chan engine.Failure, func())
}

// Relay forwards engine renders and command failures to the hub.
type Relay struct {
	engine   Engine
	hub      *Hub
	realtime bool
	last     *engine.Rendered
}

// NewRelay creates a new Relay.
func NewRelay(e Engine, hub *Hub, realtime bool) *Relay {
	return &Relay{engine: e, hub: hub, realtime: realtime}
}

// Run forwards until ctx is done or the engine closes its subscriptions. It
// must be run in a separate goroutine.
func (r *Relay) Run(ctx context.Context) {
	log.Info("relay started")
	defer log.Info("relay stopped")

	updates, stopUpdates := r.engine.Subscribe()
	defer stopUpdates()
	failures, stopFailures := r.engine.Failures()
	defer stopFailures()

	for {
		select {
		case <-ctx.Done():
			return
		case rendered, ok := <-updates:
			if !ok {
				return
			}
			r.update(rendered)
		case f, ok := <-failures:
			if !ok {
				return
			}
			r.hub.Broadcast(newErrorMessage(f))
		}
	}
}

func (r *Relay) update(current engine.Rendered) {
	if !hasStateChanged(r.last, current, r.realtime) {
		return
	}
	if !r.realtime {
		log.WithFields(log.Fields{
			"title":   current.Title,
			"event":   current.View.LastEvent,
			"pending": current.Pending,
		}).Info("state changed, broadcasting update")
	}
	r.last = &current
	r.hub.Broadcast(newPlaybackState(current, r.realtime))
}
