package engine

import (
	"context"
	"slices"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/skidoodle/radio-sync/internal/clock"
	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/optimistic"
	"github.com/skidoodle/radio-sync/internal/player"
	"github.com/skidoodle/radio-sync/internal/queue"
	"github.com/skidoodle/radio-sync/internal/transport"
)

// handleIntent shows the predicted effect of cmd right away and sends it in
// the background. Queue intents are resolved against the rendered queue, so
// the URI sent matches what the user saw.
func (e *Engine) handleIntent(cmd command.Command) {
	rendered := e.view()
	var prediction optimistic.Prediction

	switch cmd.Kind {
	case command.KindTransport:
		e.switchTransport(cmd)
		return

	case command.KindPause:
		prediction = optimistic.PausePrediction{Paused: true}
	case command.KindResume:
		prediction = optimistic.PausePrediction{Paused: false}

	case command.KindLoop:
		if cmd.Loop == "" {
			cmd.Loop = rendered.State.Loop.Next()
		} else if mode, ok := player.ParseLoopMode(string(cmd.Loop)); ok {
			cmd.Loop = mode
		}
		prediction = optimistic.LoopPrediction{Mode: cmd.Loop}

	case command.KindSeek:
		prediction = optimistic.SeekPrediction{Position: cmd.Position}

	case command.KindMove:
		edit, err := queue.Move(rendered.Queue, cmd.From, cmd.To)
		if err != nil {
			e.reject(cmd, err)
			return
		}
		cmd, prediction = edit.Command, edit.Prediction()

	case command.KindRemove:
		edit, err := queue.RemoveAt(rendered.Queue, cmd.Index)
		if err != nil {
			e.reject(cmd, err)
			return
		}
		cmd, prediction = edit.Command, edit.Prediction()

	case command.KindAdd:
		// only tracks already on screen can be predicted; anything else
		// waits for the server's queue event
		if t, ok := knownTrack(rendered, cmd.URI); ok && cmd.PlayNext && !cmd.Shuffle {
			if edit, err := queue.AddNext(rendered.Queue, t); err == nil {
				prediction = edit.Prediction()
			}
		}
	}

	var overlayID string
	if prediction != nil {
		overlayID, _ = e.layer.Issue(prediction)
		if cmd.Kind == command.KindSeek {
			e.seek = &pendingSeek{
				overlayID: overlayID,
				position:  e.clk.Position(),
				issuedAt:  e.now(),
				advancing: e.clk.State() == clock.Advancing,
			}
			e.clk.Seek(cmd.Position)
		}
	}

	e.dispatch(cmd, overlayID, func(ctx context.Context) error {
		return e.sender.Send(ctx, cmd)
	})
}

func (e *Engine) switchTransport(cmd command.Command) {
	if e.transport == nil {
		e.reject(cmd, transport.ErrUnknownKind)
		return
	}
	kind, err := transport.ParseKind(cmd.Transport)
	if err != nil {
		e.reject(cmd, err)
		return
	}
	e.dispatch(cmd, "", func(context.Context) error {
		return e.transport.Switch(kind)
	})
}

// dispatch runs send off the loop. Its result comes back through the results
// channel unless the engine stopped in the meantime.
func (e *Engine) dispatch(cmd command.Command, overlayID string, send func(context.Context) error) {
	log.WithFields(log.Fields{"command": cmd.Kind, "predicted": overlayID != ""}).Debug("issuing command")

	go func() {
		ctx, cancel := context.WithTimeout(e.cmdCtx, e.cfg.CommandTimeout)
		defer cancel()
		err := send(ctx)
		select {
		case e.results <- result{cmd: cmd, overlayID: overlayID, err: err}:
		case <-e.done:
		}
	}()
}

func (e *Engine) reject(cmd command.Command, err error) {
	log.WithError(err).WithField("command", cmd.Kind).Warn("command rejected")
	e.failures.Publish(Failure{Command: cmd, Err: err, At: e.now()})
}

func knownTrack(v player.PlayerView, uri string) (player.Track, bool) {
	candidates := slices.Concat(v.Queue, v.History)
	if v.State.Track != nil {
		candidates = append(candidates, *v.State.Track)
	}
	return lo.Find(candidates, func(t player.Track) bool { return t.URI == uri })
}
