// Package queue turns queue edits made against the rendered queue into
// outgoing intents plus the ordering to predict locally.
package queue

import (
	"errors"
	"fmt"
	"slices"

	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/optimistic"
	"github.com/skidoodle/radio-sync/internal/player"
)

var (
	ErrIndex    = errors.New("queue index out of range")
	ErrNoChange = errors.New("queue edit changes nothing")
	ErrNoURI    = errors.New("track has no uri")
)

// Edit is a validated queue edit.
type Edit struct {
	Command   command.Command
	Kind      optimistic.Kind
	Predicted []player.Track
}

// Prediction returns the overlay that shows the edit until the server
// confirms it.
func (e Edit) Prediction() optimistic.Prediction {
	return optimistic.NewQueuePrediction(e.Kind, e.Predicted)
}

// Move moves the item at from to index to.
func Move(rendered []player.Track, from, to int) (Edit, error) {
	if err := checkIndex(rendered, from); err != nil {
		return Edit{}, err
	}
	if err := checkIndex(rendered, to); err != nil {
		return Edit{}, err
	}
	if from == to {
		return Edit{}, ErrNoChange
	}

	item := rendered[from]
	next := slices.Delete(slices.Clone(rendered), from, from+1)
	next = slices.Insert(next, to, item)

	return Edit{
		Command:   command.MoveQueueItem(from, to, item.URI),
		Kind:      optimistic.QueueMove,
		Predicted: next,
	}, nil
}

// RemoveAt removes the item at index.
func RemoveAt(rendered []player.Track, index int) (Edit, error) {
	if err := checkIndex(rendered, index); err != nil {
		return Edit{}, err
	}
	return Edit{
		Command:   command.RemoveFromQueue(index, rendered[index].URI),
		Kind:      optimistic.QueueRemove,
		Predicted: slices.Delete(slices.Clone(rendered), index, index+1),
	}, nil
}

// AddNext puts t at the head of the queue.
func AddNext(rendered []player.Track, t player.Track) (Edit, error) {
	if t.URI == "" {
		return Edit{}, ErrNoURI
	}
	return Edit{
		Command:   command.Add(t.URI, true, false),
		Kind:      optimistic.QueueAdd,
		Predicted: slices.Insert(slices.Clone(rendered), 0, t),
	}, nil
}

func checkIndex(q []player.Track, i int) error {
	if i < 0 || i >= len(q) {
		return fmt.Errorf("%w: %d (queue length %d)", ErrIndex, i, len(q))
	}
	return nil
}
