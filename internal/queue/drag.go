package queue

import "github.com/skidoodle/radio-sync/internal/player"

// Drag tracks one drag-reorder gesture. Hover is visual only; Drop emits at
// most one move. The zero value is idle.
type Drag struct {
	active bool
	source int
	target int
}

// PickUp starts a gesture at index i, replacing any gesture in progress.
func (d *Drag) PickUp(i int) {
	d.active = true
	d.source = i
	d.target = i
}

// Hover records the index currently under the pointer.
func (d *Drag) Hover(i int) {
	if d.active {
		d.target = i
	}
}

// Source returns the picked-up index.
func (d *Drag) Source() (int, bool) { return d.source, d.active }

// Target returns the hovered index.
func (d *Drag) Target() (int, bool) { return d.target, d.active }

// Active reports whether a gesture is in progress.
func (d *Drag) Active() bool { return d.active }

// Drop ends the gesture at index to. It reports false when no move results,
// either because nothing was picked up or the item was dropped in place. The
// gesture is cleared whatever the outcome.
func (d *Drag) Drop(rendered []player.Track, to int) (Edit, bool, error) {
	defer d.Cancel()
	if !d.active || d.source == to {
		return Edit{}, false, nil
	}
	e, err := Move(rendered, d.source, to)
	if err != nil {
		return Edit{}, false, err
	}
	return e, true, nil
}

// Cancel clears the gesture, e.g. when pointer capture is lost.
func (d *Drag) Cancel() {
	*d = Drag{}
}
