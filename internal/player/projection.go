package player

import "fmt"

// DefaultTitle is shown when nothing is playing.
const DefaultTitle = "Bach's Personal Radio"

// DocumentTitle derives the window/document title from a view. It is
// recomputed on every render and never stored.
func DocumentTitle(v PlayerView, fallback string) string {
	if fallback == "" {
		fallback = DefaultTitle
	}
	t := v.State.Track
	if t == nil || t.Title == "" {
		return fallback
	}
	if t.Author == "" {
		return t.Title
	}
	return fmt.Sprintf("%s | %s", t.Title, t.Author)
}

// FormatDuration renders milliseconds as m:ss or h:mm:ss. Streams render as
// "LIVE".
func FormatDuration(isStream bool, ms int64) string {
	if isStream {
		return "LIVE"
	}
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
