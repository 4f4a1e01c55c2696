package queue

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"

	"github.com/skidoodle/radio-sync/internal/player"
)

// Match is a queue item matched by Find.
type Match struct {
	Index    int
	Track    player.Track
	Distance int
}

// Find ranks queue items whose "title author" fuzzily contains text, closest
// first.
func Find(queue []player.Track, text string) []Match {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	targets := lo.Map(queue, func(t player.Track, _ int) string {
		return t.Title + " " + t.Author
	})

	ranks := fuzzy.RankFindNormalizedFold(text, targets)
	sort.Stable(ranks)

	return lo.Map(ranks, func(r fuzzy.Rank, _ int) Match {
		return Match{
			Index:    r.OriginalIndex,
			Track:    queue[r.OriginalIndex],
			Distance: r.Distance,
		}
	})
}
