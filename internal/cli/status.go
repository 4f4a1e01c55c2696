package cli

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/skidoodle/radio-sync/internal/player"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolP("queue", "q", false, "Also list the queue")
	statusCmd.Flags().IntP("limit", "n", 10, "Show at most this many queue items")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the player is doing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		view, err := remoteClient(ctx, cfg).InitialState(ctx)
		if err != nil {
			return err
		}

		limit := 0
		if lo.Must(cmd.Flags().GetBool("queue")) {
			limit = lo.Must(cmd.Flags().GetInt("limit"))
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderStatus(view, cfg.Sync.DefaultTitle, limit))
		return nil
	},
}

// renderStatus formats a view for the terminal. queueLimit 0 leaves the
// queue out.
func renderStatus(view player.PlayerView, defaultTitle string, queueLimit int) string {
	var b strings.Builder

	t := view.State.Track
	if t == nil {
		b.WriteString(dimStyle.Render(player.DocumentTitle(view, defaultTitle)))
		b.WriteString("\n")
	} else {
		b.WriteString(titleStyle.Render(t.Title))
		if t.Author != "" {
			b.WriteString(" " + authorStyle.Render(t.Author))
		}
		b.WriteString("\n")

		pos := view.State.Position.OrElse(0)
		if t.IsStream {
			b.WriteString(liveStyle.Render(player.FormatDuration(true, pos)))
		} else {
			b.WriteString(fmt.Sprintf("%s / %s", player.FormatDuration(false, pos), player.FormatDuration(false, t.Duration)))
		}
		b.WriteString("\n")
	}

	b.WriteString(labelStyle.Render("state") + " " + playbackLabel(view.State) + "  ")
	b.WriteString(labelStyle.Render("loop") + " " + strings.ToLower(string(view.State.Loop)) + "  ")
	b.WriteString(labelStyle.Render("queue") + " " + fmt.Sprint(len(view.Queue)))

	if queueLimit > 0 && len(view.Queue) > 0 {
		b.WriteString("\n")
		for i, q := range lo.Slice(view.Queue, 0, queueLimit) {
			b.WriteString("\n" + renderTrackLine(i, q))
		}
		if rest := len(view.Queue) - queueLimit; rest > 0 {
			b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("     … %d more", rest)))
		}
	}
	return b.String()
}

func renderTrackLine(i int, t player.Track) string {
	line := indexStyle.Render(fmt.Sprint(i)) + " " + t.Title
	if t.Author != "" {
		line += " " + authorStyle.Render(t.Author)
	}
	return line + " " + dimStyle.Render(player.FormatDuration(t.IsStream, t.Duration))
}

func playbackLabel(s player.PlaybackState) string {
	switch {
	case !s.IsPlaying:
		return "stopped"
	case s.IsPaused:
		return "paused"
	default:
		return successStyle.Render("playing")
	}
}
