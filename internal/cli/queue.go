package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/player"
	"github.com/skidoodle/radio-sync/internal/queue"
	"github.com/skidoodle/radio-sync/internal/remote"
)

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd, queueRemoveCmd, queueMoveCmd, queueFindCmd, queuePlayCmd)
	queueFindCmd.Flags().IntP("limit", "n", 5, "Show at most this many matches")
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and edit the queue",
}

var queueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the queue",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withQueue(cmd, func(_ context.Context, _ *remote.Client, view player.PlayerView) error {
			out := cmd.OutOrStdout()
			if len(view.Queue) == 0 {
				fmt.Fprintln(out, dimStyle.Render("the queue is empty"))
				return nil
			}
			for i, t := range view.Queue {
				fmt.Fprintln(out, renderTrackLine(i, t))
			}
			return nil
		})
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:     "remove <index>",
	Aliases: []string{"rm"},
	Short:   "Remove the item at index",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		return withQueue(cmd, func(ctx context.Context, client *remote.Client, view player.PlayerView) error {
			edit, err := queue.RemoveAt(view.Queue, index)
			if err != nil {
				return err
			}
			return sendWith(ctx, cmd, client, edit.Command)
		})
	},
}

var queueMoveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move the item at from to index to",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[1])
		}
		return withQueue(cmd, func(ctx context.Context, client *remote.Client, view player.PlayerView) error {
			edit, err := queue.Move(view.Queue, from, to)
			if err != nil {
				return err
			}
			return sendWith(ctx, cmd, client, edit.Command)
		})
	},
}

var queueFindCmd = &cobra.Command{
	Use:   "find <text>",
	Short: "Find queue items by title or author",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := lo.Must(cmd.Flags().GetInt("limit"))
		return withQueue(cmd, func(_ context.Context, _ *remote.Client, view player.PlayerView) error {
			matches := queue.Find(view.Queue, strings.Join(args, " "))
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no matches"))
				return nil
			}
			for _, m := range lo.Slice(matches, 0, limit) {
				fmt.Fprintln(cmd.OutOrStdout(), renderTrackLine(m.Index, m.Track))
			}
			return nil
		})
	},
}

var queuePlayCmd = &cobra.Command{
	Use:   "play <text>",
	Short: "Play the best matching queue item now and take it off the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return withQueue(cmd, func(ctx context.Context, client *remote.Client, view player.PlayerView) error {
			matches := queue.Find(view.Queue, text)
			if len(matches) == 0 {
				return fmt.Errorf("nothing in the queue matches %q", text)
			}
			best := matches[0]
			if err := sendWith(ctx, cmd, client, command.Play(best.Track.URI)); err != nil {
				return err
			}
			edit, err := queue.RemoveAt(view.Queue, best.Index)
			if err != nil {
				return err
			}
			return sendWith(ctx, cmd, client, edit.Command)
		})
	},
}

// withQueue fetches the current view and hands it to fn. Queue edits are
// resolved against this view, so the uri sent matches the item shown.
func withQueue(cmd *cobra.Command, fn func(context.Context, *remote.Client, player.PlayerView) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	client := remoteClient(ctx, cfg)
	view, err := client.InitialState(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, client, view)
}

func sendWith(ctx context.Context, cmd *cobra.Command, client *remote.Client, c command.Command) error {
	if err := client.Send(ctx, c); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓")+" "+describe(c))
	return nil
}

