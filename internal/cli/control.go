package cli

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/player"
)

func init() {
	for _, c := range []*cobra.Command{
		simpleCommand("pause", "Pause playback", command.Pause),
		simpleCommand("resume", "Resume playback", command.Resume),
		simpleCommand("stop", "Stop playback and clear the current track", command.Stop),
		simpleCommand("skip", "Skip to the next track in the queue", command.Skip),
		simpleCommand("shuffle", "Shuffle the queue", command.ShuffleQueue),
		playCmd, addCmd, seekCmd, loopCmd,
	} {
		rootCmd.AddCommand(c)
	}

	addCmd.Flags().BoolP("next", "n", false, "Put the item at the front of the queue")
	addCmd.Flags().BoolP("shuffle", "s", false, "Shuffle the added tracks")
}

func simpleCommand(name, short string, build func() command.Command) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd, build())
		},
	}
}

var playCmd = &cobra.Command{
	Use:   "play <uri>",
	Short: "Play an item right away",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd, command.Play(args[0]))
	},
}

var addCmd = &cobra.Command{
	Use:   "add <uri>",
	Short: "Add an item to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		next := lo.Must(cmd.Flags().GetBool("next"))
		shuffle := lo.Must(cmd.Flags().GetBool("shuffle"))
		return send(cmd, command.Add(args[0], next, shuffle))
	},
}

var seekCmd = &cobra.Command{
	Use:     "seek <position>",
	Short:   "Seek within the current track",
	Example: "  radio-sync seek 1:30\n  radio-sync seek 95\n  radio-sync seek 2m5s",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := parseTimestamp(args[0])
		if err != nil {
			return err
		}
		return send(cmd, command.Seek(ms))
	},
}

var loopCmd = &cobra.Command{
	Use:       "loop [off|queue|track]",
	Short:     "Set the loop mode, or cycle it when no mode is given",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"off", "queue", "track"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			mode, ok := player.ParseLoopMode(args[0])
			if !ok {
				return fmt.Errorf("unknown loop mode %q", args[0])
			}
			return send(cmd, command.SetLoop(mode))
		}

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
		return send(cmd, command.SetLoop(view.State.Loop.Next()))
	},
}

// send delivers c to the player service and reports the outcome.
func send(cmd *cobra.Command, c command.Command) error {
	if err := c.Validate(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	return sendWith(ctx, cmd, remoteClient(ctx, cfg), c)
}

func describe(c command.Command) string {
	switch c.Kind {
	case command.KindPlay:
		return "playing " + c.URI
	case command.KindAdd:
		if c.PlayNext {
			return "queued next " + c.URI
		}
		return "queued " + c.URI
	case command.KindSeek:
		return "seeked to " + player.FormatDuration(false, c.Position)
	case command.KindLoop:
		return "loop " + string(c.Loop)
	case command.KindRemove:
		return "removed #" + strconv.Itoa(c.Index)
	case command.KindMove:
		return fmt.Sprintf("moved #%d to #%d", c.From, c.To)
	case command.KindTransport:
		return "transport " + c.Transport
	default:
		return string(c.Kind)
	}
}
