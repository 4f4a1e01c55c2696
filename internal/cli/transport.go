package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/net/websocket"

	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/config"
	"github.com/skidoodle/radio-sync/internal/transport"
)

func init() {
	rootCmd.AddCommand(transportCmd)
	transportCmd.Flags().String("host", "localhost", "Host of the running serve command")
	transportCmd.Flags().String("origin", "http://localhost", "Origin sent to the local server")
}

// transportCmd switches the live audio transport of a running serve
// command. The switch is local, so it goes through the local hub instead of
// the player service.
var transportCmd = &cobra.Command{
	Use:       "transport <auto|hls|webrtc>",
	Short:     "Switch the live audio transport of a running server",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(transport.KindAuto), string(transport.KindHLS), string(transport.KindWebRTC)},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := transport.ParseKind(args[0])
		if err != nil {
			return err
		}
		url := fmt.Sprintf("ws://%s:%s/", lo.Must(cmd.Flags().GetString("host")), v.GetString(config.ServerPort))
		origin := lo.Must(cmd.Flags().GetString("origin"))

		c := command.SwitchTransport(string(kind))
		if err := sendLocal(url, origin, c, 2*time.Second); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓")+" "+describe(c))
		return nil
	},
}

type hubMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Error   string `json:"error"`
}

// sendLocal issues c on the local hub and waits up to wait for it to be
// rejected. Silence counts as accepted.
func sendLocal(url, origin string, c command.Command, wait time.Duration) error {
	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return fmt.Errorf("connecting to local server: %w", err)
	}
	defer ws.Close()

	if err := websocket.JSON.Send(ws, c); err != nil {
		return err
	}

	deadline := time.Now().Add(wait)
	if err := ws.SetReadDeadline(deadline); err != nil {
		return err
	}
	for time.Now().Before(deadline) {
		var raw json.RawMessage
		if err := websocket.JSON.Receive(ws, &raw); err != nil {
			// deadline reached or server went away
			return nil
		}
		var m hubMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.Type == "error" && m.Command == string(c.Kind) {
			return errors.New(m.Error)
		}
	}
	return nil
}
