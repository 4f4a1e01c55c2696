package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/config"
	"github.com/skidoodle/radio-sync/internal/player"
	"github.com/skidoodle/radio-sync/internal/remote"
	"github.com/skidoodle/radio-sync/internal/search"
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringP("source", "S", string(search.SourceYouTube), "Catalog to search (youtube, spotify, soundcloud)")
	lo.Must0(searchCmd.RegisterFlagCompletionFunc("source", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(search.SourceYouTube), string(search.SourceSpotify), string(search.SourceSoundCloud)}, cobra.ShellCompDirectiveNoFileComp
	}))
	searchCmd.Flags().StringP("type", "t", string(search.TypeTrack), "Result type (track, playlist, album, artist)")
	searchCmd.Flags().BoolP("add", "a", false, "Queue the first result")
	searchCmd.Flags().IntP("limit", "n", 10, "Show at most this many results")
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search a catalog for something to play",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		client := remoteClient(ctx, cfg)
		q := search.Query{
			Text:   strings.Join(args, " "),
			Source: search.Source(strings.ToLower(lo.Must(cmd.Flags().GetString("source")))),
			Type:   search.Type(strings.ToLower(lo.Must(cmd.Flags().GetString("type")))),
		}
		results, err := newSearcher(ctx, cfg, client, afero.NewOsFs()).Search(ctx, q)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no results"))
			return nil
		}

		limit := lo.Must(cmd.Flags().GetInt("limit"))
		for i, r := range lo.Slice(results, 0, limit) {
			fmt.Fprintln(cmd.OutOrStdout(), renderResult(i, r))
		}

		if lo.Must(cmd.Flags().GetBool("add")) {
			return send(cmd, command.Add(results[0].URI, false, false))
		}
		return nil
	},
}

// newSearcher routes spotify queries to the catalog API when credentials are
// configured and everything else through the player service. Both go through
// the file cache.
func newSearcher(ctx context.Context, cfg *config.Config, client *remote.Client, fs afero.Fs) search.Provider {
	router := search.Router{Fallback: search.NewRemoteProvider(client)}
	if cfg.Spotify.ClientID != "" {
		router.Spotify = search.NewSpotifyProvider(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	}
	return search.NewCached(router, fs, cfg.Search.CacheDir, cfg.Search.CacheTTL)
}

func renderResult(i int, r search.Result) string {
	line := indexStyle.Render(fmt.Sprint(i)) + " " + r.Title
	if r.Author != "" {
		line += " " + authorStyle.Render(r.Author)
	}
	switch r.Kind {
	case search.KindCollection:
		line += " " + dimStyle.Render(fmt.Sprintf("%d tracks", r.TrackCount))
	default:
		line += " " + dimStyle.Render(player.FormatDuration(r.IsStream, r.Duration))
	}
	return line + "\n     " + dimStyle.Render(r.URI)
}
