package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/zmb3/spotify"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyLimit    = 20
)

// SpotifyProvider queries the Spotify Web API directly with app credentials.
type SpotifyProvider struct {
	client *spotify.Client
}

// NewSpotifyProvider creates a provider using the client credentials flow.
// The token source refreshes tokens on its own and is safe for concurrent use.
func NewSpotifyProvider(ctx context.Context, clientID, clientSecret string) *SpotifyProvider {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}
	c := spotify.NewClient(conf.Client(ctx))
	return &SpotifyProvider{client: &c}
}

func (p *SpotifyProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, ok := spotifyTypes[q.Type]
	if !ok {
		return nil, fmt.Errorf("%w: spotify type %q", ErrUnsupported, q.Type)
	}

	limit := spotifyLimit
	res, err := p.client.SearchOpt(q.Text, st, &spotify.Options{Limit: &limit})
	if err != nil {
		return nil, fmt.Errorf("spotify search %q: %w", q.Text, err)
	}
	return fromSpotify(res), nil
}

var spotifyTypes = map[Type]spotify.SearchType{
	TypeTrack:    spotify.SearchTypeTrack,
	TypeAlbum:    spotify.SearchTypeAlbum,
	TypePlaylist: spotify.SearchTypePlaylist,
	TypeArtist:   spotify.SearchTypeArtist,
}

func fromSpotify(res *spotify.SearchResult) []Result {
	var out []Result
	if res.Tracks != nil {
		out = append(out, lo.Map(res.Tracks.Tracks, func(t spotify.FullTrack, _ int) Result {
			return Result{
				Kind:       KindTrack,
				Title:      t.Name,
				Author:     artistNames(t.Artists),
				URI:        string(t.URI),
				ArtworkURL: firstImage(t.Album.Images),
				Duration:   int64(t.Duration),
			}
		})...)
	}
	if res.Albums != nil {
		out = append(out, lo.Map(res.Albums.Albums, func(a spotify.SimpleAlbum, _ int) Result {
			return Result{
				Kind:       KindCollection,
				Title:      a.Name,
				Author:     artistNames(a.Artists),
				URI:        string(a.URI),
				ArtworkURL: firstImage(a.Images),
			}
		})...)
	}
	if res.Playlists != nil {
		out = append(out, lo.Map(res.Playlists.Playlists, func(pl spotify.SimplePlaylist, _ int) Result {
			return Result{
				Kind:       KindCollection,
				Title:      pl.Name,
				Author:     pl.Owner.DisplayName,
				URI:        string(pl.URI),
				ArtworkURL: firstImage(pl.Images),
				TrackCount: int(pl.Tracks.Total),
			}
		})...)
	}
	if res.Artists != nil {
		out = append(out, lo.Map(res.Artists.Artists, func(a spotify.FullArtist, _ int) Result {
			return Result{
				Kind:       KindCollection,
				Title:      a.Name,
				URI:        string(a.URI),
				ArtworkURL: firstImage(a.Images),
			}
		})...)
	}
	return out
}

func artistNames(artists []spotify.SimpleArtist) string {
	return strings.Join(lo.Map(artists, func(a spotify.SimpleArtist, _ int) string { return a.Name }), ", ")
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
