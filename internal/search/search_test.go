package search

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
	"github.com/zmb3/spotify"

	"github.com/skidoodle/radio-sync/internal/remote"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Search(_ context.Context, q Query) ([]Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []Result{{Kind: KindTrack, Title: q.Text, URI: "u:" + q.Text}}, nil
}

func TestQuery(t *testing.T) {
	Convey("Normalize fills defaults and rejects blank text", t, func() {
		q, err := Query{Text: "  lofi  "}.Normalize()
		So(err, ShouldBeNil)
		So(q, ShouldResemble, Query{Text: "lofi", Source: SourceYouTube, Type: TypeTrack})

		_, err = Query{Text: " "}.Normalize()
		So(errors.Is(err, ErrEmptyQuery), ShouldBeTrue)
	})
}

func TestCached(t *testing.T) {
	Convey("Given a cached provider on an in-memory filesystem", t, func() {
		next := &countingProvider{}
		fs := afero.NewMemMapFs()
		c := NewCached(next, fs, "/cache", time.Hour)
		ctx := context.Background()

		Convey("a repeated query is served from the cache", func() {
			first, err := c.Search(ctx, Query{Text: "Lofi"})
			So(err, ShouldBeNil)
			second, err := c.Search(ctx, Query{Text: "lofi "})
			So(err, ShouldBeNil)
			So(second, ShouldResemble, first)
			So(next.calls, ShouldEqual, 1)

			exists, _ := afero.Exists(fs, "/cache/search_cache.json")
			So(exists, ShouldBeTrue)
		})

		Convey("different sources are cached separately", func() {
			_, _ = c.Search(ctx, Query{Text: "lofi"})
			_, _ = c.Search(ctx, Query{Text: "lofi", Source: SourceSoundCloud})
			So(next.calls, ShouldEqual, 2)
		})

		Convey("failures are not cached", func() {
			next.err = errors.New("catalog down")
			_, err := c.Search(ctx, Query{Text: "lofi"})
			So(err, ShouldNotBeNil)
			next.err = nil
			_, err = c.Search(ctx, Query{Text: "lofi"})
			So(err, ShouldBeNil)
			So(next.calls, ShouldEqual, 2)
		})
	})
}

func TestRouter(t *testing.T) {
	Convey("Spotify queries go to the Spotify provider when set", t, func() {
		fallback, sp := &countingProvider{}, &countingProvider{}
		r := Router{Fallback: fallback, Spotify: sp}
		_, _ = r.Search(context.Background(), Query{Text: "x", Source: SourceSpotify})
		_, _ = r.Search(context.Background(), Query{Text: "x", Source: SourceYouTube})
		So(sp.calls, ShouldEqual, 1)
		So(fallback.calls, ShouldEqual, 1)

		r.Spotify = nil
		_, _ = r.Search(context.Background(), Query{Text: "x", Source: SourceSpotify})
		So(fallback.calls, ShouldEqual, 2)
	})
}

func TestRemoteProvider(t *testing.T) {
	Convey("The remote provider forwards the query and tags result kinds", t, func() {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			got = map[string]string{"path": r.URL.Path, "query": q.Get("query"), "source": q.Get("source"), "type": q.Get("type")}
			_, _ = io.WriteString(w, `[{"title":"Mix","uri":"u:1"}]`)
		}))
		defer srv.Close()

		p := NewRemoteProvider(remote.NewClient(context.Background(), srv.URL, ""))
		res, err := p.Search(context.Background(), Query{Text: "chill", Source: SourceSoundCloud, Type: TypePlaylist})
		So(err, ShouldBeNil)
		So(got, ShouldResemble, map[string]string{"path": "/search", "query": "chill", "source": "soundcloud", "type": "playlist"})
		So(res, ShouldHaveLength, 1)
		So(res[0].Kind, ShouldEqual, KindCollection)
	})
}

func TestFromSpotify(t *testing.T) {
	Convey("Spotify results map to tracks and collections", t, func() {
		res := &spotify.SearchResult{
			Tracks: &spotify.FullTrackPage{Tracks: []spotify.FullTrack{{
				SimpleTrack: spotify.SimpleTrack{
					Name:     "Song",
					Artists:  []spotify.SimpleArtist{{Name: "A"}, {Name: "B"}},
					Duration: 180000,
					URI:      "spotify:track:1",
				},
				Album: spotify.SimpleAlbum{Images: []spotify.Image{{URL: "https://img/1"}}},
			}}},
			Playlists: &spotify.SimplePlaylistPage{Playlists: []spotify.SimplePlaylist{{
				Name:  "Focus",
				Owner: spotify.User{DisplayName: "me"},
				URI:   "spotify:playlist:2",
			}}},
		}

		out := fromSpotify(res)
		So(out, ShouldHaveLength, 2)
		So(out[0], ShouldResemble, Result{
			Kind:       KindTrack,
			Title:      "Song",
			Author:     "A, B",
			URI:        "spotify:track:1",
			ArtworkURL: "https://img/1",
			Duration:   180000,
		})
		So(out[1].Kind, ShouldEqual, KindCollection)
		So(out[1].Author, ShouldEqual, "me")
	})
}
