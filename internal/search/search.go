// Package search looks up playable items in external catalogs.
package search

import (
	"context"
	"errors"
	"strings"
)

// Source is the catalog a query runs against.
type Source string

const (
	SourceYouTube    Source = "youtube"
	SourceSpotify    Source = "spotify"
	SourceSoundCloud Source = "soundcloud"
)

// Type filters results by kind.
type Type string

const (
	TypeTrack    Type = "track"
	TypePlaylist Type = "playlist"
	TypeAlbum    Type = "album"
	TypeArtist   Type = "artist"
)

// ResultKind tells a single track from a collection of tracks.
type ResultKind string

const (
	KindTrack      ResultKind = "track"
	KindCollection ResultKind = "collection"
)

var (
	ErrEmptyQuery  = errors.New("empty search query")
	ErrUnsupported = errors.New("unsupported search")
)

// Query is one search request.
type Query struct {
	Text   string `json:"query"`
	Source Source `json:"source"`
	Type   Type   `json:"type"`
}

// Normalize trims the text and fills in defaults.
func (q Query) Normalize() (Query, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, ErrEmptyQuery
	}
	if q.Source == "" {
		q.Source = SourceYouTube
	}
	if q.Type == "" {
		q.Type = TypeTrack
	}
	return q, nil
}

// Result is one item of an ordered result list.
type Result struct {
	Kind       ResultKind `json:"kind"`
	Title      string     `json:"title"`
	Author     string     `json:"author,omitempty"`
	URI        string     `json:"uri"`
	ArtworkURL string     `json:"artworkUrl,omitempty"`
	Duration   int64      `json:"duration,omitempty"`
	IsStream   bool       `json:"isStream,omitempty"`
	TrackCount int        `json:"trackCount,omitempty"`
}

// Provider runs queries against a catalog.
type Provider interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

// Router sends Spotify queries to a dedicated provider when one is set and
// everything else to the fallback.
type Router struct {
	Fallback Provider
	Spotify  Provider
}

func (r Router) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Source == SourceSpotify && r.Spotify != nil {
		return r.Spotify.Search(ctx, q)
	}
	return r.Fallback.Search(ctx, q)
}
