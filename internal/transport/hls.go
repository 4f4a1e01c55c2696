package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/grafov/m3u8"
	log "github.com/sirupsen/logrus"
)

const (
	liveEdgeSegments = 3
	maxHLSFailures   = 3
	minRefresh       = 250 * time.Millisecond
)

// HLS plays a live HLS stream by polling its playlist and copying segments
// into the sink.
type HLS struct {
	url    string
	client *http.Client
}

func NewHLS(manifestURL string, client *http.Client) *HLS {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HLS{url: manifestURL, client: client}
}

// Start loads the manifest, resolving a master playlist to its highest
// bandwidth variant, then follows the media playlist from the live edge. A
// manifest that cannot be loaded is fatal.
func (h *HLS) Start(ctx context.Context, sink Sink, r Reporter) (Conn, error) {
	mediaURL, pl, err := h.resolve(ctx, h.url)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &hlsConn{cancel: cancel, done: make(chan struct{})}
	f := &hlsFollower{h: h, url: mediaURL, sink: sink, r: r}
	go func() {
		defer close(c.done)
		f.run(ctx, pl)
	}()
	return c, nil
}

func (h *HLS) resolve(ctx context.Context, u string) (string, *m3u8.MediaPlaylist, error) {
	for range 2 {
		pl, kind, err := h.fetchPlaylist(ctx, u)
		if err != nil {
			return "", nil, err
		}
		switch kind {
		case m3u8.MEDIA:
			return u, pl.(*m3u8.MediaPlaylist), nil
		case m3u8.MASTER:
			v := bestVariant(pl.(*m3u8.MasterPlaylist))
			if v == nil {
				return "", nil, errors.New("master playlist has no variants")
			}
			next, err := resolveRef(u, v.URI)
			if err != nil {
				return "", nil, err
			}
			u = next
		}
	}
	return "", nil, errors.New("nested master playlists")
}

func (h *HLS) fetchPlaylist(ctx context.Context, u string) (m3u8.Playlist, m3u8.ListType, error) {
	body, err := h.get(ctx, u)
	if err != nil {
		return nil, 0, fmt.Errorf("load playlist: %w", err)
	}
	pl, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, 0, fmt.Errorf("parse playlist: %w", err)
	}
	return pl, kind, nil
}

func (h *HLS) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("failed to close hls response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func bestVariant(master *m3u8.MasterPlaylist) *m3u8.Variant {
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v != nil && (best == nil || v.Bandwidth > best.Bandwidth) {
			best = v
		}
	}
	return best
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

type hlsConn struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (c *hlsConn) Close() error {
	c.once.Do(c.cancel)
	<-c.done
	return nil
}

type hlsFollower struct {
	h    *HLS
	url  string
	sink Sink
	r    Reporter

	next     uint64
	started  bool
	attached bool
	failures int
}

func (f *hlsFollower) run(ctx context.Context, pl *m3u8.MediaPlaylist) {
	for {
		if err := f.consume(ctx, pl); err != nil {
			if ctx.Err() == nil {
				f.r.Failed(err)
			}
			return
		}
		if pl.Closed {
			f.r.Failed(ErrStreamEnded)
			return
		}

		wait := time.Duration(pl.TargetDuration * float64(time.Second) / 2)
		timer := time.NewTimer(max(wait, minRefresh))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		next, _, err := f.h.fetchPlaylist(ctx, f.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if ferr := f.failure(err); ferr != nil {
				f.r.Failed(ferr)
				return
			}
			continue
		}
		media, ok := next.(*m3u8.MediaPlaylist)
		if !ok {
			f.r.Failed(errors.New("playlist turned into a master playlist"))
			return
		}
		pl = media
	}
}

// consume writes every segment of pl not written yet. The first pass starts
// at the live edge.
func (f *hlsFollower) consume(ctx context.Context, pl *m3u8.MediaPlaylist) error {
	segs := make([]*m3u8.MediaSegment, 0, len(pl.Segments))
	for _, s := range pl.Segments {
		if s != nil {
			segs = append(segs, s)
		}
	}

	if !f.started {
		f.started = true
		start := max(len(segs)-liveEdgeSegments, 0)
		f.next = pl.SeqNo + uint64(start)
	}

	for i, seg := range segs {
		seq := pl.SeqNo + uint64(i)
		if seq < f.next {
			continue
		}
		f.next = seq + 1

		u, err := resolveRef(f.url, seg.URI)
		if err != nil {
			if ferr := f.failure(err); ferr != nil {
				return ferr
			}
			continue
		}
		data, err := f.h.get(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if ferr := f.failure(err); ferr != nil {
				return ferr
			}
			continue
		}
		if _, err := f.sink.Write(data); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		f.failures = 0
		if !f.attached {
			f.attached = true
			f.r.Attached()
		}
	}
	return nil
}

// failure counts a recoverable error and turns it fatal once too many
// happened in a row.
func (f *hlsFollower) failure(err error) error {
	f.failures++
	if f.failures >= maxHLSFailures {
		return fmt.Errorf("%d consecutive hls failures: %w", f.failures, err)
	}
	log.WithError(err).WithField("failures", f.failures).Warn("hls fetch failed")
	return nil
}
