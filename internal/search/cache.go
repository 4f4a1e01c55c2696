package search

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/metafates/gache"
	"github.com/samber/mo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultCacheLifetime is how long a cached result list is served.
const DefaultCacheLifetime = 10 * time.Minute

// gacheFs adapts an afero filesystem to gache.
type gacheFs struct{ fs afero.Fs }

func (g gacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return g.fs.OpenFile(name, flag, perm)
}

func (g gacheFs) MkdirAll(path string, perm os.FileMode) error {
	return g.fs.MkdirAll(path, perm)
}

type cacheData struct {
	Results map[string][]Result `json:"results"`
}

// Cached serves repeated queries from a file cache. The whole file expires
// after the lifetime.
type Cached struct {
	next     Provider
	internal *gache.Cache[*cacheData]
	mu       sync.Mutex
}

// NewCached wraps next with a cache stored in dir on fs.
func NewCached(next Provider, fs afero.Fs, dir string, lifetime time.Duration) *Cached {
	if lifetime <= 0 {
		lifetime = DefaultCacheLifetime
	}
	return &Cached{
		next: next,
		internal: gache.New[*cacheData](&gache.Options{
			Path:       filepath.Join(dir, "search_cache.json"),
			Lifetime:   lifetime,
			FileSystem: gacheFs{fs: fs},
		}),
	}
}

func (c *Cached) Search(ctx context.Context, q Query) ([]Result, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	key := cacheKey(q)

	if hit, ok := c.get(key).Get(); ok {
		log.WithField("query", q.Text).Debug("search cache hit")
		return hit, nil
	}

	results, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.set(key, results); err != nil {
		log.WithError(err).Warn("failed to write search cache")
	}
	return results, nil
}

func (c *Cached) get(key string) mo.Option[[]Result] {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, expired, err := c.internal.Get()
	if err != nil || expired || data == nil {
		return mo.None[[]Result]()
	}
	if r, ok := data.Results[key]; ok {
		return mo.Some(r)
	}
	return mo.None[[]Result]()
}

func (c *Cached) set(key string, results []Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, expired, err := c.internal.Get()
	if err != nil {
		return err
	}
	if expired || data == nil || data.Results == nil {
		data = &cacheData{Results: make(map[string][]Result)}
	}
	data.Results[key] = results
	return c.internal.Set(data)
}

func cacheKey(q Query) string {
	return string(q.Source) + "|" + string(q.Type) + "|" + strings.ToLower(q.Text)
}
