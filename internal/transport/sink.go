package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
)

// ErrNoOutput is returned by Play when a sink has nowhere to play to.
var ErrNoOutput = errors.New("no audio output")

// DiscardSink drops media and counts bytes. Its Play always fails, the way a
// headless host rejects autoplay.
type DiscardSink struct {
	n atomic.Int64
}

func (d *DiscardSink) Write(p []byte) (int, error) {
	d.n.Add(int64(len(p)))
	return len(p), nil
}

func (d *DiscardSink) Play() error { return ErrNoOutput }

// Bytes returns how many bytes were written so far.
func (d *DiscardSink) Bytes() int64 { return d.n.Load() }

// FileSink appends media to a file, or to stdout for "-", so it can be piped
// into a player.
type FileSink struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewFileSink opens path on fs for appending.
func NewFileSink(fs afero.Fs, path string) (*FileSink, error) {
	if path == "-" {
		return &FileSink{w: nopCloser{os.Stdout}}, nil
	}
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	return &FileSink{w: f}, nil
}

func (f *FileSink) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.w == nil {
		return 0, os.ErrClosed
	}
	return f.w.Write(p)
}

func (f *FileSink) Play() error { return nil }

func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.w == nil {
		return nil
	}
	err := f.w.Close()
	f.w = nil
	return err
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
