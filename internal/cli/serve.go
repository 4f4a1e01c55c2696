package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/skidoodle/radio-sync/internal/config"
	"github.com/skidoodle/radio-sync/internal/engine"
	"github.com/skidoodle/radio-sync/internal/remote"
	"github.com/skidoodle/radio-sync/internal/transport"
	"github.com/skidoodle/radio-sync/internal/websocket"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "", "Port of the local websocket server")
	lo.Must0(v.BindPFlag(config.ServerPort, serveCmd.Flags().Lookup("port")))

	serveCmd.Flags().Bool("rt", false, "Push every clock tick to clients")
	lo.Must0(v.BindPFlag(config.Realtime, serveCmd.Flags().Lookup("rt")))

	serveCmd.Flags().StringP("transport", "t", "", "Live audio transport (auto, hls, webrtc)")
	lo.Must0(v.BindPFlag(config.TransportKind, serveCmd.Flags().Lookup("transport")))
	lo.Must0(serveCmd.RegisterFlagCompletionFunc("transport", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(transport.KindAuto), string(transport.KindHLS), string(transport.KindWebRTC)}, cobra.ShellCompDirectiveNoFileComp
	}))

	serveCmd.Flags().String("sink", "", `Write live audio to this file, "-" for stdout`)
	lo.Must0(v.BindPFlag(config.AudioSink, serveCmd.Flags().Lookup("sink")))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Follow the player and serve the synced view to local clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, afero.NewOsFs())
	},
}

func serve(ctx context.Context, cfg *config.Config, fs afero.Fs) error {
	client := remoteClient(ctx, cfg)

	var source remote.Source
	if cfg.API.WSURL != "" {
		source = remote.NewSubscriber(cfg.API.WSURL, client, cfg.API.Token)
	} else {
		log.WithField("interval", cfg.Sync.PollInterval).Info("no push channel configured, polling for updates")
		source = remote.NewPoller(client, cfg.Sync.PollInterval, cfg.Sync.DriftThreshold)
	}

	engineCfg := engine.Config{
		DriftThreshold: cfg.Sync.DriftThreshold,
		OverlayTimeout: cfg.Sync.OverlayTimeout,
		TickInterval:   cfg.Sync.TickInterval,
		CommandTimeout: cfg.Sync.CommandTimeout,
		DefaultTitle:   cfg.Sync.DefaultTitle,
	}

	var opts []engine.Option
	if cfg.HasMedia() {
		selector, sink, err := newSelector(cfg, fs)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				log.WithError(err).Warn("error closing audio sink")
			}
		}()
		opts = append(opts, engine.WithTransport(selector))
		engineCfg.Transport = cfg.Transport.Kind
	}

	eng := engine.New(engineCfg, source, client, opts...)
	srv := websocket.NewServer(":"+cfg.Server.Port, cfg.Server.AllowedOrigins, eng, cfg.Server.Realtime)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	fail := func(err error) {
		if err != nil {
			errOnce.Do(func() { runErr = err })
			cancel()
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		fail(eng.Run(ctx))
	}()
	go func() {
		defer wg.Done()
		fail(srv.Run(ctx))
	}()
	wg.Wait()

	return runErr
}

type sinkCloser interface {
	transport.Sink
	io.Closer
}

type discardCloser struct{ *transport.DiscardSink }

func (discardCloser) Close() error { return nil }

// newSelector builds the transport selector for the configured media URLs.
func newSelector(cfg *config.Config, fs afero.Fs) (*transport.Selector, sinkCloser, error) {
	var sink sinkCloser = discardCloser{&transport.DiscardSink{}}
	if cfg.Transport.Sink != "" {
		fileSink, err := transport.NewFileSink(fs, cfg.Transport.Sink)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audio sink: %w", err)
		}
		sink = fileSink
	}

	transports := make(map[transport.Kind]transport.Transport)
	if cfg.Transport.HLSURL != "" {
		transports[transport.KindHLS] = transport.NewHLS(cfg.Transport.HLSURL, nil)
	}
	if cfg.Transport.WHEPURL != "" {
		whep, err := transport.NewWHEP(cfg.Transport.WHEPURL, nil, cfg.Transport.Bitrate, cfg.Transport.STUNURLs...)
		if err != nil {
			return nil, nil, errors.Join(err, sink.Close())
		}
		transports[transport.KindWebRTC] = whep
	}

	selector := transport.NewSelector(transports, sink, transport.WithFallback(cfg.Transport.Fallback))
	return selector, sink, nil
}
