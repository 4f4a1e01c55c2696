// Package websocket serves rendered player views to local clients and takes
// their command intents.
package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const sourceHeader = "github.com/skidoodle/radio-sync"

// Server is the render sink: it wires a relay and a hub to an engine.
type Server struct {
	addr          string
	httpServer    *http.Server
	hub           *Hub
	relay         *Relay
	engine        Engine
	realtime      bool
	originChecker func(string) bool
}

// NewServer creates a new, fully configured WebSocket server. With realtime
// set, every clock tick is pushed along with the formatted position.
func NewServer(addr string, allowedOrigins []string, e Engine, realtime bool) *Server {
	hub := NewHub()

	originChecker := func(origin string) bool {
		return len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
	}

	return &Server{
		addr:          addr,
		hub:           hub,
		relay:         NewRelay(e, hub, realtime),
		engine:        e,
		realtime:      realtime,
		originChecker: originChecker,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	wsHandler := s.newWebsocketHandler()

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		isWebSocket := strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
			strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")

		if isWebSocket {
			wsHandler.ServeHTTP(w, r)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Upgrade", "websocket")
		w.Header().Set("Connection", "Upgrade")
		w.Header().Set("X-Source", sourceHeader)
		w.WriteHeader(http.StatusUpgradeRequired)
		if _, err := w.Write([]byte("426 Upgrade Required (" + sourceHeader + ")")); err != nil {
			log.WithError(err).Warn("failed to write upgrade required response")
		}
	})
	return mux
}

// Run starts the hub and the relay, then serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		s.relay.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, stopping http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("http server shutdown error")
		}
	}()

	log.WithField("addr", ln.Addr().String()).Info("http server listening")
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	wg.Wait()

	return nil
}
