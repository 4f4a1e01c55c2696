package websocket

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/skidoodle/radio-sync/internal/transport"
)

// newWebsocketHandler creates a new WebSocket handler closure.
func (s *Server) newWebsocketHandler() websocket.Handler {
	return func(ws *websocket.Conn) {
		origin := ws.Config().Origin.String()
		if !s.originChecker(origin) {
			log.WithField("origin", origin).Warn("origin not allowed, rejecting connection")
			if err := ws.Close(); err != nil {
				log.WithError(err).Debug("error while closing rejected connection")
			}
			return
		}

		client := newClient(s.hub, ws, s.engine.Issue)
		if !s.hub.add(client) {
			client.close()
			return
		}

		// the current view goes out before any broadcast
		client.enqueue(newPlaybackState(s.engine.CurrentView(), s.realtime))

		go client.writePump()
		client.readPump()
	}
}

type health struct {
	Status    string          `json:"status"`
	Synced    bool            `json:"synced"`
	Clients   int             `json:"clients"`
	Transport transport.State `json:"transport"`
}

// healthHandler responds to Docker health checks.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	rendered := s.engine.CurrentView()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(health{
		Status:    "ok",
		Synced:    rendered.Synced,
		Clients:   s.hub.Len(),
		Transport: rendered.Transport.State,
	})
	if err != nil {
		log.WithError(err).Warn("failed to write health check response")
	}
}
