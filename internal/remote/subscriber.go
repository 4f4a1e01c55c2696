package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/skidoodle/radio-sync/internal/player"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Message is one item of the update stream: a decoded event or the decode
// error of a payload that was dropped.
type Message struct {
	Event player.UpdateEvent
	Err   error
}

// Source feeds update messages to out until ctx is done.
type Source interface {
	Run(ctx context.Context, out chan<- Message) error
}

// Subscriber follows the push channel of the player service. After every
// (re)connect it fetches the full state and emits it as a SNAPSHOT before any
// pushed event, so a reconnect always starts from an authoritative reset.
type Subscriber struct {
	url    string
	client *Client
	header http.Header
	dialer *websocket.Dialer
}

// NewSubscriber creates a subscriber for the websocket at wsURL. token, when
// set, is sent as a bearer token during the handshake.
func NewSubscriber(wsURL string, client *Client, token string) *Subscriber {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Subscriber{
		url:    wsURL,
		client: client,
		header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: requestTimeout,
		},
	}
}

// Run connects and reconnects with capped exponential backoff until ctx is
// done.
func (s *Subscriber) Run(ctx context.Context, out chan<- Message) error {
	log.WithField("url", s.url).Info("subscriber started")
	defer log.Info("subscriber stopped")

	for attempt := 0; ; attempt++ {
		err := s.session(ctx, out, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}

		delay := backoff(attempt)
		log.WithError(err).WithField("retryIn", delay).Warn("update stream lost")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection. synced is called once the snapshot went out.
func (s *Subscriber) session(ctx context.Context, out chan<- Message, synced func()) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return fmt.Errorf("dial update stream: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
	}()

	view, err := s.client.InitialState(ctx)
	if err != nil {
		return fmt.Errorf("fetch state after connect: %w", err)
	}
	if !send(ctx, out, Message{Event: player.SnapshotEvent(view)}) {
		return ctx.Err()
	}
	synced()
	log.Info("update stream connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("update stream closed by server")
			}
			return fmt.Errorf("read update stream: %w", err)
		}

		msg := Message{}
		msg.Event, msg.Err = player.DecodeEvent(data)
		if !send(ctx, out, msg) {
			return ctx.Err()
		}
	}
}

func send(ctx context.Context, out chan<- Message, m Message) bool {
	select {
	case out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoff(attempt int) time.Duration {
	d := minBackoff
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}
