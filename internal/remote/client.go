// Package remote talks to the remote player service: the initial state
// fetch, command endpoints, search and the update stream.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/skidoodle/radio-sync/internal/command"
	"github.com/skidoodle/radio-sync/internal/player"
)

const requestTimeout = 10 * time.Second

// ErrNotRemote is returned by Send for intents handled locally.
var ErrNotRemote = errors.New("command is not sent to the player service")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client is a thread-safe client of the player service HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at baseURL. A non-empty token
// is sent as a bearer token on every request.
func NewClient(ctx context.Context, baseURL, token string) *Client {
	httpClient := &http.Client{Timeout: requestTimeout}
	if token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// InitialState fetches the full player state.
func (c *Client) InitialState(ctx context.Context) (player.PlayerView, error) {
	body, err := c.do(ctx, http.MethodGet, "/state", nil, nil)
	if err != nil {
		return player.PlayerView{}, err
	}
	return player.DecodeView(body)
}

// Send delivers a command intent. The response body is ignored; the outcome
// shows up later on the update stream.
func (c *Client) Send(ctx context.Context, cmd command.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	var (
		path string
		body any
	)
	switch cmd.Kind {
	case command.KindPlay:
		path, body = "/play", struct {
			URI string `json:"uri"`
		}{cmd.URI}
	case command.KindAdd:
		path, body = "/add", struct {
			URI      string `json:"uri"`
			PlayNext bool   `json:"playNext"`
			Shuffle  bool   `json:"shuffle"`
		}{cmd.URI, cmd.PlayNext, cmd.Shuffle}
	case command.KindPause:
		path = "/pause"
	case command.KindResume:
		path = "/resume"
	case command.KindStop:
		path = "/stop"
	case command.KindSkip:
		path = "/skip"
	case command.KindShuffle:
		path = "/shuffle"
	case command.KindSeek:
		path, body = "/seek", struct {
			Position int64 `json:"position"`
		}{cmd.Position}
	case command.KindLoop:
		path, body = "/loop", struct {
			Mode player.LoopMode `json:"mode"`
		}{cmd.Loop}
	case command.KindRemove:
		path, body = "/queue/remove", struct {
			Index int    `json:"index"`
			URI   string `json:"uri,omitempty"`
		}{cmd.Index, cmd.URI}
	case command.KindMove:
		path, body = "/queue/move", struct {
			From int    `json:"from"`
			To   int    `json:"to"`
			URI  string `json:"uri"`
		}{cmd.From, cmd.To, cmd.URI}
	default:
		return fmt.Errorf("%w: %s", ErrNotRemote, cmd.Kind)
	}

	_, err := c.do(ctx, http.MethodPost, path, nil, body)
	return err
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", player.ErrDecode, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Warn("failed to close player api response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	log.WithFields(log.Fields{
		"method":    method,
		"path":      path,
		"status":    resp.StatusCode,
		"requestId": requestID,
	}).Debug("player api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
