package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/skidoodle/radio-sync/internal/command"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	sendQueue = 16
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	issue     func(command.Command) error
	send      chan any
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, issue func(command.Command) error) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		issue: issue,
		send:  make(chan any, sendQueue),
		done:  make(chan struct{}),
	}
}

// enqueue hands a message to the write pump. A client too slow to keep up
// loses the message rather than stalling the hub.
func (c *Client) enqueue(msg any) bool {
	select {
	case c.send <- msg:
		return true
	default:
		log.WithField("remoteAddr", c.conn.RemoteAddr()).Debug("client send queue full, dropping message")
		return false
	}
}

// close is a thread-safe method to clean up the client's resources.
// It ensures that the unregister and connection close operations happen exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		log.WithField("remoteAddr", c.conn.RemoteAddr()).Debug("closing client connection")
		close(c.done)
		c.hub.remove(c)
		if err := c.conn.Close(); err != nil {
			// expected if the other end already hung up
			log.WithError(err).WithField("remoteAddr", c.conn.RemoteAddr()).Debug("error while closing client connection")
		}
	})
}

// readPump reads command intents until the connection drops. Any message,
// including one that fails to decode, extends the read deadline.
func (c *Client) readPump() {
	defer c.close()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.WithError(err).WithField("remoteAddr", c.conn.RemoteAddr()).Warn("failed to set initial read deadline")
		return
	}

	for {
		var cmd command.Command
		err := websocket.JSON.Receive(c.conn, &cmd)
		switch {
		case errors.Is(err, io.EOF):
			return
		case err != nil && isDecodeError(err):
			c.enqueue(ErrorMessage{Type: typeError, Error: "malformed command"})
		case err != nil:
			log.WithError(err).WithField("remoteAddr", c.conn.RemoteAddr()).Debug("client read error, triggering disconnect")
			return
		default:
			if err := c.issue(cmd); err != nil {
				c.enqueue(ErrorMessage{Type: typeError, Command: string(cmd.Kind), Error: err.Error()})
			}
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.WithError(err).WithField("remoteAddr", c.conn.RemoteAddr()).Warn("failed to reset read deadline")
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	defer c.close()

	for {
		var message any
		select {
		case <-c.done:
			return
		case message = <-c.send:
		}
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.WithError(err).WithField("remoteAddr", c.conn.RemoteAddr()).Warn("failed to set write deadline")
			return
		}
		if err := websocket.JSON.Send(c.conn, message); err != nil {
			log.WithError(err).WithField("remoteAddr", c.conn.RemoteAddr()).Warn("client write error")
			return
		}
	}
}

func isDecodeError(err error) bool {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syntax) || errors.As(err, &typ)
}
