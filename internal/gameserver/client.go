package gameserver

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Default write queue / timeout constants.
// Overridden by config values when available.
const (
	defaultSendQueueSize = 256
	defaultWriteTimeout  = 5 * time.Second
	defaultReadTimeout   = 120 * time.Second
)

var (
	errSendQueueFull = errors.New("send queue full")
	errClientClosed  = errors.New("client closed")
)

// Transport is one live outbound channel to a user.
// Send must not block; a failed Send means the transport is unusable.
type Transport interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// Client is a websocket connection with its own write goroutine.
type Client struct {
	id     string
	userID int64
	conn   *websocket.Conn

	// Per-client write queue (Gorilla Chat pattern)
	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
	readTimeout  time.Duration
}

// NewClient wraps conn and starts its write pump.
func NewClient(conn *websocket.Conn, userID int64, sendQueueSize int, writeTimeout, readTimeout time.Duration) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	c := &Client{
		id:           uuid.NewString(),
		userID:       userID,
		conn:         conn,
		sendCh:       make(chan []byte, sendQueueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
		readTimeout:  readTimeout,
	}
	go c.writePump()
	return c
}

// ID returns the connection id (uuid), unique per websocket.
func (c *Client) ID() string {
	return c.id
}

// UserID returns the authenticated user of this connection.
func (c *Client) UserID() int64 {
	return c.userID
}

// writePump is the only goroutine writing to conn.
// Pings every 9/10 of readTimeout keep the peer's pongs flowing into the read deadline.
func (c *Client) writePump() {
	ping := time.NewTicker(c.readTimeout * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case msg := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				slog.Warn("set write deadline failed", "conn", c.id, "error", err)
				c.shutdown()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("write failed", "conn", c.id, "userID", c.userID, "error", err)
				c.shutdown()
				return
			}

		case <-ping.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("ping failed", "conn", c.id, "error", err)
				c.shutdown()
				return
			}

		case <-c.closeCh:
			return
		}
	}
}

// Send queues msg for async delivery.
// Non-blocking: returns error if queue is full (slow client → disconnect).
func (c *Client) Send(msg []byte) error {
	select {
	case <-c.closeCh:
		return errClientClosed
	default:
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		slog.Warn("send queue full, disconnecting slow client", "conn", c.id, "userID", c.userID)
		c.shutdown()
		return errSendQueueFull
	}
}

// Closed is closed once the client stops accepting messages.
func (c *Client) Closed() <-chan struct{} {
	return c.closeCh
}

// shutdown signals the write pump to stop and closes the socket. Safe to call many times.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.conn.Close()
	})
}

// Close stops the write pump and closes the connection.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

// readLoop feeds inbound text frames to handle until the connection fails.
func (c *Client) readLoop(handle func(payload []byte)) error {
	c.conn.SetReadLimit(4096)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return err
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return err
		}
		handle(payload)
	}
}
