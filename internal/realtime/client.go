package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hackportal/portal/internal/scoped"
)

// Client is one connection in one room
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room Room

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, room Room) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		room: room,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue queues msg without blocking; false means it was not queued
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close stops the writer; the writer then closes the connection
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump handles inbound frames until the peer goes away. A dropped
// message never ends the connection, oversized ones included; an unscoped
// query does.
func (c *Client) readPump(ctx context.Context) error {
	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, r, err := c.conn.NextReader()
		if err != nil {
			return c.readErr(err)
		}
		data, err := io.ReadAll(io.LimitReader(r, cfg.MaxMessageBytes+1))
		if err != nil {
			return c.readErr(err)
		}
		if int64(len(data)) > cfg.MaxMessageBytes {
			rest, err := io.Copy(io.Discard, r)
			if err != nil {
				return c.readErr(err)
			}
			c.hub.dropOversized(ctx, c.room, int64(len(data))+rest)
			continue
		}

		o := c.hub.Handle(ctx, c.room, data)
		if o.Kind == OutcomeDropped && errors.Is(o.Err, scoped.ErrEventScoping) {
			return o.Err
		}
	}
}

// readErr maps a read failure to the pump's result; a normal close is nil
func (c *Client) readErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return nil
	}
	select {
	case <-c.done:
		return nil
	default:
	}
	return err
}

// writePump is the connection's only writer
func (c *Client) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cfg.WriteTimeout))
			return
		}
	}
}
