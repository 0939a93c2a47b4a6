// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cadence/internal/broadcast"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/source"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// clientIDCounter gives clients monotonically increasing IDs so broadcasts
// visit them in a stable order.
var clientIDCounter atomic.Uint64

// Stream is the event source of a streaming client: the caller's
// subscription to a run.
type Stream interface {
	Events() <-chan broadcast.Event[[]models.MergedDayRecord]
	Unsubscribe()
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Message          string `json:"message"`
	UpstreamRejected bool   `json:"upstream_rejected"`
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	stream Stream
}

// NewClient creates a feed client that receives hub broadcasts.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, 256),
	}
}

// NewStreamClient creates a client that relays the events of stream and
// closes the connection after the final one.
func NewStreamClient(hub *Hub, conn *websocket.Conn, stream Stream) *Client {
	c := NewClient(hub, conn)
	c.send = make(chan Message, 8)
	c.stream = stream
	return c
}

// ID returns the client's unique identifier
func (c *Client) ID() uint64 {
	return c.id
}

// StreamMessage converts a run event into its wire message.
func StreamMessage(ev broadcast.Event[[]models.MergedDayRecord]) Message {
	if ev.Err != nil {
		return Message{
			Type: MessageTypeError,
			Data: ErrorData{
				Message:          ev.Err.Error(),
				UpstreamRejected: source.IsUpstreamRejected(ev.Err),
			},
		}
	}
	data := ev.Data
	if data == nil {
		data = []models.MergedDayRecord{}
	}
	if ev.IsFinal {
		return Message{Type: MessageTypeFinal, Data: data}
	}
	return Message{Type: MessageTypeProgress, Data: data}
}

// readPump reads control messages until the connection fails, then
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump writes hub messages and stream events to the connection.
// A stream client's connection is closed normally after the final event.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	var streamEvents <-chan broadcast.Event[[]models.MergedDayRecord]
	if c.stream != nil {
		streamEvents = c.stream.Events()
	}
	defer func() {
		ticker.Stop()
		if c.stream != nil {
			c.stream.Unsubscribe()
		}
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// The hub closed the channel
				c.writeClose(websocket.CloseGoingAway, "server shutting down")
				return
			}
			if err := c.write(message); err != nil {
				return
			}

		case ev, ok := <-streamEvents:
			if !ok {
				c.writeClose(websocket.CloseGoingAway, "stream ended")
				return
			}
			if err := c.write(StreamMessage(ev)); err != nil {
				return
			}
			if ev.IsFinal {
				c.writeClose(websocket.CloseNormalClosure, "run complete")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(message Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set write deadline")
		return err
	}
	if err := c.conn.WriteJSON(message); err != nil {
		logging.Debug().Err(err).Uint64("client_id", c.id).Msg("failed to write JSON message")
		return err
	}
	metrics.WSMessagesSent.Inc()
	return nil
}

func (c *Client) writeClose(code int, text string) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
