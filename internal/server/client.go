package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendQueueSize  = 64
)

// client is one websocket connection. Outbound messages are serialized
// through the send channel; the write pump is the only goroutine touching
// the connection for writes. The closed flag outlives the connection:
// dispatch goroutines and broadcasts may still hold this client after
// teardown, and their sends must become no-ops rather than panics.
type client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}
}

// enqueue queues data for delivery, dropping it when the client is closed
// or its queue is full. Broadcast delivery is best-effort; a client that
// falls behind recovers via sync.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendMessage marshals and queues an envelope for this client.
func (c *client) sendMessage(event, id string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("failed to marshal %s payload: %v", event, err)
		return
	}
	msg, err := json.Marshal(Message{Event: event, ID: id, Payload: data})
	if err != nil {
		log.Errorf("failed to marshal %s message: %v", event, err)
		return
	}
	if !c.enqueue(msg) {
		log.Warningf("client %s send queue full, dropping %s", c.id, event)
	}
}

// close marks the client closed and shuts the send channel, which
// terminates the write pump. The flag is flipped under the same lock that
// guards enqueue, so no sender can reach the channel after it is closed.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump consumes inbound messages until the connection dies, handing
// each to the dispatcher on its own goroutine so a slow collaborator call
// never stalls this or any other connection.
func (s *Server) readPump(c *client) {
	defer s.dropClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("client %s read error: %v", c.id, err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warningf("client %s sent invalid message: %v", c.id, err)
			continue
		}
		go s.dispatch(c, msg)
	}
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with pings.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
