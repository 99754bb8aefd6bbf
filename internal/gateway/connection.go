package gateway

import (
	"encoding/json"
	"sync"

	"chat-relay/internal/domain"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is the transport of one client. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection is one authenticated client. It is the relay subscriber for
// every address the client joined.
type Connection struct {
	id       string
	identity domain.Identity
	conn     Conn
	log      logrus.FieldLogger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu     sync.Mutex
	joined map[string]struct{}

	// onEvict runs when a membership event takes this client out of a room.
	onEvict func(address string)
}

func newConnection(conn Conn, identity domain.Identity, buffer int, log logrus.FieldLogger) *Connection {
	id := uuid.New().String()
	c := &Connection{
		id:       id,
		identity: identity,
		conn:     conn,
		log:      log.WithFields(logrus.Fields{"conn_id": id, "user_id": identity.UserID}),
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		joined:   make(map[string]struct{}),
	}
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Identity() domain.Identity {
	return c.identity
}

// Deliver queues env for the client. A full queue drops it.
func (c *Connection) Deliver(env domain.Envelope) bool {
	frame, err := env.Frame()
	if err != nil {
		c.log.WithError(err).WithField("event", env.Event).Warn("Failed to encode frame")
		return false
	}
	ok := c.enqueue(frame, env.Event)
	if c.onEvict != nil && c.evictedBy(env) {
		// Deliver must not block.
		go c.onEvict(env.Address)
	}
	return ok
}

// evictedBy reports whether env ends this client's membership of its room.
func (c *Connection) evictedBy(env domain.Envelope) bool {
	switch env.Event {
	case domain.EventGroupDeleted:
		return true
	case domain.EventMemberRemoved:
		var p domain.MemberPayload
		return json.Unmarshal(env.Data, &p) == nil && p.UserID == c.identity.UserID
	}
	return false
}

// Emit queues a frame addressed to this connection only.
func (c *Connection) Emit(event string, payload interface{}) bool {
	frame, err := domain.NewFrame(event, payload)
	if err != nil {
		c.log.WithError(err).WithField("event", event).Warn("Failed to encode frame")
		return false
	}
	return c.enqueue(frame, event)
}

func (c *Connection) emitError(message string) {
	c.Emit(domain.EventError, domain.ErrorPayload{Message: message})
}

func (c *Connection) enqueue(frame []byte, event string) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.log.WithField("event", event).Warn("Send queue full, dropping event")
		return false
	}
}

func (c *Connection) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.WithError(err).Debug("Write failed, closing connection")
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush writes frames still queued when the connection stops.
func (c *Connection) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// stop ends the writer after draining the queue.
func (c *Connection) stop() {
	c.closeOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

// Joined reports whether the connection joined address.
func (c *Connection) Joined(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[address]
	return ok
}

func (c *Connection) markJoined(address string) {
	c.mu.Lock()
	c.joined[address] = struct{}{}
	c.mu.Unlock()
}

func (c *Connection) markLeft(address string) {
	c.mu.Lock()
	delete(c.joined, address)
	c.mu.Unlock()
}
