package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	DefaultWriteWait       = 10 * time.Second
	DefaultSendBuffer      = 256
	DefaultMaxMessageBytes = 100 << 20
)

// Dispatcher receives a client's lifecycle and packet events.
type Dispatcher interface {
	Register(c Conn) error
	Unregister(c Conn) error
	Receive(src Conn, p Packet) error
}

// ClientConfig tunes a websocket-backed client.
type ClientConfig struct {
	SendBuffer      int
	WriteWait       time.Duration
	MaxMessageBytes int64
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return c
}

type frame struct {
	messageType int
	data        []byte
}

// Client is a Conn over a gorilla websocket. The read pump feeds the
// dispatcher; the write pump is the only writer on the socket and drains
// the send queue so a slow peer never blocks the dispatch loop.
type Client struct {
	id     string
	socket *websocket.Conn
	cfg    ClientConfig
	log    logrus.FieldLogger

	state     atomic.Int32
	send      chan frame
	stop      chan struct{}
	closeOnce sync.Once
	written   sync.WaitGroup
}

func NewClient(socket *websocket.Conn, cfg ClientConfig, log logrus.FieldLogger) *Client {
	cfg = cfg.withDefaults()
	if log == nil {
		log = discardLogger()
	}
	id := uuid.NewString()
	c := &Client{
		id:     id,
		socket: socket,
		cfg:    cfg,
		send:   make(chan frame, cfg.SendBuffer),
		stop:   make(chan struct{}),
	}
	c.log = log.WithFields(logrus.Fields{
		"client_id":   id,
		"remote_addr": socket.RemoteAddr().String(),
	})
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Client) ID() string { return c.id }

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) Ready() bool { return c.State() == StateOpen }

// Send queues p for the write pump.
func (c *Client) Send(p Packet) error {
	return c.enqueue(frame{messageType: p.Framing.MessageType(), data: p.Data})
}

// Ping queues a transport-level ping frame.
func (c *Client) Ping() error {
	return c.enqueue(frame{messageType: websocket.PingMessage})
}

func (c *Client) enqueue(f frame) error {
	if !c.Ready() {
		return ErrNotOpen
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Serve opens the client, registers it with d and starts both pumps. The
// write pump starts first so the cache replay queued during registration is
// flushed right away.
func (c *Client) Serve(d Dispatcher) error {
	c.state.Store(int32(StateOpen))
	c.written.Add(1)
	go c.writePump()

	if err := d.Register(c); err != nil {
		c.Close()
		return err
	}
	go c.readPump(d)
	return nil
}

// Close stops the write pump, which sends a close frame and releases the
// socket. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		c.state.CompareAndSwap(int32(StateConnecting), int32(StateClosing))
		close(c.stop)
	})
}

// Wait blocks until the write pump has exited.
func (c *Client) Wait() { c.written.Wait() }

func (c *Client) readPump(d Dispatcher) {
	defer func() {
		c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		if err := d.Unregister(c); err != nil {
			c.log.WithError(err).Debug("unregister after disconnect")
		}
		c.Close()
	}()

	c.socket.SetReadLimit(c.cfg.MaxMessageBytes)

	for {
		messageType, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).Warn("websocket read error")
			} else {
				c.log.WithError(err).Debug("websocket closed")
			}
			return
		}
		framing, ok := FramingFromMessageType(messageType)
		if !ok {
			continue
		}
		if err := d.Receive(c, NewPacket(framing, data, time.Now())); err != nil {
			c.log.WithError(err).Debug("dropping packet")
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.state.Store(int32(StateClosed))
		if err := c.socket.Close(); err != nil {
			c.log.WithError(err).Debug("close socket")
		}
		c.written.Done()
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.socket.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.log.WithError(err).Debug("set write deadline")
			}
			if err := c.socket.WriteMessage(f.messageType, f.data); err != nil {
				c.log.WithError(err).Warn("websocket write failed")
				return
			}
		case <-c.stop:
			_ = c.socket.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
