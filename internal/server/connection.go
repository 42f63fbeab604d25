package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/doudizhu/internal/protocol"
)

const sendQueueSize = 256

// Connection owns one TCP socket and its two pump goroutines. The read pump
// frames inbound packets and hands them to the session; the write pump is the
// socket's single writer, so queued packets leave in FIFO order.
type Connection struct {
	conn   net.Conn
	logger *log.Logger
	world  *World

	mu      sync.Mutex
	session *Session

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection wraps an accepted socket. Serve must be called to start the
// pumps.
func NewConnection(conn net.Conn, world *World, logger *log.Logger) *Connection {
	return &Connection{
		conn:   conn,
		logger: logger.WithPrefix("conn").With("remote", conn.RemoteAddr().String()),
		world:  world,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Serve runs the write pump in the background and the read pump in the
// calling goroutine, returning when the connection dies.
func (c *Connection) Serve() {
	go c.writePump()
	c.readPump()
	c.Close()
}

// Close shuts the socket down exactly once. The bound session, if any,
// notices on its next tick and starts its grace countdown.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
		c.mu.Lock()
		sess := c.session
		c.mu.Unlock()
		if sess != nil {
			sess.connClosed()
		}
	})
}

// Send queues an outbound packet. A full queue means the client has stopped
// draining; the connection is cut rather than blocking the game tick.
func (c *Connection) Send(pkt *protocol.Packet) {
	frame := protocol.EncodeFrame(pkt)
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		c.logger.Warn("send queue full, dropping connection")
		c.Close()
	}
}

func (c *Connection) writePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if _, err := c.conn.Write(frame); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// readPump frames packets off the socket until it fails. A malformed header
// leaves the stream unrecoverable, so it is fatal.
func (c *Connection) readPump() {
	for {
		pkt, err := protocol.ReadFrame(c.conn)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedHeader) {
				c.logger.Warn("malformed header, dropping connection", "error", err)
			} else if !errors.Is(err, io.EOF) && !isClosedErr(err) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}
		if !c.accept(pkt) {
			return
		}
	}
}

// accept routes one inbound packet. Before login only OpLogin is legal; the
// first login binds a session, later logins on the same socket are dropped.
// Returning false kills the connection.
func (c *Connection) accept(pkt *protocol.Packet) bool {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		if pkt.Opcode() == protocol.OpLogin {
			c.logger.Warn("duplicate login, dropping packet", "account", sess.AccountID())
			return true
		}
		sess.Touch()
		sess.Enqueue(pkt)
		return true
	}

	if pkt.Opcode() != protocol.OpLogin {
		c.logger.Warn("packet before login, dropping connection", "opcode", pkt.Opcode())
		return false
	}

	accountID, err := pkt.PeekUint32(0)
	if err != nil || accountID == 0 {
		c.logger.Warn("login with bad account id, dropping connection")
		return false
	}

	sess = c.world.NewSession(accountID, c)
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	sess.Enqueue(pkt)
	c.world.AddSession(sess)
	c.logger.Info("session bound", "account", accountID)
	return true
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
