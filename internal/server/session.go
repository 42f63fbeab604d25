package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/doudizhu/internal/game"
	"github.com/lox/doudizhu/internal/protocol"
)

// drainCap bounds how many queued packets one session may process per tick,
// so a flooding client cannot starve the others.
const drainCap = 100

// Session is the per-account actor between a connection and a seat. Packets
// arrive from the read goroutine into recvQueue; everything else runs on the
// world tick. A session outlives its socket by the grace window so a
// reconnect-free disconnect still resolves the seat cleanly.
type Session struct {
	accountID uint32
	logger    *log.Logger
	world     *World

	mu        sync.Mutex
	recvQueue []*protocol.Packet
	conn      *Connection

	idleLeft  atomic.Int64 // milliseconds, refreshed from the read goroutine
	connAlive atomic.Bool
	forceExit atomic.Bool

	graceLeft    time.Duration
	loggedIn     bool
	failNotified bool
	seat         *game.Seat
}

func newSession(accountID uint32, conn *Connection, world *World, logger *log.Logger) *Session {
	s := &Session{
		accountID: accountID,
		logger:    logger.WithPrefix("session").With("account", accountID),
		world:     world,
		conn:      conn,
		graceLeft: world.cfg.SessionGrace(),
	}
	s.idleLeft.Store(world.cfg.IdleTimeout().Milliseconds())
	s.connAlive.Store(true)
	return s
}

func (s *Session) AccountID() uint32 { return s.accountID }

// Touch refreshes the idle countdown. Called from the read goroutine on every
// inbound packet.
func (s *Session) Touch() {
	s.idleLeft.Store(s.world.cfg.IdleTimeout().Milliseconds())
}

// Enqueue hands an inbound packet to the tick schedule.
func (s *Session) Enqueue(pkt *protocol.Packet) {
	s.mu.Lock()
	s.recvQueue = append(s.recvQueue, pkt)
	s.mu.Unlock()
}

// connClosed is called by the connection when its socket dies.
func (s *Session) connClosed() {
	s.connAlive.Store(false)
}

// Send implements game.Occupant. Packets queued after the socket died are
// silently dropped.
func (s *Session) Send(pkt *protocol.Packet) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Send(pkt)
	}
}

// ClearSeat implements game.Occupant.
func (s *Session) ClearSeat() {
	s.seat = nil
}

// Kick cuts the connection and skips the grace window, removing the session
// on its next tick.
func (s *Session) Kick() {
	s.forceExit.Store(true)
	s.connAlive.Store(false)
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Update runs one tick: idle enforcement, a bounded drain of queued packets,
// then the disconnect grace countdown. It returns false when the session is
// finished and should be removed.
func (s *Session) Update(diff time.Duration) bool {
	if s.connAlive.Load() && s.idleLeft.Add(-diff.Milliseconds()) <= 0 {
		// A session that never completed login is told why before the socket
		// goes; the close itself waits one tick so the notice can flush.
		if !s.loggedIn && !s.failNotified {
			s.failNotified = true
			pkt := protocol.New(protocol.OpLoginResult)
			pkt.WriteUint32(3)
			s.Send(pkt)
		} else {
			s.logger.Info("idle timeout, closing connection")
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn != nil {
				conn.Close()
			}
		}
	}

	s.drain()

	if s.connAlive.Load() {
		return true
	}

	s.graceLeft -= diff
	if s.graceLeft <= 0 || s.forceExit.Load() {
		s.expire()
		return false
	}
	return true
}

func (s *Session) drain() {
	s.mu.Lock()
	n := len(s.recvQueue)
	if n > drainCap {
		n = drainCap
	}
	batch := s.recvQueue[:n]
	s.recvQueue = s.recvQueue[n:]
	s.mu.Unlock()

	for _, pkt := range batch {
		s.world.dispatch(s, pkt)
	}
}

// expire tears the session down at the end of its life.
func (s *Session) expire() {
	if s.seat != nil {
		s.seat.BeginLogout()
		s.seat = nil
	}
	s.mu.Lock()
	s.conn = nil
	s.recvQueue = nil
	s.mu.Unlock()
	s.logger.Info("session expired", "loggedIn", s.loggedIn)
}
