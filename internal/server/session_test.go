package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/doudizhu/internal/game"
	"github.com/lox/doudizhu/internal/protocol"
)

func TestDrainCapBoundsPacketsPerTick(t *testing.T) {
	w := newTestWorld(t)
	s := newSession(9, nil, w, w.logger)
	for i := 0; i < 250; i++ {
		s.Enqueue(protocol.New(protocol.OpNone))
	}

	s.Update(time.Millisecond)
	s.mu.Lock()
	left := len(s.recvQueue)
	s.mu.Unlock()
	assert.Equal(t, 150, left)

	s.Update(time.Millisecond)
	s.Update(time.Millisecond)
	s.mu.Lock()
	left = len(s.recvQueue)
	s.mu.Unlock()
	assert.Equal(t, 0, left)
}

func TestIdleTimeoutNotifiesThenCloses(t *testing.T) {
	w := newTestWorld(t)
	client, c := dialPipe(t, w)

	s := newSession(9, c, w, w.logger)
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	// First expiry tick warns the unauthenticated client, the next closes.
	assert.True(t, s.Update(w.cfg.IdleTimeout()))
	reply := readServerFrame(t, client)
	require.Equal(t, protocol.OpLoginResult, reply.Opcode())
	code, err := reply.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), code)

	assert.True(t, s.Update(testTick))
	require.Eventually(t, func() bool { return !s.connAlive.Load() }, time.Second, 5*time.Millisecond)
}

func TestTouchResetsIdleCountdown(t *testing.T) {
	w := newTestWorld(t)
	s := newSession(9, nil, w, w.logger)

	s.Update(w.cfg.IdleTimeout() - time.Millisecond)
	s.Touch()
	assert.True(t, s.Update(w.cfg.IdleTimeout()-time.Millisecond))
	assert.False(t, s.failNotified)
}

func TestGraceCountdownOutlivesConnection(t *testing.T) {
	w := newTestWorld(t)
	s := newSession(9, nil, w, w.logger)
	s.loggedIn = true
	s.connClosed()

	half := w.cfg.SessionGrace() / 2
	assert.True(t, s.Update(half))
	assert.False(t, s.Update(half))
}

func TestGraceExpiryLogsOutSeat(t *testing.T) {
	w := newTestWorld(t)
	s := newSession(9, nil, w, w.logger)
	_, err := w.seatSession(s, 0)
	require.NoError(t, err)
	seat := s.seat
	require.NotNil(t, seat)
	s.loggedIn = true

	s.connClosed()
	assert.False(t, s.Update(w.cfg.SessionGrace()))

	assert.Nil(t, s.seat)
	assert.Equal(t, game.StatusLoggedOut, seat.Status())
}

func TestKickSkipsGraceWindow(t *testing.T) {
	w := newTestWorld(t)
	s := newSession(9, nil, w, w.logger)
	s.loggedIn = true

	s.Kick()
	assert.False(t, s.Update(time.Millisecond))
}

func TestSendAfterExpiryIsDropped(t *testing.T) {
	w := newTestWorld(t)
	s := newSession(9, nil, w, w.logger)
	s.loggedIn = true
	s.Kick()
	s.Update(time.Millisecond)

	// Must not panic once the connection reference is gone.
	s.Send(protocol.New(protocol.OpWaitStart))
}
