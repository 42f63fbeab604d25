package server

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/doudizhu/internal/game"
	"github.com/lox/doudizhu/internal/protocol"
)

// dialPipe wires a connection into the world over an in-memory pipe and
// returns the client end.
func dialPipe(t *testing.T, w *World) (net.Conn, *Connection) {
	t.Helper()
	client, srv := net.Pipe()
	c := NewConnection(srv, w, log.New(io.Discard))
	go c.Serve()
	t.Cleanup(func() {
		client.Close()
		c.Close()
	})
	return client, c
}

func writeClientFrame(t *testing.T, conn net.Conn, pkt *protocol.Packet) {
	t.Helper()
	_, err := conn.Write(protocol.EncodeClientFrame(pkt))
	require.NoError(t, err)
}

func readServerFrame(t *testing.T, conn net.Conn) *protocol.Packet {
	t.Helper()
	var hdr [protocol.ServerHeaderSize]byte
	_, err := io.ReadFull(conn, hdr[:])
	require.NoError(t, err)
	size := binary.LittleEndian.Uint32(hdr[:])
	op := protocol.Opcode(binary.LittleEndian.Uint32(hdr[4:]))
	body := make([]byte, int(size)-4)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)
	return protocol.FromWire(op, body)
}

// tickUntil drives the world until cond holds, failing the test if it never
// does.
func tickUntil(t *testing.T, w *World, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		w.update(testTick)
		return cond()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLoginOverPipeBindsSessionAndReplies(t *testing.T) {
	w := newTestWorld(t)
	client, c := dialPipe(t, w)

	writeClientFrame(t, client, loginPacket(7, 0))
	tickUntil(t, w, func() bool { return w.SessionCount() == 1 })

	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	require.NotNil(t, sess)
	assert.Equal(t, uint32(7), sess.AccountID())

	reply := readServerFrame(t, client)
	require.Equal(t, protocol.OpLoginResult, reply.Opcode())
	code, err := reply.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), code)
	_, err = game.DecodeProfile(reply)
	assert.NoError(t, err)
}

func TestPacketBeforeLoginIsFatal(t *testing.T) {
	w := newTestWorld(t)
	client, _ := dialPipe(t, w)

	pkt := protocol.New(protocol.OpGrabLandlord)
	pkt.WriteUint32(1)
	pkt.WriteUint32(2)
	writeClientFrame(t, client, pkt)

	var buf [1]byte
	_, err := client.Read(buf[:])
	assert.Error(t, err)
}

func TestMalformedHeaderIsFatal(t *testing.T) {
	w := newTestWorld(t)
	client, _ := dialPipe(t, w)

	var hdr [protocol.ClientHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[:], protocol.MaxClientFrame+1)
	binary.LittleEndian.PutUint32(hdr[2:], uint32(protocol.OpLogin))
	_, err := client.Write(hdr[:])
	require.NoError(t, err)

	var buf [1]byte
	_, err = client.Read(buf[:])
	assert.Error(t, err)
}

func TestZeroAccountLoginIsFatal(t *testing.T) {
	w := newTestWorld(t)
	client, _ := dialPipe(t, w)

	writeClientFrame(t, client, loginPacket(0, 0))

	var buf [1]byte
	_, err := client.Read(buf[:])
	assert.Error(t, err)
}

func TestDuplicateLoginOnSameSocketIsDropped(t *testing.T) {
	w := newTestWorld(t)
	client, c := dialPipe(t, w)

	writeClientFrame(t, client, loginPacket(7, 0))
	tickUntil(t, w, func() bool { return w.SessionCount() == 1 })
	reply := readServerFrame(t, client)
	require.Equal(t, protocol.OpLoginResult, reply.Opcode())

	writeClientFrame(t, client, loginPacket(7, 0))
	w.update(testTick)

	// Still exactly one session, still the same one, still alive.
	assert.Equal(t, 1, w.SessionCount())
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	assert.False(t, sess.forceExit.Load())
}

func TestSendOrderIsFIFO(t *testing.T) {
	w := newTestWorld(t)
	client, c := dialPipe(t, w)

	for i := uint32(0); i < 10; i++ {
		pkt := protocol.New(protocol.OpWaitStart)
		pkt.WriteUint32(i)
		c.Send(pkt)
	}

	for i := uint32(0); i < 10; i++ {
		pkt := readServerFrame(t, client)
		require.Equal(t, protocol.OpWaitStart, pkt.Opcode())
		got, err := pkt.Uint32()
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
}
