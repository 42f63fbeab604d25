package server

import (
	"github.com/lox/doudizhu/internal/protocol"
)

// HandlerFunc processes one inbound packet on the world tick.
type HandlerFunc func(s *Session, pkt *protocol.Packet)

// Dispatcher maps opcodes to handlers. The table is built once at world
// construction; unknown or unhandled opcodes are logged and dropped, never
// fatal, so clients a version ahead keep working.
type Dispatcher struct {
	handlers map[protocol.Opcode]HandlerFunc
}

func newDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[protocol.Opcode]HandlerFunc)}
}

// Handle registers a handler for an opcode.
func (d *Dispatcher) Handle(op protocol.Opcode, fn HandlerFunc) {
	d.handlers[op] = fn
}

// Dispatch routes one packet, reporting whether a handler existed.
func (d *Dispatcher) Dispatch(s *Session, pkt *protocol.Packet) bool {
	fn, ok := d.handlers[pkt.Opcode()]
	if !ok {
		return false
	}
	fn(s, pkt)
	return true
}
