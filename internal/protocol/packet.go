// Package protocol owns the wire contract: the frame headers, the opcode
// catalog and the Packet buffer used to build and decode payloads. Field
// order and widths are fixed; everything is little-endian.
package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

var ErrShortPacket = errors.New("protocol: read past end of packet")

// Packet is an opcode-tagged payload buffer. Writes append at the end,
// reads consume sequentially from the front.
type Packet struct {
	opcode Opcode
	buf    []byte
	rpos   int
}

// New returns an empty packet for the given opcode.
func New(op Opcode) *Packet {
	return &Packet{opcode: op}
}

// FromWire wraps an already-read payload for decoding.
func FromWire(op Opcode, payload []byte) *Packet {
	return &Packet{opcode: op, buf: payload}
}

func (p *Packet) Opcode() Opcode  { return p.opcode }
func (p *Packet) Len() int        { return len(p.buf) }
func (p *Packet) Payload() []byte { return p.buf }

func (p *Packet) WriteUint32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *Packet) WriteInt32(v int32) {
	p.WriteUint32(uint32(v))
}

func (p *Packet) WriteFloat32(v float32) {
	p.WriteUint32(math.Float32bits(v))
}

// WriteBytes appends raw bytes, used for card buffers.
func (p *Packet) WriteBytes(b []byte) {
	p.buf = append(p.buf, b...)
}

func (p *Packet) Uint32() (uint32, error) {
	if p.rpos+4 > len(p.buf) {
		return 0, ErrShortPacket
	}
	v := binary.LittleEndian.Uint32(p.buf[p.rpos:])
	p.rpos += 4
	return v, nil
}

func (p *Packet) Int32() (int32, error) {
	v, err := p.Uint32()
	return int32(v), err
}

func (p *Packet) Float32() (float32, error) {
	v, err := p.Uint32()
	return math.Float32frombits(v), err
}

// Bytes consumes exactly n raw bytes.
func (p *Packet) Bytes(n int) ([]byte, error) {
	if p.rpos+n > len(p.buf) {
		return nil, ErrShortPacket
	}
	b := p.buf[p.rpos : p.rpos+n]
	p.rpos += n
	return b, nil
}

// PeekUint32 reads a uint32 at a payload offset without moving the cursor.
// The connection layer uses this to pull the account id out of a login frame
// before the session handler consumes it.
func (p *Packet) PeekUint32(offset int) (uint32, error) {
	if offset+4 > len(p.buf) {
		return 0, ErrShortPacket
	}
	return binary.LittleEndian.Uint32(p.buf[offset:]), nil
}
