package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// ClientHeaderSize is the fixed inbound header: size uint16 + opcode uint32.
	// The size field counts the header itself.
	ClientHeaderSize = 6

	// ServerHeaderSize is the fixed outbound header: size uint32 + opcode uint32.
	// The size field counts the payload plus the opcode field.
	ServerHeaderSize = 8

	// MaxClientFrame bounds the declared size of an inbound frame. Anything
	// larger is a malformed header and fatal to the connection.
	MaxClientFrame = 10240
)

var ErrMalformedHeader = fmt.Errorf("protocol: malformed header")

// ClientHeader is the validated inbound frame header.
type ClientHeader struct {
	Size   uint16
	Opcode Opcode
}

// PayloadLen returns the number of body bytes that follow the header.
func (h ClientHeader) PayloadLen() int {
	return int(h.Size) - ClientHeaderSize
}

// ParseClientHeader validates and decodes an inbound header. The declared
// size must cover the header itself and stay within the frame bound.
func ParseClientHeader(b []byte) (ClientHeader, error) {
	if len(b) < ClientHeaderSize {
		return ClientHeader{}, fmt.Errorf("%w: %d bytes", ErrMalformedHeader, len(b))
	}
	h := ClientHeader{
		Size:   binary.LittleEndian.Uint16(b),
		Opcode: Opcode(binary.LittleEndian.Uint32(b[2:])),
	}
	if h.Size < ClientHeaderSize || h.Size > MaxClientFrame {
		return ClientHeader{}, fmt.Errorf("%w: declared size %d", ErrMalformedHeader, h.Size)
	}
	return h, nil
}

// ReadFrame reads exactly one framed packet: the fixed header, then exactly
// the declared number of payload bytes.
func ReadFrame(r io.Reader) (*Packet, error) {
	var hdr [ClientHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	h, err := ParseClientHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	body := make([]byte, h.PayloadLen())
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return FromWire(h.Opcode, body), nil
}

// EncodeFrame renders an outbound packet as header + payload, ready for a
// single write.
func EncodeFrame(p *Packet) []byte {
	out := make([]byte, ServerHeaderSize+p.Len())
	binary.LittleEndian.PutUint32(out, uint32(p.Len())+4)
	binary.LittleEndian.PutUint32(out[4:], uint32(p.Opcode()))
	copy(out[ServerHeaderSize:], p.Payload())
	return out
}

// EncodeClientFrame renders a client-to-server frame. The server never sends
// these; test clients and tooling do.
func EncodeClientFrame(p *Packet) []byte {
	out := make([]byte, ClientHeaderSize+p.Len())
	binary.LittleEndian.PutUint16(out, uint16(ClientHeaderSize+p.Len()))
	binary.LittleEndian.PutUint32(out[2:], uint32(p.Opcode()))
	copy(out[ClientHeaderSize:], p.Payload())
	return out
}

// DecodeServerFrame parses one server-to-client frame from b and returns the
// packet plus the number of bytes consumed. Used by test transports.
func DecodeServerFrame(b []byte) (*Packet, int, error) {
	if len(b) < ServerHeaderSize {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrMalformedHeader, len(b))
	}
	size := binary.LittleEndian.Uint32(b)
	op := Opcode(binary.LittleEndian.Uint32(b[4:]))
	if size < 4 {
		return nil, 0, fmt.Errorf("%w: declared size %d", ErrMalformedHeader, size)
	}
	payloadLen := int(size) - 4
	total := ServerHeaderSize + payloadLen
	if len(b) < total {
		return nil, 0, fmt.Errorf("%w: truncated frame", ErrMalformedHeader)
	}
	return FromWire(op, b[ServerHeaderSize:total]), total, nil
}
