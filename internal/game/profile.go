package game

import (
	"fmt"

	"github.com/lox/doudizhu/internal/protocol"
)

const (
	// ConsumableCount is the fixed width of the profile's consumable array.
	// Index semantics are owned by the shop/props service; settlement only
	// checks the two doubling conditions below.
	ConsumableCount = 32

	// ProfileSize is the fixed wire and storage size of a profile record.
	ProfileSize = 24 + ConsumableCount*4
)

// levelThresholds is the ascending score table a profile's level is derived
// from: level is the count of thresholds the score has met.
var levelThresholds = []uint32{
	5000, 10000, 50000, 100000, 300000, 800000, 1500000,
	2000000, 5000000, 10000000, 15000000, 30000000, 50000000, 100000000,
}

// Profile is the persistent per-account record. It survives across rounds
// and is the only state the profile store persists.
type Profile struct {
	Gold        int32
	Rounds      uint32
	Wins        uint32
	WinRate     float32
	Score       uint32
	Level       uint32
	Consumables [ConsumableCount]int32
}

// EncodeTo appends the record to a packet in the fixed field order.
func (p *Profile) EncodeTo(pkt *protocol.Packet) {
	pkt.WriteInt32(p.Gold)
	pkt.WriteUint32(p.Rounds)
	pkt.WriteUint32(p.Wins)
	pkt.WriteFloat32(p.WinRate)
	pkt.WriteUint32(p.Score)
	pkt.WriteUint32(p.Level)
	for _, c := range p.Consumables {
		pkt.WriteInt32(c)
	}
}

// DecodeProfile consumes one record from the packet cursor.
func DecodeProfile(pkt *protocol.Packet) (Profile, error) {
	var p Profile
	var err error
	if p.Gold, err = pkt.Int32(); err != nil {
		return p, err
	}
	if p.Rounds, err = pkt.Uint32(); err != nil {
		return p, err
	}
	if p.Wins, err = pkt.Uint32(); err != nil {
		return p, err
	}
	if p.WinRate, err = pkt.Float32(); err != nil {
		return p, err
	}
	if p.Score, err = pkt.Uint32(); err != nil {
		return p, err
	}
	if p.Level, err = pkt.Uint32(); err != nil {
		return p, err
	}
	for i := range p.Consumables {
		if p.Consumables[i], err = pkt.Int32(); err != nil {
			return p, err
		}
	}
	return p, nil
}

// MarshalBinary renders the record in its fixed 152-byte layout.
func (p *Profile) MarshalBinary() ([]byte, error) {
	pkt := protocol.New(protocol.OpNone)
	p.EncodeTo(pkt)
	return pkt.Payload(), nil
}

// UnmarshalBinary parses a fixed 152-byte record.
func (p *Profile) UnmarshalBinary(data []byte) error {
	if len(data) != ProfileSize {
		return fmt.Errorf("game: profile record is %d bytes, want %d", len(data), ProfileSize)
	}
	decoded, err := DecodeProfile(protocol.FromWire(protocol.OpNone, data))
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// applyRound folds a finished round into the record. Gold never drops below
// zero; score is only awarded on a win.
func (p *Profile) applyRound(winnings int32, tier uint32, baseScore int32) {
	p.Gold += winnings
	if p.Gold < 0 {
		p.Gold = 0
	}

	p.Rounds++
	if winnings > 0 {
		p.Wins++
	}
	p.WinRate = 100 * float32(p.Wins) / float32(p.Rounds)

	if winnings > 0 {
		p.Score += (tier + 1) * uint32(baseScore) * p.scoreMultiplier()
	}
	p.Level = levelFor(p.Score)
}

// scoreMultiplier doubles the round score once for each of the two bonus
// conditions in the consumable array. -1 in the sentinel slots means an
// unlimited entitlement.
func (p *Profile) scoreMultiplier() uint32 {
	m := uint32(1)
	if p.Consumables[0] > 0 || p.Consumables[1] == -1 {
		m *= 2
	}
	if p.Consumables[13] > 0 || p.Consumables[14] > 0 || p.Consumables[15] == -1 {
		m *= 2
	}
	return m
}

func levelFor(score uint32) uint32 {
	var level uint32
	for int(level) < len(levelThresholds) && score >= levelThresholds[level] {
		level++
	}
	return level
}
