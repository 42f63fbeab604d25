package game

import (
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
)

// TableSeats is the fixed number of positions: landlord rules are a
// three-seat game.
const TableSeats = 3

// aiAccountBase seeds synthetic account ids for backfilled AI seats, well
// above the range real accounts use.
const aiAccountBase = 0xA1000000

// Table owns an arena of three seats. Neighbor relations are indices into
// this arena, never owning references; the table is the only owner of seat
// lifetimes.
type Table struct {
	tier   uint32
	rules  Rules
	rng    *rand.Rand
	logger *log.Logger

	seats [TableSeats]*Seat

	started bool
	dealt   bool
	ended   bool

	aiSeq uint32

	// onSettle receives each human-origin seat's updated profile at
	// settlement, for persistence.
	onSettle func(accountID uint32, p Profile)
}

// NewTable creates an empty table for a room tier.
func NewTable(tier uint32, rules Rules, rng *rand.Rand, logger *log.Logger) *Table {
	return &Table{
		tier:   tier,
		rules:  rules,
		rng:    rng,
		logger: logger.WithPrefix("table").With("tier", tier),
	}
}

// OnSettle registers the settlement sink.
func (t *Table) OnSettle(fn func(accountID uint32, p Profile)) {
	t.onSettle = fn
}

func (t *Table) Tier() uint32 { return t.tier }

// Seat returns the seat at an arena index, nil when unoccupied.
func (t *Table) Seat(i int) *Seat {
	return t.seats[i]
}

// Occupied returns the number of filled positions.
func (t *Table) Occupied() int {
	n := 0
	for _, s := range t.seats {
		if s != nil {
			n++
		}
	}
	return n
}

// Full reports whether every position is taken.
func (t *Table) Full() bool {
	return t.Occupied() == TableSeats
}

// AddSeat places a seat in the first open position and links it into the
// ring: pairing fills a seat's left first, then its right, mirroring the
// reverse link on the other seat.
func (t *Table) AddSeat(seat *Seat) (int, error) {
	idx := -1
	for i, s := range t.seats {
		if s == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		return -1, fmt.Errorf("game: table tier %d is full", t.tier)
	}

	seat.table = t
	seat.idx = idx
	t.seats[idx] = seat

	for _, other := range t.seats {
		if other == nil || other == seat {
			continue
		}
		other.addNeighbor(seat)
		seat.addNeighbor(other)
	}

	t.logger.Info("seated", "seat", seat.id, "position", idx, "control", seat.control, "occupied", t.Occupied())
	return idx, nil
}

func (s *Seat) addNeighbor(o *Seat) {
	if s.left == o.idx || s.right == o.idx {
		return
	}
	if s.left == -1 {
		s.left = o.idx
		o.right = s.idx
	} else if s.right == -1 {
		s.right = o.idx
		o.left = s.idx
	}
	s.waitLeft = s.rules.WaitTime
}

// Update advances every seat by one tick, then the table-level progression.
func (t *Table) Update(diff time.Duration) {
	for _, s := range t.seats {
		if s != nil {
			s.Update(diff)
		}
	}
	t.checkProgress()
}

func (t *Table) checkProgress() {
	if !t.started {
		occ := t.Occupied()
		if occ == 0 {
			return
		}
		if occ == TableSeats && t.allStatus(StatusWaitStart) {
			t.start()
			return
		}
		// A seat has waited long enough: fill the rest with AI and go.
		for _, s := range t.seats {
			if s != nil && s.waitLeft <= 0 {
				t.backfillAI()
				t.start()
				return
			}
		}
		return
	}

	if !t.dealt {
		if t.Full() && t.allStatus(StatusStarted) {
			t.deal()
		}
		return
	}

	// All seats back at Started with cards in hand means the bid went
	// nobody-wants-it: re-announce the deal so bidding re-runs with a fresh
	// fallback candidate. The cards themselves are not re-dealt.
	if t.Full() && t.allStatus(StatusStarted) {
		t.logger.Info("bid passed around, restarting bid")
		for _, s := range t.seats {
			s.status = StatusDealingCard
		}
	}
}

func (t *Table) allStatus(st Status) bool {
	for _, s := range t.seats {
		if s == nil || s.status != st {
			return false
		}
	}
	return true
}

func (t *Table) start() {
	for _, s := range t.seats {
		if s != nil {
			s.status = StatusStarting
		}
	}
	t.started = true
	t.logger.Info("round starting")
}

func (t *Table) backfillAI() {
	for i, s := range t.seats {
		if s != nil {
			continue
		}
		t.aiSeq++
		id := uint32(aiAccountBase) + t.tier*16 + t.aiSeq
		ai := NewSeat(id, AI, nil, Profile{}, t.rules)
		if _, err := t.AddSeat(ai); err != nil {
			t.logger.Error("failed to backfill AI seat", "position", i, "error", err)
		}
	}
}

func (t *Table) deal() {
	deck := NewDeck(t.rng)
	deck.Shuffle()
	hands, base := deck.Partition()
	for i, s := range t.seats {
		s.hand = hands[i]
		s.baseCards = base
		s.status = StatusDealingCard
	}
	t.dealt = true
	t.logger.Info("cards dealt")
}

// notePlayed runs after a seat finishes a play; an emptied hand ends the
// round.
func (t *Table) notePlayed(s *Seat) {
	if t.ended || !s.handEmpty() {
		return
	}
	t.endRound(s)
}

// endRound assigns each seat's winnings delta and moves everyone into
// settlement. The stake is (tier+1) x base gold; the landlord plays for
// double, so the deltas stay zero-sum.
func (t *Table) endRound(winner *Seat) {
	t.ended = true

	landlordID := winner.resolveLandlord()
	landlordWon := int32(winner.id) == landlordID

	stake := int32(t.tier+1) * t.rules.BaseGold
	for _, s := range t.seats {
		if s == nil || s.status == StatusLoggedOut {
			continue
		}
		isLandlord := int32(s.id) == landlordID
		switch {
		case isLandlord && landlordWon:
			s.winnings = 2 * stake
		case isLandlord:
			s.winnings = -2 * stake
		case landlordWon:
			s.winnings = -stake
		default:
			s.winnings = stake
		}
		s.status = StatusRoundOverIng
	}

	t.logger.Info("round over", "winner", winner.id, "landlord", landlordID, "landlordWon", landlordWon)
}

// Finished reports that a completed round has fully reset: every surviving
// seat has passed through RoundOverEd back to WaitStart. The table is then
// disbanded by its owner.
func (t *Table) Finished() bool {
	if !t.ended {
		return false
	}
	for _, s := range t.seats {
		if s == nil {
			continue
		}
		if s.status != StatusWaitStart && s.status != StatusLoggedOut {
			return false
		}
	}
	return true
}

// Dead reports that no human remains attached anywhere on the table; it
// cannot produce further output and is disbanded by its owner.
func (t *Table) Dead() bool {
	for _, s := range t.seats {
		if s != nil && s.control == Human && s.status != StatusLoggedOut {
			return false
		}
	}
	return true
}

// Seats returns the occupied seats in arena order.
func (t *Table) Seats() []*Seat {
	out := make([]*Seat, 0, TableSeats)
	for _, s := range t.seats {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
