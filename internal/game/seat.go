package game

import (
	"fmt"
	"time"

	"github.com/lox/doudizhu/internal/protocol"
)

// Occupant is the game's view of the session bound to a human seat. AI seats
// have none.
type Occupant interface {
	// Send queues an outbound packet; it never blocks the tick.
	Send(pkt *protocol.Packet)
	// ClearSeat drops the session's seat reference when the seat detaches.
	ClearSeat()
}

// Rules carries the table-level knobs the seat machine consumes.
type Rules struct {
	WaitTime  time.Duration // seat wait deadline before AI backfill
	AIDelay   time.Duration // artificial thinking delay for AI reactions
	BaseScore int32         // score awarded per win, scaled by tier
	BaseGold  int32         // stake unit per round, scaled by tier
}

// Seat is one of the three table positions: the per-round state machine for
// a human or AI participant. All mutation happens on the game tick.
type Seat struct {
	table    *Table
	idx      int
	id       uint32
	control  Control
	aiNative bool
	occupant Occupant
	rules    Rules

	status     Status
	loggingOut bool

	// neighbor relations are indices into the table arena, -1 when unset.
	// If a seat's left is B then B's right is this seat.
	left, right int

	deskView DeskView

	hand      [HandSize]byte
	baseCards [BaseCardCount]byte

	outCards  [PlayBufferSize]byte
	comboType uint32
	hasPlay   bool

	bidScore          int32  // -1 until this seat bids
	landlordID        int32  // -1 until resolved
	defaultLandlordID uint32 // 0 until the fallback candidate is chosen

	waitLeft time.Duration
	aiDelay  time.Duration

	winnings int32
	profile  Profile
}

// NewSeat creates an unlinked seat. The table assigns its arena index.
func NewSeat(id uint32, control Control, occ Occupant, profile Profile, rules Rules) *Seat {
	s := &Seat{
		id:         id,
		control:    control,
		aiNative:   control == AI,
		occupant:   occ,
		rules:      rules,
		left:       -1,
		right:      -1,
		bidScore:   -1,
		landlordID: -1,
		waitLeft:   rules.WaitTime,
		aiDelay:    rules.AIDelay,
		profile:    profile,
	}
	for i := range s.hand {
		s.hand[i] = CardTerminate
	}
	for i := range s.baseCards {
		s.baseCards[i] = CardTerminate
	}
	for i := range s.outCards {
		s.outCards[i] = CardTerminate
	}
	return s
}

func (s *Seat) ID() uint32       { return s.id }
func (s *Seat) Status() Status   { return s.status }
func (s *Seat) Control() Control { return s.control }

// Left returns the left neighbor, nil while the ring is incomplete.
func (s *Seat) Left() *Seat {
	if s.left < 0 || s.table == nil {
		return nil
	}
	return s.table.seats[s.left]
}

// Right returns the right neighbor, nil while the ring is incomplete.
func (s *Seat) Right() *Seat {
	if s.right < 0 || s.table == nil {
		return nil
	}
	return s.table.seats[s.right]
}

// Update advances the seat by one tick. Check order is fixed: the logout
// overlay runs ahead of all normal progression.
func (s *Seat) Update(diff time.Duration) {
	if s.status == StatusLoggedOut {
		return
	}

	s.waitLeft -= diff
	s.updateAIDelay(diff)

	s.checkLogout()
	if s.status == StatusLoggedOut {
		return
	}
	s.checkDeskView()
	s.checkStart()
	s.checkDealCards()
	s.checkGrabLandlord()
	s.checkPlay()
	s.checkRoundOver()
}

// updateAIDelay runs the thinking countdown for the next actor in turn
// order: it only ticks while the left neighbor has just finished a bid or a
// play.
func (s *Seat) updateAIDelay(diff time.Duration) {
	if s.status != StatusDealedCard && s.status != StatusWaitOutCard {
		return
	}
	left := s.Left()
	if left == nil {
		return
	}
	if left.status == StatusGrabLandlordEd || left.status == StatusOutCarded {
		s.aiDelay -= diff
	}
}

// BeginLogout flags the seat as logging out and resolves it immediately,
// matching how a session drop is observed within the same tick.
func (s *Seat) BeginLogout() {
	s.loggingOut = true
	s.checkLogout()
}

func (s *Seat) checkLogout() {
	if !s.loggingOut {
		return
	}
	s.loggingOut = false

	// Severity depends on where the round was when the logout began: losing
	// a seat mid-round disrupts the table, before dealing or after the round
	// it does not.
	code := uint32(2)
	if s.status > StatusDealedCard && s.status < StatusRoundOverIng {
		code = 4
	}

	pkt := protocol.New(protocol.OpLogoutNotice)
	pkt.WriteUint32(s.id)
	pkt.WriteUint32(code)
	s.sendHuman(pkt)

	left, right := s.Left(), s.Right()
	if left != nil {
		left.sendHuman(pkt)
	}
	if right != nil {
		right.sendHuman(pkt)
	}

	humanNeighbor := (left != nil && left.control == Human) || (right != nil && right.control == Human)
	if code == 4 && humanNeighbor {
		s.control = AI
	} else {
		s.status = StatusLoggedOut
	}

	if s.occupant != nil {
		s.occupant.ClearSeat()
		s.occupant = nil
	}
}

// checkDeskView re-announces the desk snapshot when neighbor occupancy
// changes, and only then.
func (s *Seat) checkDeskView() {
	left, right := s.Left(), s.Right()
	switch {
	case left != nil && right != nil:
		if s.deskView != DeskThree {
			s.deskView = DeskThree
			s.sendThreeDesk()
		}
	case left != nil || right != nil:
		if s.deskView != DeskTwo {
			s.deskView = DeskTwo
			s.sendTwoDesk()
		}
	}
}

func (s *Seat) sendTwoDesk() {
	if s.control != Human || s.occupant == nil {
		return
	}
	neighbor := s.Right()
	if neighbor == nil {
		neighbor = s.Left()
	}

	pkt := protocol.New(protocol.OpDeskTwo)
	pkt.WriteUint32(1)
	neighbor.profile.EncodeTo(pkt)
	s.occupant.Send(pkt)
}

func (s *Seat) sendThreeDesk() {
	if s.control != Human || s.occupant == nil {
		return
	}
	pkt := protocol.New(protocol.OpDeskThree)
	pkt.WriteUint32(1)
	s.Left().profile.EncodeTo(pkt)
	s.Right().profile.EncodeTo(pkt)
	s.occupant.Send(pkt)
}

// checkStart announces this seat to each human neighbor, then settles into
// Started.
func (s *Seat) checkStart() {
	if s.status != StatusStarting {
		return
	}

	pkt := protocol.New(protocol.OpWaitStart)
	pkt.WriteUint32(s.id)
	if left := s.Left(); left != nil {
		left.sendHuman(pkt)
	}
	if right := s.Right(); right != nil {
		right.sendHuman(pkt)
	}

	s.status = StatusStarted
}

func (s *Seat) checkDealCards() {
	if s.status != StatusDealingCard {
		return
	}

	if s.control == Human && s.occupant != nil {
		pkt := protocol.New(protocol.OpCardDeal)
		pkt.WriteUint32(s.defaultLandlordCandidate())
		pkt.WriteBytes(s.hand[:])
		pkt.WriteBytes(s.baseCards[:])
		s.occupant.Send(pkt)
	}

	s.status = StatusDealedCard
}

// defaultLandlordCandidate returns the fallback landlord, picking one of the
// three seats uniformly on the first query of a round and propagating the
// choice so all seats agree before any bid.
func (s *Seat) defaultLandlordCandidate() uint32 {
	if s.defaultLandlordID == 0 {
		switch s.table.rng.IntN(3) {
		case 0:
			s.defaultLandlordID = s.id
		case 1:
			s.defaultLandlordID = s.Left().id
		case 2:
			s.defaultLandlordID = s.Right().id
		}
		s.Left().defaultLandlordID = s.defaultLandlordID
		s.Right().defaultLandlordID = s.defaultLandlordID
	}
	return s.defaultLandlordID
}

// PlaceBid records a human bid. The seat broadcasts it on its next tick.
func (s *Seat) PlaceBid(score int32) error {
	if s.status != StatusDealedCard {
		return fmt.Errorf("game: seat %d cannot bid in status %s", s.id, s.status)
	}
	if score < 0 || score > 3 {
		return fmt.Errorf("game: bid score %d out of range", score)
	}
	s.bidScore = score
	s.status = StatusGrabLandlordIng
	return nil
}

// aiBid picks this AI seat's bid score from what its neighbors have shown.
func (s *Seat) aiBid() int32 {
	l, r := s.Left().bidScore, s.Right().bidScore
	if l == -1 && r == -1 {
		return int32(s.table.rng.IntN(4))
	}
	best := l
	if r > best {
		best = r
	}
	if best == 0 {
		return 1
	}
	return 0
}

// resolveLandlord resolves and caches the landlord once all three bids are
// known or any seat has bid the maximum. Highest score wins; ties break in
// evaluation order self, left, right. An all-pass round never resolves here,
// it reverts via the bid check instead.
func (s *Seat) resolveLandlord() int32 {
	if s.landlordID != -1 {
		return s.landlordID
	}

	left, right := s.Left(), s.Right()
	if left == nil || right == nil {
		return -1
	}
	l, r := left.bidScore, right.bidScore

	maxScore := s.bidScore
	if l > maxScore {
		maxScore = l
	}
	if r > maxScore {
		maxScore = r
	}

	allKnown := s.bidScore != -1 && l != -1 && r != -1
	if (allKnown || maxScore == 3) && maxScore > 0 {
		switch maxScore {
		case s.bidScore:
			s.landlordID = int32(s.id)
		case l:
			s.landlordID = int32(left.id)
		case r:
			s.landlordID = int32(right.id)
		}
	}
	return s.landlordID
}

func (s *Seat) checkGrabLandlord() {
	if s.status != StatusDealedCard && s.status != StatusGrabLandlordIng && s.status != StatusGrabLandlordEd {
		return
	}

	if s.status == StatusDealedCard {
		if s.resolveLandlord() != -1 {
			// The bid is already decided elsewhere in the ring: this seat
			// never bids and skips straight to the play phase.
			s.status = StatusWaitOutCard
			return
		}

		left := s.Left()
		if s.control == AI && (s.defaultLandlordCandidate() == s.id ||
			(left != nil && left.status == StatusGrabLandlordEd && s.aiDelay < 0)) {
			s.bidScore = s.aiBid()
			s.status = StatusGrabLandlordIng
			s.aiDelay = s.rules.AIDelay
		}
	}

	if s.status == StatusGrabLandlordIng {
		pkt := protocol.New(protocol.OpGrabLandlord)
		pkt.WriteUint32(s.id)
		pkt.WriteUint32(uint32(s.bidScore))
		pkt.WriteInt32(s.resolveLandlord())

		s.sendHuman(pkt)
		if left := s.Left(); left != nil {
			left.sendHuman(pkt)
		}
		if right := s.Right(); right != nil {
			right.sendHuman(pkt)
		}

		s.status = StatusGrabLandlordEd
	}

	if s.status == StatusGrabLandlordEd {
		left, right := s.Left(), s.Right()
		if left == nil || right == nil {
			return
		}
		if s.bidScore == 0 && left.bidScore == 0 && right.bidScore == 0 {
			// Nobody wants the hand: the whole ring reverts to Started with
			// bid state cleared so the bid re-runs with a fresh fallback
			// candidate. Clearing all three at once keeps the revert
			// idempotent; a second pass sees the sentinels and does nothing.
			s.clearBid()
			left.clearBid()
			right.clearBid()
			return
		}
		if lid := s.resolveLandlord(); lid != -1 {
			if lid == int32(s.id) {
				// This seat won the bid and plays first.
				s.status = StatusOutCarding
			} else {
				s.status = StatusWaitOutCard
			}
		}
	}
}

func (s *Seat) clearBid() {
	s.defaultLandlordID = 0
	s.bidScore = -1
	s.landlordID = -1
	s.status = StatusStarted
}

// CommitPlay records a human play for broadcast on the next tick. Only the
// seat in motion may commit: the landlord opening the round, or a seat whose
// left neighbor has just finished.
func (s *Seat) CommitPlay(comboType uint32, cards []byte) error {
	left := s.Left()
	inTurn := s.status == StatusOutCarding ||
		(s.status == StatusWaitOutCard && left != nil && left.status == StatusOutCarded)
	if !inTurn {
		return fmt.Errorf("game: seat %d cannot play in status %s", s.id, s.status)
	}
	if len(cards) > PlayBufferSize {
		return fmt.Errorf("game: play of %d cards exceeds buffer", len(cards))
	}
	for _, c := range cards {
		if c == CardTerminate {
			continue
		}
		if !s.holds(c) {
			return fmt.Errorf("game: seat %d does not hold card %d", s.id, c)
		}
	}

	for i := range s.outCards {
		s.outCards[i] = CardTerminate
	}
	copy(s.outCards[:], cards)
	s.comboType = comboType
	s.hasPlay = true
	s.status = StatusOutCarding
	return nil
}

func (s *Seat) holds(card byte) bool {
	for _, c := range s.hand {
		if c == card {
			return true
		}
	}
	return false
}

// checkPlay drives the play ring: turns travel strictly right-to-left, one
// seat in motion at a time.
func (s *Seat) checkPlay() {
	if s.status < StatusWaitOutCard || s.status > StatusOutCarded {
		return
	}

	left := s.Left()
	if s.control == AI && left != nil && left.status == StatusOutCarded {
		s.status = StatusOutCarding
	}

	if s.status == StatusOutCarding {
		if s.control == AI {
			// TODO: wire in a play engine; converted AI seats hold their
			// turn here until one exists.
		} else if s.hasPlay {
			pkt := protocol.New(protocol.OpPlayCard)
			pkt.WriteUint32(s.id)
			pkt.WriteUint32(s.comboType)
			pkt.WriteBytes(s.outCards[:])

			s.sendHuman(pkt)
			if left != nil {
				left.sendHuman(pkt)
			}
			if right := s.Right(); right != nil {
				right.sendHuman(pkt)
			}

			s.removePlayed()
			s.hasPlay = false
			s.status = StatusOutCarded
			s.table.notePlayed(s)
		}
	}

	if s.status == StatusOutCarded {
		if right := s.Right(); right != nil && right.status == StatusOutCarding {
			s.status = StatusWaitOutCard
		}
	}
}

func (s *Seat) removePlayed() {
	for _, c := range s.outCards {
		if c == CardTerminate {
			continue
		}
		for i := range s.hand {
			if s.hand[i] == c {
				s.hand[i] = CardTerminate
				break
			}
		}
	}
}

func (s *Seat) handEmpty() bool {
	for _, c := range s.hand {
		if c != CardTerminate {
			return false
		}
	}
	return true
}

// checkRoundOver settles the finished round into the persistent profile
// exactly once, then resets every round-scoped field back to WaitStart.
func (s *Seat) checkRoundOver() {
	if s.status == StatusRoundOverIng {
		s.settle()
		s.status = StatusRoundOverEd
	}
	if s.status == StatusRoundOverEd {
		s.resetRound()
	}
}

func (s *Seat) settle() {
	s.profile.applyRound(s.winnings, s.table.tier, s.rules.BaseScore)

	pkt := protocol.New(protocol.OpRoundOver)
	s.profile.EncodeTo(pkt)
	s.sendHuman(pkt)

	if s.table.onSettle != nil && !s.aiNative {
		s.table.onSettle(s.id, s.profile)
	}
}

func (s *Seat) resetRound() {
	for i := range s.hand {
		s.hand[i] = CardTerminate
	}
	for i := range s.baseCards {
		s.baseCards[i] = CardTerminate
	}
	for i := range s.outCards {
		s.outCards[i] = CardTerminate
	}
	s.comboType = 0
	s.hasPlay = false

	s.waitLeft = s.rules.WaitTime
	s.aiDelay = s.rules.AIDelay
	s.left = -1
	s.right = -1
	s.deskView = DeskNone
	s.defaultLandlordID = 0
	s.bidScore = -1
	s.landlordID = -1
	s.winnings = 0
	s.status = StatusWaitStart
}

// sendHuman delivers a packet only when the seat is human-controlled and
// still has a session attached.
func (s *Seat) sendHuman(pkt *protocol.Packet) {
	if s.control == Human && s.occupant != nil {
		s.occupant.Send(pkt)
	}
}
