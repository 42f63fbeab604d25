package game

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/doudizhu/internal/randutil"
)

func TestRingLinksAreSymmetric(t *testing.T) {
	tbl := newTestTable(t, 1)
	seatHumans(t, tbl, 3)

	for i, s := range tbl.Seats() {
		left, right := s.Left(), s.Right()
		require.NotNil(t, left, "seat %d", i)
		require.NotNil(t, right, "seat %d", i)
		assert.Same(t, s, left.Right(), "seat %d left link", i)
		assert.Same(t, s, right.Left(), "seat %d right link", i)
		assert.NotSame(t, left, right, "seat %d", i)
	}
}

func TestFullTableRejectsAnotherSeat(t *testing.T) {
	tbl := newTestTable(t, 1)
	seatHumans(t, tbl, 3)

	_, err := tbl.AddSeat(NewSeat(99, Human, &fakeOccupant{}, Profile{}, tbl.rules))
	assert.Error(t, err)
}

func TestWaitTimeoutBackfillsAISeats(t *testing.T) {
	rules := testRules()
	rules.WaitTime = 2 * testTick
	tbl := NewTable(0, rules, randutil.New(1), log.New(io.Discard))

	occ := &fakeOccupant{}
	_, err := tbl.AddSeat(NewSeat(1, Human, occ, Profile{}, rules))
	require.NoError(t, err)

	advance(tbl, 2)

	require.True(t, tbl.Full())
	ai := 0
	for _, s := range tbl.Seats() {
		if s.Control() == AI {
			ai++
			assert.Greater(t, s.ID(), uint32(aiAccountBase))
		}
	}
	assert.Equal(t, 2, ai)

	// Backfill starts the round in the same tick.
	for _, s := range tbl.Seats() {
		assert.NotEqual(t, StatusWaitStart, s.Status())
	}
}

func TestAISeatBidsWhenItIsTheCandidate(t *testing.T) {
	rules := testRules()
	rules.WaitTime = testTick
	tbl := NewTable(0, rules, randutil.New(5), log.New(io.Discard))

	occ := &fakeOccupant{}
	_, err := tbl.AddSeat(NewSeat(1, Human, occ, Profile{}, rules))
	require.NoError(t, err)

	advance(tbl, 1)
	require.True(t, tbl.Full())

	var aiSeat *Seat
	for _, s := range tbl.Seats() {
		if s.Control() == AI {
			aiSeat = s
			break
		}
	}
	require.NotNil(t, aiSeat)

	// Pin the fallback candidate before the deal so the AI seat opens the bid
	// on the tick it receives cards.
	for _, s := range tbl.Seats() {
		s.defaultLandlordID = aiSeat.id
	}

	advance(tbl, 2)

	assert.NotEqual(t, StatusDealedCard, aiSeat.Status())
	assert.GreaterOrEqual(t, aiSeat.bidScore, int32(0))
	assert.LessOrEqual(t, aiSeat.bidScore, int32(3))
}

func TestDeadOnlyWhenNoHumansRemain(t *testing.T) {
	tbl := newTestTable(t, 1)
	seatHumans(t, tbl, 3)
	advance(tbl, 1)

	assert.False(t, tbl.Dead())

	for _, s := range tbl.Seats() {
		s.BeginLogout()
	}
	assert.True(t, tbl.Dead())
}

func TestDealAssignsDisjointHands(t *testing.T) {
	tbl := newTestTable(t, 2)
	seatHumans(t, tbl, 3)
	advanceToBid(t, tbl)

	seen := make(map[byte]int)
	for _, s := range tbl.Seats() {
		for _, c := range s.hand {
			require.NotEqual(t, byte(CardTerminate), c)
			seen[c]++
		}
	}
	for _, c := range tbl.Seat(0).baseCards {
		seen[c]++
	}

	require.Len(t, seen, DeckSize)
	for c, n := range seen {
		assert.Equal(t, 1, n, "card %d", c)
	}
}

func TestRoundTimingUsesTickDiff(t *testing.T) {
	rules := testRules()
	rules.WaitTime = 10 * time.Minute
	tbl := NewTable(0, rules, randutil.New(1), log.New(io.Discard))
	occ := &fakeOccupant{}
	_, err := tbl.AddSeat(NewSeat(1, Human, occ, Profile{}, rules))
	require.NoError(t, err)

	advance(tbl, 5)
	assert.False(t, tbl.Full(), "wait deadline far away, no backfill yet")

	tbl.Update(10 * time.Minute)
	assert.True(t, tbl.Full())
}
