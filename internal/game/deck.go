package game

import rand "math/rand/v2"

const (
	// HandSize is the number of cards dealt to each of the three seats.
	HandSize = 17
	// BaseCardCount is the reserve awarded to the landlord.
	BaseCardCount = 3
	// DeckSize is a full landlord deck: 52 cards plus two jokers.
	DeckSize = 54
	// PlayBufferSize is the fixed wire size of a committed play.
	PlayBufferSize = 24

	// CardTerminate marks an empty card slot.
	CardTerminate = 0xFF
)

// Deck is a shuffleable 54-card landlord deck. Cards are opaque byte values
// 0..53; combination semantics live outside this package.
type Deck struct {
	cards []byte
	rng   *rand.Rand
}

// NewDeck creates a full deck using the supplied random source, so dealing
// is reproducible under a fixed seed.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]byte, DeckSize), rng: rng}
	for i := range d.cards {
		d.cards[i] = byte(i)
	}
	return d
}

// Shuffle randomizes the order of cards in the deck
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Partition splits the deck into three hands and the base cards. Every card
// appears in exactly one group.
func (d *Deck) Partition() (hands [3][HandSize]byte, base [BaseCardCount]byte) {
	pos := 0
	for h := 0; h < 3; h++ {
		for i := 0; i < HandSize; i++ {
			hands[h][i] = d.cards[pos]
			pos++
		}
	}
	for i := 0; i < BaseCardCount; i++ {
		base[i] = d.cards[pos]
		pos++
	}
	return hands, base
}
