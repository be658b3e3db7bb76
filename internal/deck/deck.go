package deck

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"
)

// Deck is an ordered sequence of up to 52 distinct cards, popped from the
// top. Shuffling and popping are the only mutations.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck builds a standard 52-card deck in canonical order (unshuffled).
func NewDeck() *Deck {
	d := &Deck{cards: make([]Card, 0, 52)}
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	return d
}

// NewShuffledDeck builds a standard deck and shuffles it with a
// cryptographically seeded RNG. This is the path production hand-start code
// must use; fairness of the deal is a core guarantee, not an implementation
// detail.
func NewShuffledDeck() (*Deck, error) {
	rng, err := CryptoRand()
	if err != nil {
		return nil, err
	}
	d := NewDeck()
	d.ShuffleWith(rng)
	return d, nil
}

// CryptoRand returns a math/rand source seeded from crypto/rand, suitable
// for production shuffling. Tests that need reproducible deals should use
// rand.New(rand.NewSource(seed)) directly and ShuffleWith instead.
func CryptoRand() (*rand.Rand, error) {
	var seedBytes [8]byte
	if _, err := cryptorand.Read(seedBytes[:]); err != nil {
		return nil, fmt.Errorf("deck: reading crypto seed: %w", err)
	}
	seed := int64(binary.LittleEndian.Uint64(seedBytes[:]))
	return rand.New(rand.NewSource(seed)), nil
}

// ShuffleWith permutes the deck in place using Fisher-Yates against the
// supplied RNG, restoring it to 52 cards first if any were dealt.
func (d *Deck) ShuffleWith(rng *rand.Rand) {
	if len(d.cards) != 52 {
		*d = *NewDeck()
	}
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	d.rng = rng
}

// Pop removes and returns the top card. The second return is false when the
// deck is empty — callers must treat that as a fatal, hand-aborting
// condition, never a silent truncation.
func (d *Deck) Pop() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// PopN pops n cards in order. It returns fewer than n cards, with ok=false,
// if the deck is exhausted partway through.
func (d *Deck) PopN(n int) (cards []Card, ok bool) {
	cards = make([]Card, 0, n)
	for i := 0; i < n; i++ {
		c, has := d.Pop()
		if !has {
			return cards, false
		}
		cards = append(cards, c)
	}
	return cards, true
}

// Remaining returns the number of cards left in the deck.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Cards returns a copy of the remaining cards, in pop order. Used only to
// snapshot a deck for abort/refund bookkeeping — never transmitted to
// clients.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// MarshalJSON encodes the remaining cards in pop order, so a persisted
// GameState can resume a hand across a process restart. The RNG stream is
// not part of the encoding; a restarted process must not reshuffle a deck
// it reloads mid-hand.
func (d *Deck) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Cards())
}

func (d *Deck) UnmarshalJSON(data []byte) error {
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return err
	}
	d.cards = cards
	return nil
}
