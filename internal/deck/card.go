package deck

import "fmt"

// Suit represents a card suit.
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// String returns the single-character wire representation of a suit.
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "C"
	case Diamonds:
		return "D"
	case Hearts:
		return "H"
	case Spades:
		return "S"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds).
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank. Numeric value is 2..14, ace high.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the single-character wire representation of a rank.
func (r Rank) String() string {
	switch r {
	case Two:
		return "2"
	case Three:
		return "3"
	case Four:
		return "4"
	case Five:
		return "5"
	case Six:
		return "6"
	case Seven:
		return "7"
	case Eight:
		return "8"
	case Nine:
		return "9"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return "?"
	}
}

// Card is an immutable suit/rank pair.
type Card struct {
	Suit Suit
	Rank Rank
}

// NewCard creates a new card.
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// String returns the canonical two-character representation, e.g. "AS", "2C".
func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// IsRed returns true if the card's suit is red.
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// Value returns the numeric rank value used for comparisons (2..14).
func (c Card) Value() int {
	return int(c.Rank)
}

// IsAce reports whether the card is an Ace.
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// MarshalJSON encodes the card as its two-character wire string ("AS",
// "KH"); clients parse the same representation back. Lower-case suit
// letters are accepted on input but never emitted.
func (c Card) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON decodes a two-character wire string into a Card.
func (c *Card) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseCard(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard parses a two-character card literal such as "Ah" or "Td" into a
// Card. Rank and suit letters are case-insensitive.
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("deck: invalid card literal %q", s)
	}

	var rank Rank
	switch s[0] {
	case '2', '3', '4', '5', '6', '7', '8', '9':
		rank = Two + Rank(s[0]-'2')
	case 'T', 't':
		rank = Ten
	case 'J', 'j':
		rank = Jack
	case 'Q', 'q':
		rank = Queen
	case 'K', 'k':
		rank = King
	case 'A', 'a':
		rank = Ace
	default:
		return Card{}, fmt.Errorf("deck: invalid rank in %q", s)
	}

	var suit Suit
	switch s[1] {
	case 'C', 'c':
		suit = Clubs
	case 'D', 'd':
		suit = Diamonds
	case 'H', 'h':
		suit = Hearts
	case 'S', 's':
		suit = Spades
	default:
		return Card{}, fmt.Errorf("deck: invalid suit in %q", s)
	}

	return Card{Suit: suit, Rank: rank}, nil
}
