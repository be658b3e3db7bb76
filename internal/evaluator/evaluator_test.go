package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablestack/holdem/internal/deck"
)

func mustParse(t *testing.T, cards ...string) []deck.Card {
	t.Helper()
	out := make([]deck.Card, len(cards))
	for i, s := range cards {
		c, err := deck.ParseCard(s)
		require.NoError(t, err)
		out[i] = c
	}
	return out
}

func TestEvaluateCategories(t *testing.T) {
	cases := []struct {
		name  string
		cards []string
		want  int
	}{
		{"royal flush", []string{"As", "Ks", "Qs", "Js", "Ts"}, RoyalFlush},
		{"straight flush", []string{"9s", "8s", "7s", "6s", "5s"}, StraightFlush},
		{"wheel straight flush", []string{"5s", "4s", "3s", "2s", "As"}, StraightFlush},
		{"four of a kind", []string{"Ah", "As", "Ac", "Ad", "2c"}, FourOfAKind},
		{"full house", []string{"Ah", "As", "Ac", "2d", "2c"}, FullHouse},
		{"flush", []string{"2s", "5s", "9s", "Js", "Ks"}, Flush},
		{"straight", []string{"9h", "8s", "7d", "6c", "5h"}, Straight},
		{"wheel straight", []string{"5h", "4s", "3d", "2c", "Ah"}, Straight},
		{"three of a kind", []string{"Ah", "As", "Ac", "2d", "3c"}, ThreeOfAKind},
		{"two pair", []string{"Ah", "As", "2d", "2c", "3h"}, TwoPair},
		{"one pair", []string{"Ah", "As", "2d", "3c", "4h"}, OnePair},
		{"high card", []string{"Ah", "Ks", "2d", "5c", "9h"}, HighCard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(mustParse(t, tc.cards...))
			assert.Equal(t, tc.want, got.Category(), "category for %v", tc.cards)
		})
	}
}

func TestEvaluatePanicsOnWrongLength(t *testing.T) {
	assert.Panics(t, func() {
		Evaluate(mustParse(t, "As", "Ks", "Qs", "Js"))
	})
}

func TestHandRankAscendingAcrossCategories(t *testing.T) {
	highCard := Evaluate(mustParse(t, "Ah", "Ks", "2d", "5c", "9h"))
	onePair := Evaluate(mustParse(t, "Ah", "As", "2d", "3c", "4h"))
	twoPair := Evaluate(mustParse(t, "Ah", "As", "2d", "2c", "3h"))
	trips := Evaluate(mustParse(t, "Ah", "As", "Ac", "2d", "3c"))
	straight := Evaluate(mustParse(t, "9h", "8s", "7d", "6c", "5h"))
	flush := Evaluate(mustParse(t, "2s", "5s", "9s", "Js", "Ks"))
	fullHouse := Evaluate(mustParse(t, "Ah", "As", "Ac", "2d", "2c"))
	quads := Evaluate(mustParse(t, "Ah", "As", "Ac", "Ad", "2c"))
	straightFlush := Evaluate(mustParse(t, "9s", "8s", "7s", "6s", "5s"))
	royalFlush := Evaluate(mustParse(t, "As", "Ks", "Qs", "Js", "Ts"))

	ascending := []HandRank{highCard, onePair, twoPair, trips, straight, flush, fullHouse, quads, straightFlush, royalFlush}
	for i := 1; i < len(ascending); i++ {
		assert.Greater(t, ascending[i], ascending[i-1], "category %d should outrank category %d", ascending[i].Category(), ascending[i-1].Category())
	}
}

// A wheel straight (5-high) must lose to a six-high straight, since the
// ace plays low and the high card of the wheel is the 5.
func TestWheelStraightIsFiveHigh(t *testing.T) {
	wheel := Evaluate(mustParse(t, "5h", "4s", "3d", "2c", "Ah"))
	sixHigh := Evaluate(mustParse(t, "6h", "5s", "4d", "3c", "2h"))
	assert.Equal(t, Straight, wheel.Category())
	assert.Less(t, wheel, sixHigh)
}

func TestHigherPairBeatsLowerPair(t *testing.T) {
	kings := Evaluate(mustParse(t, "Kh", "Ks", "2d", "3c", "4h"))
	twos := Evaluate(mustParse(t, "2h", "2s", "Ad", "Kc", "Qh"))
	assert.Greater(t, kings, twos)
}

func TestKickerBreaksTieWithinSameCategory(t *testing.T) {
	acesKingKicker := Evaluate(mustParse(t, "Ah", "As", "Kd", "3c", "4h"))
	acesQueenKicker := Evaluate(mustParse(t, "Ac", "Ad", "Qd", "3s", "4s"))
	assert.Greater(t, acesKingKicker, acesQueenKicker)
}

func TestBestFromSevenCardsPicksStrongestSubset(t *testing.T) {
	seven := mustParse(t, "As", "Ks", "Qs", "Js", "Ts", "2h", "3h")
	rank, hand, err := Best(seven)
	require.NoError(t, err)
	assert.Equal(t, RoyalFlush, rank.Category())
	assert.Len(t, hand, 5)
}

func TestBestFromSixCards(t *testing.T) {
	six := mustParse(t, "Ah", "As", "Ac", "2d", "2c", "9h")
	rank, _, err := Best(six)
	require.NoError(t, err)
	assert.Equal(t, FullHouse, rank.Category())
}

func TestBestFromExactlyFiveCards(t *testing.T) {
	five := mustParse(t, "Ah", "As", "2d", "3c", "4h")
	rank, hand, err := Best(five)
	require.NoError(t, err)
	assert.Equal(t, OnePair, rank.Category())
	assert.Len(t, hand, 5)
}

func TestBestReturnsErrorForFewerThanFiveCards(t *testing.T) {
	_, _, err := Best(mustParse(t, "Ah", "As"))
	assert.ErrorIs(t, err, ErrNotEnoughCards)
}

func TestBestRejectsMoreThanSevenCards(t *testing.T) {
	eight := mustParse(t, "Ah", "As", "Ac", "Ad", "2c", "2d", "2h", "2s")
	_, _, err := Best(eight)
	assert.Error(t, err)
}

func TestPreviewWithFullBoardMatchesBest(t *testing.T) {
	cards := mustParse(t, "Ah", "As", "Ac", "2d", "2c", "9h")
	got := Preview(cards)
	require.True(t, got.Complete)
	assert.Equal(t, FullHouse, got.Rank.Category())
	assert.Len(t, got.BestFive, 5)
}

func TestPreviewWithHoleCardsOnlyIsIncomplete(t *testing.T) {
	got := Preview(mustParse(t, "2d", "Ah"))
	require.False(t, got.Complete)
	assert.Zero(t, got.Rank)
	// Available cards come back sorted by descending rank.
	assert.Equal(t, mustParse(t, "Ah", "2d"), got.BestFive)
}

// Evaluation must be order-insensitive: any permutation of the same five
// cards ranks identically.
func TestEvaluateIsOrderInsensitive(t *testing.T) {
	cards := mustParse(t, "Ah", "Ks", "2d", "2c", "9h")
	want := Evaluate(cards)
	perm := []deck.Card{cards[4], cards[2], cards[0], cards[3], cards[1]}
	assert.Equal(t, want, Evaluate(perm))
}

func TestHandRankStringNamesCategory(t *testing.T) {
	r := Evaluate(mustParse(t, "As", "Ks", "Qs", "Js", "Ts"))
	assert.Equal(t, "Royal Flush", r.String())
}
