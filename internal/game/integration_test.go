package game

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablestack/holdem/internal/deck"
)

func mustCards(t *testing.T, literals ...string) []deck.Card {
	t.Helper()
	out := make([]deck.Card, len(literals))
	for i, s := range literals {
		c, err := deck.ParseCard(s)
		require.NoError(t, err)
		out[i] = c
	}
	return out
}

// These tests seed the shuffle so dealt hole cards are reproducible.
func seededRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func startScenarioHand(t *testing.T, participants []Participant, cfg HandConfig, seed int64) *GameState {
	t.Helper()
	gs, err := StartHand(StartHandInput{
		Participants: participants,
		Config:       cfg,
		Logger:       zerolog.Nop(),
	}, seededRNG(seed))
	require.NoError(t, err)
	return gs
}

// S1 — Heads-up preflop all-in: two 1000-stack players post SB/BB 10/20,
// seat 1 shoves, seat 2 calls all-in, and the hand runs out the board to
// showdown in one action with every chip distributed.
func TestScenarioS1HeadsUpPreflopAllIn(t *testing.T) {
	participants := []Participant{
		{UserID: "p1", SeatNumber: 1, Stack: 1000},
		{UserID: "p2", SeatNumber: 2, Stack: 1000},
	}
	gs := startScenarioHand(t, participants, HandConfig{SmallBlind: 10, BigBlind: 20}, 1)

	require.NotNil(t, gs.CurrentPlayerSeat)
	actingSeat := *gs.CurrentPlayerSeat
	actingUser := gs.playerAtSeat(actingSeat).UserID
	otherUser := "p2"
	if actingSeat == 2 {
		otherUser = "p1"
	}

	require.NoError(t, ApplyAction(gs, actingUser, Action{Type: ActionRaise, Amount: 1000}))
	require.NoError(t, ApplyAction(gs, otherUser, Action{Type: ActionCall}))

	assert.Equal(t, PhaseEndHand, gs.Phase)
	assert.Nil(t, gs.CurrentPlayerSeat)
	assert.Len(t, gs.CommunityCards, 5)

	total := 0
	for _, p := range gs.PlayerStates {
		total += p.Stack
	}
	assert.Equal(t, 2000, total)
}

// S2 — Three-way side pot: A(100) is SB, all three shove preflop for
// 100/300/300; expect a 300 main pot (all three eligible) and a 400 side
// pot (B, C only). The layering is checked on hand-built player states
// holding the committed totals, not on a hand played through ApplyAction;
// the played-out half of S2 is the next test.
func TestScenarioS2ThreeWaySidePot(t *testing.T) {
	a := &PlayerState{UserID: "a", SeatNumber: 1, TotalBet: 100, IsAllIn: true}
	b := &PlayerState{UserID: "b", SeatNumber: 2, TotalBet: 300, IsAllIn: true}
	c := &PlayerState{UserID: "c", SeatNumber: 3, TotalBet: 300, IsAllIn: true}

	pots := BuildPots([]*PlayerState{a, b, c})
	require.Len(t, pots, 2)
	assert.Equal(t, 300, pots[0].Amount)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, pots[0].EligiblePlayers)
	assert.Equal(t, 400, pots[1].Amount)
	assert.ElementsMatch(t, []string{"b", "c"}, pots[1].EligiblePlayers)
}

// The action-driven half of S2: the same three-way shove played out
// through ApplyAction must run the board out, distribute every chip, and
// leave the short stack unable to win more than the main pot's 300.
func TestScenarioS2ThreeWayAllInPlaysOut(t *testing.T) {
	// Seats arranged so a (the 100 stack) posts the small blind: dealer is
	// the lowest seat (1 = c), so sb = seat 2 = a, bb = seat 3 = b.
	participants := []Participant{
		{UserID: "c", SeatNumber: 1, Stack: 300},
		{UserID: "a", SeatNumber: 2, Stack: 100},
		{UserID: "b", SeatNumber: 3, Stack: 300},
	}
	gs := startScenarioHand(t, participants, HandConfig{SmallBlind: 5, BigBlind: 10}, 7)
	require.Equal(t, 2, gs.SmallBlindSeat)
	require.NotNil(t, gs.CurrentPlayerSeat)
	require.Equal(t, 1, *gs.CurrentPlayerSeat)

	require.NoError(t, ApplyAction(gs, "c", Action{Type: ActionRaise, Amount: 300}))
	require.NoError(t, ApplyAction(gs, "a", Action{Type: ActionCall}))
	require.NoError(t, ApplyAction(gs, "b", Action{Type: ActionCall}))

	assert.Equal(t, PhaseEndHand, gs.Phase)
	assert.Len(t, gs.CommunityCards, 5)

	total := 0
	for _, p := range gs.PlayerStates {
		total += p.Stack
	}
	assert.Equal(t, 700, total, "every committed chip must be redistributed")
	assert.LessOrEqual(t, gs.PlayerStates["a"].Stack, 300,
		"the 100 stack is only eligible for the 300 main pot")
}

// S3 — BB option: three players preflop, UTG folds, SB calls, BB checks;
// the round must close on the check (not loop forever) and the flop's
// first actor is the small blind.
func TestScenarioS3BBOptionCheck(t *testing.T) {
	participants := []Participant{
		{UserID: "utg", SeatNumber: 1, Stack: 1000},
		{UserID: "sb", SeatNumber: 2, Stack: 1000},
		{UserID: "bb", SeatNumber: 3, Stack: 1000},
	}
	// dealer is whichever seat is lowest with no previous hand (seat 1);
	// SB/BB follow clockwise: sb=seat2, bb=seat3, first-to-act=utg(seat1).
	gs := startScenarioHand(t, participants, HandConfig{SmallBlind: 10, BigBlind: 20}, 2)
	require.Equal(t, 2, gs.SmallBlindSeat)
	require.Equal(t, 3, gs.BigBlindSeat)
	require.NotNil(t, gs.CurrentPlayerSeat)
	require.Equal(t, 1, *gs.CurrentPlayerSeat)

	require.NoError(t, ApplyAction(gs, "utg", Action{Type: ActionFold}))
	require.NoError(t, ApplyAction(gs, "sb", Action{Type: ActionCall}))
	require.NoError(t, ApplyAction(gs, "bb", Action{Type: ActionCheck}))

	assert.Equal(t, PhaseFlop, gs.Phase)
	assert.Len(t, gs.CommunityCards, 3)
	require.NotNil(t, gs.CurrentPlayerSeat)
	assert.Equal(t, 2, *gs.CurrentPlayerSeat)
}

// S6 — Fold-around uncontested: four players preflop, everyone folds to
// the big blind including the small blind; the BB wins uncontested with
// no community cards revealed and no hand evaluation.
func TestScenarioS6FoldAroundUncontested(t *testing.T) {
	participants := []Participant{
		{UserID: "p1", SeatNumber: 1, Stack: 1000},
		{UserID: "p2", SeatNumber: 2, Stack: 1000},
		{UserID: "p3", SeatNumber: 3, Stack: 1000},
		{UserID: "p4", SeatNumber: 4, Stack: 1000},
	}
	gs := startScenarioHand(t, participants, HandConfig{SmallBlind: 10, BigBlind: 20}, 3)
	bbSeat := gs.BigBlindSeat
	bbUserID := gs.playerAtSeat(bbSeat).UserID
	bbStackBefore := gs.playerAtSeat(bbSeat).Stack

	for i := 0; i < 4; i++ {
		if gs.CurrentPlayerSeat == nil {
			break
		}
		seat := *gs.CurrentPlayerSeat
		if seat == bbSeat {
			break
		}
		p := gs.playerAtSeat(seat)
		require.NoError(t, ApplyAction(gs, p.UserID, Action{Type: ActionFold}))
	}

	assert.Equal(t, PhaseEndHand, gs.Phase)
	assert.Empty(t, gs.CommunityCards)
	bb := gs.PlayerStates[bbUserID]
	require.NotNil(t, bb)
	// bbStackBefore was read after the BB posted 20. The BB gets that 20
	// back plus the SB's forfeited 10 — a net gain of 10 over its
	// pre-blind stack, since nobody else contributed before folding.
	assert.Equal(t, bbStackBefore+20+10, bb.Stack)
}

// S4 — Ace-low straight beats trips: on a 2-3-4-9-K board, A-5 makes the
// wheel (straight, high card 5) and beats pocket kings' three of a kind.
func TestScenarioS4WheelBeatsTrips(t *testing.T) {
	wheel := &PlayerState{UserID: "w", SeatNumber: 1, Hand: mustCards(t, "Ah", "5d")}
	kings := &PlayerState{UserID: "k", SeatNumber: 2, Hand: mustCards(t, "Kd", "Ks")}
	gs := &GameState{
		CommunityCards: mustCards(t, "2c", "3d", "4s", "9h", "Kc"),
		PlayerStates:   map[string]*PlayerState{"w": wheel, "k": kings},
	}

	winners := bestHandWinners(gs, []string{"w", "k"})
	assert.Equal(t, []string{"w"}, winners)
}

// S5 — Odd-chip split: a 101-chip pot split between the winners at seats
// 5 and 7 with the small blind at seat 3 gives seat 5 (first clockwise
// from the SB) 51 chips and seat 7 50. The board plays for both, so they
// tie every layer.
func TestScenarioS5OddChipSplit(t *testing.T) {
	p3 := &PlayerState{UserID: "p3", SeatNumber: 3, TotalBet: 33, IsFolded: true, Hand: mustCards(t, "2c", "3c")}
	p5 := &PlayerState{UserID: "p5", SeatNumber: 5, TotalBet: 34, Hand: mustCards(t, "4d", "5d")}
	p7 := &PlayerState{UserID: "p7", SeatNumber: 7, TotalBet: 34, Hand: mustCards(t, "6s", "7s")}
	gs := &GameState{
		Phase:          PhaseRiver,
		CommunityCards: mustCards(t, "Ah", "Kh", "Qh", "Jh", "Th"),
		SmallBlindSeat: 3,
		Pot:            101,
		PlayerStates:   map[string]*PlayerState{"p3": p3, "p5": p5, "p7": p7},
	}

	require.NoError(t, showdown(gs))

	assert.Equal(t, PhaseEndHand, gs.Phase)
	assert.Equal(t, 51, gs.PlayerStates["p5"].Stack)
	assert.Equal(t, 50, gs.PlayerStates["p7"].Stack)
	assert.Equal(t, 0, gs.PlayerStates["p3"].Stack)
}

// Testable property #13: a short all-in raise does not reopen action for
// a player who already matched the prior bet.
func TestShortAllInRaiseDoesNotReopenActionForMatchedPlayer(t *testing.T) {
	a := &PlayerState{UserID: "a", SeatNumber: 1, Stack: 1000, CurrentBet: 40, TotalBet: 40, HasActed: true}
	b := &PlayerState{UserID: "b", SeatNumber: 2, Stack: 15, CurrentBet: 40, TotalBet: 40}
	c := &PlayerState{UserID: "c", SeatNumber: 3, Stack: 1000, CurrentBet: 40, TotalBet: 40}

	gs := &GameState{
		Phase:          PhaseFlop,
		RoomConfig:     HandConfig{BigBlind: 20},
		CurrentBet:     40,
		MinRaiseAmount: 40,
		DealerSeat:     3,
		PlayerStates:   map[string]*PlayerState{"a": a, "b": b, "c": c},
	}
	seat := 2
	gs.CurrentPlayerSeat = &seat

	require.NoError(t, ApplyAction(gs, "b", Action{Type: ActionRaise, Amount: 55}))

	assert.True(t, b.IsAllIn)
	assert.Equal(t, 40, gs.MinRaiseAmount, "short all-in must not raise the min-raise bar")
	assert.True(t, a.HasActed, "a already matched 40 and must not be forced to act again by a short all-in")
	assert.False(t, c.HasActed, "c never acted this street and must still owe a turn")
}
