package game

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tablestack/holdem/internal/deck"
	"github.com/tablestack/holdem/internal/evaluator"
)

// Participant is a member about to be dealt into a new hand. CarryOver,
// when non-nil, is the stack the member ended the previous hand with;
// otherwise Stack (the durable RoomMemberInfo.currentStack) is used.
type Participant struct {
	UserID     string
	SeatNumber int
	CarryOver  *int
	Stack      int
}

// StartHandInput collects everything StartHand needs beyond the RNG.
type StartHandInput struct {
	Participants       []Participant
	PreviousDealerSeat *int
	Config             HandConfig
	Logger             zerolog.Logger
}

// fallbackStack is the defensive clamp applied when a member would
// otherwise start a hand with zero chips. It is surfaced as a warning,
// never silently applied.
func fallbackStack(cfg HandConfig) int {
	return cfg.BigBlind * 50
}

// StartHand builds the initial preflop GameState for a new hand: seats
// the participants, rotates the dealer, posts antes and blinds, shuffles
// and deals hole cards, and sets the first player to act. If blind/ante
// posting leaves nobody able to act, StartHand resolves the hand itself
// (running out the board to showdown), so the returned state is already
// at end_hand with a nil CurrentPlayerSeat.
func StartHand(in StartHandInput, rng *rand.Rand) (*GameState, error) {
	if len(in.Participants) < 2 {
		return nil, fmt.Errorf("game: StartHand requires at least 2 participants, got %d", len(in.Participants))
	}

	gs := &GameState{
		Phase:        PhasePreflop,
		RoomConfig:   in.Config,
		PlayerStates: make(map[string]*PlayerState, len(in.Participants)),
	}

	seats := make([]int, 0, len(in.Participants))
	for _, p := range in.Participants {
		stack := p.Stack
		if p.CarryOver != nil {
			stack = *p.CarryOver
		}
		if stack == 0 {
			stack = fallbackStack(in.Config)
			in.Logger.Warn().
				Str("userId", p.UserID).
				Int("seat", p.SeatNumber).
				Int("clampedStack", stack).
				Msg("member had zero stack at hand start; applying defensive clamp")
		}
		gs.PlayerStates[p.UserID] = &PlayerState{
			UserID:     p.UserID,
			SeatNumber: p.SeatNumber,
			Stack:      stack,
		}
		seats = append(seats, p.SeatNumber)
	}
	sort.Ints(seats)

	gs.DealerSeat = dealerSeat(seats, in.PreviousDealerSeat)

	headsUp := len(seats) == 2
	if headsUp {
		gs.SmallBlindSeat = gs.DealerSeat
		gs.BigBlindSeat = nextSeatAfter(seats, gs.DealerSeat)
	} else {
		gs.SmallBlindSeat = nextSeatAfter(seats, gs.DealerSeat)
		gs.BigBlindSeat = nextSeatAfter(seats, gs.SmallBlindSeat)
	}

	if in.Config.Ante > 0 {
		for _, seat := range seats {
			p := gs.playerAtSeat(seat)
			postAnte(gs, p, in.Config.Ante)
		}
	}

	sbPlayer := gs.playerAtSeat(gs.SmallBlindSeat)
	postBlind(gs, sbPlayer, in.Config.SmallBlind)
	bbPlayer := gs.playerAtSeat(gs.BigBlindSeat)
	postBlind(gs, bbPlayer, in.Config.BigBlind)

	gs.CurrentBet = in.Config.BigBlind
	gs.MinRaiseAmount = in.Config.BigBlind
	bbSeat := gs.BigBlindSeat
	gs.LastActionPlayerSeat = &bbSeat

	var shuffled *deck.Deck
	if rng != nil {
		shuffled = deck.NewDeck()
		shuffled.ShuffleWith(rng)
	} else {
		var err error
		shuffled, err = deck.NewShuffledDeck()
		if err != nil {
			return nil, fmt.Errorf("game: shuffling deck: %w", err)
		}
	}
	gs.Deck = shuffled

	dealOrder := dealingOrder(seats, gs.DealerSeat)
	for round := 0; round < 2; round++ {
		for _, seat := range dealOrder {
			p := gs.playerAtSeat(seat)
			if p.IsSittingOut {
				continue
			}
			card, ok := gs.Deck.Pop()
			if !ok {
				return nil, fmt.Errorf("game: %w: deck exhausted dealing hole cards", ErrInternalInvariant)
			}
			p.Hand = append(p.Hand, card)
		}
	}

	gs.CurrentPlayerSeat = nextSeatMatching(gs, gs.BigBlindSeat, func(p *PlayerState) bool {
		return p.canAct()
	})
	gs.HandHistory = []string{"hand started"}

	if err := resolveIfNoActor(gs); err != nil {
		return nil, err
	}
	return gs, nil
}

// dealerSeat picks the lowest seat if there is no prior hand, otherwise
// the next participating seat strictly after the previous dealer
// (wrapping by seat number, not list index).
func dealerSeat(seats []int, previous *int) int {
	if previous == nil {
		return seats[0]
	}
	return nextSeatAfter(seats, *previous)
}

// dealingOrder returns seats in clockwise deal order starting left of the
// dealer.
func dealingOrder(seats []int, dealer int) []int {
	order := make([]int, 0, len(seats))
	cur := dealer
	for range seats {
		cur = nextSeatAfter(seats, cur)
		order = append(order, cur)
	}
	return order
}

// postAnte moves min(stack, ante) from the player's stack into the pot,
// contributing to totalBet but not currentBet (antes are not part of the
// street's betting line).
func postAnte(gs *GameState, p *PlayerState, ante int) {
	amount := ante
	if amount > p.Stack {
		amount = p.Stack
	}
	p.Stack -= amount
	p.TotalBet += amount
	gs.Pot += amount
	if p.Stack == 0 {
		p.IsAllIn = true
	}
}

// postBlind moves min(stack, amount) from the player's stack into the
// pot, contributing to both currentBet and totalBet.
func postBlind(gs *GameState, p *PlayerState, amount int) {
	posted := amount
	if posted > p.Stack {
		posted = p.Stack
	}
	p.Stack -= posted
	p.CurrentBet += posted
	p.TotalBet += posted
	gs.Pot += posted
	if p.Stack == 0 {
		p.IsAllIn = true
	}
}

// ErrInternalInvariant marks a "deck exhausted mid-deal" or
// impossible-branch condition. It is fatal for the hand — callers abort
// and refund rather than truncating the deal.
var ErrInternalInvariant = fmt.Errorf("internal invariant violated")

// AbortHand resolves a hand that violated an internal invariant: every
// chip each player committed this hand goes back to their stack, nothing
// is won or lost, and the hand closes at end_hand so the room can start
// fresh. TotalBet is the authoritative record of what each player put in,
// so a refund is exact even if the violation interrupted a deal midway.
func AbortHand(gs *GameState) {
	for _, p := range gs.PlayerStates {
		p.Stack += p.TotalBet
		resetForNextHand(p)
	}
	gs.Pot = 0
	gs.Phase = PhaseEndHand
	gs.CurrentPlayerSeat = nil
	gs.HandHistory = append(gs.HandHistory, "hand aborted, committed chips returned")
}

// resetForNextHand clears per-hand fields on a player after showdown:
// hand=[], currentBet=0, totalBet=0.
func resetForNextHand(p *PlayerState) {
	p.Hand = nil
	p.CurrentBet = 0
	p.TotalBet = 0
	p.HasActed = false
	p.IsFolded = false
	p.IsAllIn = false
}

// handEvaluationCards returns the up-to-7 cards available to evaluate a
// player's hand: their hole cards plus the current community cards.
func handEvaluationCards(p *PlayerState, community []deck.Card) []deck.Card {
	cards := make([]deck.Card, 0, len(p.Hand)+len(community))
	cards = append(cards, p.Hand...)
	cards = append(cards, community...)
	return cards
}

// bestHandRank evaluates a player's best available 5-card hand. It is
// only ever called with >= 5 cards at showdown (river always dealt before
// reaching showdown except the uncontested fold-around path, which never
// calls this).
func bestHandRank(p *PlayerState, community []deck.Card) evaluator.HandRank {
	rank, _, err := evaluator.Best(handEvaluationCards(p, community))
	if err != nil {
		panic(fmt.Sprintf("game: showdown evaluation with fewer than 5 cards for %s: %v", p.UserID, err))
	}
	return rank
}
