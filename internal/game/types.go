// Package game implements the authoritative Texas Hold'em hand state
// machine: blind/ante posting, turn order, action validation and
// application, betting-round closure, street progression, and showdown
// distribution. It has no knowledge of rooms, connections, or storage —
// callers feed it a GameState and a command and get back a new GameState
// or a rejected action.
package game

import (
	"github.com/tablestack/holdem/internal/deck"
)

// Phase is a hand's position in the state diagram:
// waiting -> preflop -> (flop -> turn -> river)? -> showdown -> end_hand.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
	PhaseEndHand  Phase = "end_hand"
)

// PlayerState is one participant's state within the current hand.
type PlayerState struct {
	UserID       string      `json:"userId"`
	SeatNumber   int         `json:"seatNumber"`
	Stack        int         `json:"stack"`
	Hand         []deck.Card `json:"hand"`
	CurrentBet   int         `json:"currentBet"`
	TotalBet     int         `json:"totalBet"`
	HasActed     bool        `json:"hasActed"`
	IsFolded     bool        `json:"isFolded"`
	IsAllIn      bool        `json:"isAllIn"`
	IsSittingOut bool        `json:"isSittingOut"`
}

// canAct reports whether this player may still take an action this hand.
func (p *PlayerState) canAct() bool {
	return !p.IsFolded && !p.IsAllIn && !p.IsSittingOut
}

// HandConfig is the subset of RoomConfig the state machine needs to run a
// hand: blinds and ante. Embedded in GameState per the data model.
type HandConfig struct {
	SmallBlind int `json:"smallBlind"`
	BigBlind   int `json:"bigBlind"`
	Ante       int `json:"ante"`
}

// GameState is the per-room hand snapshot. Field names use Go casing but
// JSON tags preserve the camelCase wire shape.
type GameState struct {
	Phase                Phase                   `json:"phase"`
	Deck                 *deck.Deck              `json:"deck"`
	CommunityCards       []deck.Card             `json:"communityCards"`
	Pot                  int                     `json:"pot"`
	CurrentBet           int                     `json:"currentBet"`
	MinRaiseAmount       int                     `json:"minRaiseAmount"`
	DealerSeat           int                     `json:"dealerSeat"`
	SmallBlindSeat       int                     `json:"smallBlindSeat"`
	BigBlindSeat         int                     `json:"bigBlindSeat"`
	CurrentPlayerSeat    *int                    `json:"currentPlayerSeat"`
	LastActionPlayerSeat *int                    `json:"lastActionPlayerSeat"`
	PlayerStates         map[string]*PlayerState `json:"playerStates"`
	HandHistory          []string                `json:"handHistory"`
	LastUpdateTime       int64                   `json:"lastUpdateTime"`
	RoomConfig           HandConfig              `json:"roomConfig"`
}

// ActionType is a client-initiated betting action.
type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionBet   ActionType = "bet"
	ActionRaise ActionType = "raise"
)

// Action is a single validated-or-rejected player command. Amount is only
// meaningful for bet/raise and denotes the player's target total
// currentBet for the street, not the delta.
type Action struct {
	Type   ActionType
	Amount int
}

// seatedByNumber returns the participating player states sorted ascending
// by seat number, for deterministic iteration (dealing order, odd-chip
// distribution, turn advancement).
func (gs *GameState) seatedByNumber() []*PlayerState {
	out := make([]*PlayerState, 0, len(gs.PlayerStates))
	for _, p := range gs.PlayerStates {
		out = append(out, p)
	}
	for i := 0; i < len(out)-1; i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].SeatNumber < out[i].SeatNumber {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// SeatedByNumber returns the hand's participants sorted ascending by
// seat number. Read-only callers (operator tooling) use this; the state
// machine iterates the same order internally.
func (gs *GameState) SeatedByNumber() []*PlayerState {
	return gs.seatedByNumber()
}

// playerAtSeat returns the player occupying seat, or nil.
func (gs *GameState) playerAtSeat(seat int) *PlayerState {
	for _, p := range gs.PlayerStates {
		if p.SeatNumber == seat {
			return p
		}
	}
	return nil
}

// nextSeatAfter returns the next seat number, clockwise, strictly after
// `after` among the given ascending seat numbers, wrapping around to the
// smallest. It panics if seats is empty — callers must guard that.
func nextSeatAfter(seats []int, after int) int {
	for _, s := range seats {
		if s > after {
			return s
		}
	}
	return seats[0]
}

// nextSeatMatching returns the next seat after `after` (clockwise,
// wrapping) whose player satisfies pred, or nil if none does, scanning
// at most once all the way around.
func nextSeatMatching(gs *GameState, after int, pred func(*PlayerState) bool) *int {
	seated := gs.seatedByNumber()
	if len(seated) == 0 {
		return nil
	}
	seatNums := make([]int, len(seated))
	for i, p := range seated {
		seatNums[i] = p.SeatNumber
	}

	cur := after
	for range seatNums {
		cur = nextSeatAfter(seatNums, cur)
		if p := gs.playerAtSeat(cur); p != nil && pred(p) {
			seat := cur
			return &seat
		}
	}
	return nil
}
