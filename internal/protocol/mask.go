package protocol

import (
	"github.com/tablestack/holdem/internal/deck"
	"github.com/tablestack/holdem/internal/game"
)

// MaskedPlayerState is the outward-facing shape of game.PlayerState: the
// same fields minus anything the recipient is not entitled to see. Hand
// is populated only when the snapshot is being built for that player.
type MaskedPlayerState struct {
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

// MaskedGameState is game.GameState with the deck always removed and
// hole cards visible only to their owner. It is the shape actually sent
// over the wire, both as a full "game_state" snapshot and as the
// baseline a "game_state_patch" is computed against before filtering.
type MaskedGameState struct {
	Phase                game.Phase                   `json:"phase"`
	CommunityCards       []deck.Card                  `json:"communityCards"`
	Pot                  int                          `json:"pot"`
	CurrentBet           int                          `json:"currentBet"`
	MinRaiseAmount       int                          `json:"minRaiseAmount"`
	DealerSeat           int                          `json:"dealerSeat"`
	SmallBlindSeat       int                          `json:"smallBlindSeat"`
	BigBlindSeat         int                          `json:"bigBlindSeat"`
	CurrentPlayerSeat    *int                         `json:"currentPlayerSeat"`
	LastActionPlayerSeat *int                         `json:"lastActionPlayerSeat"`
	PlayerStates         map[string]MaskedPlayerState `json:"playerStates"`
	HandHistory          []string                     `json:"handHistory"`
	LastUpdateTime       int64                        `json:"lastUpdateTime"`
	RoomConfig           game.HandConfig              `json:"roomConfig"`
}

// MaskForViewer builds the MaskedGameState a given viewer is entitled to
// see: every player's public fields, but hole cards only for viewerID.
// An empty viewerID masks every hand (used for spectators / previews).
func MaskForViewer(gs *game.GameState, viewerID string) MaskedGameState {
	players := make(map[string]MaskedPlayerState, len(gs.PlayerStates))
	for uid, p := range gs.PlayerStates {
		mp := MaskedPlayerState{
			UserID:       p.UserID,
			SeatNumber:   p.SeatNumber,
			Stack:        p.Stack,
			CurrentBet:   p.CurrentBet,
			TotalBet:     p.TotalBet,
			HasActed:     p.HasActed,
			IsFolded:     p.IsFolded,
			IsAllIn:      p.IsAllIn,
			IsSittingOut: p.IsSittingOut,
		}
		if uid == viewerID {
			mp.Hand = p.Hand
		}
		players[uid] = mp
	}
	return MaskedGameState{
		Phase:                gs.Phase,
		CommunityCards:       gs.CommunityCards,
		Pot:                  gs.Pot,
		CurrentBet:           gs.CurrentBet,
		MinRaiseAmount:       gs.MinRaiseAmount,
		DealerSeat:           gs.DealerSeat,
		SmallBlindSeat:       gs.SmallBlindSeat,
		BigBlindSeat:         gs.BigBlindSeat,
		CurrentPlayerSeat:    gs.CurrentPlayerSeat,
		LastActionPlayerSeat: gs.LastActionPlayerSeat,
		PlayerStates:         players,
		HandHistory:          gs.HandHistory,
		LastUpdateTime:       gs.LastUpdateTime,
		RoomConfig:           gs.RoomConfig,
	}
}
