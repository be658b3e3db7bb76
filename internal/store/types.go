// Package store is the durable room store: a keyed, TTL-backed
// persistence layer for room membership, the current hand's GameState,
// and a bounded chat buffer. It is the cross-process source of truth;
// the room runtime (internal/room) holds GameState in memory only for
// the span of a single command dispatch.
package store

import "github.com/tablestack/holdem/internal/game"

// RoomConfig is immutable after creation except MaxPlayers (may grow,
// never below the active member count, never above 8) and
// FilterProfanity.
type RoomConfig struct {
	RoomID           string `json:"roomId"`
	OwnerID          string `json:"ownerId"`
	JoinCode         string `json:"joinCode"`
	MaxPlayers       int    `json:"maxPlayers"`
	StartingStack    int    `json:"startingStack"`
	SmallBlind       int    `json:"smallBlind"`
	BigBlind         int    `json:"bigBlind"`
	Ante             int    `json:"ante"`
	HandDelaySeconds int    `json:"handDelaySeconds"`
	FilterProfanity  bool   `json:"filterProfanity"`
	Public           bool   `json:"public"`
}

// RoomMemberInfo is durable per-room membership, independent of whether a
// hand is in progress. CurrentStack is the chip count a member owns
// between hands; WantsToPlayNextHand is reset at the start of every hand.
type RoomMemberInfo struct {
	UserID              string `json:"userId"`
	Username            string `json:"username"`
	SeatNumber          int    `json:"seatNumber"`
	CurrentStack        int    `json:"currentStack"`
	IsActive            bool   `json:"isActive"`
	WantsToPlayNextHand bool   `json:"wantsToPlayNextHand"`
}

// ChatMessage is one entry in a room's bounded chat buffer.
type ChatMessage struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ChatHistoryLimit is the hard cap on persisted chat messages per room.
const ChatHistoryLimit = 100

// GameState is re-exported so callers of this package don't also need to
// import internal/game directly for the common case of storing/loading
// a room's current hand.
type GameState = game.GameState
