// Package command implements the authenticated room-management entry
// points (createRoom, joinRoom, leaveRoom, closeRoom, startGame,
// togglePlayStatus, kickUser, transferChips, updateMaxPlayers,
// updateRoomFilter), each enforcing its own policy check against the
// room store before delegating game mutations to the hand state machine
// through the room runtime. playerAction is not here: it arrives over
// the WebSocket and is handled directly by internal/room.
package command

import (
	"context"
	"math/rand"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tablestack/holdem/internal/apperr"
	"github.com/tablestack/holdem/internal/game"
	"github.com/tablestack/holdem/internal/identity"
	"github.com/tablestack/holdem/internal/room"
	"github.com/tablestack/holdem/internal/store"
)

// Surface is the command entry point set. It holds no per-request state;
// every method is safe to call concurrently for different rooms (and,
// for reads, the same room — mutations are serialized by the target
// Room's lock).
type Surface struct {
	store  *store.Store
	rooms  *room.Registry
	logger zerolog.Logger
	clock  quartz.Clock
}

// New builds a Surface over a store and room registry. clock drives the
// between-hands delay check (a quartz.Mock in tests).
func New(st *store.Store, rooms *room.Registry, logger zerolog.Logger, clock quartz.Clock) *Surface {
	return &Surface{store: st, rooms: rooms, logger: logger, clock: clock}
}

func handInProgress(gs *game.GameState) bool {
	return gs != nil && gs.Phase != game.PhaseWaiting && gs.Phase != game.PhaseEndHand
}

// CreateRoomInput is createRoom's request payload, validated against the
// RoomConfig invariants before anything is persisted.
type CreateRoomInput struct {
	MaxPlayers       int
	StartingStack    int
	SmallBlind       int
	BigBlind         int
	Ante             int
	HandDelaySeconds int
	FilterProfanity  bool
	Public           bool
}

// CreateRoom creates a new room with caller as its owner, seated first.
func (s *Surface) CreateRoom(ctx context.Context, caller identity.Identity, in CreateRoomInput) (store.RoomConfig, error) {
	if !caller.EmailVerified {
		return store.RoomConfig{}, apperr.New(apperr.ForbiddenPolicy, "email_unverified", "email must be verified to create a room")
	}
	if _, err := s.store.ActiveRoomForUser(ctx, caller.UserID); err == nil {
		return store.RoomConfig{}, apperr.New(apperr.ConflictState, "already_in_room", "user already belongs to a room")
	}
	if in.MaxPlayers < 2 || in.MaxPlayers > 8 {
		return store.RoomConfig{}, apperr.New(apperr.InvalidInput, "bad_max_players", "maxPlayers must be between 2 and 8")
	}
	if in.BigBlind <= in.SmallBlind {
		return store.RoomConfig{}, apperr.New(apperr.InvalidInput, "bad_blinds", "bigBlind must exceed smallBlind")
	}
	if in.BigBlind > in.StartingStack {
		return store.RoomConfig{}, apperr.New(apperr.InvalidInput, "bad_blinds", "bigBlind must not exceed startingStack")
	}
	if in.Ante > in.StartingStack {
		return store.RoomConfig{}, apperr.New(apperr.InvalidInput, "bad_ante", "ante must not exceed startingStack")
	}

	joinCode, err := newJoinCode()
	if err != nil {
		return store.RoomConfig{}, apperr.Wrap(apperr.Internal, "join_code_failed", "could not generate a join code", err)
	}

	cfg := store.RoomConfig{
		RoomID:           uuid.NewString(),
		OwnerID:          caller.UserID,
		JoinCode:         joinCode,
		MaxPlayers:       in.MaxPlayers,
		StartingStack:    in.StartingStack,
		SmallBlind:       in.SmallBlind,
		BigBlind:         in.BigBlind,
		Ante:             in.Ante,
		HandDelaySeconds: in.HandDelaySeconds,
		FilterProfanity:  in.FilterProfanity,
		Public:           in.Public,
	}
	if err := s.store.CreateRoomConfig(ctx, cfg); err != nil {
		return store.RoomConfig{}, apperr.Wrap(apperr.StoreFailure, "create_room_failed", "could not create room", err)
	}

	owner := store.RoomMemberInfo{
		UserID: caller.UserID, Username: caller.Username, SeatNumber: 1,
		CurrentStack: in.StartingStack, IsActive: false,
	}
	if err := s.store.PutMember(ctx, cfg.RoomID, owner); err != nil {
		return store.RoomConfig{}, apperr.Wrap(apperr.StoreFailure, "create_room_failed", "could not seat owner", err)
	}
	if err := s.store.SetActiveRoom(ctx, caller.UserID, cfg.RoomID); err != nil {
		return store.RoomConfig{}, apperr.Wrap(apperr.StoreFailure, "create_room_failed", "could not record room membership", err)
	}
	return cfg, nil
}

// JoinRoom seats caller into the room identified by joinCode at the
// lowest unused seat.
func (s *Surface) JoinRoom(ctx context.Context, caller identity.Identity, joinCode string) (store.RoomConfig, error) {
	if !caller.EmailVerified {
		return store.RoomConfig{}, apperr.New(apperr.ForbiddenPolicy, "email_unverified", "email must be verified to join a room")
	}
	if _, err := s.store.ActiveRoomForUser(ctx, caller.UserID); err == nil {
		return store.RoomConfig{}, apperr.New(apperr.ConflictState, "already_in_room", "user already belongs to a room")
	}

	cfg, err := s.store.GetRoomConfigByJoinCode(ctx, joinCode)
	if err != nil {
		if err == store.ErrNotFound {
			return store.RoomConfig{}, apperr.New(apperr.NotFound, "room_not_found", "no room with that join code")
		}
		return store.RoomConfig{}, apperr.Wrap(apperr.StoreFailure, "join_failed", "could not look up room", err)
	}

	members, err := s.store.GetMembers(ctx, cfg.RoomID)
	if err != nil {
		return store.RoomConfig{}, apperr.Wrap(apperr.StoreFailure, "join_failed", "could not load members", err)
	}
	if len(members) >= cfg.MaxPlayers {
		return store.RoomConfig{}, apperr.New(apperr.ConflictState, "room_full", "room is full")
	}

	seat := lowestUnusedSeat(members, cfg.MaxPlayers)
	if seat == 0 {
		return store.RoomConfig{}, apperr.New(apperr.ConflictState, "room_full", "room is full")
	}

	member := store.RoomMemberInfo{
		UserID: caller.UserID, Username: caller.Username, SeatNumber: seat,
		CurrentStack: cfg.StartingStack, IsActive: false,
	}
	if err := s.store.PutMember(ctx, cfg.RoomID, member); err != nil {
		return store.RoomConfig{}, apperr.Wrap(apperr.StoreFailure, "join_failed", "could not seat member", err)
	}
	if err := s.store.SetActiveRoom(ctx, caller.UserID, cfg.RoomID); err != nil {
		return store.RoomConfig{}, apperr.Wrap(apperr.StoreFailure, "join_failed", "could not record room membership", err)
	}
	s.rooms.Room(cfg.RoomID).BroadcastRoomState(ctx)
	return cfg, nil
}

func lowestUnusedSeat(members map[string]store.RoomMemberInfo, maxPlayers int) int {
	used := make(map[int]bool, len(members))
	for _, m := range members {
		used[m.SeatNumber] = true
	}
	for seat := 1; seat <= maxPlayers; seat++ {
		if !used[seat] {
			return seat
		}
	}
	return 0
}

// LeaveRoom removes caller from a room they are not mid-hand in.
func (s *Surface) LeaveRoom(ctx context.Context, caller identity.Identity, roomID string) error {
	gs, err := s.currentGame(ctx, roomID)
	if err != nil {
		return err
	}
	if handInProgress(gs) {
		return apperr.New(apperr.ConflictState, "hand_in_progress", "cannot leave while a hand is in progress")
	}
	if err := s.store.DeleteMember(ctx, roomID, caller.UserID); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "leave_failed", "could not remove member", err)
	}
	if err := s.store.ClearActiveRoom(ctx, caller.UserID); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "leave_failed", "could not clear membership record", err)
	}
	s.rooms.Room(roomID).BroadcastRoomState(ctx)
	return nil
}

// CloseRoom tears a room down entirely: caller must be the owner and no
// hand may be in progress.
func (s *Surface) CloseRoom(ctx context.Context, caller identity.Identity, roomID string) error {
	if _, err := s.ownedRoom(ctx, caller, roomID); err != nil {
		return err
	}
	gs, err := s.currentGame(ctx, roomID)
	if err != nil {
		return err
	}
	if handInProgress(gs) {
		return apperr.New(apperr.ConflictState, "hand_in_progress", "cannot close room while a hand is in progress")
	}

	members, err := s.store.GetMembers(ctx, roomID)
	if err != nil {
		return apperr.Wrap(apperr.StoreFailure, "close_failed", "could not load members", err)
	}

	r := s.rooms.Room(roomID)
	r.BroadcastRoomClosed()

	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "close_failed", "could not delete room", err)
	}
	for userID := range members {
		_ = s.store.ClearActiveRoom(ctx, userID)
	}
	return nil
}

// StartGame begins a new hand: caller must own the room, no hand may
// already be in progress, and at least 2 active members must have opted
// in via togglePlayStatus.
func (s *Surface) StartGame(ctx context.Context, caller identity.Identity, roomID string, rng *rand.Rand) error {
	cfg, err := s.ownedRoom(ctx, caller, roomID)
	if err != nil {
		return err
	}

	r := s.rooms.Room(roomID)
	return r.Dispatch(ctx, func(ctx context.Context, prev *game.GameState) (*game.GameState, error) {
		if handInProgress(prev) {
			return nil, apperr.New(apperr.ConflictState, "hand_in_progress", "a hand is already in progress")
		}
		if prev != nil && prev.Phase == game.PhaseEndHand && cfg.HandDelaySeconds > 0 {
			elapsed := time.Duration(s.clock.Now().UnixMilli()-prev.LastUpdateTime) * time.Millisecond
			if elapsed < time.Duration(cfg.HandDelaySeconds)*time.Second {
				return nil, apperr.New(apperr.ConflictState, "hand_delay", "the next hand cannot start yet")
			}
		}

		members, err := s.store.GetMembers(ctx, roomID)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "start_failed", "could not load members", err)
		}

		var participants []game.Participant
		for _, m := range members {
			if !m.IsActive || !m.WantsToPlayNextHand {
				continue
			}
			carry, hasCarry := carryOverStack(prev, m.UserID)
			p := game.Participant{UserID: m.UserID, SeatNumber: m.SeatNumber, Stack: m.CurrentStack}
			if hasCarry {
				p.CarryOver = &carry
			}
			participants = append(participants, p)
		}
		if len(participants) < 2 {
			return nil, apperr.New(apperr.ConflictState, "not_enough_players", "at least 2 ready players are required")
		}

		var prevDealer *int
		if prev != nil {
			seat := prev.DealerSeat
			prevDealer = &seat
		}

		gs, err := game.StartHand(game.StartHandInput{
			Participants:       participants,
			PreviousDealerSeat: prevDealer,
			Config: game.HandConfig{
				SmallBlind: cfg.SmallBlind, BigBlind: cfg.BigBlind, Ante: cfg.Ante,
			},
			Logger: s.logger,
		}, rng)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "start_hand_failed", "could not start hand", err)
		}

		for _, m := range members {
			m.WantsToPlayNextHand = false
			_ = s.store.PutMember(ctx, roomID, m)
		}
		return gs, nil
	})
}

// carryOverStack returns the previous hand's ending stack for userID, if
// prev is an end_hand GameState that included them.
func carryOverStack(prev *game.GameState, userID string) (int, bool) {
	if prev == nil || prev.Phase != game.PhaseEndHand {
		return 0, false
	}
	p, ok := prev.PlayerStates[userID]
	if !ok {
		return 0, false
	}
	return p.Stack, true
}

// TogglePlayStatus sets whether caller wants to play the next hand.
func (s *Surface) TogglePlayStatus(ctx context.Context, caller identity.Identity, roomID string, want bool) error {
	gs, err := s.currentGame(ctx, roomID)
	if err != nil {
		return err
	}
	if handInProgress(gs) {
		return apperr.New(apperr.ConflictState, "hand_in_progress", "cannot change play status while a hand is in progress")
	}

	member, err := s.store.GetMember(ctx, roomID, caller.UserID)
	if err != nil {
		if err == store.ErrNotFound {
			return apperr.New(apperr.NotFound, "not_a_member", "user is not a member of this room")
		}
		return apperr.Wrap(apperr.StoreFailure, "toggle_failed", "could not load member", err)
	}
	if !member.IsActive {
		return apperr.New(apperr.ConflictState, "not_active", "user is not an active room member")
	}

	if want {
		cfg, err := s.store.GetRoomConfig(ctx, roomID)
		if err != nil {
			return apperr.Wrap(apperr.StoreFailure, "toggle_failed", "could not load room config", err)
		}
		if cfg.Ante > 0 && member.CurrentStack < cfg.Ante {
			return apperr.New(apperr.ConflictState, "insufficient_stack", "stack is below the ante")
		}
	}

	if err := s.store.UpdateMemberFields(ctx, roomID, caller.UserID, func(m *store.RoomMemberInfo) {
		m.WantsToPlayNextHand = want
	}); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "toggle_failed", "could not update member", err)
	}
	s.rooms.Room(roomID).BroadcastRoomState(ctx)
	return nil
}

// KickUser removes a target member from the room; caller must own the
// room and may not target themselves.
func (s *Surface) KickUser(ctx context.Context, caller identity.Identity, roomID, targetUserID string) error {
	if _, err := s.ownedRoom(ctx, caller, roomID); err != nil {
		return err
	}
	if targetUserID == caller.UserID {
		return apperr.New(apperr.ForbiddenPolicy, "self_kick", "owner cannot kick themselves")
	}
	gs, err := s.currentGame(ctx, roomID)
	if err != nil {
		return err
	}
	if handInProgress(gs) {
		return apperr.New(apperr.ConflictState, "hand_in_progress", "cannot kick while a hand is in progress")
	}

	if err := s.store.DeleteMember(ctx, roomID, targetUserID); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "kick_failed", "could not remove member", err)
	}
	if err := s.store.ClearActiveRoom(ctx, targetUserID); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "kick_failed", "could not clear membership record", err)
	}

	r := s.rooms.Room(roomID)
	r.BroadcastUserKicked(targetUserID, "removed by room owner")
	r.BroadcastRoomState(ctx)
	return nil
}

// TransferChips moves chips between two active, out-of-hand members.
func (s *Surface) TransferChips(ctx context.Context, caller identity.Identity, roomID, toUserID string, amount int) error {
	if amount <= 0 {
		return apperr.New(apperr.InvalidInput, "bad_amount", "amount must be positive")
	}
	if toUserID == caller.UserID {
		return apperr.New(apperr.InvalidInput, "self_transfer", "cannot transfer chips to yourself")
	}
	gs, err := s.currentGame(ctx, roomID)
	if err != nil {
		return err
	}
	if handInProgress(gs) {
		return apperr.New(apperr.ConflictState, "hand_in_progress", "cannot transfer chips while a hand is in progress")
	}

	sender, err := s.store.GetMember(ctx, roomID, caller.UserID)
	if err != nil {
		return memberLookupErr(err, "transfer_failed")
	}
	receiver, err := s.store.GetMember(ctx, roomID, toUserID)
	if err != nil {
		return memberLookupErr(err, "transfer_failed")
	}
	if !sender.IsActive || !receiver.IsActive {
		return apperr.New(apperr.ConflictState, "not_active", "both parties must be active room members")
	}
	if sender.CurrentStack < amount {
		return apperr.New(apperr.ConflictState, "insufficient_stack", "sender does not have enough chips")
	}

	if err := s.store.UpdateMemberFields(ctx, roomID, caller.UserID, func(m *store.RoomMemberInfo) {
		m.CurrentStack -= amount
	}); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "transfer_failed", "could not debit sender", err)
	}
	if err := s.store.UpdateMemberFields(ctx, roomID, toUserID, func(m *store.RoomMemberInfo) {
		m.CurrentStack += amount
	}); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "transfer_failed", "could not credit receiver", err)
	}
	s.rooms.Room(roomID).BroadcastRoomState(ctx)
	return nil
}

// UpdateMaxPlayers grows a room's seat capacity; it may never shrink.
func (s *Surface) UpdateMaxPlayers(ctx context.Context, caller identity.Identity, roomID string, n int) error {
	cfg, err := s.ownedRoom(ctx, caller, roomID)
	if err != nil {
		return err
	}
	if n <= cfg.MaxPlayers {
		return apperr.New(apperr.InvalidInput, "bad_max_players", "maxPlayers may only grow")
	}
	if n > 8 {
		return apperr.New(apperr.InvalidInput, "bad_max_players", "maxPlayers may not exceed 8")
	}
	members, err := s.store.GetMembers(ctx, roomID)
	if err != nil {
		return apperr.Wrap(apperr.StoreFailure, "update_failed", "could not load members", err)
	}
	activeCount := 0
	for _, m := range members {
		if m.IsActive {
			activeCount++
		}
	}
	if n < activeCount {
		return apperr.New(apperr.InvalidInput, "bad_max_players", "maxPlayers must be at least the active member count")
	}

	cfg.MaxPlayers = n
	if err := s.store.PutRoomConfig(ctx, cfg); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "update_failed", "could not save room config", err)
	}
	return nil
}

// UpdateRoomFilter toggles the room's profanity filter.
func (s *Surface) UpdateRoomFilter(ctx context.Context, caller identity.Identity, roomID string, enabled bool) error {
	cfg, err := s.ownedRoom(ctx, caller, roomID)
	if err != nil {
		return err
	}
	cfg.FilterProfanity = enabled
	if err := s.store.PutRoomConfig(ctx, cfg); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "update_failed", "could not save room config", err)
	}
	return nil
}

// --- shared helpers -----------------------------------------------------

func (s *Surface) ownedRoom(ctx context.Context, caller identity.Identity, roomID string) (store.RoomConfig, error) {
	cfg, err := s.store.GetRoomConfig(ctx, roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return store.RoomConfig{}, apperr.New(apperr.NotFound, "room_not_found", "room does not exist")
		}
		return store.RoomConfig{}, apperr.Wrap(apperr.StoreFailure, "room_lookup_failed", "could not load room", err)
	}
	if cfg.OwnerID != caller.UserID {
		return store.RoomConfig{}, apperr.New(apperr.ForbiddenPolicy, "not_owner", "caller is not the room owner")
	}
	return cfg, nil
}

func (s *Surface) currentGame(ctx context.Context, roomID string) (*game.GameState, error) {
	gs, err := s.store.GetGame(ctx, roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.StoreFailure, "game_lookup_failed", "could not load game state", err)
	}
	return gs, nil
}

func memberLookupErr(err error, code string) error {
	if err == store.ErrNotFound {
		return apperr.New(apperr.NotFound, "member_not_found", "member not found")
	}
	return apperr.Wrap(apperr.StoreFailure, code, "could not load member", err)
}
