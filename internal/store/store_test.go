package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tablestack/holdem/internal/game"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared", time.Hour, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoomConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg := RoomConfig{RoomID: "r1", OwnerID: "u1", JoinCode: "ABCD1234", MaxPlayers: 6, SmallBlind: 5, BigBlind: 10}
	require.NoError(t, s.CreateRoomConfig(ctx, cfg))

	got, err := s.GetRoomConfig(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, cfg, got)

	_, err = s.GetRoomConfig(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemberFieldUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := RoomMemberInfo{UserID: "u1", Username: "alice", SeatNumber: 1, CurrentStack: 1000, IsActive: true}
	require.NoError(t, s.PutMember(ctx, "r1", m))

	require.NoError(t, s.UpdateMemberFields(ctx, "r1", "u1", func(m *RoomMemberInfo) {
		m.WantsToPlayNextHand = true
		m.CurrentStack = 950
	}))

	got, err := s.GetMember(ctx, "r1", "u1")
	require.NoError(t, err)
	require.True(t, got.WantsToPlayNextHand)
	require.Equal(t, 950, got.CurrentStack)
	require.Equal(t, "alice", got.Username)

	members, err := s.GetMembers(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func TestGameStateRoundTripAndCacheInvalidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gs := &game.GameState{Phase: game.PhasePreflop, Pot: 30}
	require.NoError(t, s.PutGame(ctx, "r1", gs))

	got, err := s.GetGame(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, game.PhasePreflop, got.Phase)
	require.Equal(t, 30, got.Pot)

	gs2 := &game.GameState{Phase: game.PhaseFlop, Pot: 60}
	require.NoError(t, s.PutGame(ctx, "r1", gs2))

	got2, err := s.GetGame(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, game.PhaseFlop, got2.Phase)
	require.Equal(t, 60, got2.Pot)

	require.NoError(t, s.DeleteGame(ctx, "r1"))
	_, err = s.GetGame(ctx, "r1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChatHistoryCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < ChatHistoryLimit+10; i++ {
		require.NoError(t, s.PushChat(ctx, "r1", ChatMessage{
			ID: string(rune('a' + i%26)), RoomID: "r1", UserID: "u1",
			Message: "hi", Timestamp: int64(i),
		}))
	}

	history, err := s.ListChat(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, history, ChatHistoryLimit)
	require.True(t, history[0].Timestamp < history[len(history)-1].Timestamp)
}

func TestDeleteRoomRemovesAllNamespaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRoomConfig(ctx, RoomConfig{RoomID: "r1", OwnerID: "u1"}))
	require.NoError(t, s.PutMember(ctx, "r1", RoomMemberInfo{UserID: "u1"}))
	require.NoError(t, s.PutGame(ctx, "r1", &game.GameState{Phase: game.PhaseWaiting}))
	require.NoError(t, s.PushChat(ctx, "r1", ChatMessage{ID: "m1", RoomID: "r1"}))

	require.NoError(t, s.DeleteRoom(ctx, "r1"))

	_, err := s.GetRoomConfig(ctx, "r1")
	require.ErrorIs(t, err, ErrNotFound)
	members, err := s.GetMembers(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, members)
	_, err = s.GetGame(ctx, "r1")
	require.ErrorIs(t, err, ErrNotFound)
	chat, err := s.ListChat(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, chat)
}
