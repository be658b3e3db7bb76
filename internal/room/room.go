// Package room implements the room runtime: the per-room WebSocket
// connection set, command dispatch against the hand state machine
// (internal/game), per-viewer hole-card masking, and the diff-and-patch
// broadcast channel (internal/protocol). GameState itself is never
// cached across dispatches in memory — it is loaded from the room store
// on every command so durability survives a process restart; only
// connection handles live here.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tablestack/holdem/internal/apperr"
	"github.com/tablestack/holdem/internal/game"
	"github.com/tablestack/holdem/internal/protocol"
	"github.com/tablestack/holdem/internal/store"
)

// ChatRateLimit is the minimum interval between chat messages from one
// client.
const ChatRateLimit = 2 * time.Second

// Registry owns every in-process Room, keyed by room id. Room affinity
// (same room always dispatched to the same process) is a deployment
// requirement when horizontally scaled; within one process, Registry is
// the single source of truth for which Room handles a given id.
type Registry struct {
	store  *store.Store
	logger zerolog.Logger
	clock  quartz.Clock

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry constructs a Registry backed by store, logging through
// logger, and using clock for chat rate limiting (a quartz.Mock in
// tests, quartz.NewReal() in production).
func NewRegistry(st *store.Store, logger zerolog.Logger, clock quartz.Clock) *Registry {
	return &Registry{store: st, logger: logger, clock: clock, rooms: make(map[string]*Room)}
}

// Room returns the in-process coordinator for roomID, creating it if this
// is the first reference since process start.
func (reg *Registry) Room(roomID string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[roomID]; ok {
		return r
	}
	r := &Room{
		id:       roomID,
		store:    reg.store,
		logger:   reg.logger.With().Str("roomId", roomID).Logger(),
		clock:    reg.clock,
		reg:      reg,
		conns:    make(map[string]*connection),
		lastChat: make(map[string]time.Time),
	}
	reg.rooms[roomID] = r
	return r
}

// drop removes a room's in-process entry once it has no connections left.
func (reg *Registry) drop(roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[roomID]; ok && r.connCount() == 0 {
		delete(reg.rooms, roomID)
	}
}

// Room is the per-room coordinator. dispatchMu serializes every
// state-mutating operation (per-room single-writer discipline); mu
// guards only the connection set and chat timestamps, so broadcasts
// issued from inside a dispatch can snapshot the connection set without
// re-entering the dispatch lock.
type Room struct {
	id     string
	store  *store.Store
	logger zerolog.Logger
	clock  quartz.Clock
	reg    *Registry

	dispatchMu sync.Mutex

	mu       sync.Mutex
	conns    map[string]*connection
	lastChat map[string]time.Time
}

func (r *Room) connCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Connect registers conn as userID's handle for this room: any existing
// connection for the same user is closed with code 1011 (superseded),
// the member is marked active, and the initial snapshot trio (room_state,
// game_state, history) is sent before the read pump starts.
//
// The WebSocket session outlives the HTTP request that upgraded it, so
// everything after the upgrade runs against a detached background
// context rather than the request's — the latter is canceled the moment
// the upgrading handler returns, which is immediately after Connect.
func (r *Room) Connect(ctx context.Context, ws *websocket.Conn, userID, username string) error {
	sessionCtx := context.Background()
	c := newConnection(ws, userID, r.logger)

	r.mu.Lock()
	if old, ok := r.conns[userID]; ok {
		old.closeWithCode(websocket.CloseInternalServerErr, "superseded by new connection")
	}
	r.conns[userID] = c
	r.mu.Unlock()

	if err := r.markActive(sessionCtx, userID, username); err != nil {
		r.logger.Error().Err(err).Str("userId", userID).Msg("marking member active")
	}

	go c.writePump()
	r.sendInitialSnapshot(sessionCtx, c)
	go func() {
		c.readPump(func(raw []byte) { r.handleRaw(sessionCtx, userID, username, raw) })
		r.disconnectConn(sessionCtx, userID, c)
	}()

	return nil
}

// Disconnect tears down userID's connection handle, marks them inactive,
// broadcasts the refreshed membership table, and drops the room's
// in-process entry if it is now empty. It is the external, force-close
// entry point (e.g. driven by a test or an admin action); the read
// pump's own exit instead goes through disconnectConn, which only acts
// if its connection is still the one on record.
func (r *Room) Disconnect(ctx context.Context, userID string) {
	r.mu.Lock()
	c, ok := r.conns[userID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.disconnectConn(ctx, userID, c)
}

// disconnectConn tears down conn's handle, but only if it is still the
// connection on record for userID — a superseded connection's read pump
// exiting must not clobber the new connection that replaced it.
func (r *Room) disconnectConn(ctx context.Context, userID string, conn *connection) {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current != conn {
		r.mu.Unlock()
		return
	}
	current.close()
	delete(r.conns, userID)
	r.mu.Unlock()

	if err := r.store.UpdateMemberFields(ctx, r.id, userID, func(m *store.RoomMemberInfo) {
		m.IsActive = false
	}); err != nil && err != store.ErrNotFound {
		r.logger.Error().Err(err).Str("userId", userID).Msg("marking member inactive")
	}
	r.broadcastRoomState(ctx)

	if r.reg != nil {
		r.reg.drop(r.id)
	}
}

func (r *Room) markActive(ctx context.Context, userID, username string) error {
	return r.store.UpdateMemberFields(ctx, r.id, userID, func(m *store.RoomMemberInfo) {
		m.UserID = userID
		m.Username = username
		m.IsActive = true
	})
}

func (r *Room) sendInitialSnapshot(ctx context.Context, c *connection) {
	members, err := r.store.GetMembers(ctx, r.id)
	if err == nil {
		r.sendTo(c, protocol.NewRoomState(members))
	}

	if gs, err := r.store.GetGame(ctx, r.id); err == nil {
		masked := protocol.MaskForViewer(gs, c.userID)
		r.sendTo(c, protocol.NewGameStateMessage(masked))
	}

	if history, err := r.store.ListChat(ctx, r.id); err == nil {
		r.sendTo(c, protocol.History{Type: protocol.TypeHistory, Messages: history})
	}
}

func (r *Room) handleRaw(ctx context.Context, userID, username string, raw []byte) {
	msg, err := protocol.DecodeClientMessage(raw)
	if err != nil {
		r.sendErrorTo(userID, err.Error())
		return
	}
	switch m := msg.(type) {
	case protocol.ClientChat:
		if err := r.HandleChat(ctx, userID, username, m.Message); err != nil {
			r.sendErrorTo(userID, err.Error())
		}
	case protocol.ClientAction:
		if err := r.HandleAction(ctx, userID, m.Action, m.Amount); err != nil {
			r.sendErrorTo(userID, err.Error())
		}
	}
}

// HandleChat validates, rate-limits, persists, and broadcasts a chat
// message: trimmed, dropped if empty after trimming, rejected over
// MaxChatMessageLength, and soft-rate-limited to one message per
// ChatRateLimit per client.
func (r *Room) HandleChat(ctx context.Context, userID, username, message string) error {
	message = trimSpace(message)
	if message == "" {
		return nil
	}
	if len(message) > protocol.MaxChatMessageLength {
		return apperr.New(apperr.InvalidInput, "chat_too_long", "message exceeds the length limit")
	}

	r.mu.Lock()
	last, seen := r.lastChat[userID]
	now := r.clock.Now()
	if seen && now.Sub(last) < ChatRateLimit {
		r.mu.Unlock()
		return apperr.New(apperr.InvalidAction, "rate_limited", "chat rate limit exceeded")
	}
	r.lastChat[userID] = now
	r.mu.Unlock()

	msg := store.ChatMessage{
		ID: fmt.Sprintf("%s-%d", userID, now.UnixNano()), RoomID: r.id,
		UserID: userID, Username: username, Message: message, Timestamp: now.Unix(),
	}
	if err := r.store.PushChat(ctx, r.id, msg); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "chat_store_failed", "could not persist chat message", err)
	}

	r.broadcastAll(protocol.NewServerChat(msg))
	return nil
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

// HandleAction loads the room's current GameState, applies the action via
// the hand state machine, and persists+broadcasts the result. A rejected
// action never reaches the store or the broadcast. An internal invariant
// violation (deck exhausted mid-deal) is not the actor's error: the hand
// is aborted, every player's committed chips are returned, and the
// aborted end_hand state is what gets persisted and broadcast.
func (r *Room) HandleAction(ctx context.Context, userID, actionType string, amount int) error {
	return r.Dispatch(ctx, func(_ context.Context, gs *game.GameState) (*game.GameState, error) {
		if gs == nil {
			return nil, apperr.New(apperr.ConflictState, "no_hand_in_progress", "no hand is in progress")
		}
		action := game.Action{Type: game.ActionType(actionType), Amount: amount}
		if err := game.ApplyAction(gs, userID, action); err != nil {
			if errors.Is(err, game.ErrInternalInvariant) {
				r.logger.Error().Err(err).Msg("aborting hand on invariant violation")
				game.AbortHand(gs)
				return gs, nil
			}
			return nil, apperr.Wrap(apperr.InvalidAction, "illegal_action", err.Error(), err)
		}
		return gs, nil
	})
}

// Dispatch is the room-locked transactional core shared by the internal
// action handler and the command surface: it loads the
// current GameState, applies mutate under the room lock, and — only if
// mutate succeeds — persists the result and broadcasts a diff (or a full
// snapshot, if this is the first GameState the room has ever had) before
// releasing the lock. A store failure after a successful in-memory
// transition never broadcasts the unpersisted state.
func (r *Room) Dispatch(ctx context.Context, mutate func(ctx context.Context, prev *game.GameState) (*game.GameState, error)) error {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	prev, err := r.store.GetGame(ctx, r.id)
	if err != nil && err != store.ErrNotFound {
		return apperr.Wrap(apperr.StoreFailure, "game_load_failed", "could not load game state", err)
	}
	if err == store.ErrNotFound {
		prev = nil
	}

	next, err := mutate(ctx, prev)
	if err != nil {
		return err
	}

	next.LastUpdateTime = r.clock.Now().UnixMilli()

	if err := r.store.PutGame(ctx, r.id, next); err != nil {
		return apperr.Wrap(apperr.StoreFailure, "game_save_failed", "could not persist game state", err)
	}

	r.broadcastGameState(prev, next)

	if next.Phase == game.PhaseEndHand {
		if err := r.writeBackStacks(ctx, next); err != nil {
			r.logger.Error().Err(err).Msg("writing back end-of-hand stacks")
		}
		r.broadcastRoomState(ctx)
	}
	return nil
}

// writeBackStacks persists each hand participant's final stack into their
// durable RoomMemberInfo.CurrentStack.
func (r *Room) writeBackStacks(ctx context.Context, gs *game.GameState) error {
	for userID, p := range gs.PlayerStates {
		stack := p.Stack
		if err := r.store.UpdateMemberFields(ctx, r.id, userID, func(m *store.RoomMemberInfo) {
			m.CurrentStack = stack
		}); err != nil {
			return err
		}
	}
	return nil
}

// broadcastGameState sends, to each connected viewer, either a full
// masked snapshot (first time this room has had a GameState, i.e. prev ==
// nil, or when diffing fails) or a filtered JSON Patch of prev → next as
// masked for that viewer. No per-client baseline is tracked here; a
// client's baseline is the snapshot Connect sent it.
func (r *Room) broadcastGameState(prev, next *game.GameState) {
	conns := r.connSnapshot()
	g := new(errgroup.Group)
	for _, c := range conns {
		c := c
		g.Go(func() error {
			if prev == nil {
				r.sendTo(c, protocol.NewGameStateMessage(protocol.MaskForViewer(next, c.userID)))
				return nil
			}
			prevMasked := protocol.MaskForViewer(prev, c.userID)
			nextMasked := protocol.MaskForViewer(next, c.userID)
			patches, err := protocol.Diff(prevMasked, nextMasked)
			if err != nil {
				r.logger.Error().Err(err).Msg("diffing game state")
				r.sendTo(c, protocol.NewGameStateMessage(nextMasked))
				return nil
			}
			filtered := protocol.FilterPatch(patches, c.userID)
			r.sendTo(c, protocol.NewGameStatePatch(filtered))
			return nil
		})
	}
	_ = g.Wait()
}

// BroadcastRoomState refreshes every connected client's membership table.
// The command surface calls this after a membership-affecting operation
// (join, leave, kick, toggle-play-status, transfer) that does not go
// through Dispatch.
func (r *Room) BroadcastRoomState(ctx context.Context) {
	r.broadcastRoomState(ctx)
}

func (r *Room) broadcastRoomState(ctx context.Context) {
	members, err := r.store.GetMembers(ctx, r.id)
	if err != nil {
		r.logger.Error().Err(err).Msg("loading members for broadcast")
		return
	}
	r.broadcastAll(protocol.NewRoomState(members))
}

// BroadcastRoomClosed sends the room_closed terminator to every
// connected client, then closes each socket with code 1000.
func (r *Room) BroadcastRoomClosed() {
	r.broadcastAll(protocol.NewRoomClosed())
	for _, c := range r.connSnapshot() {
		c.closeWithCode(websocket.CloseNormalClosure, "Room closed by owner")
	}
}

// BroadcastUserKicked sends the user_kicked terminator to a single target
// and closes their socket.
func (r *Room) BroadcastUserKicked(userID, reason string) {
	r.mu.Lock()
	c, ok := r.conns[userID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.sendTo(c, protocol.NewUserKicked(reason))
	c.closeWithCode(websocket.CloseNormalClosure, "kicked")
}

func (r *Room) connSnapshot() []*connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Room) broadcastAll(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Msg("marshaling broadcast message")
		return
	}
	for _, c := range r.connSnapshot() {
		c.enqueue(payload)
	}
}

func (r *Room) sendTo(c *connection, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Msg("marshaling message")
		return
	}
	c.enqueue(payload)
}

func (r *Room) sendErrorTo(userID, message string) {
	r.mu.Lock()
	c, ok := r.conns[userID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.sendTo(c, protocol.NewErrorMessage(message))
}
