package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/opencoff/golang-lru"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultTTL is the default room key lifetime, refreshed on every write.
const DefaultTTL = 24 * time.Hour

// gameCacheSize bounds the process-local read-through cache sitting in
// front of GetGame; it holds a handful of rooms' worth of hot state, not
// the whole table.
const gameCacheSize = 256

// Store is the durable room store: sqlite-backed, TTL-keyed,
// namespaced into room configs, members, the current GameState, and a
// bounded chat buffer.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	logger zerolog.Logger

	gameCache lru.Cache
	gameSF    singleflight.Group
}

// Open opens (creating if absent) a sqlite database at path and runs
// pending migrations.
func Open(path string, ttl time.Duration, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer discipline, avoids SQLITE_BUSY

	cache, err := lru.NewSimple(gameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("store: building game cache: %w", err)
	}

	s := &Store{db: db, ttl: ttl, logger: logger, gameCache: cache}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: setting goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) expiresAt() int64 {
	return time.Now().Add(s.ttl).Unix()
}

// ErrNotFound is returned when a keyed record does not exist (or has
// expired its TTL).
var ErrNotFound = fmt.Errorf("store: not found")

// --- room configs ---------------------------------------------------

// CreateRoomConfig persists a brand-new room's configuration. It fails if
// a config already exists for the room id.
func (s *Store) CreateRoomConfig(ctx context.Context, cfg RoomConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("store: marshaling room config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO room_configs (room_id, join_code, data_json, expires_at) VALUES (?, ?, ?, ?)`,
		cfg.RoomID, cfg.JoinCode, data, s.expiresAt())
	if err != nil {
		return fmt.Errorf("store: creating room config %s: %w", cfg.RoomID, err)
	}
	return nil
}

// GetRoomConfigByJoinCode looks up a room by its join code, returning
// ErrNotFound if no live room carries it.
func (s *Store) GetRoomConfigByJoinCode(ctx context.Context, joinCode string) (RoomConfig, error) {
	var data []byte
	var expiresAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT data_json, expires_at FROM room_configs WHERE join_code = ?`, joinCode)
	if err := row.Scan(&data, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return RoomConfig{}, ErrNotFound
		}
		return RoomConfig{}, fmt.Errorf("store: loading room config by join code: %w", err)
	}
	if expiresAt < time.Now().Unix() {
		return RoomConfig{}, ErrNotFound
	}
	var cfg RoomConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RoomConfig{}, fmt.Errorf("store: decoding room config: %w", err)
	}
	return cfg, nil
}

// GetRoomConfig loads a room's config, returning ErrNotFound if it does
// not exist or has expired.
func (s *Store) GetRoomConfig(ctx context.Context, roomID string) (RoomConfig, error) {
	var data []byte
	var expiresAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT data_json, expires_at FROM room_configs WHERE room_id = ?`, roomID)
	if err := row.Scan(&data, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return RoomConfig{}, ErrNotFound
		}
		return RoomConfig{}, fmt.Errorf("store: loading room config %s: %w", roomID, err)
	}
	if expiresAt < time.Now().Unix() {
		return RoomConfig{}, ErrNotFound
	}
	var cfg RoomConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RoomConfig{}, fmt.Errorf("store: decoding room config %s: %w", roomID, err)
	}
	return cfg, nil
}

// PutRoomConfig overwrites a room's configuration (used for MaxPlayers
// growth and the profanity-filter toggle) and refreshes its TTL.
func (s *Store) PutRoomConfig(ctx context.Context, cfg RoomConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("store: marshaling room config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO room_configs (room_id, join_code, data_json, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET data_json = excluded.data_json, expires_at = excluded.expires_at`,
		cfg.RoomID, cfg.JoinCode, data, s.expiresAt())
	if err != nil {
		return fmt.Errorf("store: saving room config %s: %w", cfg.RoomID, err)
	}
	return nil
}

// ListRooms returns every non-expired room config, for operator tooling
// (roommonitor) that needs to enumerate rooms rather than look one up by
// id or join code.
func (s *Store) ListRooms(ctx context.Context) ([]RoomConfig, error) {
	now := time.Now().Unix()
	rows, err := s.db.QueryContext(ctx, `SELECT data_json FROM room_configs WHERE expires_at >= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("store: listing rooms: %w", err)
	}
	defer rows.Close()

	var out []RoomConfig
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("store: scanning room config: %w", err)
		}
		var cfg RoomConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("store: decoding room config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// --- membership -------------------------------------------------------

// GetMembers returns every member of a room keyed by userId.
func (s *Store) GetMembers(ctx context.Context, roomID string) (map[string]RoomMemberInfo, error) {
	now := time.Now().Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, data_json FROM room_members WHERE room_id = ? AND expires_at >= ?`, roomID, now)
	if err != nil {
		return nil, fmt.Errorf("store: listing members of %s: %w", roomID, err)
	}
	defer rows.Close()

	members := make(map[string]RoomMemberInfo)
	for rows.Next() {
		var userID string
		var data []byte
		if err := rows.Scan(&userID, &data); err != nil {
			return nil, fmt.Errorf("store: scanning member of %s: %w", roomID, err)
		}
		var m RoomMemberInfo
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("store: decoding member %s of %s: %w", userID, roomID, err)
		}
		members[userID] = m
	}
	return members, rows.Err()
}

// GetMember loads a single member record.
func (s *Store) GetMember(ctx context.Context, roomID, userID string) (RoomMemberInfo, error) {
	var data []byte
	var expiresAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT data_json, expires_at FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err := row.Scan(&data, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return RoomMemberInfo{}, ErrNotFound
		}
		return RoomMemberInfo{}, fmt.Errorf("store: loading member %s of %s: %w", userID, roomID, err)
	}
	if expiresAt < time.Now().Unix() {
		return RoomMemberInfo{}, ErrNotFound
	}
	var m RoomMemberInfo
	if err := json.Unmarshal(data, &m); err != nil {
		return RoomMemberInfo{}, fmt.Errorf("store: decoding member %s of %s: %w", userID, roomID, err)
	}
	return m, nil
}

// PutMember writes a full member record, refreshing that member row's
// TTL; other rows of the room keep their own expiry.
func (s *Store) PutMember(ctx context.Context, roomID string, m RoomMemberInfo) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("store: marshaling member %s: %w", m.UserID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, data_json, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(room_id, user_id) DO UPDATE SET data_json = excluded.data_json, expires_at = excluded.expires_at`,
		roomID, m.UserID, data, s.expiresAt())
	if err != nil {
		return fmt.Errorf("store: saving member %s of %s: %w", m.UserID, roomID, err)
	}
	return nil
}

// UpdateMemberFields applies a batch of field-level mutations atomically:
// it loads the current record, applies mutate, and writes the result back
// in the same call.
func (s *Store) UpdateMemberFields(ctx context.Context, roomID, userID string, mutate func(*RoomMemberInfo)) error {
	m, err := s.GetMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	mutate(&m)
	return s.PutMember(ctx, roomID, m)
}

// DeleteMember removes a member record.
func (s *Store) DeleteMember(ctx context.Context, roomID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return fmt.Errorf("store: deleting member %s of %s: %w", userID, roomID, err)
	}
	return nil
}

// --- game state ---------------------------------------------------------

// GetGame loads the current GameState for a room, or ErrNotFound if none
// is active. Reads are served from a process-local cache when possible;
// concurrent misses for the same room collapse into a single query via
// singleflight so a reconnect storm doesn't stampede the database. The
// cache holds encoded bytes, not live pointers, so every caller gets an
// independent GameState it may mutate and discard freely.
func (s *Store) GetGame(ctx context.Context, roomID string) (*GameState, error) {
	if v, ok := s.gameCache.Get(roomID); ok {
		return decodeGame(roomID, v.([]byte))
	}

	v, err, _ := s.gameSF.Do(roomID, func() (any, error) {
		data, err := s.loadGameBytes(ctx, roomID)
		if err != nil {
			return nil, err
		}
		s.gameCache.Add(roomID, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return decodeGame(roomID, v.([]byte))
}

func decodeGame(roomID string, data []byte) (*GameState, error) {
	var gs GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("store: decoding game %s: %w", roomID, err)
	}
	return &gs, nil
}

func (s *Store) loadGameBytes(ctx context.Context, roomID string) ([]byte, error) {
	var data []byte
	var expiresAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT data_json, expires_at FROM room_games WHERE room_id = ?`, roomID)
	if err := row.Scan(&data, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: loading game %s: %w", roomID, err)
	}
	if expiresAt < time.Now().Unix() {
		return nil, ErrNotFound
	}
	return data, nil
}

// PutGame persists a room's current GameState. The cache entry is
// invalidated before the write so a concurrent read never observes a
// stale cached value racing the write, and repopulated only after the
// write succeeds.
func (s *Store) PutGame(ctx context.Context, roomID string, gs *GameState) error {
	s.gameCache.Remove(roomID)

	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("store: marshaling game %s: %w", roomID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO room_games (room_id, data_json, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET data_json = excluded.data_json, expires_at = excluded.expires_at`,
		roomID, data, s.expiresAt())
	if err != nil {
		return fmt.Errorf("store: saving game %s: %w", roomID, err)
	}
	s.gameCache.Add(roomID, data)
	return nil
}

// DeleteGame removes a room's GameState and its cache entry. The room
// runtime keeps the end_hand state between hands and does not call it.
func (s *Store) DeleteGame(ctx context.Context, roomID string) error {
	s.gameCache.Remove(roomID)
	_, err := s.db.ExecContext(ctx, `DELETE FROM room_games WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("store: deleting game %s: %w", roomID, err)
	}
	return nil
}

// --- chat ---------------------------------------------------------------

// PushChat appends a chat message and trims the room's history to
// ChatHistoryLimit, keeping only the most recent entries.
func (s *Store) PushChat(ctx context.Context, roomID string, msg ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("store: marshaling chat message: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning chat tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_chat (room_id, data_json, created_at) VALUES (?, ?, ?)`,
		roomID, data, msg.Timestamp); err != nil {
		return fmt.Errorf("store: inserting chat message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM room_chat WHERE room_id = ? AND id NOT IN (
			SELECT id FROM room_chat WHERE room_id = ? ORDER BY id DESC LIMIT ?
		)`, roomID, roomID, ChatHistoryLimit); err != nil {
		return fmt.Errorf("store: trimming chat history: %w", err)
	}
	return tx.Commit()
}

// ListChat returns up to ChatHistoryLimit messages for a room, oldest
// first, matching the wire "history" message shape.
func (s *Store) ListChat(ctx context.Context, roomID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data_json FROM room_chat WHERE room_id = ? ORDER BY id ASC LIMIT ?`,
		roomID, ChatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("store: listing chat for %s: %w", roomID, err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("store: scanning chat message: %w", err)
		}
		var msg ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("store: decoding chat message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// --- active room index ------------------------------------------------

// ActiveRoomForUser returns the room a user currently belongs to, if any.
// The command surface uses this to enforce that a user is an active
// member of at most one room at a time, without a separate room catalog
// service.
func (s *Store) ActiveRoomForUser(ctx context.Context, userID string) (string, error) {
	var roomID string
	row := s.db.QueryRowContext(ctx, `SELECT room_id FROM user_active_room WHERE user_id = ?`, userID)
	if err := row.Scan(&roomID); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("store: loading active room for %s: %w", userID, err)
	}
	return roomID, nil
}

// SetActiveRoom records that userID is now an active member of roomID.
func (s *Store) SetActiveRoom(ctx context.Context, userID, roomID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_active_room (user_id, room_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET room_id = excluded.room_id`,
		userID, roomID)
	if err != nil {
		return fmt.Errorf("store: setting active room for %s: %w", userID, err)
	}
	return nil
}

// ClearActiveRoom removes a user's active-room record (on leave, kick, or
// room close).
func (s *Store) ClearActiveRoom(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_active_room WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("store: clearing active room for %s: %w", userID, err)
	}
	return nil
}

// --- cleanup ---------------------------------------------------------

// DeleteRoom removes every persisted key for a room: config, members,
// game state, and chat. Called when the owner closes the room.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	s.gameCache.Remove(roomID)
	for _, q := range []string{
		`DELETE FROM room_configs WHERE room_id = ?`,
		`DELETE FROM room_members WHERE room_id = ?`,
		`DELETE FROM room_games WHERE room_id = ?`,
		`DELETE FROM room_chat WHERE room_id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, q, roomID); err != nil {
			return fmt.Errorf("store: cleaning up room %s: %w", roomID, err)
		}
	}
	return nil
}
