// Package store translates session and API intents into persisted state.
// Rooms, memberships, and messages live in Postgres; every write is a
// targeted single-row statement so concurrent member updates on the same
// room never clobber each other.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/anonchat/backend/internal/models"
)

var (
	// ErrRoomNotFound is returned when a room code is unknown.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned on a room creation collision.
	ErrRoomExists = errors.New("room already exists")

	// ErrRoomFull is returned when a join would exceed the member cap.
	ErrRoomFull = errors.New("room is full")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// RoomStore persists rooms, memberships, and messages.
type RoomStore struct {
	db         *sql.DB
	maxMembers int
}

// NewRoomStore creates a store enforcing the given room capacity.
func NewRoomStore(db *sql.DB, maxMembers int) *RoomStore {
	return &RoomStore{db: db, maxMembers: maxMembers}
}

// FindRoom loads a room and its members.
func (s *RoomStore) FindRoom(ctx context.Context, code string) (*models.Room, error) {
	code = models.NormalizeRoomCode(code)

	var room models.Room
	err := s.db.QueryRowContext(ctx, `
		SELECT code, name, message_count, is_active, created_at, last_activity
		FROM rooms
		WHERE code = $1
	`, code).Scan(&room.Code, &room.Name, &room.MessageCount, &room.IsActive,
		&room.CreatedAt, &room.LastActivity)

	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query room: %w", err)
	}

	room.Members, err = s.RoomMembers(ctx, code)
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// CreateRoom creates an empty room. Fails with ErrRoomExists when the
// code is already taken; the creation path retries with a fresh code.
func (s *RoomStore) CreateRoom(ctx context.Context, code, name string) (*models.Room, error) {
	code = models.NormalizeRoomCode(code)
	if name == "" {
		name = models.DefaultRoomName
	}

	room := &models.Room{
		Code:     code,
		Name:     name,
		IsActive: true,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rooms (code, name)
		VALUES ($1, $2)
		RETURNING created_at, last_activity
	`, code, name).Scan(&room.CreatedAt, &room.LastActivity)

	if isPgError(err, pgUniqueViolation) {
		return nil, ErrRoomExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

// UpsertMember adds a member or replaces the existing record for the
// same connection, refreshing the room's last activity. The capacity
// check and the insert happen in one statement so concurrent joins
// cannot overshoot the cap.
func (s *RoomStore) UpsertMember(ctx context.Context, code string, member models.Member) error {
	code = models.NormalizeRoomCode(code)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO room_members (room_code, connection_id, username, joined_at, last_seen, is_typing, status)
		SELECT $1, $2, $3, NOW(), NOW(), FALSE, $4
		WHERE (SELECT COUNT(*) FROM room_members WHERE room_code = $1) < $5
		   OR EXISTS (SELECT 1 FROM room_members WHERE room_code = $1 AND connection_id = $2)
		ON CONFLICT (room_code, connection_id)
		DO UPDATE SET username = EXCLUDED.username, last_seen = NOW(), is_typing = FALSE, status = EXCLUDED.status
	`, code, member.ConnectionID, member.Username, member.Status, s.maxMembers)

	if isPgError(err, pgForeignKeyViolation) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRoomFull
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE rooms SET last_activity = NOW() WHERE code = $1", code); err != nil {
		return fmt.Errorf("failed to touch room activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// RemoveMember deletes the member record if present. Absence is not an
// error; disconnect paths call this unconditionally.
func (s *RoomStore) RemoveMember(ctx context.Context, code, connectionID string) error {
	code = models.NormalizeRoomCode(code)

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM room_members WHERE room_code = $1 AND connection_id = $2
	`, code, connectionID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE rooms SET last_activity = NOW() WHERE code = $1", code); err != nil {
		return fmt.Errorf("failed to touch room activity: %w", err)
	}
	return nil
}

// MemberUpdate is a partial member update. Nil fields are left alone;
// last_seen always refreshes.
type MemberUpdate struct {
	IsTyping *bool
	Status   *string
}

// TouchMember applies a partial update to one member row without reading
// the room back, so concurrent updates to other members never conflict.
func (s *RoomStore) TouchMember(ctx context.Context, code, connectionID string, update MemberUpdate) error {
	code = models.NormalizeRoomCode(code)

	set := []string{"last_seen = NOW()"}
	args := []interface{}{code, connectionID}
	idx := 3

	if update.IsTyping != nil {
		set = append(set, fmt.Sprintf("is_typing = $%d", idx))
		args = append(args, *update.IsTyping)
		idx++
	}
	if update.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", idx))
		args = append(args, *update.Status)
		idx++
	}

	query := fmt.Sprintf(
		"UPDATE room_members SET %s WHERE room_code = $1 AND connection_id = $2",
		strings.Join(set, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to touch member: %w", err)
	}
	return nil
}

// RoomMembers returns the current member set of a room.
func (s *RoomStore) RoomMembers(ctx context.Context, code string) ([]models.Member, error) {
	code = models.NormalizeRoomCode(code)

	rows, err := s.db.QueryContext(ctx, `
		SELECT connection_id, username, joined_at, last_seen, is_typing, status
		FROM room_members
		WHERE room_code = $1
		ORDER BY joined_at
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ConnectionID, &m.Username, &m.JoinedAt,
			&m.LastSeen, &m.IsTyping, &m.Status); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AppendMessage persists a message. For user messages the room's counter
// increments in the same transaction; system notices only refresh the
// activity timestamp.
func (s *RoomStore) AppendMessage(ctx context.Context, code string, sender models.Sender, content, kind string) (*models.Message, error) {
	code = models.NormalizeRoomCode(code)

	msg := &models.Message{
		ID:       uuid.New(),
		RoomCode: code,
		Sender:   sender,
		Content:  content,
		Kind:     kind,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, room_code, sender_username, sender_connection_id, content, kind)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, msg.ID, code, sender.Username, sender.ConnectionID, content, kind).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	touch := "UPDATE rooms SET last_activity = NOW() WHERE code = $1"
	if kind == models.KindMessage {
		touch = "UPDATE rooms SET message_count = message_count + 1, last_activity = NOW() WHERE code = $1"
	}
	if _, err := tx.ExecContext(ctx, touch, code); err != nil {
		return nil, fmt.Errorf("failed to update room counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}
