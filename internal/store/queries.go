package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/anonchat/backend/internal/models"
)

func isPgError(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

// RoomSummary is the list/info view of a room without its member rows.
type RoomSummary struct {
	Code         string    `json:"roomId"`
	Name         string    `json:"name"`
	UserCount    int       `json:"userCount"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// RoomExists reports whether a room code is taken.
func (s *RoomStore) RoomExists(ctx context.Context, code string) (bool, error) {
	code = models.NormalizeRoomCode(code)

	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM rooms WHERE code = $1)", code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return exists, nil
}

// ListRooms returns room summaries ordered by recent activity.
func (s *RoomStore) ListRooms(ctx context.Context, limit, offset int) ([]RoomSummary, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.code, r.name,
		       (SELECT COUNT(*) FROM room_members m WHERE m.room_code = r.code),
		       r.message_count, r.created_at, r.last_activity
		FROM rooms r
		ORDER BY r.last_activity DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []RoomSummary
	for rows.Next() {
		var r RoomSummary
		if err := rows.Scan(&r.Code, &r.Name, &r.UserCount, &r.MessageCount,
			&r.CreatedAt, &r.LastActivity); err != nil {
			return nil, 0, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return rooms, total, nil
}

// ListMessages returns up to limit messages in chronological order.
// A non-zero before timestamp pages backwards through history.
func (s *RoomStore) ListMessages(ctx context.Context, code string, limit, offset int, before time.Time) ([]models.Message, error) {
	code = models.NormalizeRoomCode(code)

	query := `
		SELECT id, room_code, sender_username, sender_connection_id, content, kind, created_at
		FROM messages
		WHERE room_code = $1
	`
	args := []interface{}{code}
	if !before.IsZero() {
		query += " AND created_at < $2"
		args = append(args, before)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	messages, err := s.queryMessages(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// Newest-first from the index, reversed for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SearchMessages finds user messages whose content matches the query,
// newest first.
func (s *RoomStore) SearchMessages(ctx context.Context, code, search string, limit int) ([]models.Message, error) {
	code = models.NormalizeRoomCode(code)

	return s.queryMessages(ctx, `
		SELECT id, room_code, sender_username, sender_connection_id, content, kind, created_at
		FROM messages
		WHERE room_code = $1 AND kind = 'message' AND content ILIKE '%' || $2 || '%'
		ORDER BY created_at DESC
		LIMIT $3
	`, code, search, limit)
}

func (s *RoomStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RoomCode, &m.Sender.Username,
			&m.Sender.ConnectionID, &m.Content, &m.Kind, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// RoomStats summarizes a room's message history.
type RoomStats struct {
	RoomCode       string `json:"roomId"`
	TotalMessages  int    `json:"totalMessages"`
	SystemMessages int    `json:"systemMessages"`
	UniqueSenders  int    `json:"uniqueSenders"`
}

// Stats aggregates message counts for one room.
func (s *RoomStore) Stats(ctx context.Context, code string) (*RoomStats, error) {
	code = models.NormalizeRoomCode(code)

	stats := &RoomStats{RoomCode: code}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE kind = 'message'),
		       COUNT(*) FILTER (WHERE kind = 'system'),
		       COUNT(DISTINCT sender_username) FILTER (WHERE kind = 'message')
		FROM messages
		WHERE room_code = $1
	`, code).Scan(&stats.TotalMessages, &stats.SystemMessages, &stats.UniqueSenders)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}
