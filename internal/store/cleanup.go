package store

import (
	"context"
	"fmt"
	"time"

	"github.com/anonchat/backend/internal/models"
)

// RemoveStaleMembers deletes members whose last_seen predates the cutoff
// and returns the distinct room codes that lost members, so callers can
// push a fresh roster to each. Compensates for connections that never
// reached the disconnect handler.
func (s *RoomStore) RemoveStaleMembers(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM room_members
		WHERE last_seen < $1
		RETURNING room_code
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to remove stale members: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan room code: %w", err)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes, rows.Err()
}

// DeleteIdleRooms removes rooms that have had no members and no activity
// since the cutoff. Their messages go with them.
func (s *RoomStore) DeleteIdleRooms(ctx context.Context, idleBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rooms
		WHERE last_activity < $1
		  AND NOT EXISTS (SELECT 1 FROM room_members m WHERE m.room_code = rooms.code)
	`, idleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle rooms: %w", err)
	}
	return res.RowsAffected()
}

// MessagesOlderThan returns every message past the retention cutoff, for
// archival before deletion.
func (s *RoomStore) MessagesOlderThan(ctx context.Context, cutoff time.Time) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT id, room_code, sender_username, sender_connection_id, content, kind, created_at
		FROM messages
		WHERE created_at < $1
		ORDER BY room_code, created_at
	`, cutoff)
}

// DeleteOldMessages removes messages past the retention cutoff.
func (s *RoomStore) DeleteOldMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old messages: %w", err)
	}
	return res.RowsAffected()
}
