package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoomCode(t *testing.T) {
	require.Equal(t, "ABC123", NormalizeRoomCode("abc123"))
	require.Equal(t, "ABC123", NormalizeRoomCode("  aBc123  "))

	// Normalization is idempotent.
	once := NormalizeRoomCode("xyz789")
	require.Equal(t, once, NormalizeRoomCode(once))
}

func TestMemberOnlineDerivedFromLastSeen(t *testing.T) {
	window := 5 * time.Minute

	fresh := Member{LastSeen: time.Now(), Status: StatusBusy}
	require.True(t, fresh.Online(window))

	// The stored status field never overrides a lapsed presence.
	stale := Member{LastSeen: time.Now().Add(-10 * time.Minute), Status: StatusOnline}
	require.False(t, stale.Online(window))
}

func TestRoster(t *testing.T) {
	now := time.Now()
	members := []Member{
		{ConnectionID: "a", Username: "CleverFox", JoinedAt: now, LastSeen: now, IsTyping: true, Status: StatusOnline},
		{ConnectionID: "b", Username: "SwiftOwl", JoinedAt: now, LastSeen: now.Add(-time.Hour), Status: StatusAway},
	}

	roster := Roster(members, 5*time.Minute)
	require.Len(t, roster, 2)

	require.Equal(t, "CleverFox", roster[0].Username)
	require.True(t, roster[0].IsOnline)
	require.True(t, roster[0].IsTyping)

	require.Equal(t, "SwiftOwl", roster[1].Username)
	require.False(t, roster[1].IsOnline)
	require.Equal(t, StatusAway, roster[1].Status)
}

func TestRosterEmpty(t *testing.T) {
	require.Empty(t, Roster(nil, time.Minute))
}

func TestNewMessagePayload(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 30, 45, 123_000_000, time.UTC)
	msg := Message{
		ID:        uuid.New(),
		RoomCode:  "ABC123",
		Sender:    Sender{Username: "CleverFox", ConnectionID: "conn-1"},
		Content:   "hello",
		Kind:      KindMessage,
		CreatedAt: created,
	}

	payload := NewMessagePayload(msg)
	require.Equal(t, msg.ID.String(), payload.ID)
	require.Equal(t, "hello", payload.Content)
	require.Equal(t, KindMessage, payload.Kind)
	require.Equal(t, "2025-06-01T12:30:45.123Z", payload.CreatedAt)
}
