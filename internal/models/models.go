package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Member statuses. "Online" for presence purposes is always derived from
// LastSeen, never from this field.
const (
	StatusOnline = "online"
	StatusAway   = "away"
	StatusBusy   = "busy"
)

// Message kinds.
const (
	KindMessage = "message" // user message
	KindSystem  = "system"  // join/leave notice
)

// DefaultRoomName is assigned when a room is created without a name.
const DefaultRoomName = "Anonymous Chat Room"

// NormalizeRoomCode uppercases a room code. Applied at every boundary so
// the same room is never addressed under two spellings.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Room is the persisted room document. Members are stored in their own
// table and loaded on demand.
type Room struct {
	Code         string    `json:"roomId"`
	Name         string    `json:"name"`
	Members      []Member  `json:"users,omitempty"`
	MessageCount int       `json:"messageCount"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Member is one connection's presence record within a room.
type Member struct {
	ConnectionID string    `json:"socketId"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastSeen     time.Time `json:"lastSeen"`
	IsTyping     bool      `json:"isTyping"`
	Status       string    `json:"status"`
}

// Online reports whether the member counts as present: last seen within
// the freshness window. The stored status field is not authoritative.
func (m Member) Online(window time.Duration) bool {
	return time.Since(m.LastSeen) <= window
}

// Sender identifies who produced a message.
type Sender struct {
	Username     string `json:"username"`
	ConnectionID string `json:"socketId"`
}

// SystemSender is attached to join/leave notices.
var SystemSender = Sender{Username: "System", ConnectionID: "system"}

// Message is an append-only chat message. Never mutated after creation;
// removed only by retention cleanup.
type Message struct {
	ID        uuid.UUID `json:"id"`
	RoomCode  string    `json:"roomId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Kind      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// RosterEntry is the member view pushed to clients on every roster
// refresh. IsOnline is derived at publish time.
type RosterEntry struct {
	Username string    `json:"username"`
	IsOnline bool      `json:"isOnline"`
	JoinedAt time.Time `json:"joinedAt"`
	IsTyping bool      `json:"isTyping"`
	Status   string    `json:"status"`
}

// Roster converts members to their client-facing view.
func Roster(members []Member, presenceWindow time.Duration) []RosterEntry {
	return lo.Map(members, func(m Member, _ int) RosterEntry {
		return RosterEntry{
			Username: m.Username,
			IsOnline: m.Online(presenceWindow),
			JoinedAt: m.JoinedAt,
			IsTyping: m.IsTyping,
			Status:   m.Status,
		}
	})
}
