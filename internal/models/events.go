package models

import "encoding/json"

// Channel event names, client to server.
const (
	EventJoinRoom     = "join-room"
	EventSendMessage  = "send-message"
	EventTyping       = "typing"
	EventUpdateStatus = "update-status"
	EventLeaveRoom    = "leave-room"
)

// Channel event names, server to client.
const (
	EventJoinedRoom    = "joined-room"
	EventLeftRoom      = "left-room"
	EventNewMessage    = "new-message"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventRosterUpdated = "roster-updated"
	EventUserTyping    = "user-typing"
	EventUserStatus    = "user-status-updated"
	EventError         = "error"
)

// Envelope wraps every frame on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound payloads.

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username,omitempty"`
}

type SendMessageRequest struct {
	RoomCode string `json:"roomCode"`
	Content  string `json:"content"`
}

type TypingRequest struct {
	RoomCode string `json:"roomCode"`
	IsTyping bool   `json:"isTyping"`
}

type UpdateStatusRequest struct {
	RoomCode string `json:"roomCode"`
	Status   string `json:"status"`
}

type LeaveRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

// Outbound payloads.

type JoinedRoomEvent struct {
	RoomCode string        `json:"roomCode"`
	Username string        `json:"username"`
	Members  []RosterEntry `json:"members"`
}

type LeftRoomEvent struct {
	RoomCode string `json:"roomCode"`
}

type NewMessageEvent struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    Sender `json:"sender"`
	Kind      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

type PresenceEvent struct {
	Username      string `json:"username"`
	SystemMessage string `json:"systemMessage"`
}

type RosterUpdatedEvent struct {
	Members []RosterEntry `json:"members"`
}

type UserTypingEvent struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type UserStatusEvent struct {
	Username string `json:"username"`
	Status   string `json:"status"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// NewMessagePayload converts a persisted message to its wire form.
func NewMessagePayload(msg Message) NewMessageEvent {
	return NewMessageEvent{
		ID:        msg.ID.String(),
		Content:   msg.Content,
		Sender:    msg.Sender,
		Kind:      msg.Kind,
		CreatedAt: msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
