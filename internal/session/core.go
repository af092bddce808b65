// Package session is the in-memory orchestrator of room membership:
// join/leave/disconnect transitions, username de-duplication, typing
// timers, and the fan-out of presence and messages. It is the only
// writer of membership state, both transient and persisted.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/anonchat/backend/internal/models"
	"github.com/anonchat/backend/internal/store"
	"github.com/anonchat/backend/internal/validate"
)

// Store is the persistence surface the core needs. *store.RoomStore
// satisfies it; tests use an in-memory fake.
type Store interface {
	FindRoom(ctx context.Context, code string) (*models.Room, error)
	UpsertMember(ctx context.Context, code string, member models.Member) error
	RemoveMember(ctx context.Context, code, connectionID string) error
	TouchMember(ctx context.Context, code, connectionID string, update store.MemberUpdate) error
	RoomMembers(ctx context.Context, code string) ([]models.Member, error)
	AppendMessage(ctx context.Context, code string, sender models.Sender, content, kind string) (*models.Message, error)
	RemoveStaleMembers(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Emitter is the broadcast surface the core needs. *gateway.Gateway
// satisfies it.
type Emitter interface {
	EmitTo(connectionID, event string, data interface{})
	EmitToRoom(roomCode, event string, data interface{})
	EmitToRoomExcept(roomCode, exceptID, event string, data interface{})
	JoinGroup(roomCode, connectionID string)
	LeaveGroup(roomCode, connectionID string)
}

// Config carries the core's timing knobs.
type Config struct {
	// TypingTimeout clears a typing flag that was never followed up.
	TypingTimeout time.Duration

	// PresenceWindow is how recently a member must have been seen to
	// count as online.
	PresenceWindow time.Duration
}

// connection is the transient per-connection record. Owned exclusively
// by the core; never persisted.
type connection struct {
	username    string
	roomCode    string // empty when not in a room
	joinedAt    time.Time
	typingTimer *time.Timer
}

// Core tracks live connections and drives every membership transition.
type Core struct {
	mu    sync.Mutex
	conns map[string]*connection

	store   Store
	emitter Emitter
	cfg     Config

	// generateName is swappable in tests.
	generateName func() string
}

// New creates a session core.
func New(st Store, em Emitter, cfg Config, generateName func() string) *Core {
	return &Core{
		conns:        make(map[string]*connection),
		store:        st,
		emitter:      em,
		cfg:          cfg,
		generateName: generateName,
	}
}

// Register creates the transient record for a freshly opened connection.
func (c *Core) Register(connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.conns[connectionID]; !ok {
		c.conns[connectionID] = &connection{}
	}
}

// Join moves a connection into a room, leaving any previous room first.
// A username collision regenerates the name; it never blocks the join.
func (c *Core) Join(ctx context.Context, connectionID, roomCode, requestedName string) {
	if err := validate.RoomCode(roomCode); err != nil {
		c.emitError(connectionID, err.Error())
		return
	}
	roomCode = models.NormalizeRoomCode(roomCode)

	// A connection is in at most one room; joining elsewhere leaves the
	// old room with full side effects.
	c.mu.Lock()
	conn, ok := c.conns[connectionID]
	if !ok {
		conn = &connection{}
		c.conns[connectionID] = conn
	}
	previous := conn.roomCode
	c.mu.Unlock()

	if previous != "" && previous != roomCode {
		c.leaveCurrentRoom(ctx, connectionID)
	}

	name := strings.TrimSpace(requestedName)
	if name == "" {
		name = c.generateName()
	}
	if err := validate.Username(name); err != nil {
		c.emitError(connectionID, err.Error())
		return
	}

	room, err := c.store.FindRoom(ctx, roomCode)
	if errors.Is(err, store.ErrRoomNotFound) {
		c.emitError(connectionID, "Room not found. Please check the room code.")
		return
	}
	if err != nil {
		log.Printf("[Session] Join lookup failed for %s: %v", roomCode, err)
		c.emitError(connectionID, "Failed to join room. Please try again.")
		return
	}

	name = c.resolveCollision(room.Members, connectionID, name)

	now := time.Now()
	member := models.Member{
		ConnectionID: connectionID,
		Username:     name,
		JoinedAt:     now,
		LastSeen:     now,
		Status:       models.StatusOnline,
	}

	if err := c.store.UpsertMember(ctx, roomCode, member); err != nil {
		switch {
		case errors.Is(err, store.ErrRoomFull):
			c.emitError(connectionID, "Room is full.")
		case errors.Is(err, store.ErrRoomNotFound):
			c.emitError(connectionID, "Room not found. Please check the room code.")
		default:
			log.Printf("[Session] Join persist failed for %s: %v", roomCode, err)
			c.emitError(connectionID, "Failed to join room. Please try again.")
		}
		return
	}

	c.mu.Lock()
	conn.username = name
	conn.roomCode = roomCode
	conn.joinedAt = now
	if conn.typingTimer != nil {
		conn.typingTimer.Stop()
		conn.typingTimer = nil
	}
	c.mu.Unlock()

	c.emitter.JoinGroup(roomCode, connectionID)

	systemMessage := name + " joined the room"
	notice, err := c.store.AppendMessage(ctx, roomCode, models.SystemSender, systemMessage, models.KindSystem)
	if err != nil {
		log.Printf("[Session] Failed to persist join notice for %s: %v", roomCode, err)
	}

	roster := c.roster(ctx, roomCode)

	c.emitter.EmitTo(connectionID, models.EventJoinedRoom, models.JoinedRoomEvent{
		RoomCode: roomCode,
		Username: name,
		Members:  roster,
	})
	if notice != nil {
		c.emitter.EmitToRoomExcept(roomCode, connectionID, models.EventNewMessage, models.NewMessagePayload(*notice))
	}
	c.emitter.EmitToRoomExcept(roomCode, connectionID, models.EventUserJoined, models.PresenceEvent{
		Username:      name,
		SystemMessage: systemMessage,
	})
	// Full roster to everyone, joiner included, so the unicast above
	// cannot leave a racing mutation unseen.
	c.emitter.EmitToRoom(roomCode, models.EventRosterUpdated, models.RosterUpdatedEvent{Members: roster})

	log.Printf("[Session] %s joined room %s as %q (%d members)", shortID(connectionID), roomCode, name, len(roster))
}

// SendMessage validates, persists, and fans out a user message. The
// broadcast includes the sender; there is no local echo.
func (c *Core) SendMessage(ctx context.Context, connectionID, roomCode, content string) {
	roomCode = models.NormalizeRoomCode(roomCode)

	username, ok := c.memberOf(connectionID, roomCode)
	if !ok {
		c.emitError(connectionID, "You are not in this room.")
		return
	}

	if err := validate.MessageContent(content); err != nil {
		c.emitError(connectionID, err.Error())
		return
	}

	sender := models.Sender{Username: username, ConnectionID: connectionID}
	msg, err := c.store.AppendMessage(ctx, roomCode, sender, strings.TrimSpace(content), models.KindMessage)
	if err != nil {
		log.Printf("[Session] Failed to persist message in %s: %v", roomCode, err)
		c.emitError(connectionID, "Failed to send message. Please try again.")
		return
	}

	if err := c.store.TouchMember(ctx, roomCode, connectionID, store.MemberUpdate{}); err != nil {
		log.Printf("[Session] Failed to refresh last-seen for %s: %v", shortID(connectionID), err)
	}

	c.emitter.EmitToRoom(roomCode, models.EventNewMessage, models.NewMessagePayload(*msg))
}

// Typing records and broadcasts a typing flag. Best effort: a failed
// precondition is silently ignored. A typing=true arms (or re-arms) the
// auto-clear timer for this connection.
func (c *Core) Typing(ctx context.Context, connectionID, roomCode string, isTyping bool) {
	roomCode = models.NormalizeRoomCode(roomCode)

	username, ok := c.memberOf(connectionID, roomCode)
	if !ok {
		return
	}

	typing := isTyping
	if err := c.store.TouchMember(ctx, roomCode, connectionID, store.MemberUpdate{IsTyping: &typing}); err != nil {
		log.Printf("[Session] Failed to persist typing state for %s: %v", shortID(connectionID), err)
	}

	c.emitter.EmitToRoomExcept(roomCode, connectionID, models.EventUserTyping, models.UserTypingEvent{
		Username: username,
		IsTyping: isTyping,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[connectionID]
	if !ok {
		return
	}
	if isTyping {
		if conn.typingTimer != nil {
			conn.typingTimer.Reset(c.cfg.TypingTimeout)
		} else {
			conn.typingTimer = time.AfterFunc(c.cfg.TypingTimeout, func() {
				c.clearTyping(connectionID)
			})
		}
	} else if conn.typingTimer != nil {
		conn.typingTimer.Stop()
		conn.typingTimer = nil
	}
}

// clearTyping fires when a typing flag was never followed up. It checks
// the live registry first: the connection may have left or disconnected
// since the timer was armed.
func (c *Core) clearTyping(connectionID string) {
	c.mu.Lock()
	conn, ok := c.conns[connectionID]
	if !ok || conn.roomCode == "" {
		c.mu.Unlock()
		return
	}
	roomCode, username := conn.roomCode, conn.username
	conn.typingTimer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	typing := false
	if err := c.store.TouchMember(ctx, roomCode, connectionID, store.MemberUpdate{IsTyping: &typing}); err != nil {
		log.Printf("[Session] Failed to auto-clear typing for %s: %v", shortID(connectionID), err)
	}

	c.emitter.EmitToRoomExcept(roomCode, connectionID, models.EventUserTyping, models.UserTypingEvent{
		Username: username,
		IsTyping: false,
	})
}

// UpdateStatus persists and broadcasts a member's status. Best effort,
// like typing.
func (c *Core) UpdateStatus(ctx context.Context, connectionID, roomCode, status string) {
	roomCode = models.NormalizeRoomCode(roomCode)

	username, ok := c.memberOf(connectionID, roomCode)
	if !ok {
		return
	}
	if err := validate.Status(status); err != nil {
		c.emitError(connectionID, err.Error())
		return
	}

	if err := c.store.TouchMember(ctx, roomCode, connectionID, store.MemberUpdate{Status: &status}); err != nil {
		log.Printf("[Session] Failed to persist status for %s: %v", shortID(connectionID), err)
	}

	c.emitter.EmitToRoomExcept(roomCode, connectionID, models.EventUserStatus, models.UserStatusEvent{
		Username: username,
		Status:   status,
	})
}

// Leave handles an explicit leave-room request.
func (c *Core) Leave(ctx context.Context, connectionID, roomCode string) {
	roomCode = models.NormalizeRoomCode(roomCode)

	if _, ok := c.memberOf(connectionID, roomCode); !ok {
		c.emitError(connectionID, "You are not in this room.")
		return
	}

	c.leaveCurrentRoom(ctx, connectionID)
	c.emitter.EmitTo(connectionID, models.EventLeftRoom, models.LeftRoomEvent{RoomCode: roomCode})
}

// Disconnect tears down a connection. Runs leave side effects when the
// connection was in a room, then removes the transient record. Safe to
// call repeatedly, and safe when the join never completed.
func (c *Core) Disconnect(ctx context.Context, connectionID, reason string) {
	c.leaveCurrentRoom(ctx, connectionID)

	c.mu.Lock()
	delete(c.conns, connectionID)
	c.mu.Unlock()

	log.Printf("[Session] Connection %s removed (%s)", shortID(connectionID), reason)
}

// leaveCurrentRoom runs the full leave side effects for whatever room the
// connection is tracked in. No-op when it is not in one.
func (c *Core) leaveCurrentRoom(ctx context.Context, connectionID string) {
	c.mu.Lock()
	conn, ok := c.conns[connectionID]
	if !ok || conn.roomCode == "" {
		c.mu.Unlock()
		return
	}
	roomCode, username := conn.roomCode, conn.username
	if conn.typingTimer != nil {
		conn.typingTimer.Stop()
		conn.typingTimer = nil
	}
	conn.roomCode = ""
	c.mu.Unlock()

	c.emitter.LeaveGroup(roomCode, connectionID)

	if err := c.store.RemoveMember(ctx, roomCode, connectionID); err != nil {
		log.Printf("[Session] Failed to remove member %s from %s: %v", shortID(connectionID), roomCode, err)
	}

	systemMessage := username + " left the room"
	notice, err := c.store.AppendMessage(ctx, roomCode, models.SystemSender, systemMessage, models.KindSystem)
	if err != nil {
		log.Printf("[Session] Failed to persist leave notice for %s: %v", roomCode, err)
	}

	// The connection already left the group, so room-wide emits reach
	// only the remaining members.
	if notice != nil {
		c.emitter.EmitToRoom(roomCode, models.EventNewMessage, models.NewMessagePayload(*notice))
	}
	c.emitter.EmitToRoom(roomCode, models.EventUserLeft, models.PresenceEvent{
		Username:      username,
		SystemMessage: systemMessage,
	})
	c.emitter.EmitToRoom(roomCode, models.EventRosterUpdated, models.RosterUpdatedEvent{
		Members: c.roster(ctx, roomCode),
	})

	log.Printf("[Session] %s left room %s", username, roomCode)
}

// SweepStale drops members whose last-seen fell outside the presence
// window and refreshes the roster of every affected room. Called on a
// timer; covers disconnects that never reached the handler.
func (c *Core) SweepStale(ctx context.Context) {
	cutoff := time.Now().Add(-c.cfg.PresenceWindow)

	codes, err := c.store.RemoveStaleMembers(ctx, cutoff)
	if err != nil {
		log.Printf("[Session] Stale member sweep failed: %v", err)
		return
	}
	if len(codes) == 0 {
		return
	}

	for _, code := range codes {
		c.emitter.EmitToRoom(code, models.EventRosterUpdated, models.RosterUpdatedEvent{
			Members: c.roster(ctx, code),
		})
	}
	log.Printf("[Session] Swept stale members from %d rooms", len(codes))
}

// memberOf returns the tracked username when the connection's current
// room matches, and reports whether it did.
func (c *Core) memberOf(connectionID, roomCode string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[connectionID]
	if !ok || conn.roomCode != roomCode {
		return "", false
	}
	return conn.username, true
}

// resolveCollision regenerates the name while another connection in the
// room holds it, comparing case-insensitively. The generator space is
// large enough that a handful of attempts always lands.
func (c *Core) resolveCollision(members []models.Member, connectionID, name string) string {
	const attempts = 10
	for i := 0; i < attempts && nameTaken(members, connectionID, name); i++ {
		name = c.generateName()
	}
	return name
}

func nameTaken(members []models.Member, connectionID, name string) bool {
	for _, m := range members {
		if m.ConnectionID != connectionID && strings.EqualFold(m.Username, name) {
			return true
		}
	}
	return false
}

// roster loads the current member set as its client-facing view. A load
// failure yields an empty roster; the next refresh repairs it.
func (c *Core) roster(ctx context.Context, roomCode string) []models.RosterEntry {
	members, err := c.store.RoomMembers(ctx, roomCode)
	if err != nil {
		log.Printf("[Session] Failed to load roster for %s: %v", roomCode, err)
		return []models.RosterEntry{}
	}
	return models.Roster(members, c.cfg.PresenceWindow)
}

func (c *Core) emitError(connectionID, message string) {
	c.emitter.EmitTo(connectionID, models.EventError, models.ErrorEvent{Message: message})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
