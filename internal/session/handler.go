package session

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/anonchat/backend/internal/models"
)

// opTimeout bounds the persistence work of a single channel event.
const opTimeout = 10 * time.Second

// OnConnect implements gateway.Handler.
func (c *Core) OnConnect(connectionID string) {
	c.Register(connectionID)
}

// OnEvent implements gateway.Handler: decodes the frame and routes it to
// the matching operation. Events for one connection arrive serialized
// from its read pump, preserving per-connection ordering.
func (c *Core) OnEvent(connectionID string, env models.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch env.Event {
	case models.EventJoinRoom:
		var req models.JoinRoomRequest
		if !c.decode(connectionID, env.Data, &req) {
			return
		}
		c.Join(ctx, connectionID, req.RoomCode, req.Username)

	case models.EventSendMessage:
		var req models.SendMessageRequest
		if !c.decode(connectionID, env.Data, &req) {
			return
		}
		c.SendMessage(ctx, connectionID, req.RoomCode, req.Content)

	case models.EventTyping:
		var req models.TypingRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return // typing is best effort, no error event
		}
		c.Typing(ctx, connectionID, req.RoomCode, req.IsTyping)

	case models.EventUpdateStatus:
		var req models.UpdateStatusRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		c.UpdateStatus(ctx, connectionID, req.RoomCode, req.Status)

	case models.EventLeaveRoom:
		var req models.LeaveRoomRequest
		if !c.decode(connectionID, env.Data, &req) {
			return
		}
		c.Leave(ctx, connectionID, req.RoomCode)

	default:
		log.Printf("[Session] Unknown event %q from %s", env.Event, shortID(connectionID))
	}
}

// OnDisconnect implements gateway.Handler.
func (c *Core) OnDisconnect(connectionID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	c.Disconnect(ctx, connectionID, reason)
}

func (c *Core) decode(connectionID string, data json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(data, v); err != nil {
		c.emitError(connectionID, "Invalid request payload.")
		return false
	}
	return true
}
