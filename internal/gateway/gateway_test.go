package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anonchat/backend/internal/models"
)

func addClient(g *Gateway, id string, queue int) *Client {
	c := &Client{ID: id, send: make(chan []byte, queue)}
	g.mu.Lock()
	g.clients[id] = c
	g.mu.Unlock()
	return c
}

func received(t *testing.T, c *Client) models.Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env models.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("no frame queued")
		return models.Envelope{}
	}
}

func TestEmitToQueuesFrame(t *testing.T) {
	g := New(10, 20)
	c := addClient(g, "conn-1", 4)

	g.EmitTo("conn-1", models.EventError, models.ErrorEvent{Message: "nope"})

	env := received(t, c)
	require.Equal(t, models.EventError, env.Event)

	var payload models.ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Equal(t, "nope", payload.Message)
}

func TestEmitToUnknownConnectionIsNoop(t *testing.T) {
	g := New(10, 20)
	g.EmitTo("ghost", models.EventError, models.ErrorEvent{Message: "nope"})
}

func TestRoomFanOut(t *testing.T) {
	g := New(10, 20)
	a := addClient(g, "a", 4)
	b := addClient(g, "b", 4)
	c := addClient(g, "c", 4)

	g.JoinGroup("ABC123", "a")
	g.JoinGroup("ABC123", "b")
	// c never joins the group.

	g.EmitToRoom("ABC123", models.EventRosterUpdated, models.RosterUpdatedEvent{})

	require.Len(t, a.send, 1)
	require.Len(t, b.send, 1)
	require.Empty(t, c.send)
}

func TestEmitToRoomExceptSkipsSender(t *testing.T) {
	g := New(10, 20)
	a := addClient(g, "a", 4)
	b := addClient(g, "b", 4)
	g.JoinGroup("ABC123", "a")
	g.JoinGroup("ABC123", "b")

	g.EmitToRoomExcept("ABC123", "a", models.EventUserTyping, models.UserTypingEvent{Username: "x", IsTyping: true})

	require.Empty(t, a.send)
	require.Len(t, b.send, 1)
}

func TestLeaveGroupStopsDelivery(t *testing.T) {
	g := New(10, 20)
	a := addClient(g, "a", 4)
	g.JoinGroup("ABC123", "a")
	g.LeaveGroup("ABC123", "a")

	g.EmitToRoom("ABC123", models.EventRosterUpdated, models.RosterUpdatedEvent{})
	require.Empty(t, a.send)
}

func TestDeliverDropsOnFullQueue(t *testing.T) {
	g := New(10, 20)
	a := addClient(g, "a", 1)
	g.JoinGroup("ABC123", "a")

	// Second frame must be dropped, not block the fan-out.
	g.EmitToRoom("ABC123", models.EventRosterUpdated, models.RosterUpdatedEvent{})
	g.EmitToRoom("ABC123", models.EventRosterUpdated, models.RosterUpdatedEvent{})

	require.Len(t, a.send, 1)
}

func TestDropIsIdempotent(t *testing.T) {
	g := New(10, 20)
	a := addClient(g, "a", 4)
	g.JoinGroup("ABC123", "a")

	g.drop(a, "test")
	g.drop(a, "test")

	g.mu.RLock()
	_, tracked := g.clients["a"]
	_, grouped := g.groups["ABC123"]
	g.mu.RUnlock()
	require.False(t, tracked)
	require.False(t, grouped)
}
