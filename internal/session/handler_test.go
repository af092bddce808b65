package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anonchat/backend/internal/models"
)

func TestOnEventDispatchesJoin(t *testing.T) {
	st := newFakeStore()
	st.addRoom("ABC123")
	em := newFakeEmitter()
	core := newTestCore(st, em)

	core.OnConnect("conn-1")
	data, _ := json.Marshal(models.JoinRoomRequest{RoomCode: "ABC123", Username: "CleverFox"})
	core.OnEvent("conn-1", models.Envelope{Event: models.EventJoinRoom, Data: data})

	_, ok := st.member("ABC123", "conn-1")
	require.True(t, ok)
}

func TestOnEventMalformedPayload(t *testing.T) {
	st := newFakeStore()
	em := newFakeEmitter()
	core := newTestCore(st, em)

	core.OnConnect("conn-1")
	core.OnEvent("conn-1", models.Envelope{Event: models.EventJoinRoom, Data: json.RawMessage(`{`)})

	errs := em.unicastEvents("conn-1", models.EventError)
	require.Len(t, errs, 1)
	require.Equal(t, "Invalid request payload.", errs[0].data.(models.ErrorEvent).Message)
}

func TestOnEventMalformedTypingIsSilent(t *testing.T) {
	st := newFakeStore()
	em := newFakeEmitter()
	core := newTestCore(st, em)

	core.OnConnect("conn-1")
	core.OnEvent("conn-1", models.Envelope{Event: models.EventTyping, Data: json.RawMessage(`{`)})

	require.Empty(t, em.unicast)
	require.Empty(t, em.roomWide)
}

func TestOnEventUnknownEvent(t *testing.T) {
	st := newFakeStore()
	em := newFakeEmitter()
	core := newTestCore(st, em)

	core.OnConnect("conn-1")
	core.OnEvent("conn-1", models.Envelope{Event: "time-travel", Data: json.RawMessage(`{}`)})

	require.Empty(t, em.unicast)
}

func TestOnDisconnectRemovesConnection(t *testing.T) {
	st := newFakeStore()
	st.addRoom("ABC123")
	em := newFakeEmitter()
	core := newTestCore(st, em)

	core.OnConnect("conn-1")
	data, _ := json.Marshal(models.JoinRoomRequest{RoomCode: "ABC123"})
	core.OnEvent("conn-1", models.Envelope{Event: models.EventJoinRoom, Data: data})
	core.OnDisconnect("conn-1", "read closed")

	_, ok := st.member("ABC123", "conn-1")
	require.False(t, ok)
}
