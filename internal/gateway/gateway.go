// Package gateway owns the WebSocket transport: connection upgrade,
// read/write pumps, and room-addressed fan-out. Session logic lives
// behind the Handler interface so the core never touches a socket.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/anonchat/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // LAN deployment; the app is anonymous by design
	},
}

// Handler receives decoded frames and lifecycle callbacks. Calls for one
// connection arrive in order from its read pump.
type Handler interface {
	OnConnect(connectionID string)
	OnEvent(connectionID string, env models.Envelope)
	OnDisconnect(connectionID string, reason string)
}

// Client is one live WebSocket connection.
type Client struct {
	ID      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// Gateway tracks live clients and their room groups.
type Gateway struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]*Client

	handler     Handler
	inboundRate rate.Limit
	inboundBurst int
}

// New creates a gateway. Each connection gets its own inbound token
// bucket; frames over the budget are dropped before they reach the core.
func New(eventsPerSecond float64, burst int) *Gateway {
	return &Gateway{
		clients:      make(map[string]*Client),
		groups:       make(map[string]map[string]*Client),
		inboundRate:  rate.Limit(eventsPerSecond),
		inboundBurst: burst,
	}
}

// SetHandler wires the session core in. Must be called before ServeWS.
func (g *Gateway) SetHandler(h Handler) {
	g.handler = h
}

// ServeWS upgrades the request and starts the connection's pumps.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(g.inboundRate, g.inboundBurst),
	}

	g.mu.Lock()
	g.clients[client.ID] = client
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s from %s", client.ID[:8], r.RemoteAddr)

	if g.handler != nil {
		g.handler.OnConnect(client.ID)
	}

	go g.writePump(client)
	go g.readPump(client)
}

// JoinGroup adds a connection to a room group.
func (g *Gateway) JoinGroup(roomCode, connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	client, ok := g.clients[connectionID]
	if !ok {
		return
	}
	if g.groups[roomCode] == nil {
		g.groups[roomCode] = make(map[string]*Client)
	}
	g.groups[roomCode][connectionID] = client
}

// LeaveGroup removes a connection from a room group.
func (g *Gateway) LeaveGroup(roomCode, connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeFromGroup(roomCode, connectionID)
}

func (g *Gateway) removeFromGroup(roomCode, connectionID string) {
	if group, ok := g.groups[roomCode]; ok {
		delete(group, connectionID)
		if len(group) == 0 {
			delete(g.groups, roomCode)
		}
	}
}

// EmitTo sends an event to one connection.
func (g *Gateway) EmitTo(connectionID, event string, data interface{}) {
	g.mu.RLock()
	client, ok := g.clients[connectionID]
	g.mu.RUnlock()
	if !ok {
		return
	}

	frame, err := marshalFrame(event, data)
	if err != nil {
		log.Printf("[Gateway] Failed to marshal %s: %v", event, err)
		return
	}
	g.deliver(client, frame)
}

// EmitToRoom sends an event to every connection in a room group.
func (g *Gateway) EmitToRoom(roomCode, event string, data interface{}) {
	g.emitGroup(roomCode, "", event, data)
}

// EmitToRoomExcept sends an event to the room group minus one connection.
func (g *Gateway) EmitToRoomExcept(roomCode, exceptID, event string, data interface{}) {
	g.emitGroup(roomCode, exceptID, event, data)
}

func (g *Gateway) emitGroup(roomCode, exceptID, event string, data interface{}) {
	frame, err := marshalFrame(event, data)
	if err != nil {
		log.Printf("[Gateway] Failed to marshal %s: %v", event, err)
		return
	}

	g.mu.RLock()
	targets := make([]*Client, 0, len(g.groups[roomCode]))
	for id, c := range g.groups[roomCode] {
		if id != exceptID {
			targets = append(targets, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range targets {
		g.deliver(c, frame)
	}
}

// deliver pushes a frame onto the client's send queue. A full queue means
// a consumer that stopped reading; drop the frame rather than block the
// fan-out.
func (g *Gateway) deliver(client *Client, frame []byte) {
	select {
	case client.send <- frame:
	default:
		id := client.ID
		if len(id) > 8 {
			id = id[:8]
		}
		log.Printf("[Gateway] Send queue full, dropping frame for %s", id)
	}
}

func marshalFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Event: event, Data: raw})
}

func (g *Gateway) readPump(client *Client) {
	defer func() {
		g.drop(client, "read closed")
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Gateway] Read error for %s: %v", client.ID[:8], err)
			}
			return
		}

		if !client.limiter.Allow() {
			log.Printf("[Gateway] Rate limit exceeded for %s, dropping frame", client.ID[:8])
			continue
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("[Gateway] Malformed frame from %s: %v", client.ID[:8], err)
			continue
		}

		if g.handler != nil {
			g.handler.OnEvent(client.ID, env)
		}
	}
}

func (g *Gateway) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drop removes a client from the registry and every group, then notifies
// the handler. Safe to call once per connection; the registry check keeps
// duplicate closes out.
func (g *Gateway) drop(client *Client, reason string) {
	g.mu.Lock()
	if _, ok := g.clients[client.ID]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, client.ID)
	for code := range g.groups {
		g.removeFromGroup(code, client.ID)
	}
	close(client.send)
	g.mu.Unlock()

	id := client.ID
	if len(id) > 8 {
		id = id[:8]
	}
	log.Printf("[Gateway] Client disconnected: %s (%s)", id, reason)

	if g.handler != nil {
		g.handler.OnDisconnect(client.ID, reason)
	}
}
