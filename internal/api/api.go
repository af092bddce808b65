// Package api exposes the HTTP surface: room management, message
// history, maintenance triggers, and the WebSocket upgrade endpoint.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/anonchat/backend/internal/db"
	"github.com/anonchat/backend/internal/gateway"
	"github.com/anonchat/backend/internal/invite"
	"github.com/anonchat/backend/internal/janitor"
	"github.com/anonchat/backend/internal/ratelimit"
	"github.com/anonchat/backend/internal/store"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	db             *db.DB
	store          *store.RoomStore
	gateway        *gateway.Gateway
	invites        *invite.Service
	janitor        *janitor.Janitor
	limiter        *ratelimit.Limiter
	corsOrigin     string
	presenceWindow time.Duration
}

// NewServer wires the handler dependencies together.
func NewServer(database *db.DB, roomStore *store.RoomStore, gw *gateway.Gateway,
	invites *invite.Service, jan *janitor.Janitor, limiter *ratelimit.Limiter,
	corsOrigin string, presenceWindow time.Duration) *Server {
	return &Server{
		db:             database,
		store:          roomStore,
		gateway:        gw,
		invites:        invites,
		janitor:        jan,
		limiter:        limiter,
		corsOrigin:     corsOrigin,
		presenceWindow: presenceWindow,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.corsMiddleware)
	router.Use(s.limiter.Middleware)

	// Handle OPTIONS preflight requests for all routes
	router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Health check
	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Room routes
	router.HandleFunc("/api/rooms", s.handleCreateRoom).Methods("POST")
	router.HandleFunc("/api/rooms", s.handleListRooms).Methods("GET")
	router.HandleFunc("/api/rooms/cleanup", s.handleCleanupRooms).Methods("POST")
	router.HandleFunc("/api/rooms/{code}", s.handleGetRoom).Methods("GET")
	router.HandleFunc("/api/rooms/{code}/exists", s.handleRoomExists).Methods("GET")
	router.HandleFunc("/api/rooms/{code}/users", s.handleRoomUsers).Methods("GET")
	router.HandleFunc("/api/rooms/{code}/invite", s.handleInvite).Methods("POST")

	// Message routes
	router.HandleFunc("/api/messages/cleanup", s.handleCleanupMessages).Methods("POST")
	router.HandleFunc("/api/messages/{code}", s.handleListMessages).Methods("GET")
	router.HandleFunc("/api/messages/{code}/search", s.handleSearchMessages).Methods("GET")
	router.HandleFunc("/api/messages/{code}/stats", s.handleMessageStats).Methods("GET")

	// Real-time channel
	router.HandleFunc("/ws", s.gateway.ServeWS).Methods("GET")

	return router
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.Health(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unhealthy")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
