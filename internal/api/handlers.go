package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/anonchat/backend/internal/identity"
	"github.com/anonchat/backend/internal/invite"
	"github.com/anonchat/backend/internal/models"
	"github.com/anonchat/backend/internal/store"
	"github.com/anonchat/backend/internal/validate"
)

// createRoomAttempts bounds code regeneration on duplicate-key retries.
const createRoomAttempts = 5

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"omitempty,roomname"`
	}
	// An empty body creates an unnamed room.
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validate.ErrRoomNameTooLong.Error())
		return
	}

	for attempt := 0; attempt < createRoomAttempts; attempt++ {
		room, err := s.store.CreateRoom(r.Context(), identity.RoomCode(), req.Name)
		if errors.Is(err, store.ErrRoomExists) {
			continue
		}
		if err != nil {
			log.Printf("[API] Failed to create room: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to create room. Please try again.")
			return
		}
		writeJSON(w, http.StatusCreated, room)
		return
	}

	writeError(w, http.StatusInternalServerError, "Failed to create room. Please try again.")
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize, maxPageSize)
	offset := queryInt(r, "skip", 0, 1<<30)

	rooms, total, err := s.store.ListRooms(r.Context(), limit, offset)
	if err != nil {
		log.Printf("[API] Failed to list rooms: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list rooms.")
		return
	}
	if rooms == nil {
		rooms = []store.RoomSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"total": total,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := models.NormalizeRoomCode(mux.Vars(r)["code"])
	if err := validate.RoomCode(code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := s.store.FindRoom(r.Context(), code)
	if errors.Is(err, store.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "Room not found. Please check the room code.")
		return
	}
	if err != nil {
		log.Printf("[API] Failed to load room %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to load room.")
		return
	}

	writeJSON(w, http.StatusOK, store.RoomSummary{
		Code:         room.Code,
		Name:         room.Name,
		UserCount:    len(room.Members),
		MessageCount: room.MessageCount,
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
	})
}

func (s *Server) handleRoomExists(w http.ResponseWriter, r *http.Request) {
	code := models.NormalizeRoomCode(mux.Vars(r)["code"])
	if err := validate.RoomCode(code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exists, err := s.store.RoomExists(r.Context(), code)
	if err != nil {
		log.Printf("[API] Failed to check room %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to check room.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomId": code,
		"exists": exists,
	})
}

func (s *Server) handleRoomUsers(w http.ResponseWriter, r *http.Request) {
	code := models.NormalizeRoomCode(mux.Vars(r)["code"])
	if err := validate.RoomCode(code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exists, err := s.store.RoomExists(r.Context(), code)
	if err == nil && !exists {
		writeError(w, http.StatusNotFound, "Room not found. Please check the room code.")
		return
	}

	members, err := s.store.RoomMembers(r.Context(), code)
	if err != nil {
		log.Printf("[API] Failed to load members of %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to load room users.")
		return
	}

	roster := models.Roster(members, s.presenceWindow)
	if roster == nil {
		roster = []models.RosterEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomId": code,
		"users":  roster,
	})
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	code := models.NormalizeRoomCode(mux.Vars(r)["code"])
	if err := validate.RoomCode(code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.invites.Enabled() {
		writeError(w, http.StatusNotImplemented, "SMS invites are not configured.")
		return
	}

	var req struct {
		PhoneNumber string `json:"phoneNumber" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Phone number is required.")
		return
	}

	room, err := s.store.FindRoom(r.Context(), code)
	if errors.Is(err, store.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "Room not found. Please check the room code.")
		return
	}
	if err != nil {
		log.Printf("[API] Failed to load room %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to load room.")
		return
	}

	if err := s.invites.Send(req.PhoneNumber, room.Code, room.Name); err != nil {
		if errors.Is(err, invite.ErrInvalidPhone) {
			writeError(w, http.StatusBadRequest, "Invalid phone number format.")
			return
		}
		log.Printf("[API] Failed to send invite for %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to send invite.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomId": code,
		"sent":   true,
	})
}

func (s *Server) handleCleanupRooms(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.janitor.CleanupRooms(r.Context(), time.Now())
	if err != nil {
		log.Printf("[API] Room cleanup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to clean up rooms.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deletedRooms": deleted,
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	code := models.NormalizeRoomCode(mux.Vars(r)["code"])
	if err := validate.RoomCode(code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := queryInt(r, "limit", defaultPageSize, maxPageSize)
	offset := queryInt(r, "skip", 0, 1<<30)

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'before' timestamp, expected RFC 3339.")
			return
		}
		before = parsed
	}

	messages, err := s.store.ListMessages(r.Context(), code, limit, offset, before)
	if err != nil {
		log.Printf("[API] Failed to list messages of %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to load messages.")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomId":   code,
		"messages": messages,
		"count":    len(messages),
	})
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	code := models.NormalizeRoomCode(mux.Vars(r)["code"])
	if err := validate.RoomCode(code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Search query 'q' is required.")
		return
	}
	limit := queryInt(r, "limit", defaultPageSize, maxPageSize)

	messages, err := s.store.SearchMessages(r.Context(), code, query, limit)
	if err != nil {
		log.Printf("[API] Failed to search messages of %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to search messages.")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomId":   code,
		"query":    query,
		"messages": messages,
		"count":    len(messages),
	})
}

func (s *Server) handleMessageStats(w http.ResponseWriter, r *http.Request) {
	code := models.NormalizeRoomCode(mux.Vars(r)["code"])
	if err := validate.RoomCode(code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := s.store.Stats(r.Context(), code)
	if err != nil {
		log.Printf("[API] Failed to load stats of %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "Failed to load stats.")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCleanupMessages(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.janitor.CleanupMessages(r.Context(), time.Now())
	if err != nil {
		log.Printf("[API] Message cleanup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to clean up messages.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deletedMessages": deleted,
	})
}

// queryInt parses a non-negative integer query parameter with a fallback
// and an upper bound.
func queryInt(r *http.Request, name string, fallback, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
