package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/lobby-backend/internal/apperror"
	"github.com/rocketscienceinc/lobby-backend/internal/broadcaster"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

type authService interface {
	GenerateToken(userID string) (string, error)
	VerifyToken(tokenString string) (string, error)
}

type userService interface {
	RegisterGuest(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	UpdateBalance(ctx context.Context, id string, balance int64) error
}

type roomLister interface {
	ListWaiting(ctx context.Context) ([]*entity.Room, error)
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
}

type matchmaker interface {
	CurrentRoom(ctx context.Context, playerID string) (*entity.Room, error)
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type handlers struct {
	logger *slog.Logger

	auth  authService
	users userService
	rooms roomLister
	mm    matchmaker
}

func newHandlers(logger *slog.Logger, auth authService, users userService, rooms roomLister, mm matchmaker) *handlers {
	return &handlers{
		logger: logger,

		auth:  auth,
		users: users,
		rooms: rooms,
		mm:    mm,
	}
}

func (that *handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// RegisterGuest - creates a guest account and returns it with a token.
func (that *handlers) RegisterGuest(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "RegisterGuest")

	var req struct {
		Username string `json:"username"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	user, err := that.users.RegisterGuest(r.Context(), req.Username)
	if err != nil {
		log.Error("failed to register guest", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	token, err := that.auth.GenerateToken(user.ID)
	if err != nil {
		log.Error("failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Data: map[string]any{
			"user":  user,
			"token": token,
		},
	})
}

// UpdateBalance - sets the authenticated user's balance and returns the
// updated account.
func (that *handlers) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "UpdateBalance")

	userID := userIDFromContext(r.Context())

	var req struct {
		Balance *int64 `json:"balance"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Balance == nil {
		writeError(w, http.StatusBadRequest, "balance is required")
		return
	}

	if *req.Balance < 0 {
		writeError(w, http.StatusBadRequest, "balance must not be negative")
		return
	}

	if err := that.users.UpdateBalance(r.Context(), userID, *req.Balance); err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}

		log.Error("failed to update balance", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update balance")
		return
	}

	user, err := that.users.GetByID(r.Context(), userID)
	if err != nil {
		log.Error("failed to get user after balance update", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update balance")
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: user})
}

// WaitingRooms - all rooms still open for matchmaking, newest first.
func (that *handlers) WaitingRooms(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "WaitingRooms")

	rooms, err := that.rooms.ListWaiting(r.Context())
	if err != nil {
		log.Error("failed to list waiting rooms", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	snapshots := make([]broadcaster.RoomAssignedPayload, 0, len(rooms))
	for _, room := range rooms {
		snapshots = append(snapshots, broadcaster.RoomSnapshot(room))
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: snapshots})
}

func (that *handlers) RoomByCode(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "RoomByCode")

	code := r.PathValue("code")

	room, err := that.rooms.GetByCode(r.Context(), code)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	if err != nil {
		log.Error("failed to get room", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: broadcaster.RoomSnapshot(room)})
}

// CurrentRoom - the room the authenticated user is currently in, if any.
func (that *handlers) CurrentRoom(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "CurrentRoom")

	userID := userIDFromContext(r.Context())

	room, err := that.mm.CurrentRoom(r.Context(), userID)
	if errors.Is(err, apperror.ErrNotInRoom) || errors.Is(err, apperror.ErrPlayerNotFound) || errors.Is(err, apperror.ErrRoomNotFound) {
		writeJSON(w, http.StatusOK, response{Success: true, Message: "user is not in any room"})
		return
	}

	if err != nil {
		log.Error("failed to get current room", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: broadcaster.RoomSnapshot(room)})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Message: message})
}
