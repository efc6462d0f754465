package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type ctxKey string

const userIDKey ctxKey = "userID"

type Server struct {
	logger   *slog.Logger
	handlers *handlers
	auth     authService
}

func New(logger *slog.Logger, auth authService, users userService, rooms roomLister, mm matchmaker) *Server {
	return &Server{
		logger: logger,
		auth:   auth,

		handlers: newHandlers(logger, auth, users, rooms, mm),
	}
}

// Start - starts the HTTP API server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", that.handlers.Ping)
	mux.HandleFunc("POST /api/auth/guest", that.handlers.RegisterGuest)
	mux.HandleFunc("PUT /api/user/balance", that.withAuth(that.handlers.UpdateBalance))
	mux.HandleFunc("GET /api/rooms/waiting", that.withAuth(that.handlers.WaitingRooms))
	mux.HandleFunc("GET /api/rooms/user/current", that.withAuth(that.handlers.CurrentRoom))
	mux.HandleFunc("GET /api/rooms/{code}", that.withAuth(that.handlers.RoomByCode))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// withAuth - requires a bearer token and puts the verified user ID on the
// request context.
func (that *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := that.auth.VerifyToken(token)
		if err != nil {
			that.logger.Debug("rejected token", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
