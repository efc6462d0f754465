package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/lobby-backend/internal/broadcaster"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
	"github.com/rocketscienceinc/lobby-backend/internal/pkg"
)

type matchmaker interface {
	Assign(ctx context.Context, player *entity.Player, connID string) (*entity.Room, error)
	OnCapacityReached(ctx context.Context, room *entity.Room) (*entity.Room, error)
	Leave(ctx context.Context, playerID string) (*entity.Room, error)
	Disconnect(ctx context.Context, playerID string) (*entity.Room, error)
	CurrentRoom(ctx context.Context, playerID string) (*entity.Room, error)
}

type authService interface {
	VerifyToken(tokenString string) (string, error)
}

type userService interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

type roomFinder interface {
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
}

// session is the per-connection state. playerID and roomCode are set once
// the client authenticates and gets assigned.
type session struct {
	connID   string
	conn     *conn
	playerID string
	roomCode string
}

type Server struct {
	logger *slog.Logger

	matchmaker matchmaker
	auth       authService
	users      userService
	rooms      roomFinder

	hub    *broadcaster.Hub
	events *broadcaster.Broadcaster

	handlers map[string]func(ctx context.Context, sess *session, message *Message) error
}

func New(logger *slog.Logger, mm matchmaker, auth authService, users userService, rooms roomFinder, hub *broadcaster.Hub, events *broadcaster.Broadcaster) *Server {
	server := &Server{
		logger: logger,

		matchmaker: mm,
		auth:       auth,
		users:      users,
		rooms:      rooms,

		hub:    hub,
		events: events,

		handlers: make(map[string]func(context.Context, *session, *Message) error),
	}

	server.handlers["connect"] = server.handleConnect
	server.handlers["room:play"] = server.handlePlay
	server.handlers["room:details"] = server.handleRoomDetails
	server.handlers["room:leave"] = server.handleLeave

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  0, // connections are long-lived
		WriteTimeout: 0,
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

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	if req.Header.Get("Upgrade") != "websocket" {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	key := req.Header.Get("Sec-WebSocket-Key")
	acceptKey := pkg.GenerateAcceptKey(key)

	writer.Header().Set("Upgrade", "websocket")
	writer.Header().Set("Connection", "Upgrade")
	writer.Header().Set("Sec-WebSocket-Accept", acceptKey)
	writer.WriteHeader(http.StatusSwitchingProtocols)

	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		log.Error("web server does not support hijacking")
		return
	}

	netConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		log.Error("failed to hijack connection", "error", err)
		return
	}

	defer netConn.Close()

	sess := &session{
		connID: pkg.GenerateNewSessionID(),
		conn:   newConn(bufrw),
	}

	that.hub.Register(sess.connID, sess.conn)

	log.Info("WebSocket connection established", "connID", sess.connID)

	if err = that.handleMessages(ctx, sess); err != nil && !errors.Is(err, io.EOF) {
		log.Error("error handling messages", "error", err)
	}

	that.handleDisconnect(ctx, sess)
}

// handleMessages - processes messages from the client until the connection
// drops or sends a close frame.
func (that *Server) handleMessages(ctx context.Context, sess *session) error {
	log := that.logger.With("method", "handleMessages", "connID", sess.connID)

	for {
		reqBody, err := sess.conn.readRequest()
		if err != nil {
			return err
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			that.events.Error(sess.connID, "unknown action: "+message.Action)
			continue
		}

		if err = handler(ctx, sess, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// handleDisconnect - funnels a dropped connection through the same leave
// path as an explicit leave, then forgets the connection.
func (that *Server) handleDisconnect(ctx context.Context, sess *session) {
	log := that.logger.With("method", "handleDisconnect", "connID", sess.connID)

	if sess.playerID != "" {
		room, err := that.matchmaker.Disconnect(ctx, sess.playerID)
		if err != nil {
			log.Error("failed to leave room on disconnect", "error", err)
		}

		if room != nil {
			that.hub.Unsubscribe(room.Code, sess.connID)
			that.events.MemberLeft(room, sess.playerID)
		}
	}

	that.hub.Deregister(sess.connID)

	log.Info("player disconnected", "playerID", sess.playerID)
}
