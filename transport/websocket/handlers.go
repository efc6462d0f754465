package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/lobby-backend/internal/apperror"
	"github.com/rocketscienceinc/lobby-backend/internal/broadcaster"
	"github.com/rocketscienceinc/lobby-backend/internal/entity"
)

const actionRoomDetails = "room:details"

// handleConnect - verifies the presented token and auto-assigns the player
// to a room, or re-attaches a reconnecting player to the room they are
// still a member of.
func (that *Server) handleConnect(ctx context.Context, sess *session, msg *Message) error {
	log := that.logger.With("method", "handleConnect", "connID", sess.connID)

	var payloadReq ConnectPayload

	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Token == "" {
		that.events.Error(sess.connID, "token is required")
		return nil
	}

	userID, err := that.auth.VerifyToken(payloadReq.Token)
	if err != nil {
		log.Error("failed to verify token", "error", err)
		that.events.Error(sess.connID, "invalid token")
		return nil
	}

	user, err := that.users.GetByID(ctx, userID)
	if err != nil {
		log.Error("failed to get user", "userID", userID, "error", err)
		that.events.Error(sess.connID, "unknown account")
		return nil
	}

	sess.playerID = user.ID
	log = log.With("playerID", user.ID)

	// a reconnecting player stays in the room they are still listed in
	room, err := that.matchmaker.CurrentRoom(ctx, user.ID)
	if err == nil && room.HasMember(user.ID) {
		sess.roomCode = room.Code
		that.hub.Subscribe(room.Code, sess.connID)
		that.events.RoomAssigned(sess.connID, room)

		log.Info("player reconnected to room", "roomCode", room.Code)

		return nil
	}

	if err != nil && !errors.Is(err, apperror.ErrNotInRoom) && !errors.Is(err, apperror.ErrPlayerNotFound) && !errors.Is(err, apperror.ErrRoomNotFound) {
		return fmt.Errorf("failed to resolve current room: %w", err)
	}

	return that.assignToRoom(ctx, sess, user)
}

// handlePlay - assigns an authenticated player to a room again, e.g. after
// an explicit leave.
func (that *Server) handlePlay(ctx context.Context, sess *session, _ *Message) error {
	if sess.playerID == "" {
		that.events.Error(sess.connID, "not authenticated")
		return nil
	}

	user, err := that.users.GetByID(ctx, sess.playerID)
	if err != nil {
		that.events.Error(sess.connID, "unknown account")
		return fmt.Errorf("failed to get user: %w", err)
	}

	room, err := that.matchmaker.CurrentRoom(ctx, sess.playerID)
	if err == nil && room.HasMember(sess.playerID) {
		// already matched; resend the snapshot
		sess.roomCode = room.Code
		that.hub.Subscribe(room.Code, sess.connID)
		that.events.RoomAssigned(sess.connID, room)
		return nil
	}

	return that.assignToRoom(ctx, sess, user)
}

// assignToRoom - runs the matchmaking assignment and emits the resulting
// events: snapshot to the joiner, roster change to the others, and the
// game start when this join filled the last seat.
func (that *Server) assignToRoom(ctx context.Context, sess *session, user *entity.User) error {
	log := that.logger.With("method", "assignToRoom", "playerID", user.ID)

	player := &entity.Player{
		ID:      user.ID,
		Name:    user.Username,
		Balance: user.Balance,
	}

	room, err := that.matchmaker.Assign(ctx, player, sess.connID)
	if errors.Is(err, apperror.ErrMatchmakingUnavailable) {
		that.events.Error(sess.connID, apperror.ErrMatchmakingUnavailable.Error())
		return nil
	}

	if err != nil {
		that.events.Error(sess.connID, "failed to join game")
		return fmt.Errorf("failed to assign player: %w", err)
	}

	sess.roomCode = room.Code

	that.hub.Subscribe(room.Code, sess.connID)
	that.events.RoomAssigned(sess.connID, room)

	if member, ok := room.Member(user.ID); ok {
		that.events.MemberJoined(room, member)
	}

	if _, err = that.matchmaker.OnCapacityReached(ctx, room); err != nil {
		log.Error("failed to start game", "roomCode", room.Code, "error", err)
	}

	log.Info("player assigned to room", "roomCode", room.Code, "members", len(room.Members))

	return nil
}

// handleRoomDetails - answers a point query about a room; with no code the
// player's current room is used.
func (that *Server) handleRoomDetails(ctx context.Context, sess *session, msg *Message) error {
	var payloadReq RoomDetailsPayload

	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	var (
		room *entity.Room
		err  error
	)

	if payloadReq.Code != "" {
		room, err = that.rooms.GetByCode(ctx, payloadReq.Code)
	} else {
		if sess.playerID == "" {
			that.events.Error(sess.connID, "not authenticated")
			return nil
		}
		room, err = that.matchmaker.CurrentRoom(ctx, sess.playerID)
	}

	if errors.Is(err, apperror.ErrRoomNotFound) || errors.Is(err, apperror.ErrNotInRoom) {
		that.events.Error(sess.connID, "room not found")
		return nil
	}

	if err != nil {
		that.events.Error(sess.connID, "failed to get room details")
		return fmt.Errorf("failed to get room: %w", err)
	}

	if err = sess.conn.Send(actionRoomDetails, broadcaster.RoomSnapshot(room)); err != nil {
		return fmt.Errorf("failed to send room details: %w", err)
	}

	return nil
}

// handleLeave - removes the player from their room and confirms it. The
// remaining members get the updated roster; an empty room is retired by
// the store, so there is nobody left to notify.
func (that *Server) handleLeave(ctx context.Context, sess *session, _ *Message) error {
	log := that.logger.With("method", "handleLeave", "playerID", sess.playerID)

	if sess.playerID == "" {
		that.events.Error(sess.connID, "not authenticated")
		return nil
	}

	room, err := that.matchmaker.Leave(ctx, sess.playerID)
	if err != nil {
		that.events.Error(sess.connID, "failed to leave room")
		return fmt.Errorf("failed to leave room: %w", err)
	}

	if sess.roomCode != "" {
		that.hub.Unsubscribe(sess.roomCode, sess.connID)
		sess.roomCode = ""
	}

	if room != nil {
		that.events.MemberLeft(room, sess.playerID)
		log.Info("player left room", "roomCode", room.Code, "remaining", len(room.Members))
	}

	that.events.LeaveConfirmed(sess.connID)

	return nil
}
