package apperror

import "errors"

var (
	ErrRoomFull       = errors.New("room is full")
	ErrRoomNotWaiting = errors.New("room is not waiting for players")
	ErrRoomNotFound   = errors.New("room not found")
	ErrNoJoinableRoom = errors.New("no joinable room")

	ErrDuplicateRoomCode  = errors.New("room code already exists")
	ErrJoinableRoomExists = errors.New("a joinable room already exists")
	ErrAlreadyPlaying     = errors.New("game is already playing")
	ErrNotPlaying         = errors.New("game is not playing")

	ErrPlayerNotFound = errors.New("player not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrNotInRoom      = errors.New("player is not in a room")

	ErrMatchmakingUnavailable = errors.New("matchmaking is unavailable, try again later")
)
