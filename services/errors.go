// services/errors.go - Sentinel errors shared across the game services
package services

import "errors"

var (
	// Lookup failures
	ErrRoomNotFound        = errors.New("room not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrParticipantNotFound = errors.New("not a participant of this room")
	ErrGenreNotFound       = errors.New("genre not found")

	// Join rejections
	ErrRoomFull       = errors.New("room is full")
	ErrWrongPassword  = errors.New("wrong password")
	ErrGameInProgress = errors.New("game already in progress")
	ErrAlreadyInRoom  = errors.New("already in another room")

	// Authorization
	ErrNotHost = errors.New("only the host can do this")

	// Lifecycle conflicts
	ErrRoomNotWaiting   = errors.New("room is not in the waiting state")
	ErrRoomNotPlaying   = errors.New("room is not playing")
	ErrRoomNotFinished  = errors.New("game is not finished yet")
	ErrNotAllReady      = errors.New("all players must be ready")
	ErrNotEnoughPlayers = errors.New("at least 2 players required")
	ErrWrongPhase       = errors.New("not allowed in the current round phase")

	// Round conflicts
	ErrAlreadyAnswered = errors.New("already answered this round")
	ErrNoSongAvailable = errors.New("no unused song available")
	ErrNoCurrentSong   = errors.New("no song assigned to the current round")
	ErrSongChanged     = errors.New("another song is already playing")

	// Input validation
	ErrInvalidInput = errors.New("invalid input")
)
