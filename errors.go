package server

import "errors"

// Operation failures returned to the caller. All of them are non-fatal:
// the match keeps running and the caller decides whether to retry.
var (
	// ErrPlayerUnknown is returned on a closed roster when the token was
	// never registered.
	ErrPlayerUnknown = errors.New("player not found")

	// ErrPlayerBusy is returned when the player already has an operation
	// in flight. Requests are rejected, never queued.
	ErrPlayerBusy = errors.New("player is already processing another request")

	// ErrPipeNotFound is returned when the pipe id is outside the
	// configured range.
	ErrPipeNotFound = errors.New("pipe not found")

	// ErrInsufficientScore is returned when a modifier costs more than the
	// player's current score.
	ErrInsufficientScore = errors.New("not enough score")

	// ErrModifierAlreadyApplied is returned when a stacking modifier kind
	// is already active on the target pipe.
	ErrModifierAlreadyApplied = errors.New("this modifier is already applied to the pipe")
)

// ErrorCode returns the stable wire identifier for an operation failure,
// or an empty string for errors outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPlayerUnknown):
		return "PlayerUnknown"
	case errors.Is(err, ErrPlayerBusy):
		return "PlayerBusy"
	case errors.Is(err, ErrPipeNotFound):
		return "PipeNotFound"
	case errors.Is(err, ErrInsufficientScore):
		return "InsufficientScore"
	case errors.Is(err, ErrModifierAlreadyApplied):
		return "ModifierAlreadyApplied"
	}
	return ""
}
