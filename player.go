package server

import "sync"

// Player holds one contestant's balance. The mutex is the player's
// operation lock: it is try-acquired at the start of every operation for
// that token and held across the whole operation, including suspensions,
// so a player's own operations are always linearized. A failed try-acquire
// surfaces as ErrPlayerBusy instead of queueing.
type Player struct {
	mu    sync.Mutex
	score Score
}

// PlayerState snapshots a player for the event log.
type PlayerState struct {
	Score Score `json:"score"`
}

func (p *Player) state() PlayerState {
	return PlayerState{Score: p.score}
}
