// Package server implements the pipe-rush match: a timed contest where
// players collect value from a fixed set of pipes and spend score on
// modifiers that change a pipe's behavior.
package server

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"pipe-rush/server/eventlog"
	"pipe-rush/server/internal/telemetry"
)

// Results maps player tokens to final scores.
type Results = map[string]Score

// EngineConfig carries the engine's construction-time dependencies.
type EngineConfig struct {
	Match Config

	// Roster is the fixed set of valid tokens. Empty means an open roster:
	// any unseen token creates a fresh player on first use.
	Roster []string

	Logger telemetry.Logger

	// Rand overrides the randomness source, for deterministic tests.
	Rand *rand.Rand
}

// Engine orchestrates players, pipes, and the event log to implement the
// player-visible match operations.
//
// Locking discipline: a player's lock is try-acquired and held for the
// whole operation, including suspensions, so concurrent requests for the
// same token fail fast with ErrPlayerBusy instead of queueing. A pipe's
// lock is scoped to sub-operations: during a collection's wait the pipe is
// unlocked, and the awarded score comes from a fresh read after the wait.
type Engine struct {
	start      time.Time
	cfg        Config
	openRoster bool
	log        *eventlog.Log
	logger     telemetry.Logger

	mu      sync.Mutex // guards players
	players map[string]*Player
	pipes   map[int]*Pipe

	rngMu sync.Mutex // rand.Rand is not safe for concurrent use
	rng   *rand.Rand
}

// NewEngine creates the match state: the full set of pipes with randomized
// value, delay, and direction, plus a player per roster token. Initial
// pipe and player states are recorded in the event log at time zero.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(nil)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &Engine{
		start:      time.Now(),
		cfg:        cfg.Match,
		openRoster: len(cfg.Roster) == 0,
		log:        eventlog.New(),
		logger:     logger,
		players:    make(map[string]*Player, len(cfg.Roster)),
		pipes:      make(map[int]*Pipe, cfg.Match.PipeCount),
		rng:        rng,
	}

	if e.openRoster {
		e.logger.Printf("no players specified, so everyone is welcome")
	} else {
		e.logger.Printf("roster: %v", cfg.Roster)
	}

	for _, token := range cfg.Roster {
		player := &Player{}
		e.players[token] = player
		e.log.Append(eventlog.Entry{Time: 0, Msg: newPlayerUpdated(token, player.state())})
	}
	for id := 1; id <= e.cfg.PipeCount; id++ {
		pipe := newPipe(e.cfg, rng)
		e.pipes[id] = pipe
		e.log.Append(eventlog.Entry{Time: 0, Msg: newPipeUpdated(id, pipe.state())})
	}
	return e
}

// Log exposes the match event log for subscribers and sinks.
func (e *Engine) Log() *eventlog.Log {
	return e.log
}

// Config returns the immutable match configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) elapsed() float64 {
	return time.Since(e.start).Seconds()
}

func (e *Engine) appendLog(msg any) {
	e.log.Append(eventlog.Entry{Time: e.elapsed(), Msg: msg})
}

// lockPlayer resolves the token and try-acquires the player's operation
// lock. On success the caller owns the lock and must release it. The
// registry lock is held only for the lookup-or-insert, never across the
// operation.
func (e *Engine) lockPlayer(token string) (*Player, error) {
	e.mu.Lock()
	player, ok := e.players[token]
	if !ok {
		if !e.openRoster {
			e.mu.Unlock()
			e.logger.Printf("rejected unknown token %q", token)
			return nil, ErrPlayerUnknown
		}
		e.logger.Printf("unknown player detected, creating %q", token)
		player = &Player{}
		e.players[token] = player
	}
	e.mu.Unlock()

	if !player.mu.TryLock() {
		return nil, ErrPlayerBusy
	}
	return player, nil
}

func (e *Engine) randomDelay() time.Duration {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.cfg.randomPipeDelay(e.rng)
}

func (e *Engine) pipe(id int) (*Pipe, error) {
	pipe, ok := e.pipes[id]
	if !ok {
		return nil, ErrPipeNotFound
	}
	return pipe, nil
}

// InspectValue suspends for the configured inspection delay, then returns
// the pipe's current value without mutating anything.
func (e *Engine) InspectValue(token string, pipeID int) (Score, error) {
	player, err := e.lockPlayer(token)
	if err != nil {
		return 0, err
	}
	defer player.mu.Unlock()

	pipe, err := e.pipe(pipeID)
	if err != nil {
		return 0, err
	}

	e.logger.Printf("player %q is finding out value of pipe %d", token, pipeID)
	time.Sleep(e.cfg.InspectDelay())

	pipe.mu.Lock()
	value := pipe.value
	pipe.mu.Unlock()
	return value, nil
}

// Collect waits out the pipe's delay, then awards the pipe's value at that
// moment: the payout is read after the wait, not before, so players racing
// for the same pipe contend on the live value. A Slow modifier doubles the
// wait, Double doubles the payout, Min forces it to the configured floor;
// each consumes one use. Afterwards the pipe's value drifts one step with
// wraparound at the bounds. A collection in flight always commits; there
// is no cancellation.
func (e *Engine) Collect(token string, pipeID int) (Score, error) {
	player, err := e.lockPlayer(token)
	if err != nil {
		return 0, err
	}
	defer player.mu.Unlock()

	pipe, err := e.pipe(pipeID)
	if err != nil {
		return 0, err
	}

	e.logger.Printf("player %q is trying to collect pipe %d", token, pipeID)

	pipe.mu.Lock()
	delay := pipe.baseDelay
	if pipe.useModifier(ModifierSlow) {
		delay *= 2
	}
	state := pipe.state()
	pipe.mu.Unlock()
	e.appendLog(newPipeUpdated(pipeID, state))

	e.appendLog(newCollectStart(token, pipeID, delay))
	time.Sleep(delay)
	e.appendLog(newCollectEnd(token))

	pipe.mu.Lock()
	score := pipe.value
	if pipe.useModifier(ModifierDouble) {
		score *= 2
	}
	if pipe.useModifier(ModifierMin) {
		score = e.cfg.MinValue
	}
	player.score += score
	pipe.advance(e.cfg)
	state = pipe.state()
	pipe.mu.Unlock()

	e.appendLog(newPipeUpdated(pipeID, state))
	e.appendLog(newPlayerUpdated(token, player.state()))
	e.logger.Printf("player %q collected %d from pipe %d, score is now %d", token, score, pipeID, player.score)
	return score, nil
}

// ApplyModifier spends the kind's configured cost to modify the pipe:
// stacking kinds install a use-counter (at most one active instance per
// kind per pipe), Shuffle re-rolls the base delay, Reverse flips the drift
// direction. A failed purchase leaves player and pipe untouched.
func (e *Engine) ApplyModifier(token string, pipeID int, kind ModifierKind) error {
	player, err := e.lockPlayer(token)
	if err != nil {
		return err
	}
	defer player.mu.Unlock()

	pipe, err := e.pipe(pipeID)
	if err != nil {
		return err
	}

	if !kind.Valid() {
		return fmt.Errorf("unknown modifier kind %q", kind)
	}

	e.logger.Printf("player %q is trying to apply %s modifier to pipe %d", token, kind, pipeID)

	pipe.mu.Lock()
	defer pipe.mu.Unlock()

	cost := e.cfg.ModifierCost(kind)
	if player.score < cost {
		return ErrInsufficientScore
	}

	switch kind {
	case ModifierSlow, ModifierDouble, ModifierMin:
		if _, active := pipe.modifiers[kind]; active {
			return ErrModifierAlreadyApplied
		}
		pipe.modifiers[kind] = e.cfg.ModifierUses(kind)
	case ModifierShuffle:
		pipe.baseDelay = e.randomDelay()
	case ModifierReverse:
		pipe.direction = pipe.direction.Inverse()
	}

	player.score -= cost
	e.appendLog(newPlayerUpdated(token, player.state()))
	e.appendLog(newPipeUpdated(pipeID, pipe.state()))
	return nil
}

// Snapshot blocks until every player is idle and returns each player's
// current score. Meant for after the match has stopped accepting requests.
func (e *Engine) Snapshot() Results {
	e.mu.Lock()
	defer e.mu.Unlock()
	results := make(Results, len(e.players))
	for token, player := range e.players {
		player.mu.Lock()
		results[token] = player.score
		player.mu.Unlock()
	}
	return results
}
