package server

import (
	"math/rand"
	"sync"
	"time"
)

// Direction is the drift applied to a pipe's value after each collection.
type Direction string

const (
	DirectionUp   Direction = "Up"
	DirectionDown Direction = "Down"
)

// Inverse returns the opposite drift direction.
func (d Direction) Inverse() Direction {
	if d == DirectionUp {
		return DirectionDown
	}
	return DirectionUp
}

func randomDirection(rng *rand.Rand) Direction {
	if rng.Intn(2) == 0 {
		return DirectionUp
	}
	return DirectionDown
}

// ModifierKind identifies a purchasable pipe modification.
type ModifierKind string

const (
	// ModifierSlow doubles the collection wait while active, one use per
	// collection.
	ModifierSlow ModifierKind = "slow"
	// ModifierDouble doubles the collected score, one use per collection.
	ModifierDouble ModifierKind = "double"
	// ModifierMin forces the collected score to the configured floor, one
	// use per collection.
	ModifierMin ModifierKind = "min"
	// ModifierShuffle re-rolls the pipe's base delay once, at apply time.
	ModifierShuffle ModifierKind = "shuffle"
	// ModifierReverse flips the pipe's drift direction once, at apply time.
	ModifierReverse ModifierKind = "reverse"
)

// Valid reports whether the kind names a known modifier.
func (k ModifierKind) Valid() bool {
	switch k {
	case ModifierSlow, ModifierDouble, ModifierMin, ModifierShuffle, ModifierReverse:
		return true
	}
	return false
}

// Stacking reports whether the kind installs a use-counter on the pipe.
// Shuffle and Reverse are instantaneous and never stored.
func (k ModifierKind) Stacking() bool {
	switch k {
	case ModifierSlow, ModifierDouble, ModifierMin:
		return true
	}
	return false
}

// Pipe is a shared, independently contested resource. Its lock is scoped
// to sub-operations, never to a whole collection: two players racing for
// the same pipe interleave between each other's lock acquisitions.
type Pipe struct {
	mu        sync.Mutex
	value     Score
	baseDelay time.Duration
	direction Direction
	modifiers map[ModifierKind]int
}

func newPipe(cfg Config, rng *rand.Rand) *Pipe {
	return &Pipe{
		value:     cfg.randomPipeValue(rng),
		baseDelay: cfg.randomPipeDelay(rng),
		direction: randomDirection(rng),
		modifiers: make(map[ModifierKind]int),
	}
}

// useModifier consumes one use of the kind if it is active, removing the
// entry when the last use is spent. Caller must hold the pipe lock.
func (p *Pipe) useModifier(kind ModifierKind) bool {
	uses, ok := p.modifiers[kind]
	if !ok {
		return false
	}
	uses--
	if uses <= 0 {
		delete(p.modifiers, kind)
	} else {
		p.modifiers[kind] = uses
	}
	return true
}

// advance drifts the value by one step, wrapping to the opposite bound
// when it crosses either configured bound. Caller must hold the pipe lock.
func (p *Pipe) advance(cfg Config) {
	switch p.direction {
	case DirectionDown:
		p.value--
	default:
		p.value++
	}
	if p.value < cfg.MinValue {
		p.value = cfg.MaxValue
	} else if p.value > cfg.MaxValue {
		p.value = cfg.MinValue
	}
}

// state snapshots the pipe for the event log. Caller must hold the pipe
// lock.
func (p *Pipe) state() PipeState {
	modifiers := make(map[ModifierKind]int, len(p.modifiers))
	for kind, uses := range p.modifiers {
		modifiers[kind] = uses
	}
	return PipeState{
		Value:     p.value,
		BaseDelay: Seconds(p.baseDelay),
		Direction: p.direction,
		Modifiers: modifiers,
	}
}
