package server

import (
	"encoding/json"
	"time"
)

// Seconds marshals a duration as fractional seconds, the wire format used
// by config files and the game log.
type Seconds time.Duration

// MarshalJSON implements json.Marshaler.
func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(s).Seconds())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*s = Seconds(secs * float64(time.Second))
	return nil
}

// Duration converts back to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// PipeState is the immutable snapshot of a pipe carried by log events.
type PipeState struct {
	Value     Score                `json:"value"`
	BaseDelay Seconds              `json:"base_delay"`
	Direction Direction            `json:"direction"`
	Modifiers map[ModifierKind]int `json:"modifiers"`
}

// Event type tags on the wire. The tag names predate the current payload
// type names and are kept for client compatibility.
const (
	EventCollectStart  = "CollectStart"
	EventCollectEnd    = "CollectEnd"
	EventPipeUpdated   = "UpdatePipe"
	EventPlayerUpdated = "UpdateUser"
)

// CollectStart records that a collection began and how long it will wait.
// User holds the player token, or the external player id once mapped for
// the platform log.
type CollectStart struct {
	Type   string  `json:"type"`
	User   any     `json:"user"`
	PipeID int     `json:"pipe_id"`
	Delay  Seconds `json:"delay"`
}

// CollectEnd records that a collection's wait elapsed.
type CollectEnd struct {
	Type string `json:"type"`
	User any    `json:"user"`
}

// PipeUpdated records a pipe's full state after a mutation.
type PipeUpdated struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
	PipeState
}

// PlayerUpdated records a player's full state after a mutation.
type PlayerUpdated struct {
	Type string `json:"type"`
	User any    `json:"user"`
	PlayerState
}

func newCollectStart(token string, pipeID int, delay time.Duration) CollectStart {
	return CollectStart{Type: EventCollectStart, User: token, PipeID: pipeID, Delay: Seconds(delay)}
}

func newCollectEnd(token string) CollectEnd {
	return CollectEnd{Type: EventCollectEnd, User: token}
}

func newPipeUpdated(id int, state PipeState) PipeUpdated {
	return PipeUpdated{Type: EventPipeUpdated, ID: id, PipeState: state}
}

func newPlayerUpdated(token string, state PlayerState) PlayerUpdated {
	return PlayerUpdated{Type: EventPlayerUpdated, User: token, PlayerState: state}
}

// MapEventUser returns a copy of the event payload with the player
// identity replaced by f's result. Payloads without a player identity are
// returned unchanged. Used by the platform adapter to rewrite tokens to
// external player ids in the saved log.
func MapEventUser(msg any, f func(token string) any) any {
	mapped := func(user any) any {
		if token, ok := user.(string); ok {
			return f(token)
		}
		return user
	}
	switch event := msg.(type) {
	case CollectStart:
		event.User = mapped(event.User)
		return event
	case CollectEnd:
		event.User = mapped(event.User)
		return event
	case PlayerUpdated:
		event.User = mapped(event.User)
		return event
	}
	return msg
}
