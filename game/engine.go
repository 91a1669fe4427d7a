// game/engine.go
package game

import (
	"encoding/json"
	"errors"
	"sync"
)

// Seat identifies one of the two fixed roles in a room. The first
// mover is always "X" and the second "O", whatever the game calls
// them client-side.
type Seat string

const (
	SeatNone   Seat = ""
	SeatFirst  Seat = "X"
	SeatSecond Seat = "O"
)

// Opponent returns the other seat, or SeatNone for SeatNone.
func Opponent(s Seat) Seat {
	switch s {
	case SeatFirst:
		return SeatSecond
	case SeatSecond:
		return SeatFirst
	}
	return SeatNone
}

// ErrInvalidMove marks a move the engine rejected. The coordinator
// treats it as a silent no-op, not a failure.
var ErrInvalidMove = errors.New("invalid move")

// Verdict is the engine's termination report for one applied move.
type Verdict struct {
	Terminal bool
	Winner   Seat // SeatNone on draw or while the game runs
	Draw     bool
}

// Notice is an extra event an engine wants fanned out alongside the
// updated state, e.g. an ecard round resolution.
type Notice struct {
	Type string
	Data json.RawMessage
}

// Result is the outcome of applying one valid action.
type Result struct {
	State   json.RawMessage
	Next    Seat // expected next mover; SeatNone when no single seat is gated
	Verdict Verdict
	Notices []Notice
}

// Engine is a pure rule set for one game kind. Engines never touch
// the room, the store or the connections; they map (state, seat,
// action) to a new state and a verdict.
type Engine interface {
	Kind() string
	// NewState returns the serialized initial state and the seat that
	// owns the first turn (SeatNone when the opening phase is not
	// turn-gated, e.g. secret setup).
	NewState() (json.RawMessage, Seat)
	Apply(state json.RawMessage, seat Seat, action string, payload json.RawMessage) (*Result, error)
	// Redact returns the state as the given seat may see it. Hidden
	// information (opponent secrets, unrevealed cards) never survives
	// redaction.
	Redact(state json.RawMessage, viewer Seat) json.RawMessage
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// Register makes an engine available under its kind. Called from the
// engine constructors' package init.
func Register(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[e.Kind()] = e
}

// Lookup finds a registered engine by kind.
func Lookup(kind string) (Engine, bool) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, ok := engines[kind]
	return e, ok
}

// Kinds lists the registered game kinds.
func Kinds() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	kinds := make([]string, 0, len(engines))
	for k := range engines {
		kinds = append(kinds, k)
	}
	return kinds
}
