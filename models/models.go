// models/models.go
package models

import (
	"encoding/json"
	"time"

	"github.com/wfunc/duelhub/game"
)

// Outcome values for a terminal room.
const (
	OutcomeDraw = "draw"
)

// RoomSnapshot is the authoritative, serialized state of one room.
// Every write replaces the whole document in the shared store; there
// are no partial updates.
type RoomSnapshot struct {
	RoomKey   string                    `json:"room_key"`
	Game      string                    `json:"game"`
	State     json.RawMessage           `json:"state"`
	Seats     map[game.Seat]string      `json:"seats"` // seat -> identity, absent when unassigned
	TurnOwner game.Seat                 `json:"turn_owner"`
	Terminal  bool                      `json:"terminal"`
	Outcome   string                    `json:"outcome"` // "X", "O", "draw" or ""
	Settled   bool                      `json:"settled"`
	// PendingAcks lists identities that asked for a reset since the
	// last game start; quorum is both seats.
	PendingAcks []string  `json:"pending_acks,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SeatOf resolves the seat an identity occupies, or SeatNone.
func (s *RoomSnapshot) SeatOf(identity string) game.Seat {
	for seat, id := range s.Seats {
		if id == identity {
			return seat
		}
	}
	return game.SeatNone
}

// Full reports whether both seats are taken.
func (s *RoomSnapshot) Full() bool {
	return s.Seats[game.SeatFirst] != "" && s.Seats[game.SeatSecond] != ""
}

// HasAck reports whether the identity already requested a reset.
func (s *RoomSnapshot) HasAck(identity string) bool {
	for _, id := range s.PendingAcks {
		if id == identity {
			return true
		}
	}
	return false
}

// WaitingTicket is the single matchmaking slot of one pool: the
// identity waiting for an opponent and the broadcast group it can be
// reached on.
type WaitingTicket struct {
	Identity      string    `json:"identity"`
	ReturnAddress string    `json:"return_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// RoomView is the snapshot as one connection may see it: the engine
// state has been redacted for the receiving seat.
type RoomView struct {
	Type       string               `json:"type"`
	RoomKey    string               `json:"room_key"`
	Game       string               `json:"game"`
	Seats      map[game.Seat]string `json:"seats"`
	YourSeat   game.Seat            `json:"your_seat"`
	TurnOwner  game.Seat            `json:"turn_owner"`
	Terminal   bool                 `json:"terminal"`
	Outcome    string               `json:"outcome"`
	ResetVotes []string             `json:"reset_votes,omitempty"`
	State      json.RawMessage      `json:"state"`
}

// MatchFound tells a seeker which room to connect to.
type MatchFound struct {
	Type     string `json:"type"`
	RoomKey  string `json:"room_key"`
	Game     string `json:"game"`
	Opponent string `json:"opponent"`
}

// RatingUpdate carries the post-settlement ratings keyed by identity.
type RatingUpdate struct {
	Type    string         `json:"type"`
	Ratings map[string]int `json:"ratings"`
}
