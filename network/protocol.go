package network

import "encoding/json"

// Inbound message types.
const (
	MsgMove      = "move"
	MsgReset     = "reset"
	MsgSurrender = "surrender"
	MsgSetSecret = "set_secret"
	MsgPlayCard  = "play_card"
	MsgGuess     = "guess"
)

// Outbound message types.
const (
	MsgGameState       = "game_state"
	MsgGameStart       = "game_start"
	MsgMatchFound      = "match_found"
	MsgWaiting         = "waiting"
	MsgOpponentRetired = "opponent_retired"
	MsgRatingUpdate    = "rating_update"
	MsgRoundResult     = "round_result"
	MsgResetPending    = "reset_pending"
	MsgError           = "error"
)

// Inbound is the envelope every client frame must carry. The payload
// past "type" is left raw for the handler that owns the type.
type Inbound struct {
	Type string `json:"type"`
}

// ParseInbound splits a client frame into its type tag and the raw
// frame for type-specific decoding.
func ParseInbound(data []byte) (string, json.RawMessage, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return "", nil, err
	}
	return in.Type, json.RawMessage(data), nil
}

// ErrorMessage is sent only to the connection that caused the error.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgError, Message: message}
}
