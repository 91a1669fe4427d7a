// game/ecard.go
package game

import (
	"encoding/json"
	"fmt"
)

const KindECard = "ecard"

// Card kinds. The first seat holds the emperor deck, the second the
// slave deck.
const (
	CardEmperor = "E"
	CardSlave   = "S"
	CardCitizen = "C"
)

func init() {
	Register(&ECard{})
}

// ECard is the emperor/slave card duel. Both seats pick a card each
// round; citizens cancel out and the round repeats with one card
// fewer, any other pairing ends the game.
type ECard struct{}

type ecardState struct {
	Round     int               `json:"round"`
	Hands     map[Seat][]string `json:"hands"`
	Played    map[Seat]string   `json:"played"`
	LastRound *ecardRound       `json:"last_round,omitempty"`
}

type ecardRound struct {
	Round      int    `json:"round"`
	FirstCard  string `json:"first_card"`
	SecondCard string `json:"second_card"`
	Winner     Seat   `json:"winner"` // SeatNone on a tied round
}

// ecardView is the per-seat redaction of ecardState.
type ecardView struct {
	Round          int         `json:"round"`
	Hand           []string    `json:"hand"`
	OpponentCards  int         `json:"opponent_cards"`
	Played         string      `json:"played"`
	OpponentPlayed bool        `json:"opponent_played"`
	LastRound      *ecardRound `json:"last_round,omitempty"`
}

type ecardMove struct {
	Card string `json:"card"`
}

func (g *ECard) Kind() string { return KindECard }

func (g *ECard) NewState() (json.RawMessage, Seat) {
	st := &ecardState{
		Round: 1,
		Hands: map[Seat][]string{
			SeatFirst:  {CardEmperor, CardCitizen, CardCitizen, CardCitizen, CardCitizen},
			SeatSecond: {CardSlave, CardCitizen, CardCitizen, CardCitizen, CardCitizen},
		},
		Played: map[Seat]string{},
	}
	data, _ := json.Marshal(st)
	// Picks are simultaneous, no seat owns the turn.
	return data, SeatNone
}

func (g *ECard) Apply(state json.RawMessage, seat Seat, action string, payload json.RawMessage) (*Result, error) {
	if action != "play_card" {
		return nil, ErrInvalidMove
	}

	var st ecardState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode ecard state: %w", err)
	}

	var mv ecardMove
	if err := json.Unmarshal(payload, &mv); err != nil {
		return nil, ErrInvalidMove
	}
	if st.Played[seat] != "" {
		return nil, ErrInvalidMove
	}
	hand, ok := removeCard(st.Hands[seat], mv.Card)
	if !ok {
		return nil, ErrInvalidMove
	}
	st.Hands[seat] = hand
	st.Played[seat] = mv.Card

	res := &Result{Next: SeatNone}

	first, second := st.Played[SeatFirst], st.Played[SeatSecond]
	if first != "" && second != "" {
		round := &ecardRound{
			Round:      st.Round,
			FirstCard:  first,
			SecondCard: second,
			Winner:     judge(first, second),
		}
		st.LastRound = round
		st.Played = map[Seat]string{}
		if round.Winner == SeatNone {
			st.Round++
		} else {
			res.Verdict = Verdict{Terminal: true, Winner: round.Winner}
		}

		data, _ := json.Marshal(round)
		res.Notices = append(res.Notices, Notice{Type: "round_result", Data: data})
	}

	data, err := json.Marshal(&st)
	if err != nil {
		return nil, err
	}
	res.State = data
	return res, nil
}

func (g *ECard) Redact(state json.RawMessage, viewer Seat) json.RawMessage {
	var st ecardState
	if err := json.Unmarshal(state, &st); err != nil {
		return state
	}
	opp := Opponent(viewer)
	view := &ecardView{
		Round:          st.Round,
		Hand:           st.Hands[viewer],
		OpponentCards:  len(st.Hands[opp]),
		Played:         st.Played[viewer],
		OpponentPlayed: st.Played[opp] != "",
		LastRound:      st.LastRound,
	}
	data, err := json.Marshal(view)
	if err != nil {
		return state
	}
	return data
}

// judge compares the first seat's card against the second seat's.
// The emperor beats the citizen, the citizen beats the slave, and the
// slave beats the emperor.
func judge(first, second string) Seat {
	if first == second {
		return SeatNone
	}
	switch {
	case first == CardEmperor && second == CardCitizen,
		first == CardCitizen && second == CardSlave:
		return SeatFirst
	default:
		return SeatSecond
	}
}

func removeCard(hand []string, card string) ([]string, bool) {
	for i, c := range hand {
		if c == card {
			out := make([]string, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			out = append(out, hand[i+1:]...)
			return out, true
		}
	}
	return hand, false
}
