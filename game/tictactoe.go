// game/tictactoe.go
package game

import (
	"encoding/json"
	"fmt"
)

const KindTicTacToe = "tictactoe"

func init() {
	Register(&TicTacToe{})
}

// TicTacToe is the 3x3 board game. Cells are indexed 0-8 row-major.
type TicTacToe struct{}

type tttState struct {
	Board       [9]string `json:"board"` // "X", "O" or ""
	Moves       int       `json:"moves"`
	WinningLine []int     `json:"winning_line,omitempty"`
}

type tttMove struct {
	Position *int `json:"position"`
}

// rows, columns, diagonals
var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func (g *TicTacToe) Kind() string { return KindTicTacToe }

func (g *TicTacToe) NewState() (json.RawMessage, Seat) {
	data, _ := json.Marshal(&tttState{})
	return data, SeatFirst
}

func (g *TicTacToe) Apply(state json.RawMessage, seat Seat, action string, payload json.RawMessage) (*Result, error) {
	if action != "move" {
		return nil, ErrInvalidMove
	}

	var st tttState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode tictactoe state: %w", err)
	}

	var mv tttMove
	if err := json.Unmarshal(payload, &mv); err != nil || mv.Position == nil {
		return nil, ErrInvalidMove
	}
	pos := *mv.Position
	if pos < 0 || pos > 8 || st.Board[pos] != "" {
		return nil, ErrInvalidMove
	}

	st.Board[pos] = string(seat)
	st.Moves++

	res := &Result{Next: Opponent(seat)}
	if line, ok := winningLine(st.Board); ok {
		st.WinningLine = line
		res.Verdict = Verdict{Terminal: true, Winner: seat}
		res.Next = SeatNone
	} else if st.Moves == 9 {
		res.Verdict = Verdict{Terminal: true, Draw: true}
		res.Next = SeatNone
	}

	data, err := json.Marshal(&st)
	if err != nil {
		return nil, err
	}
	res.State = data
	return res, nil
}

// Redact is the identity for tictactoe; the whole board is public.
func (g *TicTacToe) Redact(state json.RawMessage, viewer Seat) json.RawMessage {
	return state
}

func winningLine(board [9]string) ([]int, bool) {
	for _, l := range tttLines {
		a, b, c := l[0], l[1], l[2]
		if board[a] != "" && board[a] == board[b] && board[b] == board[c] {
			return []int{a, b, c}, true
		}
	}
	return nil, false
}
