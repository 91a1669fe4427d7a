package game

import (
	"encoding/json"
	"testing"
)

func applyTTT(t *testing.T, state json.RawMessage, seat Seat, pos int) *Result {
	t.Helper()
	payload, _ := json.Marshal(map[string]int{"position": pos})
	res, err := (&TicTacToe{}).Apply(state, seat, "move", payload)
	if err != nil {
		t.Fatalf("move %d by %s failed: %v", pos, seat, err)
	}
	return res
}

func TestTicTacToe_MoveFlipsTurn(t *testing.T) {
	g := &TicTacToe{}
	state, first := g.NewState()
	if first != SeatFirst {
		t.Fatalf("expected %s to open, got %s", SeatFirst, first)
	}

	res := applyTTT(t, state, SeatFirst, 4)
	if res.Next != SeatSecond {
		t.Errorf("expected turn to flip to %s, got %s", SeatSecond, res.Next)
	}

	var st tttState
	if err := json.Unmarshal(res.State, &st); err != nil {
		t.Fatal(err)
	}
	if st.Board[4] != "X" {
		t.Errorf("expected position 4 to hold X, got %q", st.Board[4])
	}
}

func TestTicTacToe_RejectsOccupiedAndOutOfRange(t *testing.T) {
	g := &TicTacToe{}
	state, _ := g.NewState()
	state = applyTTT(t, state, SeatFirst, 0).State

	payload, _ := json.Marshal(map[string]int{"position": 0})
	if _, err := g.Apply(state, SeatSecond, "move", payload); err != ErrInvalidMove {
		t.Errorf("occupied cell: expected ErrInvalidMove, got %v", err)
	}

	payload, _ = json.Marshal(map[string]int{"position": 9})
	if _, err := g.Apply(state, SeatSecond, "move", payload); err != ErrInvalidMove {
		t.Errorf("out of range: expected ErrInvalidMove, got %v", err)
	}

	if _, err := g.Apply(state, SeatSecond, "guess", payload); err != ErrInvalidMove {
		t.Errorf("foreign action: expected ErrInvalidMove, got %v", err)
	}
}

func TestTicTacToe_WinMarksLine(t *testing.T) {
	g := &TicTacToe{}
	state, _ := g.NewState()

	// X takes the top row, O plays along.
	state = applyTTT(t, state, SeatFirst, 0).State
	state = applyTTT(t, state, SeatSecond, 3).State
	state = applyTTT(t, state, SeatFirst, 1).State
	state = applyTTT(t, state, SeatSecond, 4).State
	res := applyTTT(t, state, SeatFirst, 2)

	if !res.Verdict.Terminal || res.Verdict.Winner != SeatFirst {
		t.Fatalf("expected X to win, got %+v", res.Verdict)
	}
	var st tttState
	json.Unmarshal(res.State, &st)
	if len(st.WinningLine) != 3 || st.WinningLine[0] != 0 || st.WinningLine[2] != 2 {
		t.Errorf("expected winning line [0 1 2], got %v", st.WinningLine)
	}
}

func TestTicTacToe_Draw(t *testing.T) {
	g := &TicTacToe{}
	state, _ := g.NewState()

	// X O X / X O O / O X X, full board, no line.
	moves := []struct {
		seat Seat
		pos  int
	}{
		{SeatFirst, 0}, {SeatSecond, 1}, {SeatFirst, 2},
		{SeatSecond, 4}, {SeatFirst, 3}, {SeatSecond, 5},
		{SeatFirst, 7}, {SeatSecond, 6}, {SeatFirst, 8},
	}
	var res *Result
	for _, m := range moves {
		res = applyTTT(t, state, m.seat, m.pos)
		state = res.State
	}
	if !res.Verdict.Terminal || !res.Verdict.Draw || res.Verdict.Winner != SeatNone {
		t.Errorf("expected a draw verdict, got %+v", res.Verdict)
	}
}
