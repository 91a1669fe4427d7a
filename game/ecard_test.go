package game

import (
	"encoding/json"
	"testing"
)

func playCard(t *testing.T, state json.RawMessage, seat Seat, card string) *Result {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"card": card})
	res, err := (&ECard{}).Apply(state, seat, "play_card", payload)
	if err != nil {
		t.Fatalf("play %q by %s failed: %v", card, seat, err)
	}
	return res
}

func TestECard_Judge(t *testing.T) {
	cases := []struct {
		first, second string
		want          Seat
	}{
		{CardEmperor, CardCitizen, SeatFirst},
		{CardCitizen, CardSlave, SeatFirst},
		{CardEmperor, CardSlave, SeatSecond},
		{CardCitizen, CardEmperor, SeatSecond},
		{CardSlave, CardCitizen, SeatSecond},
		{CardCitizen, CardCitizen, SeatNone},
	}
	for _, c := range cases {
		if got := judge(c.first, c.second); got != c.want {
			t.Errorf("judge(%s, %s) = %q, want %q", c.first, c.second, got, c.want)
		}
	}
}

func TestECard_TiedRoundContinues(t *testing.T) {
	g := &ECard{}
	state, next := g.NewState()
	if next != SeatNone {
		t.Fatalf("ecard must not be turn-gated, got next=%s", next)
	}

	state = playCard(t, state, SeatFirst, CardCitizen).State
	res := playCard(t, state, SeatSecond, CardCitizen)

	if res.Verdict.Terminal {
		t.Fatal("citizen vs citizen must not end the game")
	}
	if len(res.Notices) != 1 || res.Notices[0].Type != "round_result" {
		t.Fatalf("expected a round_result notice, got %v", res.Notices)
	}

	var st ecardState
	json.Unmarshal(res.State, &st)
	if st.Round != 2 {
		t.Errorf("expected round 2, got %d", st.Round)
	}
	if len(st.Hands[SeatFirst]) != 4 || len(st.Hands[SeatSecond]) != 4 {
		t.Errorf("discarded cards must not return: %v", st.Hands)
	}
	if st.LastRound == nil || st.LastRound.Winner != SeatNone {
		t.Errorf("expected a recorded tied round, got %+v", st.LastRound)
	}
}

func TestECard_EmperorVsSlaveEndsGame(t *testing.T) {
	g := &ECard{}
	state, _ := g.NewState()

	state = playCard(t, state, SeatFirst, CardEmperor).State
	res := playCard(t, state, SeatSecond, CardSlave)

	if !res.Verdict.Terminal || res.Verdict.Winner != SeatSecond {
		t.Fatalf("slave must beat emperor, got %+v", res.Verdict)
	}
}

func TestECard_RejectsDoublePlayAndMissingCard(t *testing.T) {
	g := &ECard{}
	state, _ := g.NewState()
	state = playCard(t, state, SeatFirst, CardEmperor).State

	payload, _ := json.Marshal(map[string]string{"card": CardCitizen})
	if _, err := g.Apply(state, SeatFirst, "play_card", payload); err != ErrInvalidMove {
		t.Errorf("second pick in one round: expected ErrInvalidMove, got %v", err)
	}

	// The emperor left the first seat's hand, the second never had one.
	payload, _ = json.Marshal(map[string]string{"card": CardEmperor})
	if _, err := g.Apply(state, SeatSecond, "play_card", payload); err != ErrInvalidMove {
		t.Errorf("card not in hand: expected ErrInvalidMove, got %v", err)
	}
}

func TestECard_RedactHidesPendingPick(t *testing.T) {
	g := &ECard{}
	state, _ := g.NewState()
	state = playCard(t, state, SeatFirst, CardEmperor).State

	var view ecardView
	if err := json.Unmarshal(g.Redact(state, SeatSecond), &view); err != nil {
		t.Fatal(err)
	}
	if view.Played != "" {
		t.Errorf("second seat has not played, got %q", view.Played)
	}
	if !view.OpponentPlayed {
		t.Error("redacted view must still reveal that the opponent acted")
	}
	if view.OpponentCards != 4 {
		t.Errorf("expected opponent card count 4, got %d", view.OpponentCards)
	}

	// The raw card must never appear in the redacted document.
	raw := string(g.Redact(state, SeatSecond))
	if jsonContains(raw, `"E"`) {
		t.Errorf("pending emperor pick leaked: %s", raw)
	}
}

func jsonContains(doc, needle string) bool {
	for i := 0; i+len(needle) <= len(doc); i++ {
		if doc[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
