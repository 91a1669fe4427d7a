// game/hitandblow.go
package game

import (
	"encoding/json"
	"fmt"
)

const KindHitAndBlow = "hitandblow"

const hbDigits = 3

func init() {
	Register(&HitAndBlow{})
}

// HitAndBlow is the code-breaking duel. Each seat sets a secret of
// three distinct digits during setup, then seats alternate guessing;
// three hits win.
type HitAndBlow struct{}

const (
	hbPhaseSetup   = "setup"
	hbPhasePlaying = "playing"
)

type hbState struct {
	Phase   string         `json:"phase"`
	Secrets map[Seat][]int `json:"secrets"`
	History []hbGuess      `json:"history"`
}

type hbGuess struct {
	Seat  Seat  `json:"seat"`
	Guess []int `json:"guess"`
	Hit   int   `json:"hit"`
	Blow  int   `json:"blow"`
}

// hbView is the per-seat redaction: the opponent's secret collapses
// to a "set" flag, only the viewer's own secret survives.
type hbView struct {
	Phase     string        `json:"phase"`
	SecretSet map[Seat]bool `json:"secret_set"`
	MySecret  []int         `json:"my_secret,omitempty"`
	History   []hbGuess     `json:"history"`
}

type hbMove struct {
	Digits []int `json:"digits"`
}

func (g *HitAndBlow) Kind() string { return KindHitAndBlow }

func (g *HitAndBlow) NewState() (json.RawMessage, Seat) {
	st := &hbState{Phase: hbPhaseSetup, Secrets: map[Seat][]int{}}
	data, _ := json.Marshal(st)
	// Setup is not turn-gated, both seats submit a secret.
	return data, SeatNone
}

func (g *HitAndBlow) Apply(state json.RawMessage, seat Seat, action string, payload json.RawMessage) (*Result, error) {
	var st hbState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode hitandblow state: %w", err)
	}

	var mv hbMove
	if err := json.Unmarshal(payload, &mv); err != nil || !validDigits(mv.Digits) {
		return nil, ErrInvalidMove
	}

	switch action {
	case "set_secret":
		return g.applySetSecret(&st, seat, mv.Digits)
	case "guess":
		return g.applyGuess(&st, seat, mv.Digits)
	default:
		return nil, ErrInvalidMove
	}
}

func (g *HitAndBlow) applySetSecret(st *hbState, seat Seat, digits []int) (*Result, error) {
	if st.Phase != hbPhaseSetup || st.Secrets[seat] != nil {
		return nil, ErrInvalidMove
	}
	st.Secrets[seat] = digits

	res := &Result{Next: SeatNone}
	if st.Secrets[SeatFirst] != nil && st.Secrets[SeatSecond] != nil {
		st.Phase = hbPhasePlaying
		res.Next = SeatFirst
	}

	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	res.State = data
	return res, nil
}

func (g *HitAndBlow) applyGuess(st *hbState, seat Seat, digits []int) (*Result, error) {
	if st.Phase != hbPhasePlaying {
		return nil, ErrInvalidMove
	}
	secret := st.Secrets[Opponent(seat)]
	hit, blow := score(secret, digits)
	st.History = append(st.History, hbGuess{Seat: seat, Guess: digits, Hit: hit, Blow: blow})

	res := &Result{Next: Opponent(seat)}
	if hit == hbDigits {
		res.Verdict = Verdict{Terminal: true, Winner: seat}
		res.Next = SeatNone
	}

	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	res.State = data
	return res, nil
}

func (g *HitAndBlow) Redact(state json.RawMessage, viewer Seat) json.RawMessage {
	var st hbState
	if err := json.Unmarshal(state, &st); err != nil {
		return state
	}
	view := &hbView{
		Phase: st.Phase,
		SecretSet: map[Seat]bool{
			SeatFirst:  st.Secrets[SeatFirst] != nil,
			SeatSecond: st.Secrets[SeatSecond] != nil,
		},
		MySecret: st.Secrets[viewer],
		History:  st.History,
	}
	data, err := json.Marshal(view)
	if err != nil {
		return state
	}
	return data
}

// score counts exact-position matches (hits) and wrong-position
// matches (blows) of guess against secret.
func score(secret, guess []int) (hit, blow int) {
	for i := 0; i < hbDigits; i++ {
		if guess[i] == secret[i] {
			hit++
			continue
		}
		for _, s := range secret {
			if guess[i] == s {
				blow++
				break
			}
		}
	}
	return hit, blow
}

// validDigits requires exactly three distinct digits 0-9.
func validDigits(digits []int) bool {
	if len(digits) != hbDigits {
		return false
	}
	seen := map[int]bool{}
	for _, d := range digits {
		if d < 0 || d > 9 || seen[d] {
			return false
		}
		seen[d] = true
	}
	return true
}
