// rating/rating.go
package rating

import (
	"context"
	"fmt"

	"github.com/wfunc/duelhub/models"
	"github.com/wfunc/duelhub/persistence"
)

// Updater applies the one-time rating consequence of a concluded
// room: winner +delta, loser -delta with a floor of zero. Call-once
// discipline is the coordinator's job (the snapshot's settled flag),
// not this component's.
type Updater struct {
	db       persistence.Database
	delta    int
	onSettle func()
}

func NewUpdater(db persistence.Database, delta int) *Updater {
	if delta <= 0 {
		delta = 16
	}
	return &Updater{db: db, delta: delta}
}

// Observe registers a hook fired after each successful settlement,
// used for the settled-games counter.
func (u *Updater) Observe(fn func()) {
	u.onSettle = fn
}

// Settle adjusts both ratings and returns them keyed by identity,
// ready for a rating_update broadcast.
func (u *Updater) Settle(ctx context.Context, winnerID, loserID string) (map[string]int, error) {
	winner, loser, err := u.db.ApplyResult(ctx, winnerID, loserID, u.delta)
	if err != nil {
		return nil, fmt.Errorf("apply result %s>%s: %w", winnerID, loserID, err)
	}
	if u.onSettle != nil {
		u.onSettle()
	}
	return map[string]int{winnerID: winner, loserID: loser}, nil
}

// Record stores a game record for a terminal room; winner is empty on
// a draw.
func (u *Updater) Record(ctx context.Context, roomKey, game, player1, player2, winner string) error {
	return u.db.SaveGameRecord(ctx, &models.GormGameRecord{
		RoomKey: roomKey,
		Game:    game,
		Player1: player1,
		Player2: player2,
		Winner:  winner,
	})
}
