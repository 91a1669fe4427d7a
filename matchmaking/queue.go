// matchmaking/queue.go
package matchmaking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/duelhub/models"
	"github.com/wfunc/duelhub/store"
)

const ticketKeyPrefix = "duelhub:mm:ticket:"

// Match is a successful pairing: the fresh room both seekers should
// connect to and who is on the other end.
type Match struct {
	RoomKey         string
	Opponent        string
	OpponentAddress string
}

// Queue pairs seekers through a single TTL-bounded waiting slot per
// pool in the shared store, so two independent connections can find
// each other without a central broker process.
//
// The consume step is read-then-delete; two seekers reading an empty
// slot at the same instant may both wait. That window is accepted as
// best-effort, a store with conditional writes would close it.
type Queue struct {
	client store.Client
	ttl    time.Duration
}

func NewQueue(client store.Client, ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Queue{client: client, ttl: ttl}
}

// ReturnAddress derives the broadcast group a waiting seeker listens
// on. Hashing keeps arbitrary identities subject-safe for every
// fabric driver.
func ReturnAddress(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return "seeker:" + hex.EncodeToString(sum[:8])
}

// TryMatch reads the pool's waiting slot. With no usable ticket the
// caller becomes the waiter (match is nil); otherwise the ticket is
// consumed and both parties share the returned room key.
func (q *Queue) TryMatch(ctx context.Context, pool, identity, returnAddress string) (*Match, error) {
	key := ticketKeyPrefix + pool

	raw, err := q.client.Get(ctx, key)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("read waiting ticket: %w", err)
	}

	if err == nil {
		var ticket models.WaitingTicket
		// A corrupt or self-owned ticket is not a genuine pairing;
		// fall through and take the slot ourselves.
		if jsonErr := json.Unmarshal([]byte(raw), &ticket); jsonErr == nil &&
			ticket.Identity != identity &&
			time.Since(ticket.CreatedAt) < q.ttl {

			if err := q.client.Del(ctx, key); err != nil {
				return nil, fmt.Errorf("consume waiting ticket: %w", err)
			}
			return &Match{
				RoomKey:         newRoomKey(),
				Opponent:        ticket.Identity,
				OpponentAddress: ticket.ReturnAddress,
			}, nil
		}
	}

	ticket := models.WaitingTicket{
		Identity:      identity,
		ReturnAddress: returnAddress,
		CreatedAt:     time.Now(),
	}
	data, _ := json.Marshal(ticket)
	if err := q.client.Set(ctx, key, string(data), q.ttl); err != nil {
		return nil, fmt.Errorf("write waiting ticket: %w", err)
	}
	return nil, nil
}

// Cancel removes the pool's ticket, but only while it still belongs
// to the given identity. A waiter who matched in the interim must not
// lose someone else's ticket.
func (q *Queue) Cancel(ctx context.Context, pool, identity string) error {
	key := ticketKeyPrefix + pool

	raw, err := q.client.Get(ctx, key)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	var ticket models.WaitingTicket
	if err := json.Unmarshal([]byte(raw), &ticket); err != nil || ticket.Identity != identity {
		return nil
	}
	return q.client.Del(ctx, key)
}

// newRoomKey allocates a random key for a matchmade room.
func newRoomKey() string {
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return hex.EncodeToString(sum[:8])
}
