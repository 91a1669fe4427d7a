// matchmaking/handler.go
package matchmaking

import (
	"context"
	"encoding/json"

	"github.com/wfunc/duelhub/broadcast"
	"github.com/wfunc/duelhub/logger"
	"github.com/wfunc/duelhub/network"
	"github.com/wfunc/duelhub/models"
	"github.com/wfunc/duelhub/session"
)

// Handler serves one matchmaking connection. On connect it either
// pairs the seeker with the current waiter or parks it as the new
// waiter; a parked seeker is reached asynchronously through its
// return-address group when an opponent arrives.
type Handler struct {
	sess   *session.Session
	queue  *Queue
	fabric broadcast.Fabric
	pool   string

	addr    string
	matched bool
}

func NewHandler(sess *session.Session, queue *Queue, fabric broadcast.Fabric, pool string) *Handler {
	return &Handler{
		sess:   sess,
		queue:  queue,
		fabric: fabric,
		pool:   pool,
		addr:   ReturnAddress(sess.Identity),
	}
}

// ID implements broadcast.Subscriber.
func (h *Handler) ID() string { return h.sess.ID }

// Deliver implements broadcast.Subscriber: forwards a pairing notice
// to the parked seeker's connection.
func (h *Handler) Deliver(ev *broadcast.Event) {
	if ev.Type != network.MsgMatchFound {
		return
	}
	var found models.MatchFound
	if err := json.Unmarshal(ev.Data, &found); err != nil {
		logger.Log.Warnf("Session %s: malformed match notice: %v", h.sess.ID, err)
		return
	}
	if err := h.sess.Send(&found); err != nil {
		logger.Log.Warnf("Session %s: failed to deliver match notice: %v", h.sess.ID, err)
	}
}

// Connect runs the pairing attempt for a fresh connection.
func (h *Handler) Connect(ctx context.Context) error {
	h.fabric.Join(h.addr, h)

	match, err := h.queue.TryMatch(ctx, h.pool, h.sess.Identity, h.addr)
	if err != nil {
		h.sess.Send(network.NewError("matchmaking unavailable"))
		return err
	}

	if match == nil {
		logger.Log.Infof("Session %s waiting for an opponent in pool %s", h.sess.ID, h.pool)
		return h.sess.Send(map[string]string{"type": network.MsgWaiting, "pool": h.pool})
	}

	logger.Log.Infof("Session %s matched with %s in room %s", h.sess.ID, match.Opponent, match.RoomKey)
	h.matched = true

	// The consumer learns the room synchronously, the waiter through
	// its return address.
	if err := h.sess.Send(&models.MatchFound{
		Type:     network.MsgMatchFound,
		RoomKey:  match.RoomKey,
		Game:     h.pool,
		Opponent: match.Opponent,
	}); err != nil {
		return err
	}

	notice, _ := json.Marshal(&models.MatchFound{
		Type:     network.MsgMatchFound,
		RoomKey:  match.RoomKey,
		Game:     h.pool,
		Opponent: h.sess.Identity,
	})
	return h.fabric.Publish(ctx, &broadcast.Event{
		Type:   network.MsgMatchFound,
		Group:  match.OpponentAddress,
		Origin: h.sess.ID,
		Data:   notice,
	})
}

// Matched reports whether Connect ended in a pairing.
func (h *Handler) Matched() bool { return h.matched }

// Disconnect tears the seeker down, deleting its ticket only if it is
// still the one waiting.
func (h *Handler) Disconnect(ctx context.Context) {
	if err := h.queue.Cancel(ctx, h.pool, h.sess.Identity); err != nil {
		logger.Log.Warnf("Session %s: ticket cancel failed: %v", h.sess.ID, err)
	}
	h.fabric.Leave(h.addr, h)
}
