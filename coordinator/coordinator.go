// coordinator/coordinator.go
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"

	"github.com/wfunc/duelhub/broadcast"
	"github.com/wfunc/duelhub/game"
	"github.com/wfunc/duelhub/logger"
	"github.com/wfunc/duelhub/models"
	"github.com/wfunc/duelhub/network"
	"github.com/wfunc/duelhub/rating"
	"github.com/wfunc/duelhub/session"
	"github.com/wfunc/duelhub/store"
)

// Coordinator drives one game-room connection. It owns no room state:
// every inbound event re-reads the authoritative snapshot from the
// shared store, validates identity and turn ownership, runs the rule
// engine, persists the replacement snapshot and fans the outcome out
// through the broadcast fabric. Instances on different processes
// coordinate only through the store and the fabric.
type Coordinator struct {
	sess           *session.Session
	engine         game.Engine
	roomKey        string
	rooms          *store.RoomStore
	fabric         broadcast.Fabric
	rater          *rating.Updater
	randomizeSeats bool
}

func New(sess *session.Session, engine game.Engine, roomKey string, rooms *store.RoomStore,
	fabric broadcast.Fabric, rater *rating.Updater, randomizeSeats bool) *Coordinator {
	return &Coordinator{
		sess:           sess,
		engine:         engine,
		roomKey:        roomKey,
		rooms:          rooms,
		fabric:         fabric,
		rater:          rater,
		randomizeSeats: randomizeSeats,
	}
}

// ID implements broadcast.Subscriber.
func (c *Coordinator) ID() string { return c.sess.ID }

// Deliver implements broadcast.Subscriber: renders a fabric event for
// this connection. Engine state is redacted for the receiving seat, so
// hidden information never reaches the wrong socket.
func (c *Coordinator) Deliver(ev *broadcast.Event) {
	switch ev.Type {
	case network.MsgGameState, network.MsgGameStart, network.MsgResetPending:
		c.send(c.view(ev.Type, ev.Snapshot))
	case network.MsgOpponentRetired:
		// The initiator does not get the bounce-back of its own
		// departure notice.
		if ev.Origin == c.sess.ID {
			return
		}
		c.send(c.view(ev.Type, ev.Snapshot))
	case network.MsgRoundResult:
		c.send(&roundResult{Type: network.MsgRoundResult, Result: ev.Data})
	case network.MsgRatingUpdate:
		var update models.RatingUpdate
		if err := json.Unmarshal(ev.Data, &update); err != nil {
			logger.Log.Warnf("Session %s: malformed rating update: %v", c.sess.ID, err)
			return
		}
		c.send(&update)
	}
}

type roundResult struct {
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result"`
}

// Connect joins the room group and claims a seat in the snapshot,
// creating the room on first arrival. A second distinct identity
// fills the room and triggers the one-time game_start broadcast.
func (c *Coordinator) Connect(ctx context.Context) error {
	c.fabric.Join(c.roomKey, c)

	snap, err := c.rooms.Load(ctx, c.roomKey)
	switch err {
	case nil:
	case store.ErrNotFound:
		state, first := c.engine.NewState()
		snap = &models.RoomSnapshot{
			RoomKey:   c.roomKey,
			Game:      c.engine.Kind(),
			State:     state,
			Seats:     map[game.Seat]string{},
			TurnOwner: first,
		}
	default:
		logger.Log.Errorf("Session %s: load room %s: %v", c.sess.ID, c.roomKey, err)
		c.send(network.NewError("state store unavailable"))
		c.fabric.Leave(c.roomKey, c)
		return err
	}

	started, err := c.takeSeat(snap)
	if err != nil {
		c.send(network.NewError(err.Error()))
		c.fabric.Leave(c.roomKey, c)
		return err
	}

	if err := c.rooms.Save(ctx, snap); err != nil {
		logger.Log.Errorf("Session %s: save room %s: %v", c.sess.ID, c.roomKey, err)
		c.send(network.NewError("state store unavailable"))
		c.fabric.Leave(c.roomKey, c)
		return err
	}
	c.sess.RoomKey = c.roomKey

	if err := c.publish(ctx, network.MsgGameState, snap); err != nil {
		return err
	}
	if started {
		return c.publish(ctx, network.MsgGameStart, snap)
	}
	return nil
}

// takeSeat reserves a seat for the session's identity, reporting
// whether this arrival filled the room.
func (c *Coordinator) takeSeat(snap *models.RoomSnapshot) (started bool, err error) {
	if snap.SeatOf(c.sess.Identity) != game.SeatNone {
		// Reconnect of a seated identity; it just gets the latest
		// snapshot.
		return false, nil
	}

	switch {
	case snap.Seats[game.SeatFirst] == "":
		snap.Seats[game.SeatFirst] = c.sess.Identity
		return false, nil
	case snap.Seats[game.SeatSecond] == "":
		snap.Seats[game.SeatSecond] = c.sess.Identity
		if c.randomizeSeats && rand.Intn(2) == 1 {
			snap.Seats[game.SeatFirst], snap.Seats[game.SeatSecond] =
				snap.Seats[game.SeatSecond], snap.Seats[game.SeatFirst]
		}
		return true, nil
	default:
		return false, errRoomFull
	}
}

// Receive dispatches one inbound frame.
func (c *Coordinator) Receive(ctx context.Context, raw []byte) {
	c.sess.Touch()

	typ, payload, err := network.ParseInbound(raw)
	if err != nil || typ == "" {
		c.send(network.NewError("malformed message"))
		return
	}

	switch typ {
	case network.MsgMove, network.MsgPlayCard, network.MsgGuess, network.MsgSetSecret:
		c.handleAction(ctx, typ, payload)
	case network.MsgReset:
		c.handleReset(ctx)
	case network.MsgSurrender:
		c.handleSurrender(ctx)
	default:
		c.send(network.NewError("unknown message type: " + typ))
	}
}

func (c *Coordinator) handleAction(ctx context.Context, action string, payload json.RawMessage) {
	snap := c.load(ctx)
	if snap == nil {
		return
	}

	// Invalid moves are benign client races, not failures: terminal
	// room, missing opponent, foreign identity and stolen turns all
	// no-op without an error event.
	if snap.Terminal || !snap.Full() {
		return
	}
	seat := snap.SeatOf(c.sess.Identity)
	if seat == game.SeatNone {
		return
	}
	if snap.TurnOwner != game.SeatNone && seat != snap.TurnOwner {
		return
	}

	res, err := c.engine.Apply(snap.State, seat, action, payload)
	if err == game.ErrInvalidMove {
		return
	}
	if err != nil {
		logger.Log.Errorf("Session %s: engine %s apply: %v", c.sess.ID, c.engine.Kind(), err)
		c.send(network.NewError("move could not be applied"))
		return
	}

	snap.State = res.State
	snap.TurnOwner = res.Next

	var ratings map[string]int
	if res.Verdict.Terminal {
		snap.Terminal = true
		snap.TurnOwner = game.SeatNone
		if res.Verdict.Draw {
			snap.Outcome = models.OutcomeDraw
		} else {
			snap.Outcome = string(res.Verdict.Winner)
		}
		ratings = c.settle(ctx, snap)
	}

	if !c.save(ctx, snap) {
		return
	}

	c.publish(ctx, network.MsgGameState, snap)
	for _, notice := range res.Notices {
		c.fabric.Publish(ctx, &broadcast.Event{
			Type:   notice.Type,
			Group:  c.roomKey,
			Origin: c.sess.ID,
			Data:   notice.Data,
		})
	}
	c.publishRatings(ctx, ratings)
}

func (c *Coordinator) handleSurrender(ctx context.Context) {
	snap := c.load(ctx)
	if snap == nil {
		return
	}
	if snap.Terminal || !snap.Full() {
		return
	}
	seat := snap.SeatOf(c.sess.Identity)
	if seat == game.SeatNone {
		return
	}

	ratings := c.conclude(ctx, snap, game.Opponent(seat))
	if !c.save(ctx, snap) {
		return
	}

	c.fabric.Publish(ctx, &broadcast.Event{
		Type:     network.MsgOpponentRetired,
		Group:    c.roomKey,
		Origin:   c.sess.ID,
		Snapshot: snap,
	})
	c.publishRatings(ctx, ratings)
}

func (c *Coordinator) handleReset(ctx context.Context) {
	snap := c.load(ctx)
	if snap == nil {
		return
	}
	if !snap.Full() {
		return
	}
	seat := snap.SeatOf(c.sess.Identity)
	if seat == game.SeatNone || snap.HasAck(c.sess.Identity) {
		return
	}

	snap.PendingAcks = append(snap.PendingAcks, c.sess.Identity)

	// Quorum is both seat identities since the last game start.
	if snap.HasAck(snap.Seats[game.SeatFirst]) && snap.HasAck(snap.Seats[game.SeatSecond]) {
		state, first := c.engine.NewState()
		snap.State = state
		snap.TurnOwner = first
		snap.Terminal = false
		snap.Outcome = ""
		snap.Settled = false
		snap.PendingAcks = nil

		if c.save(ctx, snap) {
			c.publish(ctx, network.MsgGameState, snap)
		}
		return
	}

	if c.save(ctx, snap) {
		c.publish(ctx, network.MsgResetPending, snap)
	}
}

// Disconnect treats an abrupt departure from a live two-seat room as
// a forfeit, then leaves the broadcast group.
func (c *Coordinator) Disconnect(ctx context.Context) {
	defer func() {
		c.fabric.Leave(c.roomKey, c)
		c.sess.RoomKey = ""
	}()

	snap, err := c.rooms.Load(ctx, c.roomKey)
	if err != nil {
		if err != store.ErrNotFound {
			logger.Log.Errorf("Session %s: load room %s on disconnect: %v", c.sess.ID, c.roomKey, err)
		}
		return
	}
	if snap.Terminal || !snap.Full() {
		return
	}
	seat := snap.SeatOf(c.sess.Identity)
	if seat == game.SeatNone {
		return
	}

	logger.Log.Infof("Session %s left live room %s, forfeiting for %s", c.sess.ID, c.roomKey, c.sess.Identity)

	ratings := c.conclude(ctx, snap, game.Opponent(seat))
	if err := c.rooms.Save(ctx, snap); err != nil {
		logger.Log.Errorf("Session %s: save room %s on disconnect: %v", c.sess.ID, c.roomKey, err)
		return
	}

	c.fabric.Publish(ctx, &broadcast.Event{
		Type:     network.MsgOpponentRetired,
		Group:    c.roomKey,
		Origin:   c.sess.ID,
		Snapshot: snap,
	})
	c.publishRatings(ctx, ratings)
}

// conclude marks the snapshot terminal with the given winner and runs
// the one-time settlement.
func (c *Coordinator) conclude(ctx context.Context, snap *models.RoomSnapshot, winner game.Seat) map[string]int {
	snap.Terminal = true
	snap.TurnOwner = game.SeatNone
	snap.Outcome = string(winner)
	return c.settle(ctx, snap)
}

// settle applies the rating consequence and game record for a room
// that just became terminal. The settled flag flips exactly once per
// terminal episode; rating storage failures are logged and swallowed
// so the game outcome is never blocked on the profile store.
func (c *Coordinator) settle(ctx context.Context, snap *models.RoomSnapshot) map[string]int {
	if snap.Settled {
		return nil
	}
	snap.Settled = true

	first := snap.Seats[game.SeatFirst]
	second := snap.Seats[game.SeatSecond]

	if err := c.rater.Record(ctx, snap.RoomKey, snap.Game, first, second, winnerIdentity(snap)); err != nil {
		logger.Log.Warnf("Room %s: game record failed: %v", snap.RoomKey, err)
	}

	if snap.Outcome == models.OutcomeDraw {
		return nil
	}

	winner, loser := first, second
	if snap.Outcome == string(game.SeatSecond) {
		winner, loser = second, first
	}

	ratings, err := c.rater.Settle(ctx, winner, loser)
	if err != nil {
		logger.Log.Warnf("Room %s: rating settlement failed: %v", snap.RoomKey, err)
		return nil
	}
	return ratings
}

func winnerIdentity(snap *models.RoomSnapshot) string {
	switch snap.Outcome {
	case string(game.SeatFirst):
		return snap.Seats[game.SeatFirst]
	case string(game.SeatSecond):
		return snap.Seats[game.SeatSecond]
	}
	return ""
}

// load fetches the latest snapshot, translating store failures into
// error events on this connection only.
func (c *Coordinator) load(ctx context.Context) *models.RoomSnapshot {
	snap, err := c.rooms.Load(ctx, c.roomKey)
	switch err {
	case nil:
		return snap
	case store.ErrNotFound:
		c.send(network.NewError("room expired"))
	default:
		logger.Log.Errorf("Session %s: load room %s: %v", c.sess.ID, c.roomKey, err)
		c.send(network.NewError("state store unavailable"))
	}
	return nil
}

// save persists the replacement snapshot; on failure the store keeps
// the previous state and only the acting connection hears about it.
func (c *Coordinator) save(ctx context.Context, snap *models.RoomSnapshot) bool {
	if err := c.rooms.Save(ctx, snap); err != nil {
		logger.Log.Errorf("Session %s: save room %s: %v", c.sess.ID, c.roomKey, err)
		c.send(network.NewError("state store unavailable"))
		return false
	}
	return true
}

func (c *Coordinator) publish(ctx context.Context, typ string, snap *models.RoomSnapshot) error {
	return c.fabric.Publish(ctx, &broadcast.Event{
		Type:     typ,
		Group:    c.roomKey,
		Origin:   c.sess.ID,
		Snapshot: snap,
	})
}

func (c *Coordinator) publishRatings(ctx context.Context, ratings map[string]int) {
	if ratings == nil {
		return
	}
	data, _ := json.Marshal(&models.RatingUpdate{Type: network.MsgRatingUpdate, Ratings: ratings})
	c.fabric.Publish(ctx, &broadcast.Event{
		Type:   network.MsgRatingUpdate,
		Group:  c.roomKey,
		Origin: c.sess.ID,
		Data:   data,
	})
}

func (c *Coordinator) view(typ string, snap *models.RoomSnapshot) *models.RoomView {
	seat := snap.SeatOf(c.sess.Identity)
	return &models.RoomView{
		Type:       typ,
		RoomKey:    snap.RoomKey,
		Game:       snap.Game,
		Seats:      snap.Seats,
		YourSeat:   seat,
		TurnOwner:  snap.TurnOwner,
		Terminal:   snap.Terminal,
		Outcome:    snap.Outcome,
		ResetVotes: snap.PendingAcks,
		State:      c.engine.Redact(snap.State, seat),
	}
}

func (c *Coordinator) send(v any) {
	if err := c.sess.Send(v); err != nil {
		logger.Log.Warnf("Session %s: send failed: %v", c.sess.ID, err)
	}
}

var errRoomFull = errors.New("room is full")
