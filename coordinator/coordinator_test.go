// coordinator/coordinator_test.go
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/duelhub/broadcast"
	"github.com/wfunc/duelhub/game"
	"github.com/wfunc/duelhub/logger"
	"github.com/wfunc/duelhub/models"
	"github.com/wfunc/duelhub/persistence"
	"github.com/wfunc/duelhub/rating"
	"github.com/wfunc/duelhub/session"
	"github.com/wfunc/duelhub/store"
)

func init() {
	logger.Init()
}

// mockConn records every outbound frame as its JSON object form.
type mockConn struct {
	sent []map[string]any
}

func (m *mockConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	m.sent = append(m.sent, frame)
	return nil
}

func (m *mockConn) ReadMessage() ([]byte, error)      { return nil, nil }
func (m *mockConn) Close() error                      { return nil }
func (m *mockConn) RemoteAddr() net.Addr              { return &net.TCPAddr{} }
func (m *mockConn) SetReadDeadline(t time.Time) error { return nil }

func (m *mockConn) last() map[string]any {
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockConn) lastOfType(typ string) map[string]any {
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i]["type"] == typ {
			return m.sent[i]
		}
	}
	return nil
}

func (m *mockConn) countOfType(typ string) int {
	n := 0
	for _, frame := range m.sent {
		if frame["type"] == typ {
			n++
		}
	}
	return n
}

// flakyClient wraps the in-memory store client with a failure switch.
type flakyClient struct {
	inner *store.MemoryClient
	down  bool
}

func (f *flakyClient) Get(ctx context.Context, key string) (string, error) {
	if f.down {
		return "", errors.New("store down")
	}
	return f.inner.Get(ctx, key)
}

func (f *flakyClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.down {
		return errors.New("store down")
	}
	return f.inner.Set(ctx, key, value, ttl)
}

func (f *flakyClient) Del(ctx context.Context, key string) error {
	if f.down {
		return errors.New("store down")
	}
	return f.inner.Del(ctx, key)
}

// fakeDB is an in-memory profile store that counts rating
// applications.
type fakeDB struct {
	ratings    map[string]int
	applyCalls int
	records    []*models.GormGameRecord
}

func newFakeDB() *fakeDB {
	return &fakeDB{ratings: make(map[string]int)}
}

func (f *fakeDB) GetRating(ctx context.Context, userID string) (int, error) {
	if r, ok := f.ratings[userID]; ok {
		return r, nil
	}
	return persistence.DefaultRating, nil
}

func (f *fakeDB) ApplyResult(ctx context.Context, winnerID, loserID string, delta int) (int, int, error) {
	f.applyCalls++
	w, _ := f.GetRating(ctx, winnerID)
	l, _ := f.GetRating(ctx, loserID)
	w += delta
	if l -= delta; l < 0 {
		l = 0
	}
	f.ratings[winnerID] = w
	f.ratings[loserID] = l
	return w, l, nil
}

func (f *fakeDB) SaveGameRecord(ctx context.Context, rec *models.GormGameRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeDB) GetProfileStats(ctx context.Context, userID string) (*models.ProfileStats, error) {
	return &models.ProfileStats{}, nil
}

func (f *fakeDB) Close() error { return nil }

type fixture struct {
	client *flakyClient
	rooms  *store.RoomStore
	hub    *broadcast.Hub
	db     *fakeDB
	rater  *rating.Updater
}

func newFixture() *fixture {
	client := &flakyClient{inner: store.NewMemoryClient()}
	db := newFakeDB()
	return &fixture{
		client: client,
		rooms:  store.NewRoomStore(client, time.Minute),
		hub:    broadcast.NewHub(),
		db:     db,
		rater:  rating.NewUpdater(db, 16),
	}
}

func (f *fixture) join(t *testing.T, sessID, identity, kind, roomKey string) (*Coordinator, *mockConn) {
	t.Helper()
	engine, ok := game.Lookup(kind)
	require.True(t, ok)

	conn := &mockConn{}
	sess := session.NewSession(sessID, conn)
	sess.Identity = identity

	c := New(sess, engine, roomKey, f.rooms, f.hub, f.rater, false)
	require.NoError(t, c.Connect(context.Background()))
	return c, conn
}

func move(c *Coordinator, position int) {
	raw, _ := json.Marshal(map[string]any{"type": "move", "position": position})
	c.Receive(context.Background(), raw)
}

func TestConnectAssignsSeatsAndStartsGame(t *testing.T) {
	f := newFixture()

	_, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	state := xConn.last()
	assert.Equal(t, "game_state", state["type"])
	assert.Equal(t, "X", state["your_seat"])
	assert.Equal(t, 0, xConn.countOfType("game_start"))

	_, yConn := f.join(t, "s2", "bob", game.KindTicTacToe, "r1")
	assert.Equal(t, "O", yConn.last()["your_seat"])
	assert.Equal(t, 1, xConn.countOfType("game_start"))
	assert.Equal(t, 1, yConn.countOfType("game_start"))
}

func TestConnectRejectsThirdIdentity(t *testing.T) {
	f := newFixture()
	f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	engine, _ := game.Lookup(game.KindTicTacToe)
	conn := &mockConn{}
	sess := session.NewSession("s3", conn)
	sess.Identity = "carol"
	c := New(sess, engine, "r1", f.rooms, f.hub, f.rater, false)

	require.Error(t, c.Connect(context.Background()))
	assert.Equal(t, "error", conn.last()["type"])
	assert.Equal(t, 2, f.hub.GroupSize("r1"))
}

func TestReconnectKeepsSeat(t *testing.T) {
	f := newFixture()
	f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	_, conn := f.join(t, "s3", "alice", game.KindTicTacToe, "r1")
	assert.Equal(t, "X", conn.last()["your_seat"])
	assert.Equal(t, 0, conn.countOfType("game_start"))
}

func TestMoveTurnExclusivity(t *testing.T) {
	f := newFixture()
	xc, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	yc, yConn := f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	before := len(yConn.sent)
	move(yc, 0)
	assert.Len(t, yConn.sent, before, "out-of-turn move must be a silent no-op")

	move(xc, 4)
	state := yConn.last()
	assert.Equal(t, "game_state", state["type"])
	assert.Equal(t, "O", state["turn_owner"])

	before = len(xConn.sent)
	move(xc, 0)
	assert.Len(t, xConn.sent, before, "second move in a row must be a silent no-op")
}

func TestMoveBeforeOpponentJoinsIgnored(t *testing.T) {
	f := newFixture()
	xc, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")

	before := len(xConn.sent)
	move(xc, 4)
	assert.Len(t, xConn.sent, before)
}

func TestMalformedPayloadGetsErrorEvent(t *testing.T) {
	f := newFixture()
	xc, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")

	xc.Receive(context.Background(), []byte("{not json"))
	assert.Equal(t, "error", xConn.last()["type"])

	xc.Receive(context.Background(), []byte(`{"type":"teleport"}`))
	assert.Equal(t, "error", xConn.last()["type"])
}

func TestStoreFailureGetsErrorEvent(t *testing.T) {
	f := newFixture()
	xc, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	f.client.down = true
	move(xc, 4)
	assert.Equal(t, "error", xConn.last()["type"])

	// The store kept the previous state, so once it recovers the
	// move is still X's to make.
	f.client.down = false
	move(xc, 4)
	assert.Equal(t, "O", xConn.last()["turn_owner"])
}

func TestWinSettlesExactlyOnce(t *testing.T) {
	f := newFixture()
	xc, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	yc, yConn := f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	// X takes the top row.
	move(xc, 0)
	move(yc, 3)
	move(xc, 1)
	move(yc, 4)
	move(xc, 2)

	state := yConn.lastOfType("game_state")
	require.NotNil(t, state)
	assert.Equal(t, true, state["terminal"])
	assert.Equal(t, "X", state["outcome"])

	assert.Equal(t, 1, f.db.applyCalls)
	assert.Equal(t, persistence.DefaultRating+16, f.db.ratings["alice"])
	assert.Equal(t, persistence.DefaultRating-16, f.db.ratings["bob"])
	require.Len(t, f.db.records, 1)
	assert.Equal(t, "alice", f.db.records[0].Winner)

	update := xConn.lastOfType("rating_update")
	require.NotNil(t, update)
	assert.Equal(t, 1, yConn.countOfType("rating_update"))

	// A post-game move and even the loser's disconnect must not
	// settle again.
	move(xc, 5)
	yc.Disconnect(context.Background())
	assert.Equal(t, 1, f.db.applyCalls)
	assert.Len(t, f.db.records, 1)
}

func TestDrawRecordsWithoutRatingChange(t *testing.T) {
	f := newFixture()
	xc, _ := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	yc, yConn := f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	// X X O / O O X / X O X, no line for either seat.
	for _, m := range []struct {
		c   *Coordinator
		pos int
	}{
		{xc, 0}, {yc, 4}, {xc, 1}, {yc, 2}, {xc, 5},
		{yc, 3}, {xc, 6}, {yc, 7}, {xc, 8},
	} {
		move(m.c, m.pos)
	}

	state := yConn.lastOfType("game_state")
	require.NotNil(t, state)
	assert.Equal(t, true, state["terminal"])
	assert.Equal(t, models.OutcomeDraw, state["outcome"])

	assert.Equal(t, 0, f.db.applyCalls)
	require.Len(t, f.db.records, 1)
	assert.Equal(t, "", f.db.records[0].Winner)
	assert.Equal(t, 0, yConn.countOfType("rating_update"))
}

func TestDisconnectForfeitsLiveRoom(t *testing.T) {
	f := newFixture()
	xc, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	yc, _ := f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	move(xc, 4)
	yc.Disconnect(context.Background())

	retired := xConn.lastOfType("opponent_retired")
	require.NotNil(t, retired)
	assert.Equal(t, true, retired["terminal"])
	assert.Equal(t, "X", retired["outcome"])

	assert.Equal(t, 1, f.db.applyCalls)
	assert.Equal(t, persistence.DefaultRating+16, f.db.ratings["alice"])

	snap, err := f.rooms.Load(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, snap.Settled)
}

func TestSurrenderNotifiesOpponentOnly(t *testing.T) {
	f := newFixture()
	xc, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	_, yConn := f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	xc.Receive(context.Background(), []byte(`{"type":"surrender"}`))

	assert.Equal(t, 0, xConn.countOfType("opponent_retired"))
	retired := yConn.lastOfType("opponent_retired")
	require.NotNil(t, retired)
	assert.Equal(t, "O", retired["outcome"])
	assert.Equal(t, 1, f.db.applyCalls)
	assert.Equal(t, persistence.DefaultRating+16, f.db.ratings["bob"])
}

func TestResetNeedsBothIdentities(t *testing.T) {
	f := newFixture()
	xc, xConn := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	yc, yConn := f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	move(xc, 4)
	xc.Receive(context.Background(), []byte(`{"type":"reset"}`))

	pending := yConn.lastOfType("reset_pending")
	require.NotNil(t, pending)
	assert.Equal(t, []any{"alice"}, pending["reset_votes"])

	// Repeat votes from the same identity do not advance the quorum.
	xc.Receive(context.Background(), []byte(`{"type":"reset"}`))
	snap, err := f.rooms.Load(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, snap.PendingAcks)

	yc.Receive(context.Background(), []byte(`{"type":"reset"}`))
	state := xConn.lastOfType("game_state")
	require.NotNil(t, state)
	assert.Equal(t, false, state["terminal"])
	assert.Equal(t, "X", state["turn_owner"])
	assert.Nil(t, state["reset_votes"])

	snap, err = f.rooms.Load(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, snap.Settled)
	assert.Empty(t, snap.PendingAcks)
}

func TestResetAfterWinAllowsSecondSettlement(t *testing.T) {
	f := newFixture()
	xc, _ := f.join(t, "s1", "alice", game.KindTicTacToe, "r1")
	yc, _ := f.join(t, "s2", "bob", game.KindTicTacToe, "r1")

	move(xc, 0)
	move(yc, 3)
	move(xc, 1)
	move(yc, 4)
	move(xc, 2)
	require.Equal(t, 1, f.db.applyCalls)

	xc.Receive(context.Background(), []byte(`{"type":"reset"}`))
	yc.Receive(context.Background(), []byte(`{"type":"reset"}`))

	move(xc, 0)
	move(yc, 3)
	move(xc, 1)
	move(yc, 4)
	move(xc, 2)
	assert.Equal(t, 2, f.db.applyCalls)
	assert.Len(t, f.db.records, 2)
}

func TestHiddenStateStaysPerSeat(t *testing.T) {
	f := newFixture()
	xc, _ := f.join(t, "s1", "alice", game.KindHitAndBlow, "hb1")
	_, yConn := f.join(t, "s2", "bob", game.KindHitAndBlow, "hb1")

	raw, _ := json.Marshal(map[string]any{"type": "set_secret", "digits": []int{1, 2, 3}})
	xc.Receive(context.Background(), raw)

	state := yConn.lastOfType("game_state")
	require.NotNil(t, state)
	inner, ok := state["state"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, inner["my_secret"], "opponent must not see the secret digits")
	set, ok := inner["secret_set"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, set["X"])
}

func TestECardRoundResultBroadcast(t *testing.T) {
	f := newFixture()
	xc, _ := f.join(t, "s1", "alice", game.KindECard, "e1")
	yc, yConn := f.join(t, "s2", "bob", game.KindECard, "e1")

	xc.Receive(context.Background(), []byte(`{"type":"play_card","card":"E"}`))
	assert.Equal(t, 0, yConn.countOfType("round_result"), "round resolves only when both have played")

	yc.Receive(context.Background(), []byte(`{"type":"play_card","card":"S"}`))
	result := yConn.lastOfType("round_result")
	require.NotNil(t, result)

	// The slave card beats the emperor.
	state := yConn.lastOfType("game_state")
	require.NotNil(t, state)
	assert.Equal(t, true, state["terminal"])
	assert.Equal(t, "O", state["outcome"])
	assert.Equal(t, 1, f.db.applyCalls)
	assert.Equal(t, persistence.DefaultRating+16, f.db.ratings["bob"])
}
