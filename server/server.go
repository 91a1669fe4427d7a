package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/duelhub/auth"
	"github.com/wfunc/duelhub/broadcast"
	"github.com/wfunc/duelhub/coordinator"
	"github.com/wfunc/duelhub/game"
	"github.com/wfunc/duelhub/logger"
	"github.com/wfunc/duelhub/matchmaking"
	"github.com/wfunc/duelhub/monitor"
	"github.com/wfunc/duelhub/network"
	"github.com/wfunc/duelhub/persistence"
	"github.com/wfunc/duelhub/rating"
	duelhub_rpc "github.com/wfunc/duelhub/rpc"
	"github.com/wfunc/duelhub/session"
	"github.com/wfunc/duelhub/store"
	"github.com/wfunc/duelhub/timer"
)

const defaultPool = game.KindTicTacToe

// Options carries the game-facing knobs from the config file.
type Options struct {
	RoomTTL        time.Duration
	TicketTTL      time.Duration
	RatingDelta    int
	RandomizeSeats bool
	IdleTimeout    time.Duration
}

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	rooms          *store.RoomStore
	fabric         broadcast.Fabric
	hub            *broadcast.Hub
	queue          *matchmaking.Queue
	rater          *rating.Updater
	authenticator  auth.Authenticator
	mon            *monitor.Monitor
	rpcServer      *duelhub_rpc.Server
	timers         *timer.Manager
	opts           Options
	httpServer     *http.Server
	shutdownChan   chan struct{}
}

func NewGameServer(addr, rpcAddr string, db persistence.Database, client store.Client,
	fabric broadcast.Fabric, hub *broadcast.Hub, authenticator auth.Authenticator, opts Options) *GameServer {
	s := &GameServer{
		addr:           addr,
		sessionManager: session.NewManager(),
		rooms:          store.NewRoomStore(client, opts.RoomTTL),
		fabric:         fabric,
		hub:            hub,
		queue:          matchmaking.NewQueue(client, opts.TicketTTL),
		rater:          rating.NewUpdater(db, opts.RatingDelta),
		authenticator:  authenticator,
		mon:            monitor.NewMonitor("duelhub"),
		timers:         timer.NewManager(),
		opts:           opts,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.rater.Observe(s.mon.IncGamesSettled)

	rpcServer, err := duelhub_rpc.NewServer(rpcAddr, db)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	s.timers.Schedule(10*time.Second, 10*time.Second, s.refreshRoomGauge)
	if s.opts.IdleTimeout > 0 {
		s.timers.Schedule(s.opts.IdleTimeout, s.opts.IdleTimeout/2, s.sweepIdleSessions)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.mon.Handler())
	mux.HandleFunc("/ws/", s.handleWebSocket)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	logger.Log.Infof("Game server listening on %s, games: %v", s.addr, game.Kinds())
	return s.httpServer.ListenAndServe()
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	s.rpcServer.Stop()
	if s.httpServer != nil {
		s.httpServer.Close()
	}
	s.fabric.Close()
}

// handleWebSocket authenticates, resolves the route and hands the
// socket to a matchmaking handler or a room coordinator.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := s.authenticator.Authenticate(r)
	if !identity.Authenticated() {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	route, ok := parseRoute(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	sess.Identity = identity.StableID()
	s.sessionManager.Add(sess)
	s.mon.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s, identity: %s",
		wsConn.RemoteAddr(), sess.GetID(), sess.Identity)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecOnlinePlayers()
		wsConn.Close()
	}()

	if route.matchmaking {
		s.serveMatchmaking(sess, route.pool)
		return
	}
	s.serveRoom(sess, route.game, route.room)
}

type wsRoute struct {
	matchmaking bool
	pool        string
	game        string
	room        string
}

// parseRoute maps /ws/matchmaking[/{pool}], /ws/{game}/{room} and the
// /ws/game/{room} alias onto a route.
func parseRoute(path string) (wsRoute, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "ws" {
		return wsRoute{}, false
	}

	if parts[1] == "matchmaking" {
		pool := defaultPool
		if len(parts) == 3 && parts[2] != "" {
			pool = parts[2]
		} else if len(parts) > 3 {
			return wsRoute{}, false
		}
		if _, ok := game.Lookup(pool); !ok {
			return wsRoute{}, false
		}
		return wsRoute{matchmaking: true, pool: pool}, true
	}

	if len(parts) != 3 || parts[2] == "" {
		return wsRoute{}, false
	}

	kind := parts[1]
	if kind == "game" {
		kind = game.KindTicTacToe
	}
	if _, ok := game.Lookup(kind); !ok {
		return wsRoute{}, false
	}
	return wsRoute{game: kind, room: parts[2]}, true
}

func (s *GameServer) serveMatchmaking(sess *session.Session, pool string) {
	handler := matchmaking.NewHandler(sess, s.queue, s.fabric, pool)
	if err := handler.Connect(context.Background()); err != nil {
		return
	}
	if handler.Matched() {
		s.mon.IncMatchesMade()
	}
	defer handler.Disconnect(context.Background())

	// Seekers only listen; inbound frames just refresh activity.
	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			if _, err := sess.Conn.ReadMessage(); err != nil {
				return
			}
			sess.Touch()
			s.mon.IncMessagesReceived()
		}
	}
}

func (s *GameServer) serveRoom(sess *session.Session, kind, room string) {
	engine, _ := game.Lookup(kind)
	roomKey := store.RoomKeyFor(kind, room)

	coord := coordinator.New(sess, engine, roomKey, s.rooms, s.fabric, s.rater, s.opts.RandomizeSeats)
	if err := coord.Connect(context.Background()); err != nil {
		return
	}
	defer coord.Disconnect(context.Background())

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			raw, err := sess.Conn.ReadMessage()
			if err != nil {
				return
			}
			s.mon.IncMessagesReceived()
			start := time.Now()
			coord.Receive(context.Background(), raw)
			s.mon.ObserveMessageLatency(time.Since(start))
		}
	}
}

func (s *GameServer) refreshRoomGauge() {
	s.mon.SetActiveRooms(s.hub.Groups())
}

// sweepIdleSessions closes connections with no activity inside the
// idle window. The read loop unwinds and runs the normal disconnect
// path, so a live game still settles as a forfeit.
func (s *GameServer) sweepIdleSessions() {
	cutoff := time.Now().Add(-s.opts.IdleTimeout)
	for _, sess := range s.sessionManager.IdleSince(cutoff) {
		logger.Log.Infof("Session %s idle since %s, closing", sess.GetID(), sess.LastActive())
		sess.Close()
	}
}
