package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/wfunc/duelhub/logger"
	"github.com/wfunc/duelhub/models"
	"github.com/wfunc/duelhub/persistence"
)

// Server manages the RPC listener for operator queries.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer registers the profile service and opens the listener.
func NewServer(addr string, db persistence.Database) (*Server, error) {
	if err := rpc.Register(NewProfileService(db)); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// ProfileService exposes player profile queries over net/rpc.
type ProfileService struct {
	db persistence.Database
}

func NewProfileService(db persistence.Database) *ProfileService {
	return &ProfileService{db: db}
}

type ProfileArgs struct {
	UserID string
}

type RatingReply struct {
	UserID string
	Rating int
}

func (ps *ProfileService) GetRating(args *ProfileArgs, reply *RatingReply) error {
	rating, err := ps.db.GetRating(context.Background(), args.UserID)
	if err != nil {
		return err
	}
	reply.UserID = args.UserID
	reply.Rating = rating
	return nil
}

type StatsReply struct {
	UserID string
	Stats  models.ProfileStats
}

func (ps *ProfileService) GetProfileStats(args *ProfileArgs, reply *StatsReply) error {
	stats, err := ps.db.GetProfileStats(context.Background(), args.UserID)
	if err != nil {
		return err
	}
	reply.UserID = args.UserID
	reply.Stats = *stats
	return nil
}
