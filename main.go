package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/duelhub/auth"
	"github.com/wfunc/duelhub/broadcast"
	"github.com/wfunc/duelhub/config"
	"github.com/wfunc/duelhub/logger"
	"github.com/wfunc/duelhub/persistence"
	"github.com/wfunc/duelhub/server"
	"github.com/wfunc/duelhub/store"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Initialize the shared room/ticket store
	redisClient := store.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Ping(context.Background()); err != nil {
		logger.Log.Fatalf("Failed to connect to redis: %v", err)
	}

	// Initialize the broadcast fabric
	fabric, hub, err := newFabric(cfg, redisClient)
	if err != nil {
		logger.Log.Fatalf("Failed to create broadcast fabric: %v", err)
	}
	logger.Log.Infof("Broadcast fabric: %s", cfg.Broadcast.Driver)

	// Initialize Game Server
	gameServer := server.NewGameServer(
		cfg.Server.HTTPAddress,
		cfg.Server.RPCAddress,
		db,
		redisClient,
		fabric,
		hub,
		auth.NewTokenAuthenticator(cfg.Auth.Secret),
		server.Options{
			RoomTTL:        cfg.Game.RoomTTL,
			TicketTTL:      cfg.Game.TicketTTL,
			RatingDelta:    cfg.Game.RatingDelta,
			RandomizeSeats: cfg.Game.RandomizeSeats,
			IdleTimeout:    cfg.Game.IdleTimeout,
		},
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down.")
		gameServer.Shutdown()
	}()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Infof("Server stopped: %v", err)
	}
}

// newFabric builds the configured fan-out backend. The local hub is
// returned alongside because the drivers embed one for local delivery
// and the server reads its group gauge.
func newFabric(cfg *config.Config, redisClient *store.RedisClient) (broadcast.Fabric, *broadcast.Hub, error) {
	switch cfg.Broadcast.Driver {
	case "redis":
		fabric := broadcast.NewRedisFabric(redisClient.Redis())
		return fabric, fabric.Hub, nil
	case "nats":
		fabric, err := broadcast.NewNATSFabric(cfg.Broadcast.NATSUrl)
		if err != nil {
			return nil, nil, err
		}
		return fabric, fabric.Hub, nil
	default:
		hub := broadcast.NewHub()
		return hub, hub, nil
	}
}
