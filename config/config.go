package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Game      GameConfig      `mapstructure:"game"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	HTTPAddress string `mapstructure:"http_address"`
	RPCAddress  string `mapstructure:"rpc_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BroadcastConfig selects the fan-out backend. "local" only reaches
// connections in this process; "redis" and "nats" cross processes.
type BroadcastConfig struct {
	Driver  string `mapstructure:"driver"`
	NATSUrl string `mapstructure:"nats_url"`
}

type GameConfig struct {
	RoomTTL        time.Duration `mapstructure:"room_ttl"`
	TicketTTL      time.Duration `mapstructure:"ticket_ttl"`
	RatingDelta    int           `mapstructure:"rating_delta"`
	RandomizeSeats bool          `mapstructure:"randomize_seats"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type AuthConfig struct {
	// Secret signs connection tokens. Empty secret accepts any
	// non-empty user (development mode).
	Secret string `mapstructure:"secret"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("broadcast.driver", "redis")
	viper.SetDefault("broadcast.nats_url", "nats://localhost:4222")
	viper.SetDefault("game.room_ttl", 30*time.Minute)
	viper.SetDefault("game.ticket_ttl", time.Minute)
	viper.SetDefault("game.rating_delta", 16)
	viper.SetDefault("game.randomize_seats", false)
	viper.SetDefault("game.idle_timeout", 5*time.Minute)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
