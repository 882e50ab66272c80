package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	OpsPort   string `env:"OPS_PORT,  default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	// SyncBackend selects the replication collaborator: "mongo" for a
	// MongoDB replica set with change streams, "loopback" for the
	// in-process hub (offline demo).
	SyncBackend string `env:"SYNC_BACKEND, default=loopback"`

	// OutboundWorkers sizes the outbound propagation pool.
	OutboundWorkers int `env:"OUTBOUND_WORKERS, default=4"`

	// Seed populates demo locations and one job at startup.
	Seed bool `env:"SEED_DEMO_DATA, default=false"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=job_tracker"`
}

type RedisConfig struct {
	// Addr empty means no Redis: inbound dedup falls back to memory.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
