package store

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Options selects and configures a storage backend.
type Options struct {
	Backend        string
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string
	SQLitePath     string
}

// Open connects the configured backend and verifies it answers a ping.
func Open(ctx context.Context, opts Options) (Backend, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case "", BackendMemory:
		return NewMemoryStorage(), nil

	case BackendRedis:
		redisOptions, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOptions)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Println("level=info component=store msg=\"redis connected\"")
		return NewRedisStorage(client, opts.RedisKeyPrefix), nil

	case BackendPostgres:
		poolConfig, err := pgxpool.ParseConfig(opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		poolConfig.MaxConns = 20
		poolConfig.MinConns = 2
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute
		// Disable prepared statement caching to prevent conflicts
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		pg := NewPostgresStorage(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure wallet_storage schema: %w", err)
		}
		log.Println("level=info component=store msg=\"database connected\"")
		return pg, nil

	case BackendSQLite:
		s, err := OpenSQLiteStorage(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("level=info component=store msg=\"sqlite opened\" path=%s", opts.SQLitePath)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
