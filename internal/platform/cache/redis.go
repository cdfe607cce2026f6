package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis dials Redis and verifies the connection with a ping.
func ConnectRedis(ctx context.Context, opts Options, log *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	log.Info("connected to Redis", "addr", opts.Addr)
	return rdb, nil
}

func CloseRedis(rdb *redis.Client, log *slog.Logger) {
	if rdb != nil {
		rdb.Close()
		log.Info("redis connection closed")
	}
}
