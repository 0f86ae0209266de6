package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/kiliankoe/flagdash/internal/game"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores rooms as `SET room:<id> <json> EX <ttl>`, shared by every
// server process pointing at the same instance.
type Redis struct {
	pool *redis.Pool
	ttl  time.Duration
}

func NewRedisPool(cfg RedisConfig) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     16,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", cfg.Addr,
				redis.DialPassword(cfg.Password),
				redis.DialDatabase(cfg.DB),
				redis.DialConnectTimeout(30*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func NewRedis(pool *redis.Pool, ttl time.Duration) *Redis {
	return &Redis{pool: pool, ttl: ttl}
}

func (r *Redis) Create(ctx context.Context, roomID string, room *game.Room) error {
	return r.Put(ctx, roomID, room)
}

func (r *Redis) Get(ctx context.Context, roomID string) (*game.Room, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis conn: %w", err)
	}
	defer conn.Close()

	b, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", Key(roomID)))
	if errors.Is(err, redis.ErrNil) {
		return nil, game.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decode(b)
}

func (r *Redis) Put(ctx context.Context, roomID string, room *game.Room) error {
	b, err := encode(room)
	if err != nil {
		return err
	}
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis conn: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "SET", Key(roomID), b, "EX", int(r.ttl/time.Second)); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.pool.Close() }
