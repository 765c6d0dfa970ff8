// Package redisstore keeps short-lived counters in Redis. It backs the
// failed-login throttle; nothing here is needed for correctness.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb    *redis.Client
	prefix string
}

func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(cctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, prefix: "localchat:"}
}

func (s *Store) failKey(username string) string {
	return fmt.Sprintf("%slogin_fail:%s", s.prefix, username)
}

// FailedLogins returns the current failure count for username.
func (s *Store) FailedLogins(ctx context.Context, username string) (int64, error) {
	n, err := s.rdb.Get(ctx, s.failKey(username)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// RecordFailedLogin bumps the counter; the window starts at the first failure.
func (s *Store) RecordFailedLogin(ctx context.Context, username string, window time.Duration) (int64, error) {
	key := s.failKey(username)
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *Store) ResetFailedLogins(ctx context.Context, username string) error {
	return s.rdb.Del(ctx, s.failKey(username)).Err()
}

// LoginThrottle blocks a username after MaxFailures failed logins within Window.
type LoginThrottle struct {
	Store       *Store
	MaxFailures int64
	Window      time.Duration
}

func (t *LoginThrottle) Allow(ctx context.Context, username string) (bool, error) {
	n, err := t.Store.FailedLogins(ctx, username)
	if err != nil {
		return false, err
	}
	return n < t.MaxFailures, nil
}

func (t *LoginThrottle) Failure(ctx context.Context, username string) error {
	_, err := t.Store.RecordFailedLogin(ctx, username, t.Window)
	return err
}

func (t *LoginThrottle) Success(ctx context.Context, username string) error {
	return t.Store.ResetFailedLogins(ctx, username)
}
