package redis

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrWong99/dbbridge/internal/store"
)

// DefaultPattern matches every key.
const DefaultPattern = "*"

// MaxExpireSeconds is the longest expiry a command can carry. go-redis
// converts seconds through [time.Duration], which overflows beyond it.
const MaxExpireSeconds = math.MaxInt64 / int64(time.Second)

// ErrExpireRange rejects an expiry whose magnitude exceeds
// [MaxExpireSeconds]. No command is sent, so the key is left as it was.
var ErrExpireRange = errors.New("expire time out of range")

// Get returns the value stored at key. found is false when the key does not
// exist; that is not an error.
func (s *Store) Get(ctx context.Context, key string) (value string, found bool, err error) {
	c, err := s.currentClient()
	if err != nil {
		return "", false, err
	}
	v, err := c.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, opErr("get", err)
	}
	return v, true, nil
}

// Set stores value at key unconditionally. A positive expirationSeconds is
// applied in the same SET command (EX), so the key never exists without
// its expiry.
func (s *Store) Set(ctx context.Context, key, value string, expirationSeconds int64) error {
	if expirationSeconds > MaxExpireSeconds {
		return opErr("set", ErrExpireRange)
	}
	c, err := s.currentClient()
	if err != nil {
		return err
	}
	var ttl time.Duration
	if expirationSeconds > 0 {
		ttl = time.Duration(expirationSeconds) * time.Second
	}
	if err := c.Set(ctx, key, value, ttl).Err(); err != nil {
		return opErr("set", err)
	}
	return nil
}

// Del deletes keys and returns how many were actually removed.
func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	c, err := s.currentClient()
	if err != nil {
		return 0, err
	}
	n, err := c.Del(ctx, keys...).Result()
	if err != nil {
		return 0, opErr("del", err)
	}
	return n, nil
}

// Exists returns how many of keys are present. Repeated keys are counted
// once per occurrence, as the server does.
func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	c, err := s.currentClient()
	if err != nil {
		return 0, err
	}
	n, err := c.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, opErr("exists", err)
	}
	return n, nil
}

// Keys returns every key matching the glob pattern; an empty pattern means
// [DefaultPattern]. KEYS walks the whole keyspace in one blocking call and
// is not meant for large databases.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	c, err := s.currentClient()
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	keys, err := c.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, opErr("keys", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// TTL returns the remaining time to live of key in seconds, or the server's
// sentinel: -1 when the key has no expiry, -2 when it does not exist.
func (s *Store) TTL(ctx context.Context, key string) (int64, error) {
	c, err := s.currentClient()
	if err != nil {
		return 0, err
	}
	d, err := c.TTL(ctx, key).Result()
	if err != nil {
		return 0, opErr("ttl", err)
	}
	// go-redis passes the negative sentinels through unscaled.
	if d < 0 {
		return int64(d), nil
	}
	return int64(d / time.Second), nil
}

// Expire sets or replaces the expiry of key. It reports whether the key
// existed and was updated. A non-positive seconds deletes the key, as
// Redis does.
func (s *Store) Expire(ctx context.Context, key string, seconds int64) (bool, error) {
	if seconds > MaxExpireSeconds || seconds < -MaxExpireSeconds {
		return false, opErr("expire", ErrExpireRange)
	}
	c, err := s.currentClient()
	if err != nil {
		return false, err
	}
	ok, err := c.Expire(ctx, key, time.Duration(seconds)*time.Second).Result()
	if err != nil {
		return false, opErr("expire", err)
	}
	return ok, nil
}

// GetAll lists the keys matching pattern and then fetches each one. The two
// steps are not atomic: keys deleted in between are left out and values
// written in between may be newer than the listing.
func (s *Store) GetAll(ctx context.Context, pattern string) (map[string]string, error) {
	keys, err := s.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, found, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if found {
			out[k] = v
		}
	}
	return out, nil
}

// Info returns the server's INFO text, optionally restricted to sections.
func (s *Store) Info(ctx context.Context, sections ...string) (string, error) {
	c, err := s.currentClient()
	if err != nil {
		return "", err
	}
	info, err := c.Info(ctx, sections...).Result()
	if err != nil {
		return "", opErr("info", err)
	}
	return info, nil
}

// Ping round-trips a PING to the server.
func (s *Store) Ping(ctx context.Context) error {
	c, err := s.currentClient()
	if err != nil {
		return err
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return opErr("ping", err)
	}
	return nil
}

func opErr(op string, err error) error {
	slog.Warn("redis store: command error", "op", op, "err", err)
	return &store.QueryError{Backend: backendName, Op: op, Err: err}
}
