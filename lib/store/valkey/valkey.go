package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/webauth/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

// Store implements store.Interface on top of a valkey (or redis) server. Use
// it when several webauth replicas must agree on which challenge nonces have
// already been consumed.
type Store struct {
	rdb    *valkey.Client
	prefix string
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("can't delete from valkey: %w", err)
	}

	switch n {
	case 0:
		return fmt.Errorf("%w: %d key(s) deleted", store.ErrNotFound, n)
	default:
		return nil
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
		}

		return nil, fmt.Errorf("can't fetch from valkey: %w", err)
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if _, err := s.rdb.Set(ctx, s.key(key), value, expiry).Result(); err != nil {
		return fmt.Errorf("can't set %q in valkey: %w", key, err)
	}

	return nil
}

func (s *Store) SetIfAbsent(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, s.key(key), value, expiry).Result()
	if err != nil {
		return fmt.Errorf("can't setnx %q in valkey: %w", key, err)
	}

	if !ok {
		return fmt.Errorf("%w: %q", store.ErrExists, key)
	}

	return nil
}
