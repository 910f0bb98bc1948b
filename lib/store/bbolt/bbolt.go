package bbolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/webauth/lib/store"
	"go.etcd.io/bbolt"
)

// Sentinel error values used for testing and in admin-visible error messages.
var (
	ErrBucketDoesNotExist = errors.New("bbolt: bucket does not exist")
	ErrNotExists          = errors.New("bbolt: value does not exist in store")
)

var (
	keyData   = []byte("data")
	keyExpiry = []byte("expiry")
)

// Store implements store.Interface backed by bbolt[1].
//
// Every value lives in its own top-level bucket named after the key. That
// bucket holds two keys:
//
// 1. data - The raw data, usually JSON or a consumed nonce marker
// 2. expiry - The expiry time formatted as a time.RFC3339Nano timestamp string
//
// The cleanup phase only has to scan expiry times without decoding each record.
//
// bbolt holds an exclusive file lock, so it cannot be shared between multiple
// webauth instances. Replay protection across replicas needs the valkey backend.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb *bbolt.DB
}

// Delete a key from the datastore. If the key does not exist, return an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(key)) == nil {
			return fmt.Errorf("%w: %w: %q", store.ErrNotFound, ErrNotExists, key)
		}

		return tx.DeleteBucket([]byte(key))
	})
}

// deleteExpired removes key only if it still has the expiry a reader saw, so
// a value rewritten in the meantime survives.
func (s *Store) deleteExpired(key string, seen time.Time) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(key))
		if bkt == nil {
			return nil
		}

		expiry, err := expiryOf(key, bkt)
		if err != nil || !expiry.Equal(seen) {
			return nil
		}

		return tx.DeleteBucket([]byte(key))
	})
}

func expiryOf(key string, bkt *bbolt.Bucket) (time.Time, error) {
	expiryStr := bkt.Get(keyExpiry)
	if expiryStr == nil {
		return time.Time{}, fmt.Errorf("[unexpected] %w: %q (expiry is nil)", store.ErrNotFound, key)
	}

	expiry, err := time.Parse(time.RFC3339Nano, string(expiryStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("[unexpected] %w: %w", store.ErrCantDecode, err)
	}

	return expiry, nil
}

// Get a value from the datastore.
//
// Expired values are deleted in the background and reported as not found.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		itemBucket := tx.Bucket([]byte(key))
		if itemBucket == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		expiry, err := expiryOf(key, itemBucket)
		if err != nil {
			return err
		}

		if time.Now().After(expiry) {
			go s.deleteExpired(key, expiry)
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		dataStr := itemBucket.Get(keyData)
		if dataStr == nil {
			return fmt.Errorf("[unexpected] %w: %q (data is nil)", store.ErrNotFound, key)
		}

		// bbolt values are only valid for the life of the transaction.
		result = make([]byte, len(dataStr))
		copy(result, dataStr)

		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func put(tx *bbolt.Tx, key string, value []byte, expires time.Time) error {
	valueBkt, err := tx.CreateBucketIfNotExists([]byte(key))
	if err != nil {
		return fmt.Errorf("%w: %w: %q (create bucket)", store.ErrCantEncode, err, key)
	}

	if err := valueBkt.Put(keyExpiry, []byte(expires.Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("%w: %q (expiry)", store.ErrCantEncode, key)
	}

	if err := valueBkt.Put(keyData, value); err != nil {
		return fmt.Errorf("%w: %q (data)", store.ErrCantEncode, key)
	}

	return nil
}

// Set a value into the store with a given expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	expires := time.Now().Add(expiry)

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return put(tx, key, value, expires)
	})
}

// SetIfAbsent writes a value unless a live one already exists. bbolt
// serializes write transactions, so the check and the write are atomic.
func (s *Store) SetIfAbsent(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		if bkt := tx.Bucket([]byte(key)); bkt != nil {
			exp, err := expiryOf(key, bkt)
			if err == nil && !now.After(exp) {
				return fmt.Errorf("%w: %q", store.ErrExists, key)
			}
		}

		return put(tx, key, value, now.Add(expiry))
	})
}

func (s *Store) cleanup(ctx context.Context) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		var expired [][]byte

		if err := tx.ForEach(func(key []byte, valueBkt *bbolt.Bucket) error {
			expiry, err := expiryOf(string(key), valueBkt)
			if errors.Is(err, store.ErrNotFound) {
				slog.Warn("while running cleanup, expiry is not set somehow, file a bug?", "key", string(key))
				return nil
			}
			if err != nil {
				return fmt.Errorf("in bucket %q: %w", string(key), err)
			}

			if now.After(expiry) {
				expired = append(expired, append([]byte(nil), key...))
			}

			return nil
		}); err != nil {
			return err
		}

		for _, key := range expired {
			if err := tx.DeleteBucket(key); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.bdb.Close()
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("error during bbolt cleanup", "err", err)
			}
		}
	}
}
