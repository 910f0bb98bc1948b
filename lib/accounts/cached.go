package accounts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/TecharoHQ/webauth"
	"github.com/TecharoHQ/webauth/internal"
	"github.com/TecharoHQ/webauth/lib/store"
)

// Cached remembers accounts found by Next in a store for TTL.
type Cached struct {
	Next Source
	TTL  time.Duration

	db *store.JSON[Account]
}

func NewCached(next Source, st store.Interface, ttl time.Duration) *Cached {
	return &Cached{
		Next: next,
		TTL:  ttl,
		db: &store.JSON[Account]{
			Underlying: st,
			Prefix:     webauth.AccountStorePrefix,
		},
	}
}

func (c *Cached) Lookup(ctx context.Context, accountID string) (*Account, error) {
	key := internal.FastHash(accountID)

	acct, err := c.db.Get(ctx, key)
	switch {
	case err == nil && acct.ID == accountID:
		record("cache", nil)
		return &acct, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		slog.Warn("can't read account cache, asking upstream", "account", accountID, "err", err)
	}

	result, err := c.Next.Lookup(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := c.db.Set(ctx, key, *result, c.TTL); err != nil {
		slog.Warn("can't write account cache", "account", accountID, "err", err)
	}

	return result, nil
}
