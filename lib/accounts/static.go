package accounts

import (
	"context"
	"fmt"

	"github.com/TecharoHQ/webauth/lib/config"
)

// Static serves accounts pinned in configuration.
type Static map[string]Account

// NewStatic converts configured accounts into a Static source.
func NewStatic(cfg []config.StaticAccount) Static {
	result := make(Static, len(cfg))

	for _, sa := range cfg {
		result[sa.Account] = Account{
			ID: sa.Account,
			Thresholds: Thresholds{
				Low:    sa.Thresholds.Low,
				Medium: sa.Thresholds.Medium,
				High:   sa.Thresholds.High,
			},
			Signers: sa.Signers,
		}
	}

	return result
}

func (s Static) Lookup(_ context.Context, accountID string) (*Account, error) {
	acct, ok := s[accountID]
	if !ok {
		record("static", ErrNotFound)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}

	record("static", nil)
	return &acct, nil
}
