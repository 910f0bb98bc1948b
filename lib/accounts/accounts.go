// Package accounts looks up the signers and thresholds of Stellar accounts so
// that challenge transactions can be checked against them.
package accounts

import (
	"context"
	"errors"

	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrNotFound is returned when an account does not exist on the ledger.
	// Callers fall back to treating the account's master key as its only signer.
	ErrNotFound = errors.New("accounts: account not found")

	// ErrUnavailable is returned when the account source could not be reached.
	ErrUnavailable = errors.New("accounts: source unavailable")
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webauth_account_lookups_total",
	Help: "The total number of account lookups by source and result",
}, []string{"source", "result"})

// Thresholds are the low, medium and high operation thresholds of an account.
type Thresholds struct {
	Low    int32 `json:"low"`
	Medium int32 `json:"medium"`
	High   int32 `json:"high"`
}

// Account is the part of a ledger account that matters for authentication.
type Account struct {
	ID         string                  `json:"id"`
	Thresholds Thresholds              `json:"thresholds"`
	Signers    challenge.SignerSummary `json:"signers"`
}

// Source finds accounts by their G... address.
type Source interface {
	Lookup(ctx context.Context, accountID string) (*Account, error)
}

func record(source string, err error) {
	switch {
	case err == nil:
		lookups.WithLabelValues(source, "found").Inc()
	case errors.Is(err, ErrNotFound):
		lookups.WithLabelValues(source, "not_found").Inc()
	default:
		lookups.WithLabelValues(source, "error").Inc()
	}
}

// Chain asks each source in order and returns the first account found.
type Chain []Source

func (c Chain) Lookup(ctx context.Context, accountID string) (*Account, error) {
	for _, src := range c {
		acct, err := src.Lookup(ctx, accountID)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		return acct, err
	}

	return nil, ErrNotFound
}
