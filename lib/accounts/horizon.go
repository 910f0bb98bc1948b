package accounts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/stellar/go/clients/horizonclient"
)

const signerTypeEd25519 = "ed25519_public_key"

// Horizon reads accounts from a Horizon server.
type Horizon struct {
	client horizonclient.ClientInterface
}

// NewHorizon creates a Horizon source for the server at url.
func NewHorizon(url string, httpClient *http.Client) *Horizon {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Horizon{
		client: &horizonclient.Client{
			HorizonURL: url,
			HTTP:       httpClient,
		},
	}
}

// Lookup fetches the account. Only ed25519 signers are returned; hash-x and
// pre-authorized transaction signers cannot sign a challenge.
func (h *Horizon) Lookup(ctx context.Context, accountID string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acct, err := h.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			record("horizon", ErrNotFound)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, accountID)
		}

		err = fmt.Errorf("%w: horizon: %w", ErrUnavailable, err)
		record("horizon", err)
		return nil, err
	}

	result := &Account{
		ID: acct.AccountID,
		Thresholds: Thresholds{
			Low:    int32(acct.Thresholds.LowThreshold),
			Medium: int32(acct.Thresholds.MedThreshold),
			High:   int32(acct.Thresholds.HighThreshold),
		},
	}

	for _, s := range acct.Signers {
		if s.Type != signerTypeEd25519 {
			continue
		}

		result.Signers = append(result.Signers, challenge.Signer{Key: s.Key, Weight: s.Weight})
	}

	record("horizon", nil)
	return result, nil
}
