package challenge

import (
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/TecharoHQ/webauth"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// BuildChallenge creates a challenge transaction signed by serverKey for
// clientAccountID to sign. The result is a base64 transaction envelope.
//
// A timeout of zero or less uses webauth.DefaultChallengeTimeout.
func (a *Authenticator) BuildChallenge(serverKey *keypair.Full, clientAccountID, homeDomain string, timeout time.Duration) (string, error) {
	if IsMuxedAddress(clientAccountID) {
		return "", NewError("build", ErrInvalidAccount, "Invalid clientAccountID: multiplexed accounts are not supported", nil)
	}

	if timeout <= 0 {
		timeout = webauth.DefaultChallengeTimeout
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(a.rand(), nonce); err != nil {
		return "", fmt.Errorf("challenge: can't generate nonce: %w", err)
	}

	ops := []txnbuild.Operation{
		&txnbuild.ManageData{
			SourceAccount: clientAccountID,
			Name:          homeDomain + authSuffix,
			Value:         []byte(base64.StdEncoding.EncodeToString(nonce)),
		},
	}

	if a.WebAuthDomain != "" {
		ops = append(ops, &txnbuild.ManageData{
			SourceAccount: serverKey.Address(),
			Name:          WebAuthDomainKey,
			Value:         []byte(a.WebAuthDomain),
		})
	}

	now := a.now().UTC()

	// sequence -1 is incremented to 0 while building
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: serverKey.Address(), Sequence: -1},
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimebounds(now.Unix(), now.Add(timeout).Unix()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("challenge: can't build transaction: %w", err)
	}

	tx, err = tx.Sign(a.NetworkPassphrase, serverKey)
	if err != nil {
		return "", fmt.Errorf("challenge: can't sign transaction: %w", err)
	}

	result, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("challenge: can't encode transaction: %w", err)
	}

	return result, nil
}
