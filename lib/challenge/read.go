package challenge

import (
	"fmt"

	"github.com/stellar/go/txnbuild"
)

// ReadChallenge decodes challengeTx and checks that it is a well-formed
// challenge issued by serverAccountID for one of homeDomains that has not
// expired. It does not check any client signature.
//
// Checks run in a fixed order and the first violation is returned.
func (a *Authenticator) ReadChallenge(challengeTx, serverAccountID string, homeDomains []string) (*Challenge, error) {
	if IsMuxedAddress(serverAccountID) {
		return nil, NewError("read", ErrInvalidAccount, "Invalid serverAccountID: multiplexed accounts are not supported", nil)
	}

	gtx, err := txnbuild.TransactionFromXDR(challengeTx)
	if err != nil {
		return nil, NewError("read", ErrInvalidChallenge, "Could not parse challenge", err)
	}

	tx, ok := gtx.Transaction()
	if !ok {
		return nil, invalidChallenge("read", "Invalid challenge: expected a Transaction but received a FeeBumpTransaction")
	}

	if tx.SourceAccount().Sequence != 0 {
		return nil, invalidChallenge("read", "The transaction sequence number should be zero")
	}

	if tx.SourceAccount().AccountID != serverAccountID {
		return nil, invalidChallenge("read", "The transaction source account is not equal to the server's account")
	}

	ops := tx.Operations()
	if len(ops) == 0 {
		return nil, invalidChallenge("read", "The transaction should contain at least one operation")
	}

	clientAccountID := ops[0].GetSourceAccount()
	if clientAccountID == "" {
		return nil, invalidChallenge("read", "The transaction's operation should contain a source account")
	}

	op, ok := ops[0].(*txnbuild.ManageData)
	if !ok {
		return nil, invalidChallenge("read", "The transaction's operation type should be 'manageData'")
	}

	// A missing time bounds object is reported as expired, not as infinite.
	tb := tx.ToXDR().TimeBounds()
	if tb != nil && tb.MaxTime == 0 {
		return nil, invalidChallenge("read", "The transaction requires non-infinite timebounds")
	}

	now := a.now().UTC().Unix()
	if tb == nil || now < int64(tb.MinTime) || now > int64(tb.MaxTime) {
		return nil, invalidChallenge("read", "The transaction has expired")
	}

	if len(homeDomains) == 0 {
		return nil, invalidChallenge("read", "Invalid homeDomains: a home domain must be provided for verification")
	}

	var (
		matchedHomeDomain string
		matched           bool
	)
	for _, domain := range homeDomains {
		if op.Name == domain+authSuffix {
			matchedHomeDomain, matched = domain, true
			break
		}
	}

	if !matched {
		return nil, invalidChallenge("read", "The transaction's operation key name does not match the expected home domain")
	}

	for _, subsequent := range ops[1:] {
		md, ok := subsequent.(*txnbuild.ManageData)
		if !ok {
			return nil, invalidChallenge("read", "The transaction has operations that are not of type 'manageData'")
		}

		if md.GetSourceAccount() != serverAccountID {
			return nil, invalidChallenge("read", "The transaction has operations that are unrecognized")
		}

		if md.Name == WebAuthDomainKey && a.WebAuthDomain != "" && string(md.Value) != a.WebAuthDomain {
			return nil, invalidChallenge("read", fmt.Sprintf("'%s' operation value does not match %s", WebAuthDomainKey, a.WebAuthDomain))
		}
	}

	return &Challenge{
		Tx:                tx,
		ClientAccountID:   clientAccountID,
		MatchedHomeDomain: matchedHomeDomain,
		Nonce:             string(op.Value),
	}, nil
}
