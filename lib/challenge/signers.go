package challenge

import (
	"fmt"
	"slices"
	"strings"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// signerSet is an insertion ordered set of addresses.
type signerSet struct {
	order   []string
	members map[string]struct{}
}

func newSignerSet(addresses ...string) signerSet {
	s := signerSet{members: make(map[string]struct{}, len(addresses))}
	for _, address := range addresses {
		s.add(address)
	}
	return s
}

func (s *signerSet) add(address string) {
	if _, ok := s.members[address]; ok {
		return
	}
	s.members[address] = struct{}{}
	s.order = append(s.order, address)
}

func (s signerSet) has(address string) bool {
	_, ok := s.members[address]
	return ok
}

func (s signerSet) len() int { return len(s.order) }

// union returns a new set, leaving both operands untouched.
func (s signerSet) union(other signerSet) signerSet {
	return newSignerSet(slices.Concat(s.order, other.order)...)
}

// without returns a new set lacking address.
func (s signerSet) without(address string) signerSet {
	return newSignerSet(slices.DeleteFunc(slices.Clone(s.order), func(a string) bool { return a == address })...)
}

func (s signerSet) list() []string { return slices.Clone(s.order) }

// GatherSigners returns the subset of signers that signed tx. Every
// signature on the transaction is matched to at most one signer. Each
// address appears at most once in the result.
//
// A signer that is not a valid account address is an error, unless every
// signature has already been matched.
func GatherSigners(tx *txnbuild.Transaction, networkPassphrase string, signers []string) ([]string, error) {
	hash, err := tx.Hash(networkPassphrase)
	if err != nil {
		return nil, fmt.Errorf("challenge: can't hash transaction: %w", err)
	}

	pool := slices.Clone(tx.Signatures())
	found := newSignerSet()

	for _, signer := range signers {
		if len(pool) == 0 {
			break
		}

		kp, err := keypair.ParseAddress(signer)
		if err != nil {
			return nil, NewError("verify", ErrInvalidAddress, "Signer is not a valid address: "+err.Error(), nil)
		}

		hint := xdr.SignatureHint(kp.Hint())
		for i, sig := range pool {
			if sig.Hint != hint {
				continue
			}

			if err := kp.Verify(hash[:], sig.Signature); err != nil {
				continue
			}

			found.add(signer)
			pool = slices.Delete(pool, i, i+1)
			break
		}
	}

	return found.list(), nil
}

// VerifyTxSignedBy reports whether address signed tx.
func VerifyTxSignedBy(tx *txnbuild.Transaction, networkPassphrase, address string) (bool, error) {
	found, err := GatherSigners(tx, networkPassphrase, []string{address})
	if err != nil {
		return false, err
	}

	return len(found) > 0, nil
}

// VerifySigners reads challengeTx and returns the client signers, out of
// signers, that signed it. The server must have signed the challenge and
// every signature must belong to the server or one of signers.
//
// Signers that are not G... addresses (pre-authorized transaction hashes,
// hash(x) signers) and the server itself are skipped silently.
func (a *Authenticator) VerifySigners(challengeTx, serverAccountID string, signers []string, homeDomains []string) ([]string, error) {
	c, err := a.ReadChallenge(challengeTx, serverAccountID, homeDomains)
	if err != nil {
		return nil, err
	}

	serverKP, err := keypair.ParseAddress(serverAccountID)
	if err != nil {
		return nil, fmt.Errorf("challenge: couldn't infer keypair from the provided 'serverAccountID': %w", err)
	}
	server := serverKP.Address()

	clients := newSignerSet()
	for _, signer := range signers {
		if signer == server || !strings.HasPrefix(signer, "G") {
			continue
		}
		clients.add(signer)
	}

	if clients.len() == 0 {
		return nil, invalidChallenge("verify", "No verifiable client signers provided, at least one G... address must be provided")
	}

	all := newSignerSet(server).union(clients)

	gathered, err := GatherSigners(c.Tx, a.NetworkPassphrase, all.list())
	if err != nil {
		return nil, err
	}
	found := newSignerSet(gathered...)

	if !found.has(server) {
		return nil, invalidChallenge("verify", fmt.Sprintf("Transaction not signed by server: '%s'", server))
	}

	if found.len() == 1 {
		return nil, invalidChallenge("verify", "None of the given signers match the transaction signatures")
	}

	if len(c.Tx.Signatures()) != found.len() {
		return nil, invalidChallenge("verify", "Transaction has unrecognized signatures")
	}

	return found.without(server).list(), nil
}
