// Package challengetest has helpers for tests that need real challenge
// transactions.
package challengetest

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"
	"time"

	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
)

// Epoch is the fixed instant fixtures build their challenges at.
var Epoch = time.Unix(1_700_000_000, 0).UTC()

type Fixture struct {
	Server *keypair.Full
	Client *keypair.Full
	Now    time.Time
	Auth   *challenge.Authenticator
}

// New makes a fixture on the test network whose clock is frozen at Epoch
// until the test moves it with At.
func New(t *testing.T) *Fixture {
	t.Helper()

	f := &Fixture{
		Server: keypair.MustRandom(),
		Client: keypair.MustRandom(),
		Now:    Epoch,
	}

	f.Auth = &challenge.Authenticator{
		NetworkPassphrase: network.TestNetworkPassphrase,
		Clock:             challenge.ClockFunc(func() time.Time { return f.Now }),
	}

	return f
}

// At moves the fixture clock to Epoch+offset.
func (f *Fixture) At(offset time.Duration) {
	f.Now = Epoch.Add(offset)
}

// Build creates a challenge for the fixture client at the current fixture
// time with the default timeout.
func (f *Fixture) Build(t *testing.T, homeDomain string) string {
	t.Helper()

	tx, err := f.Auth.BuildChallenge(f.Server, f.Client.Address(), homeDomain, 0)
	if err != nil {
		t.Fatalf("can't build challenge: %v", err)
	}

	return tx
}

// Parse decodes a base64 envelope that must hold a plain transaction.
func Parse(t *testing.T, txe string) *txnbuild.Transaction {
	t.Helper()

	gtx, err := txnbuild.TransactionFromXDR(txe)
	if err != nil {
		t.Fatalf("can't parse transaction: %v", err)
	}

	tx, ok := gtx.Transaction()
	if !ok {
		t.Fatal("wanted a transaction but got a fee bump transaction")
	}

	return tx
}

// Sign adds signatures from signers to txe on the test network.
func Sign(t *testing.T, txe string, signers ...*keypair.Full) string {
	t.Helper()

	tx, err := Parse(t, txe).Sign(network.TestNetworkPassphrase, signers...)
	if err != nil {
		t.Fatalf("can't sign transaction: %v", err)
	}

	result, err := tx.Base64()
	if err != nil {
		t.Fatalf("can't encode transaction: %v", err)
	}

	return result
}

// Encode builds, signs and encodes an arbitrary transaction, for challenges
// that BuildChallenge would never produce.
func Encode(t *testing.T, params txnbuild.TransactionParams, signers ...*keypair.Full) string {
	t.Helper()

	if params.BaseFee == 0 {
		params.BaseFee = txnbuild.MinBaseFee
	}

	tx, err := txnbuild.NewTransaction(params)
	if err != nil {
		t.Fatalf("can't build transaction: %v", err)
	}

	tx, err = tx.Sign(network.TestNetworkPassphrase, signers...)
	if err != nil {
		t.Fatalf("can't sign transaction: %v", err)
	}

	result, err := tx.Base64()
	if err != nil {
		t.Fatalf("can't encode transaction: %v", err)
	}

	return result
}

// MuxedAddress returns the M... form of kp with the given sub-account id.
func MuxedAddress(t *testing.T, kp keypair.KP, id uint64) string {
	t.Helper()

	raw, err := strkey.Decode(strkey.VersionByteAccountID, kp.Address())
	if err != nil {
		t.Fatal(err)
	}

	payload := binary.BigEndian.AppendUint64(raw, id)
	address, err := strkey.Encode(strkey.VersionByteMuxedAccount, payload)
	if err != nil {
		t.Fatal(err)
	}

	return address
}

// PreAuthTxAddress returns a T... pre-authorized transaction signer key.
func PreAuthTxAddress(t *testing.T) string {
	t.Helper()

	hash := sha256.Sum256([]byte(t.Name()))
	address, err := strkey.Encode(strkey.VersionByteHashTx, hash[:])
	if err != nil {
		t.Fatal(err)
	}

	return address
}
