package challenge_test

import (
	"testing"
	"time"

	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/TecharoHQ/webauth/lib/challenge/challengetest"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
)

func challengeParams(f *challengetest.Fixture, ops ...txnbuild.Operation) txnbuild.TransactionParams {
	return txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: f.Server.Address(), Sequence: -1},
		IncrementSequenceNum: true,
		Operations:           ops,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimebounds(challengetest.Epoch.Unix(), challengetest.Epoch.Unix()+300),
		},
	}
}

func authOp(f *challengetest.Fixture, homeDomain string) *txnbuild.ManageData {
	return &txnbuild.ManageData{
		SourceAccount: f.Client.Address(),
		Name:          homeDomain + " auth",
		Value:         []byte("eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4"),
	}
}

func TestReadChallenge(t *testing.T) {
	other := keypair.MustRandom()

	for _, tt := range []struct {
		name        string
		txe         func(t *testing.T, f *challengetest.Fixture) string
		server      func(t *testing.T, f *challengetest.Fixture) string
		homeDomains []string
		err         error
		msg         string
	}{
		{
			name: "valid",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return f.Build(t, "example.com")
			},
			homeDomains: []string{"example.com"},
		},
		{
			name: "muxed server account",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return f.Build(t, "example.com")
			},
			server: func(t *testing.T, f *challengetest.Fixture) string {
				return challengetest.MuxedAddress(t, f.Server, 1)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidAccount,
			msg:         "multiplexed accounts are not supported",
		},
		{
			name: "muxed server account is checked before parsing",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return "not a transaction"
			},
			server: func(t *testing.T, f *challengetest.Fixture) string {
				return challengetest.MuxedAddress(t, f.Server, 1)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidAccount,
			msg:         "multiplexed accounts are not supported",
		},
		{
			name: "garbage",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return "not a transaction"
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "Could not parse challenge",
		},
		{
			name: "fee bump",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				inner := challengetest.Parse(t, f.Build(t, "example.com"))
				fb, err := txnbuild.NewFeeBumpTransaction(txnbuild.FeeBumpTransactionParams{
					Inner:      inner,
					FeeAccount: f.Server.Address(),
					BaseFee:    txnbuild.MinBaseFee * 2,
				})
				if err != nil {
					t.Fatal(err)
				}
				result, err := fb.Base64()
				if err != nil {
					t.Fatal(err)
				}
				return result
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "expected a Transaction but received a FeeBumpTransaction",
		},
		{
			name: "nonzero sequence number",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				params := challengeParams(f, authOp(f, "example.com"))
				params.SourceAccount = &txnbuild.SimpleAccount{AccountID: f.Server.Address(), Sequence: 99}
				return challengetest.Encode(t, params, f.Server)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "The transaction sequence number should be zero",
		},
		{
			name: "source is not the server",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				params := challengeParams(f, authOp(f, "example.com"))
				params.SourceAccount = &txnbuild.SimpleAccount{AccountID: other.Address(), Sequence: -1}
				return challengetest.Encode(t, params, other)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "The transaction source account is not equal to the server's account",
		},
		{
			name: "operation without source",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				op := authOp(f, "example.com")
				op.SourceAccount = ""
				return challengetest.Encode(t, challengeParams(f, op), f.Server)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "The transaction's operation should contain a source account",
		},
		{
			name: "operation is not manage data",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				op := &txnbuild.BumpSequence{BumpTo: 0, SourceAccount: f.Client.Address()}
				return challengetest.Encode(t, challengeParams(f, op), f.Server)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "The transaction's operation type should be 'manageData'",
		},
		{
			name: "infinite time bounds",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				params := challengeParams(f, authOp(f, "example.com"))
				params.Preconditions.TimeBounds = txnbuild.NewInfiniteTimeout()
				return challengetest.Encode(t, params, f.Server)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "The transaction requires non-infinite timebounds",
		},
		{
			name: "not yet valid",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				params := challengeParams(f, authOp(f, "example.com"))
				params.Preconditions.TimeBounds = txnbuild.NewTimebounds(challengetest.Epoch.Unix()+1, challengetest.Epoch.Unix()+300)
				return challengetest.Encode(t, params, f.Server)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "The transaction has expired",
		},
		{
			name: "no home domains",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return f.Build(t, "example.com")
			},
			err: challenge.ErrInvalidChallenge,
			msg: "Invalid homeDomains: a home domain must be provided for verification",
		},
		{
			name: "home domain mismatch",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return f.Build(t, "SDF")
			},
			homeDomains: []string{"Test", "Other"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "does not match the expected home domain",
		},
		{
			name: "home domain is not a prefix match",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return f.Build(t, "example.com.evil")
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "does not match the expected home domain",
		},
		{
			name: "subsequent operation is not manage data",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return challengetest.Encode(t, challengeParams(f,
					authOp(f, "example.com"),
					&txnbuild.BumpSequence{BumpTo: 0, SourceAccount: f.Server.Address()},
				), f.Server)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "The transaction has operations that are not of type 'manageData'",
		},
		{
			name: "subsequent operation from the client",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return challengetest.Encode(t, challengeParams(f,
					authOp(f, "example.com"),
					&txnbuild.ManageData{SourceAccount: f.Client.Address(), Name: "extra", Value: []byte("data")},
				), f.Server)
			},
			homeDomains: []string{"example.com"},
			err:         challenge.ErrInvalidChallenge,
			msg:         "The transaction has operations that are unrecognized",
		},
		{
			name: "subsequent operation from the server",
			txe: func(t *testing.T, f *challengetest.Fixture) string {
				return challengetest.Encode(t, challengeParams(f,
					authOp(f, "example.com"),
					&txnbuild.ManageData{SourceAccount: f.Server.Address(), Name: "extra", Value: []byte("data")},
				), f.Server)
			},
			homeDomains: []string{"example.com"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := challengetest.New(t)

			server := f.Server.Address()
			if tt.server != nil {
				server = tt.server(t, f)
			}

			c, err := f.Auth.ReadChallenge(tt.txe(t, f), server, tt.homeDomains)
			if tt.err != nil {
				wantError(t, err, tt.err, tt.msg)
				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if c.ClientAccountID != f.Client.Address() {
				t.Errorf("wanted client %s, got: %s", f.Client.Address(), c.ClientAccountID)
			}
		})
	}
}

func TestReadChallengeTimeBounds(t *testing.T) {
	for _, tt := range []struct {
		name   string
		offset time.Duration
		ok     bool
	}{
		{name: "min time", offset: 0, ok: true},
		{name: "inside", offset: 150 * time.Second, ok: true},
		{name: "max time", offset: 300 * time.Second, ok: true},
		{name: "max time plus one", offset: 301 * time.Second, ok: false},
		{name: "before min time", offset: -time.Second, ok: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := challengetest.New(t)
			txe := f.Build(t, "example.com")

			f.At(tt.offset)
			_, err := f.Auth.ReadChallenge(txe, f.Server.Address(), []string{"example.com"})

			switch {
			case tt.ok && err != nil:
				t.Fatalf("wanted challenge to be valid: %v", err)
			case !tt.ok:
				wantError(t, err, challenge.ErrInvalidChallenge, "The transaction has expired")
			}
		})
	}
}

func TestReadChallengeHomeDomains(t *testing.T) {
	f := challengetest.New(t)
	txe := f.Build(t, "SDF")

	c, err := f.Auth.ReadChallenge(txe, f.Server.Address(), []string{"Test", "SDF", "Other"})
	if err != nil {
		t.Fatal(err)
	}

	if c.MatchedHomeDomain != "SDF" {
		t.Errorf("wanted matched home domain SDF, got: %s", c.MatchedHomeDomain)
	}

	_, err = f.Auth.ReadChallenge(txe, f.Server.Address(), []string{"Test", "Other"})
	wantError(t, err, challenge.ErrInvalidChallenge, "does not match the expected home domain")
}

func TestReadChallengeWrongNetwork(t *testing.T) {
	f := challengetest.New(t)
	txe := f.Build(t, "example.com")

	// reading never looks at signatures, so the network does not matter yet
	f.Auth.NetworkPassphrase = network.PublicNetworkPassphrase
	if _, err := f.Auth.ReadChallenge(txe, f.Server.Address(), []string{"example.com"}); err != nil {
		t.Fatal(err)
	}

	_, err := f.Auth.VerifySigners(challengetest.Sign(t, txe, f.Client), f.Server.Address(), []string{f.Client.Address()}, []string{"example.com"})
	wantError(t, err, challenge.ErrInvalidChallenge, "Transaction not signed by server")
}
