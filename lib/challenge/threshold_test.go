package challenge_test

import (
	"slices"
	"testing"

	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/TecharoHQ/webauth/lib/challenge/challengetest"
	"github.com/stellar/go/keypair"
)

func TestVerifyThreshold(t *testing.T) {
	f := challengetest.New(t)
	a := f.Client
	b := keypair.MustRandom()
	unsigned := f.Build(t, "example.com")

	summary := challenge.SignerSummary{
		{Key: a.Address(), Weight: 1},
		{Key: b.Address(), Weight: 2},
	}

	for _, tt := range []struct {
		name      string
		txe       string
		threshold int
		summary   challenge.SignerSummary
		want      []string
		msg       string
	}{
		{
			name:      "both signers meet threshold",
			txe:       challengetest.Sign(t, unsigned, a, b),
			threshold: 3,
			summary:   summary,
			want:      []string{a.Address(), b.Address()},
		},
		{
			name:      "one signer below threshold",
			txe:       challengetest.Sign(t, unsigned, a),
			threshold: 3,
			summary:   summary,
			msg:       "signers with weight 1 do not meet threshold 3",
		},
		{
			name:      "one signer meets lower threshold",
			txe:       challengetest.Sign(t, unsigned, b),
			threshold: 2,
			summary:   summary,
			want:      []string{b.Address()},
		},
		{
			name:      "zero threshold",
			txe:       challengetest.Sign(t, unsigned, a),
			threshold: 0,
			summary:   challenge.SignerSummary{{Key: a.Address(), Weight: 0}},
			want:      []string{a.Address()},
		},
		{
			name:      "last duplicate wins",
			txe:       challengetest.Sign(t, unsigned, a),
			threshold: 5,
			summary:   challenge.SignerSummary{{Key: a.Address(), Weight: 1}, {Key: a.Address(), Weight: 5}},
			want:      []string{a.Address()},
		},
		{
			name:      "pre-authorized transaction signer is ignored",
			txe:       challengetest.Sign(t, unsigned, a, b),
			threshold: 3,
			summary: challenge.SignerSummary{
				{Key: challengetest.PreAuthTxAddress(t), Weight: 10},
				{Key: a.Address(), Weight: 1},
				{Key: b.Address(), Weight: 2},
			},
			want: []string{a.Address(), b.Address()},
		},
		{
			name:      "unlisted signature",
			txe:       challengetest.Sign(t, unsigned, a, b),
			threshold: 1,
			summary:   challenge.SignerSummary{{Key: a.Address(), Weight: 1}},
			msg:       "Transaction has unrecognized signatures",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			found, err := f.Auth.VerifyThreshold(tt.txe, f.Server.Address(), tt.threshold, tt.summary, []string{"example.com"})
			if tt.msg != "" {
				wantError(t, err, challenge.ErrInvalidChallenge, tt.msg)
				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if !slices.Equal(found, tt.want) {
				t.Logf("want: %v", tt.want)
				t.Logf("got:  %v", found)
				t.Error("wrong signers returned")
			}
		})
	}
}

func TestSignerSummary(t *testing.T) {
	ss := challenge.SignerSummary{
		{Key: "GA", Weight: 1},
		{Key: "GB", Weight: 2},
		{Key: "GA", Weight: 3},
	}

	if got := ss.Keys(); !slices.Equal(got, []string{"GA", "GB", "GA"}) {
		t.Errorf("wrong keys: %v", got)
	}

	weights := ss.Weights()
	if weights["GA"] != 3 || weights["GB"] != 2 || len(weights) != 2 {
		t.Errorf("wrong weights: %v", weights)
	}
}
