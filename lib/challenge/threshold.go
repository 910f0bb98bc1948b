package challenge

import "fmt"

// VerifyThreshold verifies challengeTx against the signers of an account
// and checks that the combined weight of the client signers meets
// threshold. Signers missing from summary count as weight zero.
func (a *Authenticator) VerifyThreshold(challengeTx, serverAccountID string, threshold int, summary SignerSummary, homeDomains []string) ([]string, error) {
	found, err := a.VerifySigners(challengeTx, serverAccountID, summary.Keys(), homeDomains)
	if err != nil {
		return nil, err
	}

	weights := summary.Weights()
	weight := 0
	for _, signer := range found {
		weight += int(weights[signer])
	}

	if weight < threshold {
		return nil, invalidChallenge("verify", fmt.Sprintf("signers with weight %d do not meet threshold %d", weight, threshold))
	}

	return found, nil
}
