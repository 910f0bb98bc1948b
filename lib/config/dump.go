package config

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// Dump renders c back into a config document. Loading the result yields an
// equivalent Config.
func Dump(c *Config) ([]byte, error) {
	st := c.Store

	doc := fileConfig{
		Network:          Network(c.NetworkPassphrase),
		HomeDomains:      c.HomeDomains,
		WebAuthDomain:    c.WebAuthDomain,
		ChallengeTimeout: c.ChallengeTimeout.String(),
		TokenExpiration:  c.TokenExpiration.String(),
		Store:            &st,
		Accounts: accountsFileConfig{
			HorizonURL: c.Accounts.HorizonURL,
			CacheTTL:   c.Accounts.CacheTTL.String(),
			Static:     c.Accounts.Static,
		},
	}

	result, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("can't marshal config: %w", err)
	}

	return result, nil
}
