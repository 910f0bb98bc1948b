package config

import (
	"errors"
	"strings"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/network"
)

var ErrNoNetwork = errors.New("config: network must be set to pubnet, testnet, or a network passphrase")

// Network is either a well-known network name or a full network passphrase.
type Network string

// Passphrase resolves well-known network names to their passphrase.
func (n Network) Passphrase() string {
	switch strings.ToLower(strings.TrimSpace(string(n))) {
	case "pubnet", "public", "mainnet":
		return network.PublicNetworkPassphrase
	case "testnet", "test":
		return network.TestNetworkPassphrase
	}

	return string(n)
}

func (n Network) Valid() error {
	if strings.TrimSpace(string(n)) == "" {
		return ErrNoNetwork
	}

	return nil
}

// DefaultHorizonURL returns the SDF horizon instance for pubnet and testnet.
// Custom networks have no default and get "".
func (n Network) DefaultHorizonURL() string {
	switch n.Passphrase() {
	case network.PublicNetworkPassphrase:
		return horizonclient.DefaultPublicNetClient.HorizonURL
	case network.TestNetworkPassphrase:
		return horizonclient.DefaultTestNetClient.HorizonURL
	}

	return ""
}
