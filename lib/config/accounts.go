package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/stellar/go/keypair"
)

var (
	ErrInvalidAccountsConfig  = errors.New("config.Accounts: invalid account source configuration")
	ErrInvalidHorizonURL      = errors.New("config.Accounts: horizon_url must be an absolute http(s) URL")
	ErrCacheTTLDoesNotParse   = errors.New("config.Accounts: cache_ttl does not parse as a Duration, see https://pkg.go.dev/time#ParseDuration")
	ErrStaticAccountInvalid   = errors.New("config.StaticAccount: account is not a valid G... address")
	ErrStaticSignerInvalid    = errors.New("config.StaticAccount: signer key is not a valid G... address")
	ErrStaticThresholdInvalid = errors.New("config.StaticAccount: thresholds must be between 0 and 255")
	ErrNoAccountSource        = errors.New("config.Accounts: custom networks need accounts.horizon_url or accounts.static")
)

type accountsFileConfig struct {
	HorizonURL string          `json:"horizon_url,omitempty"`
	CacheTTL   string          `json:"cache_ttl,omitempty"`
	Static     []StaticAccount `json:"static,omitempty"`
}

func (a *accountsFileConfig) Valid() error {
	var errs []error

	if a.HorizonURL != "" {
		u, err := url.Parse(a.HorizonURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidHorizonURL, a.HorizonURL))
		}
	}

	if a.CacheTTL != "" {
		if _, err := time.ParseDuration(a.CacheTTL); err != nil {
			errs = append(errs, fmt.Errorf("%w: ParseDuration(%q) returned: %w", ErrCacheTTLDoesNotParse, a.CacheTTL, err))
		}
	}

	for i, sa := range a.Static {
		if err := sa.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("static account %d: %w", i, err))
		}
	}

	if len(errs) != 0 {
		return errors.Join(ErrInvalidAccountsConfig, errors.Join(errs...))
	}

	return nil
}

// Accounts describes where the signers and thresholds of client accounts come
// from. Static accounts take precedence over horizon. On pubnet and testnet
// HorizonURL defaults to the network's public horizon instance.
type Accounts struct {
	HorizonURL string
	CacheTTL   time.Duration
	Static     []StaticAccount
}

// StaticAccount pins the signer summary of one account in configuration.
type StaticAccount struct {
	Account    string             `json:"account"`
	Thresholds Thresholds         `json:"thresholds"`
	Signers    []challenge.Signer `json:"signers"`
}

type Thresholds struct {
	Low    int32 `json:"low"`
	Medium int32 `json:"medium"`
	High   int32 `json:"high"`
}

func (sa StaticAccount) Valid() error {
	var errs []error

	if _, err := keypair.ParseAddress(sa.Account); err != nil || challenge.IsMuxedAddress(sa.Account) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrStaticAccountInvalid, sa.Account))
	}

	for _, th := range []int32{sa.Thresholds.Low, sa.Thresholds.Medium, sa.Thresholds.High} {
		if th < 0 || th > 255 {
			errs = append(errs, fmt.Errorf("%w: %d", ErrStaticThresholdInvalid, th))
		}
	}

	for _, s := range sa.Signers {
		if _, err := keypair.ParseAddress(s.Key); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrStaticSignerInvalid, s.Key))
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}
