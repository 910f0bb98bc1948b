package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"k8s.io/apimachinery/pkg/util/yaml"
)

var (
	ErrChallengeTimeoutDoesNotParse = errors.New("config: challenge_timeout does not parse as a Duration, see https://pkg.go.dev/time#ParseDuration")
	ErrTokenExpirationDoesNotParse  = errors.New("config: token_expiration does not parse as a Duration, see https://pkg.go.dev/time#ParseDuration")
	ErrDurationMustBePositive       = errors.New("config: durations must be positive")
	ErrWebAuthDomainInvalid         = errors.New("config: web_auth_domain is invalid")
)

type fileConfig struct {
	Network          Network            `json:"network"`
	HomeDomains      DomainList         `json:"home_domains"`
	WebAuthDomain    string             `json:"web_auth_domain,omitempty"`
	ChallengeTimeout string             `json:"challenge_timeout"`
	TokenExpiration  string             `json:"token_expiration"`
	Store            *Store             `json:"store"`
	Accounts         accountsFileConfig `json:"accounts"`
}

func parsePositiveDuration(val string, kind error) (time.Duration, error) {
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%w: ParseDuration(%q) returned: %w", kind, val, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%w: %w: %s", kind, ErrDurationMustBePositive, val)
	}

	return d, nil
}

func (c *fileConfig) Valid() error {
	var errs []error

	if err := c.Network.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := c.HomeDomains.Valid(); err != nil {
		errs = append(errs, err)
	}

	if c.WebAuthDomain != "" {
		if err := (DomainList{c.WebAuthDomain}).Valid(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrWebAuthDomainInvalid, err))
		}
	}

	if _, err := parsePositiveDuration(c.ChallengeTimeout, ErrChallengeTimeoutDoesNotParse); err != nil {
		errs = append(errs, err)
	}

	if _, err := parsePositiveDuration(c.TokenExpiration, ErrTokenExpirationDoesNotParse); err != nil {
		errs = append(errs, err)
	}

	if c.Store != nil {
		if err := c.Store.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.Accounts.Valid(); err != nil {
		errs = append(errs, err)
	}

	if c.Accounts.HorizonURL == "" && len(c.Accounts.Static) == 0 && c.Network.DefaultHorizonURL() == "" {
		errs = append(errs, ErrNoAccountSource)
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Load parses and validates a webauth config document. fname is only used in
// error messages.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := &fileConfig{
		Network:          "testnet",
		ChallengeTimeout: "5m",
		TokenExpiration:  "24h",
		Store: &Store{
			Backend: "memory",
		},
	}

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(&c); err != nil {
		return nil, fmt.Errorf("can't parse webauth config YAML %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating webauth config %s: %w", fname, err)
	}

	// Valid already checked that these parse.
	challengeTimeout, _ := time.ParseDuration(c.ChallengeTimeout)
	tokenExpiration, _ := time.ParseDuration(c.TokenExpiration)

	result := &Config{
		NetworkPassphrase: c.Network.Passphrase(),
		HomeDomains:       c.HomeDomains,
		WebAuthDomain:     c.WebAuthDomain,
		ChallengeTimeout:  challengeTimeout,
		TokenExpiration:   tokenExpiration,
		Accounts: Accounts{
			HorizonURL: c.Accounts.HorizonURL,
			CacheTTL:   5 * time.Minute,
			Static:     c.Accounts.Static,
		},
	}

	if result.Accounts.HorizonURL == "" {
		result.Accounts.HorizonURL = c.Network.DefaultHorizonURL()
	}

	if c.Accounts.CacheTTL != "" {
		result.Accounts.CacheTTL, _ = time.ParseDuration(c.Accounts.CacheTTL)
	}

	if c.Store != nil {
		result.Store = *c.Store
	} else {
		result.Store = Store{Backend: "memory"}
	}

	return result, nil
}

// Config is the validated form of a webauth config document.
type Config struct {
	NetworkPassphrase string
	HomeDomains       DomainList
	WebAuthDomain     string
	ChallengeTimeout  time.Duration
	TokenExpiration   time.Duration
	Store             Store
	Accounts          Accounts
}
