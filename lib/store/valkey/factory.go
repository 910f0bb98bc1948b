package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/TecharoHQ/webauth/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

var (
	ErrNoURL       = errors.New("valkey.Config: no URL defined")
	ErrBadURL      = errors.New("valkey.Config: URL is invalid")
	ErrBadPrefix   = errors.New("valkey.Config: key_prefix must not contain whitespace")
	ErrBadPoolSize = errors.New("valkey.Config: pool_size must not be negative")
)

func init() {
	store.Register("valkey", Factory{})
}

// Factory builds valkey stores. Every webauth replica pointed at the same
// server and key_prefix shares one spent nonce ledger.
type Factory struct{}

func parseConfig(data json.RawMessage) (*Config, error) {
	var config Config
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return &config, nil
}

func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	opts, err := valkey.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if config.PoolSize != 0 {
		opts.PoolSize = config.PoolSize
	}

	rdb := valkey.NewClient(opts)

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("can't ping valkey instance: %w", err)
	}

	go func() {
		<-ctx.Done()
		rdb.Close()
	}()

	return &Store{
		rdb:    rdb,
		prefix: config.KeyPrefix,
	}, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}

type Config struct {
	URL string `json:"url"`

	// KeyPrefix is prepended to every key, for servers shared with other
	// applications or other webauth deployments.
	KeyPrefix string `json:"key_prefix,omitempty"`

	// PoolSize overrides the go-redis connection pool size when set.
	PoolSize int `json:"pool_size,omitempty"`
}

func (c Config) Valid() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, ErrNoURL)
	}

	if _, err := valkey.ParseURL(c.URL); err != nil {
		errs = append(errs, ErrBadURL)
	}

	if strings.ContainsFunc(c.KeyPrefix, unicode.IsSpace) {
		errs = append(errs, ErrBadPrefix)
	}

	if c.PoolSize < 0 {
		errs = append(errs, ErrBadPoolSize)
	}

	if len(errs) != 0 {
		return fmt.Errorf("valkey.Config: invalid config: %w", errors.Join(errs...))
	}

	return nil
}
