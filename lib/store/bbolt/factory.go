package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TecharoHQ/webauth/lib/store"
	"go.etcd.io/bbolt"
)

var (
	ErrMissingPath           = errors.New("bbolt: path is missing from config")
	ErrCantWriteToPath       = errors.New("bbolt: can't write to path")
	ErrBadCleanupInterval    = errors.New("bbolt: cleanup_interval is not a valid duration")
	ErrCleanupIntervalTooLow = errors.New("bbolt: cleanup_interval must be at least one second")
)

const defaultCleanupInterval = 5 * time.Minute

func init() {
	store.Register("bbolt", Factory{})
}

// Factory builds new instances of the bbolt storage backend according to
// configuration passed via a json.RawMessage.
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

// Build parses and validates the bbolt storage backend Config and opens the
// database. The database is closed when ctx is canceled.
func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	bdb, err := bbolt.Open(config.Path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt database %s: %w", config.Path, err)
	}

	result := &Store{
		bdb: bdb,
	}

	go result.cleanupThread(ctx, config.cleanupInterval())

	return result, nil
}

// Valid parses and validates the bbolt store Config or returns
// an error.
func (Factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}

// Config is the bbolt storage backend configuration.
type Config struct {
	// Path is the filesystem path of the database. The folder must be writable by webauth.
	Path string `json:"path"`

	// CleanupInterval is how often expired nonces and cached accounts are
	// purged, as a Go duration string. Defaults to five minutes.
	CleanupInterval string `json:"cleanup_interval,omitempty"`
}

func (c Config) cleanupInterval() time.Duration {
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil {
		return defaultCleanupInterval
	}

	return d
}

// Valid validates the configuration including checking if its containing folder is writable.
func (c Config) Valid() error {
	var errs []error

	if c.Path == "" {
		errs = append(errs, ErrMissingPath)
	} else {
		dir := filepath.Dir(c.Path)
		if err := os.WriteFile(filepath.Join(dir, ".test-file"), []byte(""), 0600); err != nil {
			errs = append(errs, ErrCantWriteToPath)
		}
		os.Remove(filepath.Join(dir, ".test-file"))
	}

	if c.CleanupInterval != "" {
		d, err := time.ParseDuration(c.CleanupInterval)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%w: %w", ErrBadCleanupInterval, err))
		case d < time.Second:
			errs = append(errs, ErrCleanupIntervalTooLow)
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}
