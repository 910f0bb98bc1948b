package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/webauth/decaymap"
	"github.com/TecharoHQ/webauth/lib/store"
)

var ErrBadCleanupInterval = errors.New("memory: cleanup_interval must be a duration of at least one second")

const defaultCleanupInterval = 5 * time.Minute

// Config is the optional memory backend configuration.
type Config struct {
	CleanupInterval string `json:"cleanup_interval,omitempty"`
}

func (c Config) interval() (time.Duration, error) {
	if c.CleanupInterval == "" {
		return defaultCleanupInterval, nil
	}

	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadCleanupInterval, err)
	}

	if d < time.Second {
		return 0, ErrBadCleanupInterval
	}

	return d, nil
}

type factory struct{}

func parseConfig(data json.RawMessage) (time.Duration, error) {
	var config Config
	if len(data) != 0 {
		if err := json.Unmarshal(data, &config); err != nil {
			return 0, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
		}
	}

	d, err := config.interval()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return d, nil
}

func (factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	interval, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	return newWithInterval(ctx, interval), nil
}

func (factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}

func init() {
	store.Register("memory", factory{})
}

type impl struct {
	store *decaymap.Impl[string, []byte]
}

func (i *impl) Delete(_ context.Context, key string) error {
	if !i.store.Delete(key) {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (i *impl) Get(_ context.Context, key string) ([]byte, error) {
	result, ok := i.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return result, nil
}

func (i *impl) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	i.store.Set(key, value, expiry)
	return nil
}

func (i *impl) SetIfAbsent(_ context.Context, key string, value []byte, expiry time.Duration) error {
	if !i.store.SetIfAbsent(key, value, expiry) {
		return fmt.Errorf("%w: %q", store.ErrExists, key)
	}

	return nil
}

func (i *impl) cleanupThread(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i.store.Cleanup()
		}
	}
}

// New creates a simple in-memory store. Consumed nonces are not shared between
// processes, so this will not scale to multiple webauth instances.
func New(ctx context.Context) store.Interface {
	return newWithInterval(ctx, defaultCleanupInterval)
}

func newWithInterval(ctx context.Context, interval time.Duration) *impl {
	result := &impl{
		store: decaymap.New[string, []byte](),
	}

	go result.cleanupThread(ctx, interval)

	return result
}
