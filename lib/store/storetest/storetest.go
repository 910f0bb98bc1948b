package storetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/webauth/lib/store"
)

// Common runs the behavioural suite every store backend must pass.
func Common(t *testing.T, f store.Factory, config json.RawMessage) {
	if err := f.Valid(config); err != nil {
		t.Fatal(err)
	}

	s, err := f.Build(t.Context(), config)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		doer func(t *testing.T, s store.Interface) error
		err  error
	}{
		{
			name: "basic get set delete",
			doer: func(t *testing.T, s store.Interface) error {
				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to exist in store but it does not: %v", t.Name(), err)
				} else if err != nil {
					t.Error(err)
				}

				if !bytes.Equal(val, []byte(t.Name())) {
					t.Logf("want: %q", t.Name())
					t.Logf("got:  %q", string(val))
					t.Error("wrong value returned")
				}

				if err := s.Delete(t.Context(), t.Name()); err != nil {
					return err
				}

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Error("wanted test to not exist in store but it exists anyways")
				}

				if err := s.Delete(t.Context(), t.Name()); err == nil {
					t.Errorf("key %q does not exist and Delete did not return non-nil", t.Name())
				}

				return nil
			},
		},
		{
			name: "set if absent",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.SetIfAbsent(t.Context(), t.Name(), []byte("first"), 5*time.Minute); err != nil {
					return err
				}

				if err := s.SetIfAbsent(t.Context(), t.Name(), []byte("second"), 5*time.Minute); !errors.Is(err, store.ErrExists) {
					t.Errorf("wanted %v on second insert, got: %v", store.ErrExists, err)
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if !bytes.Equal(val, []byte("first")) {
					t.Errorf("wanted first value to win, got: %q", string(val))
				}

				return s.Delete(t.Context(), t.Name())
			},
		},
		{
			name: "set if absent concurrently",
			doer: func(t *testing.T, s store.Interface) error {
				const writers = 16

				var (
					wg      sync.WaitGroup
					lock    sync.Mutex
					winners []int
					errs    []error
				)

				for i := range writers {
					wg.Add(1)
					go func() {
						defer wg.Done()
						err := s.SetIfAbsent(t.Context(), t.Name(), []byte(fmt.Sprint(i)), 5*time.Minute)

						lock.Lock()
						defer lock.Unlock()
						switch {
						case err == nil:
							winners = append(winners, i)
						case !errors.Is(err, store.ErrExists):
							errs = append(errs, err)
						}
					}()
				}
				wg.Wait()

				if len(errs) != 0 {
					return errors.Join(errs...)
				}

				if len(winners) != 1 {
					t.Fatalf("wanted exactly one writer to win, got %d: %v", len(winners), winners)
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if string(val) != fmt.Sprint(winners[0]) {
					t.Errorf("stored value %q is not the winner's %d", string(val), winners[0])
				}

				return s.Delete(t.Context(), t.Name())
			},
		},
		{
			name: "set if absent after expiry",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.SetIfAbsent(t.Context(), t.Name(), []byte("first"), 150*time.Millisecond); err != nil {
					return err
				}

				//nosleep:bypass XXX(Xe): use Go's time faking thing in Go 1.25 when that is released.
				time.Sleep(155 * time.Millisecond)

				return s.SetIfAbsent(t.Context(), t.Name(), []byte("second"), 5*time.Minute)
			},
		},
		{
			name: "expires",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 150*time.Millisecond); err != nil {
					return err
				}

				//nosleep:bypass XXX(Xe): use Go's time faking thing in Go 1.25 when that is released.
				time.Sleep(155 * time.Millisecond)

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				return nil
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.doer(t, s); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}
