package lib

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/TecharoHQ/webauth"
	"github.com/TecharoHQ/webauth/data"
	"github.com/TecharoHQ/webauth/internal"
	"github.com/TecharoHQ/webauth/lib/accounts"
	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/TecharoHQ/webauth/lib/config"
	"github.com/TecharoHQ/webauth/lib/store"
	"github.com/stellar/go/keypair"
)

type Options struct {
	Config            *config.Config
	SigningKey        *keypair.Full
	Accounts          accounts.Source
	Store             store.Interface
	ED25519PrivateKey ed25519.PrivateKey
	HS512Secret       []byte
	BasePrefix        string
	Issuer            string
	Clock             challenge.Clock
}

func LoadConfigOrDefault(fname string) (*config.Config, error) {
	var fin io.ReadCloser
	var err error

	if fname != "" {
		fin, err = os.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("can't open config file %s: %w", fname, err)
		}
	} else {
		fname = "(data)/webauth.yaml"
		fin, err = data.Config.Open("webauth.yaml")
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't open builtin config file %s: %w", fname, err)
		}
	}

	defer func(fin io.ReadCloser) {
		err := fin.Close()
		if err != nil {
			slog.Error("failed to close config file", "file", fname, "err", err)
		}
	}(fin)

	return config.Load(fin, fname)
}

// BuildAccountSource wires the configured account sources together. Static
// accounts are consulted first, then horizon through the account cache.
//
// A configuration without any source is rejected: every account would look
// unfunded and could sign in with its master key alone.
func BuildAccountSource(cfg config.Accounts, st store.Interface) (accounts.Source, error) {
	var result accounts.Chain

	if len(cfg.Static) != 0 {
		result = append(result, accounts.NewStatic(cfg.Static))
	}

	if cfg.HorizonURL != "" {
		result = append(result, accounts.NewCached(accounts.NewHorizon(cfg.HorizonURL, nil), st, cfg.CacheTTL))
	}

	if len(result) == 0 {
		return nil, config.ErrNoAccountSource
	}

	return result, nil
}

func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("lib: no config provided")
	}

	if opts.SigningKey == nil {
		return nil, fmt.Errorf("lib: no signing key provided")
	}

	if opts.ED25519PrivateKey == nil && opts.HS512Secret == nil {
		slog.Debug("opts.ED25519PrivateKey not set, generating a new one")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("lib: can't generate private key: %v", err)
		}
		opts.ED25519PrivateKey = priv
	}

	if opts.Store == nil {
		st, err := store.Build(ctx, opts.Config.Store.Backend, opts.Config.Store.Parameters)
		if err != nil {
			return nil, fmt.Errorf("lib: can't build %s store: %w", opts.Config.Store.Backend, err)
		}
		opts.Store = st
	}

	if opts.Accounts == nil {
		src, err := BuildAccountSource(opts.Config.Accounts, opts.Store)
		if err != nil {
			return nil, fmt.Errorf("lib: can't build account source: %w", err)
		}
		opts.Accounts = src
	}

	opts.BasePrefix = strings.TrimSuffix(opts.BasePrefix, "/")

	if opts.Issuer == "" {
		host := opts.Config.WebAuthDomain
		if host == "" {
			host = opts.Config.HomeDomains[0]
		}
		opts.Issuer = "https://" + host + opts.BasePrefix + webauth.AuthPath
	}

	auth := challenge.New(opts.Config.NetworkPassphrase)
	auth.WebAuthDomain = opts.Config.WebAuthDomain
	if opts.Clock != nil {
		auth.Clock = opts.Clock
	}

	result := &Server{
		auth:        auth,
		signingKey:  opts.SigningKey,
		accounts:    opts.Accounts,
		nonces:      &store.JSON[string]{Underlying: opts.Store, Prefix: webauth.NonceStorePrefix},
		ed25519Priv: opts.ED25519PrivateKey,
		hs512Secret: opts.HS512Secret,
		opts:        opts,
	}

	if opts.ED25519PrivateKey != nil {
		result.ed25519Pub = opts.ED25519PrivateKey.Public().(ed25519.PublicKey)
		result.keyID = internal.FastHash(string(result.ed25519Pub))
	}

	mux := http.NewServeMux()

	// Helper to add global prefix
	registerWithPrefix := func(pattern string, handler http.Handler, method string) {
		if method != "" {
			method = method + " " // methods must end with a space to register with them
		}

		prefix := method + opts.BasePrefix

		// If pattern doesn't start with a slash, add one
		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}

		mux.Handle(prefix+pattern, handler)
	}

	registerWithPrefix(webauth.AuthPath, internal.NoStoreCache(http.HandlerFunc(result.GetChallenge)), "GET")
	registerWithPrefix(webauth.AuthPath, internal.NoStoreCache(http.HandlerFunc(result.PostChallenge)), "POST")
	registerWithPrefix(webauth.AuthPath+"/check", internal.NoStoreCache(result.RequireToken(http.HandlerFunc(result.CheckToken))), "GET")
	mux.HandleFunc("GET "+webauth.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	})

	result.mux = mux

	return result, nil
}
