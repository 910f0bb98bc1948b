package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"embed"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TecharoHQ/webauth"
	"github.com/TecharoHQ/webauth/data"
	"github.com/TecharoHQ/webauth/internal"
	libwebauth "github.com/TecharoHQ/webauth/lib"
	"github.com/TecharoHQ/webauth/lib/config"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stellar/go/keypair"
)

var (
	basePrefix               = flag.String("base-prefix", "", "base prefix (root URL) the application is served under e.g. /sep10")
	bind                     = flag.String("bind", ":8923", "network address to bind HTTP to")
	bindNetwork              = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	configFname              = flag.String("config-fname", "", "full path to the webauth config document (defaults to a built-in testnet config)")
	signingSeed              = flag.String("signing-seed", "", "S... secret seed of the server account that signs challenges, if not set a random one will be assigned")
	signingSeedFile          = flag.String("signing-seed-file", "", "file name containing value for signing-seed")
	hs512Secret              = flag.String("hs512-secret", "", "secret used to sign JWTs, uses ed25519 if not set")
	ed25519PrivateKeyHex     = flag.String("ed25519-private-key-hex", "", "private key used to sign JWTs, if not set a random one will be assigned")
	ed25519PrivateKeyHexFile = flag.String("ed25519-private-key-hex-file", "", "file name containing value for ed25519-private-key-hex")
	tokenExpiration          = flag.Duration("token-expiration", 0, "if set, overrides token_expiration from the config document")
	metricsBind              = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork       = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	socketMode               = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	slogLevel                = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	healthcheck              = flag.Bool("healthcheck", false, "run a health check against webauth")
	useRemoteAddress         = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running webauth on bare metal")
	extractResources         = flag.String("extract-resources", "", "if set, extract the built-in config to the specified folder")
	printConfig              = flag.Bool("print-config", false, "print the effective config document as YAML and exit")
	versionFlag              = flag.Bool("version", false, "print webauth version")
	xffStripPrivate          = flag.Bool("xff-strip-private", true, "if set, strip private addresses from X-Forwarded-For")
)

func keyFromHex(value string) (ed25519.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("supplied key is not hex-encoded: %w", err)
	}

	if len(keyBytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("supplied key is not %d bytes long, got %d bytes", ed25519.SeedSize, len(keyBytes))
	}

	return ed25519.NewKeyFromSeed(keyBytes), nil
}

func valueOrFile(value, fname, name string) (string, error) {
	switch {
	case value != "" && fname != "":
		return "", fmt.Errorf("do not specify both %s and %s_FILE", name, name)
	case fname != "":
		data, err := os.ReadFile(fname)
		if err != nil {
			return "", fmt.Errorf("failed to read %s_FILE %s: %w", name, fname, err)
		}
		return string(bytes.TrimSpace(data)), nil
	default:
		return value, nil
	}
}

func healthCheckURL(metricsBind, basePrefix string) string {
	return "http://localhost" + metricsBind + basePrefix + "/metrics"
}

func doHealthCheck(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// parseBindNetFromAddr determine bind network and address based on the given network and address.
func parseBindNetFromAddr(address string) (string, string) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindUri, err := url.Parse(address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to parse bind URL: %w", err))
	}

	switch bindUri.Scheme {
	case "unix":
		return "unix", bindUri.Path
	case "tcp", "http", "https":
		return "tcp", bindUri.Host
	default:
		log.Fatal(fmt.Errorf("unsupported network scheme %s in address %s", bindUri.Scheme, address))
	}
	return "", address
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	if network == "" {
		// keep compatibility
		network, address = parseBindNetFromAddr(address)
	}

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :4259
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	// additional permission handling for unix sockets
	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		err = os.Chmod(address, os.FileMode(mode))
		if err != nil {
			err := listener.Close()
			if err != nil {
				log.Printf("failed to close listener: %v", err)
			}
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("webauth", webauth.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *healthcheck {
		if err := doHealthCheck(healthCheckURL(*metricsBind, *basePrefix)); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *extractResources != "" {
		if err := extractEmbedFS(data.Config, ".", *extractResources); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Extracted embedded config to %s\n", *extractResources)
		return
	}

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}

	cfg, err := libwebauth.LoadConfigOrDefault(*configFname)
	if err != nil {
		log.Fatalf("can't parse config file: %v", err)
	}

	if *tokenExpiration != 0 {
		cfg.TokenExpiration = *tokenExpiration
	}

	if *printConfig {
		doc, err := config.Dump(cfg)
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(doc)
		return
	}

	seed, err := valueOrFile(*signingSeed, *signingSeedFile, "SIGNING_SEED")
	if err != nil {
		log.Fatal(err)
	}

	var signingKey *keypair.Full
	if seed != "" {
		signingKey, err = keypair.ParseFull(seed)
		if err != nil {
			log.Fatalf("failed to parse and validate SIGNING_SEED: %v", err)
		}
	} else {
		signingKey = keypair.MustRandom()
		slog.Warn("generating random signing key, clients pin the server account so every restart will break them", "server_account", signingKey.Address())
	}

	keyHex, err := valueOrFile(*ed25519PrivateKeyHex, *ed25519PrivateKeyHexFile, "ED25519_PRIVATE_KEY_HEX")
	if err != nil {
		log.Fatal(err)
	}

	var ed25519Priv ed25519.PrivateKey
	switch {
	case *hs512Secret != "" && keyHex != "":
		log.Fatal("do not specify both HS512 and ED25519 secrets")
	case keyHex != "":
		ed25519Priv, err = keyFromHex(keyHex)
		if err != nil {
			log.Fatalf("failed to parse and validate ED25519_PRIVATE_KEY_HEX: %v", err)
		}
	case *hs512Secret == "":
		slog.Warn("generating random JWT key, tokens will not survive a restart or be accepted by other instances")
	}

	wg := new(sync.WaitGroup)
	// install signal handler
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hs512 []byte
	if *hs512Secret != "" {
		hs512 = []byte(*hs512Secret)
	}

	s, err := libwebauth.New(ctx, libwebauth.Options{
		Config:            cfg,
		SigningKey:        signingKey,
		ED25519PrivateKey: ed25519Priv,
		HS512Secret:       hs512,
		BasePrefix:        *basePrefix,
	})
	if err != nil {
		log.Fatalf("can't construct libwebauth.Server: %v", err)
	}

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, *basePrefix, wg.Done)
	}

	var h http.Handler
	h = s
	h = internal.GzipMiddleware(1, h)
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(h)
	h = internal.XForwardedForUpdate(*xffStripPrivate, h)

	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl := setupListener(*bindNetwork, *bind)
	slog.Info(
		"listening",
		"url", listenerUrl,
		"version", webauth.Version,
		"server_account", signingKey.Address(),
		"network_passphrase", cfg.NetworkPassphrase,
		"home_domains", cfg.HomeDomains,
		"web_auth_domain", cfg.WebAuthDomain,
		"store", cfg.Store.Backend,
		"challenge_timeout", cfg.ChallengeTimeout,
		"token_expiration", cfg.TokenExpiration,
		"use-remote-address", *useRemoteAddress,
		"base-prefix", *basePrefix,
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, basePrefix string, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle(basePrefix+"/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener(*metricsBindNetwork, *metricsBind)
	slog.Debug("listening for metrics", "url", metricsUrl)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func extractEmbedFS(fsys embed.FS, root string, destDir string) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, root, relPath)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0o700)
		}

		embeddedData, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		return os.WriteFile(destPath, embeddedData, 0o644)
	})
}
