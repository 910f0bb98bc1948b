// Package client authenticates a Stellar account against a web
// authentication server and returns the session token it issues.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/stellar/go/keypair"
)

var (
	ErrInsecureEndpoint    = errors.New("client: refusing to talk to a non-https endpoint")
	ErrNoSigners           = errors.New("client: at least one signer is required")
	ErrServerSignature     = errors.New("client: challenge is not signed by the server")
	ErrNetworkMismatch     = errors.New("client: server uses a different network passphrase")
	ErrUnexpectedResponse  = errors.New("client: unexpected response from server")
	ErrMissingOption       = errors.New("client: required option is missing")
	ErrAuthenticationError = errors.New("client: server rejected authentication")
)

// Options configure a Client. Endpoint, ServerAccountID, NetworkPassphrase
// and HomeDomain are required.
type Options struct {
	Endpoint          string
	ServerAccountID   string
	NetworkPassphrase string
	HomeDomain        string
	AllowHTTP         bool
	Timeout           time.Duration
	HTTPClient        *http.Client
}

func (o Options) Valid() error {
	var errs []error

	for name, val := range map[string]string{
		"Endpoint":          o.Endpoint,
		"ServerAccountID":   o.ServerAccountID,
		"NetworkPassphrase": o.NetworkPassphrase,
		"HomeDomain":        o.HomeDomain,
	} {
		if val == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingOption, name))
		}
	}

	if o.Endpoint != "" {
		u, err := url.Parse(o.Endpoint)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("client: can't parse endpoint: %w", err))
		case u.Scheme == "https":
		case u.Scheme == "http" && o.AllowHTTP:
		default:
			errs = append(errs, fmt.Errorf("%w: %s", ErrInsecureEndpoint, o.Endpoint))
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

type Client struct {
	opts Options
	auth *challenge.Authenticator
	http *http.Client
}

func New(opts Options) (*Client, error) {
	if err := opts.Valid(); err != nil {
		return nil, err
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	// Valid already checked that the endpoint parses.
	endpoint, _ := url.Parse(opts.Endpoint)

	auth := challenge.New(opts.NetworkPassphrase)
	auth.WebAuthDomain = endpoint.Host

	return &Client{
		opts: opts,
		auth: auth,
		http: httpClient,
	}, nil
}

type challengeResponse struct {
	Transaction       string `json:"transaction"`
	NetworkPassphrase string `json:"network_passphrase"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Authenticate proves control of accountID to the server by signing its
// challenge with signers, and returns the issued token.
func (c *Client) Authenticate(ctx context.Context, accountID string, signers ...*keypair.Full) (string, error) {
	if len(signers) == 0 {
		return "", ErrNoSigners
	}

	txe, err := c.fetchChallenge(ctx, accountID)
	if err != nil {
		return "", err
	}

	chall, err := c.auth.ReadChallenge(txe, c.opts.ServerAccountID, []string{c.opts.HomeDomain})
	if err != nil {
		return "", fmt.Errorf("client: server sent an invalid challenge: %w", err)
	}

	if chall.ClientAccountID != accountID {
		return "", fmt.Errorf("%w: challenge is for %s, not %s", ErrUnexpectedResponse, chall.ClientAccountID, accountID)
	}

	ok, err := challenge.VerifyTxSignedBy(chall.Tx, c.opts.NetworkPassphrase, c.opts.ServerAccountID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrServerSignature
	}

	signed, err := chall.Tx.Sign(c.opts.NetworkPassphrase, signers...)
	if err != nil {
		return "", fmt.Errorf("client: can't sign challenge: %w", err)
	}

	signedTxe, err := signed.Base64()
	if err != nil {
		return "", fmt.Errorf("client: can't encode challenge: %w", err)
	}

	return c.submit(ctx, signedTxe)
}

func (c *Client) fetchChallenge(ctx context.Context, accountID string) (string, error) {
	u, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return "", fmt.Errorf("client: can't parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set("account", accountID)
	q.Set("home_domain", c.opts.HomeDomain)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("client: can't make request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var result challengeResponse
	if err := c.do(req, &result); err != nil {
		return "", err
	}

	if result.NetworkPassphrase != "" && result.NetworkPassphrase != c.opts.NetworkPassphrase {
		return "", fmt.Errorf("%w: %q", ErrNetworkMismatch, result.NetworkPassphrase)
	}

	if result.Transaction == "" {
		return "", fmt.Errorf("%w: no transaction in challenge response", ErrUnexpectedResponse)
	}

	return result.Transaction, nil
}

func (c *Client) submit(ctx context.Context, txe string) (string, error) {
	data, err := json.Marshal(map[string]string{"transaction": txe})
	if err != nil {
		return "", fmt.Errorf("client: can't encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("client: can't make request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var result tokenResponse
	if err := c.do(req, &result); err != nil {
		return "", err
	}

	if result.Token == "" {
		return "", fmt.Errorf("%w: no token in response", ErrUnexpectedResponse)
	}

	return result.Token, nil
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("client: can't read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%w: %d: %s", ErrAuthenticationError, resp.StatusCode, e.Error)
		}

		return fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	return nil
}
