package lib

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stellar/go/keypair"

	"github.com/TecharoHQ/webauth/internal"
	"github.com/TecharoHQ/webauth/lib/accounts"
	"github.com/TecharoHQ/webauth/lib/challenge"
	"github.com/TecharoHQ/webauth/lib/store"
)

// maxRequestBody bounds POST bodies. A challenge envelope with a handful of
// signatures is well under this.
const maxRequestBody = 64 << 10

var (
	challengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webauth_challenges_issued",
		Help: "The total number of challenges issued",
	}, []string{"home_domain"})

	challengesValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webauth_challenges_validated",
		Help: "The total number of challenges validated",
	}, []string{"home_domain"})

	failedValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webauth_failed_validations",
		Help: "The total number of failed validations",
	}, []string{"verb"})

	replaysBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webauth_replays_blocked",
		Help: "The total number of challenges rejected because their nonce was already spent",
	})
)

type Server struct {
	mux         *http.ServeMux
	auth        *challenge.Authenticator
	signingKey  *keypair.Full
	accounts    accounts.Source
	nonces      *store.JSON[string]
	ed25519Priv ed25519.PrivateKey
	ed25519Pub  ed25519.PublicKey
	hs512Secret []byte
	keyID       string
	opts        Options
}

type challengeResponse struct {
	Transaction       string `json:"transaction"`
	NetworkPassphrase string `json:"network_passphrase"`
}

type tokenRequest struct {
	Transaction string `json:"transaction"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) GetChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	account := r.FormValue("account")
	if account == "" {
		s.respondWithStatus(w, r, "account is required", http.StatusBadRequest)
		return
	}

	if challenge.IsMuxedAddress(account) {
		s.respondWithStatus(w, r, "multiplexed accounts are not supported", http.StatusBadRequest)
		return
	}

	if _, err := keypair.ParseAddress(account); err != nil {
		lg.Debug("invalid account", "account", account, "err", err)
		s.respondWithStatus(w, r, "account is not a valid G... address", http.StatusBadRequest)
		return
	}

	homeDomain := r.FormValue("home_domain")
	switch {
	case homeDomain == "":
		homeDomain = s.opts.Config.HomeDomains[0]
	case !slices.Contains(s.opts.Config.HomeDomains, homeDomain):
		s.respondWithStatus(w, r, fmt.Sprintf("home_domain %q is not supported", homeDomain), http.StatusBadRequest)
		return
	}

	txe, err := s.auth.BuildChallenge(s.signingKey, account, homeDomain, s.opts.Config.ChallengeTimeout)
	if err != nil {
		var cerr *challenge.Error
		if errors.As(err, &cerr) {
			s.respondWithStatus(w, r, cerr.PublicReason, cerr.StatusCode)
			return
		}

		lg.Error("can't build challenge", "err", err)
		s.respondWithError(w, r, "Internal Server Error: can't build challenge")
		return
	}

	challengesIssued.WithLabelValues(homeDomain).Inc()
	lg.Debug("issued challenge", "account", account, "home_domain", homeDomain)

	s.respondJSON(w, http.StatusOK, challengeResponse{
		Transaction:       txe,
		NetworkPassphrase: s.opts.Config.NetworkPassphrase,
	})
}

func readTokenRequest(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("can't decode request body: %w", err)
		}

		return req.Transaction, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("can't parse form: %w", err)
	}

	return r.PostForm.Get("transaction"), nil
}

func (s *Server) PostChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	txe, err := readTokenRequest(r)
	if err != nil {
		lg.Debug("can't read token request", "err", err)
		s.respondWithStatus(w, r, "transaction is required", http.StatusBadRequest)
		return
	}

	if txe == "" {
		s.respondWithStatus(w, r, "transaction is required", http.StatusBadRequest)
		return
	}

	serverID := s.signingKey.Address()
	homeDomains := s.opts.Config.HomeDomains

	c, err := s.auth.ReadChallenge(txe, serverID, homeDomains)
	if err != nil {
		s.respondWithChallengeError(w, r, lg, err)
		return
	}

	lg = lg.With("account", c.ClientAccountID, "home_domain", c.MatchedHomeDomain)

	acct, err := s.accounts.Lookup(r.Context(), c.ClientAccountID)
	var signers []string
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		lg.Debug("account not found, verifying against the master key")
		signers, err = s.auth.VerifySigners(txe, serverID, []string{c.ClientAccountID}, homeDomains)
	case err != nil:
		lg.Error("can't look up account", "err", err)
		s.respondWithStatus(w, r, "can't look up account signers, try again later", http.StatusServiceUnavailable)
		return
	default:
		signers, err = s.auth.VerifyThreshold(txe, serverID, int(acct.Thresholds.Medium), acct.Signers, homeDomains)
	}
	if err != nil {
		s.respondWithChallengeError(w, r, lg, err)
		return
	}

	if err := s.spendNonce(r, c); err != nil {
		if errors.Is(err, store.ErrExists) {
			replaysBlocked.Inc()
			lg.Info("challenge replayed")
			s.respondWithStatus(w, r, "challenge has already been used", http.StatusUnauthorized)
			return
		}

		lg.Error("can't record spent nonce", "err", err)
		s.respondWithError(w, r, "Internal Server Error: can't record challenge")
		return
	}

	token, err := s.issueToken(c)
	if err != nil {
		lg.Error("can't sign token", "err", err)
		s.respondWithError(w, r, "Internal Server Error: can't sign token")
		return
	}

	challengesValidated.WithLabelValues(c.MatchedHomeDomain).Inc()
	lg.Info("issued token", "signers", signers)

	s.respondJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// spendNonce marks the challenge nonce as used until the challenge would have
// expired anyway.
func (s *Server) spendNonce(r *http.Request, c *challenge.Challenge) error {
	ttl := time.Minute
	if maxTime := c.Tx.Timebounds().MaxTime; maxTime != 0 {
		ttl += time.Unix(maxTime, 0).Sub(s.opts.clockNow())
	}

	return s.nonces.SetIfAbsent(r.Context(), internal.SHA256sum(c.Nonce), c.ClientAccountID, ttl)
}

func (s *Server) respondWithChallengeError(w http.ResponseWriter, r *http.Request, lg *slog.Logger, err error) {
	var cerr *challenge.Error
	if !errors.As(err, &cerr) {
		lg.Error("can't verify challenge", "err", err)
		s.respondWithError(w, r, "Internal Server Error: can't verify challenge")
		return
	}

	failedValidations.WithLabelValues(cerr.Verb).Inc()
	lg.Debug("challenge rejected", "err", err)
	s.respondWithStatus(w, r, cerr.PublicReason, cerr.StatusCode)
}

func (s *Server) CheckToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		s.respondWithStatus(w, r, "authorization required", http.StatusUnauthorized)
		return
	}

	s.respondJSON(w, http.StatusOK, claims)
}

func (o Options) clockNow() time.Time {
	if o.Clock != nil {
		return o.Clock.Now()
	}

	return time.Now()
}
