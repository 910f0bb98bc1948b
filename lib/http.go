package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/TecharoHQ/webauth/internal"
	"github.com/TecharoHQ/webauth/lib/challenge"
)

// Claims are the JWT claims of a session token.
type Claims struct {
	HomeDomain string `json:"home_domain"`
	ClientTx   string `json:"client_tx"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the claims RequireToken stored in ctx.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, val any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(val); err != nil {
		slog.Debug("can't write response", "err", err)
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, message string) {
	s.respondWithStatus(w, r, message, http.StatusInternalServerError)
}

func (s *Server) respondWithStatus(w http.ResponseWriter, r *http.Request, msg string, status int) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) issueToken(c *challenge.Challenge) (string, error) {
	now := s.opts.clockNow()

	txHash, err := c.Tx.HashHex(s.opts.Config.NetworkPassphrase)
	if err != nil {
		return "", fmt.Errorf("can't hash challenge: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("can't generate token id: %w", err)
	}

	return s.signJWT(Claims{
		HomeDomain: c.MatchedHomeDomain,
		ClientTx:   txHash,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.opts.Issuer,
			Subject:   c.ClientAccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.Config.TokenExpiration)),
			ID:        id.String(),
		},
	})
}

func (s *Server) signJWT(claims Claims) (string, error) {
	if len(s.hs512Secret) == 0 {
		token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
		token.Header["kid"] = s.keyID
		return token.SignedString(s.ed25519Priv)
	} else {
		return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.hs512Secret)
	}
}

func (s *Server) parseJWT(tokenString string) (*Claims, error) {
	method := jwt.SigningMethodEdDSA.Alg()
	if len(s.hs512Secret) != 0 {
		method = jwt.SigningMethodHS512.Alg()
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if len(s.hs512Secret) != 0 {
			return s.hs512Secret, nil
		}
		return s.ed25519Pub, nil
	},
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.opts.Issuer),
		jwt.WithTimeFunc(s.opts.clockNow),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}

	return &claims, nil
}

// RequireToken only lets requests through that carry a valid session token in
// the Authorization header. The token claims are available to next through
// ClaimsFromContext.
func (s *Server) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lg := internal.GetRequestLogger(r)

		tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.respondWithStatus(w, r, "authorization required", http.StatusUnauthorized)
			return
		}

		claims, err := s.parseJWT(tokenString)
		if err != nil {
			lg.Debug("invalid token", "err", err)
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			s.respondWithStatus(w, r, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}
