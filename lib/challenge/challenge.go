package challenge

import (
	"crypto/rand"
	"io"
	"strings"
	"time"

	"github.com/stellar/go/txnbuild"
)

const (
	// NonceSize is the number of random bytes embedded in every challenge.
	NonceSize = 48

	// WebAuthDomainKey is the manage-data key of the optional operation that
	// names the domain serving the auth endpoint.
	WebAuthDomainKey = "web_auth_domain"

	authSuffix = " auth"
)

// Challenge is the result of reading a challenge transaction.
type Challenge struct {
	Tx                *txnbuild.Transaction
	ClientAccountID   string // source of the first operation
	MatchedHomeDomain string // the allowed home domain the first operation was built for
	Nonce             string // base64 value of the first operation
}

// Signer is one declared signer of an account and its weight.
type Signer struct {
	Key    string `json:"key"`
	Weight int32  `json:"weight"`
}

// SignerSummary is the signer list of an account.
type SignerSummary []Signer

// Keys returns the signer addresses in declaration order.
func (ss SignerSummary) Keys() []string {
	result := make([]string, 0, len(ss))
	for _, s := range ss {
		result = append(result, s.Key)
	}
	return result
}

// Weights maps every signer to its weight. When a key is listed more than
// once the last entry wins.
func (ss SignerSummary) Weights() map[string]int32 {
	result := make(map[string]int32, len(ss))
	for _, s := range ss {
		result[s.Key] = s.Weight
	}
	return result
}

// Clock tells the current time. Tests swap it out to move across the time
// bounds of a challenge deterministically.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Authenticator builds and verifies SEP-10 challenge transactions for one
// network. The zero value of every field except NetworkPassphrase is usable.
// An Authenticator holds no mutable state and may be shared between
// goroutines.
type Authenticator struct {
	// NetworkPassphrase selects the network the signatures are bound to.
	NetworkPassphrase string

	// WebAuthDomain, when set, is embedded into built challenges and checked
	// when reading them.
	WebAuthDomain string

	// Clock defaults to SystemClock.
	Clock Clock

	// Rand defaults to crypto/rand.Reader.
	Rand io.Reader
}

// New creates an Authenticator for the given network passphrase.
func New(networkPassphrase string) *Authenticator {
	return &Authenticator{
		NetworkPassphrase: networkPassphrase,
		Clock:             SystemClock,
		Rand:              rand.Reader,
	}
}

func (a *Authenticator) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

func (a *Authenticator) rand() io.Reader {
	if a.Rand == nil {
		return rand.Reader
	}
	return a.Rand
}

// IsMuxedAddress reports whether address uses the multiplexed (M...)
// account encoding. Muxed accounts are never accepted as principals.
func IsMuxedAddress(address string) bool {
	return strings.HasPrefix(address, "M")
}
