package challenge

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidAccount is returned for malformed or disallowed account IDs,
	// such as multiplexed addresses.
	ErrInvalidAccount = errors.New("challenge: invalid account")

	// ErrInvalidChallenge is returned for any structural, temporal, domain,
	// signature or threshold violation of a challenge transaction.
	ErrInvalidChallenge = errors.New("challenge: invalid challenge")

	// ErrInvalidAddress is returned by GatherSigners when a candidate signer is
	// not a well-formed account address. It is a kind of ErrInvalidChallenge.
	ErrInvalidAddress = fmt.Errorf("%w: invalid address", ErrInvalidChallenge)
)

func NewError(verb string, kind error, publicReason string, privateReason error) *Error {
	status := http.StatusUnauthorized
	if errors.Is(kind, ErrInvalidAccount) {
		status = http.StatusBadRequest
	}

	return &Error{
		Kind:          kind,
		Verb:          verb,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
		StatusCode:    status,
	}
}

type Error struct {
	Kind          error
	PrivateReason error
	Verb          string
	PublicReason  string
	StatusCode    int
}

func (e *Error) Error() string {
	if e.PrivateReason != nil {
		return fmt.Sprintf("challenge: %s: %s: %v", e.Verb, e.PublicReason, e.PrivateReason)
	}

	return fmt.Sprintf("challenge: %s: %s", e.Verb, e.PublicReason)
}

func (e *Error) Unwrap() []error {
	if e.PrivateReason != nil {
		return []error{e.Kind, e.PrivateReason}
	}

	return []error{e.Kind}
}

func invalidChallenge(verb, publicReason string) *Error {
	return NewError(verb, ErrInvalidChallenge, publicReason, nil)
}
