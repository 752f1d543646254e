// Package auth validates customer API keys for the HTTP surface.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingAPIKey = errors.New("missing authorization header")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// CustomerContext holds the authenticated customer's identity.
type CustomerContext struct {
	CustomerID string
	Name       string
	Flagged    bool
}

// Authenticator validates a bearer token and returns customer context.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*CustomerContext, error)
}

// StaticAuthenticator is a development-only authenticator: it accepts
// any well-formed cmk_ key without a database lookup and derives the
// customer id from the key prefix.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*CustomerContext, error) {
	if len(token) < 8 || !strings.HasPrefix(token, "cmk_") {
		return nil, ErrInvalidAPIKey
	}
	return &CustomerContext{
		CustomerID: "static-" + token[4:8],
		Name:       "static",
	}, nil
}
