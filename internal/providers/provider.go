// Package providers defines the external identity providers users can log in with.
//
// Architecture:
//   - Provider interface: the two calls the login flow needs (authorization
//     URL, code exchange) plus name matching for routing.
//   - Registry: a closed set built once at startup from config.
//   - Implementations: one sub-package per provider (google, facebook).
//
// Every adapter makes a single attempt per call with bounded timeouts and
// maps failures onto the sentinel errors below.
package providers

import (
	"context"
	"errors"

	"github.com/dropDatabas3/caishen/internal/domain"
)

var (
	// ErrUnknownProvider: no registered adapter matches the requested name.
	ErrUnknownProvider = errors.New("unknown auth provider")
	// ErrDiscoveryDocument: the OIDC discovery document lacks a required key.
	ErrDiscoveryDocument = errors.New("invalid discovery document")
	// ErrProviderConnection: network, status or decoding failure talking to the provider.
	ErrProviderConnection = errors.New("provider connection error")
	// ErrEmailNotVerified: the provider did not vouch for the user's email.
	ErrEmailNotVerified = errors.New("provider email not verified")
)

// Provider is an external login provider.
type Provider interface {
	// Name is the provider tag stored on users created through it.
	Name() domain.AuthProvider

	// Slug is the route segment, e.g. "google" in /login/google-login.
	Slug() string

	// Matches reports whether a requested name selects this provider.
	Matches(name string) bool

	// AuthorizationURL builds the URL the browser is redirected to.
	// state is the CSRF token minted by the caller.
	AuthorizationURL(ctx context.Context, state string) (string, error)

	// ExchangeCode trades the callback code for an access token and then
	// fetches the user's profile with it.
	ExchangeCode(ctx context.Context, code string) (*domain.ExternalUser, error)
}
