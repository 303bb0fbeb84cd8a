package auth

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/caishen/internal/cache"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/providers"
)

// Kind classifies auth failures. The HTTP layer maps each kind to a status.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindProviderMismatch
	KindUnknownProvider
	KindDiscoveryDocument
	KindProviderConnection
	KindCacheUnavailable
	KindDatabaseUnavailable
	KindConflict
	KindInvalidInput
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindProviderMismatch:
		return "provider_mismatch"
	case KindUnknownProvider:
		return "unknown_provider"
	case KindDiscoveryDocument:
		return "discovery_document"
	case KindProviderConnection:
		return "provider_connection"
	case KindCacheUnavailable:
		return "cache_unavailable"
	case KindDatabaseUnavailable:
		return "database_unavailable"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Gate failure reasons. Logged, never returned to clients.
const (
	ReasonMissingCredentials = "missing credentials"
	ReasonWrongScheme        = "authorization scheme is not bearer"
	ReasonMissingToken       = "missing token"
	ReasonInvalidToken       = "invalid or expired token"
	ReasonMissingSubject     = "token has no subject"
	ReasonUnknownUser        = "user not found"
	ReasonBadCredentials     = "incorrect email or password"
	ReasonCSRFMissing        = "missing csrf state"
	ReasonCSRFMismatch       = "csrf state mismatch"
	ReasonCSRFUnknown        = "csrf state unknown or already used"
	ReasonEmailNotVerified   = "provider email not verified"
	ReasonAuthTokenUsed      = "auth token unknown or already used"
	ReasonMissingCode        = "missing provider authorization code"
	ReasonConcurrentSignup   = "user created and removed during provider login"
)

// Error is the single error type returned by Service.
type Error struct {
	Kind   Kind
	Op     string
	Actor  string
	Detail string
	Reason string

	// Only set for KindProviderMismatch.
	CurrentProvider domain.AuthProvider
	FailedProvider  domain.AuthProvider

	Err error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func unauthorized(op, reason string) *Error {
	return &Error{Kind: KindUnauthorized, Op: op, Reason: reason}
}

// classify wraps errors coming from the cache, the repository and the
// provider adapters into an *Error with the matching kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}

	e := &Error{Op: op, Err: err}
	switch {
	case cache.IsUnavailable(err):
		e.Kind = KindCacheUnavailable
	case repository.IsUnavailable(err):
		e.Kind = KindDatabaseUnavailable
	case repository.IsConflict(err):
		e.Kind = KindConflict
	case repository.IsNotFound(err):
		e.Kind = KindNotFound
	case errors.Is(err, repository.ErrInvalidInput):
		e.Kind = KindInvalidInput
	case errors.Is(err, providers.ErrUnknownProvider):
		e.Kind = KindUnknownProvider
	case errors.Is(err, providers.ErrDiscoveryDocument):
		e.Kind = KindDiscoveryDocument
	case errors.Is(err, providers.ErrProviderConnection):
		e.Kind = KindProviderConnection
	case errors.Is(err, providers.ErrEmailNotVerified):
		e.Kind = KindUnauthorized
		e.Reason = ReasonEmailNotVerified
	default:
		e.Kind = KindInternal
	}
	return e
}

func mismatch(op string, current, failed domain.AuthProvider) *Error {
	return &Error{
		Kind:            KindProviderMismatch,
		Op:              op,
		CurrentProvider: current,
		FailedProvider:  failed,
		Detail: fmt.Sprintf("User is already registered with another provider, please use %s provider to log-in",
			current),
	}
}
