package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/dropDatabas3/caishen/internal/cache"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/events"
	"github.com/dropDatabas3/caishen/internal/metrics"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
	tokens "github.com/dropDatabas3/caishen/internal/security/token"
)

// Espacios de claves en la cache.
const (
	statePrefix     = "csrf:"
	authTokenPrefix = "authcode:"
	stateValue      = "1"
)

// BeginProviderLogin resuelve el proveedor, guarda un state CSRF nuevo y
// devuelve la URL de autorización junto con ese state.
func (s *Service) BeginProviderLogin(ctx context.Context, provider string) (redirectURI string, state domain.CSRFToken, err error) {
	const op = "auth.BeginProviderLogin"
	log := s.log(ctx, op).With(logger.Provider(provider))

	p, err := s.providers.Lookup(provider)
	if err != nil {
		log.Warn("unknown provider")
		return "", domain.CSRFToken{}, classify(op, err)
	}

	code, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", domain.CSRFToken{}, &Error{Kind: KindInternal, Op: op, Err: err}
	}
	if err := s.cache.Set(ctx, statePrefix+code, stateValue, s.cfg.StateTTL); err != nil {
		log.Error("state not stored", logger.Err(err))
		return "", domain.CSRFToken{}, classify(op, err)
	}

	uri, err := p.AuthorizationURL(ctx, code)
	if err != nil {
		log.Error("authorization url failed", logger.Err(err))
		if derr := s.cache.Delete(ctx, statePrefix+code); derr != nil {
			log.Warn("orphan state not removed", logger.Err(derr))
		}
		return "", domain.CSRFToken{}, classify(op, err)
	}
	return uri, domain.CSRFToken{Code: code, Kind: domain.TokenKindState}, nil
}

// HandleProviderCallback valida el state CSRF, intercambia el código con el
// proveedor, busca o crea al usuario por email y devuelve un AuthToken de un
// solo uso.
func (s *Service) HandleProviderCallback(ctx context.Context, provider, code, queryState, cookieState string) (domain.AuthToken, error) {
	const op = "auth.HandleProviderCallback"
	log := s.log(ctx, op).With(logger.Provider(provider))

	tok, err := s.handleCallback(ctx, op, provider, code, queryState, cookieState)
	metrics.AuthAttempts.WithLabelValues("provider_callback", metrics.Outcome(err)).Inc()
	if err != nil {
		log.Warn("provider callback rejected",
			logger.Kind(KindOf(err).String()), logger.Reason(reasonOf(err)), logger.Err(err))
	}
	return tok, err
}

func (s *Service) handleCallback(ctx context.Context, op, provider, code, queryState, cookieState string) (domain.AuthToken, error) {
	p, err := s.providers.Lookup(provider)
	if err != nil {
		return domain.AuthToken{}, classify(op, err)
	}

	// CSRF: presente, igual al de la cookie y consumido una sola vez.
	if queryState == "" || cookieState == "" {
		return domain.AuthToken{}, unauthorized(op, ReasonCSRFMissing)
	}
	if subtle.ConstantTimeCompare([]byte(queryState), []byte(cookieState)) != 1 {
		return domain.AuthToken{}, unauthorized(op, ReasonCSRFMismatch)
	}
	if _, err := s.cache.Take(ctx, statePrefix+cookieState); err != nil {
		if cache.IsNotFound(err) {
			return domain.AuthToken{}, unauthorized(op, ReasonCSRFUnknown)
		}
		return domain.AuthToken{}, classify(op, err)
	}

	if code == "" {
		return domain.AuthToken{}, unauthorized(op, ReasonMissingCode)
	}

	start := time.Now()
	ext, err := p.ExchangeCode(ctx, code)
	metrics.ProviderExchangeDuration.WithLabelValues(p.Slug()).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.AuthToken{}, classify(op, err)
	}

	u, err := s.findOrCreateExternal(ctx, op, p.Name(), ext)
	if err != nil {
		return domain.AuthToken{}, err
	}

	tok, err := s.issueAuthToken(ctx, u.ID)
	if err != nil {
		return domain.AuthToken{}, classify(op, err)
	}
	s.publish(ctx, events.KeyUserLoggedIn, events.UserLoggedIn{
		UserID: u.ID, AuthProvider: u.AuthProvider.String(), At: s.now().UTC(),
	})
	return tok, nil
}

func (s *Service) findOrCreateExternal(ctx context.Context, op string, tag domain.AuthProvider, ext *domain.ExternalUser) (*domain.User, error) {
	email := domain.NormalizeEmail(ext.Email)
	if email == "" {
		return nil, unauthorized(op, ReasonEmailNotVerified)
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return existingExternal(op, u, tag)
	case !repository.IsNotFound(err):
		return nil, classify(op, err)
	}

	birth := s.now().UTC().Truncate(24 * time.Hour)
	if ext.BirthDate != nil {
		birth = *ext.BirthDate
	}
	name := ext.Name
	if name == "" {
		name = email
	}
	u, err = s.users.Create(ctx, repository.CreateUserInput{
		Name:         name,
		Email:        email,
		BirthDate:    birth,
		AuthProvider: tag,
	})
	if repository.IsConflict(err) {
		// Otro login creó el mismo email entre la lectura y el insert.
		u, err = s.users.GetByEmail(ctx, email)
		if err == nil {
			return existingExternal(op, u, tag)
		}
		if repository.IsNotFound(err) {
			return nil, &Error{Kind: KindConflict, Op: op, Reason: ReasonConcurrentSignup,
				Detail: "The account changed during log-in, please try again.", Err: err}
		}
		return nil, classify(op, err)
	}
	if err != nil {
		return nil, classify(op, err)
	}

	metrics.UsersCreated.WithLabelValues(tag.String()).Inc()
	s.log(ctx, op).Info("user created from provider", logger.UserID(u.ID), logger.Provider(tag.String()))
	s.publish(ctx, events.KeyUserCreated, events.UserCreated{
		UserID: u.ID, Email: u.Email, Name: u.Name, AuthProvider: tag.String(), At: s.now().UTC(),
	})
	return u, nil
}

// existingExternal acepta al usuario solo si se registró con el mismo proveedor.
func existingExternal(op string, u *domain.User, tag domain.AuthProvider) (*domain.User, error) {
	if u.AuthProvider != tag {
		return nil, mismatch(op, u.AuthProvider, tag)
	}
	return u, nil
}

// issueAuthToken firma un JWT con exp (y un jti aleatorio para que dos
// logins en el mismo segundo no colisionen) y lo guarda code -> user_id.
func (s *Service) issueAuthToken(ctx context.Context, userID string) (domain.AuthToken, error) {
	jti, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return domain.AuthToken{}, err
	}
	code, err := s.codec.Issue(map[string]any{"jti": jti}, s.cfg.AuthTokenTTL)
	if err != nil {
		return domain.AuthToken{}, err
	}
	if err := s.cache.Set(ctx, authTokenPrefix+code, userID, s.cfg.AuthTokenTTL); err != nil {
		return domain.AuthToken{}, err
	}
	return domain.AuthToken{Code: code, Kind: domain.TokenKindBearer}, nil
}

// ExchangeAuthToken canjea un AuthToken por un AccessToken. El token se
// borra de la cache antes de emitir el access token, así que el segundo
// canje siempre falla.
func (s *Service) ExchangeAuthToken(ctx context.Context, code string) (domain.AccessToken, error) {
	const op = "auth.ExchangeAuthToken"

	tok, err := s.exchangeAuthToken(ctx, op, code)
	metrics.AuthAttempts.WithLabelValues("auth_token", metrics.Outcome(err)).Inc()
	if err != nil {
		s.log(ctx, op).Warn("auth token rejected",
			logger.Kind(KindOf(err).String()), logger.Reason(reasonOf(err)), logger.Err(err))
	}
	return tok, err
}

func (s *Service) exchangeAuthToken(ctx context.Context, op, code string) (domain.AccessToken, error) {
	if code == "" {
		return domain.AccessToken{}, unauthorized(op, ReasonMissingToken)
	}
	if _, err := s.codec.Decode(code); err != nil {
		e := unauthorized(op, ReasonInvalidToken)
		e.Err = err
		return domain.AccessToken{}, e
	}

	userID, err := s.cache.Take(ctx, authTokenPrefix+code)
	if err != nil {
		if cache.IsNotFound(err) {
			return domain.AccessToken{}, unauthorized(op, ReasonAuthTokenUsed)
		}
		return domain.AccessToken{}, classify(op, err)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return domain.AccessToken{}, unauthorized(op, ReasonUnknownUser)
		}
		return domain.AccessToken{}, classify(op, err)
	}

	tok, err := s.issueAccessToken(userID)
	if err != nil {
		return domain.AccessToken{}, classify(op, err)
	}
	return tok, nil
}

func reasonOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}
