// Package auth coordina el login: proveedores externos, tokens de un solo
// uso, login local y el gate de autorización de las rutas protegidas.
package auth

import (
	"context"
	"time"

	"github.com/dropDatabas3/caishen/internal/cache"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/events"
	"github.com/dropDatabas3/caishen/internal/jwt"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
	"github.com/dropDatabas3/caishen/internal/providers"
	"github.com/dropDatabas3/caishen/internal/security/password"
	"go.uber.org/zap"
)

// Config son los tiempos de vida y parámetros de hashing del servicio.
type Config struct {
	AccessTokenTTL time.Duration
	AuthTokenTTL   time.Duration
	StateTTL       time.Duration

	PasswordParams password.Params
	PasswordPolicy password.Policy
}

// Deps agrupa las dependencias del servicio. Events puede ser nil.
type Deps struct {
	Users     repository.UserRepository
	Cache     cache.Client
	Codec     *jwt.Codec
	Providers *providers.Registry
	Events    events.Publisher
}

type Service struct {
	cfg       Config
	users     repository.UserRepository
	cache     cache.Client
	codec     *jwt.Codec
	providers *providers.Registry
	events    events.Publisher
	now       func() time.Time
}

// NewService arma el servicio; no hace I/O.
func NewService(cfg Config, d Deps) *Service {
	if cfg.PasswordParams == (password.Params{}) {
		cfg.PasswordParams = password.Default
	}
	pub := d.Events
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		cfg:       cfg,
		users:     d.Users,
		cache:     d.Cache,
		codec:     d.Codec,
		providers: d.Providers,
		events:    pub,
		now:       time.Now,
	}
}

// Providers expone el registro (la capa HTTP lo usa para listar slugs).
func (s *Service) Providers() *providers.Registry { return s.providers }

// issueAccessToken firma {sub, exp}.
func (s *Service) issueAccessToken(userID string) (domain.AccessToken, error) {
	code, err := s.codec.Issue(map[string]any{"sub": userID}, s.cfg.AccessTokenTTL)
	if err != nil {
		return domain.AccessToken{}, err
	}
	return domain.AccessToken{Code: code, Kind: domain.TokenKindBearer}, nil
}

// publish emite un evento; un broker caído no rompe el login.
func (s *Service) publish(ctx context.Context, key string, ev any) {
	if err := s.events.Publish(ctx, key, ev); err != nil {
		logger.From(ctx).Warn("event publish failed",
			logger.Component("auth"), logger.Key(key), logger.Err(err))
	}
}

func (s *Service) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op(op))
}
