// Package app arma el grafo de dependencias del servicio a partir de la
// configuración. No arranca el servidor: eso lo hace cmd/caishen.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/caishen/internal/auth"
	"github.com/dropDatabas3/caishen/internal/cache"
	"github.com/dropDatabas3/caishen/internal/config"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/email"
	"github.com/dropDatabas3/caishen/internal/events"
	"github.com/dropDatabas3/caishen/internal/http/controllers/health"
	"github.com/dropDatabas3/caishen/internal/http/controllers/login"
	userctl "github.com/dropDatabas3/caishen/internal/http/controllers/users"
	"github.com/dropDatabas3/caishen/internal/http/helpers"
	mw "github.com/dropDatabas3/caishen/internal/http/middlewares"
	"github.com/dropDatabas3/caishen/internal/http/router"
	"github.com/dropDatabas3/caishen/internal/jwt"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
	"github.com/dropDatabas3/caishen/internal/providers"
	"github.com/dropDatabas3/caishen/internal/providers/facebook"
	"github.com/dropDatabas3/caishen/internal/providers/google"
	"github.com/dropDatabas3/caishen/internal/rate"
	"github.com/dropDatabas3/caishen/internal/security/password"
	"github.com/dropDatabas3/caishen/internal/store/memory"
	"github.com/dropDatabas3/caishen/internal/store/pg"
	"github.com/dropDatabas3/caishen/internal/users"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// App es el servicio armado.
type App struct {
	Config  *config.Config
	Handler http.Handler
	Auth    *auth.Service
	Users   repository.UserRepository

	closers []func() error
}

// Build construye todas las dependencias. Si algo falla a mitad de camino
// cierra lo que ya abrió.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Component("app"))
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// Storage
	var pool func() *pgxpool.Pool
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("using in-memory user store; data is lost on restart")
		a.Users = memory.NewUsers()
	default:
		if cfg.Flags.Migrate {
			if err := pg.MigrateUp(cfg.Storage.DSN); err != nil {
				return nil, fmt.Errorf("app: migrate: %w", err)
			}
			log.Info("migrations applied")
		}
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { st.Close(); return nil })
		a.Users = st
		pool = st.Pool
	}

	// Cache de credenciales
	cc, err := cache.New(cache.Config{Driver: cfg.Cache.Kind, URL: cfg.Cache.URL, Prefix: cfg.Cache.Prefix})
	if err != nil {
		return nil, fmt.Errorf("app: cache: %w", err)
	}
	a.closers = append(a.closers, cc.Close)

	codec, err := jwt.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.Leeway)
	if err != nil {
		return nil, fmt.Errorf("app: jwt: %w", err)
	}

	// Eventos
	var pub events.Publisher = events.Noop{}
	if cfg.Events.AMQPURL != "" {
		rp, err := events.NewRabbit(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			// el broker es opcional: sin él el login sigue funcionando
			log.Warn("amqp unavailable, events disabled", logger.Err(err))
		} else {
			a.closers = append(a.closers, rp.Close)
			pub = rp
		}
	}

	a.Auth = auth.NewService(auth.Config{
		AccessTokenTTL: cfg.AccessTokenTTL(),
		AuthTokenTTL:   cfg.AuthTokenTTL(),
		StateTTL:       cfg.Auth.StateTTL,
		PasswordParams: password.Default,
		PasswordPolicy: password.Policy{
			MinLength:    cfg.Security.PasswordPolicy.MinLength,
			RequireUpper: cfg.Security.PasswordPolicy.RequireUpper,
			RequireDigit: cfg.Security.PasswordPolicy.RequireDigit,
		},
	}, auth.Deps{
		Users:     a.Users,
		Cache:     cc,
		Codec:     codec,
		Providers: buildProviders(cfg),
		Events:    pub,
	})

	if err := a.ensureSuperuser(ctx); err != nil {
		log.Warn("superuser bootstrap failed", logger.Err(err))
	}

	var mail email.Sender = email.Noop{}
	if cfg.SMTP.Host != "" {
		mail = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From,
			cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.TLS)
	}
	loginURL := cfg.Server.FrontendURL
	if loginURL == "" {
		loginURL = cfg.Server.APIPrefix + "/login/access-token"
	}
	userSvc := users.NewService(a.Users, a.Auth, mail, loginURL)

	limiter, err := a.buildLimiter(cfg)
	if err != nil {
		return nil, err
	}

	metricsHandler, err := mw.RegisterMetrics(mw.MetricsConfig{Registry: prometheus.DefaultRegisterer, Pool: pool})
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	cookies := helpers.CookieConfig{
		Domain:   cfg.Auth.Cookie.Domain,
		SameSite: cfg.Auth.Cookie.SameSite,
		Secure:   cfg.Auth.Cookie.Secure,
	}
	a.Handler = router.New(router.Deps{
		APIPrefix: cfg.Server.APIPrefix,
		CORS: mw.CORSConfig{
			Origins:          cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			Methods:          cfg.CORS.Methods,
			Headers:          cfg.CORS.Headers,
		},
		Authorizer: a.Auth,
		Login: login.NewLoginController(a.Auth, login.Config{
			APIPrefix:      cfg.Server.APIPrefix,
			Cookies:        cookies,
			StateTTL:       cfg.Auth.StateTTL,
			AuthTokenTTL:   cfg.AuthTokenTTL(),
			AccessTokenTTL: cfg.AccessTokenTTL(),
		}),
		Users: userctl.NewUsersController(userSvc, cfg.Auth.DisableSignup),
		Health: health.NewHealthController(cfg.App.Version, map[string]health.Pinger{
			"database": a.Users,
			"cache":    cc,
		}),
		LoginLimiter: limiter,
		Metrics:      metricsHandler,
	})

	log.Info("app ready",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Any("providers", a.Auth.Providers().Slugs()))
	return a, nil
}

func buildProviders(cfg *config.Config) *providers.Registry {
	var ps []providers.Provider
	if g := cfg.Providers.Google; g.Enabled {
		ps = append(ps, google.New(google.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			RedirectURL:  g.RedirectURL,
			DiscoveryURL: g.DiscoveryURL,
			DiscoveryTTL: g.DiscoveryTTL,
			Scopes:       g.Scopes,
			Timeout:      cfg.Providers.HTTPTimeout,
		}))
	}
	if f := cfg.Providers.Facebook; f.Enabled {
		ps = append(ps, facebook.New(facebook.Config{
			ClientID:     f.ClientID,
			ClientSecret: f.ClientSecret,
			RedirectURL:  f.RedirectURL,
			AuthURL:      f.AuthURL,
			TokenURL:     f.TokenURL,
			UserInfoURL:  f.UserInfoURL,
			Scopes:       f.Scopes,
			Timeout:      cfg.Providers.HTTPTimeout,
		}))
	}
	return providers.NewRegistry(ps...)
}

func (a *App) ensureSuperuser(ctx context.Context) error {
	su := a.Config.Superuser
	var birth time.Time
	if su.BirthDate != "" {
		// validado en config.Validate
		birth, _ = time.Parse("2006-01-02", su.BirthDate)
	}
	created, err := a.Auth.EnsureSuperuser(ctx, auth.Superuser{
		Name:      su.Name,
		Email:     su.Email,
		Password:  su.Password,
		BirthDate: birth,
	})
	if created {
		logger.From(ctx).Info("superuser created", logger.Email(su.Email))
	}
	return err
}

// buildLimiter devuelve nil si el rate limit está apagado.
func (a *App) buildLimiter(cfg *config.Config) (rate.Limiter, error) {
	if !cfg.Rate.Enabled || cfg.Rate.Login.Limit <= 0 || cfg.Rate.Login.Window <= 0 {
		return nil, nil
	}
	if cfg.Rate.Backend != "redis" {
		return rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.Rate.Login.Window), nil
	}
	opts, err := redis.ParseURL(cfg.Cache.URL)
	if err != nil {
		return nil, fmt.Errorf("app: rate redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	a.closers = append(a.closers, rdb.Close)
	return rate.NewRedisLimiter(rdb, cfg.Cache.Prefix+":rate", cfg.Rate.Login.Limit, cfg.Rate.Login.Window), nil
}

// Close libera las conexiones en orden inverso al de apertura.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
