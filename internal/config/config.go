package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env" env:"APP_ENV"`
		Name    string `yaml:"name" env:"PROJECT_NAME"`
		Version string `yaml:"version" env:"APP_VERSION"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr" env:"SERVER_ADDR"`
		// prefijo de todas las rutas de la API (ej: /api/v1)
		APIPrefix   string `yaml:"api_prefix" env:"API_VERSION_STR"`
		FrontendURL string `yaml:"frontend_url" env:"FRONTEND_URL"`
	} `yaml:"server"`

	CORS struct {
		Origins          []string `yaml:"origins" env:"CORS_ORIGINS" envSeparator:","`
		AllowCredentials bool     `yaml:"allow_credentials" env:"ALLOW_CREDENTIALS"`
		Methods          []string `yaml:"methods" env:"ALLOW_METHODS" envSeparator:","`
		Headers          []string `yaml:"headers" env:"ALLOW_HEADERS" envSeparator:","`
	} `yaml:"cors"`

	Storage struct {
		Driver   string `yaml:"driver" env:"STORAGE_DRIVER"` // postgres | memory
		DSN      string `yaml:"dsn" env:"DATABASE_URL"`
		Postgres struct {
			MaxConns        int32         `yaml:"max_conns" env:"POSTGRES_MAX_CONNS"`
			MinConns        int32         `yaml:"min_conns" env:"POSTGRES_MIN_CONNS"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind   string `yaml:"kind" env:"CACHE_KIND"` // redis | memory
		URL    string `yaml:"url" env:"REDIS_URI"`
		Prefix string `yaml:"prefix" env:"REDIS_PREFIX"`
	} `yaml:"cache"`

	JWT struct {
		Secret    string `yaml:"secret" env:"JWT_SECRET_KEY"`
		Algorithm string `yaml:"algorithm" env:"ALGORITHM"`
		// minutos, igual que los settings históricos del servicio
		AccessTokenExpireMinutes int `yaml:"access_token_expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES"`
		AuthTokenExpireMinutes   int `yaml:"auth_token_expire_minutes" env:"AUTH_TOKEN_EXPIRE_MINUTES"`
		// tolerancia de reloj al validar exp
		Leeway time.Duration `yaml:"leeway" env:"JWT_LEEWAY"`
	} `yaml:"jwt"`

	Auth struct {
		StateTTL      time.Duration `yaml:"state_ttl" env:"AUTH_STATE_TTL"`
		DisableSignup bool          `yaml:"disable_signup" env:"AUTH_DISABLE_SIGNUP"`
		Cookie        struct {
			Domain   string `yaml:"domain" env:"AUTH_COOKIE_DOMAIN"`
			SameSite string `yaml:"samesite" env:"AUTH_COOKIE_SAMESITE"`
			Secure   bool   `yaml:"secure" env:"AUTH_COOKIE_SECURE"`
		} `yaml:"cookie"`
	} `yaml:"auth"`

	// ───────── Social Login Providers ─────────
	Providers struct {
		HTTPTimeout time.Duration `yaml:"http_timeout" env:"PROVIDERS_HTTP_TIMEOUT"`
		Google      struct {
			Enabled      bool          `yaml:"enabled" env:"GOOGLE_ENABLED"`
			ClientID     string        `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
			ClientSecret string        `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
			RedirectURL  string        `yaml:"redirect_url" env:"GOOGLE_REDIRECT_URL"`
			DiscoveryURL string        `yaml:"discovery_url" env:"GOOGLE_DISCOVERY_URL"`
			DiscoveryTTL time.Duration `yaml:"discovery_ttl" env:"GOOGLE_DISCOVERY_TTL"`
			Scopes       []string      `yaml:"scopes" env:"GOOGLE_SCOPES" envSeparator:","`
		} `yaml:"google"`
		Facebook struct {
			Enabled      bool     `yaml:"enabled" env:"FACEBOOK_ENABLED"`
			ClientID     string   `yaml:"client_id" env:"FACEBOOK_CLIENT_ID"`
			ClientSecret string   `yaml:"client_secret" env:"FACEBOOK_CLIENT_SECRET"`
			RedirectURL  string   `yaml:"redirect_url" env:"FACEBOOK_REDIRECT_URL"`
			AuthURL      string   `yaml:"auth_url" env:"FACEBOOK_AUTH_URL"`
			TokenURL     string   `yaml:"token_url" env:"FACEBOOK_TOKEN_URL"`
			UserInfoURL  string   `yaml:"userinfo_url" env:"FACEBOOK_USERINFO_URL"`
			Scopes       []string `yaml:"scopes" env:"FACEBOOK_SCOPES" envSeparator:","`
		} `yaml:"facebook"`
	} `yaml:"providers"`

	Rate struct {
		Enabled bool   `yaml:"enabled" env:"RATE_ENABLED"`
		Backend string `yaml:"backend" env:"RATE_BACKEND"` // memory | redis
		Login   struct {
			Limit  int           `yaml:"limit" env:"RATE_LOGIN_LIMIT"`
			Window time.Duration `yaml:"window" env:"RATE_LOGIN_WINDOW"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Flags struct {
		Migrate bool `yaml:"migrate" env:"FLAGS_MIGRATE"`
	} `yaml:"flags"`

	SMTP struct {
		Host     string `yaml:"host" env:"SMTP_HOST"`
		Port     int    `yaml:"port" env:"SMTP_PORT"`
		Username string `yaml:"username" env:"SMTP_USERNAME"`
		Password string `yaml:"password" env:"SMTP_PASSWORD"`
		From     string `yaml:"from" env:"SMTP_FROM"`
		TLS      string `yaml:"tls" env:"SMTP_TLS"` // auto | starttls | ssl | none
	} `yaml:"smtp"`

	Events struct {
		AMQPURL  string `yaml:"amqp_url" env:"AMQP_URL"`
		Exchange string `yaml:"exchange" env:"AMQP_EXCHANGE"`
	} `yaml:"events"`

	Security struct {
		PasswordPolicy struct {
			MinLength    int  `yaml:"min_length" env:"SECURITY_PASSWORD_POLICY_MIN_LENGTH"`
			RequireUpper bool `yaml:"require_upper" env:"SECURITY_PASSWORD_POLICY_REQUIRE_UPPER"`
			RequireDigit bool `yaml:"require_digit" env:"SECURITY_PASSWORD_POLICY_REQUIRE_DIGIT"`
		} `yaml:"password_policy"`
	} `yaml:"security"`

	// Superusuario que se crea al arrancar si no existe.
	Superuser struct {
		Name      string `yaml:"name" env:"SUPER_USER_NAME"`
		Email     string `yaml:"email" env:"SUPER_USER_EMAIL"`
		Password  string `yaml:"password" env:"SUPER_USER_PASSWORD"`
		BirthDate string `yaml:"birth_date" env:"SUPER_USER_BIRTHDATE"` // YYYY-MM-DD
	} `yaml:"superuser"`
}

// Default devuelve la configuración con sane defaults; Load la pisa con
// YAML y después con variables de entorno.
func Default() *Config {
	var c Config
	c.App.Env = "dev"
	c.App.Name = "caishen"
	c.Log.Level = "info"

	c.Server.Addr = ":8080"
	c.Server.APIPrefix = "/api/v1"

	c.CORS.Origins = []string{"*"}
	c.CORS.AllowCredentials = true
	c.CORS.Methods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	c.CORS.Headers = []string{"Authorization", "Content-Type", "X-Request-ID"}

	c.Storage.Driver = "postgres"
	c.Storage.Postgres.MaxConns = 10
	c.Storage.Postgres.ConnMaxLifetime = 30 * time.Minute

	c.Cache.Kind = "memory"
	c.Cache.Prefix = "caishen"

	c.JWT.Algorithm = "HS256"
	c.JWT.AccessTokenExpireMinutes = 60 * 24 * 8 // 8 días
	c.JWT.AuthTokenExpireMinutes = 10

	c.Auth.StateTTL = 10 * time.Minute
	c.Auth.Cookie.SameSite = "Lax"

	c.Providers.HTTPTimeout = 10 * time.Second
	c.Providers.Google.DiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"
	c.Providers.Google.DiscoveryTTL = 24 * time.Hour
	c.Providers.Google.Scopes = []string{"openid", "email", "profile"}
	c.Providers.Facebook.Scopes = []string{"email", "user_birthday"}

	c.Rate.Backend = "memory"
	c.Rate.Login.Limit = 10
	c.Rate.Login.Window = time.Minute

	c.SMTP.Port = 587
	c.SMTP.TLS = "auto"

	c.Events.Exchange = "caishen.users"

	c.Security.PasswordPolicy.MinLength = 8

	c.Superuser.Name = "admin"
	c.Superuser.Email = "admin@example.com"
	c.Superuser.BirthDate = "2021-09-07"
	return &c
}

// Load arma la configuración: defaults, luego el YAML en path (si path no
// está vacío), luego variables de entorno. Finalmente valida.
func Load(path string) (*Config, error) {
	c := Default()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) normalize() {
	c.App.Env = strings.ToLower(strings.TrimSpace(c.App.Env))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Cache.Kind = strings.ToLower(strings.TrimSpace(c.Cache.Kind))
	c.JWT.Algorithm = strings.ToUpper(strings.TrimSpace(c.JWT.Algorithm))
	c.Superuser.Email = strings.ToLower(strings.TrimSpace(c.Superuser.Email))

	c.CORS.Origins = trimAll(c.CORS.Origins)
	c.CORS.Methods = trimAll(c.CORS.Methods)
	c.CORS.Headers = trimAll(c.CORS.Headers)

	if c.Server.APIPrefix != "" {
		c.Server.APIPrefix = "/" + strings.Trim(c.Server.APIPrefix, "/")
	}

	// Guardia dura: en prod las cookies de auth siempre son Secure.
	if c.IsProd() {
		c.Auth.Cookie.Secure = true
	}
}

// IsProd indica si APP_ENV=prod.
func (c *Config) IsProd() bool { return c.App.Env == "prod" }

// AccessTokenTTL devuelve la vida del access token.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpireMinutes) * time.Minute
}

// AuthTokenTTL devuelve la vida del auth token de un solo uso.
func (c *Config) AuthTokenTTL() time.Duration {
	return time.Duration(c.JWT.AuthTokenExpireMinutes) * time.Minute
}

// Validate controla los valores críticos. Un secreto ausente es fatal.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("jwt.secret (JWT_SECRET_KEY) must be at least 32 bytes"))
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("jwt.algorithm %q not supported", c.JWT.Algorithm))
	}
	if c.JWT.AccessTokenExpireMinutes <= 0 || c.JWT.AuthTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("jwt token lifetimes must be positive"))
	}
	if c.Auth.StateTTL <= 0 {
		errs = append(errs, errors.New("auth.state_ttl must be positive"))
	}

	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn (DATABASE_URL) is required for postgres"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}

	switch c.Cache.Kind {
	case "redis":
		if strings.TrimSpace(c.Cache.URL) == "" {
			errs = append(errs, errors.New("cache.url (REDIS_URI) is required for redis"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}

	if g := c.Providers.Google; g.Enabled {
		if g.ClientID == "" || g.ClientSecret == "" || g.RedirectURL == "" || g.DiscoveryURL == "" {
			errs = append(errs, errors.New("providers.google requires client_id, client_secret, redirect_url and discovery_url"))
		}
	}
	if f := c.Providers.Facebook; f.Enabled {
		if f.ClientID == "" || f.ClientSecret == "" || f.RedirectURL == "" {
			errs = append(errs, errors.New("providers.facebook requires client_id, client_secret and redirect_url"))
		}
	}
	if c.Providers.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("providers.http_timeout must be positive"))
	}

	if c.Superuser.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", c.Superuser.BirthDate); err != nil {
			errs = append(errs, fmt.Errorf("superuser.birth_date: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
