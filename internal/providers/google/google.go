// Package google implements the Google OpenID Connect login provider.
package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/providers"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"
	defaultDiscoveryTTL = 24 * time.Hour
)

// Config holds the client registration and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	DiscoveryURL string
	DiscoveryTTL time.Duration
	Scopes       []string
	Timeout      time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

type discoveryDoc struct {
	Issuer           string `json:"issuer"`
	AuthEndpoint     string `json:"authorization_endpoint"`
	TokenEndpoint    string `json:"token_endpoint"`
	UserInfoEndpoint string `json:"userinfo_endpoint"`
}

func (d *discoveryDoc) complete() bool {
	return d.AuthEndpoint != "" && d.TokenEndpoint != "" && d.UserInfoEndpoint != ""
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
}

// Provider is the Google adapter. Safe for concurrent use.
type Provider struct {
	cfg  Config
	http *http.Client

	sf     singleflight.Group
	mu     sync.RWMutex
	disc   *discoveryDoc
	discAt time.Time
}

func New(cfg Config) *Provider {
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = DefaultDiscoveryURL
	}
	if cfg.DiscoveryTTL <= 0 {
		cfg.DiscoveryTTL = defaultDiscoveryTTL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = providers.DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = providers.NewHTTPClient(cfg.Timeout)
	}
	return &Provider{cfg: cfg, http: hc}
}

func (p *Provider) Name() domain.AuthProvider { return domain.ProviderGoogle }
func (p *Provider) Slug() string              { return "google" }

func (p *Provider) Matches(name string) bool {
	n := strings.ToLower(name)
	return n == "google" || n == "google-oidc"
}

// discovery returns the cached document, refreshing it after DiscoveryTTL.
// Concurrent refreshes collapse into one request. Incomplete documents
// are returned but never cached.
func (p *Provider) discovery(ctx context.Context) (*discoveryDoc, error) {
	p.mu.RLock()
	disc := p.disc
	fresh := time.Since(p.discAt) < p.cfg.DiscoveryTTL
	p.mu.RUnlock()
	if disc != nil && fresh {
		return disc, nil
	}

	// The shared fetch outlives the caller that started it.
	v, err, _ := p.sf.Do("discovery", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
		defer cancel()
		var dd discoveryDoc
		if err := providers.GetJSON(fctx, p.http, p.cfg.DiscoveryURL, nil, &dd); err != nil {
			return nil, fmt.Errorf("google discovery: %w", err)
		}
		if dd.complete() {
			p.mu.Lock()
			p.disc = &dd
			p.discAt = time.Now()
			p.mu.Unlock()
		}
		return &dd, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discoveryDoc), nil
}

func (p *Provider) oauthConfig(d *discoveryDoc) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURL,
		Scopes:       p.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   d.AuthEndpoint,
			TokenURL:  d.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (p *Provider) AuthorizationURL(ctx context.Context, state string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	d, err := p.discovery(ctx)
	if err != nil {
		return "", err
	}
	if d.AuthEndpoint == "" {
		return "", fmt.Errorf("%w: authorization_endpoint missing", providers.ErrDiscoveryDocument)
	}
	return p.oauthConfig(d).AuthCodeURL(state), nil
}

func (p *Provider) ExchangeCode(ctx context.Context, code string) (*domain.ExternalUser, error) {
	d, err := p.discovery(ctx)
	if err != nil {
		return nil, err
	}
	if d.TokenEndpoint == "" || d.UserInfoEndpoint == "" {
		return nil, fmt.Errorf("%w: token_endpoint or userinfo_endpoint missing", providers.ErrDiscoveryDocument)
	}

	// 1) code -> access token (client credentials por basic auth)
	tctx, cancel := context.WithTimeout(context.WithValue(ctx, oauth2.HTTPClient, p.http), p.cfg.Timeout)
	tok, err := p.oauthConfig(d).Exchange(tctx, code)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: google token exchange: %v", providers.ErrProviderConnection, err)
	}

	// 2) userinfo con el bearer recibido
	uctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok.AccessToken)
	var ui userInfo
	if err := providers.GetJSON(uctx, p.http, d.UserInfoEndpoint, h, &ui); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}

	if !verified(ui.EmailVerified) {
		return nil, fmt.Errorf("%w: google email_verified absent or false", providers.ErrEmailNotVerified)
	}
	if ui.Email == "" || ui.Sub == "" {
		return nil, fmt.Errorf("%w: google userinfo missing sub or email", providers.ErrProviderConnection)
	}

	return &domain.ExternalUser{
		Subject: ui.Sub,
		Email:   domain.NormalizeEmail(ui.Email),
		Name:    providers.SanitizeName(ui.Name),
	}, nil
}

// verified accepts a JSON boolean or the string "true".
func verified(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	}
	return false
}

var _ providers.Provider = (*Provider)(nil)
