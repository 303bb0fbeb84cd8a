// Package facebook implements the Facebook Login provider (plain OAuth2,
// static endpoints, Graph API for the profile).
package facebook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/providers"
	"golang.org/x/oauth2"
	fbendpoint "golang.org/x/oauth2/facebook"
)

const (
	DefaultUserInfoURL = "https://graph.facebook.com/me"
	// birthday llega como MM/DD/YYYY
	birthdayLayout = "01/02/2006"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

type graphUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Birthday string `json:"birthday"`
}

type Provider struct {
	cfg   Config
	oauth *oauth2.Config
	http  *http.Client
}

func New(cfg Config) *Provider {
	if cfg.AuthURL == "" {
		cfg.AuthURL = fbendpoint.Endpoint.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = fbendpoint.Endpoint.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"email", "user_birthday"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = providers.DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = providers.NewHTTPClient(cfg.Timeout)
	}
	return &Provider{
		cfg:  cfg,
		http: hc,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func (p *Provider) Name() domain.AuthProvider { return domain.ProviderFacebook }
func (p *Provider) Slug() string              { return "facebook" }
func (p *Provider) Matches(name string) bool  { return strings.EqualFold(name, "facebook") }

func (p *Provider) AuthorizationURL(_ context.Context, state string) (string, error) {
	return p.oauth.AuthCodeURL(state), nil
}

func (p *Provider) ExchangeCode(ctx context.Context, code string) (*domain.ExternalUser, error) {
	tctx, cancel := context.WithTimeout(context.WithValue(ctx, oauth2.HTTPClient, p.http), p.cfg.Timeout)
	tok, err := p.oauth.Exchange(tctx, code)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: facebook token exchange: %v", providers.ErrProviderConnection, err)
	}

	u, err := url.Parse(p.cfg.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo url: %v", providers.ErrProviderConnection, err)
	}
	q := u.Query()
	q.Set("fields", "id,name,email,birthday")
	q.Set("access_token", tok.AccessToken)
	u.RawQuery = q.Encode()

	uctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	var gu graphUser
	if err := providers.GetJSON(uctx, p.http, u.String(), nil, &gu); err != nil {
		return nil, fmt.Errorf("facebook userinfo: %w", err)
	}

	// Facebook solo entrega emails confirmados; sin email no hay identidad verificable.
	if strings.TrimSpace(gu.Email) == "" {
		return nil, fmt.Errorf("%w: facebook returned no email", providers.ErrEmailNotVerified)
	}
	if gu.ID == "" {
		return nil, fmt.Errorf("%w: facebook profile without id", providers.ErrProviderConnection)
	}

	out := &domain.ExternalUser{
		Subject: gu.ID,
		Email:   domain.NormalizeEmail(gu.Email),
		Name:    providers.SanitizeName(gu.Name),
	}
	if bd, err := time.Parse(birthdayLayout, gu.Birthday); err == nil {
		out.BirthDate = &bd
	}
	return out, nil
}

var _ providers.Provider = (*Provider)(nil)
