// Package login contiene los controllers de /login: proveedores externos,
// canje del auth token y login local.
package login

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/caishen/internal/auth"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/http/dto"
	httperrors "github.com/dropDatabas3/caishen/internal/http/errors"
	"github.com/dropDatabas3/caishen/internal/http/helpers"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
	"github.com/go-chi/chi/v5"
)

// Service es lo que el controller necesita del orquestador de auth.
type Service interface {
	BeginProviderLogin(ctx context.Context, provider string) (string, domain.CSRFToken, error)
	HandleProviderCallback(ctx context.Context, provider, code, queryState, cookieState string) (domain.AuthToken, error)
	ExchangeAuthToken(ctx context.Context, code string) (domain.AccessToken, error)
	AuthenticateLocal(ctx context.Context, email, password string) (domain.AccessToken, error)
}

// Config son las rutas de redirección, atributos de cookies y sus TTL.
type Config struct {
	APIPrefix      string
	Cookies        helpers.CookieConfig
	StateTTL       time.Duration
	AuthTokenTTL   time.Duration
	AccessTokenTTL time.Duration
}

const (
	suffixCallback = "-login-callback"
	suffixLogin    = "-login"
)

type LoginController struct {
	service Service
	cfg     Config
}

func NewLoginController(s Service, cfg Config) *LoginController {
	return &LoginController{service: s, cfg: cfg}
}

// ProviderAction maneja GET /login/{action}, donde action es
// "<provider>-login" o "<provider>-login-callback".
func (c *LoginController) ProviderAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	switch {
	case strings.HasSuffix(action, suffixCallback):
		c.callback(w, r, strings.TrimSuffix(action, suffixCallback))
	case strings.HasSuffix(action, suffixLogin):
		c.begin(w, r, strings.TrimSuffix(action, suffixLogin))
	default:
		http.NotFound(w, r)
	}
}

func (c *LoginController) begin(w http.ResponseWriter, r *http.Request, provider string) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Begin"), logger.Provider(provider))

	uri, state, err := c.service.BeginProviderLogin(ctx, provider)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	http.SetCookie(w, helpers.BuildCookie(c.cfg.Cookies, helpers.CookieState, state.Code, c.cfg.StateTTL))
	log.Debug("redirecting to provider")
	http.Redirect(w, r, uri, http.StatusTemporaryRedirect)
}

func (c *LoginController) callback(w http.ResponseWriter, r *http.Request, provider string) {
	ctx := r.Context()
	q := r.URL.Query()

	tok, err := c.service.HandleProviderCallback(ctx, provider,
		q.Get("code"), q.Get("state"), helpers.BearerValue(r, helpers.CookieState))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	http.SetCookie(w, helpers.BuildCookie(c.cfg.Cookies, helpers.CookieAuthToken, tok.Code, c.cfg.AuthTokenTTL))
	http.Redirect(w, r, c.cfg.APIPrefix+"/login/", http.StatusTemporaryRedirect)
}

// Exchange maneja GET /login/: canjea la cookie auth_token por la cookie
// access_token y redirige a /users/me.
func (c *LoginController) Exchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tok, err := c.service.ExchangeAuthToken(ctx, helpers.BearerValue(r, helpers.CookieAuthToken))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	http.SetCookie(w, helpers.BuildCookie(c.cfg.Cookies, helpers.CookieAccessToken, tok.Code, c.cfg.AccessTokenTTL))
	http.SetCookie(w, helpers.BuildDeletionCookie(c.cfg.Cookies, helpers.CookieState))
	http.SetCookie(w, helpers.BuildDeletionCookie(c.cfg.Cookies, helpers.CookieAuthToken))
	http.Redirect(w, r, c.cfg.APIPrefix+"/users/me", http.StatusTemporaryRedirect)
}

// AccessToken maneja POST /login/access-token (form username/password,
// compatible con el password flow de OAuth2).
func (c *LoginController) AccessToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := r.ParseForm(); err != nil {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("invalid form"))
		return
	}
	username, password := r.PostFormValue("username"), r.PostFormValue("password")
	if username == "" || password == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("username and password are required"))
		return
	}

	tok, err := c.service.AuthenticateLocal(ctx, username, password)
	if err != nil {
		if auth.KindOf(err) == auth.KindUnauthorized {
			err = httperrors.ErrIncorrectCredentials.WithCause(err)
		}
		httperrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httperrors.WriteJSON(w, http.StatusOK, dto.AccessTokenResponse{
		Code:        tok.Code,
		TokenType:   string(tok.Kind),
		AccessToken: tok.Code,
	})
}
