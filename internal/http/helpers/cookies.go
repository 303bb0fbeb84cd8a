package helpers

import (
	"net/http"
	"strings"
	"time"
)

// Nombres de las cookies del login.
const (
	CookieState       = "state"
	CookieAuthToken   = "auth_token"
	CookieAccessToken = "access_token"
)

// CookieConfig son los atributos comunes a todas las cookies de auth.
type CookieConfig struct {
	Domain   string
	SameSite string
	Secure   bool
}

func ParseSameSite(s string) http.SameSite {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// BuildCookie arma una cookie HttpOnly con valor "Bearer <code>".
func BuildCookie(cfg CookieConfig, name, code string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    "Bearer " + code,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: ParseSameSite(cfg.SameSite),
	}
	if strings.TrimSpace(cfg.Domain) != "" {
		ck.Domain = cfg.Domain
	}
	if ttl > 0 {
		ck.Expires = time.Now().Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

func BuildDeletionCookie(cfg CookieConfig, name string) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: ParseSameSite(cfg.SameSite),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(cfg.Domain) != "" {
		ck.Domain = cfg.Domain
	}
	return ck
}

// CookieValue devuelve el valor crudo de la cookie o "".
func CookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// BearerValue devuelve el código de una cookie "Bearer <code>". Un valor sin
// el esquema bearer devuelve "".
func BearerValue(r *http.Request, name string) string {
	scheme, code, ok := strings.Cut(strings.TrimSpace(CookieValue(r, name)), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(code)
}
