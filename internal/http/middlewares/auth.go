package middlewares

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/caishen/internal/domain"
	httperrors "github.com/dropDatabas3/caishen/internal/http/errors"
	"github.com/dropDatabas3/caishen/internal/http/helpers"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
)

// Authorizer es la parte del servicio de auth que usa el gate.
type Authorizer interface {
	Authorize(ctx context.Context, header, cookie string) (domain.TokenPayload, error)
	CurrentUser(ctx context.Context, p domain.TokenPayload) (*domain.User, error)
}

// RequireAuth valida Authorization o la cookie access_token, carga el usuario
// y guarda payload y usuario en el contexto. Cualquier falla es un 401
// genérico; el motivo queda en el log.
func RequireAuth(a Authorizer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, err := a.Authorize(ctx, r.Header.Get("Authorization"), helpers.CookieValue(r, helpers.CookieAccessToken))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				httperrors.WriteError(w, r, err)
				return
			}
			u, err := a.CurrentUser(ctx, p)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				httperrors.WriteError(w, r, err)
				return
			}

			ctx = WithPayload(ctx, p)
			ctx = WithUser(ctx, u)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(u.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
