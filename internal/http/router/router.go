// Package router arma el árbol de rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/dropDatabas3/caishen/internal/http/controllers/health"
	"github.com/dropDatabas3/caishen/internal/http/controllers/login"
	"github.com/dropDatabas3/caishen/internal/http/controllers/users"
	mw "github.com/dropDatabas3/caishen/internal/http/middlewares"
	"github.com/dropDatabas3/caishen/internal/rate"
	"github.com/go-chi/chi/v5"
)

// Deps contiene lo necesario para montar las rutas. LoginLimiter y Metrics
// son opcionales.
type Deps struct {
	APIPrefix  string
	CORS       mw.CORSConfig
	Authorizer mw.Authorizer

	Login  *login.LoginController
	Users  *users.UsersController
	Health *health.HealthController

	LoginLimiter rate.Limiter
	Metrics      http.Handler
}

// New devuelve el handler raíz con los middlewares globales aplicados:
// request id -> recover -> logging -> métricas -> headers -> CORS.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRequestID(),
		mw.WithRecover(),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORS),
	)

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	limit := mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.LoginLimiter})
	mount := func(api chi.Router) {
		api.Route("/login", func(lr chi.Router) {
			lr.Use(mw.WithNoStore())
			if limit != nil {
				lr.Use(limit)
			}
			lr.Get("/", d.Login.Exchange)
			lr.Post("/access-token", d.Login.AccessToken)
			lr.Get("/{action}", d.Login.ProviderAction)
		})

		api.Route("/users", func(ur chi.Router) {
			ur.Use(mw.WithNoStore())
			if limit != nil {
				ur.With(limit).Post("/signup", d.Users.Signup)
			} else {
				ur.Post("/signup", d.Users.Signup)
			}

			ur.Group(func(pr chi.Router) {
				pr.Use(mw.RequireAuth(d.Authorizer))
				pr.Get("/me", d.Users.Me)
				pr.Put("/me", d.Users.UpdateMe)
				pr.Post("/", d.Users.Create)
				pr.Put("/", d.Users.Update)
				pr.Get("/", d.Users.List)
				pr.Delete("/{id}", d.Users.Delete)
			})
		})
	}

	// chi no acepta un Route con patrón vacío.
	if d.APIPrefix == "" || d.APIPrefix == "/" {
		r.Group(mount)
	} else {
		r.Route(d.APIPrefix, mount)
	}
	return r
}
