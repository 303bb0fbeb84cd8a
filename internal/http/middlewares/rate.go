package middlewares

import (
	"math"
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/caishen/internal/http/errors"
	"github.com/dropDatabas3/caishen/internal/http/helpers"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
	"github.com/dropDatabas3/caishen/internal/rate"
)

// RateLimitConfig configura WithRateLimit. KeyFunc por defecto es IP + path.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc func(*http.Request) string
}

// IPPathRateKey separa los límites por endpoint sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return helpers.ClientIP(r) + "|" + r.URL.Path
}

// WithRateLimit responde 429 cuando la clave superó el límite. Si el backend
// falla, el request pasa (fail-open) y se loguea.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return nil
	}
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = IPPathRateKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.Allow(r.Context(), keyFn(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
				}
				httperrors.WriteError(w, r, httperrors.ErrTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
