package middlewares

import (
	"fmt"
	"net/http"
	"runtime/debug"

	httperrors "github.com/dropDatabas3/caishen/internal/http/errors"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
)

// WithRecover convierte un panic en un 500 genérico y lo loguea con stack.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.From(r.Context()).Error("panic recovered",
						logger.Any("recover", rec),
						logger.String("stack", string(debug.Stack())),
					)
					httperrors.WriteError(w, r, httperrors.ErrInternalServerError.WithCause(fmt.Errorf("panic: %v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
