package middlewares

import (
	"context"

	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
)

type ctxKey int

const (
	ctxPayload ctxKey = iota
	ctxUser
)

// GetRequestID devuelve el request id inyectado por WithRequestID.
func GetRequestID(ctx context.Context) string { return logger.RequestIDFrom(ctx) }

func WithPayload(ctx context.Context, p domain.TokenPayload) context.Context {
	return context.WithValue(ctx, ctxPayload, p)
}

// GetPayload devuelve las claims validadas por RequireAuth.
func GetPayload(ctx context.Context) (domain.TokenPayload, bool) {
	p, ok := ctx.Value(ctxPayload).(domain.TokenPayload)
	return p, ok
}

func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, ctxUser, u)
}

// GetUser devuelve el usuario autenticado o nil.
func GetUser(ctx context.Context) *domain.User {
	u, _ := ctx.Value(ctxUser).(*domain.User)
	return u
}

// GetUserID devuelve el id del usuario autenticado o "".
func GetUserID(ctx context.Context) string {
	if p, ok := GetPayload(ctx); ok {
		return p.Sub
	}
	return ""
}
