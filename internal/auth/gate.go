package auth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/jwt"
	"github.com/dropDatabas3/caishen/internal/metrics"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
)

// Authorize valida las credenciales de un request. header es el valor de
// Authorization y cookie el de la cookie access_token; si header no está
// vacío gana. Ambos tienen la forma "Bearer <token>".
func (s *Service) Authorize(ctx context.Context, header, cookie string) (domain.TokenPayload, error) {
	const op = "auth.Authorize"

	p, err := s.authorize(op, header, cookie)
	metrics.AuthAttempts.WithLabelValues("gate", metrics.Outcome(err)).Inc()
	if err != nil {
		s.log(ctx, op).Info("request not authorized", logger.Reason(reasonOf(err)))
	}
	return p, err
}

func (s *Service) authorize(op, header, cookie string) (domain.TokenPayload, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		raw = strings.TrimSpace(cookie)
	}
	if raw == "" {
		return domain.TokenPayload{}, unauthorized(op, ReasonMissingCredentials)
	}

	scheme, token, _ := strings.Cut(raw, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return domain.TokenPayload{}, unauthorized(op, ReasonWrongScheme)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.TokenPayload{}, unauthorized(op, ReasonMissingToken)
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		e := unauthorized(op, ReasonInvalidToken)
		e.Err = err
		return domain.TokenPayload{}, e
	}
	sub := jwt.Subject(claims)
	if sub == "" {
		return domain.TokenPayload{}, unauthorized(op, ReasonMissingSubject)
	}
	return domain.TokenPayload{Sub: sub}, nil
}

// CurrentUser carga el usuario del payload. Un usuario borrado después de
// emitido el token es KindUnauthorized.
func (s *Service) CurrentUser(ctx context.Context, p domain.TokenPayload) (*domain.User, error) {
	const op = "auth.CurrentUser"
	u, err := s.users.GetByID(ctx, p.Sub)
	if err != nil {
		if repository.IsNotFound(err) {
			e := unauthorized(op, ReasonUnknownUser)
			e.Actor = p.Sub
			s.log(ctx, op).Info("request not authorized", logger.Reason(e.Reason), logger.UserID(p.Sub))
			return nil, e
		}
		return nil, classify(op, err)
	}
	return u, nil
}
