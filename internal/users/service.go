// Package users implementa la administración de cuentas: perfil propio y
// CRUD reservado a administradores.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/caishen/internal/auth"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/email"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
)

// UpdateInput son los campos editables; nil = no tocar.
type UpdateInput struct {
	Name      *string
	Email     *string
	BirthDate *time.Time
	Password  *string
	IsAdmin   *bool
}

type Service struct {
	repo     repository.UserRepository
	auth     *auth.Service
	mail     email.Sender
	loginURL string
}

// NewService arma el servicio. mail nil descarta los emails.
func NewService(repo repository.UserRepository, authSvc *auth.Service, mail email.Sender, loginURL string) *Service {
	if mail == nil {
		mail = email.Noop{}
	}
	return &Service{repo: repo, auth: authSvc, mail: mail, loginURL: loginURL}
}

func forbidden(op string, actor *domain.User, detail string) error {
	return &auth.Error{
		Kind:   auth.KindUnauthorized,
		Op:     op,
		Actor:  actor.ID,
		Reason: "user is not admin",
		Detail: detail,
	}
}

func wrapRepo(op string, err error) error {
	e := &auth.Error{Op: op, Err: err}
	switch {
	case repository.IsNotFound(err):
		e.Kind, e.Detail = auth.KindNotFound, "User does not exist."
	case repository.IsConflict(err):
		e.Kind, e.Detail = auth.KindConflict, "The user with this email already exists in the system."
	case repository.IsUnavailable(err):
		e.Kind = auth.KindDatabaseUnavailable
	case errors.Is(err, repository.ErrInvalidInput):
		e.Kind = auth.KindInvalidInput
	default:
		e.Kind = auth.KindInternal
	}
	return e
}

// Signup da de alta un usuario LOCAL no admin.
func (s *Service) Signup(ctx context.Context, in auth.RegisterInput) (*domain.User, error) {
	in.IsAdmin = false
	return s.auth.RegisterLocal(ctx, in)
}

// Create da de alta un usuario LOCAL. Solo admins. Envía el email de
// bienvenida; un fallo de SMTP no deshace el alta.
func (s *Service) Create(ctx context.Context, actor *domain.User, in auth.RegisterInput) (*domain.User, error) {
	const op = "users.Create"
	if !actor.IsAdmin {
		return nil, forbidden(op, actor, "You are not authorized to create users")
	}
	u, err := s.auth.RegisterLocal(ctx, in)
	if err != nil {
		return nil, err
	}

	subject, html, text, err := email.RenderWelcome(email.WelcomeData{Name: u.Name, Email: u.Email, LoginURL: s.loginURL})
	if err == nil {
		err = s.mail.Send(ctx, u.Email, subject, html, text)
	}
	if err != nil {
		logger.From(ctx).Warn("welcome email not sent",
			logger.Component("users"), logger.Op(op), logger.UserID(u.ID), logger.Err(err))
	}
	return u, nil
}

// UpdateSelf actualiza el perfil del propio usuario. Un no admin no puede
// cambiar is_admin; el campo se ignora.
func (s *Service) UpdateSelf(ctx context.Context, actor *domain.User, in UpdateInput) (*domain.User, error) {
	if !actor.IsAdmin {
		in.IsAdmin = nil
	}
	return s.update(ctx, "users.UpdateSelf", actor, in)
}

// Update actualiza a cualquier usuario. Solo admins.
func (s *Service) Update(ctx context.Context, actor *domain.User, id string, in UpdateInput) (*domain.User, error) {
	const op = "users.Update"
	if !actor.IsAdmin {
		return nil, forbidden(op, actor, "You don't have permission to update users")
	}
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapRepo(op, err)
	}
	return s.update(ctx, op, target, in)
}

func (s *Service) update(ctx context.Context, op string, target *domain.User, in UpdateInput) (*domain.User, error) {
	upd := repository.UpdateUserInput{BirthDate: in.BirthDate, IsAdmin: in.IsAdmin}
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		if n == "" {
			return nil, &auth.Error{Kind: auth.KindInvalidInput, Op: op, Detail: "name must not be empty"}
		}
		upd.Name = &n
	}
	if in.Email != nil {
		e := domain.NormalizeEmail(*in.Email)
		if e == "" {
			return nil, &auth.Error{Kind: auth.KindInvalidInput, Op: op, Detail: "email must not be empty"}
		}
		upd.Email = &e
	}
	if in.Password != nil {
		if target.AuthProvider != domain.ProviderLocal {
			return nil, &auth.Error{Kind: auth.KindInvalidInput, Op: op,
				Detail: fmt.Sprintf("users registered with %s have no password", target.AuthProvider)}
		}
		digest, err := s.auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &digest
	}

	u, err := s.repo.Update(ctx, target.ID, upd)
	if err != nil {
		return nil, wrapRepo(op, err)
	}
	return u, nil
}

// List pagina usuarios. Solo admins.
func (s *Service) List(ctx context.Context, actor *domain.User, offset, limit int) ([]domain.User, error) {
	const op = "users.List"
	if !actor.IsAdmin {
		return nil, forbidden(op, actor, "You don't have permission to retrieve users")
	}
	out, err := s.repo.List(ctx, repository.ListUsersFilter{Offset: offset, Limit: limit}.Normalize())
	if err != nil {
		return nil, wrapRepo(op, err)
	}
	return out, nil
}

// Delete borra un usuario y lo devuelve. Solo admins.
func (s *Service) Delete(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	const op = "users.Delete"
	if !actor.IsAdmin {
		return nil, forbidden(op, actor, "You don't have permission to delete users")
	}
	u, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, wrapRepo(op, err)
	}
	logger.From(ctx).Info("user deleted", logger.Component("users"), logger.UserID(u.ID), logger.Actor(actor.ID))
	return u, nil
}
