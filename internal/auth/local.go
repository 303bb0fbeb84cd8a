package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/events"
	"github.com/dropDatabas3/caishen/internal/metrics"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
	"github.com/dropDatabas3/caishen/internal/security/password"
)

// AuthenticateLocal valida email y contraseña de un usuario LOCAL y emite un
// AccessToken. Todos los fallos son KindUnauthorized con el mismo mensaje.
func (s *Service) AuthenticateLocal(ctx context.Context, email, plain string) (domain.AccessToken, error) {
	const op = "auth.AuthenticateLocal"

	tok, err := s.authenticateLocal(ctx, op, email, plain)
	metrics.AuthAttempts.WithLabelValues("local", metrics.Outcome(err)).Inc()
	if err != nil {
		s.log(ctx, op).Warn("local login rejected",
			logger.Kind(KindOf(err).String()), logger.Reason(reasonOf(err)), logger.Err(err))
	}
	return tok, err
}

func (s *Service) authenticateLocal(ctx context.Context, op, email, plain string) (domain.AccessToken, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			// igualamos el costo del hash para no revelar si el email existe
			_ = password.Verify(plain, dummyDigest)
			return domain.AccessToken{}, unauthorized(op, ReasonBadCredentials)
		}
		return domain.AccessToken{}, classify(op, err)
	}
	if !u.HasPassword() || !password.Verify(plain, *u.PasswordHash) {
		return domain.AccessToken{}, unauthorized(op, ReasonBadCredentials)
	}

	tok, err := s.issueAccessToken(u.ID)
	if err != nil {
		return domain.AccessToken{}, classify(op, err)
	}
	s.publish(ctx, events.KeyUserLoggedIn, events.UserLoggedIn{
		UserID: u.ID, AuthProvider: u.AuthProvider.String(), At: s.now().UTC(),
	})
	return tok, nil
}

// argon2id de "caishen" con parámetros por defecto.
var dummyDigest = mustHash("caishen")

func mustHash(p string) string {
	d, err := password.Hash(password.Default, p)
	if err != nil {
		panic(err)
	}
	return d
}

// RegisterInput son los datos de alta de un usuario LOCAL.
type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	BirthDate time.Time
	IsAdmin   bool
}

// RegisterLocal crea un usuario LOCAL con la contraseña hasheada.
// Un email repetido es KindConflict.
func (s *Service) RegisterLocal(ctx context.Context, in RegisterInput) (*domain.User, error) {
	const op = "auth.RegisterLocal"
	log := s.log(ctx, op)

	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" || in.BirthDate.IsZero() {
		return nil, &Error{Kind: KindInvalidInput, Op: op, Detail: "name, email and birth_date are required"}
	}
	if ok, reasons := s.cfg.PasswordPolicy.Validate(in.Password); !ok {
		return nil, &Error{Kind: KindInvalidInput, Op: op, Detail: "password: " + strings.Join(reasons, ", ")}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, &Error{Kind: KindConflict, Op: op, Detail: "The user with this email already exists in the system."}
	} else if !repository.IsNotFound(err) {
		return nil, classify(op, err)
	}

	digest, err := password.Hash(s.cfg.PasswordParams, in.Password)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: op, Err: err}
	}
	u, err := s.users.Create(ctx, repository.CreateUserInput{
		Name:         name,
		Email:        email,
		BirthDate:    in.BirthDate,
		PasswordHash: &digest,
		AuthProvider: domain.ProviderLocal,
		IsAdmin:      in.IsAdmin,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, &Error{Kind: KindConflict, Op: op, Detail: "The user with this email already exists in the system.", Err: err}
		}
		return nil, classify(op, err)
	}

	metrics.UsersCreated.WithLabelValues(domain.ProviderLocal.String()).Inc()
	log.Info("local user created", logger.UserID(u.ID), logger.Bool("is_admin", u.IsAdmin))
	s.publish(ctx, events.KeyUserCreated, events.UserCreated{
		UserID: u.ID, Email: u.Email, Name: u.Name, AuthProvider: domain.ProviderLocal.String(), At: s.now().UTC(),
	})
	return u, nil
}

// HashPassword hashea con los parámetros configurados y aplica la política.
// Lo usan las actualizaciones de usuario.
func (s *Service) HashPassword(plain string) (string, error) {
	if ok, reasons := s.cfg.PasswordPolicy.Validate(plain); !ok {
		return "", &Error{Kind: KindInvalidInput, Op: "auth.HashPassword", Detail: "password: " + strings.Join(reasons, ", ")}
	}
	return password.Hash(s.cfg.PasswordParams, plain)
}

// Superuser es el admin que se asegura al arrancar.
type Superuser struct {
	Name      string
	Email     string
	Password  string
	BirthDate time.Time
}

// EnsureSuperuser crea el superusuario si su email no existe. Si existe no
// lo toca. Devuelve true si lo creó.
func (s *Service) EnsureSuperuser(ctx context.Context, su Superuser) (bool, error) {
	const op = "auth.EnsureSuperuser"
	if su.Email == "" || su.Password == "" {
		return false, nil
	}
	if _, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(su.Email)); err == nil {
		return false, nil
	} else if !repository.IsNotFound(err) {
		return false, classify(op, err)
	}

	// el superusuario no pasa por la política: la contraseña viene de config
	digest, err := password.Hash(s.cfg.PasswordParams, su.Password)
	if err != nil {
		return false, &Error{Kind: KindInternal, Op: op, Err: err}
	}
	u, err := s.users.Create(ctx, repository.CreateUserInput{
		Name:         su.Name,
		Email:        domain.NormalizeEmail(su.Email),
		BirthDate:    su.BirthDate,
		PasswordHash: &digest,
		AuthProvider: domain.ProviderLocal,
		IsAdmin:      true,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return false, nil
		}
		return false, classify(op, err)
	}
	s.log(ctx, op).Info("superuser created", logger.UserID(u.ID))
	return true, nil
}
