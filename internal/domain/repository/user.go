package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/caishen/internal/domain"
)

// CreateUserInput contiene los datos para crear un usuario.
// PasswordHash solo se informa para usuarios LOCAL.
type CreateUserInput struct {
	Name         string
	Email        string
	BirthDate    time.Time
	PasswordHash *string
	AuthProvider domain.AuthProvider
	IsAdmin      bool
}

// UpdateUserInput contiene los campos actualizables; nil = no tocar.
type UpdateUserInput struct {
	Name         *string
	Email        *string
	BirthDate    *time.Time
	PasswordHash *string
	IsAdmin      *bool
}

// ListUsersFilter opciones para listar usuarios.
type ListUsersFilter struct {
	Offset int
	Limit  int // Default 100, max 100
}

// Normalize aplica los límites de paginación.
func (f ListUsersFilter) Normalize() ListUsersFilter {
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// GetByID busca un usuario por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail busca un usuario por email (case-insensitive).
	// Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Create inserta un usuario. Retorna ErrConflict si el email existe.
	Create(ctx context.Context, in CreateUserInput) (*domain.User, error)

	// Update modifica un usuario. Retorna ErrNotFound o ErrConflict.
	Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error)

	// Delete borra un usuario y lo devuelve. Retorna ErrNotFound si no existe.
	Delete(ctx context.Context, id string) (*domain.User, error)

	// List devuelve usuarios ordenados por fecha de creación.
	List(ctx context.Context, filter ListUsersFilter) ([]domain.User, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error
}
