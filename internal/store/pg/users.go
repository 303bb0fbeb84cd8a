package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, name, email, birth_date, password, auth_provider, is_admin, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var provider string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.BirthDate, &u.PasswordHash, &provider, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.AuthProvider = domain.AuthProvider(provider)
	return &u, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get user", err)
	}
	return u, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	u, err := scanUser(s.pool.QueryRow(ctx, q, domain.NormalizeEmail(email)))
	if err != nil {
		return nil, mapErr("get user by email", err)
	}
	return u, nil
}

func (s *Store) Create(ctx context.Context, in repository.CreateUserInput) (*domain.User, error) {
	if in.AuthProvider == "" {
		in.AuthProvider = domain.ProviderLocal
	}
	const q = `
INSERT INTO users (id, name, email, birth_date, password, auth_provider, is_admin, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns
	u, err := scanUser(s.pool.QueryRow(ctx, q,
		uuid.NewString(),
		in.Name,
		domain.NormalizeEmail(in.Email),
		in.BirthDate,
		in.PasswordHash,
		string(in.AuthProvider),
		in.IsAdmin,
		time.Now().UTC(),
	))
	if err != nil {
		return nil, mapErr("create user", err)
	}
	return u, nil
}

func (s *Store) Update(ctx context.Context, id string, in repository.UpdateUserInput) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if in.Name != nil {
		add("name", *in.Name)
	}
	if in.Email != nil {
		add("email", domain.NormalizeEmail(*in.Email))
	}
	if in.BirthDate != nil {
		add("birth_date", *in.BirthDate)
	}
	if in.PasswordHash != nil {
		add("password", *in.PasswordHash)
	}
	if in.IsAdmin != nil {
		add("is_admin", *in.IsAdmin)
	}
	if len(sets) == 0 {
		return s.GetByID(ctx, id)
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanUser(s.pool.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, mapErr("update user", err)
	}
	return u, nil
}

func (s *Store) Delete(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id))
	if err != nil {
		return nil, mapErr("delete user", err)
	}
	return u, nil
}

func (s *Store) List(ctx context.Context, filter repository.ListUsersFilter) ([]domain.User, error) {
	f := filter.Normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id OFFSET $1 LIMIT $2`, f.Offset, f.Limit)
	if err != nil {
		return nil, mapErr("list users", err)
	}
	defer rows.Close()

	out := make([]domain.User, 0, f.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr("list users", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list users", err)
	}
	return out, nil
}

var _ repository.UserRepository = (*Store)(nil)
