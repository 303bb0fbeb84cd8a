// Package memory implementa repository.UserRepository en memoria.
// Se usa en tests y con storage.driver=memory en desarrollo.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/google/uuid"
)

type Users struct {
	mu   sync.RWMutex
	byID map[string]domain.User
	now  func() time.Time
}

func NewUsers() *Users {
	return &Users{byID: map[string]domain.User{}, now: time.Now}
}

func (s *Users) findByEmail(email string) (domain.User, bool) {
	email = domain.NormalizeEmail(email)
	for _, u := range s.byID {
		if u.Email == email {
			return u, true
		}
	}
	return domain.User{}, false
}

func (s *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.findByEmail(email)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *Users) Create(_ context.Context, in repository.CreateUserInput) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findByEmail(in.Email); ok {
		return nil, repository.ErrConflict
	}
	if in.AuthProvider == "" {
		in.AuthProvider = domain.ProviderLocal
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        domain.NormalizeEmail(in.Email),
		BirthDate:    in.BirthDate,
		PasswordHash: in.PasswordHash,
		AuthProvider: in.AuthProvider,
		IsAdmin:      in.IsAdmin,
		CreatedAt:    s.now().UTC(),
	}
	s.byID[u.ID] = u
	return &u, nil
}

func (s *Users) Update(_ context.Context, id string, in repository.UpdateUserInput) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if in.Email != nil {
		if other, ok := s.findByEmail(*in.Email); ok && other.ID != id {
			return nil, repository.ErrConflict
		}
		u.Email = domain.NormalizeEmail(*in.Email)
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.BirthDate != nil {
		u.BirthDate = *in.BirthDate
	}
	if in.PasswordHash != nil {
		h := *in.PasswordHash
		u.PasswordHash = &h
	}
	if in.IsAdmin != nil {
		u.IsAdmin = *in.IsAdmin
	}
	s.byID[id] = u
	return &u, nil
}

func (s *Users) Delete(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.byID, id)
	return &u, nil
}

func (s *Users) List(_ context.Context, filter repository.ListUsersFilter) ([]domain.User, error) {
	f := filter.Normalize()
	s.mu.RLock()
	all := make([]domain.User, 0, len(s.byID))
	for _, u := range s.byID {
		all = append(all, u)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if f.Offset >= len(all) {
		return []domain.User{}, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}

func (s *Users) Ping(context.Context) error { return nil }

// Len devuelve la cantidad de usuarios (tests).
func (s *Users) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var _ repository.UserRepository = (*Users)(nil)
