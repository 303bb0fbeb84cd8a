// Package dto define los cuerpos JSON de la API.
package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/caishen/internal/domain"
)

const dateLayout = "2006-01-02"

// Date serializa como "YYYY-MM-DD".
type Date struct{ time.Time }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("birth_date must be YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

// UserResponse es la vista pública de un usuario; nunca incluye el hash.
type UserResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	BirthDate    Date      `json:"birth_date"`
	AuthProvider string    `json:"auth_provider"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		BirthDate:    Date{u.BirthDate},
		AuthProvider: u.AuthProvider.String(),
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
	}
}

func NewUserList(us []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(us))
	for i := range us {
		out = append(out, NewUserResponse(&us[i]))
	}
	return out
}

// CreateUserRequest es el cuerpo de signup y de la alta por admin.
type CreateUserRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	BirthDate Date   `json:"birth_date"`
}

// UpdateUserRequest: campos ausentes no se tocan. ID solo aplica a PUT /users/.
type UpdateUserRequest struct {
	ID        string  `json:"id,omitempty"`
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	BirthDate *Date   `json:"birth_date,omitempty"`
	Password  *string `json:"password,omitempty"`
	IsAdmin   *bool   `json:"is_admin,omitempty"`
}
