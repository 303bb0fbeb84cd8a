// Package users contiene los controllers de /users.
package users

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dropDatabas3/caishen/internal/auth"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/http/dto"
	httperrors "github.com/dropDatabas3/caishen/internal/http/errors"
	"github.com/dropDatabas3/caishen/internal/http/helpers"
	"github.com/dropDatabas3/caishen/internal/http/middlewares"
	svc "github.com/dropDatabas3/caishen/internal/users"
	"github.com/go-chi/chi/v5"
)

// Service es la parte de users.Service que usan los handlers.
type Service interface {
	Signup(ctx context.Context, in auth.RegisterInput) (*domain.User, error)
	Create(ctx context.Context, actor *domain.User, in auth.RegisterInput) (*domain.User, error)
	UpdateSelf(ctx context.Context, actor *domain.User, in svc.UpdateInput) (*domain.User, error)
	Update(ctx context.Context, actor *domain.User, id string, in svc.UpdateInput) (*domain.User, error)
	List(ctx context.Context, actor *domain.User, offset, limit int) ([]domain.User, error)
	Delete(ctx context.Context, actor *domain.User, id string) (*domain.User, error)
}

type UsersController struct {
	service       Service
	disableSignup bool
}

func NewUsersController(s Service, disableSignup bool) *UsersController {
	return &UsersController{service: s, disableSignup: disableSignup}
}

// Signup maneja POST /users/signup (alta pública de usuarios LOCAL).
func (c *UsersController) Signup(w http.ResponseWriter, r *http.Request) {
	if c.disableSignup {
		httperrors.WriteError(w, r, httperrors.ErrSignupDisabled)
		return
	}
	var req dto.CreateUserRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	u, err := c.service.Signup(r.Context(), registerInput(req))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, dto.NewUserResponse(u))
}

// Me maneja GET /users/me.
func (c *UsersController) Me(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, dto.NewUserResponse(middlewares.GetUser(r.Context())))
}

// UpdateMe maneja PUT /users/me.
func (c *UsersController) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	u, err := c.service.UpdateSelf(r.Context(), middlewares.GetUser(r.Context()), updateInput(req))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.NewUserResponse(u))
}

// Create maneja POST /users/ (solo admin).
func (c *UsersController) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	u, err := c.service.Create(r.Context(), middlewares.GetUser(r.Context()), registerInput(req))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, dto.NewUserResponse(u))
}

// Update maneja PUT /users/ (solo admin); el id viaja en el body.
func (c *UsersController) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if req.ID == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("id is required"))
		return
	}
	u, err := c.service.Update(r.Context(), middlewares.GetUser(r.Context()), req.ID, updateInput(req))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.NewUserResponse(u))
}

// List maneja GET /users/?offset&limit (solo admin).
func (c *UsersController) List(w http.ResponseWriter, r *http.Request) {
	offset, err1 := queryInt(r, "offset", 0)
	limit, err2 := queryInt(r, "limit", 100)
	if err1 != nil || err2 != nil {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("offset and limit must be integers"))
		return
	}
	us, err := c.service.List(r.Context(), middlewares.GetUser(r.Context()), offset, limit)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.NewUserList(us))
}

// Delete maneja DELETE /users/{id} (solo admin) y devuelve el usuario borrado.
func (c *UsersController) Delete(w http.ResponseWriter, r *http.Request) {
	u, err := c.service.Delete(r.Context(), middlewares.GetUser(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.NewUserResponse(u))
}

func registerInput(req dto.CreateUserRequest) auth.RegisterInput {
	return auth.RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		BirthDate: req.BirthDate.Time,
	}
}

func updateInput(req dto.UpdateUserRequest) svc.UpdateInput {
	in := svc.UpdateInput{Name: req.Name, Email: req.Email, Password: req.Password, IsAdmin: req.IsAdmin}
	if req.BirthDate != nil {
		t := req.BirthDate.Time
		in.BirthDate = &t
	}
	return in
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
