// Package domain contiene los tipos centrales del servicio de cuentas.
package domain

import (
	"strings"
	"time"
)

// AuthProvider identifica con qué proveedor se registró un usuario.
// El conjunto es cerrado.
type AuthProvider string

const (
	ProviderLocal    AuthProvider = "LOCAL"
	ProviderGoogle   AuthProvider = "GOOGLE"
	ProviderFacebook AuthProvider = "FACEBOOK"
)

// ParseAuthProvider acepta el nombre en cualquier capitalización.
func ParseAuthProvider(s string) (AuthProvider, bool) {
	switch AuthProvider(strings.ToUpper(strings.TrimSpace(s))) {
	case ProviderLocal:
		return ProviderLocal, true
	case ProviderGoogle:
		return ProviderGoogle, true
	case ProviderFacebook:
		return ProviderFacebook, true
	}
	return "", false
}

func (p AuthProvider) String() string { return string(p) }

// User es una cuenta del servicio. PasswordHash es nil salvo para LOCAL.
type User struct {
	ID           string
	Name         string
	Email        string
	BirthDate    time.Time
	PasswordHash *string
	AuthProvider AuthProvider
	IsAdmin      bool
	CreatedAt    time.Time
}

// HasPassword indica si el usuario puede autenticarse con contraseña.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// NormalizeEmail es la forma canónica con la que se guardan y buscan emails.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExternalUser es la identidad que devuelve un proveedor externo tras el
// intercambio del código. No se persiste.
type ExternalUser struct {
	Subject   string
	Email     string
	Name      string
	BirthDate *time.Time
}
