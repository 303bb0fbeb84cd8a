// Package events publica eventos de usuario (alta, login) en RabbitMQ para
// que otros servicios reaccionen. Sin broker configurado se usa Noop.
package events

import (
	"context"
	"time"
)

// Routing keys.
const (
	KeyUserCreated  = "user.created"
	KeyUserLoggedIn = "user.login"
)

// Publisher publica un evento serializado como JSON.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
	Close() error
}

type UserCreated struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	AuthProvider string    `json:"auth_provider"`
	At           time.Time `json:"at"`
}

type UserLoggedIn struct {
	UserID       string    `json:"user_id"`
	AuthProvider string    `json:"auth_provider"`
	At           time.Time `json:"at"`
}

// Noop descarta los eventos.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close() error                               { return nil }
