package auth

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// ErrDuplicate is returned when a matricule or email is already taken.
var ErrDuplicate = errors.New("matricule or email already in use")

// Store persists user accounts.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByMatricule(ctx context.Context, matricule string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
