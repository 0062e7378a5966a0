package directory

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound indicates no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// User is the slice of the platform's user record this core needs for
// recipient resolution. Registration and authentication live elsewhere.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Directory resolves users for transfers and group membership.
type Directory interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}
