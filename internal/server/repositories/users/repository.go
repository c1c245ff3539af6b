// Package users declares the server-side repository contract for user
// accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/profilehub/internal/server/models"
)

// Repository stores and looks up users. Lookups return common.ErrorNotFound
// when no row matches; Create returns common.ErrAlreadyExists when the
// username or email is taken.
type Repository interface {
	// Create hashes user.Password, inserts the row and returns it with the
	// database-generated fields filled in.
	Create(ctx context.Context, user *models.NewUser) (*models.User, error)

	// ExistsByUsernameOrEmail reports whether any user has the given username
	// or the given email.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByUsernameOrEmail returns the user matching either value.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
}
