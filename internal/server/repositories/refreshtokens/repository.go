// Package refreshtokens declares the server-side repository contract for
// the refresh token kept on each user row.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/profilehub/internal/server/models"
)

// Repository reads and writes the single outstanding refresh token of a user.
type Repository interface {
	// Set stores token for userID with an expiry of now+validity, replacing
	// any previous value. Returns common.ErrorNotFound if the user is gone.
	Set(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find looks up the user holding token. Within a transaction the row is
	// locked until commit. Returns common.ErrorNotFound when no user has it.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Clear removes the token of userID. Clearing an empty token is not an error.
	Clear(ctx context.Context, userID string) error
}
