package interfaces

import (
	"context"

	auth_models "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models/auth"
)

type UserRepository interface {
	// Create user
	Create(ctx context.Context, user *auth_models.User) (*auth_models.User, error)

	// Read users
	GetByID(ctx context.Context, userID string) (*auth_models.User, error)
	GetByUsername(ctx context.Context, username string) (*auth_models.User, error)

	// Update user
	Update(ctx context.Context, user *auth_models.User) error
}
