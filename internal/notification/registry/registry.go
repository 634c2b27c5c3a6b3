// Package registry reads and prunes a user's delivery endpoints and preferences.
package registry

import (
	"context"

	"notification-workers/internal/models"
)

// Registry is the endpoint registry accessor.
//
// Load returns (nil, nil) when the user does not exist. PruneEndpoints removes
// exactly the given endpoints from the stored set and leaves every other
// endpoint, including ones registered concurrently, untouched.
type Registry interface {
	Load(ctx context.Context, uid string) (*models.User, error)
	PruneEndpoints(ctx context.Context, uid string, invalid []string) error
}
