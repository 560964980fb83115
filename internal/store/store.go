// Package store provides durable persistence for learner progress.
package store

import (
	"context"

	"github.com/blrlabs/codelab/internal/domain"
)

// Repository defines the interface for persisting progress records.
//
// Writes for the same username are serialized by the implementation;
// records for different usernames are independent.
type Repository interface {
	// EnsureUser creates an empty progress record for the username if none
	// exists. It is idempotent and writes only on the first call for a user.
	EnsureUser(ctx context.Context, username string) error

	// GetProgress retrieves the progress record for a username.
	// Returns (nil, nil) for users that were never ensured.
	GetProgress(ctx context.Context, username string) (*domain.Progress, error)

	// SaveProgress overwrites the current goal/module pointer and merges the
	// completion metrics into the completed mapping, keyed by the module
	// that was finished. LastUpdated is bumped on every call.
	SaveProgress(ctx context.Context, username, goal, module string, completion domain.ModuleCompletion) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
