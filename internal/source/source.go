// Package source defines the mod registries that can resolve file references into downloads.
package source

import (
	"context"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// ModSource is the interface for mod repositories
type ModSource interface {
	// Identity
	ID() string
	Name() string

	// Authentication
	IsAuthenticated() bool

	// Resolution returns one mod per reference, in order
	ResolveFiles(ctx context.Context, refs []domain.CurseModInfo) ([]domain.Mod, error)
}
