package allocation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, a *Assignment) error
	MarkReleased(ctx context.Context, id uuid.UUID) error
	// ListActive returns unreleased assignments for startup recovery.
	ListActive(ctx context.Context) ([]*Assignment, error)
}
