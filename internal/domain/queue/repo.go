package queue

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the durability contract behind the in-memory manager.
type Repository interface {
	Insert(ctx context.Context, p *Patient) error
	UpdateScore(ctx context.Context, id uuid.UUID, score int, pinned bool) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListActive returns every non-terminal patient for startup recovery.
	ListActive(ctx context.Context) ([]*Patient, error)
}
