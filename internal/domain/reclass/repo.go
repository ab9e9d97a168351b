package reclass

import (
	"context"

	"github.com/google/uuid"
)

// Repository is append-only: events are never updated or deleted.
type Repository interface {
	Insert(ctx context.Context, e *Event) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Event, error)
}
