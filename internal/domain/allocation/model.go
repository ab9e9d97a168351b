package allocation

import (
	"time"

	"github.com/google/uuid"
)

// Assignment links a queued patient to a reserved bed.
type Assignment struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	PatientID  uuid.UUID  `json:"patient_id" db:"patient_id"`
	SectorName string     `json:"sector_name" db:"sector_name"`
	Fallback   bool       `json:"fallback" db:"fallback"`
	Released   bool       `json:"released" db:"released"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty" db:"released_at"`
}
