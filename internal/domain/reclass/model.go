package reclass

import (
	"time"

	"github.com/google/uuid"
)

// Event is one append-only audit record of a manual priority override.
type Event struct {
	ID            uuid.UUID `json:"id" db:"id"`
	PatientID     uuid.UUID `json:"patient_id" db:"patient_id"`
	PreviousScore int       `json:"previous_score" db:"previous_score"`
	NewScore      int       `json:"new_score" db:"new_score"`
	Justification string    `json:"justification" db:"justification"`
	Actor         string    `json:"actor" db:"actor"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
