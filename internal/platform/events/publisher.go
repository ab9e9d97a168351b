package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AssignmentEvent is the payload fanned out whenever a bed is reserved,
// an admission confirmed, or a reservation cancelled.
type AssignmentEvent struct {
	Type       string    `json:"type"`
	PatientID  uuid.UUID `json:"patient_id"`
	SectorName string    `json:"sector_name"`
	Fallback   bool      `json:"fallback"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	TypeReserved  = "bed.reserved"
	TypeAdmitted  = "patient.admitted"
	TypeCancelled = "reservation.cancelled"
)

// Publisher fans assignment events out to downstream systems. Publish
// failures must never block or fail the allocation that produced them.
type Publisher interface {
	Publish(ctx context.Context, e AssignmentEvent) error
	Close() error
}

// LogPublisher writes events to the structured log. It is the default
// when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e AssignmentEvent) error {
	p.logger.Info().
		Str("event_type", e.Type).
		Stringer("patient_id", e.PatientID).
		Str("sector", e.SectorName).
		Bool("fallback", e.Fallback).
		Time("occurred_at", e.OccurredAt).
		Msg("assignment event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
