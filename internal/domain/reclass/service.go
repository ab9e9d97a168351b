package reclass

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/regula/regula/internal/domain/queue"
	"github.com/regula/regula/internal/domain/scoring"
	"github.com/regula/regula/internal/platform/telemetry"
)

var (
	ErrEmptyJustification = errors.New("justification is required")
	ErrInvalidScoreRange  = errors.New("score outside the valid range")
)

// QueueScorer is the slice of the queue service a reclassification needs.
type QueueScorer interface {
	Get(id uuid.UUID) (queue.Patient, error)
	SetScore(ctx context.Context, id uuid.UUID, score int, pin bool) (queue.Patient, error)
}

// Service records manual priority overrides. Every override pins the
// patient's score so automatic escalation cannot silently undo a
// clinical decision, and appends an audit event naming who did it and
// why.
type Service struct {
	queue   QueueScorer
	repo    Repository
	metrics *telemetry.Provider
	logger  zerolog.Logger
}

func NewService(q QueueScorer, repo Repository, logger zerolog.Logger) *Service {
	return &Service{queue: q, repo: repo, logger: logger}
}

// SetMetrics wires the reclassification counter. Optional.
func (s *Service) SetMetrics(p *telemetry.Provider) { s.metrics = p }

// Reclassify overrides a queued patient's priority score.
func (s *Service) Reclassify(ctx context.Context, patientID uuid.UUID, newScore int, justification, actor string) (*Event, error) {
	if strings.TrimSpace(justification) == "" {
		return nil, ErrEmptyJustification
	}
	if !scoring.ValidScore(newScore) {
		return nil, ErrInvalidScoreRange
	}

	prev, err := s.queue.Get(patientID)
	if err != nil {
		return nil, err
	}
	if _, err := s.queue.SetScore(ctx, patientID, newScore, true); err != nil {
		return nil, err
	}

	e := &Event{
		ID:            uuid.New(),
		PatientID:     patientID,
		PreviousScore: prev.PriorityScore,
		NewScore:      newScore,
		Justification: justification,
		Actor:         actor,
		CreatedAt:     time.Now(),
	}
	if s.repo != nil {
		if err := s.repo.Insert(ctx, e); err != nil {
			s.logger.Error().Err(err).Stringer("patient_id", patientID).Msg("failed to persist reclassification event")
		}
	}
	if s.metrics != nil {
		s.metrics.IncCounter(telemetry.MetricReclassifications)
	}
	s.logger.Info().
		Stringer("patient_id", patientID).
		Int("previous_score", e.PreviousScore).
		Int("new_score", e.NewScore).
		Str("actor", actor).
		Msg("patient reclassified")
	return e, nil
}

// History returns the audit trail for one patient, oldest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*Event, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListByPatient(ctx, patientID)
}
