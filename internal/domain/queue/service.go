package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service combines the authoritative in-memory manager with write-through
// persistence. Store failures on mutations that already took effect in
// memory are logged, not surfaced.
type Service struct {
	mgr    *Manager
	repo   Repository
	logger zerolog.Logger
}

func NewService(mgr *Manager, repo Repository, logger zerolog.Logger) *Service {
	return &Service{mgr: mgr, repo: repo, logger: logger}
}

// LoadFromStore seeds the manager with non-terminal patients at startup.
func (s *Service) LoadFromStore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	patients, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load admission queue: %w", err)
	}
	for _, p := range patients {
		s.mgr.Load(p)
	}
	return nil
}

// Enqueue validates and adds a new patient, persisting the entry.
func (s *Service) Enqueue(ctx context.Context, p *Patient) error {
	if err := s.mgr.Enqueue(p); err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.Insert(ctx, p); err != nil {
			s.logger.Error().Err(err).Stringer("patient_id", p.ID).Msg("failed to persist enqueue")
		}
	}
	return nil
}

// Remove drops a patient from the queue (external deletion). The stored
// record is marked cancelled so history is preserved.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := s.mgr.Remove(id); err != nil {
		return err
	}
	s.persistStatus(ctx, id, StatusCancelled)
	return nil
}

// Get returns a copy of the queued patient.
func (s *Service) Get(id uuid.UUID) (Patient, error) {
	return s.mgr.Get(id)
}

// SetScore applies a (possibly pinned) score and persists it.
func (s *Service) SetScore(ctx context.Context, id uuid.UUID, score int, pin bool) (Patient, error) {
	p, err := s.mgr.SetScore(id, score, pin)
	if err != nil {
		return p, err
	}
	if s.repo != nil {
		if err := s.repo.UpdateScore(ctx, id, score, pin); err != nil {
			s.logger.Error().Err(err).Stringer("patient_id", id).Msg("failed to persist score")
		}
	}
	return p, nil
}

// Transition moves the patient through the admission lifecycle and
// persists the new status.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next Status) (Patient, error) {
	p, err := s.mgr.Transition(id, next)
	if err != nil {
		return p, err
	}
	s.persistStatus(ctx, id, next)
	return p, nil
}

// Requeue creates a fresh waiting entry for a patient whose reservation
// was cancelled. The new entry has its own id and insertion order; the
// old record's terminal state stands.
func (s *Service) Requeue(ctx context.Context, old Patient) (Patient, error) {
	fresh := Patient{
		Name:              old.Name,
		Age:               old.Age,
		Gender:            old.Gender,
		Diagnosis:         old.Diagnosis,
		Comorbidities:     old.Comorbidities,
		RequestedSector:   old.RequestedSector,
		Risk:              old.Risk,
		IsolationRequired: old.IsolationRequired,
		OriginFacility:    old.OriginFacility,
	}
	if err := s.Enqueue(ctx, &fresh); err != nil {
		return Patient{}, err
	}
	return fresh, nil
}

// Tick refreshes wait times and unpinned scores as of now, then resorts.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	changed, err := s.mgr.Tick(now)
	if s.repo != nil {
		for _, p := range changed {
			if uerr := s.repo.UpdateScore(ctx, p.ID, p.PriorityScore, p.ScorePinned); uerr != nil {
				s.logger.Error().Err(uerr).Stringer("patient_id", p.ID).Msg("failed to persist tick score")
			}
		}
	}
	return err
}

// Resort recomputes the authoritative ordering.
func (s *Service) Resort() {
	s.mgr.Resort()
}

// Snapshot returns the point-in-time ordered view for reporting.
func (s *Service) Snapshot() []Patient {
	return s.mgr.Snapshot()
}

// Len returns the queue depth.
func (s *Service) Len() int {
	return s.mgr.Len()
}

func (s *Service) persistStatus(ctx context.Context, id uuid.UUID, status Status) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		s.logger.Error().Err(err).Stringer("patient_id", id).Msg("failed to persist status")
	}
}
