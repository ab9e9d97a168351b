package beds

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Service combines the authoritative in-memory tracker with write-through
// persistence. Persistence failures are logged, not surfaced: allocation
// correctness depends on the tracker, the store is for recovery.
type Service struct {
	tracker *Tracker
	repo    Repository
	logger  zerolog.Logger
}

func NewService(tracker *Tracker, repo Repository, logger zerolog.Logger) *Service {
	return &Service{tracker: tracker, repo: repo, logger: logger}
}

// LoadFromStore seeds the tracker from the repository at startup.
func (s *Service) LoadFromStore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	sectors, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load bed sectors: %w", err)
	}
	for _, sec := range sectors {
		s.tracker.Load(*sec)
	}
	return nil
}

func (s *Service) persist(ctx context.Context, sec Sector) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Upsert(ctx, &sec); err != nil {
		s.logger.Error().Err(err).Str("sector", sec.Name).Msg("failed to persist bed sector")
	}
}

// Reserve atomically takes one free bed in the named sector.
func (s *Service) Reserve(ctx context.Context, name string) error {
	sec, err := s.tracker.Reserve(name)
	if err != nil {
		return err
	}
	s.persist(ctx, sec)
	return nil
}

// Unreserve is the compensation path for a reservation whose patient
// transition failed.
func (s *Service) Unreserve(ctx context.Context, name string) error {
	if err := s.tracker.Unreserve(name); err != nil {
		return err
	}
	if sec, err := s.tracker.Get(name); err == nil {
		s.persist(ctx, sec)
	}
	return nil
}

// Release moves one occupied bed to cleaning.
func (s *Service) Release(ctx context.Context, name string) error {
	sec, err := s.tracker.Release(name)
	if err != nil {
		return err
	}
	s.persist(ctx, sec)
	return nil
}

// FinishCleaning returns one cleaned bed to the free pool.
func (s *Service) FinishCleaning(ctx context.Context, name string) (Sector, error) {
	sec, err := s.tracker.FinishCleaning(name)
	if err != nil {
		return sec, err
	}
	s.persist(ctx, sec)
	return sec, nil
}

// ApplyDelta applies a bed-management status update.
func (s *Service) ApplyDelta(ctx context.Context, name string, d StatusDelta) (Sector, error) {
	sec, err := s.tracker.ApplyDelta(name, d)
	if err != nil {
		return sec, err
	}
	s.persist(ctx, sec)
	return sec, nil
}

// Free returns the number of reservable beds in the named sector.
func (s *Service) Free(name string) (int, error) {
	return s.tracker.Free(name)
}

// Get returns a copy of the named sector.
func (s *Service) Get(name string) (Sector, error) {
	return s.tracker.Get(name)
}

// Snapshot returns a point-in-time copy of the whole inventory.
func (s *Service) Snapshot() []Sector {
	return s.tracker.Snapshot()
}
