package allocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/regula/regula/internal/domain/beds"
	"github.com/regula/regula/internal/domain/queue"
	"github.com/regula/regula/internal/platform/events"
	"github.com/regula/regula/internal/platform/telemetry"
)

var (
	ErrConfirmationRequired = errors.New("cancellation requires explicit confirmation")
	ErrNoActiveAssignment   = errors.New("patient has no active assignment")
)

// CancelRequest is the two-step cancellation payload. Confirm must be
// set; Requeue puts the patient back at the end of the waiting line as
// a fresh entry.
type CancelRequest struct {
	Confirm bool `json:"confirm"`
	Requeue bool `json:"requeue"`
}

// Matcher sweeps the ranked queue against free beds. It owns the
// assignment ledger; one sweep runs at a time.
type Matcher struct {
	queue   *queue.Service
	beds    *beds.Service
	repo    Repository
	pub     events.Publisher
	metrics *telemetry.Provider
	policy  FallbackPolicy
	logger  zerolog.Logger

	mu      sync.Mutex
	active  map[uuid.UUID]*Assignment
	history []*Assignment
}

func NewMatcher(q *queue.Service, b *beds.Service, repo Repository, pub events.Publisher,
	metrics *telemetry.Provider, policy FallbackPolicy, logger zerolog.Logger) *Matcher {
	return &Matcher{
		queue:   q,
		beds:    b,
		repo:    repo,
		pub:     pub,
		metrics: metrics,
		policy:  policy,
		logger:  logger,
		active:  make(map[uuid.UUID]*Assignment),
	}
}

// LoadFromStore restores unreleased assignments at startup so confirm
// and cancel keep working for reservations made before a restart.
func (m *Matcher) LoadFromStore(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}
	items, err := m.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range items {
		m.active[a.PatientID] = a
		m.history = append(m.history, a)
	}
	return nil
}

// Match walks the ranked waiting patients and reserves beds. A patient
// whose sectors are all full is skipped; patients requesting other bed
// types are still considered.
func (m *Matcher) Match(ctx context.Context) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchLocked(ctx)
}

func (m *Matcher) matchLocked(ctx context.Context) ([]Assignment, error) {
	var made []Assignment
	for _, p := range m.queue.Snapshot() {
		if p.Status != queue.StatusWaiting {
			continue
		}
		sector, fallback, ok := m.reserveForLocked(ctx, p)
		if !ok {
			continue
		}
		if _, err := m.queue.Transition(ctx, p.ID, queue.StatusReserved); err != nil {
			// Patient changed state under us; give the bed back.
			if uerr := m.beds.Unreserve(ctx, sector); uerr != nil {
				m.logger.Error().Err(uerr).Str("sector", sector).Msg("failed to unreserve after lost race")
			}
			continue
		}
		a := m.recordLocked(ctx, p.ID, sector, fallback)
		made = append(made, *a)
	}
	m.setQueueDepth()
	return made, nil
}

// reserveForLocked tries the patient's candidate sectors in order.
func (m *Matcher) reserveForLocked(ctx context.Context, p queue.Patient) (string, bool, bool) {
	for i, sector := range m.policy.CandidatesFor(p.RequestedSector, p.Risk) {
		err := m.beds.Reserve(ctx, sector)
		if err == nil {
			return sector, i > 0, true
		}
		switch {
		case errors.Is(err, beds.ErrFull):
			m.count(telemetry.MetricReserveFull, sector)
		case errors.Is(err, beds.ErrOverAllocation):
			m.count(telemetry.MetricHalts, sector)
		case errors.Is(err, beds.ErrSectorUnknown), errors.Is(err, beds.ErrSectorHalted):
			// Misconfigured or frozen sector; try the next candidate.
		default:
			m.logger.Error().Err(err).Str("sector", sector).Msg("reserve failed")
		}
	}
	return "", false, false
}

func (m *Matcher) recordLocked(ctx context.Context, patientID uuid.UUID, sector string, fallback bool) *Assignment {
	a := &Assignment{
		ID:         uuid.New(),
		PatientID:  patientID,
		SectorName: sector,
		Fallback:   fallback,
		CreatedAt:  time.Now(),
	}
	m.active[patientID] = a
	m.history = append(m.history, a)

	if m.repo != nil {
		if err := m.repo.Insert(ctx, a); err != nil {
			m.logger.Error().Err(err).Stringer("assignment_id", a.ID).Msg("failed to persist assignment")
		}
	}
	m.publish(ctx, events.AssignmentEvent{
		Type:       events.TypeReserved,
		PatientID:  patientID,
		SectorName: sector,
		Fallback:   fallback,
		OccurredAt: a.CreatedAt,
	})
	m.count(telemetry.MetricAssignments, sector, fmt.Sprintf("%t", fallback))
	m.logger.Info().
		Stringer("patient_id", patientID).
		Str("sector", sector).
		Bool("fallback", fallback).
		Msg("bed reserved")
	return a
}

// ConfirmAdmission moves a reserved patient into the bed.
func (m *Matcher) ConfirmAdmission(ctx context.Context, patientID uuid.UUID) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.active[patientID]
	if !ok {
		return Assignment{}, ErrNoActiveAssignment
	}
	if _, err := m.queue.Transition(ctx, patientID, queue.StatusAdmitted); err != nil {
		return Assignment{}, err
	}
	m.publish(ctx, events.AssignmentEvent{
		Type:       events.TypeAdmitted,
		PatientID:  patientID,
		SectorName: a.SectorName,
		Fallback:   a.Fallback,
		OccurredAt: time.Now(),
	})
	m.setQueueDepth()
	m.logger.Info().Stringer("patient_id", patientID).Str("sector", a.SectorName).Msg("admission confirmed")
	return *a, nil
}

// Cancel aborts a waiting or reserved patient. Reserved patients give
// their bed back to cleaning; the assignment is marked released.
func (m *Matcher) Cancel(ctx context.Context, patientID uuid.UUID, req CancelRequest) error {
	if !req.Confirm {
		return ErrConfirmationRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.queue.Get(patientID)
	if err != nil {
		if a, ok := m.active[patientID]; ok && !a.Released {
			// Admitted patients have left the queue but still hold
			// their bed; cancellation no longer applies.
			return queue.ErrInvalidTransition
		}
		return err
	}

	switch p.Status {
	case queue.StatusWaiting:
		_, err := m.queue.Transition(ctx, patientID, queue.StatusCancelled)
		m.setQueueDepth()
		return err
	case queue.StatusReserved:
		a, ok := m.active[patientID]
		if !ok {
			return ErrNoActiveAssignment
		}
		if err := m.beds.Release(ctx, a.SectorName); err != nil {
			m.logger.Error().Err(err).Str("sector", a.SectorName).Msg("failed to release bed on cancel")
		}
		m.releaseLocked(ctx, a)
		if _, err := m.queue.Transition(ctx, patientID, queue.StatusCancelled); err != nil {
			return err
		}
		if req.Requeue {
			if _, err := m.queue.Requeue(ctx, p); err != nil {
				return err
			}
		}
		m.publish(ctx, events.AssignmentEvent{
			Type:       events.TypeCancelled,
			PatientID:  patientID,
			SectorName: a.SectorName,
			Fallback:   a.Fallback,
			OccurredAt: time.Now(),
		})
		// The release may unblock someone (the requeued patient
		// included), so sweep immediately instead of waiting for the
		// next tick.
		if _, err := m.matchLocked(ctx); err != nil {
			m.logger.Error().Err(err).Msg("match after cancellation failed")
		}
		m.setQueueDepth()
		return nil
	default:
		return queue.ErrInvalidTransition
	}
}

func (m *Matcher) releaseLocked(ctx context.Context, a *Assignment) {
	now := time.Now()
	a.Released = true
	a.ReleasedAt = &now
	delete(m.active, a.PatientID)
	if m.repo != nil {
		if err := m.repo.MarkReleased(ctx, a.ID); err != nil {
			m.logger.Error().Err(err).Stringer("assignment_id", a.ID).Msg("failed to persist assignment release")
		}
	}
}

// Tick refreshes queue scores as of now and runs a match sweep. The
// server's ticker drives it; POST /tick exposes it to external
// schedulers.
func (m *Matcher) Tick(ctx context.Context, now time.Time) ([]Assignment, error) {
	if err := m.queue.Tick(ctx, now); err != nil {
		return nil, err
	}
	return m.Match(ctx)
}

// Assignments returns the ledger, newest first.
func (m *Matcher) Assignments() []Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Assignment, 0, len(m.history))
	for i := len(m.history) - 1; i >= 0; i-- {
		out = append(out, *m.history[i])
	}
	return out
}

// Active returns the unreleased assignment for a patient.
func (m *Matcher) Active(patientID uuid.UUID) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.active[patientID]
	if !ok {
		return Assignment{}, ErrNoActiveAssignment
	}
	return *a, nil
}

func (m *Matcher) publish(ctx context.Context, e events.AssignmentEvent) {
	if m.pub == nil {
		return
	}
	if err := m.pub.Publish(ctx, e); err != nil {
		m.logger.Error().Err(err).Str("event_type", e.Type).Msg("failed to publish assignment event")
	}
}

func (m *Matcher) count(name string, labels ...string) {
	if m.metrics != nil {
		m.metrics.IncCounter(name, labels...)
	}
}

func (m *Matcher) setQueueDepth() {
	if m.metrics != nil {
		m.metrics.SetGauge(telemetry.MetricQueueDepth, int64(m.queue.Len()))
	}
}
