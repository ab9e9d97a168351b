// Package queue maintains the single authoritative ordering of patients
// waiting for admission. All consumers read the order through Snapshot;
// no caller re-derives it independently.
package queue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regula/regula/internal/domain/scoring"
)

var (
	// ErrDuplicateEnqueue is returned when a patient id is already
	// queued in a non-terminal state.
	ErrDuplicateEnqueue = errors.New("patient already enqueued")
	// ErrPatientNotFound is returned when the patient id is not in the
	// queue.
	ErrPatientNotFound = errors.New("patient not found in queue")
	// ErrInvalidTransition is returned for a status change the
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid patient status transition")
)

// comparator returns <0 when a ranks before b, >0 when after, 0 on tie.
type comparator func(a, b *Patient) int

// Manager is the mutex-guarded ordered container of all non-terminal
// patients. Ordering is a strict total order: the comparator chain ends
// on the arrival sequence, which is unique.
type Manager struct {
	mu      sync.RWMutex
	policy  scoring.AgePolicy
	entries map[uuid.UUID]*Patient
	order   []*Patient
	seq     uint64
	chain   []comparator
	now     func() time.Time
}

func NewManager(policy scoring.AgePolicy) *Manager {
	m := &Manager{
		policy:  policy,
		entries: make(map[uuid.UUID]*Patient),
		now:     time.Now,
	}
	m.chain = []comparator{
		// 1. priority score, highest first
		func(a, b *Patient) int { return b.PriorityScore - a.PriorityScore },
		// 2. wait time, longest first. Comparing WaitingSince directly
		// keeps the order independent of when the comparison runs.
		func(a, b *Patient) int {
			switch {
			case a.WaitingSince.Before(b.WaitingSince):
				return -1
			case b.WaitingSince.Before(a.WaitingSince):
				return 1
			}
			return 0
		},
		// 3. age-based legal priority per configured policy
		func(a, b *Patient) int { return m.policy.Rank(a.Age) - m.policy.Rank(b.Age) },
		// 4. isolation need ranks above
		func(a, b *Patient) int {
			switch {
			case a.IsolationRequired && !b.IsolationRequired:
				return -1
			case !a.IsolationRequired && b.IsolationRequired:
				return 1
			}
			return 0
		},
		// 5. insertion order, first in first
		func(a, b *Patient) int {
			switch {
			case a.ArrivalSeq < b.ArrivalSeq:
				return -1
			case a.ArrivalSeq > b.ArrivalSeq:
				return 1
			}
			return 0
		},
	}
	return m
}

// less applies the comparator chain.
func (m *Manager) less(a, b *Patient) bool {
	for _, cmp := range m.chain {
		if c := cmp(a, b); c != 0 {
			return c < 0
		}
	}
	return false
}

// Enqueue adds a new patient in waiting state, computes the initial
// score and resorts. The core assigns the id; callers never do.
func (m *Manager) Enqueue(p *Patient) error {
	if !p.Risk.Valid() {
		return fmt.Errorf("%w: risk %q", scoring.ErrInvalidInput, p.Risk)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID != uuid.Nil {
		if _, ok := m.entries[p.ID]; ok {
			return ErrDuplicateEnqueue
		}
	} else {
		p.ID = uuid.New()
	}

	now := m.now()
	if p.WaitingSince.IsZero() {
		p.WaitingSince = now
	}
	m.seq++
	p.ArrivalSeq = m.seq
	p.Status = StatusWaiting
	p.CreatedAt = now
	p.UpdatedAt = now

	score, err := scoring.Compute(p.scoringInput(now), m.policy)
	if err != nil {
		return err
	}
	p.PriorityScore = score
	p.WaitTimeHours = p.waited(now).Hours()

	m.entries[p.ID] = p
	m.order = append(m.order, p)
	m.resortLocked()
	return nil
}

// Load restores a recovered patient without assigning a new sequence or
// recomputing a pinned score. Used at startup.
func (m *Manager) Load(p *Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ArrivalSeq > m.seq {
		m.seq = p.ArrivalSeq
	}
	m.entries[p.ID] = p
	m.order = append(m.order, p)
	m.resortLocked()
}

// Remove takes a patient out of the queue (external deletion: left,
// transferred out).
func (m *Manager) Remove(id uuid.UUID) (Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok {
		return Patient{}, ErrPatientNotFound
	}
	m.dropLocked(id)
	return *p, nil
}

func (m *Manager) dropLocked(id uuid.UUID) {
	delete(m.entries, id)
	for i, p := range m.order {
		if p.ID == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the patient.
func (m *Manager) Get(id uuid.UUID) (Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[id]
	if !ok {
		return Patient{}, ErrPatientNotFound
	}
	return *p, nil
}

// SetScore applies a score to the patient and resorts. Pinned scores are
// manual overrides: ticks leave them alone until the next override.
func (m *Manager) SetScore(id uuid.UUID, score int, pin bool) (Patient, error) {
	if !scoring.ValidScore(score) {
		return Patient{}, fmt.Errorf("%w: score %d", scoring.ErrInvalidInput, score)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok {
		return Patient{}, ErrPatientNotFound
	}
	p.PriorityScore = score
	p.ScorePinned = pin
	p.UpdatedAt = m.now()
	m.resortLocked()
	return *p, nil
}

// Transition moves the patient to the next lifecycle state. Terminal
// states drop the patient from the container.
func (m *Manager) Transition(id uuid.UUID, next Status) (Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok {
		return Patient{}, ErrPatientNotFound
	}
	if !p.Status.CanTransitionTo(next) {
		return *p, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	p.UpdatedAt = m.now()
	out := *p
	if next.Terminal() {
		m.dropLocked(id)
	}
	return out, nil
}

// Tick refreshes wait times as of now, recomputes unpinned scores and
// resorts. Returns the patients whose score changed.
func (m *Manager) Tick(now time.Time) ([]Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []Patient
	for _, p := range m.order {
		p.WaitTimeHours = p.waited(now).Hours()
		if p.ScorePinned {
			continue
		}
		score, err := scoring.Compute(p.scoringInput(now), m.policy)
		if err != nil {
			return changed, fmt.Errorf("rescore patient %s: %w", p.ID, err)
		}
		if score != p.PriorityScore {
			p.PriorityScore = score
			p.UpdatedAt = now
			changed = append(changed, *p)
		}
	}
	m.resortLocked()
	return changed, nil
}

// Resort recomputes the ordering. O(n log n); triggered by enqueue,
// ticks, reclassification and bed-release events.
func (m *Manager) Resort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resortLocked()
}

func (m *Manager) resortLocked() {
	sort.Slice(m.order, func(i, j int) bool { return m.less(m.order[i], m.order[j]) })
}

// Snapshot returns a point-in-time ordered copy for reporting. Writers
// are blocked only for the duration of the copy.
func (m *Manager) Snapshot() []Patient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Patient, len(m.order))
	for i, p := range m.order {
		out[i] = *p
	}
	return out
}

// Len returns the number of non-terminal patients queued.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
