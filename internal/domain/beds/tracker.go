// Package beds owns per-sector bed inventory and the atomic
// reserve/release operations the allocation matcher depends on.
package beds

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrSectorUnknown is returned when the named sector does not exist.
	ErrSectorUnknown = errors.New("bed sector unknown")
	// ErrFull signals that no bed is free. It is a normal outcome, not a
	// failure: callers route to the next candidate.
	ErrFull = errors.New("bed sector full")
	// ErrSectorHalted is returned while a sector is frozen after an
	// over-allocation was detected, until operations reconcile it.
	ErrSectorHalted = errors.New("bed sector halted pending reconciliation")
	// ErrOverAllocation is the fatal consistency failure: a mutation
	// would leave more beds in use than exist.
	ErrOverAllocation = errors.New("bed sector over-allocation detected")
	// ErrInvalidDelta is returned when a status update would drive any
	// count negative or break the inventory invariant.
	ErrInvalidDelta = errors.New("invalid bed sector status delta")
)

// sectorState pairs a sector with its own lock so that reservations on
// different sectors never serialize on each other.
type sectorState struct {
	mu sync.Mutex
	s  Sector
}

// Tracker is the in-memory bed inventory. All mutations on a sector run
// under that sector's lock; reserve is a single check-and-increment so
// two concurrent reservations can never both consume the last bed.
type Tracker struct {
	mu      sync.RWMutex
	sectors map[string]*sectorState
	logger  zerolog.Logger
}

func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		sectors: make(map[string]*sectorState),
		logger:  logger,
	}
}

// Load replaces or inserts a sector, used for startup recovery.
func (t *Tracker) Load(s Sector) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sectors[s.Name] = &sectorState{s: s}
}

func (t *Tracker) get(name string) (*sectorState, error) {
	t.mu.RLock()
	st, ok := t.sectors[name]
	t.mu.RUnlock()
	if !ok {
		return nil, ErrSectorUnknown
	}
	return st, nil
}

// Reserve takes one free bed in the named sector, moving it to occupied.
// The free check and the increment happen under the sector lock as one
// indivisible step.
func (t *Tracker) Reserve(name string) (Sector, error) {
	st, err := t.get(name)
	if err != nil {
		return Sector{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.s.Halted {
		return st.s, ErrSectorHalted
	}
	if st.s.Free() <= 0 {
		return st.s, ErrFull
	}
	st.s.Occupied++
	st.s.UpdatedAt = time.Now().UTC()

	if !st.s.consistent() {
		// Must be unreachable while reservation is atomic. Freeze the
		// sector rather than silently masking a double-booked bed.
		st.s.Halted = true
		t.logOverAllocation(st.s, "reserve")
		return st.s, ErrOverAllocation
	}
	return st.s, nil
}

// Unreserve undoes a reservation whose patient could not be transitioned
// (compensation path). The bed returns directly to free: it was never
// physically used.
func (t *Tracker) Unreserve(name string) error {
	st, err := t.get(name)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Occupied <= 0 {
		return ErrInvalidDelta
	}
	st.s.Occupied--
	st.s.UpdatedAt = time.Now().UTC()
	return nil
}

// Release frees a bed after its patient leaves: occupied moves to
// cleaning, not to free, reflecting the physical turnaround.
func (t *Tracker) Release(name string) (Sector, error) {
	st, err := t.get(name)
	if err != nil {
		return Sector{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Occupied <= 0 {
		return st.s, ErrInvalidDelta
	}
	st.s.Occupied--
	st.s.Cleaning++
	st.s.UpdatedAt = time.Now().UTC()
	return st.s, nil
}

// FinishCleaning returns one cleaned bed to the free pool.
func (t *Tracker) FinishCleaning(name string) (Sector, error) {
	st, err := t.get(name)
	if err != nil {
		return Sector{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Cleaning <= 0 {
		return st.s, ErrInvalidDelta
	}
	st.s.Cleaning--
	st.s.UpdatedAt = time.Now().UTC()
	return st.s, nil
}

// ApplyDelta applies a bed-management status update. Unknown sectors are
// created when the delta establishes a positive total. A valid delta also
// reconciles (un-halts) a frozen sector.
func (t *Tracker) ApplyDelta(name string, d StatusDelta) (Sector, error) {
	t.mu.Lock()
	st, ok := t.sectors[name]
	if !ok {
		if d.Total <= 0 {
			t.mu.Unlock()
			return Sector{}, ErrSectorUnknown
		}
		st = &sectorState{s: Sector{Name: name}}
		t.sectors[name] = st
	}
	t.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.s
	next.Total += d.Total
	next.Occupied += d.Occupied
	next.Cleaning += d.Cleaning
	next.Maintenance += d.Maintenance
	if !next.consistent() {
		return st.s, ErrInvalidDelta
	}
	next.Halted = false
	next.UpdatedAt = time.Now().UTC()
	st.s = next
	return st.s, nil
}

// Free returns the number of reservable beds in the named sector.
func (t *Tracker) Free(name string) (int, error) {
	st, err := t.get(name)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Free(), nil
}

// Get returns a copy of the named sector.
func (t *Tracker) Get(name string) (Sector, error) {
	st, err := t.get(name)
	if err != nil {
		return Sector{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s, nil
}

// Snapshot returns a point-in-time copy of every sector, sorted is left
// to callers. Each sector is copied under its own lock.
func (t *Tracker) Snapshot() []Sector {
	t.mu.RLock()
	states := make([]*sectorState, 0, len(t.sectors))
	for _, st := range t.sectors {
		states = append(states, st)
	}
	t.mu.RUnlock()

	out := make([]Sector, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.s)
		st.mu.Unlock()
	}
	return out
}

func (t *Tracker) logOverAllocation(s Sector, op string) {
	t.logger.Error().
		Str("marker", "over_allocation").
		Str("sector", s.Name).
		Str("operation", op).
		Int("total", s.Total).
		Int("occupied", s.Occupied).
		Int("cleaning", s.Cleaning).
		Int("maintenance", s.Maintenance).
		Msg("bed inventory invariant violated; sector halted until reconciled")
}
