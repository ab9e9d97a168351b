package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/regula/regula/internal/domain/scoring"
)

func newTestManager() *Manager {
	return NewManager(scoring.DefaultAgePolicy())
}

func mustEnqueue(t *testing.T, m *Manager, p *Patient) *Patient {
	t.Helper()
	if err := m.Enqueue(p); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return p
}

func TestEnqueue_AssignsIDAndScore(t *testing.T) {
	m := newTestManager()
	p := mustEnqueue(t, m, &Patient{Name: "Ana", Age: 40, Risk: scoring.RiskOrange, RequestedSector: "UTI Geral"})

	if p.ID == uuid.Nil {
		t.Error("expected core-assigned id")
	}
	if p.Status != StatusWaiting {
		t.Errorf("expected waiting status, got %s", p.Status)
	}
	if !scoring.ValidScore(p.PriorityScore) {
		t.Errorf("score %d out of range", p.PriorityScore)
	}
	if p.ArrivalSeq == 0 {
		t.Error("expected arrival sequence to be assigned")
	}
}

func TestEnqueue_Duplicate(t *testing.T) {
	m := newTestManager()
	p := mustEnqueue(t, m, &Patient{Name: "Ana", Age: 40, Risk: scoring.RiskOrange, RequestedSector: "UTI Geral"})

	dup := &Patient{ID: p.ID, Name: "Ana", Age: 40, Risk: scoring.RiskOrange, RequestedSector: "UTI Geral"}
	if err := m.Enqueue(dup); !errors.Is(err, ErrDuplicateEnqueue) {
		t.Fatalf("expected ErrDuplicateEnqueue, got %v", err)
	}
}

func TestEnqueue_InvalidRisk(t *testing.T) {
	m := newTestManager()
	err := m.Enqueue(&Patient{Name: "Ana", Age: 40, Risk: "purple", RequestedSector: "UTI Geral"})
	if !errors.Is(err, scoring.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if m.Len() != 0 {
		t.Error("failed enqueue must not add an entry")
	}
}

func TestOrdering_ScoreDominates(t *testing.T) {
	m := newTestManager()
	base := time.Now()

	// B waits far longer, but A's risk-driven score dominates.
	b := mustEnqueue(t, m, &Patient{Name: "B", Age: 40, Risk: scoring.RiskOrange, RequestedSector: "UTI Geral",
		WaitingSince: base.Add(-20 * time.Hour)})
	a := mustEnqueue(t, m, &Patient{Name: "A", Age: 40, Risk: scoring.RiskRed, RequestedSector: "UTI Geral",
		WaitingSince: base.Add(-2 * time.Hour)})

	snap := m.Snapshot()
	if snap[0].ID != a.ID || snap[1].ID != b.ID {
		t.Fatalf("expected [A B], got [%s %s]", snap[0].Name, snap[1].Name)
	}
}

func TestOrdering_WaitBreaksScoreTie(t *testing.T) {
	m := newTestManager()
	base := time.Now()

	short := mustEnqueue(t, m, &Patient{Name: "short", Age: 40, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: base.Add(-10 * time.Minute)})
	long := mustEnqueue(t, m, &Patient{Name: "long", Age: 40, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: base.Add(-30 * time.Minute)})

	// Equalize scores so the wait-time stage decides.
	if _, err := m.SetScore(short.ID, 50, false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetScore(long.ID, 50, false); err != nil {
		t.Fatal(err)
	}

	snap := m.Snapshot()
	if snap[0].ID != long.ID {
		t.Fatalf("expected longest wait first, got %s", snap[0].Name)
	}
}

func TestOrdering_InsertionOrderIsFinalTiebreak(t *testing.T) {
	m := newTestManager()
	since := time.Now().Add(-5 * time.Hour)

	first := mustEnqueue(t, m, &Patient{Name: "first", Age: 40, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: since})
	second := mustEnqueue(t, m, &Patient{Name: "second", Age: 40, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: since})

	m.SetScore(first.ID, 80, false)
	m.SetScore(second.ID, 80, false)

	for i := 0; i < 5; i++ {
		m.Resort()
		snap := m.Snapshot()
		if snap[0].ID != first.ID || snap[1].ID != second.ID {
			t.Fatalf("resort %d: expected stable FIFO tie-break, got [%s %s]", i, snap[0].Name, snap[1].Name)
		}
	}
}

func TestOrdering_AgeAndIsolationStages(t *testing.T) {
	m := newTestManager()
	since := time.Now().Add(-time.Hour)

	adult := mustEnqueue(t, m, &Patient{Name: "adult", Age: 35, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: since})
	elderly := mustEnqueue(t, m, &Patient{Name: "elderly", Age: 78, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: since})
	isolated := mustEnqueue(t, m, &Patient{Name: "isolated", Age: 35, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: since, IsolationRequired: true})

	// Same score for all three: stages 3 and 4 decide.
	for _, p := range []*Patient{adult, elderly, isolated} {
		if _, err := m.SetScore(p.ID, 60, false); err != nil {
			t.Fatal(err)
		}
	}

	snap := m.Snapshot()
	if snap[0].ID != elderly.ID {
		t.Fatalf("expected elderly first on age stage, got %s", snap[0].Name)
	}
	if snap[1].ID != isolated.ID {
		t.Fatalf("expected isolation before plain adult, got %s", snap[1].Name)
	}
	if snap[2].ID != adult.ID {
		t.Fatalf("expected adult last, got %s", snap[2].Name)
	}
}

func TestRemove_RoundTrip(t *testing.T) {
	m := newTestManager()
	since := time.Now().Add(-time.Hour)
	a := mustEnqueue(t, m, &Patient{Name: "A", Age: 40, Risk: scoring.RiskRed, RequestedSector: "UTI Geral", WaitingSince: since})
	b := mustEnqueue(t, m, &Patient{Name: "B", Age: 40, Risk: scoring.RiskGreen, RequestedSector: "UTI Geral", WaitingSince: since})

	before := m.Snapshot()

	tmp := mustEnqueue(t, m, &Patient{Name: "tmp", Age: 40, Risk: scoring.RiskOrange, RequestedSector: "UTI Geral"})
	if _, err := m.Remove(tmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after := m.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("expected size %d after round trip, got %d", len(before), len(after))
	}
	for i := range before {
		if after[i].ID != before[i].ID {
			t.Fatalf("ordering changed after enqueue+remove round trip at %d", i)
		}
	}
	_ = a
	_ = b
}

func TestRemove_NotFound(t *testing.T) {
	m := newTestManager()
	if _, err := m.Remove(uuid.New()); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestTransition_Lifecycle(t *testing.T) {
	m := newTestManager()
	p := mustEnqueue(t, m, &Patient{Name: "Ana", Age: 40, Risk: scoring.RiskRed, RequestedSector: "UTI Geral"})

	if _, err := m.Transition(p.ID, StatusAdmitted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("waiting → admitted must be rejected, got %v", err)
	}
	if _, err := m.Transition(p.ID, StatusReserved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	admitted, err := m.Transition(p.ID, StatusAdmitted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admitted.Status != StatusAdmitted {
		t.Errorf("expected admitted, got %s", admitted.Status)
	}
	// Terminal state removes the entry; no transition back.
	if _, err := m.Transition(p.ID, StatusCancelled); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound after terminal state, got %v", err)
	}
	if m.Len() != 0 {
		t.Error("admitted patient must leave the queue")
	}
}

func TestTick_RefreshesWaitAndScore(t *testing.T) {
	m := newTestManager()
	base := time.Now()
	p := mustEnqueue(t, m, &Patient{Name: "Ana", Age: 40, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: base})

	initial := p.PriorityScore
	changed, err := m.Tick(base.Add(5 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed patient, got %d", len(changed))
	}
	got, _ := m.Get(p.ID)
	if got.PriorityScore <= initial {
		t.Errorf("expected escalated score, %d <= %d", got.PriorityScore, initial)
	}
	if got.WaitTimeHours < 4.9 {
		t.Errorf("expected wait_time_hours ≈ 5, got %f", got.WaitTimeHours)
	}
}

func TestTick_SkipsPinnedScores(t *testing.T) {
	m := newTestManager()
	base := time.Now()
	p := mustEnqueue(t, m, &Patient{Name: "Ana", Age: 40, Risk: scoring.RiskYellow,
		RequestedSector: "Enfermaria Clínica", WaitingSince: base})

	if _, err := m.SetScore(p.ID, 33, true); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Tick(base.Add(10 * time.Hour)); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Get(p.ID)
	if got.PriorityScore != 33 {
		t.Errorf("pinned score must survive ticks, got %d", got.PriorityScore)
	}
	if got.WaitTimeHours < 9.9 {
		t.Errorf("wait time must still refresh for pinned entries, got %f", got.WaitTimeHours)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	m := newTestManager()
	p := mustEnqueue(t, m, &Patient{Name: "Ana", Age: 40, Risk: scoring.RiskRed, RequestedSector: "UTI Geral"})

	snap := m.Snapshot()
	snap[0].PriorityScore = 0
	got, _ := m.Get(p.ID)
	if got.PriorityScore == 0 {
		t.Error("mutating a snapshot must not affect the queue")
	}
}

func TestLoad_RestoresSequence(t *testing.T) {
	m := newTestManager()
	m.Load(&Patient{ID: uuid.New(), Name: "old", Age: 50, Risk: scoring.RiskGreen,
		RequestedSector: "Enfermaria Clínica", Status: StatusWaiting, ArrivalSeq: 41,
		WaitingSince: time.Now().Add(-time.Hour)})

	p := mustEnqueue(t, m, &Patient{Name: "new", Age: 30, Risk: scoring.RiskGreen, RequestedSector: "Enfermaria Clínica"})
	if p.ArrivalSeq <= 41 {
		t.Errorf("new arrivals must sequence after recovered entries, got %d", p.ArrivalSeq)
	}
}
