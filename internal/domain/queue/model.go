package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/regula/regula/internal/domain/scoring"
)

// Status is the admission lifecycle state of a queued patient.
// Transitions only move forward (waiting → reserved → admitted) or
// terminate in cancelled from a non-terminal state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusReserved  Status = "reserved"
	StatusAdmitted  Status = "admitted"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status removes the patient from the queue.
func (s Status) Terminal() bool {
	return s == StatusAdmitted || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusReserved || next == StatusCancelled
	case StatusReserved:
		return next == StatusAdmitted || next == StatusCancelled
	default:
		return false
	}
}

// Patient is a queue entry. Maps to the admission_queue table.
type Patient struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	Name              string            `db:"name" json:"name"`
	Age               int               `db:"age" json:"age"`
	Gender            string            `db:"gender" json:"gender"`
	Diagnosis         string            `db:"diagnosis" json:"diagnosis"`
	Comorbidities     []string          `db:"comorbidities" json:"comorbidities,omitempty"`
	RequestedSector   string            `db:"requested_sector" json:"requested_sector"`
	Risk              scoring.RiskLevel `db:"risk" json:"risk"`
	PriorityScore     int               `db:"priority_score" json:"priority_score"`
	ScorePinned       bool              `db:"score_pinned" json:"score_pinned"`
	IsolationRequired bool              `db:"isolation_required" json:"isolation_required"`
	OriginFacility    string            `db:"origin_facility" json:"origin_facility,omitempty"`
	Status            Status            `db:"status" json:"status"`
	ArrivalSeq        uint64            `db:"arrival_seq" json:"arrival_seq"`
	WaitingSince      time.Time         `db:"waiting_since" json:"waiting_since"`
	WaitTimeHours     float64           `db:"-" json:"wait_time_hours"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// waited returns the time spent queued as of now.
func (p *Patient) waited(now time.Time) time.Duration {
	d := now.Sub(p.WaitingSince)
	if d < 0 {
		return 0
	}
	return d
}

// scoringInput builds the Score Engine input for the patient as of now.
func (p *Patient) scoringInput(now time.Time) scoring.Input {
	return scoring.Input{
		Risk:              p.Risk,
		Waited:            p.waited(now),
		Age:               p.Age,
		IsolationRequired: p.IsolationRequired,
	}
}
