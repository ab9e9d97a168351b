// Package scoring computes composite admission priority scores from
// clinical risk, elapsed wait time and legal priority inputs. All
// functions are pure: callers decide when a computed score is applied.
package scoring

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned when a score cannot be computed from the
// given inputs.
var ErrInvalidInput = errors.New("invalid scoring input")

const (
	// MinScore and MaxScore bound every computed priority score.
	MinScore = 0
	MaxScore = 100

	// maxWaitPoints caps the escalation applied once a patient's wait
	// exceeds the target for their risk level.
	maxWaitPoints = 10

	// agePriorityPoints is the legal priority bonus for patients at the
	// extremes of age.
	agePriorityPoints = 5

	// isolationPoints is the bonus for patients requiring isolation.
	isolationPoints = 5
)

// Input carries everything Compute needs. Waited is the time elapsed
// since the patient entered the queue.
type Input struct {
	Risk              RiskLevel
	Waited            time.Duration
	Age               int
	IsolationRequired bool
}

// Compute derives a priority score in [MinScore, MaxScore] from the
// input. It is deterministic and has no side effects.
func Compute(in Input, policy AgePolicy) (int, error) {
	if !in.Risk.Valid() {
		return 0, fmt.Errorf("%w: unknown risk level %q", ErrInvalidInput, in.Risk)
	}
	if in.Waited < 0 {
		return 0, fmt.Errorf("%w: negative wait time %s", ErrInvalidInput, in.Waited)
	}
	if in.Age < 0 {
		return 0, fmt.Errorf("%w: negative age %d", ErrInvalidInput, in.Age)
	}

	score := baseScores[in.Risk]
	score += waitPoints(in.Waited, in.Risk.TargetWait())
	if policy.LegalPriority(in.Age) {
		score += agePriorityPoints
	}
	if in.IsolationRequired {
		score += isolationPoints
	}

	if score > MaxScore {
		score = MaxScore
	}
	if score < MinScore {
		score = MinScore
	}
	return score, nil
}

// waitPoints escalates the score once the wait exceeds the risk level's
// target. The escalation grows with how far past target the patient is
// and is capped at maxWaitPoints.
func waitPoints(waited, target time.Duration) int {
	if waited <= 0 {
		return 0
	}
	if target == 0 {
		// Immediate-care level: any wait is over target.
		return maxWaitPoints
	}
	if waited <= target {
		return 0
	}
	p := int(2 * float64(waited) / float64(target))
	if p > maxWaitPoints {
		p = maxWaitPoints
	}
	return p
}

// ValidScore reports whether s is inside the allowed score range.
func ValidScore(s int) bool {
	return s >= MinScore && s <= MaxScore
}
