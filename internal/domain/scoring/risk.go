package scoring

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel is a Manchester-style triage classification.
type RiskLevel string

const (
	RiskRed    RiskLevel = "red"
	RiskOrange RiskLevel = "orange"
	RiskYellow RiskLevel = "yellow"
	RiskGreen  RiskLevel = "green"
	RiskBlue   RiskLevel = "blue"
	RiskWhite  RiskLevel = "white"
)

// baseScores holds the primary score weight per risk level.
var baseScores = map[RiskLevel]int{
	RiskRed:    80,
	RiskOrange: 60,
	RiskYellow: 45,
	RiskGreen:  30,
	RiskBlue:   20,
	RiskWhite:  10,
}

// targetWaits holds the maximum target wait per risk level. Red is
// "immediate": any wait at all is over target.
var targetWaits = map[RiskLevel]time.Duration{
	RiskRed:    0,
	RiskOrange: 10 * time.Minute,
	RiskYellow: time.Hour,
	RiskGreen:  2 * time.Hour,
	RiskBlue:   4 * time.Hour,
	RiskWhite:  24 * time.Hour,
}

// ParseRiskLevel parses a string into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := baseScores[r]; !ok {
		return "", fmt.Errorf("%w: unknown risk level %q", ErrInvalidInput, s)
	}
	return r, nil
}

// Valid reports whether the risk level is a known classification.
func (r RiskLevel) Valid() bool {
	_, ok := baseScores[r]
	return ok
}

// TargetWait returns the maximum target wait for the risk level.
func (r RiskLevel) TargetWait() time.Duration {
	return targetWaits[r]
}

// AtLeast reports whether r is of equal or higher urgency than other.
// Red is the highest urgency.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return baseScores[r] >= baseScores[other]
}
