package scoring

import "fmt"

// AgePolicyMode selects how age-based legal priority is ranked when
// breaking score ties.
type AgePolicyMode string

const (
	// AgePolicyExtremes ranks both ends of the age range (children and
	// the elderly) ahead of middle ages.
	AgePolicyExtremes AgePolicyMode = "extremes"
	// AgePolicyYoungest ranks younger patients first.
	AgePolicyYoungest AgePolicyMode = "youngest"
	// AgePolicyOldest ranks older patients first.
	AgePolicyOldest AgePolicyMode = "oldest"
)

const (
	DefaultChildLimit   = 12
	DefaultElderlyLimit = 60
)

// AgePolicy is the configured age-based legal priority rule. The exact
// curve is a deployment decision, so it is data, not code.
type AgePolicy struct {
	Mode         AgePolicyMode
	ChildLimit   int
	ElderlyLimit int
}

// DefaultAgePolicy is the U-shaped policy: both extremes of age are
// legally prioritized.
func DefaultAgePolicy() AgePolicy {
	return AgePolicy{
		Mode:         AgePolicyExtremes,
		ChildLimit:   DefaultChildLimit,
		ElderlyLimit: DefaultElderlyLimit,
	}
}

// ParseAgePolicyMode parses a configuration string into an AgePolicyMode.
func ParseAgePolicyMode(s string) (AgePolicyMode, error) {
	switch AgePolicyMode(s) {
	case AgePolicyExtremes, AgePolicyYoungest, AgePolicyOldest:
		return AgePolicyMode(s), nil
	case "":
		return AgePolicyExtremes, nil
	default:
		return "", fmt.Errorf("%w: unknown age policy %q", ErrInvalidInput, s)
	}
}

// LegalPriority reports whether a patient of the given age carries the
// legal priority bonus.
func (p AgePolicy) LegalPriority(age int) bool {
	return age <= p.ChildLimit || age >= p.ElderlyLimit
}

// Rank maps an age to an ordering key; lower ranks ahead. Used as a
// tie-break stage by the queue comparator.
func (p AgePolicy) Rank(age int) int {
	switch p.Mode {
	case AgePolicyYoungest:
		return age
	case AgePolicyOldest:
		return -age
	default:
		if p.LegalPriority(age) {
			return 0
		}
		return 1
	}
}
