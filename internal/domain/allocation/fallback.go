package allocation

import (
	"fmt"
	"strings"

	"github.com/regula/regula/internal/domain/scoring"
)

// FallbackPolicy maps a requested sector to ordered alternatives that
// may be tried when the requested sector is full. Fallback applies only
// to patients at or above MinRisk.
type FallbackPolicy struct {
	Chains  map[string][]string
	MinRisk scoring.RiskLevel
}

// DefaultFallbackPolicy restricts fallback to red-risk patients.
func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{Chains: map[string][]string{}, MinRisk: scoring.RiskRed}
}

// ParseChains parses the configured chain string. Format:
//
//	"UTI Cardiológica:UTI Geral,UTI Coronariana;Enfermaria Cirúrgica:Enfermaria Clínica"
//
// Semicolons separate chains, a colon separates the requested sector
// from its comma-separated ordered alternatives.
func ParseChains(raw string) (map[string][]string, error) {
	chains := map[string][]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return chains, nil
	}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed fallback chain %q", entry)
		}
		from := strings.TrimSpace(parts[0])
		if from == "" {
			return nil, fmt.Errorf("malformed fallback chain %q", entry)
		}
		var targets []string
		for _, t := range strings.Split(parts[1], ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				targets = append(targets, t)
			}
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("fallback chain %q has no targets", entry)
		}
		chains[from] = targets
	}
	return chains, nil
}

// CandidatesFor returns the ordered sectors to try for a patient: the
// requested sector always first, alternatives only when the patient's
// risk qualifies.
func (p FallbackPolicy) CandidatesFor(requested string, risk scoring.RiskLevel) []string {
	candidates := []string{requested}
	if !risk.AtLeast(p.MinRisk) {
		return candidates
	}
	for _, alt := range p.Chains[requested] {
		if alt != requested {
			candidates = append(candidates, alt)
		}
	}
	return candidates
}
