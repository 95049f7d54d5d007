package safety

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RiskLevel is the ordered severity of a proposed action.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = [...]string{"Safe", "Low", "Medium", "High", "Critical"}

func (r RiskLevel) String() string {
	if r >= RiskSafe && r <= RiskCritical {
		return riskNames[r]
	}
	return fmt.Sprintf("RiskLevel(%d)", int(r))
}

func (r RiskLevel) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *RiskLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRiskLevel is the case-insensitive inverse of String.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for i, name := range riskNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return RiskLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown risk level %q", s)
}

// Decision is the outcome of one ValidateAction call. Decisions are values;
// the gatekeeper never changes one after returning it.
type Decision struct {
	ActionID             uuid.UUID `json:"action_id" yaml:"action_id"`
	Allowed              bool      `json:"allowed" yaml:"allowed"`
	Risk                 RiskLevel `json:"risk" yaml:"risk"`
	RequiresConfirmation bool      `json:"requires_confirmation" yaml:"requires_confirmation"`
	RateLimited          bool      `json:"rate_limited" yaml:"rate_limited"`
	Reason               string    `json:"reason" yaml:"reason"`

	issuer *Gatekeeper
	seq    uint64
}

// IssuedBy reports whether g produced this decision. A Decision built by
// hand, or by another gatekeeper, is never vouched for.
func (d Decision) IssuedBy(g *Gatekeeper) bool {
	return g != nil && d.issuer == g
}
