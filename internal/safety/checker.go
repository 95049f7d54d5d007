package safety

import (
	"fmt"
	"regexp"
	"strings"

	"screenpilot/internal/action"
	"screenpilot/pkg/geometry"
)

// Assessment is a checker's view of one action.
type Assessment struct {
	Risk   RiskLevel
	Reason string
}

// Checker classifies the risk of an action. Implementations must be pure:
// the same descriptor always yields the same assessment and nothing is
// recorded.
type Checker interface {
	Classify(d action.Descriptor) Assessment
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(d action.Descriptor) Assessment

func (f CheckerFunc) Classify(d action.Descriptor) Assessment { return f(d) }

// Rules configures a RuleChecker.
type Rules struct {
	// DenyList entries are matched as case-insensitive substrings of the
	// payload. A match is Critical.
	DenyList []string
	// Patterns are regular expressions for destructive commands. A match is
	// Critical.
	Patterns []string
	// Sensitive keywords in the payload are High.
	Sensitive []string
	// DangerousCombos are key combinations that are High, compared after
	// action.NormalizeCombo.
	DangerousCombos []string
	// ProtectedRegions raise pointer actions inside them to Medium.
	ProtectedRegions []geometry.Rect
	// KindRisk is the baseline for each kind when no rule matches. Kinds
	// missing from the map are Low.
	KindRisk map[action.Kind]RiskLevel
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		DenyList: []string{"shutdown", "format", "delete", "rm -rf", "del /s"},
		Patterns: []string{
			`(?i)\brm\s+-rf\s+/`,
			`(?i)\bformat\s+[c-z]:`,
			`(?i)\bshutdown\s+/[sir]`,
			`(?i)\breg\s+delete\b`,
			`(?i)\btaskkill\s+/f\b`,
		},
		Sensitive:       []string{"password", "admin"},
		DangerousCombos: []string{"ctrl+alt+delete", "ctrl+alt+del", "alt+f4", "win+r", "ctrl+shift+esc"},
		KindRisk: map[action.Kind]RiskLevel{
			action.KindType:   RiskSafe,
			action.KindKey:    RiskLow,
			action.KindClick:  RiskLow,
			action.KindScroll: RiskLow,
			action.KindMove:   RiskLow,
		},
	}
}

// RuleChecker is the built-in pattern based checker.
type RuleChecker struct {
	denyList  []string
	patterns  []*regexp.Regexp
	sensitive []string
	combos    map[string]struct{}
	protected []geometry.Rect
	kindRisk  map[action.Kind]RiskLevel
}

var _ Checker = (*RuleChecker)(nil)

// NewRuleChecker compiles r. Invalid regular expressions and blank entries
// are configuration errors.
func NewRuleChecker(r Rules) (*RuleChecker, error) {
	c := &RuleChecker{
		combos:    make(map[string]struct{}, len(r.DangerousCombos)),
		protected: append([]geometry.Rect(nil), r.ProtectedRegions...),
		kindRisk:  make(map[action.Kind]RiskLevel, len(r.KindRisk)),
	}
	for _, s := range r.DenyList {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return nil, fmt.Errorf("%w: blank deny-list entry", ErrInvalidConfig)
		}
		c.denyList = append(c.denyList, s)
	}
	for _, p := range r.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidConfig, p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	for _, s := range r.Sensitive {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return nil, fmt.Errorf("%w: blank sensitive keyword", ErrInvalidConfig)
		}
		c.sensitive = append(c.sensitive, s)
	}
	for _, combo := range r.DangerousCombos {
		c.combos[action.NormalizeCombo(combo)] = struct{}{}
	}
	for k, risk := range r.KindRisk {
		if risk < RiskSafe || risk > RiskCritical {
			return nil, fmt.Errorf("%w: risk %d for kind %s", ErrInvalidConfig, int(risk), k)
		}
		c.kindRisk[k] = risk
	}
	return c, nil
}

// Classify applies the rules from most to least severe and returns the first
// match.
func (c *RuleChecker) Classify(d action.Descriptor) Assessment {
	payload := d.Payload()
	lower := strings.ToLower(payload)

	if lower != "" {
		for _, s := range c.denyList {
			if strings.Contains(lower, s) {
				return Assessment{Risk: RiskCritical, Reason: fmt.Sprintf("payload contains forbidden pattern %q", s)}
			}
		}
		for _, re := range c.patterns {
			if re.MatchString(payload) {
				return Assessment{Risk: RiskCritical, Reason: fmt.Sprintf("payload matches destructive pattern %s", re)}
			}
		}
		for _, s := range c.sensitive {
			if strings.Contains(lower, s) {
				return Assessment{Risk: RiskHigh, Reason: fmt.Sprintf("payload mentions sensitive keyword %q", s)}
			}
		}
	}

	if d.Kind == action.KindKey {
		combo := action.NormalizeCombo(d.Key)
		if _, ok := c.combos[combo]; ok {
			return Assessment{Risk: RiskHigh, Reason: fmt.Sprintf("dangerous key combination %s", combo)}
		}
	}

	if d.Pointer() {
		pt := d.Target.ToFloat()
		for _, region := range c.protected {
			if region.Contains(pt) {
				return Assessment{Risk: RiskMedium, Reason: "target inside protected region"}
			}
		}
	}

	risk, ok := c.kindRisk[d.Kind]
	if !ok {
		risk = RiskLow
	}
	return Assessment{Risk: risk, Reason: fmt.Sprintf("%s action", d.Kind)}
}

// MaxChecker combines checkers; the most severe assessment wins and ties go
// to the earlier checker. With no checkers every action is Safe.
type MaxChecker []Checker

var _ Checker = MaxChecker(nil)

func (m MaxChecker) Classify(d action.Descriptor) Assessment {
	best := Assessment{Risk: RiskSafe, Reason: "no checker objected"}
	for i, c := range m {
		a := c.Classify(d)
		if i == 0 || a.Risk > best.Risk {
			best = a
		}
	}
	return best
}
