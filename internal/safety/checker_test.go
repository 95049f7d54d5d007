package safety

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/internal/action"
	"screenpilot/pkg/geometry"
)

func TestRuleChecker(t *testing.T) {
	rules := DefaultRules()
	rules.ProtectedRegions = []geometry.Rect{geometry.NewRect(0, 0, 100, 30)}
	c, err := NewRuleChecker(rules)
	require.NoError(t, err)

	tests := []struct {
		name string
		d    action.Descriptor
		want RiskLevel
	}{
		{"deny-list is case-insensitive", action.Type("Shutdown now"), RiskCritical},
		{"deny-list inside a word", action.Type("undelete"), RiskCritical},
		{"windows recursive delete", action.Type("DEL /S c:\\temp"), RiskCritical},
		{"registry pattern", action.Type("reg  delete HKLM\\Software"), RiskCritical},
		{"taskkill pattern", action.Type("taskkill /f /im explorer.exe"), RiskCritical},
		{"admin keyword", action.Type("Administrator"), RiskHigh},
		{"dangerous combo", action.Key("ctrl+alt+del"), RiskHigh},
		{"dangerous combo spelled out", action.Key("Ctrl+Alt+Delete"), RiskHigh},
		{"delete key is not a command", action.Key("Delete"), RiskLow},
		{"shift delete is not a command", action.Key("shift+delete"), RiskLow},
		{"task manager combo", action.Key("Ctrl+Shift+Esc"), RiskHigh},
		{"harmless combo", action.Key("ctrl+c"), RiskLow},
		{"plain text", action.Type("good morning"), RiskSafe},
		{"click in protected region", action.Click(geometry.PointInt{X: 50, Y: 10}, action.ButtonLeft), RiskMedium},
		{"click elsewhere", action.Click(geometry.PointInt{X: 500, Y: 500}, action.ButtonLeft), RiskLow},
		{"scroll in protected region", action.Scroll(geometry.PointInt{X: 1, Y: 1}, action.ScrollDown, 1), RiskMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.d)
			assert.Equal(t, tt.want, got.Risk, got.Reason)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestMaxChecker(t *testing.T) {
	fixed := func(r RiskLevel, reason string) Checker {
		return CheckerFunc(func(action.Descriptor) Assessment { return Assessment{Risk: r, Reason: reason} })
	}

	assert.Equal(t, RiskSafe, MaxChecker(nil).Classify(action.Type("x")).Risk)

	m := MaxChecker{fixed(RiskLow, "a"), fixed(RiskHigh, "b"), fixed(RiskHigh, "c"), fixed(RiskMedium, "d")}
	got := m.Classify(action.Type("x"))
	assert.Equal(t, RiskHigh, got.Risk)
	assert.Equal(t, "b", got.Reason)
}

func TestParseRiskLevel(t *testing.T) {
	for r := RiskSafe; r <= RiskCritical; r++ {
		parsed, err := ParseRiskLevel(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	got, err := ParseRiskLevel(" critical ")
	require.NoError(t, err)
	assert.Equal(t, RiskCritical, got)
	_, err = ParseRiskLevel("extreme")
	assert.Error(t, err)
	assert.True(t, RiskSafe < RiskLow && RiskLow < RiskMedium && RiskMedium < RiskHigh && RiskHigh < RiskCritical)
}

func TestSafetyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("stopped gatekeeper denies every action", prop.ForAll(
		func(text string, x, y int) bool {
			g, err := New(DefaultConfig())
			if err != nil {
				return false
			}
			g.EmergencyStop()
			for _, d := range []action.Descriptor{
				action.Type(text),
				action.Click(geometry.PointInt{X: x, Y: y}, action.ButtonLeft),
				action.Key(text),
			} {
				if g.ValidateAction(d).Allowed {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.IntRange(0, 4000),
		gen.IntRange(0, 4000),
	))

	properties.Property("deny-list matches regardless of case and context", prop.ForAll(
		func(prefix, suffix string, upper bool) bool {
			word := "shutdown"
			if upper {
				word = "SHUTDOWN"
			}
			c, err := NewRuleChecker(DefaultRules())
			if err != nil {
				return false
			}
			return c.Classify(action.Type(prefix+word+suffix)).Risk == RiskCritical
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.Property("risk preview never consumes budget", prop.ForAll(
		func(n int) bool {
			cfg := DefaultConfig()
			cfg.RateLimitPerSecond = 1
			g, err := New(cfg, WithClock(newFixedClock()))
			if err != nil {
				return false
			}
			for i := 0; i < n; i++ {
				g.RiskLevel(action.Key("tab"))
			}
			return g.ValidateAction(action.Key("tab")).Allowed
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
