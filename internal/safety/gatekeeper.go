package safety

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"screenpilot/internal/action"
	"screenpilot/internal/metrics"
)

// ErrInvalidConfig wraps every gatekeeper configuration error.
var ErrInvalidConfig = errors.New("safety: invalid configuration")

// maxOutstanding bounds how many allowed-but-unredeemed decisions are
// remembered. Older ones can no longer be redeemed.
const maxOutstanding = 1024

// Config is the immutable gatekeeper configuration for one session.
type Config struct {
	RateLimitPerMinute int
	RateLimitPerSecond int
	// Actions at or above this risk are denied.
	AllowBelow RiskLevel
	Rules      Rules
}

// DefaultConfig returns 100 actions per minute, 10 per second, Critical
// actions denied and the default rules.
func DefaultConfig() Config {
	return Config{
		RateLimitPerMinute: 100,
		RateLimitPerSecond: 10,
		AllowBelow:         RiskCritical,
		Rules:              DefaultRules(),
	}
}

// Validate checks the numeric settings. Rules are checked when compiled.
func (c Config) Validate() error {
	if c.RateLimitPerMinute <= 0 || c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("%w: rate caps must be positive (per minute %d, per second %d)",
			ErrInvalidConfig, c.RateLimitPerMinute, c.RateLimitPerSecond)
	}
	if c.RateLimitPerSecond > c.RateLimitPerMinute {
		return fmt.Errorf("%w: per-second cap %d exceeds per-minute cap %d",
			ErrInvalidConfig, c.RateLimitPerSecond, c.RateLimitPerMinute)
	}
	if c.AllowBelow <= RiskSafe || c.AllowBelow > RiskCritical {
		return fmt.Errorf("%w: allow threshold %s must be between Low and Critical", ErrInvalidConfig, c.AllowBelow)
	}
	return nil
}

// State is the gatekeeper's mode.
type State int

const (
	StateArmed State = iota
	StateEmergencyStopped
)

func (s State) String() string {
	if s == StateEmergencyStopped {
		return "EmergencyStopped"
	}
	return "Armed"
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithChecker replaces the rule checker built from Config.Rules.
func WithChecker(c Checker) Option {
	return func(g *Gatekeeper) { g.checker = c }
}

// WithClock sets the clock used by the rate limiter.
func WithClock(c Clock) Option {
	return func(g *Gatekeeper) { g.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gatekeeper) { g.logger = l.Named("safety") }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(g *Gatekeeper) { g.metrics = r }
}

// Gatekeeper is the single authority deciding whether actions may run. It
// is safe for concurrent use.
type Gatekeeper struct {
	// mu serializes validation and stop transitions so two callers never
	// share a unit of rate budget and a stop is seen by the next check.
	mu      sync.Mutex
	stopped atomic.Bool
	seq     uint64

	outstanding map[uint64]uuid.UUID
	order       []uint64

	checker    Checker
	limiter    *RateLimiter
	allowBelow RiskLevel
	clock      Clock

	listenerMu sync.RWMutex
	listeners  []func(State)

	logger  *zap.Logger
	metrics *metrics.Recorder
}

// New builds a gatekeeper in the Armed state. Configuration problems are
// reported here rather than on first use.
func New(cfg Config, opts ...Option) (*Gatekeeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Gatekeeper{
		outstanding: make(map[uint64]uuid.UUID),
		allowBelow:  cfg.AllowBelow,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.checker == nil {
		rc, err := NewRuleChecker(cfg.Rules)
		if err != nil {
			return nil, err
		}
		g.checker = rc
	}
	limiter, err := NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitPerSecond, g.clock)
	if err != nil {
		return nil, err
	}
	g.limiter = limiter
	return g, nil
}

// ValidateAction runs the full check for d and returns a fresh decision.
func (g *Gatekeeper) ValidateAction(d action.Descriptor) Decision {
	g.mu.Lock()
	dec := g.validate(d)
	g.mu.Unlock()

	g.metrics.RecordDecision(context.Background(), d.Kind.String(), dec.Risk.String(), dec.Allowed, dec.RateLimited)
	if dec.Allowed {
		g.logger.Debug("Action allowed",
			zap.Stringer("action", d),
			zap.Stringer("risk", dec.Risk),
			zap.Bool("requires_confirmation", dec.RequiresConfirmation),
		)
	} else {
		g.logger.Warn("Action denied",
			zap.Stringer("action", d),
			zap.Stringer("risk", dec.Risk),
			zap.Bool("rate_limited", dec.RateLimited),
			zap.String("reason", dec.Reason),
		)
	}
	return dec
}

// validate holds mu.
func (g *Gatekeeper) validate(d action.Descriptor) Decision {
	g.seq++
	dec := Decision{ActionID: d.ID, issuer: g, seq: g.seq}

	if g.stopped.Load() {
		dec.Risk = g.checker.Classify(d).Risk
		dec.Reason = "emergency stop active"
		return dec
	}
	if err := d.Validate(); err != nil {
		dec.Risk = RiskCritical
		dec.Reason = err.Error()
		return dec
	}

	a := g.checker.Classify(d)
	dec.Risk = a.Risk
	dec.RequiresConfirmation = a.Risk == RiskHigh

	dec.RateLimited = !g.limiter.Allow(d.Kind.String())
	dec.Allowed = a.Risk < g.allowBelow && !dec.RateLimited

	switch {
	case dec.RateLimited:
		dec.Reason = fmt.Sprintf("rate limit exceeded for %s actions", d.Kind)
	case !dec.Allowed:
		dec.Reason = fmt.Sprintf("%s (risk %s is at or above %s)", a.Reason, a.Risk, g.allowBelow)
	default:
		dec.Reason = a.Reason
	}

	if dec.Allowed {
		g.remember(dec)
	}
	return dec
}

// remember tracks an allowed decision until it is redeemed. Caller holds mu.
func (g *Gatekeeper) remember(dec Decision) {
	g.outstanding[dec.seq] = dec.ActionID
	g.order = append(g.order, dec.seq)
	for len(g.order) > maxOutstanding {
		delete(g.outstanding, g.order[0])
		g.order = g.order[1:]
	}
}

// Redeem consumes an allowed decision issued by g. It returns true exactly
// once per decision; later calls, foreign decisions and decisions too old
// to be remembered return false.
func (g *Gatekeeper) Redeem(dec Decision) bool {
	if !dec.IssuedBy(g) || !dec.Allowed {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.outstanding[dec.seq]
	if !ok || id != dec.ActionID {
		return false
	}
	delete(g.outstanding, dec.seq)
	return true
}

// Outstanding reports whether Redeem would accept dec, without consuming it.
func (g *Gatekeeper) Outstanding(dec Decision) bool {
	if !dec.IssuedBy(g) || !dec.Allowed {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.outstanding[dec.seq]
	return ok && id == dec.ActionID
}

// RiskLevel classifies d without touching any state. Use it to preview risk.
func (g *Gatekeeper) RiskLevel(d action.Descriptor) RiskLevel {
	return g.checker.Classify(d).Risk
}

// EmergencyStop blocks every action until ClearEmergencyStop. Calling it
// while already stopped has no effect.
func (g *Gatekeeper) EmergencyStop() {
	g.transition(true)
}

// ClearEmergencyStop re-arms the gatekeeper. Calling it while armed has no
// effect.
func (g *Gatekeeper) ClearEmergencyStop() {
	g.transition(false)
}

func (g *Gatekeeper) transition(stop bool) {
	g.mu.Lock()
	changed := g.stopped.CompareAndSwap(!stop, stop)
	g.mu.Unlock()
	if !changed {
		return
	}

	g.metrics.RecordEmergencyStop(context.Background(), stop)
	state := StateArmed
	if stop {
		state = StateEmergencyStopped
		g.logger.Warn("Emergency stop activated")
	} else {
		g.logger.Info("Emergency stop cleared")
	}
	g.notify(state)
}

// Stopped reports whether the emergency stop is active.
func (g *Gatekeeper) Stopped() bool {
	return g.stopped.Load()
}

// State returns the current mode.
func (g *Gatekeeper) State() State {
	if g.stopped.Load() {
		return StateEmergencyStopped
	}
	return StateArmed
}

// OnStateChange registers fn to be called after every stop transition.
func (g *Gatekeeper) OnStateChange(fn func(State)) {
	g.listenerMu.Lock()
	defer g.listenerMu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *Gatekeeper) notify(s State) {
	g.listenerMu.RLock()
	listeners := slices.Clone(g.listeners)
	g.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// RateCount returns how many actions of kind are in the current minute
// window.
func (g *Gatekeeper) RateCount(kind action.Kind) int {
	return g.limiter.Count(kind.String())
}
