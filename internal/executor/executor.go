// Package executor runs gatekeeper-approved actions on the platform and keeps
// an audit trail of what was done.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"screenpilot/internal/action"
	"screenpilot/internal/metrics"
	"screenpilot/internal/safety"
)

var (
	// ErrNotApproved is returned for actions without a matching allowed
	// decision from this executor's gatekeeper.
	ErrNotApproved = errors.New("executor: action not approved")
	// ErrAlreadyExecuted is returned when a decision is presented twice.
	ErrAlreadyExecuted = errors.New("executor: decision already used")
	// ErrEmergencyStop is returned when the gatekeeper was stopped between
	// approval and execution.
	ErrEmergencyStop = errors.New("executor: emergency stop active")
	// ErrPlatform wraps failures reported by the platform.
	ErrPlatform = errors.New("executor: platform error")
)

// DefaultHistorySize is the number of records kept when none is configured.
const DefaultHistorySize = 256

// Option configures an Executor.
type Option func(*Executor)

// WithActionDelay sets the minimum spacing between platform calls. Zero
// disables pacing.
func WithActionDelay(d time.Duration) Option {
	return func(e *Executor) { e.delay = d }
}

// WithHistorySize sets the history capacity.
func WithHistorySize(n int) Option {
	return func(e *Executor) { e.historySize = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l.Named("executor") }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Executor) { e.metrics = r }
}

// Executor forwards approved actions to a Platform. It is safe for
// concurrent use.
type Executor struct {
	gk          *safety.Gatekeeper
	platform    Platform
	delay       time.Duration
	historySize int
	limiter     *rate.Limiter
	history     *history
	logger      *zap.Logger
	metrics     *metrics.Recorder
}

// New creates an executor bound to gk. Only decisions issued by gk are
// accepted.
func New(gk *safety.Gatekeeper, platform Platform, opts ...Option) (*Executor, error) {
	if gk == nil {
		return nil, errors.New("executor: nil gatekeeper")
	}
	if platform == nil {
		return nil, errors.New("executor: nil platform")
	}
	e := &Executor{
		gk:          gk,
		platform:    platform,
		historySize: DefaultHistorySize,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.historySize <= 0 {
		return nil, fmt.Errorf("executor: history size must be positive, got %d", e.historySize)
	}
	if e.delay < 0 {
		return nil, fmt.Errorf("executor: action delay must not be negative, got %s", e.delay)
	}

	limit := rate.Inf
	if e.delay > 0 {
		limit = rate.Every(e.delay)
	}
	e.limiter = rate.NewLimiter(limit, 1)
	e.history = newHistory(e.historySize)
	return e, nil
}

// Execute runs d if decision is an allowed, unused decision for d issued by
// this executor's gatekeeper, and the gatekeeper is not stopped.
func (e *Executor) Execute(ctx context.Context, d action.Descriptor, decision safety.Decision) error {
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", ErrNotApproved, decision.Reason)
	}
	if !decision.IssuedBy(e.gk) || decision.ActionID != d.ID {
		return fmt.Errorf("%w: decision does not belong to action %s", ErrNotApproved, d.ID)
	}
	if e.gk.Stopped() {
		return ErrEmergencyStop
	}
	if !e.gk.Outstanding(decision) {
		return fmt.Errorf("%w: action %s", ErrAlreadyExecuted, d.ID)
	}

	// The decision is only consumed once the action is about to run, so a
	// cancelled wait or a stop raised meanwhile leaves it usable.
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	if e.gk.Stopped() {
		return ErrEmergencyStop
	}
	if !e.gk.Redeem(decision) {
		return fmt.Errorf("%w: action %s", ErrAlreadyExecuted, d.ID)
	}

	rec := Record{ActionID: d.ID, Descriptor: d, Outcome: OutcomeSuccess}
	err := e.platform.Execute(ctx, d)
	rec.Timestamp = time.Now()
	if err != nil {
		rec.Outcome = OutcomePlatformError
		rec.Err = err.Error()
	}
	e.history.add(rec)
	e.metrics.RecordAction(ctx, d.Kind.String(), string(rec.Outcome))

	if err != nil {
		e.logger.Error("Platform failed to execute action",
			zap.Stringer("action", d),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrPlatform, err)
	}
	e.logger.Debug("Action executed", zap.Stringer("action", d))
	return nil
}

// Submit validates d with the gatekeeper and executes it when allowed. The
// decision is always returned; a denial yields ErrNotApproved.
func (e *Executor) Submit(ctx context.Context, d action.Descriptor) (safety.Decision, error) {
	decision := e.gk.ValidateAction(d)
	if !decision.Allowed {
		return decision, fmt.Errorf("%w: %s", ErrNotApproved, decision.Reason)
	}
	return decision, e.Execute(ctx, d, decision)
}

// History returns the recorded actions, oldest first.
func (e *Executor) History() []Record {
	return e.history.snapshot()
}

// HistoryLen returns the number of recorded actions.
func (e *Executor) HistoryLen() int {
	return e.history.size()
}

// ClearHistory drops every record.
func (e *Executor) ClearHistory() {
	e.history.reset()
}
