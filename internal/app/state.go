// Package app wires the detector, gatekeeper and executor into a session
// and publishes what happens in it as events.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"screenpilot/internal/action"
	"screenpilot/internal/config"
	"screenpilot/internal/detector"
	"screenpilot/internal/executor"
	"screenpilot/internal/image"
	"screenpilot/internal/metrics"
	"screenpilot/internal/perception"
	"screenpilot/internal/safety"
	"screenpilot/pkg/geometry"
)

// ErrUnknownElement is returned when an element ID is not in the current
// element list.
var ErrUnknownElement = errors.New("app: unknown element")

// EventType identifies different session events.
type EventType int

const (
	EventElementsDetected EventType = iota
	EventActionExecuted
	EventActionRejected
	EventEmergencyStop
	EventEmergencyCleared
	EventConfigReloaded
)

func (e EventType) String() string {
	switch e {
	case EventElementsDetected:
		return "elements_detected"
	case EventActionExecuted:
		return "action_executed"
	case EventActionRejected:
		return "action_rejected"
	case EventEmergencyStop:
		return "emergency_stop"
	case EventEmergencyCleared:
		return "emergency_cleared"
	case EventConfigReloaded:
		return "config_reloaded"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// EventListener is a callback for session events.
type EventListener func(data interface{})

// ActionEvent is the payload of EventActionExecuted and EventActionRejected.
type ActionEvent struct {
	Action   action.Descriptor
	Decision safety.Decision
	Err      error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger; components get named children.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics attaches a metrics recorder to every component.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Session) { s.metrics = r }
}

// WithPlatform sets the input platform. The default simulates input.
func WithPlatform(p executor.Platform) Option {
	return func(s *Session) { s.platform = p }
}

// WithLabeler installs a semantic labeler on the detector.
func WithLabeler(l detector.Labeler) Option {
	return func(s *Session) { s.labeler = l }
}

// WithSafetyOptions passes extra options to the gatekeeper.
func WithSafetyOptions(opts ...safety.Option) Option {
	return func(s *Session) { s.safetyOpts = append(s.safetyOpts, opts...) }
}

// Session holds the components of one running instance. There is exactly
// one Gatekeeper per session and every action goes through it.
type Session struct {
	gatekeeper *safety.Gatekeeper
	executor   *executor.Executor
	detector   *detector.Detector

	logger     *zap.Logger
	metrics    *metrics.Recorder
	platform   executor.Platform
	labeler    detector.Labeler
	safetyOpts []safety.Option

	mu       sync.RWMutex
	elements []detector.UIElement
	grid     *geometry.Grid

	listenerMu sync.RWMutex
	listeners  map[EventType][]EventListener
}

// NewSession builds the session components from cfg.
func NewSession(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		logger:    zap.NewNop(),
		listeners: make(map[EventType][]EventListener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.platform == nil {
		s.platform = executor.NewSimulatedPlatform(s.logger)
	}

	gc, err := cfg.Safety.GatekeeperConfig()
	if err != nil {
		return nil, err
	}
	safetyOpts := append([]safety.Option{safety.WithLogger(s.logger), safety.WithMetrics(s.metrics)}, s.safetyOpts...)
	s.gatekeeper, err = safety.New(gc, safetyOpts...)
	if err != nil {
		return nil, err
	}
	s.gatekeeper.OnStateChange(func(st safety.State) {
		if st == safety.StateEmergencyStopped {
			s.Emit(EventEmergencyStop, st)
		} else {
			s.Emit(EventEmergencyCleared, st)
		}
	})

	s.executor, err = executor.New(s.gatekeeper, s.platform,
		executor.WithActionDelay(cfg.Input.ActionDelay),
		executor.WithHistorySize(cfg.Input.HistorySize),
		executor.WithLogger(s.logger),
		executor.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}

	detOpts := []detector.Option{detector.WithLogger(s.logger), detector.WithMetrics(s.metrics)}
	if s.labeler != nil {
		detOpts = append(detOpts, detector.WithLabeler(s.labeler))
	}
	s.detector, err = detector.New(cfg.Vision.DetectorParams(), detOpts...)
	if err != nil {
		return nil, err
	}

	s.grid, err = geometry.NewGrid(cfg.Vision.GridCellSize)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Gatekeeper() *safety.Gatekeeper { return s.gatekeeper }
func (s *Session) Executor() *executor.Executor   { return s.executor }
func (s *Session) Detector() *detector.Detector   { return s.detector }

// Metrics returns the recorder shared by the components, possibly nil.
func (s *Session) Metrics() *metrics.Recorder { return s.metrics }

// On registers a listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.listenerMu.RLock()
	listeners := slices.Clone(s.listeners[event])
	s.listenerMu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Detect runs the detector on buf and makes the result the current element
// list.
func (s *Session) Detect(ctx context.Context, buf *image.PixelBuffer) ([]detector.UIElement, error) {
	elements, err := s.detector.Detect(ctx, buf)
	if err != nil {
		return nil, err
	}
	s.SetElements(elements)
	return elements, nil
}

// SetElements replaces the current element list and its hit-test index.
func (s *Session) SetElements(elements []detector.UIElement) {
	s.mu.Lock()
	s.elements = slices.Clone(elements)
	s.grid.Clear()
	for i, el := range s.elements {
		s.grid.Insert(i, el.Bounds)
	}
	s.mu.Unlock()

	s.Emit(EventElementsDetected, elements)
}

// Elements returns a copy of the current element list.
func (s *Session) Elements() []detector.UIElement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.elements)
}

// ElementsAt returns the elements containing pt, highest confidence first.
func (s *Session) ElementsAt(pt geometry.Point2D) []detector.UIElement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.grid.QueryPoint(pt)
	slices.Sort(ids)
	var out []detector.UIElement
	for _, id := range ids {
		if el := s.elements[id]; el.Bounds.Contains(pt) {
			out = append(out, el)
		}
	}
	return out
}

// Element looks up an element of the current list by ID.
func (s *Session) Element(id string) (detector.UIElement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, el := range s.elements {
		if el.ID == id {
			return el, true
		}
	}
	return detector.UIElement{}, false
}

// Submit validates and, when allowed, executes d.
func (s *Session) Submit(ctx context.Context, d action.Descriptor) (safety.Decision, error) {
	decision, err := s.executor.Submit(ctx, d)
	ev := ActionEvent{Action: d, Decision: decision, Err: err}
	if decision.Allowed && err == nil {
		s.Emit(EventActionExecuted, ev)
	} else {
		s.Emit(EventActionRejected, ev)
	}
	return decision, err
}

// ClickElement clicks the centre of the element with the given ID.
func (s *Session) ClickElement(ctx context.Context, id string, button action.MouseButton) (safety.Decision, error) {
	el, ok := s.Element(id)
	if !ok {
		return safety.Decision{}, fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	return s.Submit(ctx, action.Click(el.Bounds.Center().Round(), button))
}

// EmergencyStop stops all actions until ClearEmergencyStop.
func (s *Session) EmergencyStop() { s.gatekeeper.EmergencyStop() }

// ClearEmergencyStop re-arms the gatekeeper.
func (s *Session) ClearEmergencyStop() { s.gatekeeper.ClearEmergencyStop() }

// AttachLoop makes every result of loop the current element list.
func (s *Session) AttachLoop(loop *perception.Loop) {
	loop.Subscribe(func(r perception.Result) {
		s.SetElements(r.Elements)
	})
}

// ReloadVision re-reads the configuration file and applies its vision
// section. Other sections are fixed for the session and are ignored.
func (s *Session) ReloadVision(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := s.detector.SetParams(cfg.Vision.DetectorParams()); err != nil {
		return err
	}
	s.logger.Info("Vision configuration reloaded", zap.String("path", path))
	s.Emit(EventConfigReloaded, cfg.Vision)
	return nil
}

// WatchConfig starts a watcher that reloads the vision settings whenever the
// file at path changes. Stop the returned watcher when done.
func (s *Session) WatchConfig(path string, interval time.Duration) (*ConfigWatcher, error) {
	w, err := NewConfigWatcher(path, interval)
	if err != nil {
		return nil, err
	}
	w.OnChange(func() {
		if err := s.ReloadVision(path); err != nil {
			s.logger.Warn("Config reload failed; keeping previous settings", zap.Error(err))
		}
	})
	w.Start()
	return w, nil
}
