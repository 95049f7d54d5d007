package executor

import (
	"context"

	"go.uber.org/zap"

	"screenpilot/internal/action"
)

// Platform injects input into the operating system. Implementations report
// failures as errors and must not retry.
type Platform interface {
	Execute(ctx context.Context, d action.Descriptor) error
}

// PlatformFunc adapts a function to the Platform interface.
type PlatformFunc func(ctx context.Context, d action.Descriptor) error

func (f PlatformFunc) Execute(ctx context.Context, d action.Descriptor) error { return f(ctx, d) }

// SimulatedPlatform performs no input and logs what it would have done. It
// is the default where no native injector is available.
type SimulatedPlatform struct {
	logger *zap.Logger
}

// NewSimulatedPlatform returns a platform that logs to l.
func NewSimulatedPlatform(l *zap.Logger) *SimulatedPlatform {
	if l == nil {
		l = zap.NewNop()
	}
	return &SimulatedPlatform{logger: l.Named("platform")}
}

func (p *SimulatedPlatform) Execute(ctx context.Context, d action.Descriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("Simulated input",
		zap.Stringer("kind", d.Kind),
		zap.Stringer("action", d),
		zap.String("id", d.ID.String()),
	)
	return nil
}
