// Package cli implements the screenpilot command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screenpilot/internal/app"
	"screenpilot/internal/config"
	"screenpilot/internal/detector"
	"screenpilot/internal/metrics"
	"screenpilot/internal/observability"
	"screenpilot/internal/version"
)

// LabelerFactory opens a semantic labeler for the given language. The
// returned closer releases it.
type LabelerFactory func(language string, logger *zap.Logger) (detector.Labeler, io.Closer, error)

// Option configures the root command.
type Option func(*rootOptions)

// WithLabelerFactory enables --ocr and vision.ocr_enabled.
func WithLabelerFactory(f LabelerFactory) Option {
	return func(o *rootOptions) { o.newLabeler = f }
}

type rootOptions struct {
	cfgFile    string
	cfg        *config.Config
	newLabeler LabelerFactory
}

// NewRootCommand builds a fresh command tree. Nothing is shared between
// trees, so tests can build one per case.
func NewRootCommand(opts ...Option) *cobra.Command {
	ro := &rootOptions{}
	for _, opt := range opts {
		opt(ro)
	}

	cmd := &cobra.Command{
		Use:           "screenpilot",
		Short:         "Screen perception with safety-gated input actions.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(ro.cfgFile)
			if err != nil {
				// Errors still need somewhere to go.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "screenpilot"})
				return err
			}
			ro.cfg = cfg
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting screenpilot", zap.String("version", version.Version))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&ro.cfgFile, "config", "c", "", "config file (YAML)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(
		newDetectCmd(ro),
		newCheckCmd(ro),
		newRunCmd(ro),
		newWatchCmd(ro),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command line and logs a failure before returning it.
func Execute(ctx context.Context, args []string, opts ...Option) error {
	root := NewRootCommand(opts...)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// newSession builds a session from the loaded configuration. The closer
// releases the labeler, if one was opened.
func (ro *rootOptions) newSession(withOCR bool, extra ...app.Option) (*app.Session, func(), error) {
	logger := observability.GetLogger()
	rec, err := metrics.New(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}

	opts := []app.Option{app.WithLogger(logger), app.WithMetrics(rec)}
	cleanup := func() {}
	if withOCR || ro.cfg.Vision.OCREnabled {
		labeler, closer, err := ro.openLabeler(logger)
		if err != nil {
			logger.Warn("OCR unavailable; using heuristic classification only", zap.Error(err))
		} else {
			opts = append(opts, app.WithLabeler(labeler))
			cleanup = func() {
				if err := closer.Close(); err != nil {
					logger.Debug("Closing labeler failed", zap.Error(err))
				}
			}
		}
	}

	s, err := app.NewSession(ro.cfg, append(opts, extra...)...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

func (ro *rootOptions) openLabeler(logger *zap.Logger) (detector.Labeler, io.Closer, error) {
	if ro.newLabeler == nil {
		return nil, nil, detector.ErrLabelerUnavailable
	}
	return ro.newLabeler(ro.cfg.Vision.OCRLanguage, logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
