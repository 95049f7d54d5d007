package cli

import (
	"context"
	"errors"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screenpilot/internal/app"
	"screenpilot/internal/detector"
	"screenpilot/internal/observability"
	"screenpilot/internal/perception"
)

// frameReport is one line of watch output.
type frameReport struct {
	Time     time.Time            `json:"time"`
	Elements []detector.UIElement `json:"elements"`
}

func newWatchCmd(ro *rootOptions) *cobra.Command {
	var (
		source   string
		interval time.Duration
		duration time.Duration
		reload   time.Duration
		useOCR   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously detect elements on a refreshed screenshot",
		Long: `Runs the perception loop against perception.source and prints one JSON line
per delivered detection. With --config, vision settings are reloaded when the
file changes. Stops on SIGINT/SIGTERM or after --duration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ro.cfg
			if source == "" {
				source = cfg.Perception.Source
			}
			if source == "" {
				return errors.New("no capture source: set perception.source or --source")
			}
			if interval <= 0 {
				interval = cfg.Perception.Interval
			}
			logger := observability.GetLogger()

			s, cleanup, err := ro.newSession(useOCR)
			if err != nil {
				return err
			}
			defer cleanup()

			loop, err := perception.NewLoop(
				perception.NewFileProvider(source, cfg.Perception.Scale),
				s.Detector(),
				interval,
				perception.WithLogger(logger),
				perception.WithMetrics(s.Metrics()),
			)
			if err != nil {
				return err
			}
			s.AttachLoop(loop)

			enc := json.NewEncoder(cmd.OutOrStdout())
			s.On(app.EventElementsDetected, func(data interface{}) {
				elements, _ := data.([]detector.UIElement)
				if elements == nil {
					elements = []detector.UIElement{}
				}
				if err := enc.Encode(frameReport{Time: time.Now(), Elements: elements}); err != nil {
					logger.Warn("Writing frame report failed", zap.Error(err))
				}
			})

			if ro.cfgFile != "" {
				w, err := s.WatchConfig(ro.cfgFile, reload)
				if err != nil {
					return err
				}
				defer w.Stop()
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			logger.Info("Watching", zap.String("source", source), zap.Duration("interval", interval))
			err = loop.Run(ctx)
			st := loop.Stats()
			logger.Info("Watch stopped",
				zap.Uint64("captured", st.Captured),
				zap.Uint64("failed", st.Failed),
				zap.Uint64("detected", st.Detected),
				zap.Uint64("discarded", st.Discarded),
				zap.Uint64("replaced", st.Replaced),
			)
			return err
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "screenshot file to re-read (default perception.source)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "capture cadence (default perception.interval)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long; 0 runs until interrupted")
	cmd.Flags().DurationVar(&reload, "reload-interval", time.Second, "how often to poll the config file for changes")
	cmd.Flags().BoolVar(&useOCR, "ocr", false, "refine classification with OCR")
	return cmd
}
