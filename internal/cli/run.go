package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screenpilot/internal/image"
	"screenpilot/internal/observability"
)

// ErrScriptDenied is returned by run --strict when any step was not
// executed.
var ErrScriptDenied = errors.New("one or more actions were not executed")

func newRunCmd(ro *rootOptions) *cobra.Command {
	var (
		format  string
		strict  bool
		useOCR  bool
		history bool
	)

	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Submit a script of actions through the gatekeeper",
		Long: `Validates each scripted action with the gatekeeper and executes the allowed
ones on the simulated input platform. When the script names a screen image,
it is detected first and steps may target elements by ID.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			script, err := LoadScript(args[0])
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("run")

			s, cleanup, err := ro.newSession(useOCR)
			if err != nil {
				return err
			}
			defer cleanup()

			if script.Screen != "" {
				screen := script.Screen
				if !filepath.IsAbs(screen) {
					screen = filepath.Join(filepath.Dir(args[0]), screen)
				}
				buf, err := image.Load(screen)
				if err != nil {
					return err
				}
				elements, err := s.Detect(cmd.Context(), buf)
				if err != nil {
					return err
				}
				logger.Info("Screen detected", zap.String("screen", screen), zap.Int("elements", len(elements)))
			}

			var (
				views  []decisionView
				failed int
			)
			for i, st := range script.Actions {
				d, err := st.Descriptor(s)
				if err != nil {
					return fmt.Errorf("step %d: %w", i+1, err)
				}
				dec, err := s.Submit(cmd.Context(), d)
				views = append(views, newDecisionView(d.String(), dec, err))
				if err == nil {
					continue
				}
				failed++
				if ctxErr := cmd.Context().Err(); ctxErr != nil {
					return ctxErr
				}
				if script.StopOnDeny {
					logger.Warn("Stopping script at denied step", zap.Int("step", i+1))
					break
				}
			}

			out := cmd.OutOrStdout()
			if err := writeDecisions(out, format, views); err != nil {
				return err
			}
			if history && format == formatTable {
				fmt.Fprintln(out)
				if err := writeHistory(out, s.Executor().History()); err != nil {
					return err
				}
			}
			if strict && failed > 0 {
				return fmt.Errorf("%w (%d of %d)", ErrScriptDenied, failed, len(script.Actions))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero if any action was not executed")
	cmd.Flags().BoolVar(&useOCR, "ocr", false, "refine screen classification with OCR")
	cmd.Flags().BoolVar(&history, "history", true, "print the execution history after the decisions (table format)")
	return cmd
}
