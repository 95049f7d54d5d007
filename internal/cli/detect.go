package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"screenpilot/internal/detector"
	"screenpilot/internal/image"
)

func newDetectCmd(ro *rootOptions) *cobra.Command {
	var (
		format    string
		useOCR    bool
		kind      string
		threshold float64
		scale     float64
	)

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Detect UI elements in a screenshot",
		Long: `Runs the element detector on an image file and prints the elements found,
highest confidence first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			var filter detector.ElementKind
			if kind != "" {
				k, err := detector.ParseElementKind(kind)
				if err != nil {
					return err
				}
				filter = k
			}

			buf, err := image.Load(args[0])
			if err != nil {
				return err
			}
			if scale > 0 && scale < 1 {
				buf = image.Downscale(buf, scale)
			}

			s, cleanup, err := ro.newSession(useOCR)
			if err != nil {
				return err
			}
			defer cleanup()

			if cmd.Flags().Changed("threshold") {
				p := s.Detector().Params().WithConfidenceThreshold(threshold)
				if err := s.Detector().SetParams(p); err != nil {
					return fmt.Errorf("--threshold: %w", err)
				}
			}

			elements, err := s.Detect(cmd.Context(), buf)
			if err != nil {
				return err
			}
			if kind != "" {
				elements = detector.FilterByKind(elements, filter)
			}
			return writeElements(cmd.OutOrStdout(), format, elements)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	cmd.Flags().BoolVar(&useOCR, "ocr", false, "refine classification with OCR")
	cmd.Flags().StringVar(&kind, "kind", "", "only print elements of this kind")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "override vision.confidence_threshold")
	cmd.Flags().Float64Var(&scale, "scale", 0, "downsample the image by this factor in (0,1) first")
	return cmd
}
