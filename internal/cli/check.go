package cli

import (
	"github.com/spf13/cobra"

	"screenpilot/pkg/geometry"
)

func newCheckCmd(ro *rootOptions) *cobra.Command {
	var (
		format                       string
		kind, button, text, key, dir string
		x, y, amount                 int
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show how the gatekeeper would judge an action",
		Long: `Builds one action from flags and prints the gatekeeper's decision. Nothing
is executed. Examples:

  screenpilot check --kind type --text "rm -rf /"
  screenpilot check --kind key --key ctrl+alt+delete
  screenpilot check --kind click --x 40 --y 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			st := Step{Text: text, Key: key, Amount: amount}
			if err := st.Kind.UnmarshalText([]byte(kind)); err != nil {
				return err
			}
			if err := st.Button.UnmarshalText([]byte(button)); err != nil {
				return err
			}
			if dir != "" {
				if err := st.Scroll.UnmarshalText([]byte(dir)); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
				st.Target = &geometry.PointInt{X: x, Y: y}
			}

			d, err := st.Descriptor(nil)
			if err != nil {
				return err
			}

			s, cleanup, err := ro.newSession(false)
			if err != nil {
				return err
			}
			defer cleanup()

			dec := s.Gatekeeper().ValidateAction(d)
			return writeDecisions(cmd.OutOrStdout(), format, []decisionView{newDecisionView(d.String(), dec, nil)})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	cmd.Flags().StringVar(&kind, "kind", "", "action kind: click, type, key, scroll or move")
	cmd.Flags().StringVar(&button, "button", "left", "mouse button for click")
	cmd.Flags().StringVar(&text, "text", "", "text for type")
	cmd.Flags().StringVar(&key, "key", "", "key combination for key, e.g. ctrl+c")
	cmd.Flags().StringVar(&dir, "scroll", "", "scroll direction: up, down, left or right")
	cmd.Flags().IntVar(&amount, "amount", 1, "scroll notches")
	cmd.Flags().IntVar(&x, "x", 0, "target x")
	cmd.Flags().IntVar(&y, "y", 0, "target y")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

