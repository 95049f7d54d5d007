package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	json "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"screenpilot/internal/detector"
	"screenpilot/internal/executor"
	"screenpilot/internal/safety"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", f)
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return validFormat(format)
}

func writeElements(w io.Writer, format string, elements []detector.UIElement) error {
	if format != formatTable {
		if elements == nil {
			elements = []detector.UIElement{}
		}
		return encode(w, format, elements)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tCONFIDENCE\tX\tY\tWIDTH\tHEIGHT\tTEXT")
	for _, el := range elements {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.0f\t%.0f\t%.0f\t%.0f\t%s\n",
			el.ID, el.Kind, el.Confidence,
			el.Bounds.X, el.Bounds.Y, el.Bounds.Width, el.Bounds.Height,
			oneLine(el.Properties[detector.PropText]))
	}
	return tw.Flush()
}

// decisionView is the printable form of a decision.
type decisionView struct {
	Action               string `json:"action" yaml:"action"`
	ActionID             string `json:"action_id" yaml:"action_id"`
	Allowed              bool   `json:"allowed" yaml:"allowed"`
	Risk                 string `json:"risk" yaml:"risk"`
	RequiresConfirmation bool   `json:"requires_confirmation" yaml:"requires_confirmation"`
	RateLimited          bool   `json:"rate_limited" yaml:"rate_limited"`
	Reason               string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error                string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newDecisionView(action string, dec safety.Decision, err error) decisionView {
	v := decisionView{
		Action:               action,
		ActionID:             dec.ActionID.String(),
		Allowed:              dec.Allowed,
		Risk:                 dec.Risk.String(),
		RequiresConfirmation: dec.RequiresConfirmation,
		RateLimited:          dec.RateLimited,
		Reason:               dec.Reason,
	}
	if err != nil && dec.Allowed {
		v.Error = err.Error()
	}
	return v
}

func writeDecisions(w io.Writer, format string, views []decisionView) error {
	if format != formatTable {
		if views == nil {
			views = []decisionView{}
		}
		return encode(w, format, views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tALLOWED\tRISK\tCONFIRM\tREASON")
	for _, v := range views {
		reason := v.Reason
		if v.Error != "" {
			reason = v.Error
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%t\t%s\n", v.Action, v.Allowed, v.Risk, v.RequiresConfirmation, oneLine(reason))
	}
	return tw.Flush()
}

func writeHistory(w io.Writer, records []executor.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tOUTCOME\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.Timestamp.Format("15:04:05.000"), r.Descriptor, r.Outcome, oneLine(r.Err))
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
