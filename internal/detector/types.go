// Package detector turns captured frames into a ranked list of candidate UI
// elements using edge analysis and shape heuristics, optionally refined by a
// semantic labeler.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"screenpilot/internal/image"
	"screenpilot/pkg/geometry"
)

// ElementKind classifies a detected region.
type ElementKind int

const (
	KindUnknown ElementKind = iota
	KindButton
	KindTextBox
	KindLabel
	KindMenu
	KindWindow
	KindIcon
	KindImage
)

var kindNames = map[ElementKind]string{
	KindUnknown: "Unknown",
	KindButton:  "Button",
	KindTextBox: "TextBox",
	KindLabel:   "Label",
	KindMenu:    "Menu",
	KindWindow:  "Window",
	KindIcon:    "Icon",
	KindImage:   "Image",
}

func (k ElementKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ElementKind(%d)", int(k))
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k ElementKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (k *ElementKind) UnmarshalText(text []byte) error {
	parsed, err := ParseElementKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseElementKind is the case-insensitive inverse of String.
func ParseElementKind(s string) (ElementKind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown element kind %q", s)
}

// Property keys recorded on every element.
const (
	PropBrightness  = "brightness"
	PropEdgeDensity = "edge_density"
	PropAspectRatio = "aspect_ratio"
	PropArea        = "area"
	PropTone        = "tone"
	PropHue         = "hue"
	PropSaturation  = "saturation"
	PropText        = "text"
	PropLabelSource = "label_source"
)

// UIElement is one detected screen region. Elements are never modified
// after Detect returns them.
type UIElement struct {
	ID         string            `json:"id" yaml:"id"`
	Bounds     geometry.Rect     `json:"bounds" yaml:"bounds"`
	Kind       ElementKind       `json:"kind" yaml:"kind"`
	Confidence float64           `json:"confidence" yaml:"confidence"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

func (e UIElement) clone() UIElement {
	props := make(map[string]string, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	e.Properties = props
	return e
}

// Label is a semantic labeler's verdict on a region. KindUnknown means the
// labeler has no opinion and the heuristic result stands.
type Label struct {
	Kind       ElementKind
	Confidence float64
	Text       string
}

// ErrLabelerUnavailable is returned by a Labeler whose backend cannot be
// used. Detection continues with the heuristic classification.
var ErrLabelerUnavailable = errors.New("detector: labeler unavailable")

// Labeler refines the heuristic classification of a region. region holds
// the pixels inside bounds.
type Labeler interface {
	Label(ctx context.Context, region *image.PixelBuffer, bounds geometry.Rect) (Label, error)
}

// LabelerFunc adapts a function to the Labeler interface.
type LabelerFunc func(ctx context.Context, region *image.PixelBuffer, bounds geometry.Rect) (Label, error)

// Label calls f.
func (f LabelerFunc) Label(ctx context.Context, region *image.PixelBuffer, bounds geometry.Rect) (Label, error) {
	return f(ctx, region, bounds)
}

// FilterByKind returns the elements of the given kind, preserving order.
func FilterByKind(elements []UIElement, kind ElementKind) []UIElement {
	var out []UIElement
	for _, e := range elements {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// InRegion returns the elements whose bounds intersect region.
func InRegion(elements []UIElement, region geometry.Rect) []UIElement {
	var out []UIElement
	for _, e := range elements {
		if e.Bounds.Intersects(region) {
			out = append(out, e)
		}
	}
	return out
}
