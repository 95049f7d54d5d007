package cli

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"screenpilot/internal/action"
	"screenpilot/internal/app"
	"screenpilot/pkg/geometry"
)

// Script is an action script:
//
//	screen: shot.png      # optional; detected first so steps can use element
//	stop_on_deny: true
//	actions:
//	  - {kind: click, element: el-001}
//	  - {kind: type, text: "hello"}
//	  - {kind: scroll, target: {x: 400, y: 300}, scroll: down, amount: 3}
type Script struct {
	Screen     string `yaml:"screen"`
	StopOnDeny bool   `yaml:"stop_on_deny"`
	Actions    []Step `yaml:"actions"`
}

// Step is one scripted action. A pointer action targets either Target or
// the centre of Element.
type Step struct {
	Kind    action.Kind            `yaml:"kind"`
	Target  *geometry.PointInt     `yaml:"target,omitempty"`
	Element string                 `yaml:"element,omitempty"`
	Button  action.MouseButton     `yaml:"button,omitempty"`
	Text    string                 `yaml:"text,omitempty"`
	Key     string                 `yaml:"key,omitempty"`
	Scroll  action.ScrollDirection `yaml:"scroll,omitempty"`
	Amount  int                    `yaml:"amount,omitempty"`
}

// LoadScript reads and decodes a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", path, err)
	}
	if len(s.Actions) == 0 {
		return nil, fmt.Errorf("script %s has no actions", path)
	}
	return &s, nil
}

// Descriptor turns the step into a proposed action. Element references are
// resolved against the session's current elements.
func (st Step) Descriptor(s *app.Session) (action.Descriptor, error) {
	var target geometry.PointInt
	switch {
	case st.Element != "":
		if s == nil {
			return action.Descriptor{}, errors.New("element targets need a session")
		}
		el, ok := s.Element(st.Element)
		if !ok {
			return action.Descriptor{}, fmt.Errorf("%w: %s", app.ErrUnknownElement, st.Element)
		}
		target = el.Bounds.Center().Round()
	case st.Target != nil:
		target = *st.Target
	}

	switch st.Kind {
	case action.KindClick:
		return action.Click(target, st.Button), nil
	case action.KindType:
		return action.Type(st.Text), nil
	case action.KindKey:
		return action.Key(st.Key), nil
	case action.KindScroll:
		return action.Scroll(target, st.Scroll, st.Amount), nil
	case action.KindMove:
		return action.Move(target), nil
	}
	return action.Descriptor{}, fmt.Errorf("%w: missing or unknown kind", action.ErrInvalidAction)
}
