// Package action describes proposed input actions. A Descriptor is created
// by whoever wants to act on the screen and is only ever read afterwards.
package action

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"screenpilot/pkg/geometry"
)

// ErrInvalidAction wraps every descriptor validation failure.
var ErrInvalidAction = errors.New("action: invalid descriptor")

// Kind is the type of input action.
type Kind int

const (
	KindClick Kind = iota + 1
	KindType
	KindKey
	KindScroll
	KindMove
)

var kindNames = map[Kind]string{
	KindClick:  "click",
	KindType:   "type",
	KindKey:    "key",
	KindScroll: "scroll",
	KindMove:   "move",
}

// String returns the lowercase kind name, which also keys rate limiting.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind accepts the names produced by String, ignoring case.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, s)
}

// MouseButton selects the button for a click.
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
)

func (b MouseButton) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	}
	return fmt.Sprintf("button(%d)", int(b))
}

func (b MouseButton) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *MouseButton) UnmarshalText(text []byte) error {
	parsed, err := ParseButton(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseButton parses "left", "right" or "middle". An empty string means left.
func ParseButton(s string) (MouseButton, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return ButtonLeft, nil
	case "right":
		return ButtonRight, nil
	case "middle":
		return ButtonMiddle, nil
	}
	return 0, fmt.Errorf("%w: unknown mouse button %q", ErrInvalidAction, s)
}

// ScrollDirection is the direction of a scroll action.
type ScrollDirection int

const (
	ScrollUp ScrollDirection = iota
	ScrollDown
	ScrollLeft
	ScrollRight
)

var scrollNames = [...]string{"up", "down", "left", "right"}

func (d ScrollDirection) String() string {
	if d >= 0 && int(d) < len(scrollNames) {
		return scrollNames[d]
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

func (d ScrollDirection) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *ScrollDirection) UnmarshalText(text []byte) error {
	parsed, err := ParseScrollDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseScrollDirection parses "up", "down", "left" or "right".
func ParseScrollDirection(s string) (ScrollDirection, error) {
	for i, name := range scrollNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return ScrollDirection(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown scroll direction %q", ErrInvalidAction, s)
}

// Descriptor is a proposed, not yet executed input action. Only the fields
// relevant to Kind are meaningful.
type Descriptor struct {
	ID        uuid.UUID         `json:"id" yaml:"id"`
	Kind      Kind              `json:"kind" yaml:"kind"`
	Target    geometry.PointInt `json:"target" yaml:"target"`
	Button    MouseButton       `json:"button,omitempty" yaml:"button,omitempty"`
	Text      string            `json:"text,omitempty" yaml:"text,omitempty"`
	Key       string            `json:"key,omitempty" yaml:"key,omitempty"`
	Scroll    ScrollDirection   `json:"scroll,omitempty" yaml:"scroll,omitempty"`
	Amount    int               `json:"amount,omitempty" yaml:"amount,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}

func newDescriptor(kind Kind, target geometry.PointInt) Descriptor {
	return Descriptor{
		ID:        uuid.New(),
		Kind:      kind,
		Target:    target,
		CreatedAt: time.Now(),
	}
}

// Click proposes a mouse click at target.
func Click(target geometry.PointInt, button MouseButton) Descriptor {
	d := newDescriptor(KindClick, target)
	d.Button = button
	return d
}

// Type proposes typing text at the current focus.
func Type(text string) Descriptor {
	d := newDescriptor(KindType, geometry.PointInt{})
	d.Text = text
	return d
}

// Key proposes a key press or combination such as "ctrl+c".
func Key(combo string) Descriptor {
	d := newDescriptor(KindKey, geometry.PointInt{})
	d.Key = combo
	return d
}

// Scroll proposes scrolling amount notches at target.
func Scroll(target geometry.PointInt, dir ScrollDirection, amount int) Descriptor {
	d := newDescriptor(KindScroll, target)
	d.Scroll = dir
	d.Amount = amount
	return d
}

// Move proposes moving the pointer to target.
func Move(target geometry.PointInt) Descriptor {
	return newDescriptor(KindMove, target)
}

// Payload returns the text that content rules inspect. Only Type actions
// carry one; key combinations are judged by name, not by content.
func (d Descriptor) Payload() string {
	if d.Kind == KindType {
		return d.Text
	}
	return ""
}

// Pointer reports whether the action targets a screen location.
func (d Descriptor) Pointer() bool {
	switch d.Kind {
	case KindClick, KindScroll, KindMove:
		return true
	}
	return false
}

// Validate reports the first problem with d.
func (d Descriptor) Validate() error {
	if _, ok := kindNames[d.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidAction, int(d.Kind))
	}
	if d.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidAction)
	}
	if d.Pointer() && (d.Target.X < 0 || d.Target.Y < 0) {
		return fmt.Errorf("%w: negative target (%d,%d)", ErrInvalidAction, d.Target.X, d.Target.Y)
	}
	switch d.Kind {
	case KindType:
		if d.Text == "" {
			return fmt.Errorf("%w: empty text", ErrInvalidAction)
		}
	case KindKey:
		if strings.TrimSpace(d.Key) == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidAction)
		}
	case KindScroll:
		if d.Amount <= 0 {
			return fmt.Errorf("%w: scroll amount must be positive, got %d", ErrInvalidAction, d.Amount)
		}
	}
	return nil
}

// String renders a short human-readable form for logs.
func (d Descriptor) String() string {
	switch d.Kind {
	case KindClick:
		return fmt.Sprintf("click %s at (%d,%d)", d.Button, d.Target.X, d.Target.Y)
	case KindType:
		return fmt.Sprintf("type %q", d.Text)
	case KindKey:
		return fmt.Sprintf("key %s", d.Key)
	case KindScroll:
		return fmt.Sprintf("scroll %s x%d at (%d,%d)", d.Scroll, d.Amount, d.Target.X, d.Target.Y)
	case KindMove:
		return fmt.Sprintf("move to (%d,%d)", d.Target.X, d.Target.Y)
	}
	return d.Kind.String()
}

// NormalizeCombo lowercases a key combination and strips spaces so
// "Ctrl + Alt + Del" and "ctrl+alt+del" compare equal.
func NormalizeCombo(combo string) string {
	parts := strings.Split(strings.ToLower(combo), "+")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "+")
}
