package viewport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Override is a partial viewport. Nil fields fall through to the next layer.
type Override struct {
	Width  *int `json:"width,omitempty" validate:"omitempty,gt=0"`
	Height *int `json:"height,omitempty" validate:"omitempty,gt=0"`
	X      *int `json:"x,omitempty"`
	Y      *int `json:"y,omitempty"`
}

// Viewport is a fully resolved viewport, ready to be written.
type Viewport struct {
	Width  int
	Height int
	X      int
	Y      int
}

// ErrUnresolvedViewport matches every UnresolvedViewportError.
var ErrUnresolvedViewport = errors.New("no viewport resolvable")

// UnresolvedViewportError names the game and the dimensions no layer could
// provide.
type UnresolvedViewportError struct {
	Game          string
	MissingWidth  bool
	MissingHeight bool
}

func (e *UnresolvedViewportError) Error() string {
	var missing []string
	if e.MissingWidth {
		missing = append(missing, "width")
	}
	if e.MissingHeight {
		missing = append(missing, "height")
	}
	return fmt.Sprintf("no viewport resolvable for [%v] (missing %v)", e.Game, strings.Join(missing, ", "))
}

func (e *UnresolvedViewportError) Is(target error) bool {
	return target == ErrUnresolvedViewport
}

// Int returns a pointer to v, handy for building overrides.
func Int(v int) *int {
	return &v
}

// Native builds the lowest precedence layer from a catalog resolution.
// Non-positive values mean the resolution is unknown.
func Native(width, height int) Override {
	o := Override{}
	if width > 0 {
		o.Width = Int(width)
	}
	if height > 0 {
		o.Height = Int(height)
	}
	return o
}

func (o Override) IsEmpty() bool {
	return o.Width == nil && o.Height == nil && o.X == nil && o.Y == nil
}

// Validate checks that width and height, when set, are positive.
func (o Override) Validate() error {
	if o.Width != nil && *o.Width <= 0 {
		return fmt.Errorf("width must be a positive integer, got %d", *o.Width)
	}
	if o.Height != nil && *o.Height <= 0 {
		return fmt.Errorf("height must be a positive integer, got %d", *o.Height)
	}
	return nil
}

// Merge returns o with every unset field taken from lower.
func (o Override) Merge(lower Override) Override {
	result := o
	if result.Width == nil {
		result.Width = lower.Width
	}
	if result.Height == nil {
		result.Height = lower.Height
	}
	if result.X == nil {
		result.X = lower.X
	}
	if result.Y == nil {
		result.Y = lower.Y
	}
	return result
}

// Resolve merges layers, highest precedence first, into a complete viewport.
// Unset offsets default to 0; an unset width or height fails the resolution.
func Resolve(game string, layers ...Override) (Viewport, error) {
	merged := Override{}
	for _, layer := range layers {
		merged = merged.Merge(layer)
	}

	if merged.Width == nil || merged.Height == nil {
		return Viewport{}, &UnresolvedViewportError{
			Game:          game,
			MissingWidth:  merged.Width == nil,
			MissingHeight: merged.Height == nil,
		}
	}

	vp := Viewport{Width: *merged.Width, Height: *merged.Height}
	if merged.X != nil {
		vp.X = *merged.X
	}
	if merged.Y != nil {
		vp.Y = *merged.Y
	}
	return vp, nil
}

// Parse reads the "W,H[,X,Y]" syntax. Empty fields stay unset, so ",,10,20"
// only moves the viewport.
func Parse(s string) (Override, error) {
	o := Override{}
	s = strings.TrimSpace(s)
	if s == "" {
		return o, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) > 4 {
		return o, fmt.Errorf("override [%v] has %d values, expected at most 4 (WIDTH,HEIGHT,X,Y)", s, len(parts))
	}

	fields := []**int{&o.Width, &o.Height, &o.X, &o.Y}
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return Override{}, fmt.Errorf("override [%v] value %d is not an integer: %w", s, i+1, err)
		}
		*fields[i] = Int(v)
	}

	if err := o.Validate(); err != nil {
		return Override{}, err
	}
	return o, nil
}

// String is the inverse of Parse.
func (o Override) String() string {
	fields := []*int{o.Width, o.Height, o.X, o.Y}
	parts := make([]string, len(fields))
	for i, f := range fields {
		if f != nil {
			parts[i] = strconv.Itoa(*f)
		}
	}
	return strings.TrimRight(strings.Join(parts, ","), ",")
}

func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d at (%d, %d)", v.Width, v.Height, v.X, v.Y)
}
