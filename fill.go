package vectra

import (
	"fmt"
	"image/color"
)

// Fill describes how the interior of a VectorPath is painted.
//
// Fill is a closed sum type: the only implementations are FlatFill,
// LinearGradientFill and RadialGradientFill. Every consumer switches
// exhaustively over these three, so adding a variant is a compile-time
// visible change.
type Fill interface {
	isFill()
}

// FlatFill paints the path interior with a single solid color.
type FlatFill struct {
	Color color.NRGBA
}

func (FlatFill) isFill() {}

// GradientStop is a color at a normalized offset along a gradient.
type GradientStop struct {
	Offset float64 // 0.0 to 1.0
	Color  color.NRGBA
}

// LinearGradientFill paints along an axis from Start to End.
type LinearGradientFill struct {
	Start, End Point
	Stops      []GradientStop
}

func (LinearGradientFill) isFill() {}

// RadialGradientFill paints outward from Center to Radius.
type RadialGradientFill struct {
	Center Point
	Radius float64
	Stops  []GradientStop
}

func (RadialGradientFill) isFill() {}

// fillString returns a short description used in Debug logs.
func fillString(f Fill) string {
	switch f := f.(type) {
	case FlatFill:
		return fmt.Sprintf("flat(#%02x%02x%02x)", f.Color.R, f.Color.G, f.Color.B)
	case LinearGradientFill:
		return fmt.Sprintf("linear(%d stops)", len(f.Stops))
	case RadialGradientFill:
		return fmt.Sprintf("radial(%d stops)", len(f.Stops))
	default:
		return "unknown"
	}
}
