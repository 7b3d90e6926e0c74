package effects

import "image/color"

// Reference canvas for pixel-denominated parameters (pan distance, shake
// intensity, caption font size). Values are converted to canvas fractions so
// every output resolution sees the same motion.
const (
	ReferenceWidth  = 360.0
	ReferenceHeight = 640.0
)

// FilterKind is one colour filter primitive.
type FilterKind int

const (
	FilterBrightness FilterKind = iota
	FilterContrast
	FilterSaturate
	FilterSepia
	FilterHueRotate // degrees
	FilterGrayscale
)

// FilterOp is one step of a colour filter chain. Ops apply in order.
type FilterOp struct {
	Kind   FilterKind
	Amount float64
}

// Clip insets the visible area; Top and Bottom are fractions of canvas height.
type Clip struct {
	Top    float64
	Bottom float64
}

// Overlay is a full-height colour wash covering [X0, X1] of the canvas width.
type Overlay struct {
	Color color.RGBA
	Alpha float64
	X0    float64
	X1    float64
}

// PartialTransform is the contribution of one effect at one instant.
// Translations are fractions of the canvas axis; Scale is about the canvas centre.
type PartialTransform struct {
	Scale        float64
	TranslateX   float64
	TranslateY   float64
	Filter       []FilterOp
	Clip         Clip
	Overlays     []Overlay
	Vignette     float64
	ChannelShift float64 // horizontal red/blue split, fraction of width
}

// Identity is the transform of no effect.
func Identity() PartialTransform {
	return PartialTransform{Scale: 1}
}

// IsIdentity reports whether t changes nothing.
func (t PartialTransform) IsIdentity() bool {
	return t.Scale == 1 && t.TranslateX == 0 && t.TranslateY == 0 &&
		len(t.Filter) == 0 && t.Clip == (Clip{}) && len(t.Overlays) == 0 &&
		t.Vignette == 0 && t.ChannelShift == 0
}

// Compose folds b into a. Scale multiplies and translation adds, so the
// geometric result does not depend on fold order.
func Compose(a, b PartialTransform) PartialTransform {
	out := PartialTransform{
		Scale:        a.Scale * b.Scale,
		TranslateX:   a.TranslateX + b.TranslateX,
		TranslateY:   a.TranslateY + b.TranslateY,
		Vignette:     maxf(a.Vignette, b.Vignette),
		ChannelShift: a.ChannelShift + b.ChannelShift,
		Clip: Clip{
			Top:    maxf(a.Clip.Top, b.Clip.Top),
			Bottom: maxf(a.Clip.Bottom, b.Clip.Bottom),
		},
	}
	if len(a.Filter)+len(b.Filter) > 0 {
		out.Filter = make([]FilterOp, 0, len(a.Filter)+len(b.Filter))
		out.Filter = append(append(out.Filter, a.Filter...), b.Filter...)
	}
	if len(a.Overlays)+len(b.Overlays) > 0 {
		out.Overlays = make([]Overlay, 0, len(a.Overlays)+len(b.Overlays))
		out.Overlays = append(append(out.Overlays, a.Overlays...), b.Overlays...)
	}
	return out
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
