package effects

import (
	"image/color"
	"math"
	"sort"

	"github.com/ivlev/talkreel/internal/model"
)

const (
	DefaultZoomScale    = 1.3
	DefaultPulseScale   = 1.15
	DefaultFocusX       = 0.5
	DefaultFocusY       = 0.4
	DefaultPanDistance  = 30.0 // horizontal, reference px
	DefaultTiltDistance = 20.0 // vertical, reference px
	DefaultShakeAmp     = 3.0
	DefaultShakeFreq    = 15.0
	DefaultVignette     = 0.5
	DefaultLetterbox    = 0.12
	DefaultFlash        = 1.0
	shakeFloor          = 0.4 // amplitude left at the end of a shake
	letterboxRamp       = 0.1
)

// Evaluate returns the contribution of e at instant. It is pure: the same
// inputs always produce the same output.
func Evaluate(e model.Effect, instant float64) PartialTransform {
	p := e.Progress(instant)
	t := Identity()

	switch e.Type {
	case model.EffectZoomIn:
		target := e.Params.Float("scale", DefaultZoomScale)
		t.Scale = lerp(1, target, easeOutCubic(p))
		t.TranslateX, t.TranslateY = focusCompensation(e.Params, t.Scale)

	case model.EffectZoomOut:
		target := e.Params.Float("scale", DefaultZoomScale)
		t.Scale = lerp(target, 1, easeOutCubic(p))
		t.TranslateX, t.TranslateY = focusCompensation(e.Params, t.Scale)

	case model.EffectZoomPulse:
		target := e.Params.Float("scale", DefaultPulseScale)
		t.Scale = lerp(1, target, easeInOutQuad(math.Sin(p*math.Pi)))
		t.TranslateX, t.TranslateY = focusCompensation(e.Params, t.Scale)

	case model.EffectPanLeft:
		t.TranslateX = -e.Params.Float("distance", DefaultPanDistance) * easeInOutQuad(p) / ReferenceWidth
	case model.EffectPanRight:
		t.TranslateX = e.Params.Float("distance", DefaultPanDistance) * easeInOutQuad(p) / ReferenceWidth
	case model.EffectPanUp:
		t.TranslateY = -e.Params.Float("distance", DefaultTiltDistance) * easeInOutQuad(p) / ReferenceHeight
	case model.EffectPanDown:
		t.TranslateY = e.Params.Float("distance", DefaultTiltDistance) * easeInOutQuad(p) / ReferenceHeight

	case model.EffectShake:
		amp := e.Params.Float("intensity", DefaultShakeAmp) * (1 - (1-shakeFloor)*p)
		freq := e.Params.Float("frequency", DefaultShakeFreq)
		elapsed := p * e.Duration()
		t.TranslateX = amp * math.Sin(2*math.Pi*freq*elapsed) / ReferenceWidth
		t.TranslateY = amp * 0.7 * math.Cos(2*math.Pi*freq*0.8*elapsed+1.3) / ReferenceHeight

	case model.EffectColorGrade:
		t.Filter = GradePreset(e.Params.String("preset", "cinematic"))

	case model.EffectVignette:
		t.Vignette = model.Clamp01(e.Params.Float("intensity", DefaultVignette))

	case model.EffectLetterbox:
		ramp := math.Min(1, math.Min(p/letterboxRamp, (1-p)/letterboxRamp))
		size := clamp(e.Params.Float("size", DefaultLetterbox), 0, 0.45)
		bar := size * easeInOutQuad(ramp)
		t.Clip = Clip{Top: bar, Bottom: bar}

	case model.EffectFlash:
		remaining := 1 - p
		if remaining > 0.5 {
			k := (remaining - 0.5) * 2
			intensity := e.Params.Float("intensity", DefaultFlash)
			t.Filter = []FilterOp{{Kind: FilterBrightness, Amount: 1 + intensity*k}}
			t.Overlays = []Overlay{{
				Color: color.RGBA{255, 255, 255, 255},
				Alpha: 0.6 * k * math.Min(1, intensity),
				X0:    0, X1: 1,
			}}
		}

	case model.EffectTransitionFade:
		t.Overlays = []Overlay{{
			Color: model.ColorOr(e.Params.String("color", ""), color.RGBA{0, 0, 0, 255}),
			Alpha: math.Sin(p * math.Pi),
			X0:    0, X1: 1,
		}}

	case model.EffectTransitionGlitch:
		s := math.Sin(p * math.Pi)
		t.Overlays = []Overlay{{
			Color: color.RGBA{
				R: uint8(128 + 127*math.Sin(p*97)),
				G: 0,
				B: uint8(128 + 127*math.Sin(p*131+1.7)),
				A: 255,
			},
			Alpha: 0.35 * s,
			X0:    0, X1: 1,
		}}
		t.ChannelShift = 0.02 * s * math.Sin(p*173)
		t.Filter = []FilterOp{{Kind: FilterHueRotate, Amount: 40 * s * math.Sin(p*211)}}

	case model.EffectTransitionZoom:
		s := math.Sin(p * math.Pi)
		t.Scale = 1 + 0.35*s
		t.Overlays = []Overlay{{Color: color.RGBA{255, 255, 255, 255}, Alpha: 0.5 * s, X0: 0, X1: 1}}

	case model.EffectTransitionSwipe:
		x0 := -1 + 2*easeInOutCubic(p)
		x1 := x0 + 1
		if x1 > 0 && x0 < 1 {
			t.Overlays = []Overlay{{
				Color: model.ColorOr(e.Params.String("color", ""), color.RGBA{0, 0, 0, 255}),
				Alpha: 1,
				X0:    clamp(x0, 0, 1),
				X1:    clamp(x1, 0, 1),
			}}
		}
	}

	return t
}

// EvaluateAll composes every effect active at instant. Effects are folded in
// (start, id) order so filter chains and overlays stack deterministically.
func EvaluateAll(list []model.Effect, instant float64) PartialTransform {
	active := make([]model.Effect, 0, len(list))
	for _, e := range list {
		if e.Contains(instant) {
			active = append(active, e)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Start != active[j].Start {
			return active[i].Start < active[j].Start
		}
		return active[i].ID < active[j].ID
	})

	out := Identity()
	for _, e := range active {
		out = Compose(out, Evaluate(e, instant))
	}
	return out
}

// focusCompensation keeps the focus point stationary while scaling about
// the canvas centre: T = (focus - 0.5) * (1 - scale).
func focusCompensation(p model.Params, scale float64) (float64, float64) {
	fx := p.Float("focusX", DefaultFocusX)
	fy := p.Float("focusY", DefaultFocusY)
	return (fx - 0.5) * (1 - scale), (fy - 0.5) * (1 - scale)
}
