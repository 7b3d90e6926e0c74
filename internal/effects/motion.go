package effects

import (
	"math"

	"github.com/ivlev/talkreel/internal/model"
)

const (
	cutawayEnvelope  = 0.15 // share of the interval used for fade in and fade out
	captionEntrance  = 0.3  // seconds
	captionExit      = 0.1  // seconds
	typewriterWindow = 0.7  // share of the caption over which text is typed
)

// CutawayMotion is the animation state of a cutaway image at one instant.
type CutawayMotion struct {
	Scale        float64
	TranslateX   float64
	TranslateY   float64
	Opacity      float64
	Blur         float64 // radius, fraction of canvas width
	Reveal       float64 // visible share of height, opening from the centre
	ChannelShift float64
}

// EvaluateCutaway returns the motion of c at instant. The fade envelope is
// applied for every animation kind and multiplies the cutaway opacity.
func EvaluateCutaway(c model.Cutaway, instant float64) CutawayMotion {
	p := c.Progress(instant)
	m := CutawayMotion{Scale: 1, Opacity: 1, Reveal: 1}

	switch c.Animation {
	case model.CutawayKenBurns, "":
		m.Scale = lerp(1, 1.15, p)
		m.TranslateX = lerp(-0.02, 0.02, p)
		m.TranslateY = lerp(0.01, -0.01, p)
	case model.CutawayFade:
	case model.CutawaySlide:
		m.TranslateX = 1 - easeOutCubic(math.Min(1, p/0.2))
	case model.CutawayZoom:
		m.Scale = lerp(1.3, 1, easeOutCubic(p))
	case model.CutawayPanLeft:
		m.Scale = 1.15
		m.TranslateX = lerp(0.05, -0.05, p)
	case model.CutawayPanRight:
		m.Scale = 1.15
		m.TranslateX = lerp(-0.05, 0.05, p)
	case model.CutawayPanUp:
		m.Scale = 1.15
		m.TranslateY = lerp(0.05, -0.05, p)
	case model.CutawayPanDown:
		m.Scale = 1.15
		m.TranslateY = lerp(-0.05, 0.05, p)
	case model.CutawayBlurIn:
		k := math.Min(1, p/0.3)
		m.Blur = (1 - easeOutCubic(k)) * 0.03
		m.Scale = lerp(1.08, 1, k)
	case model.CutawayCinematicReveal:
		k := easeInOutCubic(math.Min(1, p/0.3))
		m.Reveal = k
		m.Scale = lerp(1.1, 1, k)
	case model.CutawayGlitchIn:
		k := math.Min(1, p/0.2)
		m.ChannelShift = (1 - k) * 0.03 * math.Sin(p*157)
		if k < 1 && math.Sin(p*311) < -0.7 {
			m.Opacity = 0.4
		}
	case model.CutawayParallax:
		m.Scale = 1.12
		m.TranslateX = 0.015 * (0.5 - p)
		m.TranslateY = 0.03 * (0.5 - p)
	}

	m.Opacity *= envelope(c.TimeInterval, instant) * c.EffectiveOpacity()
	return m
}

func envelope(ti model.TimeInterval, instant float64) float64 {
	edge := ti.Duration() * cutawayEnvelope
	if edge <= 0 {
		return 1
	}
	in := (instant - ti.Start) / edge
	out := (ti.End - instant) / edge
	return model.Clamp01(math.Min(in, out))
}

// CaptionMotion is the animation state of a caption block at one instant.
type CaptionMotion struct {
	Opacity      float64
	TranslateX   float64 // fraction of canvas width
	TranslateY   float64 // fraction of canvas height
	Scale        float64
	ScaleY       float64
	VisibleRunes float64 // share of runes drawn, typewriter
	Glow         float64
	HueRotate    float64 // degrees
	WaveAmp      float64 // fraction of canvas height
	WavePhase    float64
}

// WaveOffset is the vertical offset of word i for the wave animation.
func (m CaptionMotion) WaveOffset(i int) float64 {
	if m.WaveAmp == 0 {
		return 0
	}
	return m.WaveAmp * math.Sin(m.WavePhase+float64(i)*0.8)
}

// EvaluateCaption returns the animation of c at instant.
func EvaluateCaption(c model.Caption, instant float64) CaptionMotion {
	elapsed := math.Max(0, instant-c.Start)
	e := clamp(elapsed/captionEntrance, 0, 1)
	exit := 1.0
	if c.Duration() > 2*captionExit {
		exit = clamp((c.End-instant)/captionExit, 0, 1)
	}

	m := CaptionMotion{Opacity: 1, Scale: 1, ScaleY: 1, VisibleRunes: 1}

	switch c.Animation {
	case model.CaptionFade:
		m.Opacity = easeOutCubic(e)
	case model.CaptionSlideUp:
		m.Opacity = e
		m.TranslateY = (1 - easeOutCubic(e)) * 0.04
	case model.CaptionBounce:
		m.Scale = lerp(0.5, 1, easeOutBack(e))
	case model.CaptionPop:
		m.Scale = lerp(0.6, 1, easeOutBack(e))
		m.Opacity = math.Min(1, e*2)
	case model.CaptionTypewriter:
		m.VisibleRunes = clamp(c.Progress(instant)/typewriterWindow, 0, 1)
	case model.CaptionKaraoke, model.CaptionHighlightWord, "":
		m.Opacity = math.Min(1, e*2)
	case model.CaptionGlow:
		m.Glow = 0.6 + 0.4*math.Sin(elapsed*2*math.Pi*1.5)
	case model.CaptionShake:
		m.TranslateX = 0.004 * math.Sin(elapsed*2*math.Pi*12)
		m.TranslateY = 0.003 * math.Cos(elapsed*2*math.Pi*9)
	case model.CaptionWave:
		m.WaveAmp = 0.008
		m.WavePhase = elapsed * 6
	case model.CaptionZoomIn:
		m.Scale = lerp(1.4, 1, easeOutCubic(e))
		m.Opacity = e
	case model.CaptionFlip:
		m.ScaleY = math.Abs(math.Cos((1 - easeOutCubic(e)) * math.Pi / 2))
	case model.CaptionColorCycle:
		m.HueRotate = math.Mod(elapsed*180, 360)
	}

	m.Opacity *= exit
	return m
}
