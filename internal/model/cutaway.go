package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CutawayAnimation is the closed set of B-roll animations.
type CutawayAnimation string

const (
	CutawayKenBurns        CutawayAnimation = "ken-burns"
	CutawayFade            CutawayAnimation = "fade"
	CutawaySlide           CutawayAnimation = "slide"
	CutawayZoom            CutawayAnimation = "zoom"
	CutawayPanLeft         CutawayAnimation = "pan-left"
	CutawayPanRight        CutawayAnimation = "pan-right"
	CutawayPanUp           CutawayAnimation = "pan-up"
	CutawayPanDown         CutawayAnimation = "pan-down"
	CutawayBlurIn          CutawayAnimation = "blur-in"
	CutawayCinematicReveal CutawayAnimation = "cinematic-reveal"
	CutawayGlitchIn        CutawayAnimation = "glitch-in"
	CutawayParallax        CutawayAnimation = "parallax"
)

var cutawayAnimations = []CutawayAnimation{
	CutawayKenBurns, CutawayFade, CutawaySlide, CutawayZoom,
	CutawayPanLeft, CutawayPanRight, CutawayPanUp, CutawayPanDown,
	CutawayBlurIn, CutawayCinematicReveal, CutawayGlitchIn, CutawayParallax,
}

func (a CutawayAnimation) Valid() bool {
	for _, k := range cutawayAnimations {
		if k == a {
			return true
		}
	}
	return false
}

func (a *CutawayAnimation) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*a = CutawayKenBurns
		return nil
	}
	v := CutawayAnimation(s)
	if !v.Valid() {
		return fmt.Errorf("line %d: unknown cutaway animation %q", node.Line, s)
	}
	*a = v
	return nil
}

// PositionMode places a cutaway on the canvas.
type PositionMode string

const (
	PositionFullscreen PositionMode = "fullscreen"
	PositionPiP        PositionMode = "pip"
	PositionInset      PositionMode = "inset"
	PositionSplit      PositionMode = "split"
)

// Cutaway is an inserted still image ("B-roll").
type Cutaway struct {
	TimeInterval `yaml:",inline"`
	// Source is a file path, an http(s) URL, or "deck.pdf#N" for a PDF page.
	Source    string           `yaml:"source"`
	Animation CutawayAnimation `yaml:"animation,omitempty"`
	Position  PositionMode     `yaml:"position,omitempty"`
	Opacity   float64          `yaml:"opacity,omitempty"`
	Cinematic bool             `yaml:"cinematic,omitempty"`
}

// EffectiveOpacity treats an unset opacity as fully opaque.
func (c Cutaway) EffectiveOpacity() float64 {
	if c.Opacity <= 0 {
		return 1
	}
	return Clamp01(c.Opacity)
}
