package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CaptionAnimation is the closed set of caption animations.
type CaptionAnimation string

const (
	CaptionFade          CaptionAnimation = "fade"
	CaptionSlideUp       CaptionAnimation = "slide-up"
	CaptionBounce        CaptionAnimation = "bounce"
	CaptionPop           CaptionAnimation = "pop"
	CaptionTypewriter    CaptionAnimation = "typewriter"
	CaptionKaraoke       CaptionAnimation = "karaoke"
	CaptionHighlightWord CaptionAnimation = "highlight-word"
	CaptionGlow          CaptionAnimation = "glow"
	CaptionShake         CaptionAnimation = "shake"
	CaptionWave          CaptionAnimation = "wave"
	CaptionZoomIn        CaptionAnimation = "zoom-in"
	CaptionFlip          CaptionAnimation = "flip"
	CaptionColorCycle    CaptionAnimation = "color-cycle"
)

var captionAnimations = []CaptionAnimation{
	CaptionFade, CaptionSlideUp, CaptionBounce, CaptionPop, CaptionTypewriter,
	CaptionKaraoke, CaptionHighlightWord, CaptionGlow, CaptionShake, CaptionWave,
	CaptionZoomIn, CaptionFlip, CaptionColorCycle,
}

func (a CaptionAnimation) Valid() bool {
	for _, k := range captionAnimations {
		if k == a {
			return true
		}
	}
	return false
}

func (a *CaptionAnimation) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*a = CaptionKaraoke
		return nil
	}
	v := CaptionAnimation(s)
	if !v.Valid() {
		return fmt.Errorf("line %d: unknown caption animation %q", node.Line, s)
	}
	*a = v
	return nil
}

// Anchor positions a caption block vertically.
type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorCenter Anchor = "center"
	AnchorBottom Anchor = "bottom"
)

// WordTiming is the speech timing of a single word.
type WordTiming struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// CaptionStyle is the presentation bag of a caption. Colors are hex strings;
// empty values fall back to the ThemeConfig.
type CaptionStyle struct {
	FontSize    float64 `yaml:"fontSize,omitempty"` // px on the 360-wide reference canvas
	Bold        bool    `yaml:"bold,omitempty"`
	Color       string  `yaml:"color,omitempty"`
	StrokeColor string  `yaml:"strokeColor,omitempty"`
	StrokeWidth float64 `yaml:"strokeWidth,omitempty"`
	Shadow      bool    `yaml:"shadow,omitempty"`
	Background  string  `yaml:"background,omitempty"`
	Position    Anchor  `yaml:"position,omitempty"`
	OffsetX     float64 `yaml:"offsetX,omitempty"` // fraction of canvas width
	OffsetY     float64 `yaml:"offsetY,omitempty"` // fraction of canvas height
}

// Caption is a timed subtitle line with optional word timings.
type Caption struct {
	TimeInterval `yaml:",inline"`
	Text         string           `yaml:"text"`
	Words        []WordTiming     `yaml:"words,omitempty"`
	Style        CaptionStyle     `yaml:"style,omitempty"`
	Emphasis     []string         `yaml:"emphasis,omitempty"`
	KeywordLabel string           `yaml:"keywordLabel,omitempty"`
	Animation    CaptionAnimation `yaml:"animation,omitempty"`
}
