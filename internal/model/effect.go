package model

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EffectType is the closed set of timeline effects.
type EffectType string

const (
	EffectZoomIn           EffectType = "zoom-in"
	EffectZoomOut          EffectType = "zoom-out"
	EffectZoomPulse        EffectType = "zoom-pulse"
	EffectPanLeft          EffectType = "pan-left"
	EffectPanRight         EffectType = "pan-right"
	EffectPanUp            EffectType = "pan-up"
	EffectPanDown          EffectType = "pan-down"
	EffectShake            EffectType = "shake"
	EffectColorGrade       EffectType = "color-grade"
	EffectVignette         EffectType = "vignette"
	EffectLetterbox        EffectType = "letterbox"
	EffectFlash            EffectType = "flash"
	EffectTransitionFade   EffectType = "transition-fade"
	EffectTransitionGlitch EffectType = "transition-glitch"
	EffectTransitionZoom   EffectType = "transition-zoom"
	EffectTransitionSwipe  EffectType = "transition-swipe"
)

// EffectTypes lists every known effect type in declaration order.
var EffectTypes = []EffectType{
	EffectZoomIn, EffectZoomOut, EffectZoomPulse,
	EffectPanLeft, EffectPanRight, EffectPanUp, EffectPanDown,
	EffectShake, EffectColorGrade, EffectVignette, EffectLetterbox, EffectFlash,
	EffectTransitionFade, EffectTransitionGlitch, EffectTransitionZoom, EffectTransitionSwipe,
}

// Valid reports whether t belongs to the closed set.
func (t EffectType) Valid() bool {
	for _, k := range EffectTypes {
		if k == t {
			return true
		}
	}
	return false
}

// UnmarshalYAML rejects unknown effect types at load time.
func (t *EffectType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v := EffectType(s)
	if !v.Valid() {
		return fmt.Errorf("line %d: unknown effect type %q", node.Line, s)
	}
	*t = v
	return nil
}

// Params is the variant-specific parameter bag of an effect
// (scale, focusX, focusY, distance, intensity, frequency, preset, ...).
type Params map[string]any

// Float returns the numeric value stored under key, or def.
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

// String returns the string value stored under key, or def.
func (p Params) String(key, def string) string {
	if s, ok := p[key].(string); ok && s != "" {
		return s
	}
	return def
}

// Effect is a timed visual effect applied to the source frame.
type Effect struct {
	TimeInterval `yaml:",inline"`
	Type         EffectType `yaml:"type"`
	Params       Params     `yaml:"params,omitempty"`
}
