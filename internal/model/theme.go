package model

import (
	"fmt"
	"image/color"
	"strings"
)

// ThemeConfig is the caption and branding palette. It is derived once per
// video and passed explicitly to the compositor.
type ThemeConfig struct {
	Name           string
	Text           color.RGBA
	Active         color.RGBA // active karaoke word
	Glow           color.RGBA
	Emphasis       color.RGBA
	Stroke         color.RGBA
	Box            color.RGBA // caption background when CaptionBoxes is set
	Accent         color.RGBA // branding and keyword label
	CaptionBoxes   bool
	PastOpacity    float64
	FutureOpacity  float64
	WatermarkAlpha float64
}

// DarkTheme suits dark or low-key footage.
func DarkTheme() ThemeConfig {
	return ThemeConfig{
		Name:           "dark",
		Text:           color.RGBA{255, 255, 255, 255},
		Active:         color.RGBA{255, 230, 0, 255},
		Glow:           color.RGBA{255, 200, 0, 255},
		Emphasis:       color.RGBA{0, 229, 255, 255},
		Stroke:         color.RGBA{0, 0, 0, 255},
		Box:            color.RGBA{0, 0, 0, 150},
		Accent:         color.RGBA{255, 64, 129, 255},
		PastOpacity:    0.75,
		FutureOpacity:  0.6,
		WatermarkAlpha: 0.55,
	}
}

// LightTheme suits bright footage.
func LightTheme() ThemeConfig {
	return ThemeConfig{
		Name:           "light",
		Text:           color.RGBA{255, 255, 255, 255},
		Active:         color.RGBA{255, 92, 0, 255},
		Glow:           color.RGBA{255, 120, 40, 255},
		Emphasis:       color.RGBA{124, 77, 255, 255},
		Stroke:         color.RGBA{20, 20, 20, 255},
		Box:            color.RGBA{0, 0, 0, 170},
		Accent:         color.RGBA{41, 121, 255, 255},
		PastOpacity:    0.8,
		FutureOpacity:  0.6,
		WatermarkAlpha: 0.6,
	}
}

// ParseHexColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var c color.RGBA
	c.A = 255
	var err error
	switch len(s) {
	case 3:
		_, err = fmt.Sscanf(s, "%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R *= 17
		c.G *= 17
		c.B *= 17
	case 6:
		_, err = fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 8:
		_, err = fmt.Sscanf(s, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = fmt.Errorf("invalid color %q", s)
	}
	return c, err
}

// ColorOr parses s, returning def when s is empty or malformed.
func ColorOr(s string, def color.RGBA) color.RGBA {
	if s == "" {
		return def
	}
	c, err := ParseHexColor(s)
	if err != nil {
		return def
	}
	return c
}
