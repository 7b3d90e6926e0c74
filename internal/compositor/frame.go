package compositor

import (
	"image/color"

	"github.com/ivlev/talkreel/internal/effects"
	"github.com/ivlev/talkreel/internal/model"
)

// Layer identifies one compositor layer. Layers are drawn in ascending order.
type Layer int

const (
	LayerBackground Layer = iota + 1
	LayerSource
	LayerCutaway
	LayerGradient
	LayerTransition
	LayerVignette
	LayerLetterbox
	LayerCaption
	LayerWatermark
	LayerCTA
)

var layerNames = map[Layer]string{
	LayerBackground: "background",
	LayerSource:     "source",
	LayerCutaway:    "cutaway",
	LayerGradient:   "gradient",
	LayerTransition: "transition",
	LayerVignette:   "vignette",
	LayerLetterbox:  "letterbox",
	LayerCaption:    "caption",
	LayerWatermark:  "watermark",
	LayerCTA:        "cta",
}

func (l Layer) String() string {
	if s, ok := layerNames[l]; ok {
		return s
	}
	return "unknown"
}

// Frame is the complete description of one composited frame. Both drivers
// consume it: preview publishes it, export paints it.
type Frame struct {
	Instant    float64                  `json:"instant"`
	Width      int                      `json:"width"`
	Height     int                      `json:"height"`
	Background color.RGBA               `json:"background"`
	Source     effects.PartialTransform `json:"source"`
	Cutaway    *CutawayLayer            `json:"cutaway,omitempty"`
	Gradient   bool                     `json:"gradient,omitempty"`
	Caption    *CaptionLayer            `json:"caption,omitempty"`
	Watermark  *WatermarkLayer          `json:"watermark,omitempty"`
	CTA        *CTALayer                `json:"cta,omitempty"`
}

// Layers lists the layers present in f, in draw order.
func (f Frame) Layers() []Layer {
	out := []Layer{LayerBackground, LayerSource}
	if f.Cutaway != nil {
		out = append(out, LayerCutaway)
	}
	if f.Gradient {
		out = append(out, LayerGradient)
	}
	if len(f.Source.Overlays) > 0 {
		out = append(out, LayerTransition)
	}
	if f.Source.Vignette > 0 {
		out = append(out, LayerVignette)
	}
	if f.Source.Clip.Top > 0 || f.Source.Clip.Bottom > 0 {
		out = append(out, LayerLetterbox)
	}
	if f.Caption != nil {
		out = append(out, LayerCaption)
	}
	if f.Watermark != nil {
		out = append(out, LayerWatermark)
	}
	if f.CTA != nil {
		out = append(out, LayerCTA)
	}
	return out
}

// CutawayLayer places one cutaway image.
type CutawayLayer struct {
	ID       string                `json:"id"`
	Source   string                `json:"source"`
	Position model.PositionMode    `json:"position"`
	Box      Box                   `json:"box"`
	Motion   effects.CutawayMotion `json:"motion"`
}

// Word is one rendered caption word.
type Word struct {
	Text     string     `json:"text"`
	Phase    WordPhase  `json:"phase"`
	Color    color.RGBA `json:"color"`
	Opacity  float64    `json:"opacity"`
	Glow     bool       `json:"glow,omitempty"`
	Emphasis bool       `json:"emphasis,omitempty"`
}

// CaptionLayer is the caption block: an optional keyword label above the
// subtitle words.
type CaptionLayer struct {
	ID           string                `json:"id"`
	Label        string                `json:"label,omitempty"`
	ShowSubtitle bool                  `json:"showSubtitle"`
	Words        []Word                `json:"words,omitempty"`
	ActiveWord   int                   `json:"activeWord"`
	Motion       effects.CaptionMotion `json:"motion"`
	FontSize     float64               `json:"fontSize"` // fraction of canvas width
	Bold         bool                  `json:"bold"`
	Stroke       color.RGBA            `json:"stroke"`
	StrokeWidth  float64               `json:"strokeWidth"` // fraction of canvas width
	Shadow       bool                  `json:"shadow"`
	Box          *color.RGBA           `json:"box,omitempty"`
	GlowColor    color.RGBA            `json:"glowColor"`
	LabelColor   color.RGBA            `json:"labelColor"`
	CenterX      float64               `json:"centerX"`
	CenterY      float64               `json:"centerY"`
}

// WatermarkLayer is the persistent creator mark.
type WatermarkLayer struct {
	Text  string     `json:"text"`
	Color color.RGBA `json:"color"`
	Alpha float64    `json:"alpha"`
}

// CTALayer is the closing call-to-action card.
type CTALayer struct {
	Template model.CTATemplate `json:"template"`
	Text     string            `json:"text"`
	URL      string            `json:"url,omitempty"`
	Progress float64           `json:"progress"`
	Accent   color.RGBA        `json:"accent"`
}
