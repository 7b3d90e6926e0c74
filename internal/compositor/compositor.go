package compositor

import (
	"image/color"
	"strings"

	"github.com/ivlev/talkreel/internal/effects"
	"github.com/ivlev/talkreel/internal/model"
)

const (
	defaultFontSize    = 22.0 // reference px
	defaultStrokeWidth = 2.0  // reference px
	pipWidth           = 0.30
	pipMargin          = 0.04
	insetWidth         = 0.80
)

var anchorY = map[model.Anchor]float64{
	model.AnchorTop:    0.18,
	model.AnchorCenter: 0.50,
	model.AnchorBottom: 0.72,
}

// Compositor merges every entity active at an instant into one Frame.
type Compositor struct {
	Theme      model.ThemeConfig
	Width      int
	Height     int
	Background color.RGBA
}

// New returns a compositor for a width x height canvas.
func New(theme model.ThemeConfig, width, height int) *Compositor {
	return &Compositor{
		Theme:      theme,
		Width:      width,
		Height:     height,
		Background: color.RGBA{0, 0, 0, 255},
	}
}

// Describe evaluates p at instant. duration is the resolved length of the
// source and gates the branding layers.
func (c *Compositor) Describe(p *model.Project, instant, duration float64) Frame {
	f := Frame{
		Instant:    instant,
		Width:      c.Width,
		Height:     c.Height,
		Background: c.Background,
		Source:     effects.EvaluateAll(p.Effects, instant),
	}

	if cw, ok := p.ActiveCutaway(instant); ok {
		f.Cutaway = &CutawayLayer{
			ID:       cw.ID,
			Source:   cw.Source,
			Position: cw.Position,
			Box:      c.cutawayBox(cw.Position),
			Motion:   effects.EvaluateCutaway(*cw, instant),
		}
		f.Gradient = cw.Cinematic
	}

	if cp, ok := p.ActiveCaption(instant); ok {
		f.Caption = c.describeCaption(*cp, instant)
	}

	b := p.Branding
	if b.WatermarkVisible(instant, duration) {
		if text := watermarkText(b); text != "" {
			f.Watermark = &WatermarkLayer{Text: text, Color: c.Theme.Text, Alpha: c.Theme.WatermarkAlpha}
		}
	}
	if b.CTAVisible(instant, duration) {
		f.CTA = &CTALayer{
			Template: b.CTA,
			Text:     ctaText(b),
			URL:      b.CTAURL,
			Progress: b.CTAProgress(instant, duration),
			Accent:   c.Theme.Accent,
		}
	}
	return f
}

func (c *Compositor) cutawayBox(mode model.PositionMode) Box {
	aspect := float64(c.Width) / float64(c.Height)
	switch mode {
	case model.PositionPiP:
		h := pipWidth * aspect * 4 / 3
		return Box{X: 1 - pipMargin - pipWidth, Y: pipMargin * aspect, W: pipWidth, H: h}
	case model.PositionInset:
		h := insetWidth * aspect * 9 / 16
		return Box{X: (1 - insetWidth) / 2, Y: (1 - h) / 2, W: insetWidth, H: h}
	case model.PositionSplit:
		return Box{X: 0, Y: 0, W: 1, H: 0.5}
	default:
		return Box{X: 0, Y: 0, W: 1, H: 1}
	}
}

func (c *Compositor) describeCaption(cp model.Caption, instant float64) *CaptionLayer {
	th := c.Theme
	st := cp.Style

	size := st.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	strokeWidth := st.StrokeWidth
	if strokeWidth <= 0 {
		strokeWidth = defaultStrokeWidth
	}
	y, ok := anchorY[st.Position]
	if !ok {
		y = anchorY[model.AnchorBottom]
	}

	m := effects.EvaluateCaption(cp, instant)
	layer := &CaptionLayer{
		ID:           cp.ID,
		Label:        strings.TrimSpace(cp.KeywordLabel),
		ShowSubtitle: !IsDuplicateLabel(cp.KeywordLabel, cp.Text),
		ActiveWord:   ActiveWordIndex(cp, instant),
		Motion:       m,
		FontSize:     size / effects.ReferenceWidth,
		Bold:         st.Bold,
		Stroke:       model.ColorOr(st.StrokeColor, th.Stroke),
		StrokeWidth:  strokeWidth / effects.ReferenceWidth,
		Shadow:       st.Shadow,
		GlowColor:    th.Glow,
		LabelColor:   th.Accent,
		CenterX:      0.5 + st.OffsetX + m.TranslateX,
		CenterY:      y + st.OffsetY + m.TranslateY,
	}
	if st.Background != "" {
		box := model.ColorOr(st.Background, th.Box)
		layer.Box = &box
	} else if th.CaptionBoxes {
		box := th.Box
		layer.Box = &box
	}

	if layer.ShowSubtitle {
		layer.Words = c.describeWords(cp, layer.ActiveWord)
	}
	return layer
}

func (c *Compositor) describeWords(cp model.Caption, active int) []Word {
	th := c.Theme
	base := model.ColorOr(cp.Style.Color, th.Text)
	karaoke := cp.Animation == model.CaptionKaraoke || cp.Animation == model.CaptionHighlightWord || cp.Animation == ""

	texts := SplitWords(cp.Text)
	words := make([]Word, len(texts))
	for i, text := range texts {
		w := Word{Text: text, Color: base, Opacity: 1, Phase: WordFuture}
		switch {
		case i < active:
			w.Phase = WordPast
		case i == active:
			w.Phase = WordActive
		}

		if karaoke {
			switch w.Phase {
			case WordPast:
				if cp.Animation != model.CaptionHighlightWord {
					w.Opacity = th.PastOpacity
				}
			case WordActive:
				w.Color = th.Active
				w.Glow = true
			case WordFuture:
				if cp.Animation != model.CaptionHighlightWord {
					w.Opacity = th.FutureOpacity
				}
			}
		}

		if isEmphasis(text, cp.Emphasis) {
			w.Emphasis = true
			w.Color = th.Emphasis
		}
		words[i] = w
	}
	return words
}

func watermarkText(b model.Branding) string {
	if name := strings.TrimSpace(b.DisplayName); name != "" {
		if strings.HasPrefix(name, "@") {
			return name
		}
		return "@" + name
	}
	return strings.TrimSpace(b.Title)
}

func ctaText(b model.Branding) string {
	if b.CTAText != "" {
		return b.CTAText
	}
	switch b.CTA {
	case model.CTAFollow:
		if b.DisplayName != "" {
			return "Follow " + watermarkText(b)
		}
		return "Follow for more"
	case model.CTASubscribe:
		return "Subscribe"
	case model.CTALink:
		if b.CTAURL != "" {
			return b.CTAURL
		}
		return "Link in bio"
	case model.CTAQR:
		return "Scan to learn more"
	}
	return ""
}
