package model

// CTATemplate selects how the closing call-to-action is drawn.
type CTATemplate string

const (
	CTANone      CTATemplate = ""
	CTAFollow    CTATemplate = "follow"
	CTASubscribe CTATemplate = "subscribe"
	CTALink      CTATemplate = "link"
	CTAQR        CTATemplate = "qr"
)

const (
	// BrandingMinDuration is the shortest video that gets any branding.
	BrandingMinDuration = 6.0
	watermarkFrom       = 2.0
	watermarkTailGap    = 3.5
	ctaTail             = 3.0
)

// Branding is the static, per-video branding configuration.
type Branding struct {
	DisplayName string      `yaml:"displayName,omitempty"`
	Title       string      `yaml:"title,omitempty"`
	CTA         CTATemplate `yaml:"cta,omitempty"`
	CTAText     string      `yaml:"ctaText,omitempty"`
	CTAURL      string      `yaml:"ctaUrl,omitempty"`
	Watermark   bool        `yaml:"watermark,omitempty"`
}

// WatermarkVisible reports whether the watermark shows at instant.
func (b Branding) WatermarkVisible(instant, duration float64) bool {
	if !b.Watermark || duration < BrandingMinDuration {
		return false
	}
	return instant >= watermarkFrom && instant <= duration-watermarkTailGap
}

// CTAVisible reports whether the call-to-action shows at instant.
func (b Branding) CTAVisible(instant, duration float64) bool {
	if b.CTA == CTANone || duration < BrandingMinDuration {
		return false
	}
	return instant >= duration-ctaTail
}

// CTAProgress is how far into the CTA window instant is, in [0, 1].
func (b Branding) CTAProgress(instant, duration float64) float64 {
	return Clamp01((instant - (duration - ctaTail)) / ctaTail)
}
