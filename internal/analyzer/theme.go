package analyzer

import (
	"image"

	"github.com/ivlev/talkreel/internal/model"
)

const (
	captionBandTop    = 0.60
	captionBandBottom = 0.85
	brightLuma        = 0.55 // mean luminance above which the light palette is used
	glareLuma         = 0.75 // white text needs a box above this
	busyBand          = 0.25 // share of the caption band covered by detected blocks
)

// Report summarises one analysed frame.
type Report struct {
	MeanLuma float64
	BandBusy float64
	Blocks   []Block
}

// Analyze measures frame brightness and how cluttered the caption band is.
func Analyze(img image.Image, d Detector) (Report, error) {
	gray, _ := toGrayscale(img, sampleWidth)
	r := Report{MeanLuma: meanLuma(gray)}

	blocks, err := d.Detect(img)
	if err != nil {
		return r, err
	}
	r.Blocks = blocks

	b := img.Bounds()
	band := image.Rect(
		b.Min.X, b.Min.Y+int(float64(b.Dy())*captionBandTop),
		b.Max.X, b.Min.Y+int(float64(b.Dy())*captionBandBottom),
	)
	if area := band.Dx() * band.Dy(); area > 0 {
		covered := 0
		for _, blk := range blocks {
			in := blk.Rect.Intersect(band)
			covered += in.Dx() * in.Dy()
		}
		r.BandBusy = min(1, float64(covered)/float64(area))
	}
	return r, nil
}

// DeriveTheme picks the caption palette for a video from a sampled frame.
// It runs once per video; the result is passed to the compositor.
func DeriveTheme(img image.Image, d Detector) (model.ThemeConfig, error) {
	if img == nil {
		return model.DarkTheme(), nil
	}
	r, err := Analyze(img, d)
	if err != nil {
		return model.DarkTheme(), err
	}

	theme := model.DarkTheme()
	if r.MeanLuma > brightLuma {
		theme = model.LightTheme()
	}
	theme.CaptionBoxes = r.BandBusy > busyBand || r.MeanLuma > glareLuma
	return theme, nil
}
