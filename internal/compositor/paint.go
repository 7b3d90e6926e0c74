package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/talkreel/internal/effects"
	"github.com/ivlev/talkreel/internal/model"
	"github.com/ivlev/talkreel/internal/system"
)

const (
	gradientFrom   = 0.55 // share of height where the cinematic gradient starts
	gradientAlpha  = 0.7
	captionMaxW    = 0.86
	labelScale     = 1.6
	watermarkSize  = 13.0 // reference px
	ctaSize        = 20.0 // reference px
	ctaWidth       = 0.78
	ctaCenterY     = 0.80
	ctaSlide       = 0.25 // share of the CTA window spent sliding in
	qrSize         = 0.22 // fraction of canvas width
	brandingMargin = 0.04
)

// Assets resolves a cutaway source reference to its decoded image.
type Assets interface {
	Image(source string) (image.Image, bool)
}

// AssetMap is an in-memory Assets.
type AssetMap map[string]image.Image

func (m AssetMap) Image(source string) (image.Image, bool) {
	img, ok := m[source]
	return img, ok && img != nil
}

// Painter rasterises Frames. A Painter may be shared, painting is serialised.
type Painter struct {
	mu    sync.Mutex
	fonts *fontSet
	qr    map[string]image.Image
}

// NewPainter loads the caption fonts.
func NewPainter() (*Painter, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	return &Painter{fonts: fonts, qr: make(map[string]image.Image)}, nil
}

// Render paints f onto a pooled canvas. Release it with system.PutImage.
func (p *Painter) Render(f Frame, src image.Image, assets Assets) (*image.RGBA, error) {
	dst := system.GetImage(image.Rect(0, 0, f.Width, f.Height))
	if err := p.Paint(dst, f, src, assets); err != nil {
		system.PutImage(dst)
		return nil, err
	}
	return dst, nil
}

// Paint draws every layer of f onto dst in fixed order. src is the source
// video frame and may be nil. dst must have its origin at (0, 0).
func (p *Painter) Paint(dst *image.RGBA, f Frame, src image.Image, assets Assets) error {
	if dst.Bounds().Min != (image.Point{}) {
		return fmt.Errorf("paint: canvas origin must be zero, got %v", dst.Bounds().Min)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// 1. background
	draw.Draw(dst, dst.Bounds(), image.NewUniform(f.Background), image.Point{}, draw.Src)

	// 2. source
	if src != nil {
		paintSource(dst, f.Source, src)
	}

	// 3. cutaway
	if f.Cutaway != nil && assets != nil {
		if img, ok := assets.Image(f.Cutaway.Source); ok {
			paintCutaway(dst, f.Cutaway, img)
		}
	}

	// 4. cinematic gradient
	if f.Gradient {
		paintGradient(dst)
	}

	// 5. transitions
	for _, o := range f.Source.Overlays {
		paintOverlay(dst, o)
	}

	// 6. vignette
	if f.Source.Vignette > 0 {
		paintVignette(dst, f.Source.Vignette)
	}

	// 7. letterbox
	paintLetterbox(dst, f.Source.Clip)

	// 8. caption
	if f.Caption != nil {
		if err := p.paintCaption(dst, f.Caption); err != nil {
			return err
		}
	}

	// 9. watermark
	if f.Watermark != nil {
		if err := p.paintWatermark(dst, f.Watermark); err != nil {
			return err
		}
	}

	// 10. call to action
	if f.CTA != nil {
		if err := p.paintCTA(dst, f.CTA); err != nil {
			return err
		}
	}
	return nil
}

// coverAff maps the centre-cropped region of src onto a w x h area, scaled by
// s about the area centre and shifted by (tx, ty) fractions of the area.
func coverAff(src image.Rectangle, w, h int, s, tx, ty float64) (f64.Aff3, image.Rectangle) {
	crop := CoverRect(src.Dx(), src.Dy(), w, h).Add(src.Min)
	kx := float64(w) / float64(crop.Dx())
	ky := float64(h) / float64(crop.Dy())
	cx, cy := float64(w)/2, float64(h)/2
	return f64.Aff3{
		s * kx, 0, cx*(1-s) + tx*float64(w) - s*kx*float64(crop.Min.X),
		0, s * ky, cy*(1-s) + ty*float64(h) - s*ky*float64(crop.Min.Y),
	}, crop
}

func paintSource(dst *image.RGBA, t effects.PartialTransform, src image.Image) {
	b := dst.Bounds()
	if src.Bounds().Empty() {
		return
	}
	aff, crop := coverAff(src.Bounds(), b.Dx(), b.Dy(), t.Scale, t.TranslateX, t.TranslateY)
	draw.ApproxBiLinear.Transform(dst, aff, src, crop, draw.Over, nil)

	applyFilter(dst, t.Filter)
	applyChannelShift(dst, int(math.Round(t.ChannelShift*float64(b.Dx()))))
}

func paintCutaway(dst *image.RGBA, l *CutawayLayer, img image.Image) {
	m := l.Motion
	if m.Opacity <= 0 || img.Bounds().Empty() {
		return
	}
	W, H := dst.Bounds().Dx(), dst.Bounds().Dy()
	box := l.Box.Pixels(W, H).Intersect(dst.Bounds())
	if box.Empty() {
		return
	}
	bw, bh := box.Dx(), box.Dy()

	layer := system.GetImage(image.Rect(0, 0, bw, bh))
	defer system.PutImage(layer)
	clear(layer.Pix)

	aff, crop := coverAff(img.Bounds(), bw, bh, m.Scale, m.TranslateX, m.TranslateY)
	draw.ApproxBiLinear.Transform(layer, aff, img, crop, draw.Src, nil)

	boxBlur(layer, int(math.Round(m.Blur*float64(W))))
	if m.Reveal < 1 {
		band := int(math.Round(float64(bh) * clamp01(m.Reveal) / 2))
		top, bottom := bh/2-band, bh/2+band
		for y := 0; y < bh; y++ {
			if y < top || y >= bottom {
				off := layer.PixOffset(0, y)
				clear(layer.Pix[off : off+bw*4])
			}
		}
	}
	applyChannelShift(layer, int(math.Round(m.ChannelShift*float64(W))))

	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(clamp01(m.Opacity) * 255))})
	draw.DrawMask(dst, box, layer, image.Point{}, mask, image.Point{}, draw.Over)
}

func paintGradient(dst *image.RGBA) {
	b := dst.Bounds()
	h := b.Dy()
	y0 := int(float64(h) * gradientFrom)
	span := float64(h - y0)
	for y := y0; y < b.Max.Y; y++ {
		k := 1 - gradientAlpha*float64(y-y0)/span
		off := dst.PixOffset(0, y)
		row := dst.Pix[off : off+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			row[i] = uint8(float64(row[i]) * k)
			row[i+1] = uint8(float64(row[i+1]) * k)
			row[i+2] = uint8(float64(row[i+2]) * k)
		}
	}
}

func paintOverlay(dst *image.RGBA, o effects.Overlay) {
	if o.Alpha <= 0 || o.X1 <= o.X0 {
		return
	}
	b := dst.Bounds()
	x0 := int(math.Round(o.X0 * float64(b.Dx())))
	x1 := int(math.Round(o.X1 * float64(b.Dx())))
	r := image.Rect(x0, 0, x1, b.Dy())
	draw.Draw(dst, r, image.NewUniform(toNRGBA(o.Color, o.Alpha)), image.Point{}, draw.Over)
}

func paintVignette(dst *image.RGBA, strength float64) {
	b := dst.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	for y := 0; y < b.Dy(); y++ {
		ny := (float64(y)+0.5)/h - 0.5
		off := dst.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			nx := (float64(x)+0.5)/w - 0.5
			d := math.Sqrt(nx*nx+ny*ny) / math.Sqrt2 * 2
			k := 1 - clamp01(strength)*smoothstep(0.5, 1, d)
			i := off + x*4
			dst.Pix[i] = uint8(float64(dst.Pix[i]) * k)
			dst.Pix[i+1] = uint8(float64(dst.Pix[i+1]) * k)
			dst.Pix[i+2] = uint8(float64(dst.Pix[i+2]) * k)
		}
	}
}

func smoothstep(e0, e1, x float64) float64 {
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

func paintLetterbox(dst *image.RGBA, c effects.Clip) {
	b := dst.Bounds()
	black := image.NewUniform(color.RGBA{0, 0, 0, 255})
	if top := int(math.Round(c.Top * float64(b.Dy()))); top > 0 {
		draw.Draw(dst, image.Rect(0, 0, b.Dx(), top), black, image.Point{}, draw.Src)
	}
	if bottom := int(math.Round(c.Bottom * float64(b.Dy()))); bottom > 0 {
		draw.Draw(dst, image.Rect(0, b.Dy()-bottom, b.Dx(), b.Dy()), black, image.Point{}, draw.Src)
	}
}

func (p *Painter) paintCaption(dst *image.RGBA, l *CaptionLayer) error {
	m := l.Motion
	if m.Opacity <= 0 || m.ScaleY*m.Scale <= 1e-3 {
		return nil
	}
	W, H := dst.Bounds().Dx(), dst.Bounds().Dy()
	px := int(math.Round(l.FontSize * float64(W)))
	st := blockStyle{
		maxWidth:     int(captionMaxW * float64(W)),
		box:          l.Box,
		stroke:       l.Stroke,
		strokeWidth:  int(math.Round(l.StrokeWidth * float64(W))),
		shadow:       l.Shadow,
		glowColor:    l.GlowColor,
		glow:         m.Glow,
		hueRotate:    m.HueRotate,
		visibleRunes: m.VisibleRunes,
	}
	if m.WaveAmp != 0 {
		st.waveOffset = func(i int) int { return int(math.Round(m.WaveOffset(i) * float64(H))) }
	}

	var sub *image.RGBA
	if l.ShowSubtitle && len(l.Words) > 0 {
		face, err := p.fonts.face(l.Bold, px)
		if err != nil {
			return err
		}
		sub = renderBlock(face, l.Words, st)
	}

	var label *image.RGBA
	if l.Label != "" {
		face, err := p.fonts.face(true, int(float64(px)*labelScale))
		if err != nil {
			return err
		}
		box := l.LabelColor
		words := make([]Word, 0, 4)
		for _, w := range SplitWords(l.Label) {
			words = append(words, Word{Text: w, Color: color.RGBA{255, 255, 255, 255}, Opacity: 1})
		}
		label = renderBlock(face, words, blockStyle{
			maxWidth:     st.maxWidth,
			box:          &box,
			stroke:       l.Stroke,
			strokeWidth:  st.strokeWidth / 2,
			glowColor:    l.GlowColor,
			visibleRunes: 1,
		})
	}

	cx := l.CenterX * float64(W)
	cy := l.CenterY * float64(H)
	sy := m.Scale * m.ScaleY
	if label != nil {
		ly := cy
		if sub != nil {
			ly = cy - sy*float64(sub.Bounds().Dy()+label.Bounds().Dy())/2
		}
		compositeBlock(dst, label, cx, ly, m.Scale, sy, m.Opacity)
	}
	if sub != nil {
		compositeBlock(dst, sub, cx, cy, m.Scale, sy, m.Opacity)
	}
	return nil
}

// compositeBlock draws block centred on (cx, cy), scaled by (sx, sy).
func compositeBlock(dst *image.RGBA, block *image.RGBA, cx, cy, sx, sy, opacity float64) {
	bw, bh := float64(block.Bounds().Dx()), float64(block.Bounds().Dy())
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(clamp01(opacity) * 255))})

	if sx == 1 && sy == 1 {
		at := image.Pt(int(math.Round(cx-bw/2)), int(math.Round(cy-bh/2)))
		r := block.Bounds().Add(at)
		draw.DrawMask(dst, r, block, image.Point{}, mask, image.Point{}, draw.Over)
		return
	}
	aff := f64.Aff3{
		sx, 0, cx - sx*bw/2,
		0, sy, cy - sy*bh/2,
	}
	draw.ApproxBiLinear.Transform(dst, aff, block, block.Bounds(), draw.Over, &draw.Options{
		SrcMask: mask,
	})
}

func (p *Painter) paintWatermark(dst *image.RGBA, l *WatermarkLayer) error {
	W, H := dst.Bounds().Dx(), dst.Bounds().Dy()
	face, err := p.fonts.face(true, int(math.Round(watermarkSize/effects.ReferenceWidth*float64(W))))
	if err != nil {
		return err
	}
	block := renderBlock(face, []Word{{Text: l.Text, Color: l.Color, Opacity: 1}}, blockStyle{
		shadow:       true,
		visibleRunes: 1,
	})
	margin := brandingMargin * float64(W)
	bw, bh := float64(block.Bounds().Dx()), float64(block.Bounds().Dy())
	compositeBlock(dst, block, float64(W)-margin-bw/2, float64(H)*0.93-bh/2, 1, 1, l.Alpha)
	return nil
}

func (p *Painter) paintCTA(dst *image.RGBA, l *CTALayer) error {
	W, H := dst.Bounds().Dx(), dst.Bounds().Dy()
	k := clamp01(l.Progress / ctaSlide)
	k = 1 - math.Pow(1-k, 3)
	if k <= 0 {
		return nil
	}

	face, err := p.fonts.face(true, int(math.Round(ctaSize/effects.ReferenceWidth*float64(W))))
	if err != nil {
		return err
	}
	cardW := int(ctaWidth * float64(W))
	pad := cardW / 20

	var code image.Image
	textW := cardW - 2*pad
	if l.Template == model.CTAQR && l.URL != "" {
		code = p.qrCode(l.URL, int(qrSize*float64(W)))
		if code != nil {
			textW -= code.Bounds().Dx() + pad
		}
	}

	words := make([]Word, 0, 8)
	for _, w := range SplitWords(l.Text) {
		words = append(words, Word{Text: w, Color: color.RGBA{255, 255, 255, 255}, Opacity: 1})
	}
	text := renderBlock(face, words, blockStyle{maxWidth: textW, visibleRunes: 1})

	cardH := 2 * pad
	inner := 0
	if text != nil {
		inner = text.Bounds().Dy()
	}
	if code != nil && code.Bounds().Dy() > inner {
		inner = code.Bounds().Dy()
	}
	cardH += inner

	card := image.NewRGBA(image.Rect(0, 0, cardW, cardH))
	draw.Draw(card, card.Bounds(), image.NewUniform(toNRGBA(l.Accent, 1)), image.Point{}, draw.Src)
	textX := pad
	if code != nil {
		cb := code.Bounds()
		at := image.Pt(pad, (cardH-cb.Dy())/2)
		draw.Draw(card, cb.Sub(cb.Min).Add(at), code, cb.Min, draw.Src)
		textX += cb.Dx() + pad
	}
	if text != nil {
		tb := text.Bounds()
		at := image.Pt(textX+(cardW-textX-pad-tb.Dx())/2, (cardH-tb.Dy())/2)
		draw.Draw(card, tb.Add(at), text, image.Point{}, draw.Over)
	}

	cy := ctaCenterY*float64(H) + (1-k)*ctaSlide*float64(H)
	compositeBlock(dst, card, float64(W)/2, cy, 1, 1, k)
	return nil
}

func (p *Painter) qrCode(url string, size int) image.Image {
	key := fmt.Sprintf("%s@%d", url, size)
	if img, ok := p.qr[key]; ok {
		return img
	}
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		p.qr[key] = nil
		return nil
	}
	img := q.Image(size)
	p.qr[key] = img
	return img
}
