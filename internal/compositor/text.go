package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type faceKey struct {
	bold bool
	px   int
}

// fontSet caches sized faces. font.Face is not safe for concurrent use, so
// callers hold the painter lock while drawing.
type fontSet struct {
	regular *opentype.Font
	bold    *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

func loadFonts() (*fontSet, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &fontSet{regular: regular, bold: bold, faces: make(map[faceKey]font.Face)}, nil
}

func (fs *fontSet) face(bold bool, px int) (font.Face, error) {
	if px < 6 {
		px = 6
	}
	key := faceKey{bold, px}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if f, ok := fs.faces[key]; ok {
		return f, nil
	}

	src := fs.regular
	if bold {
		src = fs.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    float64(px),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("face %dpx: %w", px, err)
	}
	fs.faces[key] = f
	return f, nil
}

// blockStyle controls how a run of words is rendered into a text block.
type blockStyle struct {
	maxWidth     int
	box          *color.RGBA
	stroke       color.RGBA
	strokeWidth  int
	shadow       bool
	glowColor    color.RGBA
	glow         float64 // block-wide glow strength
	hueRotate    float64
	visibleRunes float64 // share of runes drawn
	waveOffset   func(i int) int
}

// renderBlock lays words out centred on wrapped lines and returns the block
// on a transparent raster.
func renderBlock(face font.Face, words []Word, st blockStyle) *image.RGBA {
	if len(words) == 0 {
		return nil
	}
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	lineH := metrics.Height.Ceil()
	gap := lineH / 6
	space := font.MeasureString(face, " ").Ceil()

	widths := make([]int, len(words))
	for i, w := range words {
		widths[i] = font.MeasureString(face, w.Text).Ceil()
	}

	// greedy wrap
	var lines [][]int
	var lineW []int
	var cur []int
	curW := 0
	for i, w := range widths {
		next := curW + w
		if len(cur) > 0 {
			next += space
		}
		if len(cur) > 0 && st.maxWidth > 0 && next > st.maxWidth {
			lines = append(lines, cur)
			lineW = append(lineW, curW)
			cur, curW = nil, 0
			next = w
		}
		cur = append(cur, i)
		curW = next
	}
	lines = append(lines, cur)
	lineW = append(lineW, curW)

	maxW := 0
	for _, w := range lineW {
		if w > maxW {
			maxW = w
		}
	}

	wave := 0
	if st.waveOffset != nil {
		for i := range words {
			if d := abs(st.waveOffset(i)); d > wave {
				wave = d
			}
		}
	}
	pad := st.strokeWidth + lineH/4 + 4
	bw := maxW + 2*pad
	bh := len(lines)*lineH + (len(lines)-1)*gap + 2*pad + 2*wave

	block := image.NewRGBA(image.Rect(0, 0, bw, bh))
	if st.box != nil {
		draw.Draw(block, block.Bounds(), image.NewUniform(toNRGBA(*st.box, 1)), image.Point{}, draw.Src)
	}

	remaining := math.MaxInt
	if st.visibleRunes < 1 {
		total := 0
		for _, w := range words {
			total += utf8.RuneCountInString(w.Text)
		}
		remaining = int(math.Floor(st.visibleRunes * float64(total)))
	}

	for li, idx := range lines {
		x := pad + (maxW-lineW[li])/2
		y := pad + wave + li*(lineH+gap) + ascent
		for _, i := range idx {
			w := words[i]
			text := w.Text
			if remaining <= 0 {
				return block
			}
			if n := utf8.RuneCountInString(text); n > remaining {
				text = string([]rune(text)[:remaining])
			}
			remaining -= utf8.RuneCountInString(text)

			dy := 0
			if st.waveOffset != nil {
				dy = st.waveOffset(i)
			}
			col := w.Color
			if st.hueRotate != 0 {
				col = hueRotateColor(col, st.hueRotate)
			}
			glow := st.glow
			if w.Glow && glow < 1 {
				glow = 1
			}
			drawGlyphs(block, face, text, x, y+dy, col, w.Opacity, glow, st)
			x += widths[i] + space
		}
	}
	return block
}

var ring8 = [][2]float64{{1, 0}, {0.707, 0.707}, {0, 1}, {-0.707, 0.707}, {-1, 0}, {-0.707, -0.707}, {0, -1}, {0.707, -0.707}}

func drawGlyphs(dst *image.RGBA, face font.Face, text string, x, y int, col color.RGBA, opacity, glow float64, st blockStyle) {
	put := func(c color.Color, dx, dy int) {
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  fixed.P(x+dx, y+dy),
		}
		d.DrawString(text)
	}

	if glow > 0 {
		r := float64(st.strokeWidth + 3)
		c := toNRGBA(st.glowColor, 0.3*glow*opacity)
		for _, o := range ring8 {
			put(c, int(math.Round(o[0]*r)), int(math.Round(o[1]*r)))
		}
	}
	if st.shadow {
		off := st.strokeWidth + 1
		put(color.NRGBA{0, 0, 0, uint8(128 * opacity)}, off, off)
	}
	if st.strokeWidth > 0 {
		c := toNRGBA(st.stroke, opacity)
		r := float64(st.strokeWidth)
		for _, o := range ring8 {
			put(c, int(math.Round(o[0]*r)), int(math.Round(o[1]*r)))
		}
	}
	put(toNRGBA(col, opacity), 0, 0)
}

// toNRGBA treats c as straight alpha and scales its alpha by opacity.
func toNRGBA(c color.RGBA, opacity float64) color.NRGBA {
	a := float64(c.A) * clamp01(opacity)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(a + 0.5)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
