package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/ivlev/talkreel/internal/effects"
)

// colorMatrix is a 3x4 affine colour transform on [0,1] channels:
// out = M[:, :3] * rgb + M[:, 3].
type colorMatrix [3][4]float64

func identityMatrix() colorMatrix {
	return colorMatrix{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}
}

// then returns the matrix applying m first and n second.
func (m colorMatrix) then(n colorMatrix) colorMatrix {
	var out colorMatrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			v := 0.0
			for k := 0; k < 3; k++ {
				v += n[r][k] * m[k][c]
			}
			if c == 3 {
				v += n[r][3]
			}
			out[r][c] = v
		}
	}
	return out
}

func opMatrix(op effects.FilterOp) colorMatrix {
	a := op.Amount
	switch op.Kind {
	case effects.FilterBrightness:
		return colorMatrix{{a, 0, 0, 0}, {0, a, 0, 0}, {0, 0, a, 0}}
	case effects.FilterContrast:
		o := 0.5 - 0.5*a
		return colorMatrix{{a, 0, 0, o}, {0, a, 0, o}, {0, 0, a, o}}
	case effects.FilterSaturate:
		return colorMatrix{
			{0.213 + 0.787*a, 0.715 - 0.715*a, 0.072 - 0.072*a, 0},
			{0.213 - 0.213*a, 0.715 + 0.285*a, 0.072 - 0.072*a, 0},
			{0.213 - 0.213*a, 0.715 - 0.715*a, 0.072 + 0.928*a, 0},
		}
	case effects.FilterGrayscale:
		k := 1 - clamp01(a)
		return colorMatrix{
			{0.2126 + 0.7874*k, 0.7152 - 0.7152*k, 0.0722 - 0.0722*k, 0},
			{0.2126 - 0.2126*k, 0.7152 + 0.2848*k, 0.0722 - 0.0722*k, 0},
			{0.2126 - 0.2126*k, 0.7152 - 0.7152*k, 0.0722 + 0.9278*k, 0},
		}
	case effects.FilterSepia:
		k := 1 - clamp01(a)
		return colorMatrix{
			{0.393 + 0.607*k, 0.769 - 0.769*k, 0.189 - 0.189*k, 0},
			{0.349 - 0.349*k, 0.686 + 0.314*k, 0.168 - 0.168*k, 0},
			{0.272 - 0.272*k, 0.534 - 0.534*k, 0.131 + 0.869*k, 0},
		}
	case effects.FilterHueRotate:
		return hueMatrix(a)
	}
	return identityMatrix()
}

func hueMatrix(deg float64) colorMatrix {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return colorMatrix{
		{0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928, 0},
		{0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283, 0},
		{0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072, 0},
	}
}

func chainMatrix(ops []effects.FilterOp) colorMatrix {
	m := identityMatrix()
	for _, op := range ops {
		m = m.then(opMatrix(op))
	}
	return m
}

// applyFilter runs the filter chain over every pixel of img.
func applyFilter(img *image.RGBA, ops []effects.FilterOp) {
	if len(ops) == 0 {
		return
	}
	m := chainMatrix(ops)
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		a := float64(pix[i+3]) / 255
		if a == 0 {
			continue
		}
		r := float64(pix[i]) / 255
		g := float64(pix[i+1]) / 255
		b := float64(pix[i+2]) / 255
		for ch := 0; ch < 3; ch++ {
			v := m[ch][0]*r + m[ch][1]*g + m[ch][2]*b + m[ch][3]*a
			pix[i+ch] = uint8(math.Round(math.Max(0, math.Min(a, v)) * 255))
		}
	}
}

func hueRotateColor(c color.RGBA, deg float64) color.RGBA {
	m := hueMatrix(deg)
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255
	ch := func(row int) uint8 {
		v := m[row][0]*r + m[row][1]*g + m[row][2]*b
		return uint8(math.Round(clamp01(v) * 255))
	}
	return color.RGBA{R: ch(0), G: ch(1), B: ch(2), A: c.A}
}

// applyChannelShift moves the red channel left and the blue channel right by
// n pixels.
func applyChannelShift(img *image.RGBA, n int) {
	if n == 0 {
		return
	}
	b := img.Bounds()
	w := b.Dx()
	row := make([]uint8, w*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		line := img.Pix[off : off+w*4]
		copy(row, line)
		for x := 0; x < w; x++ {
			rx := clampInt(x+n, 0, w-1)
			bx := clampInt(x-n, 0, w-1)
			line[x*4] = row[rx*4]
			line[x*4+2] = row[bx*4+2]
		}
	}
}

// boxBlur blurs img in place with a separable box filter of the given radius.
func boxBlur(img *image.RGBA, radius int) {
	if radius < 1 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]uint8, len(img.Pix))
	blurPass(img.Pix, tmp, w, h, img.Stride, radius, true)
	blurPass(tmp, img.Pix, w, h, img.Stride, radius, false)
}

func blurPass(src, dst []uint8, w, h, stride, radius int, horizontal bool) {
	outer, inner := h, w
	if !horizontal {
		outer, inner = w, h
	}
	at := func(o, i int) int {
		if horizontal {
			return o*stride + i*4
		}
		return i*stride + o*4
	}
	win := 2*radius + 1
	for o := 0; o < outer; o++ {
		var sum [4]int
		for i := -radius; i <= radius; i++ {
			p := at(o, clampInt(i, 0, inner-1))
			for c := 0; c < 4; c++ {
				sum[c] += int(src[p+c])
			}
		}
		for i := 0; i < inner; i++ {
			p := at(o, i)
			for c := 0; c < 4; c++ {
				dst[p+c] = uint8(sum[c] / win)
			}
			out := at(o, clampInt(i-radius, 0, inner-1))
			in := at(o, clampInt(i+radius+1, 0, inner-1))
			for c := 0; c < 4; c++ {
				sum[c] += int(src[in+c]) - int(src[out+c])
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
