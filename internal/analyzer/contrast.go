package analyzer

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// sampleWidth bounds the analysis raster; full-resolution frames are
// downscaled first.
const sampleWidth = 270

// ContrastDetector implements edge-based region detection using Sobel operator
type ContrastDetector struct {
	MinBlockArea  int     // Minimum area in sample pixels²
	EdgeThreshold float64 // Gradient magnitude threshold
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  300,
		EdgeThreshold: 30.0,
	}
}

// Detect finds high-contrast regions. Rectangles are in img coordinates.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	gray, scale := toGrayscale(img, sampleWidth)
	edges := sobelEdgeDetection(gray, d.EdgeThreshold)

	// connect nearby edges so glyphs merge into lines
	dilated := dilate(edges, 5, 2)

	var blocks []Block
	for _, rect := range findContours(dilated) {
		if rect.Dx()*rect.Dy() < d.MinBlockArea {
			continue
		}
		blocks = append(blocks, Block{
			Rect:       upscale(rect, scale).Add(img.Bounds().Min),
			Confidence: edgeShare(edges, rect),
		})
	}
	return blocks, nil
}

// toGrayscale converts img to a grayscale raster no wider than maxWidth and
// returns the factor mapping sample coordinates back to img.
func toGrayscale(img image.Image, maxWidth int) (*image.Gray, float64) {
	b := img.Bounds()
	scale := 1.0
	w, h := b.Dx(), b.Dy()
	if w > maxWidth {
		scale = float64(w) / float64(maxWidth)
		w = maxWidth
		h = int(math.Max(1, math.Round(float64(h)/scale)))
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	return gray, scale
}

func upscale(r image.Rectangle, scale float64) image.Rectangle {
	return image.Rect(
		int(float64(r.Min.X)*scale), int(float64(r.Min.Y)*scale),
		int(math.Ceil(float64(r.Max.X)*scale)), int(math.Ceil(float64(r.Max.Y)*scale)),
	)
}

// sobelEdgeDetection applies Sobel operator to detect edges
func sobelEdgeDetection(gray *image.Gray, threshold float64) *image.Gray {
	bounds := gray.Bounds()
	edges := image.NewGray(bounds)

	gx := [3][3]int{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	gy := [3][3]int{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var sumX, sumY float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					pixel := float64(gray.GrayAt(x+kx, y+ky).Y)
					sumX += pixel * float64(gx[ky+1][kx+1])
					sumY += pixel * float64(gy[ky+1][kx+1])
				}
			}

			if math.Sqrt(sumX*sumX+sumY*sumY) > threshold {
				edges.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return edges
}

// dilate performs morphological dilation to connect nearby edges
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	bounds := img.Bounds()
	result := image.NewGray(bounds)
	copy(result.Pix, img.Pix)

	half := kernelSize / 2
	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(bounds)
		for y := bounds.Min.Y + half; y < bounds.Max.Y-half; y++ {
			for x := bounds.Min.X + half; x < bounds.Max.X-half; x++ {
				maxVal := uint8(0)
				for ky := -half; ky <= half && maxVal < 255; ky++ {
					for kx := -half; kx <= half; kx++ {
						if val := result.GrayAt(x+kx, y+ky).Y; val > maxVal {
							maxVal = val
						}
					}
				}
				temp.SetGray(x, y, color.Gray{Y: maxVal})
			}
		}
		result = temp
	}

	return result
}

// findContours finds bounding rectangles of connected white regions
func findContours(img *image.Gray) []image.Rectangle {
	bounds := img.Bounds()
	visited := make([][]bool, bounds.Dy())
	for i := range visited {
		visited[i] = make([]bool, bounds.Dx())
	}

	var contours []image.Rectangle
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y > 128 && !visited[y-bounds.Min.Y][x-bounds.Min.X] {
				contours = append(contours, floodFill(img, visited, x, y))
			}
		}
	}

	return contours
}

// floodFill performs flood fill and returns bounding rectangle
func floodFill(img *image.Gray, visited [][]bool, startX, startY int) image.Rectangle {
	bounds := img.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p.X, p.Y

		if !p.In(bounds) {
			continue
		}
		if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y <= 128 {
			continue
		}
		visited[y-bounds.Min.Y][x-bounds.Min.X] = true

		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// edgeShare is the fraction of edge pixels inside r.
func edgeShare(edges *image.Gray, r image.Rectangle) float64 {
	r = r.Intersect(edges.Bounds())
	if r.Empty() {
		return 0
	}
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if edges.GrayAt(x, y).Y > 0 {
				n++
			}
		}
	}
	return float64(n) / float64(r.Dx()*r.Dy())
}

// meanLuma is the average brightness of gray in [0, 1].
func meanLuma(gray *image.Gray) float64 {
	if len(gray.Pix) == 0 {
		return 0
	}
	sum := 0
	for _, v := range gray.Pix {
		sum += int(v)
	}
	return float64(sum) / float64(len(gray.Pix)) / 255
}
