package compositor

import "image"

// CoverRect returns the region of a srcW x srcH image that fills a dstW x dstH
// canvas when centre-cropped to the canvas aspect ratio.
func CoverRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)

	if srcAspect > dstAspect {
		// source too wide: crop left and right
		w := int(float64(srcH)*dstAspect + 0.5)
		x := (srcW - w) / 2
		return image.Rect(x, 0, x+w, srcH)
	}
	h := int(float64(srcW)/dstAspect + 0.5)
	y := (srcH - h) / 2
	return image.Rect(0, y, srcW, y+h)
}

// Box is a rectangle in canvas fractions.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Pixels converts b to a pixel rectangle on a width x height canvas.
func (b Box) Pixels(width, height int) image.Rectangle {
	x0 := int(b.X*float64(width) + 0.5)
	y0 := int(b.Y*float64(height) + 0.5)
	x1 := int((b.X+b.W)*float64(width) + 0.5)
	y1 := int((b.Y+b.H)*float64(height) + 0.5)
	return image.Rect(x0, y0, x1, y1)
}
