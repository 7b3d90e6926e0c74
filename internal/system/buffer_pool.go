package system

import (
	"image"
	"sync"
)

// ImagePool recycles *image.RGBA rasters by bounds. Painting needs several
// full-canvas scratch layers per frame, and export paints thousands of frames.
type ImagePool struct {
	sizes sync.Map // image.Rectangle -> *sync.Pool
}

func NewImagePool() *ImagePool { return &ImagePool{} }

var shared = NewImagePool()

// GetImage returns a raster with bounds rect from the shared pool. Its
// contents are undefined.
func GetImage(rect image.Rectangle) *image.RGBA { return shared.Get(rect) }

// PutImage hands img back to the shared pool.
func PutImage(img *image.RGBA) { shared.Put(img) }

func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	v, ok := p.sizes.Load(rect)
	if !ok {
		v, _ = p.sizes.LoadOrStore(rect, &sync.Pool{
			New: func() any { return image.NewRGBA(rect) },
		})
	}
	return v.(*sync.Pool).Get().(*image.RGBA)
}

// Put ignores rasters whose bounds the pool never handed out.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	if v, ok := p.sizes.Load(img.Rect); ok {
		v.(*sync.Pool).Put(img)
	}
}
