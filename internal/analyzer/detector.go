package analyzer

import "image"

// Block is a high-contrast region of a frame, typically text or a busy
// background that would fight with captions.
type Block struct {
	Rect       image.Rectangle
	Confidence float64 // 0.0-1.0
}

// Detector is the interface for frame analysis strategies
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// flatDetector reports no regions; themes fall back to luminance only.
type flatDetector struct{}

func (flatDetector) Detect(image.Image) ([]Block, error) { return nil, nil }
