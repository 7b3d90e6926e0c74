package analyzer

import (
	"image"
	"image/color"
	"testing"
)

func fill(img *image.Gray, r image.Rectangle, y uint8) {
	for py := r.Min.Y; py < r.Max.Y; py++ {
		for px := r.Min.X; px < r.Max.X; px++ {
			img.SetGray(px, py, color.Gray{Y: y})
		}
	}
}

func TestContrastDetector(t *testing.T) {
	// white rectangle (text block) on black background
	img := image.NewGray(image.Rect(0, 0, 200, 200))
	fill(img, image.Rect(50, 50, 150, 150), 255)

	blocks, err := NewContrastDetector().Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blocks) == 0 {
		t.Fatal("Expected at least one block, got none")
	}

	block := blocks[0]
	if block.Rect.Dx() < 80 || block.Rect.Dy() < 80 {
		t.Errorf("Block too small: %v", block.Rect)
	}
	for i, b := range blocks {
		t.Logf("Block %d: %v (confidence: %.2f)", i, b.Rect, b.Confidence)
	}
}

func TestContrastDetectorDownscales(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1080, 1080))
	fill(img, image.Rect(270, 270, 810, 810), 255)

	blocks, err := NewContrastDetector().Detect(img)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) == 0 {
		t.Fatal("expected a block")
	}
	if r := blocks[0].Rect; r.Dx() < 400 || r.Max.X > 1080 {
		t.Errorf("block not mapped back to frame coordinates: %v", r)
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"contrast", false},
		{"", false}, // default
		{"none", false},
		{"ocr", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if detector == nil {
				t.Error("Expected detector, got nil")
			}
		})
	}
}

func TestDeriveTheme(t *testing.T) {
	dark := image.NewGray(image.Rect(0, 0, 200, 200))

	bright := image.NewGray(image.Rect(0, 0, 200, 200))
	fill(bright, bright.Bounds(), 240)

	// checkerboard across the caption band
	busy := image.NewGray(image.Rect(0, 0, 200, 200))
	for y := 120; y < 170; y++ {
		for x := 0; x < 200; x++ {
			if (x/8+y/8)%2 == 0 {
				busy.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	tests := []struct {
		name      string
		img       image.Image
		wantTheme string
		wantBoxes bool
	}{
		{"dark", dark, "dark", false},
		{"bright", bright, "light", true},
		{"busy band", busy, "dark", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theme, err := DeriveTheme(tt.img, NewContrastDetector())
			if err != nil {
				t.Fatal(err)
			}
			if theme.Name != tt.wantTheme {
				t.Errorf("theme = %s, want %s", theme.Name, tt.wantTheme)
			}
			if theme.CaptionBoxes != tt.wantBoxes {
				t.Errorf("boxes = %v, want %v", theme.CaptionBoxes, tt.wantBoxes)
			}
		})
	}
}
