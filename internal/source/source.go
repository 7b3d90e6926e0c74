// Package source loads cutaway images: local files, http(s) URLs and pages
// of PDF decks referenced as "deck.pdf#3".
package source

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

// Fetcher resolves one cutaway reference to an image.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (image.Image, error)
}

// Loader is the default Fetcher.
type Loader struct {
	// BaseDir resolves relative file references, usually the project directory.
	BaseDir string
	Client  *http.Client
	// DPI for PDF page rendering.
	DPI int
	// MaxSide downsizes larger images; 0 keeps them as decoded.
	MaxSide int
}

func NewLoader(baseDir string) *Loader {
	return &Loader{
		BaseDir: baseDir,
		Client:  &http.Client{Timeout: 15 * time.Second},
		DPI:     150,
		MaxSide: 2160,
	}
}

// Fetch loads ref and bounds it to MaxSide.
func (l *Loader) Fetch(ctx context.Context, ref string) (image.Image, error) {
	img, err := l.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return fitMaxSide(img, l.MaxSide), nil
}

func (l *Loader) fetch(ctx context.Context, ref string) (image.Image, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.fetchHTTP(ctx, ref)
	}

	if path, page, ok := ParsePDFRef(ref); ok {
		deck, err := OpenPDF(l.resolve(path))
		if err != nil {
			return nil, err
		}
		defer deck.Close()
		return deck.RenderPage(page, l.DPI)
	}
	return decodeFile(l.resolve(ref))
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) || l.BaseDir == "" {
		return path
	}
	return filepath.Join(l.BaseDir, path)
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

func fitMaxSide(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if maxSide <= 0 || longest <= maxSide {
		return img
	}
	k := float64(maxSide) / float64(longest)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(b.Dx())*k), int(float64(b.Dy())*k)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
