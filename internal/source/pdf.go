package source

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ParsePDFRef splits "deck.pdf#3" into the file path and a zero-based page
// index. Pages are numbered from 1 in references.
func ParsePDFRef(ref string) (string, int, bool) {
	path, frag, ok := strings.Cut(ref, "#")
	if !ok || !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return "", 0, false
	}
	page, err := strconv.Atoi(frag)
	if err != nil || page < 1 {
		return "", 0, false
	}
	return path, page - 1, true
}

// PDFDeck renders pages of a PDF document.
type PDFDeck struct {
	doc  *fitz.Document
	path string
}

func OpenPDF(path string) (*PDFDeck, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &PDFDeck{doc: doc, path: path}, nil
}

func (d *PDFDeck) PageCount() int {
	return d.doc.NumPage()
}

// RenderPage rasterises page index (zero-based) at dpi.
func (d *PDFDeck) RenderPage(index int, dpi int) (image.Image, error) {
	if index < 0 || index >= d.PageCount() {
		return nil, fmt.Errorf("%s: page %d out of range (1..%d)", d.path, index+1, d.PageCount())
	}
	img, err := d.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("%s: render page %d: %w", d.path, index+1, err)
	}
	return img, nil
}

func (d *PDFDeck) Close() error {
	return d.doc.Close()
}
