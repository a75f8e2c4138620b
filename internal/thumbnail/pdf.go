package thumbnail

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// renderDPI is the fixed resolution for the page-1 render.
const renderDPI = 144

// pdfRenderer renders the first page of a PDF document.
type pdfRenderer struct{}

func (pdfRenderer) Render(_ context.Context, src string, _ float64) (image.Image, error) {
	doc, err := fitz.New(src)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	img, err := doc.ImageDPI(0, renderDPI)
	if err != nil {
		return nil, fmt.Errorf("render page 1: %w", err)
	}
	return img, nil
}
