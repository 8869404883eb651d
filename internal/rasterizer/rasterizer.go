package rasterizer

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// CaptureScale is the fixed render scale for slide images. 2.0x balances
// legibility against payload size for downstream AI image analysis.
const CaptureScale = 2.0

// baseDPI is the PDF point density; CaptureScale multiplies it.
const baseDPI = 72.0

// ErrCaptureFailed collapses every rasterization failure (page out of range,
// render failure, encode failure) into one outcome. Callers treat it as
// image-unavailable rather than fatal.
var ErrCaptureFailed = errors.New("capture failed")

// Document wraps an open PDF and rasterizes individual pages.
type Document struct {
	doc   *fitz.Document
	pages int
}

// Open loads a PDF from raw bytes.
func Open(data []byte) (*Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return &Document{doc: doc, pages: doc.NumPage()}, nil
}

// OpenFile loads a PDF from disk.
func OpenFile(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", path, err)
	}
	return &Document{doc: doc, pages: doc.NumPage()}, nil
}

// PageCount reports the number of slides in the deck.
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return d.pages
}

// Capture renders the 1-based page at CaptureScale and returns it PNG-encoded.
func (d *Document) Capture(pageNumber int) ([]byte, error) {
	if d == nil || d.doc == nil {
		return nil, fmt.Errorf("%w: document not open", ErrCaptureFailed)
	}
	if pageNumber < 1 || pageNumber > d.pages {
		return nil, fmt.Errorf("%w: page %d out of range 1..%d", ErrCaptureFailed, pageNumber, d.pages)
	}

	// fitz pages are zero indexed.
	img, err := d.doc.ImageDPI(pageNumber-1, baseDPI*CaptureScale)
	if err != nil {
		return nil, fmt.Errorf("%w: render page %d: %v", ErrCaptureFailed, pageNumber, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode page %d: %v", ErrCaptureFailed, pageNumber, err)
	}
	return buf.Bytes(), nil
}

// Close releases the underlying document.
func (d *Document) Close() error {
	if d == nil || d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
