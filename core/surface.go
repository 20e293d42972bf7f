package core

import (
	"bytes"
	"image"
	"image/png"
	"sync"

	"golang.org/x/image/draw"

	"pkt.systems/shotpdf/schema"
)

// RasterSnapshot is the PNG-encoded content of a surface.
type RasterSnapshot struct {
	Width  int
	Height int
	PNG    []byte
}

// Surface is the single mutable pixel canvas of a session.
type Surface struct {
	mu  sync.RWMutex
	img *image.NRGBA
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Draw resizes the surface to the image and blits it at the origin,
// replacing any prior contents. The new canvas is assembled off to the side
// and swapped in at once.
func (s *Surface) Draw(img DecodedImage) error {
	if img.Image == nil || img.Width <= 0 || img.Height <= 0 {
		return &GeometryError{Width: img.Width, Height: img.Height, Reason: "nothing to draw"}
	}
	src := img.Image
	canvas := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	s.mu.Lock()
	s.img = canvas
	s.mu.Unlock()
	return nil
}

// Snapshot encodes the current pixels as PNG.
func (s *Surface) Snapshot() (RasterSnapshot, error) {
	s.mu.RLock()
	img := s.img
	s.mu.RUnlock()
	if img == nil {
		return RasterSnapshot{}, &InvalidStateError{Op: "snapshot", State: schema.StateEmpty}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return RasterSnapshot{}, err
	}
	b := img.Bounds()
	return RasterSnapshot{Width: b.Dx(), Height: b.Dy(), PNG: buf.Bytes()}, nil
}

// Clear erases the pixels and collapses the surface to 0x0.
func (s *Surface) Clear() {
	s.mu.Lock()
	s.img = nil
	s.mu.Unlock()
}

// Size returns the surface dimensions.
func (s *Surface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Empty reports whether no image is drawn.
func (s *Surface) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.img == nil
}

// pixels returns the current canvas for inspection in tests.
func (s *Surface) pixels() *image.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.img
}
