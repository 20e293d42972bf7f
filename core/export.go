package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pkt.systems/shotpdf/schema"
)

// DocumentBuilder is the page-oriented sink of the exporter.
type DocumentBuilder interface {
	// AddPage starts a new page; subsequent placements go to it.
	AddPage()
	// PlaceImage places the encoded raster registered under name at x, y
	// with size w×h on the current page. The raster is embedded once per name.
	PlaceImage(name string, raster []byte, x, y, w, h float64) error
	PageCount() int
	// Output finalizes the document and writes it to w.
	Output(w io.Writer) error
}

// DocumentMeta is the metadata written into exported documents.
type DocumentMeta struct {
	Title     string
	Author    string
	CreatedAt time.Time
}

// DocumentFactory creates a builder for one export.
type DocumentFactory func(geom schema.PageGeometry, meta DocumentMeta) DocumentBuilder

// Document is an exported binary document.
type Document struct {
	Name  string
	Pages int
	Data  []byte
}

// Exporter assembles page segments into a document.
type Exporter struct {
	geom    schema.PageGeometry
	factory DocumentFactory
}

// NewExporter constructs an exporter for a fixed page geometry.
func NewExporter(geom schema.PageGeometry, factory DocumentFactory) *Exporter {
	return &Exporter{geom: geom, factory: factory}
}

const snapshotImageName = "snapshot"

// Export places the snapshot once per segment, opening a new page for each,
// and returns the finalized document.
func (e *Exporter) Export(ctx context.Context, snap RasterSnapshot, segments []schema.PageSegment, meta DocumentMeta) (Document, error) {
	if ctx == nil {
		return Document{}, errors.New("missing context")
	}
	if e.factory == nil {
		return Document{}, errors.New("document factory not configured")
	}
	if len(segments) == 0 {
		return Document{}, fmt.Errorf("%w: no page segments", schema.ErrInvalidRequest)
	}
	scaled, err := ScaledHeight(snap.Width, snap.Height, e.geom)
	if err != nil {
		return Document{}, err
	}
	doc := e.factory(e.geom, meta)
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		doc.AddPage()
		if err := doc.PlaceImage(snapshotImageName, snap.PNG, e.geom.Margin, seg.Offset, e.geom.ImageWidth, scaled); err != nil {
			return Document{}, fmt.Errorf("page %d: %w", seg.Index+1, err)
		}
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return Document{}, err
	}
	return Document{Pages: doc.PageCount(), Data: buf.Bytes()}, nil
}
