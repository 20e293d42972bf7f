package core

import (
	"context"

	"pkt.systems/shotpdf/internal/pdfdoc"
	"pkt.systems/shotpdf/schema"
	"pkt.systems/pslog"
)

// ServiceDeps captures optional dependencies for the capture service.
type ServiceDeps struct {
	Documents DocumentFactory
	EventSink EventSink
	Logger    pslog.Logger
}

func (d ServiceDeps) withDefaults() ServiceDeps {
	if d.Documents == nil {
		d.Documents = PDFDocuments
	}
	if d.Logger == nil {
		d.Logger = pslog.Ctx(context.Background())
	}
	return d
}

// PDFDocuments builds PDF documents with pdfdoc.
func PDFDocuments(geom schema.PageGeometry, meta DocumentMeta) DocumentBuilder {
	return pdfdoc.New(geom, pdfdoc.Meta{
		Title:     meta.Title,
		Author:    meta.Author,
		CreatedAt: meta.CreatedAt,
	})
}
