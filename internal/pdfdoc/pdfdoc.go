// Package pdfdoc builds paginated PDF documents from encoded rasters.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"pkt.systems/shotpdf/internal/version"
	"pkt.systems/shotpdf/schema"
)

// Meta is the document information dictionary content.
type Meta struct {
	Title     string
	Author    string
	CreatedAt time.Time
}

// Builder is a page-by-page PDF builder sized to a page geometry.
type Builder struct {
	pdf        *fpdf.Fpdf
	registered map[string]fpdf.ImageOptions
}

// New constructs a builder for portrait pages of the given geometry, in
// millimetres, without automatic page breaks.
func New(geom schema.PageGeometry, meta Meta) *Builder {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: geom.PageWidth, Ht: geom.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(geom.Margin, 0, geom.Margin)
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	pdf.SetCreator(version.Module()+" "+version.Current(), true)
	if !meta.CreatedAt.IsZero() {
		pdf.SetCreationDate(meta.CreatedAt)
	}
	return &Builder{pdf: pdf, registered: make(map[string]fpdf.ImageOptions)}
}

// AddPage starts a new page.
func (b *Builder) AddPage() {
	b.pdf.AddPage()
}

// PageCount returns the number of pages added so far.
func (b *Builder) PageCount() int {
	return b.pdf.PageCount()
}

// PlaceImage draws the raster registered under name at x, y with size w×h
// on the current page. The raster is embedded on first use of name only;
// negative positions are kept so the page box clips the image.
func (b *Builder) PlaceImage(name string, raster []byte, x, y, w, h float64) error {
	if b.pdf.PageCount() == 0 {
		return errors.New("no page to place image on")
	}
	opts, ok := b.registered[name]
	if !ok {
		imageType, err := imageType(raster)
		if err != nil {
			return err
		}
		opts = fpdf.ImageOptions{ImageType: imageType, AllowNegativePosition: true}
		info := b.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raster))
		if err := b.pdf.Error(); err != nil {
			return err
		}
		if info == nil {
			return fmt.Errorf("register image %q failed", name)
		}
		b.registered[name] = opts
	}
	b.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return b.pdf.Error()
}

// Output closes the document and writes it to w.
func (b *Builder) Output(w io.Writer) error {
	if b.pdf.PageCount() == 0 {
		return errors.New("document has no pages")
	}
	return b.pdf.Output(w)
}

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

func imageType(raster []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raster, pngMagic):
		return "PNG", nil
	case bytes.HasPrefix(raster, jpegMagic):
		return "JPG", nil
	default:
		return "", errors.New("raster is neither PNG nor JPEG")
	}
}
