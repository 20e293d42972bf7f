package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// PageGeometry is the fixed page layout of exported documents, in millimetres.
type PageGeometry struct {
	PageWidth  float64 `json:"page_width"`
	PageHeight float64 `json:"page_height"`
	// ImageWidth is the printable width the image is scaled to.
	ImageWidth float64 `json:"image_width"`
	// Margin is the horizontal offset of the image on every page.
	Margin float64 `json:"margin"`
}

// DefaultPaper is the paper used when none is configured.
const DefaultPaper = "a4"

// DefaultMargin is the horizontal image margin in millimetres.
const DefaultMargin = 10

var papers = map[string][2]float64{
	"a3":     {297, 420},
	"a4":     {210, 297},
	"a5":     {148, 210},
	"letter": {215.9, 279.4},
	"legal":  {215.9, 355.6},
}

// Papers returns the known paper names in sorted order.
func Papers() []string {
	names := make([]string, 0, len(papers))
	for name := range papers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GeometryForPaper returns the portrait geometry of a named paper with the
// image spanning the page width minus the margin on both sides.
func GeometryForPaper(name string, margin float64) (PageGeometry, error) {
	size, ok := papers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return PageGeometry{}, fmt.Errorf("%w: unknown paper %q", ErrGeometry, name)
	}
	geom := PageGeometry{
		PageWidth:  size[0],
		PageHeight: size[1],
		ImageWidth: size[0] - 2*margin,
		Margin:     margin,
	}
	return geom, geom.Validate()
}

// DefaultGeometry is A4 portrait with a 190mm wide image at a 10mm margin.
func DefaultGeometry() PageGeometry {
	return PageGeometry{
		PageWidth:  210,
		PageHeight: 297,
		ImageWidth: 190,
		Margin:     DefaultMargin,
	}
}

// Validate reports whether the geometry can be paginated.
func (g PageGeometry) Validate() error {
	for _, v := range []float64{g.PageWidth, g.PageHeight, g.ImageWidth, g.Margin} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite page dimension", ErrGeometry)
		}
	}
	if g.PageWidth <= 0 || g.PageHeight <= 0 {
		return fmt.Errorf("%w: page size %gx%g", ErrGeometry, g.PageWidth, g.PageHeight)
	}
	if g.ImageWidth <= 0 {
		return fmt.Errorf("%w: image width %g", ErrGeometry, g.ImageWidth)
	}
	if g.Margin < 0 {
		return fmt.Errorf("%w: negative margin %g", ErrGeometry, g.Margin)
	}
	if g.Margin+g.ImageWidth > g.PageWidth {
		return fmt.Errorf("%w: image width %g plus margin %g exceeds page width %g", ErrGeometry, g.ImageWidth, g.Margin, g.PageWidth)
	}
	return nil
}
