package core

import (
	"math"

	"pkt.systems/shotpdf/schema"
)

// remaining heights at or below this fraction of a page are rounding noise
const pageEpsilon = 1e-9

// ScaledHeight is the height of a width×height raster scaled to the
// printable width of geom.
func ScaledHeight(width, height int, geom schema.PageGeometry) (float64, error) {
	if width <= 0 || height <= 0 {
		return 0, &GeometryError{Width: width, Height: height, Reason: "image has no area"}
	}
	if err := geom.Validate(); err != nil {
		return 0, &GeometryError{Width: width, Height: height, Reason: err.Error()}
	}
	return float64(height) * geom.ImageWidth / float64(width), nil
}

// PageCount returns the number of segments Plan would produce.
func PageCount(width, height int, geom schema.PageGeometry) (int, error) {
	scaled, err := ScaledHeight(width, height, geom)
	if err != nil {
		return 0, err
	}
	n := math.Ceil(scaled/geom.PageHeight - pageEpsilon)
	if n < 1 || math.IsNaN(n) {
		return 1, nil
	}
	if n > math.MaxInt32 {
		return 0, &GeometryError{Width: width, Height: height, Reason: "too many pages"}
	}
	return int(n), nil
}

// Plan computes the page segments of a width×height raster. The first
// segment is at offset 0; every further page shifts the same full-size image
// up by one page height so the next window becomes visible.
func Plan(width, height int, geom schema.PageGeometry) ([]schema.PageSegment, error) {
	scaled, err := ScaledHeight(width, height, geom)
	if err != nil {
		return nil, err
	}
	count, err := PageCount(width, height, geom)
	if err != nil {
		return nil, err
	}
	segments := make([]schema.PageSegment, 1, count)
	segments[0] = schema.PageSegment{Index: 0, Offset: 0}

	limit := pageEpsilon * geom.PageHeight
	remaining := scaled - geom.PageHeight
	for remaining > limit {
		idx := len(segments)
		segments = append(segments, schema.PageSegment{
			Index:  idx,
			Offset: -float64(idx) * geom.PageHeight,
		})
		remaining -= geom.PageHeight
	}
	return segments, nil
}
