package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/shotpdf/schema"
)

func TestPlanSinglePage(t *testing.T) {
	segments, err := Plan(400, 200, scenarioGeometry())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []schema.PageSegment{{Index: 0, Offset: 0}}
	if diff := cmp.Diff(want, segments); diff != "" {
		t.Fatalf("unexpected segments (-want +got):\n%s", diff)
	}
}

func TestPlanTwoPages(t *testing.T) {
	geom := scenarioGeometry()
	scaled, err := ScaledHeight(400, 1000, geom)
	if err != nil {
		t.Fatalf("ScaledHeight: %v", err)
	}
	if scaled != 475 {
		t.Fatalf("expected scaled height 475, got %v", scaled)
	}
	segments, err := Plan(400, 1000, geom)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []schema.PageSegment{{Index: 0, Offset: 0}, {Index: 1, Offset: -277}}
	if diff := cmp.Diff(want, segments); diff != "" {
		t.Fatalf("unexpected segments (-want +got):\n%s", diff)
	}
}

func TestPlanExactMultipleOfPageHeight(t *testing.T) {
	geom := scenarioGeometry()
	for pages := 1; pages <= 5; pages++ {
		segments, err := Plan(190, 277*pages, geom)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if len(segments) != pages {
			t.Fatalf("height %d: expected %d segments, got %d", 277*pages, pages, len(segments))
		}
	}
}

func TestPlanSegmentCountIsCeil(t *testing.T) {
	geom := scenarioGeometry()
	// A width of 190 makes the scaled height equal the pixel height.
	for _, h := range []int{1, 100, 276, 277, 278, 553, 554, 555, 1000, 2770, 10001} {
		segments, err := Plan(190, h, geom)
		if err != nil {
			t.Fatalf("Plan(%d): %v", h, err)
		}
		want := (h + 276) / 277
		if len(segments) != want {
			t.Fatalf("height %d: expected %d segments, got %d", h, want, len(segments))
		}
		count, err := PageCount(190, h, geom)
		if err != nil || count != want {
			t.Fatalf("PageCount(%d) = %d, %v; want %d", h, count, err, want)
		}
		if segments[0].Offset != 0 {
			t.Fatalf("height %d: first offset %v", h, segments[0].Offset)
		}
		for i, seg := range segments {
			if seg.Index != i || seg.Offset != -float64(i)*277 {
				t.Fatalf("height %d: segment %d = %+v", h, i, seg)
			}
		}
	}
}

func TestPlanIsIdempotent(t *testing.T) {
	geom := schema.DefaultGeometry()
	first, err := Plan(1366, 7919, geom)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	second, err := Plan(1366, 7919, geom)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("plan is not idempotent (-first +second):\n%s", diff)
	}
}

func TestPlanIsMonotonicInHeight(t *testing.T) {
	geom := schema.DefaultGeometry()
	prev := 0
	for h := 1; h <= 5000; h += 7 {
		segments, err := Plan(333, h, geom)
		if err != nil {
			t.Fatalf("Plan(%d): %v", h, err)
		}
		if len(segments) < prev {
			t.Fatalf("height %d: segment count dropped from %d to %d", h, prev, len(segments))
		}
		prev = len(segments)
	}
}

func TestPlanRejectsDegenerateInput(t *testing.T) {
	cases := []struct {
		name string
		w, h int
		geom schema.PageGeometry
	}{
		{"zero width", 0, 100, scenarioGeometry()},
		{"zero height", 100, 0, scenarioGeometry()},
		{"negative width", -5, 100, scenarioGeometry()},
		{"zero page height", 100, 100, schema.PageGeometry{PageWidth: 210, ImageWidth: 190}},
	}
	for _, tc := range cases {
		_, err := Plan(tc.w, tc.h, tc.geom)
		if !errors.Is(err, schema.ErrGeometry) {
			t.Fatalf("%s: expected geometry error, got %v", tc.name, err)
		}
		var geomErr *GeometryError
		if !errors.As(err, &geomErr) {
			t.Fatalf("%s: expected *GeometryError, got %T", tc.name, err)
		}
	}
}
