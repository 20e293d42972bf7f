package core

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"pkt.systems/shotpdf/schema"
)

// scenarioGeometry has a 190 wide image on a 277 high page.
func scenarioGeometry() schema.PageGeometry {
	return schema.PageGeometry{PageWidth: 210, PageHeight: 277, ImageWidth: 190, Margin: 10}
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(w, h, c)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngInput(t *testing.T, name string, w, h int, c color.NRGBA) schema.RawInput {
	t.Helper()
	return schema.BytesInput("image/png", name, pngBytes(t, w, h, c))
}

// blockingInput returns an input whose payload is only readable after
// release is called.
func blockingInput(data []byte) (schema.RawInput, func()) {
	gate := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	in := schema.RawInput{
		MediaType: "image/png",
		Name:      "slow.png",
		Open: func() (io.ReadCloser, error) {
			<-gate
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
	return in, release
}

type recordingSink struct {
	mu     sync.Mutex
	events []schema.StateEvent
}

func (r *recordingSink) OnStateChange(event schema.StateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) states() []schema.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.SessionState, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.State)
	}
	return out
}

func waitForState(t *testing.T, sess *Session, want schema.SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %q, have %q", want, sess.State())
}

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)
