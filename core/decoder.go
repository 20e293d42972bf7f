package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pkt.systems/shotpdf/schema"
)

// DecodedImage is a fully decoded raster and its intrinsic size.
type DecodedImage struct {
	Width  int
	Height int
	// Format is the registered format name, e.g. "png".
	Format string
	Image  image.Image
}

// Decoder turns raw inputs into decoded images.
type Decoder struct {
	maxBytes  int64
	maxPixels int64
	timeout   time.Duration
}

// NewDecoder constructs a decoder with the configured limits.
func NewDecoder(cfg schema.ServiceConfig) *Decoder {
	return &Decoder{
		maxBytes:  cfg.MaxInputBytes,
		maxPixels: cfg.MaxPixels,
		timeout:   cfg.DecodeTimeout,
	}
}

// SelectImages returns the image-typed items in their original order.
func SelectImages(items []schema.RawInput) []schema.RawInput {
	out := make([]schema.RawInput, 0, len(items))
	for _, item := range items {
		if schema.IsImageMediaType(item.MediaType) {
			out = append(out, item)
		}
	}
	return out
}

// Decode reads the payload of in and decodes it. The read and decode stages
// each run on their own goroutine; ctx cancellation or the decoder timeout
// abandons the pending stage.
func (d *Decoder) Decode(ctx context.Context, in schema.RawInput) (DecodedImage, error) {
	if ctx == nil {
		return DecodedImage{}, errors.New("missing context")
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	fail := func(stage DecodeStage, err error) (DecodedImage, error) {
		return DecodedImage{}, &DecodeError{Name: in.Name, MediaType: in.MediaType, Stage: stage, Err: err}
	}

	data, err := await(ctx, func() ([]byte, error) { return d.read(in) })
	if err != nil {
		return fail(DecodeStageRead, err)
	}
	img, err := await(ctx, func() (DecodedImage, error) { return d.decode(data) })
	if err != nil {
		return fail(DecodeStageDecode, err)
	}
	return img, nil
}

func (d *Decoder) read(in schema.RawInput) ([]byte, error) {
	if in.Open == nil {
		return nil, errors.New("no payload")
	}
	rc, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	var r io.Reader = rc
	if d.maxBytes > 0 {
		r = io.LimitReader(rc, d.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", d.maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	return data, nil
}

func (d *Decoder) decode(data []byte) (DecodedImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return DecodedImage{}, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return DecodedImage{}, fmt.Errorf("empty image %dx%d", cfg.Width, cfg.Height)
	}
	if d.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > d.maxPixels {
		return DecodedImage{}, fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, d.maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return DecodedImage{}, err
	}
	b := img.Bounds()
	return DecodedImage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: format,
		Image:  img,
	}, nil
}

// await runs fn on a goroutine and waits for its result or ctx.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		val, err := fn()
		ch <- result{val: val, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		return res.val, res.err
	}
}
