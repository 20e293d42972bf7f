package core

import (
	"fmt"

	"pkt.systems/shotpdf/schema"
)

// DecodeStage names the step of the decode pipeline that failed.
type DecodeStage string

const (
	// DecodeStageRead is the payload read stage.
	DecodeStageRead DecodeStage = "read"
	// DecodeStageDecode is the pixel decode stage.
	DecodeStageDecode DecodeStage = "decode"
)

// DecodeError reports malformed or unsupported image data.
type DecodeError struct {
	Name      string
	MediaType string
	Stage     DecodeStage
	Err       error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return schema.ErrDecode.Error()
	}
	label := e.Name
	if label == "" {
		label = e.MediaType
	}
	msg := schema.ErrDecode.Error()
	if label != "" {
		msg = fmt.Sprintf("%s: %s", msg, label)
	}
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Stage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches schema.ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == schema.ErrDecode
}

// GeometryError reports degenerate dimensions that cannot be scaled.
type GeometryError struct {
	Width  int
	Height int
	Reason string
}

func (e *GeometryError) Error() string {
	if e == nil {
		return schema.ErrGeometry.Error()
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %dx%d: %s", schema.ErrGeometry, e.Width, e.Height, e.Reason)
	}
	return fmt.Sprintf("%s: %dx%d", schema.ErrGeometry, e.Width, e.Height)
}

// Is matches schema.ErrGeometry.
func (e *GeometryError) Is(target error) bool {
	return target == schema.ErrGeometry
}

// InvalidStateError reports an operation attempted in the wrong session state.
type InvalidStateError struct {
	Op    string
	State schema.SessionState
}

func (e *InvalidStateError) Error() string {
	if e == nil {
		return schema.ErrInvalidState.Error()
	}
	return fmt.Sprintf("%s: %s not allowed while %s", schema.ErrInvalidState, e.Op, e.State)
}

// Is matches schema.ErrInvalidState.
func (e *InvalidStateError) Is(target error) bool {
	return target == schema.ErrInvalidState
}
