package schema

import (
	"bytes"
	"io"
	"time"
)

// SessionID identifies a capture session.
type SessionID string

// SessionState is the UI-facing state of a capture session.
type SessionState string

const (
	// StateEmpty means no image is loaded.
	StateEmpty SessionState = "empty"
	// StateLoading means an ingestion is decoding.
	StateLoading SessionState = "loading"
	// StateReady means an image is drawn and can be exported.
	StateReady SessionState = "ready"
)

// RawInput is one candidate item of a paste or drop event.
type RawInput struct {
	// MediaType is the declared media type, e.g. "image/png".
	MediaType string
	// Name is an optional file name used for logging and errors.
	Name string
	// Open returns the payload. It is called at most once.
	Open func() (io.ReadCloser, error)
}

// BytesInput wraps an in-memory payload as a RawInput.
func BytesInput(mediaType, name string, data []byte) RawInput {
	return RawInput{
		MediaType: mediaType,
		Name:      name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// PageSegment is one page's window into the scaled full-height image.
type PageSegment struct {
	Index  int
	Offset float64
}

// SessionInfo reports the externally visible state of a session.
type SessionInfo struct {
	ID        SessionID    `json:"id"`
	State     SessionState `json:"state"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Pages     int          `json:"pages"`
	UpdatedAt time.Time    `json:"updated_at"`
}
