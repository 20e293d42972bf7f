package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidSession indicates an invalid session identifier.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionNotFound indicates a session could not be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionBusy indicates an ingestion is already pending.
	ErrSessionBusy = errors.New("session is busy")
	// ErrIngestionCanceled indicates the pending ingestion was cleared or canceled.
	ErrIngestionCanceled = errors.New("ingestion canceled")
	// ErrInvalidState indicates the operation is not allowed in the current session state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrDecode indicates malformed or unsupported image data.
	ErrDecode = errors.New("image decode failed")
	// ErrGeometry indicates degenerate image or page dimensions.
	ErrGeometry = errors.New("invalid geometry")
	// ErrInvalidName indicates an invalid document name.
	ErrInvalidName = errors.New("invalid document name")
)
