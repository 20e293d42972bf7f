package schema

// Session lifecycle.

// OpenSessionRequest describes a request to open a capture session.
type OpenSessionRequest struct {
	// SessionID is optional; a fresh id is generated when empty.
	SessionID SessionID
}

// OpenSessionResponse reports the opened session.
type OpenSessionResponse struct {
	Session SessionInfo
}

// CloseSessionRequest describes a request to close a session.
type CloseSessionRequest struct {
	SessionID SessionID
}

// CloseSessionResponse reports the last state of the closed session.
type CloseSessionResponse struct {
	Session SessionInfo
}

// GetSessionRequest describes a request to read a session's state.
type GetSessionRequest struct {
	SessionID SessionID
}

// GetSessionResponse reports a session's state.
type GetSessionResponse struct {
	Session SessionInfo
}

// Ingestion and export.

// IngestRequest carries the items of one paste or drop event.
type IngestRequest struct {
	SessionID SessionID
	Items     []RawInput
}

// IngestResponse reports the outcome of an ingestion.
type IngestResponse struct {
	Session SessionInfo
	// Decoded counts the image items that were decoded and drawn.
	Decoded int
	// Failed counts the image items that failed to decode.
	Failed int
	// Skipped counts the non-image items that were ignored.
	Skipped int
}

// ClearRequest describes a request to clear a session.
type ClearRequest struct {
	SessionID SessionID
}

// ClearResponse reports the cleared session.
type ClearResponse struct {
	Session SessionInfo
}

// ExportRequest describes a request to export the session as a document.
type ExportRequest struct {
	SessionID SessionID
	// Name overrides the configured document name.
	Name string
}

// ExportResponse carries the exported document.
type ExportResponse struct {
	Name  string
	Pages int
	Data  []byte
	// Path is set when the document was also written to the output directory.
	Path string
}
